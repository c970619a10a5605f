package stt

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"go.aimuz.me/speech2text/audiocapture"
)

const (
	// DefaultLanguage is the fixed recognition language.
	DefaultLanguage = "de"
	// DefaultBeamSize is the beam search width.
	DefaultBeamSize = 5
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Language string
	BeamSize int
	// VAD drops silent frames before recognition; nil disables filtering.
	VAD *VADFilter
}

// Service wraps a lazily loaded engine. It turns encoded session audio
// into a single line of text.
type Service struct {
	engine Engine
	cfg    ServiceConfig

	loadMu sync.Mutex
	loaded bool
}

// NewService creates a transcription service around engine.
func NewService(engine Engine, cfg ServiceConfig) *Service {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.BeamSize <= 0 {
		cfg.BeamSize = DefaultBeamSize
	}
	return &Service{engine: engine, cfg: cfg}
}

// Engine returns the wrapped engine.
func (s *Service) Engine() Engine {
	return s.engine
}

// LoadModel initializes the engine once. A failed load is retried on the
// next call; after a success further calls are no-ops.
func (s *Service) LoadModel(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.loaded {
		return nil
	}

	start := time.Now()
	slog.Info("loading speech model", "engine", s.engine.Name())
	if err := s.engine.Load(ctx); err != nil {
		return fmt.Errorf("load %s model: %w", s.engine.Name(), err)
	}
	s.loaded = true
	slog.Info("speech model loaded", "engine", s.engine.Name(), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Transcribe recognizes the speech in a WAV container. Empty input and
// audio without voiced frames yield "" without invoking the engine.
func (s *Service) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}

	if err := s.LoadModel(ctx); err != nil {
		return "", err
	}

	samples, rate, err := audiocapture.DecodeWAV(wav)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	if s.cfg.VAD != nil {
		before := len(samples)
		samples = s.cfg.VAD.Filter(samples, rate)
		slog.Debug("voice activity filter", "samples_in", before, "samples_out", len(samples))
	}
	if len(samples) == 0 {
		return "", nil
	}

	segments, err := s.engine.Transcribe(ctx, Request{
		Samples:    samples,
		SampleRate: rate,
		Language:   s.cfg.Language,
		BeamSize:   s.cfg.BeamSize,
	})
	if err != nil {
		return "", fmt.Errorf("%s transcribe: %w", s.engine.Name(), err)
	}
	return JoinSegments(segments), nil
}

// JoinSegments concatenates the trimmed segment texts with single spaces in
// chronological order, dropping empty segments and non-speech markers.
func JoinSegments(segments []Segment) string {
	ordered := slices.Clone(segments)
	slices.SortStableFunc(ordered, func(a, b Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})

	parts := make([]string, 0, len(ordered))
	for _, seg := range ordered {
		if text := cleanText(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return norm.NFC.String(strings.Join(parts, " "))
}
