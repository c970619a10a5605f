// Package app wires the dictation daemon: hotkey, recorder, speech engine
// and paste injection around a single Session.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.aimuz.me/speech2text/audiocapture"
	"go.aimuz.me/speech2text/audiocapture/portaudio"
	"go.aimuz.me/speech2text/clipboard"
	"go.aimuz.me/speech2text/config"
	"go.aimuz.me/speech2text/hotkey"
	"go.aimuz.me/speech2text/internal/metrics"
	"go.aimuz.me/speech2text/stt"
)

// shutdownTimeout bounds how long Run waits for the hotkey listener and a
// running transcription after shutdown was requested.
const shutdownTimeout = 3 * time.Second

// Service owns the long-lived components of the daemon.
// This struct focuses on orchestration; behavior lives in Session.
type Service struct {
	cfg *config.Config

	chord     hotkey.Chord
	terminate func()
	registry  *stt.Registry
	stt       *stt.Service
	session   *Session
	hotkey    *hotkey.Manager
	metrics   *metrics.Metrics

	// Version info (set by caller)
	version string

	// overridable for tests
	newDevice   func() audiocapture.Device
	newInjector func(delay time.Duration) Injector
}

// New creates a new Service. Call Init before Run.
func New(cfg *config.Config, version string) *Service {
	return &Service{
		cfg:     cfg,
		version: version,
		newDevice: func() audiocapture.Device {
			return portaudio.Device{}
		},
		newInjector: func(delay time.Duration) Injector {
			return clipboard.New(delay)
		},
	}
}

// Init builds every component in startup order and loads the speech model
// eagerly, so the first dictation does not pay for it.
func (s *Service) Init(ctx context.Context) error {
	chord, err := hotkey.ParseChord(s.cfg.Hotkey)
	if err != nil {
		return fmt.Errorf("parse hotkey: %w", err)
	}
	s.chord = chord

	if s.cfg.MetricsAddr != "" {
		s.metrics = metrics.New()
	}

	if err := s.setupAudio(); err != nil {
		return err
	}
	if err := s.setupSTT(); err != nil {
		return err
	}
	if err := s.stt.LoadModel(ctx); err != nil {
		return err
	}
	s.setupSession()
	return s.setupHotkey()
}

// Run serves until ctx is done: heartbeat, optional metrics endpoint, and
// the hotkey listener.
func (s *Service) Run(ctx context.Context) error {
	go s.session.Heartbeat(ctx, s.cfg.HeartbeatInterval.Std())

	if s.metrics != nil {
		go func() {
			if err := s.metrics.Serve(ctx, s.cfg.MetricsAddr); err != nil {
				slog.Error("metrics server", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.hotkey.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("hotkey listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	s.hotkey.Stop()
	deadline := time.Now().Add(shutdownTimeout)
	select {
	case <-errCh:
	case <-time.After(shutdownTimeout):
		slog.Warn("hotkey listener did not stop, not waiting for it")
	}
	if !s.hotkey.Wait(time.Until(deadline)) {
		slog.Warn("transcription still running, not waiting for it")
	}
	return nil
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.session != nil {
		s.session.Close()
	}
	if s.registry != nil {
		if err := s.registry.Close(); err != nil {
			slog.Error("close speech engines", "error", err)
		}
	}
	if s.terminate != nil {
		s.terminate()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Setup
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) setupAudio() error {
	terminate, err := portaudio.Init()
	if err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	s.terminate = terminate
	return nil
}

func (s *Service) setupSTT() error {
	registry, err := newRegistry(s.cfg)
	if err != nil {
		return err
	}
	s.registry = registry

	engine := registry.Get(s.cfg.Engine)
	if engine == nil {
		return fmt.Errorf("speech engine %q not available in this build (available: %v)", s.cfg.Engine, registry.Names())
	}

	var vad *stt.VADFilter
	if s.cfg.VAD.Enabled {
		vad = stt.DefaultVADFilter()
		vad.Threshold = s.cfg.VAD.Threshold
	}
	s.stt = stt.NewService(engine, stt.ServiceConfig{
		Language: s.cfg.Language,
		BeamSize: s.cfg.BeamSize,
		VAD:      vad,
	})
	return nil
}

func (s *Service) setupSession() {
	inj := s.newInjector(s.cfg.PasteDelay())

	var m Metrics
	if s.metrics != nil {
		m = s.metrics
	}
	rec := audiocapture.NewBuffer(s.newDevice(), s.cfg.SampleRate)
	s.session = NewSession(rec, s.stt, inj, NewLogReporter(nil, s.cfg.Notifications), m)
}

func (s *Service) setupHotkey() error {
	// Toggles are never cancelled: a started transcription runs to the end.
	toggleCtx := context.WithoutCancel(context.Background())

	mgr, err := hotkey.NewManager(s.chord, s.cfg.HotkeyMode, func() {
		s.session.Toggle(toggleCtx)
	})
	if err != nil {
		return err
	}
	s.hotkey = mgr
	return nil
}

// newRegistry registers every engine this build supports.
func newRegistry(cfg *config.Config) (*stt.Registry, error) {
	models, err := stt.NewModelStore(cfg.Model.Size, cfg.Model.Dir, cfg.Model.Path, cfg.Model.AutoDownload)
	if err != nil {
		return nil, fmt.Errorf("init model store: %w", err)
	}

	r := stt.NewRegistry()
	r.Register(stt.NewWhisperLocal(models, cfg.Model.BinPath))
	stt.RegisterNative(r, models)
	r.Register(stt.NewWhisperAPI(stt.WhisperAPIConfig{
		APIKey:  cfg.OpenAIKey(),
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	}))
	return r, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Banner
// ─────────────────────────────────────────────────────────────────────────────

// PrintBanner writes the startup summary for the operator.
func (s *Service) PrintBanner(w io.Writer) {
	model := s.cfg.Model.Size
	if s.cfg.Model.Path != "" {
		model = s.cfg.Model.Path
	}
	fmt.Fprintf(w, "speech2text %s\n", s.version)
	fmt.Fprintf(w, "  Hotkey:   %s (toggle recording)\n", s.chordDisplay())
	fmt.Fprintf(w, "  Engine:   %s, model %s, language %s\n", s.cfg.Engine, model, s.cfg.Language)
	fmt.Fprintf(w, "  PID file: %s\n", s.cfg.PIDFile)
	fmt.Fprintf(w, "  Quit:     Ctrl+C or speech2text -stop\n")
}

func (s *Service) chordDisplay() string {
	if s.chord.Key != 0 {
		return s.chord.String()
	}
	if c, err := hotkey.ParseChord(s.cfg.Hotkey); err == nil {
		return c.String()
	}
	return s.cfg.Hotkey
}
