//go:build whisper

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperNative runs whisper.cpp in-process through its Go bindings.
// Build with -tags whisper and libwhisper available to cgo.
type WhisperNative struct {
	models *ModelStore

	mu    sync.Mutex // one inference at a time per model
	model whisper.Model
}

// NewWhisperNative creates an in-process whisper.cpp engine.
func NewWhisperNative(models *ModelStore) *WhisperNative {
	return &WhisperNative{models: models}
}

func (w *WhisperNative) Name() string { return "whisper" }

func (w *WhisperNative) Load(ctx context.Context) error {
	path, err := w.models.Ensure(ctx)
	if err != nil {
		return err
	}
	model, err := whisper.New(path)
	if err != nil {
		return fmt.Errorf("load whisper model %q: %w", path, err)
	}

	w.mu.Lock()
	w.model = model
	w.mu.Unlock()
	return nil
}

func (w *WhisperNative) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, errors.New("whisper model not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}
	if req.Language != "" {
		if err := wctx.SetLanguage(req.Language); err != nil {
			return nil, fmt.Errorf("set language %q: %w", req.Language, err)
		}
	}
	if req.BeamSize > 0 {
		wctx.SetBeamSize(req.BeamSize)
	}

	if err := wctx.Process(req.Samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("process audio: %w", err)
	}

	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("next segment: %w", err)
		}
		segments = append(segments, Segment{Text: seg.Text, Start: seg.Start, End: seg.End})
	}
	return segments, nil
}

func (w *WhisperNative) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

// RegisterNative adds the in-process engine to r.
func RegisterNative(r *Registry, models *ModelStore) {
	r.Register(NewWhisperNative(models))
}
