// Package stt provides speech-to-text engines and the service that turns
// one recorded WAV session into pasteable text.
package stt

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrModelNotFound is returned when the model file is missing and may not be downloaded.
var ErrModelNotFound = errors.New("stt: model not found")

// ErrBinaryNotFound is returned when the whisper.cpp CLI cannot be located.
var ErrBinaryNotFound = errors.New("stt: whisper.cpp binary not found")

// Segment is one recognized span of speech.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Request is the input of one engine invocation.
type Request struct {
	Samples    []float32 // mono PCM in [-1, 1]
	SampleRate int
	Language   string
	BeamSize   int
}

// Engine is a speech recognizer backend.
type Engine interface {
	// Name returns the engine identifier used in the configuration.
	Name() string

	// Load prepares heavyweight resources (model files, clients).
	// Service guarantees it is not called again after a success.
	Load(ctx context.Context) error

	// Transcribe returns the recognized segments in chronological order.
	Transcribe(ctx context.Context, req Request) ([]Segment, error)

	// Close releases resources held by the engine.
	Close() error
}

// Registry holds the engines available to this build.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a new engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine to the registry.
func (r *Registry) Register(e Engine) {
	r.engines[e.Name()] = e
}

// Get returns an engine by name, or nil.
func (r *Registry) Get(name string) Engine {
	return r.engines[name]
}

// Names returns the registered engine names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases all engines.
func (r *Registry) Close() error {
	var errs []error
	for _, e := range r.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
