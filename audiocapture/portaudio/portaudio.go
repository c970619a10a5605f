// Package portaudio provides the microphone backend for audiocapture.
// It is the only package of the module that links libportaudio.
package portaudio

import (
	"fmt"
	"log/slog"

	pa "github.com/gordonklaus/portaudio"

	"go.aimuz.me/speech2text/audiocapture"
)

// DefaultFramesPerBuffer is the callback block size, 64ms at 16kHz.
const DefaultFramesPerBuffer = 1024

// Init initializes PortAudio. The returned func terminates it and must be
// called once on shutdown.
func Init() (func(), error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return func() {
		if err := pa.Terminate(); err != nil {
			slog.Warn("terminate portaudio", "error", err)
		}
	}, nil
}

// Device captures from the default input device.
type Device struct {
	// FramesPerBuffer is the callback block size, DefaultFramesPerBuffer if zero.
	FramesPerBuffer int
}

var _ audiocapture.Device = Device{}

// Open implements audiocapture.Device. PortAudio's Stop blocks until the
// callback has returned for the last time.
func (d Device) Open(sampleRate, channels int, onChunk func(samples []float32)) (audiocapture.Stream, error) {
	frames := d.FramesPerBuffer
	if frames <= 0 {
		frames = DefaultFramesPerBuffer
	}

	stream, err := pa.OpenDefaultStream(channels, 0, float64(sampleRate), frames, func(in []float32) {
		onChunk(in)
	})
	if err != nil {
		return nil, fmt.Errorf("open default input stream: %w", err)
	}
	return stream, nil
}
