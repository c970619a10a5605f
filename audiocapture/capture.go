// Package audiocapture records microphone audio for a single dictation
// session and renders it as an in-memory WAV container.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrRunning is returned when starting a buffer that is already recording.
var ErrRunning = errors.New("audiocapture: already recording")

// ErrNotRunning is returned when stopping a buffer that is not recording.
var ErrNotRunning = errors.New("audiocapture: not recording")

// ErrDeviceUnavailable wraps any failure to open or start the capture device.
var ErrDeviceUnavailable = errors.New("audiocapture: device unavailable")

const (
	// DefaultSampleRate is the rate Whisper models expect.
	DefaultSampleRate = 16000
	// Channels is fixed: only mono capture is supported.
	Channels = 1
	// BitDepth of the encoded container.
	BitDepth = 16
)

// Device is the capture backend. onChunk is invoked on the backend's own
// goroutine for every delivered block of float32 samples in [-1, 1].
type Device interface {
	Open(sampleRate, channels int, onChunk func(samples []float32)) (Stream, error)
}

// Stream is an opened capture stream. Stop must not return before the
// backend guarantees that no further callbacks will run.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Buffer accumulates the raw chunks of one recording session.
type Buffer struct {
	device     Device
	sampleRate int

	mu        sync.Mutex
	recording bool
	chunks    [][]float32
	samples   int
	startTime time.Time
	stream    Stream
}

// NewBuffer creates a buffer that records from device at sampleRate.
func NewBuffer(device Device, sampleRate int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Buffer{device: device, sampleRate: sampleRate}
}

// Start clears previously captured audio and opens a new capture stream.
func (b *Buffer) Start() error {
	b.mu.Lock()
	if b.recording || b.stream != nil {
		b.mu.Unlock()
		return ErrRunning
	}
	b.chunks = nil
	b.samples = 0
	b.recording = true
	b.startTime = time.Now()
	b.mu.Unlock()

	stream, err := b.device.Open(b.sampleRate, Channels, b.Append)
	if err != nil {
		b.abort()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		b.abort()
		return fmt.Errorf("%w: start stream: %w", ErrDeviceUnavailable, err)
	}

	b.mu.Lock()
	b.stream = stream
	b.mu.Unlock()

	slog.Debug("audio capture started", "sample_rate", b.sampleRate)
	return nil
}

func (b *Buffer) abort() {
	b.mu.Lock()
	b.recording = false
	b.chunks = nil
	b.samples = 0
	b.mu.Unlock()
}

// Append stores one chunk as delivered by the capture backend. The chunk
// is copied because backends reuse their sample buffers.
func (b *Buffer) Append(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return
	}
	c := make([]float32, len(chunk))
	copy(c, chunk)
	b.chunks = append(b.chunks, c)
	b.samples += len(c)
}

// Stop halts the capture stream and returns the session audio as WAV.
// It returns a nil slice when nothing was captured.
func (b *Buffer) Stop() ([]byte, error) {
	b.mu.Lock()
	if !b.recording {
		b.mu.Unlock()
		return nil, ErrNotRunning
	}
	b.recording = false
	stream := b.stream
	b.mu.Unlock()

	// The stream is halted before the chunks are read; the lock must not be
	// held here since a pending callback may be waiting on it.
	var stopErr error
	if stream != nil {
		stopErr = stream.Stop()
		if err := stream.Close(); err != nil && stopErr == nil {
			stopErr = err
		}
	}

	b.mu.Lock()
	chunks := b.chunks
	total := b.samples
	b.chunks = nil
	b.samples = 0
	b.stream = nil
	b.mu.Unlock()

	if stopErr != nil {
		return nil, fmt.Errorf("stop stream: %w", stopErr)
	}
	if total == 0 {
		return nil, nil
	}

	samples := make([]float32, 0, total)
	for _, c := range chunks {
		samples = append(samples, c...)
	}

	slog.Debug("audio capture stopped", "chunks", len(chunks), "samples", total)
	return EncodeWAV(samples, b.sampleRate)
}

// IsRecording reports whether a capture session is active.
func (b *Buffer) IsRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

// Duration returns the length of the audio captured so far.
func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.samples) * time.Second / time.Duration(b.sampleRate)
}
