package audiocapture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned by DecodeWAV for data that is not a PCM WAV stream.
var ErrInvalidWAV = errors.New("audiocapture: invalid wav data")

// EncodeWAV converts float32 samples in [-1, 1] into a mono 16-bit PCM WAV
// container. Samples are clamped, scaled by 32767 and truncated; NaN is
// written as silence.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: invalid sample rate %d", sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		if math.IsNaN(float64(s)) {
			s = 0
		} else if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(int16(s * 32767))
	}

	out := &memFile{buf: make([]byte, 0, 44+len(samples)*2)}
	enc := wav.NewEncoder(out, sampleRate, BitDepth, Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.buf, nil
}

// DecodeWAV parses a mono 16-bit PCM WAV container back into float32
// samples and returns them together with the sample rate.
func DecodeWAV(data []byte) ([]float32, int, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, ErrInvalidWAV
	}
	if d.NumChans != Channels || d.BitDepth != BitDepth {
		return nil, 0, fmt.Errorf("%w: want %d channel %d-bit, got %d channel %d-bit",
			ErrInvalidWAV, Channels, BitDepth, d.NumChans, d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read wav samples: %w", err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768
	}
	return samples, int(d.SampleRate), nil
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes once all samples are written.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
