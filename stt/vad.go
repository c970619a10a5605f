package stt

import (
	"math"
	"time"
)

// VADFilter is a frame-wise RMS voice activity gate. Frames whose RMS does
// not exceed Threshold are dropped unless they lie within Padding of a
// voiced frame, so word onsets and tails survive.
type VADFilter struct {
	Threshold float32
	Frame     time.Duration
	Padding   time.Duration
}

// DefaultVADFilter returns the filter used for dictation.
func DefaultVADFilter() *VADFilter {
	return &VADFilter{
		Threshold: 0.01,
		Frame:     30 * time.Millisecond,
		Padding:   300 * time.Millisecond,
	}
}

// Filter returns the voiced portion of samples. The result is empty when
// no frame exceeds the threshold.
func (f *VADFilter) Filter(samples []float32, sampleRate int) []float32 {
	frameLen := int(f.Frame.Seconds() * float64(sampleRate))
	if frameLen <= 0 || len(samples) == 0 {
		return samples
	}

	frames := (len(samples) + frameLen - 1) / frameLen
	pad := int(math.Ceil(float64(f.Padding) / float64(f.Frame)))

	keep := make([]bool, frames)
	voiced := 0
	for i := 0; i < frames; i++ {
		if calculateRMS(frame(samples, i, frameLen)) <= f.Threshold {
			continue
		}
		voiced++
		for j := max(0, i-pad); j <= min(frames-1, i+pad); j++ {
			keep[j] = true
		}
	}
	if voiced == 0 {
		return nil
	}

	out := make([]float32, 0, len(samples))
	for i, k := range keep {
		if k {
			out = append(out, frame(samples, i, frameLen)...)
		}
	}
	return out
}

func frame(samples []float32, i, frameLen int) []float32 {
	start := i * frameLen
	end := min(start+frameLen, len(samples))
	return samples[start:end]
}

// calculateRMS calculates the root mean square of audio samples.
func calculateRMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
