package stt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"go.aimuz.me/speech2text/audiocapture"
)

// WhisperLocal runs the whisper.cpp CLI. Audio is streamed over stdin so
// it never touches the disk.
type WhisperLocal struct {
	models *ModelStore
	binCfg string // configured binary path, searched for when empty

	mu        sync.RWMutex
	binPath   string
	modelPath string
}

// NewWhisperLocal creates a whisper.cpp CLI engine. binPath may be empty.
func NewWhisperLocal(models *ModelStore, binPath string) *WhisperLocal {
	return &WhisperLocal{models: models, binCfg: binPath}
}

func (w *WhisperLocal) Name() string { return "whisper-cli" }

// Load locates the binary and the model, downloading the model if allowed.
func (w *WhisperLocal) Load(ctx context.Context) error {
	binPath := w.binCfg
	if binPath != "" {
		if _, err := os.Stat(binPath); err != nil {
			return fmt.Errorf("%w: %s", ErrBinaryNotFound, binPath)
		}
	} else if binPath = findWhisperBinary(); binPath == "" {
		return fmt.Errorf("%w: install whisper.cpp (e.g. brew install whisper-cpp)", ErrBinaryNotFound)
	}

	modelPath, err := w.models.Ensure(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.binPath = binPath
	w.modelPath = modelPath
	w.mu.Unlock()
	return nil
}

// Transcribe pipes the request as WAV into whisper-cli and parses the
// plain-text segments it prints.
func (w *WhisperLocal) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	w.mu.RLock()
	binPath, modelPath := w.binPath, w.modelPath
	w.mu.RUnlock()
	if binPath == "" {
		return nil, fmt.Errorf("whisper-cli is not loaded")
	}

	wavData, err := audiocapture.EncodeWAV(req.Samples, req.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("convert to WAV: %w", err)
	}

	args := []string{
		"-m", modelPath,
		"-f", "-", // read audio from stdin
		"-nt", // no timestamps
		"-np", // no prints besides the result
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}
	if req.BeamSize > 0 {
		args = append(args, "-bs", strconv.Itoa(req.BeamSize))
	}

	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Stdin = bytes.NewReader(wavData)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper-cli failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseCLIOutput(stdout.String()), nil
}

// parseCLIOutput turns every non-empty output line into a segment.
func parseCLIOutput(out string) []Segment {
	var segments []Segment
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			segments = append(segments, Segment{Text: line})
		}
	}
	return segments
}

func (w *WhisperLocal) Close() error {
	return nil
}

func findWhisperBinary() string {
	// Common binary names - whisper-cli is the Homebrew name
	names := []string{"whisper-cli", "whisper-cpp", "whisper"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp", "build", "bin"),
	}
	if runtime.GOOS == "windows" {
		for i, name := range names {
			names[i] = name + ".exe"
		}
	}

	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
