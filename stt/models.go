package stt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// DefaultModelSize balances accuracy and CPU latency for dictation.
const DefaultModelSize = "small"

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Model sizes and their approximate download sizes.
var modelSizes = map[string]struct {
	File string
	Size int64 // Approximate size in bytes
}{
	"tiny":   {"ggml-tiny.bin", 75 * 1024 * 1024},
	"base":   {"ggml-base.bin", 142 * 1024 * 1024},
	"small":  {"ggml-small.bin", 466 * 1024 * 1024},
	"medium": {"ggml-medium.bin", 1500 * 1024 * 1024},
	"large":  {"ggml-large-v3.bin", 2900 * 1024 * 1024},
}

// ModelStore locates, and optionally downloads, a ggml whisper model.
type ModelStore struct {
	Size         string // "tiny", "base", "small", "medium", "large"
	Dir          string // Directory holding models
	Path         string // Explicit model file, overrides Size and Dir
	AutoDownload bool
	BaseURL      string // Download mirror, defaults to the ggml model repository

	client *http.Client
}

// NewModelStore validates the size and fills in the default directory.
func NewModelStore(size, dir, path string, autoDownload bool) (*ModelStore, error) {
	if size == "" {
		size = DefaultModelSize
	}
	if path == "" {
		if _, ok := modelSizes[size]; !ok {
			return nil, fmt.Errorf("invalid model size: %s", size)
		}
	}
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(homeDir, ".speech2text", "models")
	}
	return &ModelStore{
		Size:         size,
		Dir:          dir,
		Path:         path,
		AutoDownload: autoDownload,
		BaseURL:      modelBaseURL,
		client:       http.DefaultClient,
	}, nil
}

// ModelPath returns where the model file is expected.
func (m *ModelStore) ModelPath() string {
	if m.Path != "" {
		return m.Path
	}
	return filepath.Join(m.Dir, modelSizes[m.Size].File)
}

// Ensure returns the model path, downloading the model first if it is
// missing and AutoDownload is set.
func (m *ModelStore) Ensure(ctx context.Context) (string, error) {
	path := m.ModelPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat model: %w", err)
	}

	if !m.AutoDownload || m.Path != "" {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}

	info := modelSizes[m.Size]
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}
	slog.Info("downloading speech model", "size", m.Size, "path", path)
	if err := m.download(ctx, m.BaseURL+info.File, path, info.Size); err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	return path, nil
}

func (m *ModelStore) download(ctx context.Context, url, dst string, expectedSize int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		expectedSize = resp.ContentLength
	}

	tmpPath := dst + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	var downloaded int64
	buf := make([]byte, 32*1024)
	lastProgress := 0

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write file: %w", werr)
			}
			downloaded += int64(n)

			if expectedSize > 0 {
				pct := int(downloaded * 100 / expectedSize)
				if pct >= lastProgress+10 {
					lastProgress = pct - pct%10
					slog.Info("model download progress", "percent", lastProgress)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
	}

	if resp.ContentLength > 0 && downloaded != resp.ContentLength {
		return fmt.Errorf("incomplete download: got %d of %d bytes", downloaded, resp.ContentLength)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
