package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestParseCLIOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{"empty", "", nil},
		{"single line", " Hallo Welt\n", []string{"Hallo Welt"}},
		{"blank lines skipped", "\n Eins\n\n  Zwei  \n\n", []string{"Eins", "Zwei"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCLIOutput(tt.out)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d segments, want %d", len(got), len(tt.want))
			}
			for i, seg := range got {
				if seg.Text != tt.want[i] {
					t.Errorf("segment %d = %q, want %q", i, seg.Text, tt.want[i])
				}
			}
		})
	}
}

func TestWhisperLocal_MissingBinary(t *testing.T) {
	models := &ModelStore{Path: filepath.Join(t.TempDir(), "model.bin")}
	w := NewWhisperLocal(models, filepath.Join(t.TempDir(), "no-such-whisper"))

	if err := w.Load(context.Background()); !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("Load() = %v, want ErrBinaryNotFound", err)
	}
}

func TestWhisperLocal_MissingModel(t *testing.T) {
	bin := writeFakeWhisper(t, "cat >/dev/null\n")
	models := &ModelStore{Path: filepath.Join(t.TempDir(), "model.bin")}
	w := NewWhisperLocal(models, bin)

	if err := w.Load(context.Background()); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Load() = %v, want ErrModelNotFound", err)
	}
}

func TestWhisperLocal_Transcribe(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	bin := writeFakeWhisper(t, `echo "$@" > `+argsFile+`
n=$(wc -c | tr -d ' ')
[ "$n" -gt 44 ] || exit 3
echo " Hallo"
echo ""
echo " Welt"
`)
	modelPath := filepath.Join(dir, "ggml-small.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0644); err != nil {
		t.Fatal(err)
	}

	w := NewWhisperLocal(&ModelStore{Path: modelPath}, bin)
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	segments, err := w.Transcribe(context.Background(), Request{
		Samples:    makeSpeech(1600, 0.3),
		SampleRate: 16000,
		Language:   "de",
		BeamSize:   5,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := JoinSegments(segments); got != "Hallo Welt" {
		t.Errorf("text = %q, want %q", got, "Hallo Welt")
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"-m " + modelPath, "-f -", "-l de", "-bs 5"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", strings.TrimSpace(string(args)), want)
		}
	}
}

func TestWhisperLocal_NotLoaded(t *testing.T) {
	w := NewWhisperLocal(&ModelStore{}, "")
	if _, err := w.Transcribe(context.Background(), Request{SampleRate: 16000}); err == nil {
		t.Fatal("expected error before Load")
	}
}

func TestWhisperLocal_ProcessFailure(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeWhisper(t, "cat >/dev/null\necho 'failed to load model' >&2\nexit 1\n")
	modelPath := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0644); err != nil {
		t.Fatal(err)
	}

	w := NewWhisperLocal(&ModelStore{Path: modelPath}, bin)
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err := w.Transcribe(context.Background(), Request{Samples: makeSpeech(160, 0.3), SampleRate: 16000})
	if err == nil || !strings.Contains(err.Error(), "failed to load model") {
		t.Fatalf("Transcribe() = %v, want stderr in error", err)
	}
}

func writeFakeWhisper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "whisper-cli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}
