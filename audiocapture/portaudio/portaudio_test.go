package portaudio

import (
	"os"
	"testing"
	"time"

	"go.aimuz.me/speech2text/audiocapture"
)

func TestDevice_Record(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hardware test in short mode")
	}
	if os.Getenv("SPEECH2TEXT_AUDIO_TEST") == "" {
		t.Skip("set SPEECH2TEXT_AUDIO_TEST=1 to record from the default input device")
	}

	terminate, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer terminate()

	b := audiocapture.NewBuffer(Device{}, audiocapture.DefaultSampleRate)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	data, err := b.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("no audio captured from the default input device")
	}
}
