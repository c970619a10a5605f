package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordToggle(false)
	m.RecordToggle(false)
	m.RecordToggle(true)
	m.RecordSession(OutcomeTranscribed, 3*time.Second)
	m.RecordSession(OutcomeNoAudio, 0)
	m.RecordSession(OutcomeTranscribed, time.Second)
	m.RecordInjectionFailure()
	m.SetState(2)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"toggles", testutil.ToFloat64(m.Toggles), 3},
		{"ignored toggles", testutil.ToFloat64(m.IgnoredToggles), 1},
		{"transcribed sessions", testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeTranscribed)), 2},
		{"empty sessions", testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeNoAudio)), 1},
		{"injection failures", testutil.ToFloat64(m.InjectionFailures), 1},
		{"state", testutil.ToFloat64(m.State), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordTranscription(250 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"speech2text_transcription_duration_seconds_count 1",
		"speech2text_toggles_total 0",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.RecordToggle(false)
	if got := testutil.ToFloat64(b.Toggles); got != 0 {
		t.Errorf("second registry saw %v toggles, want 0", got)
	}
}
