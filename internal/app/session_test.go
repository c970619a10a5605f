package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"go.aimuz.me/speech2text/internal/metrics"
)

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	wav      []byte
	starts   int
	stops    int
}

func (r *fakeRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return r.startErr
}

func (r *fakeRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return r.wav, r.stopErr
}

func (r *fakeRecorder) Duration() time.Duration { return 2 * time.Second }

type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	panicV  any
	block   chan struct{} // when set, Transcribe waits for it to close
	entered chan struct{}
	calls   int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.text, f.err
}

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeInjector struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeInjector) Inject(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

type fakeReporter struct {
	mu       sync.Mutex
	statuses []string
	failures []string
	notify   chan string
}

func (f *fakeReporter) Status(msg string, _ ...any) {
	f.mu.Lock()
	f.statuses = append(f.statuses, msg)
	ch := f.notify
	f.mu.Unlock()
	if ch != nil {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (f *fakeReporter) Failure(msg string, _ error, _ ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, msg)
}

func (f *fakeReporter) has(msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.statuses, msg)
}

func (f *fakeReporter) failed(msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.failures, msg)
}

type fixture struct {
	rec  *fakeRecorder
	stt  *fakeTranscriber
	inj  *fakeInjector
	rep  *fakeReporter
	sess *Session
}

func newFixture(m Metrics) *fixture {
	f := &fixture{
		rec: &fakeRecorder{wav: []byte("RIFF....WAVE")},
		stt: &fakeTranscriber{text: "hallo welt"},
		inj: &fakeInjector{},
		rep: &fakeReporter{},
	}
	f.sess = NewSession(f.rec, f.stt, f.inj, f.rep, m)
	return f
}

func TestSession_FullCycle(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	if got := f.sess.State(); got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}
	f.sess.Toggle(ctx)
	if got := f.sess.State(); got != StateRecording {
		t.Fatalf("after first toggle state = %v, want recording", got)
	}
	f.sess.Toggle(ctx)
	if got := f.sess.State(); got != StateIdle {
		t.Fatalf("after second toggle state = %v, want idle", got)
	}

	if !slices.Equal(f.inj.texts, []string{"hallo welt"}) {
		t.Errorf("injected %q, want exactly one \"hallo welt\"", f.inj.texts)
	}
	for _, msg := range []string{MsgRecordingStarted, MsgRecordingStopped, MsgRecognized} {
		if !f.rep.has(msg) {
			t.Errorf("status %q not reported", msg)
		}
	}
}

func TestSession_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(f *fixture)
		wantCalls   int
		wantInject  int
		wantStatus  string
		wantFailure string
	}{
		{
			name:       "empty audio skips transcription and paste",
			setup:      func(f *fixture) { f.rec.wav = nil },
			wantCalls:  0,
			wantInject: 0,
			wantStatus: MsgNoAudio,
		},
		{
			name:       "no speech skips paste",
			setup:      func(f *fixture) { f.stt.text = "" },
			wantCalls:  1,
			wantInject: 0,
			wantStatus: MsgNoSpeech,
		},
		{
			name:        "recognition failure",
			setup:       func(f *fixture) { f.stt.err = errors.New("model crashed") },
			wantCalls:   1,
			wantInject:  0,
			wantFailure: MsgSessionFailed,
		},
		{
			name:        "panic in recognizer",
			setup:       func(f *fixture) { f.stt.panicV = "boom" },
			wantCalls:   1,
			wantInject:  0,
			wantFailure: MsgSessionFailed,
		},
		{
			name:        "stop failure",
			setup:       func(f *fixture) { f.rec.stopErr = errors.New("device lost") },
			wantCalls:   0,
			wantInject:  0,
			wantFailure: MsgSessionFailed,
		},
		{
			name:        "paste failure is reported",
			setup:       func(f *fixture) { f.inj.err = errors.New("no display") },
			wantCalls:   1,
			wantInject:  1,
			wantFailure: MsgPasteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			tt.setup(f)
			ctx := context.Background()

			f.sess.Toggle(ctx)
			f.sess.Toggle(ctx)

			if got := f.sess.State(); got != StateIdle {
				t.Errorf("state = %v, want idle", got)
			}
			if got := f.stt.Calls(); got != tt.wantCalls {
				t.Errorf("transcribe calls = %d, want %d", got, tt.wantCalls)
			}
			if got := len(f.inj.texts); got != tt.wantInject {
				t.Errorf("inject calls = %d, want %d", got, tt.wantInject)
			}
			if tt.wantStatus != "" && !f.rep.has(tt.wantStatus) {
				t.Errorf("status %q not reported", tt.wantStatus)
			}
			if tt.wantFailure != "" && !f.rep.failed(tt.wantFailure) {
				t.Errorf("failure %q not reported", tt.wantFailure)
			}

			// The session is usable again.
			f.sess.Toggle(ctx)
			if got := f.sess.State(); got != StateRecording {
				t.Errorf("state after recovery toggle = %v, want recording", got)
			}
		})
	}
}

func TestSession_StartFailureStaysIdle(t *testing.T) {
	f := newFixture(nil)
	f.rec.startErr = errors.New("no input device")

	f.sess.Toggle(context.Background())

	if got := f.sess.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if !f.rep.failed(MsgStartFailed) {
		t.Error("start failure not reported")
	}
	if f.rep.has(MsgRecordingStarted) {
		t.Error("recording started reported after failure")
	}
}

func TestSession_ToggleWhileProcessingIgnored(t *testing.T) {
	f := newFixture(nil)
	f.stt.block = make(chan struct{})
	f.stt.entered = make(chan struct{})
	ctx := context.Background()

	f.sess.Toggle(ctx) // start

	done := make(chan struct{})
	go func() {
		f.sess.Toggle(ctx) // stop, blocks in Transcribe
		close(done)
	}()

	select {
	case <-f.stt.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("transcription never started")
	}
	if got := f.sess.State(); got != StateProcessing {
		t.Fatalf("state = %v, want processing", got)
	}

	f.sess.Toggle(ctx)
	f.sess.Toggle(ctx)
	if got := f.sess.State(); got != StateProcessing {
		t.Errorf("state changed to %v during processing", got)
	}
	if !f.rep.has(MsgStillProcessing) {
		t.Error("still processing not reported")
	}

	close(f.stt.block)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	if got := f.sess.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if got := f.stt.Calls(); got != 1 {
		t.Errorf("transcribe calls = %d, want 1 (ignored toggles must not queue)", got)
	}
	if f.rec.starts != 1 {
		t.Errorf("recorder started %d times, want 1", f.rec.starts)
	}
}

func TestSession_Metrics(t *testing.T) {
	m := metrics.New()
	f := newFixture(m)
	ctx := context.Background()

	f.sess.Toggle(ctx)
	f.sess.Toggle(ctx)
	f.rec.wav = nil
	f.sess.Toggle(ctx)
	f.sess.Toggle(ctx)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"toggles", testutil.ToFloat64(m.Toggles), 4},
		{"transcribed", testutil.ToFloat64(m.Sessions.WithLabelValues(metrics.OutcomeTranscribed)), 1},
		{"no audio", testutil.ToFloat64(m.Sessions.WithLabelValues(metrics.OutcomeNoAudio)), 1},
		{"state", testutil.ToFloat64(m.State), float64(StateIdle)},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSession_Heartbeat(t *testing.T) {
	f := newFixture(nil)
	f.rep.notify = make(chan string, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.sess.Heartbeat(ctx, 5*time.Millisecond)

	// Idle: no heartbeat output.
	time.Sleep(30 * time.Millisecond)
	if f.rep.has(MsgRecordingInProgress) {
		t.Fatal("heartbeat reported while idle")
	}

	f.sess.Toggle(context.Background())
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-f.rep.notify:
			if msg != MsgRecordingInProgress {
				continue
			}
			if got := f.sess.State(); got != StateRecording {
				t.Errorf("heartbeat changed state to %v", got)
			}
			return
		case <-deadline:
			t.Fatal("no heartbeat while recording")
		}
	}
}

func TestSession_CloseDiscardsRecording(t *testing.T) {
	f := newFixture(nil)
	f.sess.Toggle(context.Background())

	f.sess.Close()

	if got := f.sess.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if f.rec.stops != 1 {
		t.Errorf("recorder stopped %d times, want 1", f.rec.stops)
	}
	if f.stt.Calls() != 0 || len(f.inj.texts) != 0 {
		t.Error("Close ran the transcription pipeline")
	}

	f.sess.Close() // idle: no-op
	if f.rec.stops != 1 {
		t.Errorf("second Close stopped the recorder again")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateRecording, "recording"},
		{StateProcessing, "processing"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
