package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/speech2text/internal/metrics"
)

// Operator-facing status messages.
const (
	MsgRecordingStarted    = "recording started"
	MsgRecordingStopped    = "recording stopped"
	MsgRecordingInProgress = "recording in progress"
	MsgNoAudio             = "no audio captured"
	MsgNoSpeech            = "no speech recognized"
	MsgRecognized          = "recognized text"
	MsgStillProcessing     = "still processing, toggle ignored"
	MsgStartFailed         = "start recording"
	MsgSessionFailed       = "transcription session failed"
	MsgPasteFailed         = "paste text"
)

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recorder captures one session of microphone audio.
type Recorder interface {
	Start() error
	// Stop returns the session as WAV, or nil when nothing was captured.
	Stop() ([]byte, error)
	Duration() time.Duration
}

// Transcriber turns WAV audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Injector pastes text into the focused application.
type Injector interface {
	Inject(text string) error
}

// Reporter receives operator-facing status updates.
type Reporter interface {
	Status(msg string, args ...any)
	Failure(msg string, err error, args ...any)
}

// Metrics records session activity.
type Metrics interface {
	RecordToggle(ignored bool)
	RecordSession(outcome string, recorded time.Duration)
	RecordTranscription(d time.Duration)
	RecordInjectionFailure()
	SetState(state int)
}

// Session is the dictation state machine: Idle -> Recording -> Processing
// -> Idle. The hotkey listener calls Toggle on a new goroutine per press;
// the stop/transcribe/paste pipeline runs on the goroutine of the press
// that ended the recording.
type Session struct {
	rec     Recorder
	stt     Transcriber
	inj     Injector
	report  Reporter
	metrics Metrics

	// toggleMu serializes toggles. It is held for the whole pipeline, so a
	// concurrent toggle uses TryLock and is dropped instead of queued.
	toggleMu sync.Mutex

	stateMu sync.Mutex
	state   State
	id      string // current session, for log correlation
}

// NewSession creates an idle session. m may be nil.
func NewSession(rec Recorder, stt Transcriber, inj Injector, report Reporter, m Metrics) *Session {
	if m == nil {
		m = nopMetrics{}
	}
	return &Session{rec: rec, stt: stt, inj: inj, report: report, metrics: m}
}

// State returns the current state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	s.metrics.SetState(int(st))
}

func (s *Session) sessionID() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.id
}

// Toggle starts a recording when idle and finishes it when recording.
// While a recording is being processed the toggle is reported and ignored.
// Session failures are reported, never returned.
func (s *Session) Toggle(ctx context.Context) {
	if !s.toggleMu.TryLock() {
		// Another press is still being handled.
		s.metrics.RecordToggle(true)
		if s.State() == StateProcessing {
			s.report.Status(MsgStillProcessing, "session", s.sessionID())
		} else {
			slog.Debug("toggle dropped, previous toggle still running")
		}
		return
	}
	defer s.toggleMu.Unlock()

	switch s.State() {
	case StateIdle:
		s.metrics.RecordToggle(false)
		s.start()
	case StateRecording:
		s.metrics.RecordToggle(false)
		s.finish(ctx)
	case StateProcessing:
		s.metrics.RecordToggle(true)
		s.report.Status(MsgStillProcessing, "session", s.sessionID())
	}
}

func (s *Session) start() {
	if err := s.rec.Start(); err != nil {
		s.report.Failure(MsgStartFailed, err)
		return
	}

	id := uuid.NewString()
	s.stateMu.Lock()
	s.id = id
	s.stateMu.Unlock()
	s.setState(StateRecording)
	s.report.Status(MsgRecordingStarted, "session", id)
}

// finish runs the pipeline and always returns to Idle, even on panic.
func (s *Session) finish(ctx context.Context) {
	s.setState(StateProcessing)
	id := s.sessionID()
	recorded := s.rec.Duration()

	outcome := metrics.OutcomeError
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in session pipeline", "session", id, "panic", r, "stack", string(debug.Stack()))
			s.report.Failure(MsgSessionFailed, fmt.Errorf("panic: %v", r), "session", id)
			outcome = metrics.OutcomeError
		}
		s.metrics.RecordSession(outcome, recorded)
		s.setState(StateIdle)
	}()

	var err error
	outcome, err = s.process(ctx, id, recorded)
	if err != nil {
		s.report.Failure(MsgSessionFailed, err, "session", id)
	}
}

func (s *Session) process(ctx context.Context, id string, recorded time.Duration) (string, error) {
	wav, err := s.rec.Stop()
	if err != nil {
		return metrics.OutcomeError, fmt.Errorf("stop recording: %w", err)
	}
	s.report.Status(MsgRecordingStopped, "session", id, "duration", recorded.Round(100*time.Millisecond))

	if len(wav) == 0 {
		s.report.Status(MsgNoAudio, "session", id)
		return metrics.OutcomeNoAudio, nil
	}

	start := time.Now()
	text, err := s.stt.Transcribe(ctx, wav)
	s.metrics.RecordTranscription(time.Since(start))
	if err != nil {
		return metrics.OutcomeError, fmt.Errorf("transcribe: %w", err)
	}
	if text == "" {
		s.report.Status(MsgNoSpeech, "session", id)
		return metrics.OutcomeNoSpeech, nil
	}

	s.report.Status(MsgRecognized, "session", id, "text", text,
		"took", time.Since(start).Round(time.Millisecond))
	if err := s.inj.Inject(text); err != nil {
		s.metrics.RecordInjectionFailure()
		s.report.Failure(MsgPasteFailed, err, "session", id)
	}
	return metrics.OutcomeTranscribed, nil
}

// Heartbeat reports an ongoing recording every interval until ctx is done.
// It never changes the session.
func (s *Session) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.State() == StateRecording {
				s.report.Status(MsgRecordingInProgress, "session", s.sessionID(),
					"elapsed", s.rec.Duration().Round(time.Second))
			}
		}
	}
}

// Close discards an active recording so the audio device is released.
// A pipeline still running is left to finish.
func (s *Session) Close() {
	if !s.toggleMu.TryLock() {
		return
	}
	defer s.toggleMu.Unlock()

	if s.State() != StateRecording {
		return
	}
	if _, err := s.rec.Stop(); err != nil {
		slog.Warn("discard recording", "error", err)
	}
	s.setState(StateIdle)
}

type nopMetrics struct{}

func (nopMetrics) RecordToggle(bool) {}
func (nopMetrics) RecordSession(string, time.Duration) {}
func (nopMetrics) RecordTranscription(time.Duration) {}
func (nopMetrics) RecordInjectionFailure() {}
func (nopMetrics) SetState(int) {}
