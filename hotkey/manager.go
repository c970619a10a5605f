package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// Listener modes.
const (
	// ModeAuto registers the chord with gohook and falls back to the raw
	// event loop if registration fails.
	ModeAuto = "auto"
	// ModeRaw always uses the raw event loop.
	ModeRaw = "raw"
)

// stopTimeout bounds how long Start waits for the hook goroutine to drain
// after hook.End.
const stopTimeout = 2 * time.Second

// Manager runs the global keyboard hook. Each chord press invokes the
// callback on a goroutine of its own, so the event loop keeps draining
// while a callback is busy and a press made meanwhile is delivered at once
// instead of after the busy callback returns.
type Manager struct {
	chord    Chord
	mode     string
	onToggle func()

	mu     sync.Mutex
	cancel context.CancelFunc

	inflight sync.WaitGroup
}

// NewManager creates a listener for chord. mode is ModeAuto or ModeRaw.
func NewManager(chord Chord, mode string, onToggle func()) (*Manager, error) {
	switch mode {
	case "":
		mode = ModeAuto
	case ModeAuto, ModeRaw:
	default:
		return nil, fmt.Errorf("invalid hotkey mode %q", mode)
	}
	return &Manager{chord: chord, mode: mode, onToggle: onToggle}, nil
}

// Start listens until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("hotkey listener already running")
	}
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
	}()

	if m.mode == ModeAuto {
		err := m.runRegistered(ctx)
		if err == nil {
			return nil
		}
		slog.Warn("hotkey registration failed, using raw key listener", "error", err)
	}
	return m.runRaw(ctx)
}

// Stop ends a running listener. It is safe to call at any time.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) runRegistered(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register chord: %v", r)
		}
	}()

	hook.Register(hook.KeyDown, m.chord.hookKeys(), func(hook.Event) {
		m.fire()
	})
	done := hook.Process(hook.Start())
	slog.Info("hotkey registered", "chord", m.chord.String(), "mode", ModeAuto)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	hook.End()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		slog.Warn("hotkey listener did not stop in time")
	}
	return nil
}

func (m *Manager) runRaw(ctx context.Context) error {
	events := hook.Start()
	slog.Info("hotkey listener started", "chord", m.chord.String(), "mode", ModeRaw)

	// hook.End closes the event channel, so it runs only when we stop.
	if m.loop(ctx, events) {
		hook.End()
	}
	return nil
}

// loop feeds events to a fresh Tracker until the channel closes or ctx is
// done. It reports whether ctx ended the loop.
func (m *Manager) loop(ctx context.Context, events <-chan hook.Event) bool {
	tracker := NewTracker(m.chord)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			m.handle(tracker, ev)
		case <-ctx.Done():
			return true
		}
	}
}

// handle maps one raw hook event into the tracker. gohook reports a
// physical press as KeyHold and a release as KeyUp; KeyDown is the typed
// character and is ignored here.
func (m *Manager) handle(t *Tracker, ev hook.Event) {
	var down bool
	switch ev.Kind {
	case hook.KeyHold:
		down = true
	case hook.KeyUp:
		down = false
	default:
		return
	}
	if t.Handle(down, ev.Keycode) {
		m.fire()
	}
}

func (m *Manager) fire() {
	slog.Debug("hotkey pressed", "chord", m.chord.String())
	if m.onToggle == nil {
		return
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.onToggle()
	}()
}

// Wait blocks until every dispatched callback has returned or timeout
// elapses. It reports whether all callbacks returned.
func (m *Manager) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
