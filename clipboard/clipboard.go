// Package clipboard delivers text to the focused application by placing it
// on the system clipboard and emitting the platform paste chord.
package clipboard

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	atotto "github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// DefaultSettleDelay is the pause between the clipboard write and the paste
// chord, so the clipboard content has propagated before the target reads it.
const DefaultSettleDelay = 100 * time.Millisecond

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// Keyboard emits a key chord. Press holds the modifier then the key,
// Release lets go of the key then the modifier.
type Keyboard interface {
	Press() error
	Release() error
}

// Injector pastes text into the foreground application.
type Injector struct {
	clipboard Clipboard
	keyboard  Keyboard
	delay     time.Duration
	hold      time.Duration
}

// newKeyboard creates the virtual keyboard; replaced in tests.
var newKeyboard = func() (Keyboard, error) {
	return newPasteChord()
}

// New returns an Injector backed by the system clipboard and a virtual
// keyboard sending the paste chord. Without a usable keyboard device
// (on Linux, no write access to /dev/uinput) the text is still copied and
// every Inject reports why the paste chord could not be sent.
func New(delay time.Duration) *Injector {
	kb, err := newKeyboard()
	if err != nil {
		slog.Warn("virtual keyboard unavailable, text will only be copied to the clipboard", "error", err)
		kb = unavailableKeyboard{err: fmt.Errorf("create virtual keyboard: %w", err)}
	}
	inj := NewWithBackends(systemClipboard{}, kb, delay)
	inj.hold = 10 * time.Millisecond
	return inj
}

// NewWithBackends returns an Injector using the given backends.
func NewWithBackends(cb Clipboard, kb Keyboard, delay time.Duration) *Injector {
	if delay < 0 {
		delay = DefaultSettleDelay
	}
	return &Injector{clipboard: cb, keyboard: kb, delay: delay}
}

// Inject copies text to the clipboard and pastes it. Empty text is a no-op.
// A nil error only means the paste was attempted; whether the target
// accepted it cannot be observed.
func (i *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}
	if err := i.clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	time.Sleep(i.delay)

	pressErr := i.keyboard.Press()
	if i.hold > 0 {
		time.Sleep(i.hold)
	}
	// Release even after a failed press so no modifier stays held.
	releaseErr := i.keyboard.Release()
	if err := errors.Join(pressErr, releaseErr); err != nil {
		return fmt.Errorf("send paste chord: %w", err)
	}
	return nil
}

// unavailableKeyboard fails every paste chord with the creation error.
type unavailableKeyboard struct{ err error }

func (k unavailableKeyboard) Press() error { return k.err }
func (unavailableKeyboard) Release() error { return nil }

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if atotto.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return atotto.WriteAll(text)
}

func newPasteChord() (*keybd_event.KeyBonding, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	settleKeyboard()
	kb.SetKeys(keybd_event.VK_V)
	setPasteModifier(&kb)
	return &kb, nil
}
