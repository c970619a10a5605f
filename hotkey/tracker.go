package hotkey

// libuiohook virtual key codes of the modifier keys, as reported in
// hook.Event.Keycode.
const (
	vcShiftL   = 0x002A
	vcShiftR   = 0x0036
	vcControlL = 0x001D
	vcControlR = 0x0E1D
	vcAltL     = 0x0038
	vcAltR     = 0x0E38
	vcMetaL    = 0x0E5B
	vcMetaR    = 0x0E5C
)

var modifierCodes = map[uint16]Modifier{
	vcShiftL:   ModShift,
	vcShiftR:   ModShift,
	vcControlL: ModCtrl,
	vcControlR: ModCtrl,
	vcAltL:     ModAlt,
	vcAltR:     ModAlt,
	vcMetaL:    ModSuper,
	vcMetaR:    ModSuper,
}

// Tracker detects a chord from raw key transitions. It is owned by the
// listener goroutine and is not safe for concurrent use.
type Tracker struct {
	chord   Chord
	key     uint16
	pressed map[uint16]bool // modifier keys currently held
	keyDown bool            // chord key held, suppresses auto-repeat
}

// NewTracker returns a Tracker for chord with nothing pressed.
func NewTracker(chord Chord) *Tracker {
	return &Tracker{
		chord:   chord,
		key:     chord.keycode(),
		pressed: make(map[uint16]bool),
	}
}

// Handle feeds one key transition and reports whether the chord fired.
// Keys that are neither modifiers nor the chord key are ignored.
func (t *Tracker) Handle(down bool, code uint16) bool {
	if _, ok := modifierCodes[code]; ok {
		if down {
			t.pressed[code] = true
		} else {
			delete(t.pressed, code)
		}
		return false
	}

	if code != t.key {
		return false
	}
	if !down {
		t.keyDown = false
		return false
	}
	if t.keyDown {
		return false
	}
	t.keyDown = true
	return t.mods() == t.chord.Mods
}

// Reset forgets all pressed keys.
func (t *Tracker) Reset() {
	clear(t.pressed)
	t.keyDown = false
}

func (t *Tracker) mods() Modifier {
	var m Modifier
	for code := range t.pressed {
		m |= modifierCodes[code]
	}
	return m
}
