// Package hotkey listens for a global key chord and reports each press.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	hook "github.com/robotn/gohook"
)

// ErrInvalidChord is returned by ParseChord for malformed chords.
var ErrInvalidChord = errors.New("hotkey: invalid chord")

// DefaultChord is the toggle chord used when none is configured.
const DefaultChord = "ctrl+shift+d"

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"cmd":     ModSuper,
	"command": ModSuper,
	"super":   ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
}

// ordered for display and for gohook key names
var modifierOrder = []struct {
	mod     Modifier
	display string
	hook    string
}{
	{ModCtrl, "Ctrl", "ctrl"},
	{ModShift, "Shift", "shift"},
	{ModAlt, "Alt", "alt"},
	{ModSuper, "Cmd", "cmd"},
}

// Chord is a set of modifiers plus one character key.
type Chord struct {
	Mods Modifier
	Key  rune // lower case letter or digit
}

// ParseChord parses chords like "ctrl+shift+d" or "<ctrl>+<shift>+d".
// Exactly one character key and at least one modifier are required.
func ParseChord(s string) (Chord, error) {
	var c Chord
	if strings.TrimSpace(s) == "" {
		return c, fmt.Errorf("%w: empty", ErrInvalidChord)
	}

	for _, part := range strings.Split(s, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		name = strings.TrimSuffix(strings.TrimPrefix(name, "<"), ">")
		if name == "" {
			return Chord{}, fmt.Errorf("%w: empty key in %q", ErrInvalidChord, s)
		}

		if mod, ok := modifierNames[name]; ok {
			if c.Mods&mod != 0 {
				return Chord{}, fmt.Errorf("%w: duplicate modifier %q", ErrInvalidChord, name)
			}
			c.Mods |= mod
			continue
		}

		r := []rune(name)
		if len(r) != 1 {
			return Chord{}, fmt.Errorf("%w: unknown key %q", ErrInvalidChord, name)
		}
		if !unicode.IsLetter(r[0]) && !unicode.IsDigit(r[0]) {
			return Chord{}, fmt.Errorf("%w: unsupported key %q", ErrInvalidChord, name)
		}
		if _, ok := hook.Keycode[name]; !ok {
			return Chord{}, fmt.Errorf("%w: unsupported key %q", ErrInvalidChord, name)
		}
		if c.Key != 0 {
			return Chord{}, fmt.Errorf("%w: more than one key in %q", ErrInvalidChord, s)
		}
		c.Key = r[0]
	}

	if c.Key == 0 {
		return Chord{}, fmt.Errorf("%w: no key in %q", ErrInvalidChord, s)
	}
	if c.Mods == 0 {
		return Chord{}, fmt.Errorf("%w: no modifier in %q", ErrInvalidChord, s)
	}
	return c, nil
}

// String returns the display form, e.g. "Ctrl+Shift+D".
func (c Chord) String() string {
	parts := make([]string, 0, 5)
	for _, m := range modifierOrder {
		if c.Mods&m.mod != 0 {
			parts = append(parts, m.display)
		}
	}
	parts = append(parts, strings.ToUpper(string(c.Key)))
	return strings.Join(parts, "+")
}

// hookKeys returns the key names in the form hook.Register expects.
func (c Chord) hookKeys() []string {
	keys := []string{string(c.Key)}
	for _, m := range modifierOrder {
		if c.Mods&m.mod != 0 {
			keys = append(keys, m.hook)
		}
	}
	return keys
}

func (c Chord) keycode() uint16 {
	return hook.Keycode[string(c.Key)]
}
