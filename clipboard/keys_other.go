//go:build !darwin && !linux

package clipboard

import "github.com/micmonay/keybd_event"

func setPasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
}

func settleKeyboard() {}
