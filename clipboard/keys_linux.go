//go:build linux

package clipboard

import (
	"time"

	"github.com/micmonay/keybd_event"
)

func setPasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
}

// settleKeyboard waits for the uinput device to be registered; keys sent
// earlier are dropped.
func settleKeyboard() {
	time.Sleep(2 * time.Second)
}
