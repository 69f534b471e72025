// Package hotkey binds global key combinations to the tool activations. One
// gohook event loop serves every binding.
package hotkey

import (
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Binding ties a combo string like "Ctrl+Shift+M" to an action.
type Binding struct {
	Combo  string
	Action func()
}

type comboState struct {
	combo  string
	action func()
	keys   []keyState
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Listen starts the global keyboard hook and fires each binding's action
// when its full combination is held. Invalid combos are logged and skipped;
// the loop runs for the process lifetime.
func Listen(bindings ...Binding) {
	var combos []*comboState
	for _, b := range bindings {
		cs := &comboState{combo: b.Combo, action: b.Action}
		for _, name := range parseCombo(b.Combo) {
			rawcodes := keyNameToRawcodes(name)
			if len(rawcodes) == 0 {
				log.Printf("HOTKEY: unknown key %q in %q", name, b.Combo)
				continue
			}
			cs.keys = append(cs.keys, keyState{name: name, rawcodes: rawcodes})
		}
		if len(cs.keys) == 0 {
			log.Printf("HOTKEY: no usable keys in %q, binding skipped", b.Combo)
			continue
		}
		combos = append(combos, cs)
	}
	if len(combos) == 0 {
		log.Printf("HOTKEY: nothing to bind")
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("HOTKEY: gohook.Start() returned nil channel")
			return
		}
		log.Printf("HOTKEY: listening for %d binding(s)", len(combos))

		var mu sync.Mutex
		for ev := range evChan {
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
				continue
			}
			down := ev.Kind == gohook.KeyDown

			var fire []func()
			mu.Lock()
			for _, cs := range combos {
				if cs.apply(ev.Rawcode, down) {
					log.Printf("HOTKEY: %s activated", cs.combo)
					fire = append(fire, cs.action)
				}
			}
			mu.Unlock()

			// Actions run outside the lock; they may take a while.
			for _, fn := range fire {
				if fn != nil {
					fn()
				}
			}
		}
		log.Printf("HOTKEY: event channel closed")
	}()
}

// apply updates one combo's key tracking for a key event and reports whether
// the full combination just completed. A completed combo resets itself so
// holding the keys does not retrigger.
func (cs *comboState) apply(rawcode uint16, down bool) bool {
	matched := false
	for i := range cs.keys {
		for _, rc := range cs.keys[i].rawcodes {
			if rawcode == rc {
				cs.keys[i].pressed = down
				matched = true
				break
			}
		}
	}
	if !matched || !down {
		return false
	}
	for i := range cs.keys {
		if !cs.keys[i].pressed {
			return false
		}
	}
	for i := range cs.keys {
		cs.keys[i].pressed = false
	}
	return true
}

// parseCombo splits "Ctrl+Shift+M" into normalized key names.
func parseCombo(combo string) []string {
	parts := strings.Split(strings.ToLower(combo), "+")
	var keys []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// specialRawcodes maps named keys to their Windows virtual key codes.
// Modifiers list both left and right variants.
var specialRawcodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a normalized key name to its virtual key codes.
// Letters, digits and function keys are computed from their contiguous VK
// ranges; everything else comes from the table.
func keyNameToRawcodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))

	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c - 'a' + 0x41)}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c - '0' + 0x30)}
		}
	}
	if strings.HasPrefix(name, "f") {
		if n, ok := atoiInRange(name[1:], 1, 24); ok {
			return []uint16{uint16(0x70 + n - 1)} // VK_F1..VK_F24
		}
	}
	if codes, ok := specialRawcodes[name]; ok {
		return codes
	}
	log.Printf("HOTKEY: cannot map key name %q", name)
	return nil
}

func atoiInRange(s string, lo, hi int) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n < lo || n > hi {
		return 0, false
	}
	return n, true
}
