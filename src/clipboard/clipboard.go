package clipboard

import (
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
	ready   bool
)

// Init must be called once before Write; it fails on systems without a
// usable clipboard, in which case Write becomes a no-op.
func Init() error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := clipboard.Init(); err != nil {
		return err
	}
	ready = true
	return nil
}

// Write copies a measurement readout ("123 x 456" and the like) to the
// system clipboard. Mutex-guarded: two monitors committing in the same tick
// must not interleave.
func Write(text string) {
	writeMu.Lock()
	defer writeMu.Unlock()
	if !ready {
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
}
