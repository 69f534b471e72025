// Package monitors is the fact table the orchestrator queries at session
// start: an ordered list of active displays with their virtual-screen
// geometry. Entries are snapshots; hotplug during a session is not tracked.
package monitors

import (
	"image"

	"github.com/kbinani/screenshot"
)

type Info struct {
	Index   int
	Bounds  image.Rectangle
	Primary bool
}

// Enumerate lists all active displays. Display 0 is the primary. An empty
// slice (headless environment) is valid; sessions then run with zero
// overlay surfaces.
func Enumerate() []Info {
	n := screenshot.NumActiveDisplays()
	infos := make([]Info, 0, n)
	for i := 0; i < n; i++ {
		infos = append(infos, Info{
			Index:   i,
			Bounds:  screenshot.GetDisplayBounds(i),
			Primary: i == 0,
		})
	}
	return infos
}

// VirtualBounds returns the union of all display bounds.
func VirtualBounds() image.Rectangle {
	var union image.Rectangle
	for i, m := range Enumerate() {
		if i == 0 {
			union = m.Bounds
			continue
		}
		union = union.Union(m.Bounds)
	}
	return union
}
