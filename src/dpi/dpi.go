// Package dpi answers per-window DPI queries for the overlay readouts.
package dpi

// DefaultDPI is the system baseline; a window on an unscaled monitor
// reports exactly this.
const DefaultDPI = 96

// ScaleForWindow returns the ratio of the window's monitor DPI to the
// system default. Pure query: no side effects and no failure path — any
// lookup problem degrades to 1.0.
func ScaleForWindow(handle uintptr) float32 {
	d := dpiForWindow(handle)
	if d == 0 {
		d = DefaultDPI
	}
	return float32(d) / DefaultDPI
}
