package screenshot

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// CaptureRect grabs the given virtual-screen rectangle as an RGBA image.
// Used by the capture threads with one monitor's bounds at a time.
func CaptureRect(bounds image.Rectangle) (*image.RGBA, error) {
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("invalid capture bounds: %v", bounds)
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %v: %w", bounds, err)
	}
	return img, nil
}

// Capture grabs the entire virtual screen across all active displays.
func Capture() (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return CaptureRect(union)
}
