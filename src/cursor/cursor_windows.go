//go:build windows

package cursor

import (
	"image"

	"github.com/lxn/win"
)

func platformPos() (image.Point, bool) {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return image.Point{}, false
	}
	return image.Point{X: int(pt.X), Y: int(pt.Y)}, true
}
