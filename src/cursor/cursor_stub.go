//go:build !windows

package cursor

import "image"

func platformPos() (image.Point, bool) {
	return image.Point{}, false
}
