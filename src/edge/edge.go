// Package edge finds the boundary of whatever is under the cursor in a
// captured frame: walk outward from the cursor pixel along both axes until a
// pixel differs from the start pixel by more than the tolerance.
package edge

import "image"

type Params struct {
	Tolerance uint8
	// PerChannel treats any single channel exceeding the tolerance as an
	// edge; otherwise the summed absolute channel difference is compared.
	PerChannel bool
}

// Detect returns the inclusive edge rectangle around pos, in the frame's
// own coordinate space. Min/Max are the outermost pixels still considered
// similar to the start pixel, so the measured width is Dx()+1 and the height
// Dy()+1. ok is false when pos lies outside the frame.
func Detect(img *image.RGBA, pos image.Point, p Params) (rect image.Rectangle, ok bool) {
	b := img.Bounds()
	if !pos.In(b) {
		return image.Rectangle{}, false
	}

	left := pos.X
	for left > b.Min.X && !differs(img, pos, image.Point{X: left - 1, Y: pos.Y}, p) {
		left--
	}
	right := pos.X
	for right < b.Max.X-1 && !differs(img, pos, image.Point{X: right + 1, Y: pos.Y}, p) {
		right++
	}
	top := pos.Y
	for top > b.Min.Y && !differs(img, pos, image.Point{X: pos.X, Y: top - 1}, p) {
		top--
	}
	bottom := pos.Y
	for bottom < b.Max.Y-1 && !differs(img, pos, image.Point{X: pos.X, Y: bottom + 1}, p) {
		bottom++
	}

	return image.Rectangle{
		Min: image.Point{X: left, Y: top},
		Max: image.Point{X: right, Y: bottom},
	}, true
}

// differs compares two frame pixels. Alpha is ignored: screen captures are
// opaque.
func differs(img *image.RGBA, a, b image.Point, p Params) bool {
	ai := img.PixOffset(a.X, a.Y)
	bi := img.PixOffset(b.X, b.Y)
	tol := int(p.Tolerance)

	dr := absDiff(img.Pix[ai], img.Pix[bi])
	dg := absDiff(img.Pix[ai+1], img.Pix[bi+1])
	db := absDiff(img.Pix[ai+2], img.Pix[bi+2])

	if p.PerChannel {
		return dr > tol || dg > tol || db > tol
	}
	return dr+dg+db > tol
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
