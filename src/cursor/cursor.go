// Package cursor samples the global cursor position for the poll thread.
package cursor

import "image"

// Pos returns the cursor position in virtual-screen coordinates. ok is
// false when the platform cannot answer; the caller keeps the previous
// published position in that case.
func Pos() (image.Point, bool) {
	return platformPos()
}
