//go:build !windows

package overlay

import (
	"errors"

	"screen-ruler/src/monitors"
)

// Overlay windows are Windows-only. Creation failure takes the
// skip-this-monitor path in the orchestrator, so a session on another
// platform simply runs with zero surfaces.
func newBackend(s *Surface, mon monitors.Info) (Backend, error) {
	return nil, errors.New("overlay windows are not supported on this platform")
}
