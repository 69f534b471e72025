// Package capture runs the per-monitor screen capture threads used by the
// measure tool. Each thread grabs its monitor's region into the shared
// per-monitor record; the overlay surface converts and draws it.
package capture

import (
	"image"
	"log"
	"time"

	"screen-ruler/src/consts"
	"screen-ruler/src/gpu"
	"screen-ruler/src/screenshot"
	"screen-ruler/src/serialized"
	"screen-ruler/src/toolstate"
)

// SourceFunc acquires a frame for a virtual-screen rectangle. The default
// goes through the screenshot package; tests substitute synthetic frames.
type SourceFunc func(image.Rectangle) (*image.RGBA, error)

// Thread describes one monitor's capture loop.
type Thread struct {
	Monitor image.Rectangle
	Window  toolstate.Handle
	State   *serialized.Value[toolstate.MeasureToolState]
	Source  SourceFunc
}

// Run captures frames until stop is closed. With continuous capture on it
// re-captures at the frame cadence; otherwise it captures one frame and
// idles, leaving the surface to redraw the cached conversion. A failed
// acquisition means no new frame this tick, never a dead thread.
func (t Thread) Run(stop <-chan struct{}) {
	source := t.Source
	if source == nil {
		source = screenshot.CaptureRect
	}

	var continuous bool
	t.State.Access(func(s *toolstate.MeasureToolState) {
		continuous = s.Global.ContinuousCapture
	})

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame := t.acquire(source)
		if frame != nil {
			t.publish(frame)
			if !continuous {
				// One-shot: the single frame is reused for every redraw
				// until teardown.
				<-stop
				return
			}
		}

		select {
		case <-stop:
			return
		case <-time.After(consts.TargetFrameDuration):
		}
	}
}

// acquire grabs one frame under the gpu pipeline lock. The driver state
// backing frame acquisition is shared with every drawing thread.
func (t Thread) acquire(source SourceFunc) *image.RGBA {
	gpu.Lock()
	defer gpu.Unlock()

	frame, err := source(t.Monitor)
	if err != nil {
		log.Printf("CAPTURE: no frame for monitor %v this tick: %v", t.Monitor, err)
		return nil
	}
	return frame
}

func (t Thread) publish(frame *image.RGBA) {
	t.State.Access(func(s *toolstate.MeasureToolState) {
		ps := s.PerScreen[t.Window]
		if ps == nil {
			// Session is tearing down and the entry is gone already.
			return
		}
		ps.CapturedFrame = frame
	})
}
