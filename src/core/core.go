// Package core is the session orchestrator: it owns the shared tool state,
// runs the cursor poll thread for the process lifetime, and starts and tears
// down one overlay surface (and, for the measure tool, one capture thread)
// per monitor.
package core

import (
	"image"
	"log"
	"sync"
	"time"

	"screen-ruler/src/capture"
	"screen-ruler/src/consts"
	"screen-ruler/src/cursor"
	"screen-ruler/src/dpi"
	"screen-ruler/src/gpu"
	"screen-ruler/src/logutil"
	"screen-ruler/src/monitors"
	"screen-ruler/src/overlay"
	"screen-ruler/src/serialized"
	"screen-ruler/src/settings"
	"screen-ruler/src/toolstate"
)

// surface is what the orchestrator needs from an overlay window. Tests
// substitute fakes; production surfaces come from the overlay package.
type surface interface {
	Handle() toolstate.Handle
	Destroy()
}

// Core drives measurement sessions. One instance lives for the process;
// every tool activation goes through a full state reset first, so a session
// never inherits state from the previous one.
type Core struct {
	mu sync.Mutex

	common  *toolstate.CommonState
	bounds  *serialized.Value[toolstate.BoundsToolState]
	measure *serialized.Value[toolstate.MeasureToolState]

	surfaces    []surface
	sessionStop chan struct{}
	captureWG   sync.WaitGroup

	pollStop chan struct{}
	pollDone chan struct{}

	settings settings.Settings

	// Injection points for tests.
	newSurface    func(overlay.Config) (surface, error)
	captureSource capture.SourceFunc
	enumerate     func() []monitors.Info
	cursorPos     func() (image.Point, bool)
}

func New() *Core {
	c := &Core{
		common:  toolstate.NewCommonState(),
		bounds:  serialized.New[toolstate.BoundsToolState](),
		measure: serialized.New[toolstate.MeasureToolState](),
		newSurface: func(cfg overlay.Config) (surface, error) {
			return overlay.New(cfg)
		},
		enumerate: monitors.Enumerate,
		cursorPos: cursor.Pos,
		pollStop:  make(chan struct{}),
		pollDone:  make(chan struct{}),
	}
	c.bounds.Access(func(st *toolstate.BoundsToolState) { st.Common = c.common })
	c.measure.Access(func(st *toolstate.MeasureToolState) { st.Common = c.common })

	logutil.RegisterTrace("core")
	go c.pollLoop()
	return c
}

// Close stops and joins the poll thread, then tears down the current
// session.
func (c *Core) Close() {
	c.mu.Lock()
	if c.pollStop != nil {
		close(c.pollStop)
		<-c.pollDone
		c.pollStop = nil
	}
	c.mu.Unlock()
	c.ResetState()
	logutil.UnregisterTrace("core")
}

// pollLoop publishes the global cursor position at the frame cadence. A
// failed sample keeps the previous published position.
func (c *Core) pollLoop() {
	defer close(c.pollDone)
	ticker := time.NewTicker(consts.TargetFrameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-c.pollStop:
			return
		case <-ticker.C:
			if p, ok := c.cursorPos(); ok {
				c.common.SetCursorPos(p)
			}
		}
	}
}

// ResetState returns the orchestrator to its idle configuration: capture
// threads signalled and joined, surfaces destroyed, tool state zeroed, and a
// fresh settings snapshot applied. Safe to call at any time, including twice
// in a row.
func (c *Core) ResetState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Core) resetLocked() {
	// Disarm close-on-blur first: destroying windows steals focus and must
	// not cascade into another teardown.
	c.common.SetCloseOnOtherMonitors(false)

	if c.sessionStop != nil {
		close(c.sessionStop)
		c.sessionStop = nil
	}
	c.captureWG.Wait()

	for _, s := range c.surfaces {
		s.Destroy()
	}
	c.surfaces = nil

	// Bitmap release frees native drawing resources; a straggling window
	// that outlived its close timeout may still be painting.
	c.measure.Access(func(st *toolstate.MeasureToolState) {
		gpu.Lock()
		st.ReleaseBitmaps()
		gpu.Unlock()
	})
	c.measure.Reset()
	c.measure.Access(func(st *toolstate.MeasureToolState) { st.Common = c.common })
	c.bounds.Reset()
	c.bounds.Access(func(st *toolstate.BoundsToolState) { st.Common = c.common })

	c.common.ClearReadouts()
	c.common.RearmCompletion()

	c.settings = settings.Load()
	c.common.SetLineColor(c.settings.LineColor)
}

// StartBoundsTool begins a bounding-box session: one overlay surface per
// monitor, no capture threads.
func (c *Core) StartBoundsTool() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()

	c.sessionStop = make(chan struct{})
	for _, mon := range c.enumerate() {
		s, err := c.newSurface(overlay.Config{
			Monitor:      mon,
			Common:       c.common,
			Bounds:       c.bounds,
			OnSessionEnd: c.onSessionEnd,
		})
		if err != nil {
			log.Printf("CORE: skipping monitor %d: %v", mon.Index, err)
			continue
		}
		c.surfaces = append(c.surfaces, s)
		c.bounds.Access(func(st *toolstate.BoundsToolState) {
			if st.PerScreen == nil {
				st.PerScreen = make(map[toolstate.Handle]*toolstate.BoundsPerScreen)
			}
			st.PerScreen[s.Handle()] = &toolstate.BoundsPerScreen{}
		})
	}

	c.common.SetCloseOnOtherMonitors(true)
	log.Printf("CORE: bounds session started on %d monitor(s)", len(c.surfaces))
}

// StartMeasureTool begins an edge-measurement session: one overlay surface
// and one capture thread per monitor. The axis flags select the mode; with
// neither set the tool measures vertically.
func (c *Core) StartMeasureTool(horizontal, vertical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()

	c.measure.Access(func(st *toolstate.MeasureToolState) {
		st.Global = toolstate.MeasureGlobal{
			PixelTolerance:               c.settings.PixelTolerance,
			ContinuousCapture:            c.settings.ContinuousCapture,
			DrawFeetOnCross:              c.settings.DrawFeetOnCross,
			PerColorChannelEdgeDetection: c.settings.PerColorChannelEdgeDetection,
			Mode:                         deriveMode(horizontal, vertical),
		}
		st.PerScreen = make(map[toolstate.Handle]*toolstate.MeasurePerScreen)
	})

	c.sessionStop = make(chan struct{})
	for _, mon := range c.enumerate() {
		s, err := c.newSurface(overlay.Config{
			Monitor:      mon,
			Common:       c.common,
			Measure:      c.measure,
			OnSessionEnd: c.onSessionEnd,
		})
		if err != nil {
			log.Printf("CORE: skipping monitor %d: %v", mon.Index, err)
			continue
		}
		c.surfaces = append(c.surfaces, s)
		c.measure.Access(func(st *toolstate.MeasureToolState) {
			st.PerScreen[s.Handle()] = &toolstate.MeasurePerScreen{}
		})

		t := capture.Thread{
			Monitor: mon.Bounds,
			Window:  s.Handle(),
			State:   c.measure,
			Source:  c.captureSource,
		}
		c.captureWG.Add(1)
		stop := c.sessionStop
		go func() {
			defer c.captureWG.Done()
			t.Run(stop)
		}()
	}

	c.common.SetCloseOnOtherMonitors(true)
	log.Printf("CORE: measure session (%v) started on %d monitor(s)",
		deriveMode(horizontal, vertical), len(c.surfaces))
}

// deriveMode maps the two axis flags onto a mode. Horizontal wins the
// single-axis case; neither flag means vertical.
func deriveMode(horizontal, vertical bool) toolstate.Mode {
	if horizontal {
		if vertical {
			return toolstate.ModeCross
		}
		return toolstate.ModeHorizontal
	}
	return toolstate.ModeVertical
}

// onSessionEnd is invoked by the first surface to reach Closing. Teardown
// runs on a fresh goroutine: the surface is inside its own input or timer
// handling and must not join threads from there.
func (c *Core) onSessionEnd() {
	go c.ResetState()
}

// SetToolCompletionEvent registers the host's session-end notification. The
// registration survives resets.
func (c *Core) SetToolCompletionEvent(fn func()) {
	c.common.SetCompletionCallback(fn)
}

// SetToolbarBoundingBox tells the surfaces which screen region belongs to
// the host toolbar, so focus moving there does not end the session. The
// corner order does not matter.
func (c *Core) SetToolbarBoundingBox(fromX, fromY, toX, toY int) {
	c.common.SetToolbarBox(image.Rect(fromX, fromY, toX, toY))
}

// GetDPIScaleForWindow reports the render scale for one overlay window.
func (c *Core) GetDPIScaleForWindow(window toolstate.Handle) float32 {
	return dpi.ScaleForWindow(window)
}
