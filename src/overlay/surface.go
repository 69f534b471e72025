// Package overlay renders the per-monitor measurement visuals: a fullscreen
// transparent window per monitor that draws the captured frame, the current
// ruler or bounding rectangles and the numeric readout, and forwards user
// input into the per-monitor state.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"
	"sync/atomic"

	"screen-ruler/src/clipboard"
	"screen-ruler/src/dpi"
	"screen-ruler/src/edge"
	"screen-ruler/src/gpu"
	"screen-ruler/src/monitors"
	"screen-ruler/src/serialized"
	"screen-ruler/src/toolstate"
)

// Surface state machine.
const (
	stateCreated int32 = iota
	stateActive
	stateClosing
)

// Backend owns the native window for one surface. ConvertFrame is called
// with the gpu lock held.
type Backend interface {
	Handle() toolstate.Handle
	ConvertFrame(*image.RGBA) (toolstate.Bitmap, error)
	Invalidate()
	Close()
}

// Line is a stroke from From to To, in monitor-local coordinates.
type Line struct {
	From, To image.Point
}

// Scene is what the backend paints on the next redraw: the cached frame
// bitmap, then rectangles and lines in the stroke color, then the readout.
type Scene struct {
	Bitmap    toolstate.Bitmap
	Stroke    color.RGBA
	Rects     []image.Rectangle
	Lines     []Line
	Readout   string
	ReadoutAt image.Point
}

// Config wires a surface to its monitor and the session state. Exactly one
// of Bounds/Measure is set, selecting the tool.
type Config struct {
	Monitor monitors.Info
	Common  *toolstate.CommonState
	Bounds  *serialized.Value[toolstate.BoundsToolState]
	Measure *serialized.Value[toolstate.MeasureToolState]

	// OnSessionEnd asks the orchestrator to tear the session down. Called
	// at most once, from the surface that reached Closing first or not at
	// all when the orchestrator destroys the surface itself.
	OnSessionEnd func()
}

type Surface struct {
	cfg   Config
	back  Backend
	state atomic.Int32

	sceneMu sync.Mutex
	scene   Scene

	// frame is the surface's retained copy of the last raw captured frame,
	// kept for edge detection after the shared slot has been consumed.
	frame *image.RGBA
}

// New creates the overlay window for one monitor and starts its redraw
// loop. A creation failure means "skip this monitor": the session proceeds
// on the remaining ones.
func New(cfg Config) (*Surface, error) {
	s := &Surface{cfg: cfg}
	back, err := newBackend(s, cfg.Monitor)
	if err != nil {
		return nil, fmt.Errorf("overlay for monitor %d: %w", cfg.Monitor.Index, err)
	}
	s.back = back
	s.state.Store(stateActive)
	return s, nil
}

func (s *Surface) Handle() toolstate.Handle {
	return s.back.Handle()
}

// Destroy dismisses the window without firing the completion callback. Used
// by the orchestrator during state reset.
func (s *Surface) Destroy() {
	s.state.Store(stateClosing)
	s.back.Close()
}

// Scene returns a snapshot of the current drawing state.
func (s *Surface) Scene() Scene {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()
	sc := s.scene
	sc.Rects = append([]image.Rectangle(nil), s.scene.Rects...)
	sc.Lines = append([]Line(nil), s.scene.Lines...)
	return sc
}

func (s *Surface) setScene(sc Scene) {
	s.sceneMu.Lock()
	s.scene = sc
	s.sceneMu.Unlock()
}

// tick runs once per target frame: refresh state, rebuild the scene,
// request a repaint.
func (s *Surface) tick() {
	if s.state.Load() != stateActive {
		return
	}
	if s.cfg.Measure != nil {
		s.measureTick()
	} else {
		s.boundsTick()
	}
	s.back.Invalidate()
}

// localCursor maps the shared cursor position into this monitor's space.
func (s *Surface) localCursor() (screen, local image.Point) {
	screen = s.cfg.Common.CursorPos()
	return screen, screen.Sub(s.cfg.Monitor.Bounds.Min)
}

func (s *Surface) measureTick() {
	cursor, local := s.localCursor()
	mon := s.cfg.Monitor.Bounds

	scene := Scene{Stroke: s.cfg.Common.LineColor()}
	var readout string

	s.cfg.Measure.Access(func(st *toolstate.MeasureToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps == nil {
			return
		}

		s.consumeFrame(ps)
		scene.Bitmap = ps.CapturedBitmap

		center := mon.Min.Add(image.Point{X: mon.Dx() / 2, Y: mon.Dy() / 2})
		ps.CursorInLeftHalf = cursor.X < center.X
		ps.CursorInTopHalf = cursor.Y < center.Y

		if s.frame != nil {
			if rect, ok := edge.Detect(s.frame, local, edge.Params{
				Tolerance:  st.Global.PixelTolerance,
				PerChannel: st.Global.PerColorChannelEdgeDetection,
			}); ok {
				ps.MeasuredEdges = rect.Add(mon.Min)
			}
		}

		measured := ps.MeasuredEdges.Sub(mon.Min)
		scene.Lines = measureLines(st.Global, measured, local)
		readout = s.measureReadout(st.Global.Mode, ps.MeasuredEdges)
		scene.Readout = readout
		scene.ReadoutAt = readoutAnchor(local, ps.CursorInLeftHalf, ps.CursorInTopHalf)
	})

	s.cfg.Common.SetReadout(s.Handle(), readout)
	s.setScene(scene)
}

// consumeFrame converts a newly published raw frame into the drawing-ready
// bitmap, caching it in the per-monitor record and retaining the raw pixels
// for edge detection. Conversion and release are gpu pipeline work.
func (s *Surface) consumeFrame(ps *toolstate.MeasurePerScreen) {
	if ps.CapturedFrame == nil {
		return
	}
	gpu.Lock()
	defer gpu.Unlock()
	bmp, err := s.back.ConvertFrame(ps.CapturedFrame)
	if err != nil {
		// Leave the frame published so the next tick retries the
		// conversion; a one-shot session has no second frame coming.
		log.Printf("OVERLAY: frame conversion failed on monitor %d: %v", s.cfg.Monitor.Index, err)
		return
	}
	if ps.CapturedBitmap != nil {
		ps.CapturedBitmap.Release()
	}
	ps.CapturedBitmap = bmp
	s.frame = ps.CapturedFrame
	ps.CapturedFrame = nil
}

// measureLines builds the ruler strokes for the measured edges, in
// monitor-local coordinates.
func measureLines(g toolstate.MeasureGlobal, measured image.Rectangle, local image.Point) []Line {
	var lines []Line
	horizontal := g.Mode == toolstate.ModeHorizontal || g.Mode == toolstate.ModeCross
	vertical := g.Mode == toolstate.ModeVertical || g.Mode == toolstate.ModeCross

	if horizontal {
		lines = append(lines, Line{
			From: image.Point{X: measured.Min.X, Y: local.Y},
			To:   image.Point{X: measured.Max.X, Y: local.Y},
		})
	}
	if vertical {
		lines = append(lines, Line{
			From: image.Point{X: local.X, Y: measured.Min.Y},
			To:   image.Point{X: local.X, Y: measured.Max.Y},
		})
	}
	if g.Mode == toolstate.ModeCross && g.DrawFeetOnCross {
		lines = append(lines, feet(measured, local)...)
	}
	return lines
}

const footLength = 4

// feet are the short perpendicular marks at the four ruler endpoints in
// cross mode.
func feet(measured image.Rectangle, local image.Point) []Line {
	return []Line{
		{From: image.Point{X: measured.Min.X, Y: local.Y - footLength}, To: image.Point{X: measured.Min.X, Y: local.Y + footLength}},
		{From: image.Point{X: measured.Max.X, Y: local.Y - footLength}, To: image.Point{X: measured.Max.X, Y: local.Y + footLength}},
		{From: image.Point{X: local.X - footLength, Y: measured.Min.Y}, To: image.Point{X: local.X + footLength, Y: measured.Min.Y}},
		{From: image.Point{X: local.X - footLength, Y: measured.Max.Y}, To: image.Point{X: local.X + footLength, Y: measured.Max.Y}},
	}
}

// measureReadout formats the measured span in DPI-scaled pixels. Edges are
// inclusive, so a span is Dx()+1 wide.
func (s *Surface) measureReadout(mode toolstate.Mode, measured image.Rectangle) string {
	if measured == (image.Rectangle{}) {
		// Nothing measured yet.
		return ""
	}
	scale := dpi.ScaleForWindow(s.Handle())
	w := float32(measured.Dx()+1) / scale
	h := float32(measured.Dy()+1) / scale
	switch mode {
	case toolstate.ModeHorizontal:
		return fmt.Sprintf("%.0f", w)
	case toolstate.ModeVertical:
		return fmt.Sprintf("%.0f", h)
	default:
		return fmt.Sprintf("%.0f x %.0f", w, h)
	}
}

const readoutOffset = 16

// readoutAnchor places the readout next to the cursor, flipped into the
// monitor when the cursor sits in the right/bottom half.
func readoutAnchor(local image.Point, inLeftHalf, inTopHalf bool) image.Point {
	at := local
	if inLeftHalf {
		at.X += readoutOffset
	} else {
		at.X -= readoutOffset * 6
	}
	if inTopHalf {
		at.Y += readoutOffset
	} else {
		at.Y -= readoutOffset * 2
	}
	return at
}

func (s *Surface) boundsTick() {
	_, local := s.localCursor()

	scene := Scene{Stroke: s.cfg.Common.LineColor()}
	var readout string

	s.cfg.Bounds.Access(func(st *toolstate.BoundsToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps == nil {
			return
		}
		scene.Rects = append(scene.Rects, ps.Measurements...)
		if ps.Anchor != nil {
			current := image.Rect(ps.Anchor.X, ps.Anchor.Y, local.X, local.Y)
			scene.Rects = append(scene.Rects, current)
			readout = s.boundsReadout(current)
			scene.Readout = readout
			scene.ReadoutAt = readoutAnchor(local, local.X < s.cfg.Monitor.Bounds.Dx()/2, local.Y < s.cfg.Monitor.Bounds.Dy()/2)
		}
	})

	s.cfg.Common.SetReadout(s.Handle(), readout)
	s.setScene(scene)
}

func (s *Surface) boundsReadout(r image.Rectangle) string {
	scale := dpi.ScaleForWindow(s.Handle())
	return fmt.Sprintf("%.0f x %.0f", float32(r.Dx())/scale, float32(r.Dy())/scale)
}

// onMouseDown starts a bounds region at the anchor point. Measure mode has
// no press semantics; the click is handled on release.
func (s *Surface) onMouseDown(p image.Point) {
	if s.state.Load() != stateActive || s.cfg.Bounds == nil {
		return
	}
	s.cfg.Bounds.Access(func(st *toolstate.BoundsToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps == nil {
			return
		}
		anchor := p
		ps.Anchor = &anchor
	})
	s.back.Invalidate()
}

func (s *Surface) onMouseMove(p image.Point) {
	// The drag rectangle is rebuilt from the shared cursor position every
	// tick; a move only needs to schedule a repaint.
	if s.state.Load() == stateActive {
		s.back.Invalidate()
	}
}

// onMouseUp commits the in-progress bounds region, or copies the measure
// readout to the clipboard.
func (s *Surface) onMouseUp(p image.Point) {
	if s.state.Load() != stateActive {
		return
	}
	if s.cfg.Bounds != nil {
		s.commitRegion(p)
		return
	}
	if text := s.cfg.Common.Readout(s.Handle()); text != "" {
		clipboard.Write(text)
	}
}

func (s *Surface) commitRegion(p image.Point) {
	var committed *image.Rectangle
	s.cfg.Bounds.Access(func(st *toolstate.BoundsToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps == nil || ps.Anchor == nil {
			return
		}
		rect := image.Rect(ps.Anchor.X, ps.Anchor.Y, p.X, p.Y)
		ps.Measurements = append(ps.Measurements, rect)
		ps.Anchor = nil
		committed = &rect
	})
	if committed != nil {
		clipboard.Write(s.boundsReadout(*committed))
		s.back.Invalidate()
	}
}

// cancel ends the session from this surface.
func (s *Surface) cancel() {
	s.requestClose()
}

// focusLost ends the session when close-on-blur is armed, unless focus went
// to the host toolbar.
func (s *Surface) focusLost() {
	if !s.cfg.Common.CloseOnOtherMonitors() {
		return
	}
	if box := s.cfg.Common.ToolbarBox(); !box.Empty() && s.cfg.Common.CursorPos().In(box) {
		return
	}
	s.requestClose()
}

// requestClose transitions to Closing exactly once, fires the completion
// callback (first surface process-wide wins) and asks the orchestrator to
// tear down.
func (s *Surface) requestClose() {
	if !s.state.CompareAndSwap(stateActive, stateClosing) {
		return
	}
	s.cfg.Common.InvokeCompletion()
	if s.cfg.OnSessionEnd != nil {
		s.cfg.OnSessionEnd()
	}
}
