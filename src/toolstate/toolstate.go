// Package toolstate holds the session-wide and per-monitor measurement
// state shared between the orchestrator, the cursor poll thread, the capture
// threads and the overlay surfaces.
package toolstate

import (
	"image"
	"image/color"
	"log"
	"sync"
	"sync/atomic"

	"screen-ruler/src/serialized"
)

// Handle identifies one monitor's overlay window. Per-monitor maps are keyed
// by it; entries are inserted during session setup and erased at reset, so
// readers never race map mutation.
type Handle = uintptr

// Mode selects which axes the measure tool tracks. Set once at session
// start, never mutated mid-session.
type Mode int

const (
	ModeHorizontal Mode = iota
	ModeVertical
	ModeCross
)

func (m Mode) String() string {
	switch m {
	case ModeHorizontal:
		return "horizontal"
	case ModeVertical:
		return "vertical"
	case ModeCross:
		return "cross"
	default:
		return "unknown"
	}
}

// CommonState is shared by every overlay surface and the cursor poll thread.
// One instance lives for the orchestrator's lifetime; its fields are fully
// reset before each tool activation.
type CommonState struct {
	// cursorPos packs two int32 screen coordinates into one atomic word so
	// a reader can never observe a half-written position.
	cursorPos atomic.Int64

	completionMu sync.Mutex
	completion   func()
	fired        atomic.Bool

	lineColor atomic.Uint32 // packed RGBA

	closeOnOtherMonitors atomic.Bool

	toolbarBox *serialized.Value[image.Rectangle]
	readouts   *serialized.Value[map[Handle]string]
}

func NewCommonState() *CommonState {
	return &CommonState{
		toolbarBox: serialized.New[image.Rectangle](),
		readouts:   serialized.New[map[Handle]string](),
	}
}

func (c *CommonState) SetCursorPos(p image.Point) {
	c.cursorPos.Store(int64(uint64(uint32(p.X))<<32 | uint64(uint32(p.Y))))
}

func (c *CommonState) CursorPos() image.Point {
	v := uint64(c.cursorPos.Load())
	return image.Point{X: int(int32(v >> 32)), Y: int(int32(v))}
}

// SetCompletionCallback registers the one-shot session-end notification,
// replacing any prior registration. The registration itself survives state
// resets; only the fired guard is re-armed.
func (c *CommonState) SetCompletionCallback(fn func()) {
	c.completionMu.Lock()
	c.completion = fn
	c.completionMu.Unlock()
}

// InvokeCompletion fires the registered callback at most once per session.
// The first surface to reach Closing wins; later calls are no-ops. A
// panicking callback must not prevent session teardown.
func (c *CommonState) InvokeCompletion() {
	if c.fired.Swap(true) {
		return
	}
	c.completionMu.Lock()
	fn := c.completion
	c.completionMu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("completion callback panicked: %v", r)
		}
	}()
	fn()
}

// RearmCompletion resets the fire-once guard for a new session.
func (c *CommonState) RearmCompletion() {
	c.fired.Store(false)
}

func (c *CommonState) SetLineColor(col color.RGBA) {
	c.lineColor.Store(uint32(col.R)<<24 | uint32(col.G)<<16 | uint32(col.B)<<8 | uint32(col.A))
}

func (c *CommonState) LineColor() color.RGBA {
	v := c.lineColor.Load()
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}

// SetCloseOnOtherMonitors toggles whether losing focus on one monitor ends
// the session everywhere. Cleared while a reset rebuilds windows so the
// churn does not cascade into teardown.
func (c *CommonState) SetCloseOnOtherMonitors(v bool) {
	c.closeOnOtherMonitors.Store(v)
}

func (c *CommonState) CloseOnOtherMonitors() bool {
	return c.closeOnOtherMonitors.Load()
}

func (c *CommonState) SetToolbarBox(r image.Rectangle) {
	c.toolbarBox.Access(func(box *image.Rectangle) { *box = r })
}

func (c *CommonState) ToolbarBox() image.Rectangle {
	var r image.Rectangle
	c.toolbarBox.Access(func(box *image.Rectangle) { r = *box })
	return r
}

// SetReadout publishes one monitor's current readout string.
func (c *CommonState) SetReadout(h Handle, text string) {
	c.readouts.Access(func(m *map[Handle]string) {
		if *m == nil {
			*m = make(map[Handle]string)
		}
		(*m)[h] = text
	})
}

func (c *CommonState) Readout(h Handle) string {
	var text string
	c.readouts.Access(func(m *map[Handle]string) { text = (*m)[h] })
	return text
}

func (c *CommonState) ClearReadouts() {
	c.readouts.Reset()
}

// Bitmap is a drawing-ready representation of a captured frame, produced by
// an overlay surface under the gpu lock. Release frees the backing native
// resource.
type Bitmap interface {
	Release()
}

// MeasureGlobal is written only by the orchestrator at session start.
type MeasureGlobal struct {
	PixelTolerance               uint8
	ContinuousCapture            bool
	DrawFeetOnCross              bool
	PerColorChannelEdgeDetection bool
	Mode                         Mode
}

// MeasurePerScreen is owned by one monitor's thread pair: its capture thread
// writes CapturedFrame, its overlay surface writes everything else.
type MeasurePerScreen struct {
	CursorInLeftHalf bool
	CursorInTopHalf  bool
	MeasuredEdges    image.Rectangle

	// CapturedFrame is the raw frame published by the capture thread. The
	// overlay surface consumes it when converting to CapturedBitmap.
	CapturedFrame *image.RGBA
	// CapturedBitmap is the drawing-ready conversion cached by the surface.
	CapturedBitmap Bitmap
}

type MeasureToolState struct {
	Global    MeasureGlobal
	PerScreen map[Handle]*MeasurePerScreen

	Common *CommonState
}

// ReleaseBitmaps frees every cached drawing-ready bitmap. Called during
// state reset after all threads have joined.
func (s *MeasureToolState) ReleaseBitmaps() {
	for _, ps := range s.PerScreen {
		if ps.CapturedBitmap != nil {
			ps.CapturedBitmap.Release()
			ps.CapturedBitmap = nil
		}
	}
}

// BoundsPerScreen is written only by that monitor's overlay surface.
type BoundsPerScreen struct {
	// Anchor is the in-progress region start, nil when no drag is active.
	Anchor       *image.Point
	Measurements []image.Rectangle
}

type BoundsToolState struct {
	PerScreen map[Handle]*BoundsPerScreen

	Common *CommonState
}
