package overlay

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"screen-ruler/src/monitors"
	"screen-ruler/src/serialized"
	"screen-ruler/src/toolstate"
)

type fakeBitmap struct {
	released bool
}

func (f *fakeBitmap) Release() { f.released = true }

type fakeBackend struct {
	mu          sync.Mutex
	handle      toolstate.Handle
	invalidated int
	converted   int
	convertErr  error
	closed      bool
	bitmaps     []*fakeBitmap
}

func (f *fakeBackend) Handle() toolstate.Handle { return f.handle }

func (f *fakeBackend) ConvertFrame(img *image.RGBA) (toolstate.Bitmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converted++
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	b := &fakeBitmap{}
	f.bitmaps = append(f.bitmaps, b)
	return b, nil
}

func (f *fakeBackend) Invalidate() {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func testMonitor() monitors.Info {
	return monitors.Info{Index: 0, Bounds: image.Rect(0, 0, 200, 100), Primary: true}
}

func newBoundsSurface(t *testing.T) (*Surface, *fakeBackend, *serialized.Value[toolstate.BoundsToolState], *toolstate.CommonState) {
	t.Helper()
	common := toolstate.NewCommonState()
	common.SetLineColor(color.RGBA{R: 255, G: 69, B: 0, A: 255})
	bounds := serialized.New[toolstate.BoundsToolState]()
	back := &fakeBackend{handle: 42}
	s := &Surface{cfg: Config{Monitor: testMonitor(), Common: common, Bounds: bounds}}
	s.back = back
	s.state.Store(stateActive)
	bounds.Access(func(st *toolstate.BoundsToolState) {
		st.Common = common
		st.PerScreen = map[toolstate.Handle]*toolstate.BoundsPerScreen{s.Handle(): {}}
	})
	return s, back, bounds, common
}

func newMeasureSurface(t *testing.T, global toolstate.MeasureGlobal) (*Surface, *fakeBackend, *serialized.Value[toolstate.MeasureToolState], *toolstate.CommonState) {
	t.Helper()
	common := toolstate.NewCommonState()
	common.SetLineColor(color.RGBA{R: 255, G: 69, B: 0, A: 255})
	measure := serialized.New[toolstate.MeasureToolState]()
	back := &fakeBackend{handle: 42}
	s := &Surface{cfg: Config{Monitor: testMonitor(), Common: common, Measure: measure}}
	s.back = back
	s.state.Store(stateActive)
	measure.Access(func(st *toolstate.MeasureToolState) {
		st.Common = common
		st.Global = global
		st.PerScreen = map[toolstate.Handle]*toolstate.MeasurePerScreen{s.Handle(): {}}
	})
	return s, back, measure, common
}

func TestBoundsAnchorDragCommit(t *testing.T) {
	s, _, bounds, _ := newBoundsSurface(t)

	s.onMouseDown(image.Point{X: 10, Y: 20})
	bounds.Access(func(st *toolstate.BoundsToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps.Anchor == nil || *ps.Anchor != (image.Point{X: 10, Y: 20}) {
			t.Fatalf("anchor not set: %v", ps.Anchor)
		}
	})

	s.onMouseUp(image.Point{X: 60, Y: 80})
	bounds.Access(func(st *toolstate.BoundsToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps.Anchor != nil {
			t.Error("anchor should be cleared after commit")
		}
		if len(ps.Measurements) != 1 {
			t.Fatalf("expected exactly one committed rectangle, got %d", len(ps.Measurements))
		}
		if got, want := ps.Measurements[0], image.Rect(10, 20, 60, 80); got != want {
			t.Errorf("committed %v, want %v", got, want)
		}
	})
}

func TestBoundsCommitNormalizesReverseDrag(t *testing.T) {
	s, _, bounds, _ := newBoundsSurface(t)
	s.onMouseDown(image.Point{X: 90, Y: 70})
	s.onMouseUp(image.Point{X: 30, Y: 10})
	bounds.Access(func(st *toolstate.BoundsToolState) {
		ps := st.PerScreen[s.Handle()]
		if got, want := ps.Measurements[0], image.Rect(30, 10, 90, 70); got != want {
			t.Errorf("committed %v, want normalized %v", got, want)
		}
	})
}

func TestBoundsReleaseWithoutAnchorCommitsNothing(t *testing.T) {
	s, _, bounds, _ := newBoundsSurface(t)
	s.onMouseUp(image.Point{X: 60, Y: 80})
	bounds.Access(func(st *toolstate.BoundsToolState) {
		if n := len(st.PerScreen[s.Handle()].Measurements); n != 0 {
			t.Errorf("expected no commits, got %d", n)
		}
	})
}

func TestBoundsTickBuildsSceneWithInProgressRect(t *testing.T) {
	s, _, _, common := newBoundsSurface(t)
	s.onMouseDown(image.Point{X: 10, Y: 10})
	common.SetCursorPos(image.Point{X: 50, Y: 40})
	s.tick()

	scene := s.Scene()
	if len(scene.Rects) != 1 {
		t.Fatalf("expected one in-progress rect, got %d", len(scene.Rects))
	}
	if got, want := scene.Rects[0], image.Rect(10, 10, 50, 40); got != want {
		t.Errorf("scene rect %v, want %v", got, want)
	}
	if scene.Readout == "" {
		t.Error("expected a readout during drag")
	}
	if common.Readout(s.Handle()) == "" {
		t.Error("expected readout published to common state")
	}
}

func TestMeasureTickConsumesFrameAndDetectsEdges(t *testing.T) {
	s, back, measure, common := newMeasureSurface(t, toolstate.MeasureGlobal{
		PixelTolerance: 30,
		Mode:           toolstate.ModeCross,
	})

	frame := image.NewRGBA(image.Rect(0, 0, 200, 100))
	// White background, dark box from (40,20) to (120,60).
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 40 && x < 120 && y >= 20 && y < 60 {
				c = color.RGBA{R: 10, G: 10, B: 10, A: 255}
			}
			frame.SetRGBA(x, y, c)
		}
	}
	measure.Access(func(st *toolstate.MeasureToolState) {
		st.PerScreen[s.Handle()].CapturedFrame = frame
	})

	common.SetCursorPos(image.Point{X: 80, Y: 40})
	s.tick()

	measure.Access(func(st *toolstate.MeasureToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps.CapturedFrame != nil {
			t.Error("raw frame should be consumed by the conversion")
		}
		if ps.CapturedBitmap == nil {
			t.Error("expected a cached drawing-ready bitmap")
		}
		want := image.Rectangle{Min: image.Point{X: 40, Y: 20}, Max: image.Point{X: 119, Y: 59}}
		if ps.MeasuredEdges != want {
			t.Errorf("measured edges %v, want %v", ps.MeasuredEdges, want)
		}
		if !ps.CursorInLeftHalf {
			t.Error("cursor at x=80 of 200 is in the left half")
		}
		if !ps.CursorInTopHalf {
			t.Error("cursor at y=40 of 100 is in the top half")
		}
	})

	if back.converted != 1 {
		t.Errorf("expected one conversion, got %d", back.converted)
	}
	if got := common.Readout(s.Handle()); got != "80 x 40" {
		t.Errorf("readout %q, want \"80 x 40\"", got)
	}

	scene := s.Scene()
	if len(scene.Lines) < 2 {
		t.Errorf("cross mode should draw at least two ruler lines, got %d", len(scene.Lines))
	}
}

func TestMeasureTickReusesCachedBitmapWhenNoNewFrame(t *testing.T) {
	s, back, measure, common := newMeasureSurface(t, toolstate.MeasureGlobal{PixelTolerance: 30, Mode: toolstate.ModeHorizontal})
	frame := image.NewRGBA(image.Rect(0, 0, 200, 100))
	measure.Access(func(st *toolstate.MeasureToolState) {
		st.PerScreen[s.Handle()].CapturedFrame = frame
	})
	common.SetCursorPos(image.Point{X: 100, Y: 50})

	s.tick()
	s.tick()
	s.tick()

	if back.converted != 1 {
		t.Errorf("one published frame must be converted exactly once, got %d conversions", back.converted)
	}
	measure.Access(func(st *toolstate.MeasureToolState) {
		if st.PerScreen[s.Handle()].CapturedBitmap == nil {
			t.Error("cached bitmap should survive frameless ticks")
		}
	})
}

func TestMeasureTickReleasesPreviousBitmap(t *testing.T) {
	s, back, measure, common := newMeasureSurface(t, toolstate.MeasureGlobal{PixelTolerance: 30, Mode: toolstate.ModeCross})
	common.SetCursorPos(image.Point{X: 100, Y: 50})

	for i := 0; i < 2; i++ {
		measure.Access(func(st *toolstate.MeasureToolState) {
			st.PerScreen[s.Handle()].CapturedFrame = image.NewRGBA(image.Rect(0, 0, 200, 100))
		})
		s.tick()
	}

	if len(back.bitmaps) != 2 {
		t.Fatalf("expected two conversions, got %d", len(back.bitmaps))
	}
	if !back.bitmaps[0].released {
		t.Error("first bitmap should be released when replaced")
	}
	if back.bitmaps[1].released {
		t.Error("current bitmap must not be released")
	}
}

func TestMeasureConversionFailureKeepsPreviousBitmap(t *testing.T) {
	s, back, measure, common := newMeasureSurface(t, toolstate.MeasureGlobal{PixelTolerance: 30, Mode: toolstate.ModeCross})
	common.SetCursorPos(image.Point{X: 100, Y: 50})

	measure.Access(func(st *toolstate.MeasureToolState) {
		st.PerScreen[s.Handle()].CapturedFrame = image.NewRGBA(image.Rect(0, 0, 200, 100))
	})
	s.tick()

	back.convertErr = errors.New("device lost")
	measure.Access(func(st *toolstate.MeasureToolState) {
		st.PerScreen[s.Handle()].CapturedFrame = image.NewRGBA(image.Rect(0, 0, 200, 100))
	})
	s.tick()

	measure.Access(func(st *toolstate.MeasureToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps.CapturedBitmap == nil {
			t.Error("previous bitmap should survive a failed conversion")
		}
		if ps.CapturedFrame == nil {
			t.Error("failed conversion must leave the frame published for a retry")
		}
	})
	if back.bitmaps[0].released {
		t.Error("surviving bitmap must not be released on conversion failure")
	}
}

func TestOneShotConversionFailureRetriesNextTick(t *testing.T) {
	s, back, measure, common := newMeasureSurface(t, toolstate.MeasureGlobal{PixelTolerance: 30, Mode: toolstate.ModeCross})
	common.SetCursorPos(image.Point{X: 100, Y: 50})

	// The only frame a one-shot session will ever see.
	measure.Access(func(st *toolstate.MeasureToolState) {
		st.PerScreen[s.Handle()].CapturedFrame = image.NewRGBA(image.Rect(0, 0, 200, 100))
	})

	back.convertErr = errors.New("device lost")
	s.tick()
	measure.Access(func(st *toolstate.MeasureToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps.CapturedFrame == nil {
			t.Fatal("failed conversion consumed the frame; nothing left to retry")
		}
		if ps.CapturedBitmap != nil {
			t.Fatal("no bitmap should exist after a failed conversion")
		}
	})

	back.convertErr = nil
	s.tick()
	measure.Access(func(st *toolstate.MeasureToolState) {
		ps := st.PerScreen[s.Handle()]
		if ps.CapturedBitmap == nil {
			t.Error("next tick should retry the conversion and cache the bitmap")
		}
		if ps.CapturedFrame != nil {
			t.Error("frame should be consumed once conversion succeeds")
		}
	})
	if back.converted != 2 {
		t.Errorf("expected a failed attempt and one retry, got %d attempts", back.converted)
	}
}

func TestCancelFiresCompletionOnceAndRequestsTeardown(t *testing.T) {
	s, _, _, common := newBoundsSurface(t)
	completions := 0
	teardowns := 0
	common.SetCompletionCallback(func() { completions++ })
	s.cfg.OnSessionEnd = func() { teardowns++ }

	s.cancel()
	s.cancel() // second cancel is a no-op: already Closing

	if completions != 1 {
		t.Errorf("completion fired %d times, want 1", completions)
	}
	if teardowns != 1 {
		t.Errorf("teardown requested %d times, want 1", teardowns)
	}
}

func TestCompletionFiresOnceAcrossSurfaces(t *testing.T) {
	common := toolstate.NewCommonState()
	bounds := serialized.New[toolstate.BoundsToolState]()
	completions := 0
	common.SetCompletionCallback(func() { completions++ })

	var surfaces []*Surface
	for i := 0; i < 3; i++ {
		back := &fakeBackend{handle: toolstate.Handle(100 + i)}
		s := &Surface{cfg: Config{Monitor: testMonitor(), Common: common, Bounds: bounds}}
		s.back = back
		s.state.Store(stateActive)
		surfaces = append(surfaces, s)
	}
	for _, s := range surfaces {
		s.cancel()
	}
	if completions != 1 {
		t.Errorf("completion fired %d times across monitors, want 1", completions)
	}
}

func TestFocusLostHonorsCloseFlagAndToolbarBox(t *testing.T) {
	s, _, _, common := newBoundsSurface(t)
	teardowns := 0
	s.cfg.OnSessionEnd = func() { teardowns++ }

	// Flag unarmed (mid-reset): blur must not close anything.
	common.SetCloseOnOtherMonitors(false)
	s.focusLost()
	if teardowns != 0 {
		t.Fatal("blur closed the session while close-on-blur was unarmed")
	}

	// Armed, but focus went to the host toolbar.
	common.SetCloseOnOtherMonitors(true)
	common.SetToolbarBox(image.Rect(500, 0, 700, 50))
	common.SetCursorPos(image.Point{X: 600, Y: 25})
	s.focusLost()
	if teardowns != 0 {
		t.Fatal("blur into the toolbar box must not close the session")
	}

	// Armed and outside the toolbar.
	common.SetCursorPos(image.Point{X: 10, Y: 900})
	s.focusLost()
	if teardowns != 1 {
		t.Errorf("expected teardown after blur outside toolbar, got %d", teardowns)
	}
}

func TestDestroyDoesNotFireCompletion(t *testing.T) {
	s, back, _, common := newBoundsSurface(t)
	completions := 0
	common.SetCompletionCallback(func() { completions++ })

	s.Destroy()
	if !back.closed {
		t.Error("destroy should close the backend window")
	}
	if completions != 0 {
		t.Error("orchestrator-driven destroy must not fire the completion callback")
	}

	// Input after Closing is ignored.
	s.onMouseDown(image.Point{X: 1, Y: 1})
	s.onMouseUp(image.Point{X: 5, Y: 5})
}

func TestReadoutAnchorFlips(t *testing.T) {
	left := readoutAnchor(image.Point{X: 10, Y: 10}, true, true)
	if left.X <= 10 || left.Y <= 10 {
		t.Errorf("top-left cursor should offset right/down, got %v", left)
	}
	right := readoutAnchor(image.Point{X: 190, Y: 90}, false, false)
	if right.X >= 190 || right.Y >= 90 {
		t.Errorf("bottom-right cursor should flip left/up, got %v", right)
	}
}
