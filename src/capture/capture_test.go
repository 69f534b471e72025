package capture

import (
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"screen-ruler/src/serialized"
	"screen-ruler/src/toolstate"
)

func newState(continuous bool) *serialized.Value[toolstate.MeasureToolState] {
	st := serialized.New[toolstate.MeasureToolState]()
	st.Access(func(s *toolstate.MeasureToolState) {
		s.Global.ContinuousCapture = continuous
		s.PerScreen = map[toolstate.Handle]*toolstate.MeasurePerScreen{
			1: {},
		}
	})
	return st
}

func countingSource(calls *atomic.Int32) SourceFunc {
	return func(r image.Rectangle) (*image.RGBA, error) {
		calls.Add(1)
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}
}

func TestOneShotCapturesExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	st := newState(false)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Thread{
			Monitor: image.Rect(0, 0, 64, 64),
			Window:  1,
			State:   st,
			Source:  countingSource(&calls),
		}.Run(stop)
	}()

	// Give the thread several frame durations; one-shot must not re-capture.
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("one-shot capture ran %d times, want 1", got)
	}

	close(stop)
	wg.Wait()

	st.Access(func(s *toolstate.MeasureToolState) {
		if s.PerScreen[1].CapturedFrame == nil {
			t.Error("expected the single frame to be published")
		}
	})
}

func TestContinuousKeepsCapturing(t *testing.T) {
	var calls atomic.Int32
	st := newState(true)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Thread{
			Monitor: image.Rect(0, 0, 64, 64),
			Window:  1,
			State:   st,
			Source:  countingSource(&calls),
		}.Run(stop)
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()

	if got := calls.Load(); got < 2 {
		t.Errorf("continuous capture ran %d times, want several", got)
	}
}

func TestCaptureFailureRetriesNextTick(t *testing.T) {
	var calls atomic.Int32
	st := newState(false)
	stop := make(chan struct{})
	failFirst := func(r image.Rectangle) (*image.RGBA, error) {
		if calls.Add(1) == 1 {
			return nil, image.ErrFormat
		}
		return image.NewRGBA(r), nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Thread{Monitor: image.Rect(0, 0, 8, 8), Window: 1, State: st, Source: failFirst}.Run(stop)
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()

	if got := calls.Load(); got < 2 {
		t.Errorf("expected a retry after the failed acquisition, got %d calls", got)
	}
	st.Access(func(s *toolstate.MeasureToolState) {
		if s.PerScreen[1].CapturedFrame == nil {
			t.Error("expected a frame after retry")
		}
	})
}

func TestStopUnblocksPromptly(t *testing.T) {
	st := newState(true)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Thread{Monitor: image.Rect(0, 0, 8, 8), Window: 1, State: st, Source: countingSource(new(atomic.Int32))}.Run(stop)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("capture thread did not honor stop signal")
	}
}
