//go:build windows

package overlay

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screen-ruler/src/consts"
	"screen-ruler/src/gpu"
	"screen-ruler/src/monitors"
	"screen-ruler/src/toolstate"
)

const redrawTimerID = 1

var (
	user32DLL               = syscall.NewLazyDLL("user32.dll")
	procSendMessageTimeoutW = user32DLL.NewProc("SendMessageTimeoutW")

	gdi32DLL       = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen  = gdi32DLL.NewProc("CreatePen")
	procRectangle  = gdi32DLL.NewProc("Rectangle")
	procMoveToEx   = gdi32DLL.NewProc("MoveToEx")
	procLineTo     = gdi32DLL.NewProc("LineTo")
)

// backends maps window handles back to their backend inside the shared
// window procedure.
var backends sync.Map // win.HWND -> *winBackend

// winBackend runs one fullscreen topmost window on its own OS thread with
// its own message loop and redraw timer.
type winBackend struct {
	surface *Surface
	hwnd    win.HWND
}

func newBackend(s *Surface, mon monitors.Info) (Backend, error) {
	b := &winBackend{surface: s}

	ready := make(chan error, 1)
	go b.windowLoop(mon, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return b, nil
}

// windowLoop creates the window and pumps messages until destroyed. Window
// handles have thread affinity, so creation and the loop share one locked
// thread.
func (b *winBackend) windowLoop(mon monitors.Info, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	classNameStr := fmt.Sprintf("RulerOverlay_%d_%d", mon.Index, time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
		HbrBackground: 0, // we paint the whole client area ourselves
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		ready <- fmt.Errorf("failed to register overlay window class")
		return
	}
	defer win.UnregisterClass(className)

	bounds := mon.Bounds
	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW,
		className,
		syscall.StringToUTF16Ptr("Screen Ruler"),
		win.WS_POPUP|win.WS_VISIBLE,
		int32(bounds.Min.X), int32(bounds.Min.Y), int32(bounds.Dx()), int32(bounds.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("failed to create overlay window")
		return
	}
	b.hwnd = hwnd
	backends.Store(hwnd, b)
	defer backends.Delete(hwnd)

	win.ShowWindow(hwnd, win.SW_SHOW)
	win.SetForegroundWindow(hwnd)
	win.UpdateWindow(hwnd)

	interval := uint32(consts.TargetFrameDuration.Milliseconds())
	if interval == 0 {
		interval = 1
	}
	win.SetTimer(hwnd, redrawTimerID, interval, 0)

	ready <- nil

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 { // WM_QUIT or error
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	v, ok := backends.Load(hwnd)
	if !ok {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}
	b := v.(*winBackend)

	switch msg {
	case win.WM_TIMER:
		if wParam == redrawTimerID {
			b.surface.tick()
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		b.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		b.surface.onMouseDown(pointFromLParam(lParam))
		return 0

	case win.WM_MOUSEMOVE:
		b.surface.onMouseMove(pointFromLParam(lParam))
		return 0

	case win.WM_LBUTTONUP:
		win.ReleaseCapture()
		b.surface.onMouseUp(pointFromLParam(lParam))
		return 0

	case win.WM_RBUTTONUP:
		b.surface.cancel()
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			b.surface.cancel()
		}
		return 0

	case win.WM_ACTIVATE:
		if win.LOWORD(uint32(wParam)) == win.WA_INACTIVE {
			b.surface.focusLost()
		}
		return 0

	case win.WM_NCHITTEST:
		// Every point is client area so the window sees all mouse events.
		return uintptr(win.HTCLIENT)

	case win.WM_CLOSE:
		win.DestroyWindow(hwnd)
		return 0

	case win.WM_DESTROY:
		win.KillTimer(hwnd, redrawTimerID)
		// Each surface owns its thread's message loop, so quitting here is
		// safe and ends windowLoop.
		win.PostQuitMessage(0)
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func pointFromLParam(lParam uintptr) image.Point {
	return image.Point{
		X: int(int16(win.LOWORD(uint32(lParam)))),
		Y: int(int16(win.HIWORD(uint32(lParam)))),
	}
}

func (b *winBackend) Handle() toolstate.Handle {
	return toolstate.Handle(b.hwnd)
}

func (b *winBackend) Invalidate() {
	win.InvalidateRect(b.hwnd, nil, false)
}

// Close dismisses the window with the fixed message timeout so a wedged
// window cannot stall session teardown indefinitely.
func (b *winBackend) Close() {
	var result uintptr
	procSendMessageTimeoutW.Call(
		uintptr(b.hwnd),
		win.WM_CLOSE,
		0, 0,
		0, // SMTO_NORMAL
		uintptr(consts.WindowCloseTimeout.Milliseconds()),
		uintptr(unsafe.Pointer(&result)),
	)
}

// dibBitmap is the drawing-ready conversion of a captured frame: a 32bpp
// top-down DIB section selected into BitBlt during paint.
type dibBitmap struct {
	hbitmap win.HBITMAP
	size    image.Point
}

func (d *dibBitmap) Release() {
	if d.hbitmap != 0 {
		win.DeleteObject(win.HGDIOBJ(d.hbitmap))
		d.hbitmap = 0
	}
}

// ConvertFrame builds the DIB section for a raw RGBA frame. Caller holds
// the gpu lock.
func (b *winBackend) ConvertFrame(frame *image.RGBA) (toolstate.Bitmap, error) {
	width := frame.Bounds().Dx()
	height := frame.Bounds().Dy()

	bitmapInfo := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // negative for top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}

	var pBits unsafe.Pointer
	hBitmap := win.CreateDIBSection(0, &bitmapInfo.BmiHeader, win.DIB_RGB_COLORS, &pBits, 0, 0)
	if hBitmap == 0 {
		return nil, fmt.Errorf("CreateDIBSection failed for %dx%d frame", width, height)
	}

	// RGBA to BGRA, row by row; DIB rows are DWORD-aligned.
	stride := (((int(width)*32 + 31) &^ 31) / 8)
	dst := unsafe.Slice((*byte)(pBits), stride*height)
	for y := 0; y < height; y++ {
		srcRow := frame.Pix[y*frame.Stride:]
		dstRow := dst[y*stride:]
		for x := 0; x < width; x++ {
			si := x * 4
			dstRow[si] = srcRow[si+2]   // B
			dstRow[si+1] = srcRow[si+1] // G
			dstRow[si+2] = srcRow[si]   // R
			dstRow[si+3] = srcRow[si+3] // A
		}
	}

	return &dibBitmap{hbitmap: hBitmap, size: image.Point{X: width, Y: height}}, nil
}

// paint renders the current scene. All of it is gpu pipeline work.
func (b *winBackend) paint(hdc win.HDC) {
	gpu.Lock()
	defer gpu.Unlock()

	scene := b.surface.Scene()

	if bmp, ok := scene.Bitmap.(*dibBitmap); ok && bmp.hbitmap != 0 {
		memDC := win.CreateCompatibleDC(hdc)
		oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(bmp.hbitmap))
		win.BitBlt(hdc, 0, 0, int32(bmp.size.X), int32(bmp.size.Y), memDC, 0, 0, win.SRCCOPY)
		win.SelectObject(memDC, oldBitmap)
		win.DeleteDC(memDC)
	}

	// COLORREF is 0x00BBGGRR.
	stroke := uintptr(scene.Stroke.R) | uintptr(scene.Stroke.G)<<8 | uintptr(scene.Stroke.B)<<16
	pen, _, _ := procCreatePen.Call(0 /* PS_SOLID */, 2, stroke)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	for _, r := range scene.Rects {
		procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))
	}
	for _, l := range scene.Lines {
		procMoveToEx.Call(uintptr(hdc), uintptr(l.From.X), uintptr(l.From.Y), 0)
		procLineTo.Call(uintptr(hdc), uintptr(l.To.X), uintptr(l.To.Y))
	}

	if scene.Readout != "" {
		win.SetBkMode(hdc, win.TRANSPARENT)
		win.SetTextColor(hdc, win.COLORREF(stroke))
		win.TextOut(hdc, int32(scene.ReadoutAt.X), int32(scene.ReadoutAt.Y),
			syscall.StringToUTF16Ptr(scene.Readout), int32(len(scene.Readout)))
	}

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}
