//go:build windows

package dpi

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	shcore             = windows.NewLazySystemDLL("shcore.dll")
	procGetDpiForWnd   = user32.NewProc("GetDpiForWindow")
	procMonitorFromWnd = user32.NewProc("MonitorFromWindow")
	procGetDpiForMon   = shcore.NewProc("GetDpiForMonitor")
)

const monitorDefaultToNearest = 2

func dpiForWindow(handle uintptr) uint32 {
	// GetDpiForWindow is Win10 1607+; prefer it.
	if procGetDpiForWnd.Find() == nil {
		if r, _, _ := procGetDpiForWnd.Call(handle); r != 0 {
			return uint32(r)
		}
	}

	// Fall back to the monitor's effective DPI (Win 8.1+).
	if procMonitorFromWnd.Find() != nil || procGetDpiForMon.Find() != nil {
		return 0
	}
	hmon, _, _ := procMonitorFromWnd.Call(handle, monitorDefaultToNearest)
	if hmon == 0 {
		return 0
	}
	var dx, dy uint32
	// MDT_EFFECTIVE_DPI = 0
	if r, _, _ := procGetDpiForMon.Call(hmon, 0, uintptr(unsafe.Pointer(&dx)), uintptr(unsafe.Pointer(&dy))); r != 0 {
		return 0
	}
	return dx
}
