//go:build windows

package main

import "syscall"

// enableDPIAwareness opts the process into per-monitor DPI awareness so
// overlay windows line up with physical pixels on mixed-DPI setups.
func enableDPIAwareness() {
	// Prefer Shcore.SetProcessDpiAwareness (Win 8.1+).
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		_, _, _ = setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		return
	}
	// Fallback: user32.SetProcessDPIAware (Vista+).
	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err == nil {
		_, _, _ = setProcessDPIAware.Call()
	}
}
