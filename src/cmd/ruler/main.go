package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"screen-ruler/src/clipboard"
	"screen-ruler/src/core"
	"screen-ruler/src/hotkey"
	"screen-ruler/src/logutil"
	"screen-ruler/src/settings"
	"screen-ruler/src/tray"
)

func main() {
	// DPI awareness must be set before any window or metric query.
	enableDPIAwareness()

	// The tray loop runs on the main goroutine and must keep its thread.
	runtime.LockOSThread()

	cfg := settings.Load()
	logutil.Setup(cfg.EnableFileLogging)

	if err := clipboard.Init(); err != nil {
		// Readout copy degrades to a no-op; measuring still works.
		log.Printf("clipboard unavailable: %v", err)
	}

	c := core.New()
	c.SetToolCompletionEvent(func() {
		log.Printf("measurement session ended")
	})

	log.Printf("Screen Ruler started")
	log.Printf("Hotkeys: %s bounds, %s measure", cfg.BoundsHotkey, cfg.MeasureHotkey)

	hotkey.Listen(
		hotkey.Binding{Combo: cfg.BoundsHotkey, Action: c.StartBoundsTool},
		hotkey.Binding{Combo: cfg.MeasureHotkey, Action: func() { c.StartMeasureTool(true, true) }},
	)

	// SIGINT/SIGTERM unwind through the tray's quit path.
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		tray.Quit()
	}()

	tray.Run(tray.Config{
		Tooltip:             fmt.Sprintf("Screen Ruler - %s to measure", cfg.MeasureHotkey),
		OnBounds:            c.StartBoundsTool,
		OnMeasureHorizontal: func() { c.StartMeasureTool(true, false) },
		OnMeasureVertical:   func() { c.StartMeasureTool(false, true) },
		OnMeasureCross:      func() { c.StartMeasureTool(true, true) },
		OnQuit:              c.Close,
	})
}
