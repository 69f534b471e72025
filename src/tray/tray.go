// Package tray runs the system tray menu: the host surface from which the
// measurement tools are launched when no hotkey is used.
package tray

import (
	"log"

	"github.com/getlantern/systray"
)

// Config wires the menu items to tool activations.
type Config struct {
	Tooltip string

	OnBounds            func()
	OnMeasureHorizontal func()
	OnMeasureVertical   func()
	OnMeasureCross      func()
	OnQuit              func()
}

// Run starts the tray loop. Blocks until Quit; call from the main goroutine.
func Run(cfg Config) {
	systray.Run(func() { onReady(cfg) }, func() {
		if cfg.OnQuit != nil {
			cfg.OnQuit()
		}
	})
}

// Quit dismisses the tray and unblocks Run.
func Quit() {
	systray.Quit()
}

func onReady(cfg Config) {
	if icon := getIcon(); len(icon) > 0 {
		systray.SetIcon(icon)
	}
	systray.SetTitle("Screen Ruler")
	systray.SetTooltip(cfg.Tooltip)

	mBounds := systray.AddMenuItem("Bounds", "Drag rectangles to measure regions")
	mHorizontal := systray.AddMenuItem("Measure horizontally", "Measure the horizontal span under the cursor")
	mVertical := systray.AddMenuItem("Measure vertically", "Measure the vertical span under the cursor")
	mCross := systray.AddMenuItem("Measure both", "Measure both spans under the cursor")
	mQuit := systray.AddMenuItem("Quit", "Quit Screen Ruler")

	go func() {
		for {
			select {
			case <-mBounds.ClickedCh:
				activate(cfg.OnBounds)
			case <-mHorizontal.ClickedCh:
				activate(cfg.OnMeasureHorizontal)
			case <-mVertical.ClickedCh:
				activate(cfg.OnMeasureVertical)
			case <-mCross.ClickedCh:
				activate(cfg.OnMeasureCross)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func activate(fn func()) {
	if fn == nil {
		log.Printf("TRAY: menu item has no action wired")
		return
	}
	fn()
}
