package settings

import (
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings is the immutable per-session snapshot loaded at every state
// reset. A running session never observes a settings change.
type Settings struct {
	LineColor                    color.RGBA
	PixelTolerance               uint8
	ContinuousCapture            bool
	PerColorChannelEdgeDetection bool
	DrawFeetOnCross              bool
	BoundsHotkey                 string
	MeasureHotkey                string
	EnableFileLogging            bool
}

// Defaults mirror the shipped product: orange-red strokes, tolerance 30,
// continuous capture on, feet on cross mode on.
func defaults() Settings {
	return Settings{
		LineColor:         color.RGBA{R: 255, G: 69, B: 0, A: 255},
		PixelTolerance:    30,
		ContinuousCapture: true,
		DrawFeetOnCross:   true,
		BoundsHotkey:      "Ctrl+Shift+B",
		MeasureHotkey:     "Ctrl+Shift+M",
	}
}

// Load reads the snapshot from a .env file next to the executable (if any)
// overlaid by process environment variables. Malformed values fall back to
// their defaults; Load itself never fails.
func Load() Settings {
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	s := defaults()
	if c, ok := parseColor(os.Getenv("LINE_COLOR")); ok {
		s.LineColor = c
	}
	if v := os.Getenv("PIXEL_TOLERANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 255 {
			s.PixelTolerance = uint8(n)
		}
	}
	s.ContinuousCapture = parseBool(os.Getenv("CONTINUOUS_CAPTURE"), s.ContinuousCapture)
	s.PerColorChannelEdgeDetection = parseBool(os.Getenv("PER_COLOR_CHANNEL_EDGE_DETECTION"), s.PerColorChannelEdgeDetection)
	s.DrawFeetOnCross = parseBool(os.Getenv("DRAW_FEET_ON_CROSS"), s.DrawFeetOnCross)
	if v := os.Getenv("BOUNDS_HOTKEY"); v != "" {
		s.BoundsHotkey = v
	}
	if v := os.Getenv("MEASURE_HOTKEY"); v != "" {
		s.MeasureHotkey = v
	}
	s.EnableFileLogging = strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true"
	return s
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}
	if alt := os.Getenv("SCREEN_RULER_ENV"); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// parseColor accepts "R,G,B" with each component in 0..255.
func parseColor(v string) (color.RGBA, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, false
		}
		ch[i] = uint8(n)
	}
	return color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}, true
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}
