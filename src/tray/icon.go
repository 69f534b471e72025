package tray

// Source artwork for the tray icon. Windows wants ICO bytes in SetIcon, so
// this is the master the bundled asset is rendered from.
const iconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16" width="16" height="16">
  <!-- Ruler body -->
  <rect x="1" y="6" width="14" height="4" rx="0.5" fill="none" stroke="#0078d4" stroke-width="1.2"/>

  <!-- Tick marks -->
  <line x1="3" y1="6" x2="3" y2="8" stroke="#0078d4" stroke-width="0.8"/>
  <line x1="5" y1="6" x2="5" y2="7.2" stroke="#0078d4" stroke-width="0.8"/>
  <line x1="7" y1="6" x2="7" y2="8" stroke="#0078d4" stroke-width="0.8"/>
  <line x1="9" y1="6" x2="9" y2="7.2" stroke="#0078d4" stroke-width="0.8"/>
  <line x1="11" y1="6" x2="11" y2="8" stroke="#0078d4" stroke-width="0.8"/>
  <line x1="13" y1="6" x2="13" y2="7.2" stroke="#0078d4" stroke-width="0.8"/>

  <!-- Crosshair -->
  <line x1="8" y1="1" x2="8" y2="4" stroke="#ff4500" stroke-width="1"/>
  <line x1="6.5" y1="2.5" x2="9.5" y2="2.5" stroke="#ff4500" stroke-width="1"/>
</svg>`

// TODO: render iconSVG to a bundled .ico and embed it here.
func getIcon() []byte {
	return nil
}
