package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme maps UI roles onto positions of a palette ramp. The same ramp
// colors the terminal grid and the controller LEDs, so both surfaces
// agree on what a value "looks like".
type Theme struct {
	Palette *Palette
}

func New(palette *Palette) *Theme {
	return &Theme{Palette: palette}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted    = 0.1 // empty pads, help text
	RoleScene    = 0.4 // pads holding a scene
	RoleMorphing = 0.9 // pads mid-morph
	RoleCursor   = 0.6
	RoleHeader   = 0.75
	RoleError    = 1.0
)

func (t *Theme) Muted() lipgloss.Color    { return t.Color(RoleMuted) }
func (t *Theme) Scene() lipgloss.Color    { return t.Color(RoleScene) }
func (t *Theme) Morphing() lipgloss.Color { return t.Color(RoleMorphing) }
func (t *Theme) Cursor() lipgloss.Color   { return t.Color(RoleCursor) }
func (t *Theme) Header() lipgloss.Color   { return t.Color(RoleHeader) }
func (t *Theme) Error() lipgloss.Color    { return t.Color(RoleError) }

// Color returns the lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// RGB returns the raw color for any normalized value (for LED output)
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
