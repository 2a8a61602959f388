package tui

import (
	"context"
	"sync"
	"time"

	"snapmorph/engine"
	"snapmorph/midi"
	"snapmorph/theme"
)

// LED refresh rate
const ledFPS = 10

var ledOff = [3]uint8{0, 0, 0}

// LEDRenderer mirrors grid state onto a connected controller: pads with
// scenes lit, pads mid-morph glowing along the theme ramp as their value
// moves. Updates are diffed so only changed LEDs are transmitted, and
// run at a fixed rate off the tick path.
type LEDRenderer struct {
	eng *engine.Engine
	th  *theme.Theme

	mu   sync.Mutex
	ctrl midi.Controller
	prev map[int][3]uint8
}

func NewLEDRenderer(eng *engine.Engine, th *theme.Theme) *LEDRenderer {
	return &LEDRenderer{
		eng:  eng,
		th:   th,
		prev: make(map[int][3]uint8),
	}
}

// SetController attaches (or detaches, with nil) the hardware grid.
// The diff state resets so the full grid is repainted.
func (r *LEDRenderer) SetController(c midi.Controller) {
	r.mu.Lock()
	r.ctrl = c
	r.prev = make(map[int][3]uint8)
	r.mu.Unlock()
}

// Run repaints LEDs at a fixed rate (blocking - run in goroutine)
func (r *LEDRenderer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.render()
		}
	}
}

func (r *LEDRenderer) render() {
	r.mu.Lock()
	ctrl := r.ctrl
	r.mu.Unlock()
	if ctrl == nil {
		return
	}

	project := r.eng.Project()
	morphing := r.eng.Morphing()
	snap := r.eng.Snapshot()

	var updates []midi.PadLED
	r.mu.Lock()
	for idx := 0; idx < engine.GridSize; idx++ {
		pad, err := project.Pad(idx)
		color := ledOff
		if err == nil && !pad.Empty() {
			color = [3]uint8(r.th.RGB(theme.RoleScene))
			if padMorphing(pad, morphing) {
				color = [3]uint8(r.th.RGB(padLevel(pad, snap)))
			}
		}
		if r.prev[idx] != color {
			updates = append(updates, midi.PadLED{Index: idx, Color: color})
			r.prev[idx] = color
		}
	}
	r.mu.Unlock()

	if len(updates) > 0 {
		ctrl.SetLEDBatch(updates)
	}
}

// padLevel is the pad's first live CC value normalized to 0-1
func padLevel(pad *engine.Pad, snap engine.Snapshot) float64 {
	for _, t := range pad.CCTargets {
		if t.NoOp {
			continue
		}
		if v, ok := snap[midi.CCKey{Channel: t.Channel, Number: t.CCNumber}]; ok {
			return float64(v) / 127
		}
	}
	return theme.RoleScene
}
