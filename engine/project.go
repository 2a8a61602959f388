package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// GridSize is the number of pads in a project. The grid is always fully
// populated; an unused slot is a pad with no CC targets.
const GridSize = 64

// Duration of a morph, in musical beats or absolute milliseconds.
// Beats win when both are set.
type Duration struct {
	Beats  float64 `json:"beats,omitempty"`
	Millis int     `json:"ms,omitempty"`
}

// Ticks converts the duration to scheduler ticks at the given resolution
// and tempo. A zero duration is legal and resolves on the next tick.
func (d Duration) Ticks(ticksPerBeat int, tempo float64) int64 {
	if d.Beats > 0 {
		return int64(d.Beats * float64(ticksPerBeat))
	}
	if d.Millis > 0 && tempo > 0 {
		beats := float64(d.Millis) / 1000 * tempo / 60
		return int64(beats * float64(ticksPerBeat))
	}
	return 0
}

// CCDefinition names a controllable parameter. Pads may only target CC
// numbers that have a definition in the project.
type CCDefinition struct {
	CCNumber    uint8  `json:"cc_number"`
	Channel     uint8  `json:"channel"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CCTarget is one CC a pad controls: target value, morph duration and
// curve. A no-op target leaves the CC's current value and any in-flight
// morph untouched when the pad fires.
type CCTarget struct {
	CCNumber    uint8    `json:"cc_number"`
	Channel     uint8    `json:"channel"`
	TargetValue uint8    `json:"target_value"`
	Duration    Duration `json:"duration"`
	Curve       Curve    `json:"curve,omitempty"`
	NoOp        bool     `json:"no_op,omitempty"`
}

// Pad is one grid cell holding a scene
type Pad struct {
	Index     int        `json:"index"`
	Name      string     `json:"name"`
	CCTargets []CCTarget `json:"cc_targets"`
}

// Empty reports whether the pad holds any scene data
func (p *Pad) Empty() bool {
	return len(p.CCTargets) == 0
}

// Project is an immutable snapshot of the full grid plus the CC
// definition table. Edits replace the whole project, never mutate one the
// scheduler may be reading.
type Project struct {
	Name          string         `json:"name,omitempty"`
	Pads          []Pad          `json:"pads"`
	CCDefinitions []CCDefinition `json:"cc_definitions"`
}

// NewProject returns an empty project with all 64 pad slots populated
func NewProject(name string) *Project {
	p := &Project{
		Name: name,
		Pads: make([]Pad, GridSize),
	}
	for i := range p.Pads {
		p.Pads[i].Index = i
	}
	return p
}

// Pad returns the pad at a grid index
func (p *Project) Pad(index int) (*Pad, error) {
	if index < 0 || index >= GridSize || index >= len(p.Pads) {
		return nil, errors.Wrapf(ErrNotFound, "pad %d", index)
	}
	return &p.Pads[index], nil
}

// Definition looks up the CC definition for a CC number
func (p *Project) Definition(ccNumber uint8) (*CCDefinition, bool) {
	for i := range p.CCDefinitions {
		if p.CCDefinitions[i].CCNumber == ccNumber {
			return &p.CCDefinitions[i], true
		}
	}
	return nil, false
}

// Validate checks the project against the schema invariants and returns
// every violation found: wrong pad count, duplicate definitions, values
// out of MIDI range, and pads referencing undefined CC numbers.
func (p *Project) Validate() []error {
	var errs []error

	if len(p.Pads) != GridSize {
		errs = append(errs, fmt.Errorf("project has %d pads, want %d", len(p.Pads), GridSize))
	}

	seen := make(map[uint8]bool, len(p.CCDefinitions))
	for _, def := range p.CCDefinitions {
		if seen[def.CCNumber] {
			errs = append(errs, fmt.Errorf("duplicate definition for CC %d", def.CCNumber))
		}
		seen[def.CCNumber] = true
		if def.CCNumber > 127 {
			errs = append(errs, fmt.Errorf("definition CC number %d out of range", def.CCNumber))
		}
		if def.Channel > 15 {
			errs = append(errs, fmt.Errorf("CC %d: channel %d out of range", def.CCNumber, def.Channel))
		}
	}

	for i := range p.Pads {
		pad := &p.Pads[i]
		if pad.Index != i {
			errs = append(errs, fmt.Errorf("pad at slot %d has index %d", i, pad.Index))
		}
		for _, t := range pad.CCTargets {
			if !seen[t.CCNumber] {
				errs = append(errs, fmt.Errorf("pad %d targets undefined CC %d", i, t.CCNumber))
			}
			if t.CCNumber > 127 {
				errs = append(errs, fmt.Errorf("pad %d: CC number %d out of range", i, t.CCNumber))
			}
			if t.Channel > 15 {
				errs = append(errs, fmt.Errorf("pad %d CC %d: channel %d out of range", i, t.CCNumber, t.Channel))
			}
			if t.TargetValue > 127 {
				errs = append(errs, fmt.Errorf("pad %d CC %d: value %d out of range", i, t.CCNumber, t.TargetValue))
			}
			if !t.Curve.Valid() {
				errs = append(errs, fmt.Errorf("pad %d CC %d: unknown curve %q", i, t.CCNumber, t.Curve))
			}
		}
	}

	return errs
}
