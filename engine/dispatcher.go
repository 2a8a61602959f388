package engine

import "github.com/pkg/errors"

// TriggerMode selects when a pad fires
type TriggerMode struct {
	Quantized bool
	Boundary  float64 // beat subdivision: 1 = next beat, 4 = next bar
}

// Immediate fires the pad on the next tick
func Immediate() TriggerMode {
	return TriggerMode{}
}

// Quantized defers the pad to the next boundary of the given subdivision
func Quantized(boundary float64) TriggerMode {
	return TriggerMode{Quantized: true, Boundary: boundary}
}

// resolvePad validates a trigger against the current project: the index
// must name a defined pad and every target must reference a defined CC.
// Validation happens before anything reaches the scheduler, so a bad
// command never mutates playback state.
func resolvePad(p *Project, index int) (*Pad, error) {
	pad, err := p.Pad(index)
	if err != nil {
		return nil, err
	}
	if pad.Empty() {
		return nil, errors.Wrapf(ErrNotFound, "pad %d is empty", index)
	}
	for _, t := range pad.CCTargets {
		if _, ok := p.Definition(t.CCNumber); !ok {
			return nil, errors.Wrapf(ErrInvalidReference, "pad %d targets CC %d", index, t.CCNumber)
		}
	}
	return pad, nil
}
