package engine

import (
	"errors"
	"testing"
)

func TestResolvePadOutOfRange(t *testing.T) {
	p := validProject()
	for _, idx := range []int{-1, 64} {
		_, err := resolvePad(p, idx)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("resolvePad(%d) = %v, want ErrNotFound", idx, err)
		}
	}
}

func TestResolvePadEmpty(t *testing.T) {
	_, err := resolvePad(validProject(), 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty pad = %v, want ErrNotFound", err)
	}
}

func TestResolvePadDanglingReference(t *testing.T) {
	p := validProject()
	p.Pads[2] = Pad{
		Index:     2,
		CCTargets: []CCTarget{{CCNumber: 42, Channel: 0, TargetValue: 1}},
	}
	_, err := resolvePad(p, 2)
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("dangling reference = %v, want ErrInvalidReference", err)
	}
}

func TestResolvePadOK(t *testing.T) {
	pad, err := resolvePad(validProject(), 0)
	if err != nil {
		t.Fatalf("resolvePad(0): %v", err)
	}
	if pad.Name != "Opening" {
		t.Fatalf("pad name = %q", pad.Name)
	}
}

func TestTriggerModes(t *testing.T) {
	if Immediate().Quantized {
		t.Fatal("Immediate() should not be quantized")
	}
	m := Quantized(4)
	if !m.Quantized || m.Boundary != 4 {
		t.Fatalf("Quantized(4) = %+v", m)
	}
}
