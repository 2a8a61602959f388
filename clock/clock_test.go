package clock

import (
	"math"
	"testing"
)

func TestNewClampsConfig(t *testing.T) {
	c := New(0, 500)
	if c.ticksPerBeat != 24 {
		t.Fatalf("ticksPerBeat = %d, want 24", c.ticksPerBeat)
	}
	if c.Tempo() != 300 {
		t.Fatalf("tempo = %v, want 300", c.Tempo())
	}
	if c := New(24, 5); c.Tempo() != 20 {
		t.Fatalf("tempo = %v, want 20", c.Tempo())
	}
}

func TestInternalStepAdvancesOneBeat(t *testing.T) {
	c := New(24, 120)
	for i := 0; i < 24; i++ {
		c.step()
	}
	if c.CurrentTick() != 24 {
		t.Fatalf("tick = %d, want 24", c.CurrentTick())
	}
	if math.Abs(c.beat-1.0) > 1e-9 {
		t.Fatalf("beat = %v, want 1.0", c.beat)
	}

	for i := int64(1); i <= 24; i++ {
		ev := <-c.Ticks()
		if ev.Tick != i {
			t.Fatalf("event %d has tick %d", i, ev.Tick)
		}
		if !ev.Running || ev.State != Disconnected || ev.Tempo != 120 {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
}

func TestNextBoundaryTick(t *testing.T) {
	c := New(24, 120)

	// At beat 0 the next beat boundary is tick 24.
	if got := c.NextBoundaryTick(1); got != 24 {
		t.Fatalf("boundary from beat 0 = %d, want 24", got)
	}

	// Half a beat in, the same boundary.
	c.mu.Lock()
	c.beat = 0.5
	c.tick = 12
	c.mu.Unlock()
	if got := c.NextBoundaryTick(1); got != 24 {
		t.Fatalf("boundary from beat 0.5 = %d, want 24", got)
	}

	// Bar boundary in 4/4 from beat 0.5 is beat 4, tick 96.
	if got := c.NextBoundaryTick(4); got != 96 {
		t.Fatalf("bar boundary from beat 0.5 = %d, want 96", got)
	}

	// Zero or negative subdivision falls back to the next beat.
	if got := c.NextBoundaryTick(0); got != 24 {
		t.Fatalf("boundary with subdivision 0 = %d, want 24", got)
	}
}

func TestNextBoundaryStrictlyAfterCurrentTick(t *testing.T) {
	c := New(24, 120)
	c.mu.Lock()
	c.beat = 1.0
	c.tick = 24
	c.mu.Unlock()

	// Exactly on a boundary: the result is the following one.
	if got := c.NextBoundaryTick(1); got != 48 {
		t.Fatalf("boundary from beat 1.0 = %d, want 48", got)
	}

	// A hair before a boundary still yields at least one tick of delay.
	c.mu.Lock()
	c.beat = 1.9999999
	c.tick = 47
	c.mu.Unlock()
	if got := c.NextBoundaryTick(1); got <= 47 {
		t.Fatalf("boundary = %d, want > 47", got)
	}
}

func TestSetTempoWithoutSession(t *testing.T) {
	c := New(24, 120)
	c.SetTempo(140)
	if c.Tempo() != 140 {
		t.Fatalf("tempo = %v, want 140", c.Tempo())
	}
	c.SetTempo(10)
	if c.Tempo() != 20 {
		t.Fatalf("tempo = %v, want clamped 20", c.Tempo())
	}
}

func TestStepDropsTicksWhenConsumerStalls(t *testing.T) {
	c := New(24, 120)
	// Nobody draining: the channel fills, step must not block.
	for i := 0; i < 200; i++ {
		c.step()
	}
	if c.CurrentTick() != 200 {
		t.Fatalf("tick = %d, want 200", c.CurrentTick())
	}
	if len(c.ticks) != cap(c.ticks) {
		t.Fatalf("channel holds %d events, want full (%d)", len(c.ticks), cap(c.ticks))
	}
	// Absolute tick numbers survive the drop.
	ev := <-c.Ticks()
	if ev.Tick != 1 {
		t.Fatalf("first buffered tick = %d, want 1", ev.Tick)
	}
}

func TestSyncFlagsDefaultOff(t *testing.T) {
	c := New(24, 120)
	if c.SyncEnabled() {
		t.Fatal("sync enabled on a fresh clock")
	}
	c.step()
	if c.SessionLost() {
		t.Fatal("session loss reported with sync never enabled")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Disconnected:     "internal",
		Connected:        "connected",
		ConnectedStopped: "connected (stopped)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
