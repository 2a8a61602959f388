package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"snapmorph/clock"
	"snapmorph/midi"
)

// fakeTimebase hands ticks to the engine from the test goroutine. The
// unbuffered channel makes tick delivery a synchronization point.
type fakeTimebase struct {
	ticks    chan clock.Tick
	boundary int64
	tempo    float64
	state    clock.State

	mu       sync.Mutex
	syncOn   bool
	syncErr  error
	syncLost bool
}

func (f *fakeTimebase) Ticks() <-chan clock.Tick         { return f.ticks }
func (f *fakeTimebase) NextBoundaryTick(_ float64) int64 { return f.boundary }
func (f *fakeTimebase) SetTempo(bpm float64)             { f.tempo = bpm }
func (f *fakeTimebase) State() clock.State               { return f.state }
func (f *fakeTimebase) Tempo() float64                   { return f.tempo }

func (f *fakeTimebase) SessionLost() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncLost
}

func (f *fakeTimebase) EnableSync(enable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return f.syncErr
	}
	f.syncOn = enable
	return nil
}

type fakeOutput struct {
	batches chan []midi.CC

	mu   sync.Mutex
	port string
	err  error
}

func (o *fakeOutput) WriteBatch(batch []midi.CC) { o.batches <- batch }

func (o *fakeOutput) SelectPort(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.port = name
	return nil
}

func (o *fakeOutput) PortName() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port
}

func (o *fakeOutput) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func startEngine(t *testing.T) (*Engine, *fakeTimebase, *fakeOutput) {
	t.Helper()
	store := NewStore()
	if err := store.Replace(validProject()); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	tb := &fakeTimebase{ticks: make(chan clock.Tick), tempo: 120}
	out := &fakeOutput{batches: make(chan []midi.CC, 256)}
	eng := New(store, tb, out, tpb)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)
	return eng, tb, out
}

func sendTick(t *testing.T, tb *fakeTimebase, tick int64, running bool) {
	t.Helper()
	ev := clock.Tick{Tick: tick, Tempo: tb.tempo, Running: running, State: tb.state}
	select {
	case tb.ticks <- ev:
	case <-time.After(time.Second):
		t.Fatalf("engine stopped consuming ticks at %d", tick)
	}
}

func recvBatch(t *testing.T, out *fakeOutput) []midi.CC {
	t.Helper()
	select {
	case b := <-out.batches:
		return b
	case <-time.After(time.Second):
		t.Fatal("no batch from engine")
		return nil
	}
}

// Pad 0 of validProject: CC 74 -> 100 over 4 beats, CC 71 -> 30 over
// 500ms (24 ticks at 120 BPM). Triggered before the first tick, so both
// morphs start at tick 0.
func TestImmediateTriggerDrivesSink(t *testing.T) {
	eng, tb, out := startEngine(t)

	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}

	for tick := int64(1); tick <= 96; tick++ {
		sendTick(t, tb, tick, true)
		batch := recvBatch(t, out)

		switch tick {
		case 24:
			if v, ok := findCC(batch, 1, 71); !ok || v != 30 {
				t.Fatalf("tick 24: CC71 = %d,%v, want 30", v, ok)
			}
		case 48:
			if v, _ := findCC(batch, 1, 74); v != 50 {
				t.Fatalf("tick 48: CC74 = %d, want 50", v)
			}
		case 96:
			if len(batch) != 1 {
				t.Fatalf("tick 96: batch = %v, want CC74 only", batch)
			}
			if v, _ := findCC(batch, 1, 74); v != 100 {
				t.Fatalf("tick 96: CC74 = %d, want 100", v)
			}
		}
	}

	snap := eng.Snapshot()
	if snap[midi.CCKey{Channel: 1, Number: 74}] != 100 || snap[midi.CCKey{Channel: 1, Number: 71}] != 30 {
		t.Fatalf("final snapshot = %v", snap)
	}
	if n := eng.Status().ActiveMorphs; n != 0 {
		t.Fatalf("morphs still active after settle: %d", n)
	}
}

func TestFailedTriggerLeavesPlaybackUntouched(t *testing.T) {
	eng, tb, out := startEngine(t)

	if err := eng.TriggerPad(99, Immediate()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("TriggerPad(99) = %v, want ErrNotFound", err)
	}
	if err := eng.TriggerPad(7, Immediate()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty pad = %v, want ErrNotFound", err)
	}

	sendTick(t, tb, 1, true)
	// A tick with nothing scheduled emits nothing; prove the loop is
	// still alive with a real trigger afterwards.
	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad(0): %v", err)
	}
	sendTick(t, tb, 2, true)
	batch := recvBatch(t, out)
	if len(out.batches) != 0 {
		t.Fatalf("failed triggers produced batches: %d queued", len(out.batches)+1)
	}
	if _, ok := findCC(batch, 1, 74); !ok {
		t.Fatalf("batch missing CC74: %v", batch)
	}
}

func TestQuantizedTriggerWaitsForBoundary(t *testing.T) {
	eng, tb, out := startEngine(t)
	tb.boundary = 10

	if err := eng.TriggerPad(0, Quantized(1)); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}

	for tick := int64(1); tick <= 9; tick++ {
		sendTick(t, tb, tick, true)
	}
	sendTick(t, tb, 10, true)
	batch := recvBatch(t, out)
	if len(out.batches) != 0 {
		t.Fatal("batches emitted before the boundary tick")
	}
	// Start of the morph: values are still at their origin on tick 10.
	if v, ok := findCC(batch, 1, 74); !ok || v != 0 {
		t.Fatalf("boundary tick CC74 = %d,%v, want 0", v, ok)
	}
}

func TestFreezeOnStopResumesWithoutJump(t *testing.T) {
	eng, tb, out := startEngine(t)
	eng.FreezeOnStop = true

	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}

	for tick := int64(1); tick <= 48; tick++ {
		sendTick(t, tb, tick, true)
		recvBatch(t, out)
	}

	// Transport stops for 12 ticks; the scheduler must not advance.
	for tick := int64(49); tick <= 60; tick++ {
		sendTick(t, tb, tick, false)
	}

	sendTick(t, tb, 61, true)
	batch := recvBatch(t, out)
	if len(out.batches) != 0 {
		t.Fatal("batches emitted while transport was stopped")
	}
	// CC74 was at 50 when the transport stopped; after the 12-tick shift
	// the resume tick lands one step later, at 51.
	if v, _ := findCC(batch, 1, 74); v != 51 {
		t.Fatalf("resume tick CC74 = %d, want 51", v)
	}
}

func TestStoppedTransportStillAdvancesByDefault(t *testing.T) {
	eng, tb, out := startEngine(t)

	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}

	sendTick(t, tb, 48, false)
	batch := recvBatch(t, out)
	if v, _ := findCC(batch, 1, 74); v != 50 {
		t.Fatalf("CC74 = %d, want 50", v)
	}
}

func TestSinkErrorSurfacesInStatus(t *testing.T) {
	eng, tb, out := startEngine(t)

	out.mu.Lock()
	out.err = errors.New("port vanished")
	out.mu.Unlock()

	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}
	sendTick(t, tb, 1, true)
	recvBatch(t, out)
	sendTick(t, tb, 2, true)
	recvBatch(t, out)

	st := eng.Status()
	if !errors.Is(st.SinkErr, ErrDeviceUnavailable) {
		t.Fatalf("Status.SinkErr = %v, want ErrDeviceUnavailable", st.SinkErr)
	}
}

func TestSessionLossSurfacesInStatus(t *testing.T) {
	eng, tb, _ := startEngine(t)

	if st := eng.Status(); st.SyncErr != nil {
		t.Fatalf("SyncErr before loss = %v", st.SyncErr)
	}

	tb.mu.Lock()
	tb.syncLost = true
	tb.mu.Unlock()

	if st := eng.Status(); !errors.Is(st.SyncErr, ErrSessionLost) {
		t.Fatalf("Status.SyncErr = %v, want ErrSessionLost", st.SyncErr)
	}
}

// A morph that settles while the device is down must still reach it:
// the engine keeps pushing the full known state every tick until
// delivery recovers.
func TestSettledValuesResentWhileDeviceDown(t *testing.T) {
	eng, tb, out := startEngine(t)

	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}
	for tick := int64(1); tick <= 96; tick++ {
		sendTick(t, tb, tick, true)
		recvBatch(t, out)
	}

	out.mu.Lock()
	out.err = errors.New("device unplugged")
	out.mu.Unlock()

	// Nothing is in flight anymore, but the unhealthy sink still gets
	// the settled state.
	sendTick(t, tb, 97, true)
	batch := recvBatch(t, out)
	if v, ok := findCC(batch, 1, 74); !ok || v != 100 {
		t.Fatalf("retry batch CC74 = %d,%v, want 100", v, ok)
	}
	if v, ok := findCC(batch, 1, 71); !ok || v != 30 {
		t.Fatalf("retry batch CC71 = %d,%v, want 30", v, ok)
	}

	// Once healthy again the retries stop.
	out.mu.Lock()
	out.err = nil
	out.mu.Unlock()
	sendTick(t, tb, 98, true)
	sendTick(t, tb, 99, true)
	if len(out.batches) != 0 {
		t.Fatalf("%d batches after recovery with nothing in flight", len(out.batches))
	}
}

func TestReplaceProjectCancelsMorphs(t *testing.T) {
	eng, tb, out := startEngine(t)

	if err := eng.TriggerPad(0, Immediate()); err != nil {
		t.Fatalf("TriggerPad: %v", err)
	}
	sendTick(t, tb, 1, true)
	recvBatch(t, out)

	if err := eng.ReplaceProject(validProject()); err != nil {
		t.Fatalf("ReplaceProject: %v", err)
	}
	sendTick(t, tb, 2, true)
	// Unbuffered tick channel: tick 2 is fully processed once this send
	// completes.
	sendTick(t, tb, 3, true)
	if len(out.batches) != 0 {
		t.Fatal("morphs survived project replacement")
	}
}

func TestReplaceProjectRejectsInvalid(t *testing.T) {
	eng, _, _ := startEngine(t)

	bad := validProject()
	bad.Pads = bad.Pads[:3]
	if err := eng.ReplaceProject(bad); err == nil {
		t.Fatal("ReplaceProject accepted an invalid project")
	}
	if got := eng.Project().Name; got != "test" {
		t.Fatalf("project swapped despite validation failure: %q", got)
	}
}

func TestOutputAndSyncPassThrough(t *testing.T) {
	eng, tb, out := startEngine(t)

	if err := eng.SelectMIDIOutput("IAC Bus 1"); err != nil {
		t.Fatalf("SelectMIDIOutput: %v", err)
	}
	out.mu.Lock()
	port := out.port
	out.mu.Unlock()
	if port != "IAC Bus 1" {
		t.Fatalf("port = %q", port)
	}
	if got := eng.OutputPort(); got != "IAC Bus 1" {
		t.Fatalf("OutputPort() = %q", got)
	}

	if err := eng.EnableTempoSync(true); err != nil {
		t.Fatalf("EnableTempoSync: %v", err)
	}
	tb.mu.Lock()
	on := tb.syncOn
	tb.mu.Unlock()
	if !on {
		t.Fatal("sync not enabled on the timebase")
	}

	tb.mu.Lock()
	tb.syncErr = errors.New("link unavailable")
	tb.mu.Unlock()
	if err := eng.EnableTempoSync(false); err == nil {
		t.Fatal("timebase error swallowed")
	}
}
