package engine

import (
	"context"

	"github.com/pkg/errors"

	"snapmorph/clock"
	"snapmorph/debug"
	"snapmorph/midi"
)

// Timebase is the clock surface the engine consumes. Satisfied by
// *clock.Clock; tests substitute a hand-driven fake.
type Timebase interface {
	Ticks() <-chan clock.Tick
	NextBoundaryTick(subdivision float64) int64
	SetTempo(bpm float64)
	EnableSync(enable bool) error
	State() clock.State
	SessionLost() bool
	Tempo() float64
}

// Output is the sink surface the engine writes to. Satisfied by *midi.Sink.
type Output interface {
	WriteBatch(batch []midi.CC)
	SelectPort(name string) error
	PortName() string
	Err() error
}

// Status is a point-in-time view of engine health for display. SinkErr
// matches ErrDeviceUnavailable, SyncErr matches ErrSessionLost.
type Status struct {
	ClockState   clock.State
	Tempo        float64
	ActiveMorphs int
	SinkErr      error
	SyncErr      error
}

// Engine connects the pieces: trigger commands come in from any
// goroutine, get validated against the current project, and are executed
// on the engine's single run loop, which also consumes clock ticks,
// advances the scheduler and pushes value batches to the sink. The
// scheduler's mutable state is touched by the run loop only.
type Engine struct {
	store *Store
	sched *Scheduler
	clock Timebase
	sink  Output

	// FreezeOnStop withholds ticks from the scheduler while an external
	// transport is stopped, then resumes without a jump.
	FreezeOnStop bool

	cmds chan func()

	// UpdateChan receives a signal after state changes; UIs drain it
	UpdateChan chan struct{}

	// run-loop state
	curTick     int64
	curTempo    float64
	frozen      bool
	frozenSince int64
}

// New creates an engine over a store, clock and sink
func New(store *Store, tb Timebase, sink Output, ticksPerBeat int) *Engine {
	return &Engine{
		store:      store,
		sched:      NewScheduler(ticksPerBeat),
		clock:      tb,
		sink:       sink,
		cmds:       make(chan func(), 16),
		UpdateChan: make(chan struct{}, 1),
		curTempo:   tb.Tempo(),
	}
}

// Run executes the engine loop until ctx is cancelled (blocking - run in
// goroutine). All scheduler mutations happen here.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.cmds:
			fn()
		case ev := <-e.clock.Ticks():
			e.onTick(ev)
		}
	}
}

// do runs fn on the engine loop and waits for it to complete
func (e *Engine) do(fn func()) {
	done := make(chan struct{})
	e.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

func (e *Engine) onTick(ev clock.Tick) {
	e.curTick = ev.Tick
	e.curTempo = ev.Tempo

	if e.FreezeOnStop && !ev.Running {
		if !e.frozen {
			e.frozen = true
			e.frozenSince = ev.Tick
			debug.Log("engine", "transport stopped, morphs frozen at tick %d", ev.Tick)
		}
		return
	}
	if e.frozen {
		e.sched.ShiftTasks(ev.Tick - e.frozenSince)
		e.frozen = false
		debug.Log("engine", "transport resumed at tick %d", ev.Tick)
	}

	batch := e.sched.Advance(ev.Tick, ev.Tempo)
	if e.sink.Err() != nil {
		// Delivery is failing: push the whole known state every tick
		// instead of just the in-flight values, so CCs that settle while
		// the device is down still reach it once it returns.
		batch = e.sched.SnapshotBatch()
	}
	if len(batch) > 0 {
		// Fire and forget; a sink failure is surfaced via Status and
		// the same CCs are recomputed next tick anyway.
		e.sink.WriteBatch(batch)
		debug.Every(96, "engine", "tick=%d batch=%d active=%d", ev.Tick, len(batch), e.sched.ActiveCount())
		e.notify()
	}
}

func (e *Engine) notify() {
	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}

// TriggerPad fires the pad at the given index. Validation errors
// (ErrNotFound, ErrInvalidReference) return without touching playback.
func (e *Engine) TriggerPad(index int, mode TriggerMode) error {
	pad, err := resolvePad(e.store.Current(), index)
	if err != nil {
		return err
	}

	e.do(func() {
		if mode.Quantized {
			boundary := e.clock.NextBoundaryTick(mode.Boundary)
			e.sched.TriggerQuantized(pad, boundary)
			debug.Log("engine", "pad %d queued for tick %d", index, boundary)
		} else {
			e.sched.TriggerImmediate(pad, e.curTick, e.curTempo)
			debug.Log("engine", "pad %d triggered at tick %d", index, e.curTick)
		}
	})
	e.notify()
	return nil
}

// CancelPad discards the pad's pending trigger and in-flight morphs
func (e *Engine) CancelPad(index int) error {
	pad, err := e.store.Current().Pad(index)
	if err != nil {
		return err
	}
	if pad.Empty() {
		return errors.Wrapf(ErrNotFound, "pad %d is empty", index)
	}

	e.do(func() {
		e.sched.CancelPad(pad)
	})
	e.notify()
	return nil
}

// Snapshot returns the current (channel, cc) -> value mapping
func (e *Engine) Snapshot() Snapshot {
	return e.sched.Snapshot()
}

// Morphing reports which CCs are mid-morph
func (e *Engine) Morphing() map[midi.CCKey]bool {
	return e.sched.Morphing()
}

// Project returns the current project snapshot
func (e *Engine) Project() *Project {
	return e.store.Current()
}

// ReplaceProject swaps in a new project and cancels all affected morphs.
// A validation failure leaves both the store and playback untouched.
func (e *Engine) ReplaceProject(p *Project) error {
	var err error
	e.do(func() {
		if err = e.store.Replace(p); err != nil {
			return
		}
		e.sched.CancelAll()
	})
	e.notify()
	return err
}

// SelectMIDIOutput opens the named output port for CC delivery. Runs on
// the caller's goroutine; port I/O never touches the tick path.
func (e *Engine) SelectMIDIOutput(port string) error {
	return e.sink.SelectPort(port)
}

// EnableTempoSync starts or stops the external tempo-sync session
func (e *Engine) EnableTempoSync(enable bool) error {
	return e.clock.EnableSync(enable)
}

// SetInternalTempo sets the fallback tempo in BPM (clamped to 20-300)
func (e *Engine) SetInternalTempo(bpm float64) error {
	e.clock.SetTempo(bpm)
	e.notify()
	return nil
}

// Status reports clock and sink health for display
func (e *Engine) Status() Status {
	st := Status{
		ClockState:   e.clock.State(),
		Tempo:        e.clock.Tempo(),
		ActiveMorphs: e.sched.ActiveCount(),
	}
	if err := e.sink.Err(); err != nil {
		st.SinkErr = errors.Wrap(ErrDeviceUnavailable, err.Error())
	}
	if e.clock.SessionLost() {
		st.SyncErr = ErrSessionLost
	}
	return st
}

// OutputPort returns the name of the selected MIDI output ("" if none)
func (e *Engine) OutputPort() string {
	return e.sink.PortName()
}
