package engine

import (
	"math"
	"sort"
	"sync/atomic"

	"snapmorph/midi"
)

// MorphTask is one in-flight CC transition. Runtime-only, owned by the
// Scheduler; at most one exists per (channel, cc) at any instant.
type MorphTask struct {
	Key           midi.CCKey
	StartValue    uint8
	TargetValue   uint8
	StartTick     int64
	DurationTicks int64
	Curve         Curve
	Progress      float64
}

// valueAt computes the interpolated value at a tick. settled means the
// task has reached its target and must be removed after this emission.
func (t *MorphTask) valueAt(tick int64) (value uint8, settled bool) {
	if t.DurationTicks <= 0 || tick >= t.StartTick+t.DurationTicks {
		t.Progress = 1
		return t.TargetValue, true
	}
	if tick <= t.StartTick {
		t.Progress = 0
		return t.StartValue, false
	}

	t.Progress = float64(tick-t.StartTick) / float64(t.DurationTicks)
	shaped := t.Curve.Apply(t.Progress)
	v := float64(t.StartValue) + (float64(t.TargetValue)-float64(t.StartValue))*shaped
	r := math.Round(v)
	if r < 0 {
		r = 0
	}
	if r > 127 {
		r = 127
	}
	return uint8(r), false
}

// Snapshot is the published (channel, cc) -> value view for UI display
type Snapshot map[midi.CCKey]uint8

// published is the read side handed to UI goroutines: the current values
// plus which CCs are mid-morph. Replaced wholesale after every Advance.
type published struct {
	values   Snapshot
	morphing map[midi.CCKey]bool
}

type pendingTrigger struct {
	pad          *Pad
	boundaryTick int64
}

// Scheduler owns all in-flight morphs. It has no locking of its own:
// every mutating call happens on the engine's single serialized context.
// UI reads go through the published snapshot, swapped atomically after
// each Advance.
type Scheduler struct {
	ticksPerBeat int
	active       map[midi.CCKey]*MorphTask
	pending      map[int]pendingTrigger // quantized triggers keyed by pad
	last         map[midi.CCKey]uint8   // last emitted value per CC
	published    atomic.Pointer[published]
}

// NewScheduler creates a scheduler at the given tick resolution
func NewScheduler(ticksPerBeat int) *Scheduler {
	s := &Scheduler{
		ticksPerBeat: ticksPerBeat,
		active:       make(map[midi.CCKey]*MorphTask),
		pending:      make(map[int]pendingTrigger),
		last:         make(map[midi.CCKey]uint8),
	}
	s.publish()
	return s
}

// TriggerImmediate starts a morph for every non-no-op target of the pad.
// An existing task for the same (channel, cc) is superseded: the new task
// starts from its current interpolated value, so there is no snap. A
// queued quantized request for the pad is replaced by this one.
func (s *Scheduler) TriggerImmediate(pad *Pad, tick int64, tempo float64) {
	delete(s.pending, pad.Index)
	for _, t := range pad.CCTargets {
		if t.NoOp {
			continue
		}
		s.startTask(t, tick, tempo)
	}
}

// TriggerQuantized queues the pad to fire at a beat boundary. A newer
// request for the same pad replaces the queued one.
func (s *Scheduler) TriggerQuantized(pad *Pad, boundaryTick int64) {
	s.pending[pad.Index] = pendingTrigger{pad: pad, boundaryTick: boundaryTick}
}

// CancelPad discards the pad's pending trigger and every in-flight task
// for its non-no-op targets. Cancelled CCs hold their last emitted value.
func (s *Scheduler) CancelPad(pad *Pad) {
	delete(s.pending, pad.Index)
	for _, t := range pad.CCTargets {
		if t.NoOp {
			continue
		}
		delete(s.active, midi.CCKey{Channel: t.Channel, Number: t.CCNumber})
	}
}

// CancelAll drops every task and pending trigger (project replacement)
func (s *Scheduler) CancelAll() {
	s.active = make(map[midi.CCKey]*MorphTask)
	s.pending = make(map[int]pendingTrigger)
	s.publish()
}

func (s *Scheduler) startTask(t CCTarget, tick int64, tempo float64) {
	key := midi.CCKey{Channel: t.Channel, Number: t.CCNumber}

	start := s.last[key] // 0 if the CC was never set
	if prev, ok := s.active[key]; ok {
		// Continuity: pick up exactly where the superseded task is now.
		start, _ = prev.valueAt(tick)
	}

	s.active[key] = &MorphTask{
		Key:           key,
		StartValue:    start,
		TargetValue:   t.TargetValue,
		StartTick:     tick,
		DurationTicks: t.Duration.Ticks(s.ticksPerBeat, tempo),
		Curve:         t.Curve,
	}
}

// Advance moves every task to the given tick and returns the values to
// emit as one batch. Pending quantized triggers whose boundary has been
// reached materialize first, starting exactly at their boundary tick.
// Settled tasks emit their final value exactly once and are removed.
func (s *Scheduler) Advance(tick int64, tempo float64) []midi.CC {
	if len(s.pending) > 0 {
		var due []int
		for idx, p := range s.pending {
			if p.boundaryTick <= tick {
				due = append(due, idx)
			}
		}
		sort.Ints(due)
		for _, idx := range due {
			p := s.pending[idx]
			delete(s.pending, idx)
			for _, t := range p.pad.CCTargets {
				if t.NoOp {
					continue
				}
				s.startTask(t, p.boundaryTick, tempo)
			}
		}
	}

	if len(s.active) == 0 {
		return nil
	}

	keys := make([]midi.CCKey, 0, len(s.active))
	for key := range s.active {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Channel != keys[j].Channel {
			return keys[i].Channel < keys[j].Channel
		}
		return keys[i].Number < keys[j].Number
	})

	batch := make([]midi.CC, 0, len(keys))
	for _, key := range keys {
		task := s.active[key]
		value, settled := task.valueAt(tick)
		batch = append(batch, midi.CC{Channel: key.Channel, Number: key.Number, Value: value})
		s.last[key] = value
		if settled {
			delete(s.active, key)
		}
	}

	s.publish()
	return batch
}

// SnapshotBatch rebuilds a full batch from the last emitted value of
// every CC touched so far, in the same order Advance emits. Used to
// push the whole known state at a device that just failed or recovered,
// so values that settled while it was down are not lost.
func (s *Scheduler) SnapshotBatch() []midi.CC {
	if len(s.last) == 0 {
		return nil
	}

	keys := make([]midi.CCKey, 0, len(s.last))
	for key := range s.last {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Channel != keys[j].Channel {
			return keys[i].Channel < keys[j].Channel
		}
		return keys[i].Number < keys[j].Number
	})

	batch := make([]midi.CC, 0, len(keys))
	for _, key := range keys {
		batch = append(batch, midi.CC{Channel: key.Channel, Number: key.Number, Value: s.last[key]})
	}
	return batch
}

// ShiftTasks moves every task and pending boundary forward by delta
// ticks. Used to resume without a jump after a transport freeze.
func (s *Scheduler) ShiftTasks(delta int64) {
	if delta <= 0 {
		return
	}
	for _, task := range s.active {
		task.StartTick += delta
	}
	for idx, p := range s.pending {
		p.boundaryTick += delta
		s.pending[idx] = p
	}
}

// publish swaps in a fresh snapshot copy for lock-free UI reads
func (s *Scheduler) publish() {
	p := &published{
		values:   make(Snapshot, len(s.last)),
		morphing: make(map[midi.CCKey]bool, len(s.active)),
	}
	for key, value := range s.last {
		p.values[key] = value
	}
	for key := range s.active {
		p.morphing[key] = true
	}
	s.published.Store(p)
}

// Snapshot returns the last published (channel, cc) -> value mapping.
// Safe to call from any goroutine; never races with Advance.
func (s *Scheduler) Snapshot() Snapshot {
	return s.published.Load().values
}

// Morphing reports which CCs had in-flight tasks at the last publish.
// Safe to call from any goroutine.
func (s *Scheduler) Morphing() map[midi.CCKey]bool {
	return s.published.Load().morphing
}

// ActiveCount returns the number of in-flight tasks at the last publish
func (s *Scheduler) ActiveCount() int {
	return len(s.published.Load().morphing)
}
