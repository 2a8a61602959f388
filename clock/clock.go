package clock

import (
	"context"
	"math"
	"sync"
	"time"

	"snapmorph/debug"
)

// State of the sync adapter
type State int

const (
	// Disconnected - no external session, internal timer drives ticks
	Disconnected State = iota
	// Connected - external session supplies tempo, phase and transport
	Connected
	// ConnectedStopped - session present but transport stopped
	ConnectedStopped
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectedStopped:
		return "connected (stopped)"
	default:
		return "internal"
	}
}

// Tick is one discrete scheduler time step
type Tick struct {
	Tick    int64   // monotonic counter
	Beat    float64 // beat position at this tick
	Tempo   float64 // effective BPM
	Running bool    // transport running (always true when internal)
	State   State
}

// Clock drives the engine at a fixed number of ticks per beat. When a
// tempo-sync session is enabled and peers are present, tempo, beat phase
// and transport state come from the session; otherwise an internal timer
// runs at the fallback tempo. The tick counter is monotonic across state
// changes, so in-flight morphs never see a discontinuity.
type Clock struct {
	mu           sync.Mutex
	ticksPerBeat int
	tempo        float64 // effective BPM (frozen at last session value after loss)
	internal     float64 // fallback BPM
	tick         int64
	beat         float64
	state        State
	running      bool
	sessionLost  bool // session dropped while sync is still enabled
	link         *LinkSession

	ticks chan Tick
	now   func() time.Time
}

// New creates a clock at the given resolution and fallback tempo
func New(ticksPerBeat int, tempo float64) *Clock {
	if ticksPerBeat <= 0 {
		ticksPerBeat = 24
	}
	tempo = clampTempo(tempo)
	return &Clock{
		ticksPerBeat: ticksPerBeat,
		tempo:        tempo,
		internal:     tempo,
		state:        Disconnected,
		running:      true,
		ticks:        make(chan Tick, 128),
		now:          time.Now,
	}
}

// Ticks returns the tick event stream consumed by the engine
func (c *Clock) Ticks() <-chan Tick {
	return c.ticks
}

// Run emits ticks until ctx is cancelled (blocking - run in goroutine)
func (c *Clock) Run(ctx context.Context) {
	next := c.now()
	for {
		c.mu.Lock()
		period := c.period()
		c.mu.Unlock()

		next = next.Add(period)
		wait := next.Sub(c.now())
		if wait < 0 {
			// Fell behind (scheduling hiccup); realign instead of bursting.
			next = c.now()
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if c.link != nil {
				c.link.Close()
			}
			return
		case <-timer.C:
		}

		c.step()
	}
}

// period is the wall-clock duration of one tick. Caller holds mu.
func (c *Clock) period() time.Duration {
	return time.Duration(float64(time.Minute) / (c.tempo * float64(c.ticksPerBeat)))
}

// step advances the clock by one tick and publishes the event
func (c *Clock) step() {
	c.mu.Lock()

	c.tick++
	if c.link != nil {
		snap := c.link.Capture()
		if snap.Peers > 0 {
			c.tempo = clampTempo(snap.Tempo)
			c.beat = snap.Beat
			c.running = snap.Playing
			c.sessionLost = false
			if snap.Playing {
				c.state = Connected
			} else {
				c.state = ConnectedStopped
			}
		} else {
			// Session lost: fail soft, keep ticking at the last
			// known tempo.
			if c.state != Disconnected {
				c.sessionLost = true
				debug.Log("clock", "session lost, falling back to internal timer at %.1f BPM", c.tempo)
			}
			c.state = Disconnected
			c.running = true
			c.beat += 1 / float64(c.ticksPerBeat)
		}
	} else {
		c.state = Disconnected
		c.running = true
		c.beat += 1 / float64(c.ticksPerBeat)
	}

	ev := Tick{
		Tick:    c.tick,
		Beat:    c.beat,
		Tempo:   c.tempo,
		Running: c.running,
		State:   c.state,
	}
	c.mu.Unlock()

	select {
	case c.ticks <- ev:
	default:
		// Engine fell behind; dropping is safe, progress is computed
		// from absolute tick numbers.
	}
}

// NextBoundaryTick returns the tick of the next beat boundary at the
// given subdivision (1 = next beat, 4 = next bar in 4/4). The result is
// always strictly after the current tick.
func (c *Clock) NextBoundaryTick(subdivision float64) int64 {
	if subdivision <= 0 {
		subdivision = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := math.Floor(c.beat/subdivision)*subdivision + subdivision
	delta := next - c.beat
	ticks := int64(math.Ceil(delta * float64(c.ticksPerBeat)))
	if ticks < 1 {
		ticks = 1
	}
	return c.tick + ticks
}

// SetTempo sets the fallback tempo, and proposes it to the session when
// one is connected.
func (c *Clock) SetTempo(bpm float64) {
	bpm = clampTempo(bpm)
	c.mu.Lock()
	c.internal = bpm
	link := c.link
	if link == nil || c.state == Disconnected {
		c.tempo = bpm
	}
	c.mu.Unlock()

	if link != nil {
		link.SetTempo(bpm)
	}
}

// EnableSync starts or stops the tempo-sync session
func (c *Clock) EnableSync(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enable && c.link == nil {
		c.link = NewLinkSession(c.internal)
		c.sessionLost = false
		debug.Log("clock", "tempo sync enabled")
	} else if !enable && c.link != nil {
		c.link.Close()
		c.link = nil
		c.state = Disconnected
		c.running = true
		c.sessionLost = false
		debug.Log("clock", "tempo sync disabled")
	}
	return nil
}

// SessionLost reports whether the sync session dropped out from under an
// enabled adapter. Cleared when peers return or sync is toggled.
func (c *Clock) SessionLost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLost
}

// SyncEnabled reports whether a tempo-sync session is active
func (c *Clock) SyncEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// State returns the adapter state
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tempo returns the effective BPM
func (c *Clock) Tempo() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempo
}

// CurrentTick returns the tick counter
func (c *Clock) CurrentTick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

func clampTempo(bpm float64) float64 {
	if bpm < 20 {
		return 20
	}
	if bpm > 300 {
		return 300
	}
	return bpm
}
