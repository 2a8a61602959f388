package clock

import (
	"sync"

	abletonlink "github.com/DatanoiseTV/abletonlink-go"
)

// quantum is the bar length in beats used for phase queries (4/4 assumed)
const quantum = 4.0

// Snapshot is one observation of the Link session
type Snapshot struct {
	Tempo   float64
	Beat    float64
	Phase   float64
	Playing bool
	Peers   uint64
}

// LinkSession wraps an Ableton Link session. Tempo and peer count arrive
// through Link's callbacks; beat position and transport state are captured
// on demand.
type LinkSession struct {
	link  *abletonlink.Link
	state *abletonlink.SessionState

	mu    sync.Mutex
	tempo float64
	peers uint64
}

// NewLinkSession joins a Link session at the given tempo
func NewLinkSession(tempo float64) *LinkSession {
	ls := &LinkSession{
		link:  abletonlink.NewLink(tempo),
		state: abletonlink.NewSessionState(),
		tempo: tempo,
	}

	ls.link.SetTempoCallback(func(bpm float64) {
		ls.mu.Lock()
		ls.tempo = bpm
		ls.mu.Unlock()
	})
	ls.link.SetNumPeersCallback(func(n uint64) {
		ls.mu.Lock()
		ls.peers = n
		ls.mu.Unlock()
	})

	ls.link.EnableStartStopSync(true)
	ls.link.Enable(true)
	return ls
}

// Capture observes the current session state
func (ls *LinkSession) Capture() Snapshot {
	ls.link.CaptureAppSessionState(ls.state)
	micros := ls.link.ClockMicros()

	ls.mu.Lock()
	tempo := ls.tempo
	peers := ls.peers
	ls.mu.Unlock()

	return Snapshot{
		Tempo:   tempo,
		Beat:    ls.state.BeatAtTime(micros, quantum),
		Phase:   ls.state.PhaseAtTime(micros, quantum),
		Playing: ls.state.IsPlaying(),
		Peers:   peers,
	}
}

// SetTempo proposes a tempo to the session
func (ls *LinkSession) SetTempo(bpm float64) {
	ls.link.CaptureAppSessionState(ls.state)
	ls.state.SetTempo(bpm, ls.link.ClockMicros())
	ls.link.CommitAppSessionState(ls.state)

	ls.mu.Lock()
	ls.tempo = bpm
	ls.mu.Unlock()
}

// Close leaves the session and releases the native handles
func (ls *LinkSession) Close() {
	ls.link.Enable(false)
	ls.link.Destroy()
	ls.state.Destroy()
}
