package midi

import (
	"sync"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"

	"snapmorph/debug"
)

// Sink delivers CC batches to the selected MIDI output port.
//
// WriteBatch never blocks: batches go through a buffered channel to a
// writer goroutine, so device I/O can never stall the tick path. Within a
// batch the last value per (channel, cc) wins, values are clamped to
// [0,127], and a value identical to the last one transmitted for that key
// is suppressed. Delivery failures are recorded and surfaced via Err();
// the transmit cache is cleared on failure so the next tick's recomputed
// values go out fresh once the device returns.
type Sink struct {
	mu       sync.Mutex
	portName string
	send     func(gomidi.Message) error
	lastSent map[CCKey]uint8

	batches chan []CC
	stop    chan struct{}

	errMu   sync.Mutex
	lastErr error
}

// NewSink creates a sink with no port selected and starts its writer
func NewSink() *Sink {
	s := &Sink{
		lastSent: make(map[CCKey]uint8),
		batches:  make(chan []CC, 64),
		stop:     make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// SelectPort opens the named MIDI output port and routes all batches to it
func (s *Sink) SelectPort(name string) error {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() != name {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return errors.Wrapf(err, "open output %q", name)
		}
		s.mu.Lock()
		s.portName = name
		s.send = send
		s.lastSent = make(map[CCKey]uint8)
		s.mu.Unlock()
		s.setErr(nil)
		debug.Log("sink", "output port selected: %s", name)
		return nil
	}
	return errors.Errorf("no MIDI output port named %q", name)
}

// PortName returns the selected output port ("" if none)
func (s *Sink) PortName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portName
}

// WriteBatch enqueues one tick's values for delivery. Non-blocking: if
// the writer has fallen behind the batch is dropped, the next tick
// recomputes every in-flight value anyway.
func (s *Sink) WriteBatch(batch []CC) {
	if len(batch) == 0 {
		return
	}
	select {
	case s.batches <- batch:
	default:
		debug.Log("sink", "writer behind, dropped batch of %d", len(batch))
	}
}

// Err returns the most recent delivery failure, nil when healthy
func (s *Sink) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Close stops the writer goroutine
func (s *Sink) Close() {
	close(s.stop)
}

func (s *Sink) writeLoop() {
	for {
		select {
		case <-s.stop:
			return
		case batch := <-s.batches:
			s.flush(batch)
		}
	}
}

// flush coalesces and transmits one batch
func (s *Sink) flush(batch []CC) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.send == nil {
		s.recordErr(errors.New("no output port selected"))
		return
	}

	// Last write wins per key, first-seen order preserved.
	order := make([]CCKey, 0, len(batch))
	final := make(map[CCKey]uint8, len(batch))
	for _, cc := range batch {
		cc = cc.Clamp()
		if _, ok := final[cc.Key()]; !ok {
			order = append(order, cc.Key())
		}
		final[cc.Key()] = cc.Value
	}

	for _, key := range order {
		value := final[key]
		if prev, ok := s.lastSent[key]; ok && prev == value {
			continue
		}
		if err := s.send(gomidi.ControlChange(key.Channel, key.Number, value)); err != nil {
			// Forget what we think the device has so every value is
			// retransmitted once it comes back.
			s.lastSent = make(map[CCKey]uint8)
			s.recordErr(errors.Wrap(err, "send CC"))
			return
		}
		s.lastSent[key] = value
	}
	s.recordErr(nil)
}

func (s *Sink) recordErr(err error) {
	s.setErr(err)
	if err != nil {
		debug.Log("sink", "delivery failed: %v", err)
	}
}

func (s *Sink) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}
