package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// LaunchpadController drives a Novation Launchpad X as an 8x8 scene grid.
// Pad presses become PadEvents with the grid index; LEDs mirror scene and
// morph state.
type LaunchpadController struct {
	id       string
	outPort  drivers.Out
	inPort   drivers.In
	send     func(msg gomidi.Message) error
	stopFunc func()

	padChan chan PadEvent
}

// NewLaunchpadController opens a Launchpad and switches it to Programmer mode
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:      id,
		inPort:  inPort,
		outPort: outPort,
		padChan: make(chan PadEvent, 32),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		lp.send = send

		// Programmer mode: F0 00 20 29 02 0C 00 7F F7
		lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}))
		// Max brightness
		lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F}))
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			var channel, note, velocity uint8
			if msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0 {
				if idx := noteToPad(note); idx >= 0 {
					select {
					case lp.padChan <- PadEvent{Index: idx, Velocity: velocity}:
					default:
					}
				}
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

// SetLEDBatch sends LED updates as individual palette NoteOn messages
func (lp *LaunchpadController) SetLEDBatch(updates []PadLED) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if u.Index < 0 || u.Index >= 64 {
			continue
		}
		lp.send(gomidi.NoteOn(0, padToNote(u.Index), nearestPalette(u.Color)))
	}
	return nil
}

func (lp *LaunchpadController) Close() error {
	// Clear the grid on the way out
	if lp.send != nil {
		var updates []PadLED
		for i := 0; i < 64; i++ {
			updates = append(updates, PadLED{Index: i})
		}
		lp.SetLEDBatch(updates)
	}
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.padChan)
	return nil
}

// Launchpad X programmer-mode grid: row 0 (bottom) = notes 11-18,
// row 7 = notes 81-88. Pad index counts row-major from the bottom-left.

func padToNote(index int) uint8 {
	row := index / 8
	col := index % 8
	return uint8((row+1)*10 + col + 1)
}

func noteToPad(note uint8) int {
	row := int(note/10) - 1
	col := int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return -1
	}
	return row*8 + col
}

// nearestPalette finds the closest Launchpad X palette entry for an RGB value
func nearestPalette(rgb [3]uint8) uint8 {
	palette := [][4]uint8{
		{0, 0, 0, 0},         // off
		{5, 255, 0, 0},       // red
		{9, 255, 100, 0},     // orange
		{13, 255, 200, 0},    // yellow
		{17, 0, 180, 0},      // green
		{21, 0, 255, 0},      // bright green
		{37, 0, 200, 200},    // cyan
		{45, 0, 100, 255},    // blue
		{49, 150, 0, 200},    // purple
		{53, 255, 80, 180},   // pink
		{119, 255, 255, 255}, // white
	}

	best := uint8(0)
	bestDist := 1 << 30
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range palette {
		pr, pg, pb := int(p[1]), int(p[2]), int(p[3])
		dist := (r-pr)*(r-pr) + (g-pg)*(g-pg) + (b-pb)*(b-pb)
		if dist < bestDist {
			bestDist = dist
			best = p[0]
		}
	}
	return best
}
