package midi

// PadEvent is sent when a grid pad is pressed on a hardware controller.
// Index is the 0-63 grid position (row 0 = bottom-left on a Launchpad).
type PadEvent struct {
	Index    int
	Velocity uint8
}

// PadLED describes the desired color of one grid pad
type PadLED struct {
	Index int
	Color [3]uint8 // RGB, mapped to the device palette
}

// Controller is a hardware grid controller: pad presses in, LED state out
type Controller interface {
	ID() string
	PadEvents() <-chan PadEvent
	SetLEDBatch(updates []PadLED) error
	Close() error
}
