package midi

// CC is one Control Change value bound for the wire
type CC struct {
	Channel uint8 // 0-15
	Number  uint8 // 0-127
	Value   uint8 // 0-127 after clamping
}

// CCKey identifies a controllable parameter
type CCKey struct {
	Channel uint8
	Number  uint8
}

// Key returns the (channel, number) identity of a CC value
func (c CC) Key() CCKey {
	return CCKey{Channel: c.Channel, Number: c.Number}
}

// Clamp limits the data bytes to the MIDI range
func (c CC) Clamp() CC {
	if c.Number > 127 {
		c.Number = 127
	}
	if c.Value > 127 {
		c.Value = 127
	}
	return c
}
