package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "detect":
		detectLaunchpad()
	case "cc":
		sweepCC()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI diagnostics")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list    - List all MIDI ports")
	fmt.Println("  detect  - Find Launchpad X")
	fmt.Println("  cc      - Sweep CC 74 on the first output port")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.GetInPorts(), outs: midi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func detectLaunchpad() {
	fmt.Println("Looking for Launchpad X...")

	found := false
	for i, p := range midi.GetInPorts() {
		name := strings.ToLower(p.String())
		if strings.Contains(name, "launchpad") && strings.Contains(name, "midi") {
			fmt.Printf("Found input: %d: %s\n", i, p.String())
			found = true
		}
	}
	for i, p := range midi.GetOutPorts() {
		name := strings.ToLower(p.String())
		if strings.Contains(name, "launchpad") && strings.Contains(name, "midi") {
			fmt.Printf("Found output: %d: %s\n", i, p.String())
		}
	}

	if found {
		fmt.Println("\nLaunchpad X detected!")
	} else {
		fmt.Println("\nLaunchpad X not found")
	}
}

// sweepCC ramps CC 74 up and back down so you can watch a synth filter
// move and confirm the output path works end to end.
func sweepCC() {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		fmt.Println("No MIDI output ports")
		return
	}

	port := outs[0]
	fmt.Printf("Sweeping CC 74 on: %s\n", port.String())

	send, err := midi.SendTo(port)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}

	for v := 0; v <= 127; v += 4 {
		send(midi.ControlChange(0, 74, uint8(v)))
		time.Sleep(15 * time.Millisecond)
	}
	for v := 127; v >= 0; v -= 4 {
		send(midi.ControlChange(0, 74, uint8(v)))
		time.Sleep(15 * time.Millisecond)
	}
	fmt.Println("Done")
}
