package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"snapmorph/clock"
	"snapmorph/config"
	"snapmorph/debug"
	"snapmorph/engine"
	"snapmorph/midi"
	"snapmorph/theme"
	"snapmorph/tui"
)

func main() {
	if os.Getenv("SNAPMORPH_DEBUG") != "" {
		debug.Enable()
		defer debug.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}

	store := engine.NewStore()
	if cfg.LastProject != "" {
		if p, err := engine.LoadProject(cfg.LastProject); err == nil {
			store.Replace(p)
		} else {
			debug.Log("main", "load project %q: %v", cfg.LastProject, err)
		}
	}

	clk := clock.New(cfg.Engine.TicksPerBeat, cfg.Engine.Tempo)
	sink := midi.NewSink()
	defer sink.Close()

	eng := engine.New(store, clk, sink, cfg.Engine.TicksPerBeat)
	eng.FreezeOnStop = cfg.Sync.FreezeOnStop

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go clk.Run(ctx)
	go eng.Run(ctx)

	// Best effort: a missing port or sync backend shouldn't stop startup.
	if cfg.Output.PortName != "" {
		if err := eng.SelectMIDIOutput(cfg.Output.PortName); err != nil {
			debug.Log("main", "select output: %v", err)
		}
	}
	if cfg.Sync.Enabled {
		if err := eng.EnableTempoSync(true); err != nil {
			debug.Log("main", "enable sync: %v", err)
		}
	}

	var autoConnect []string
	for _, ctrl := range cfg.AutoConnectControllers() {
		autoConnect = append(autoConnect, ctrl.PortName)
	}
	deviceMgr := midi.NewDeviceManager(autoConnect)
	go deviceMgr.Run(ctx)

	palette := theme.Default()
	if cfg.Palette != "" {
		if p, err := theme.LoadGPL(cfg.Palette); err == nil {
			palette = p
		} else {
			debug.Log("main", "load palette %q: %v", cfg.Palette, err)
		}
	}
	th := theme.New(palette)

	leds := tui.NewLEDRenderer(eng, th)
	go leds.Run(ctx)

	m := tui.NewModel(eng, deviceMgr, th, cfg.Engine.Quantize)
	m.LEDs = leds

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Persist the setup chosen during the session for next launch.
	cfg.Output.PortName = eng.OutputPort()
	cfg.Sync.Enabled = clk.SyncEnabled()
	if err := cfg.Save(); err != nil {
		debug.Log("main", "save config: %v", err)
	}
}
