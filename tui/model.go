package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"snapmorph/clock"
	"snapmorph/engine"
	"snapmorph/midi"
	"snapmorph/theme"
	"snapmorph/widgets"
)

type styles struct {
	header   lipgloss.Style
	dim      lipgloss.Style
	cursor   lipgloss.Style
	scene    lipgloss.Style
	morphing lipgloss.Style
	err      lipgloss.Style
}

func newStyles(th *theme.Theme) styles {
	return styles{
		header:   lipgloss.NewStyle().Foreground(th.Header()).Bold(true),
		dim:      lipgloss.NewStyle().Foreground(th.Muted()),
		cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(th.Cursor()),
		scene:    lipgloss.NewStyle().Foreground(th.Scene()),
		morphing: lipgloss.NewStyle().Foreground(th.Morphing()).Bold(true),
		err:      lipgloss.NewStyle().Foreground(th.Error()),
	}
}

type Model struct {
	Engine    *engine.Engine
	DeviceMgr *midi.DeviceManager
	LEDs      *LEDRenderer
	Quantize  float64 // boundary for quantized triggers

	styles     styles
	theme      *theme.Theme
	cursor     int // selected pad 0-63
	controller string
	lastErr    error
	showHelp   bool
	quitting   bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(eng *engine.Engine, deviceMgr *midi.DeviceManager, th *theme.Theme, quantize float64) Model {
	return Model{
		Engine:    eng,
		DeviceMgr: deviceMgr,
		Quantize:  quantize,
		styles:    newStyles(th),
		theme:     th,
	}
}

func ListenForUpdates(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event := <-deviceMgr.Events()
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Engine),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "?":
			m.showHelp = !m.showHelp

		case "h", "left":
			if m.cursor%8 > 0 {
				m.cursor--
			}
		case "l", "right":
			if m.cursor%8 < 7 {
				m.cursor++
			}
		case "j", "down":
			if m.cursor >= 8 {
				m.cursor -= 8
			}
		case "k", "up":
			if m.cursor < 56 {
				m.cursor += 8
			}

		case "enter", " ":
			m.lastErr = m.Engine.TriggerPad(m.cursor, engine.Immediate())
		case "g":
			m.lastErr = m.Engine.TriggerPad(m.cursor, engine.Quantized(m.Quantize))
		case "x":
			m.lastErr = m.Engine.CancelPad(m.cursor)

		case "+", "=":
			m.Engine.SetInternalTempo(m.Engine.Status().Tempo + 5)
		case "-", "_":
			m.Engine.SetInternalTempo(m.Engine.Status().Tempo - 5)

		case "s":
			st := m.Engine.Status()
			m.lastErr = m.Engine.EnableTempoSync(st.ClockState == clock.Disconnected)

		case "o":
			if ports := midi.OutputPorts(); len(ports) > 0 {
				cur := m.Engine.OutputPort()
				next := ports[0]
				for i, p := range ports {
					if p == cur {
						next = ports[(i+1)%len(ports)]
						break
					}
				}
				m.lastErr = m.Engine.SelectMIDIOutput(next)
			}
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		if event.Type == midi.DeviceConnected {
			m.controller = event.ID
			if m.LEDs != nil {
				m.LEDs.SetController(event.Controller)
			}
			eng := m.Engine
			go func() {
				for pad := range event.Controller.PadEvents() {
					eng.TriggerPad(pad.Index, engine.Immediate())
				}
			}()
		} else if m.controller == event.ID {
			m.controller = ""
			if m.LEDs != nil {
				m.LEDs.SetController(nil)
			}
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.helpView()
	}

	status := m.Engine.Status()
	project := m.Engine.Project()
	morphing := m.Engine.Morphing()

	header := m.styles.header.Render(fmt.Sprintf("snapmorph  %s  %.0fbpm  morphs:%d",
		status.ClockState, status.Tempo, status.ActiveMorphs))
	if m.controller != "" {
		header += m.styles.dim.Render("  LP")
	}
	if port := m.Engine.OutputPort(); port != "" {
		header += m.styles.dim.Render("  out:" + port)
	}

	var out strings.Builder
	out.WriteString("\n " + header + "\n\n")

	// 8x8 grid, top row first (pad 56 is the top-left on hardware)
	for row := 7; row >= 0; row-- {
		out.WriteString("  ")
		for col := 0; col < 8; col++ {
			idx := row*8 + col
			pad, _ := project.Pad(idx)

			cell := "--"
			style := m.styles.dim
			if pad != nil && !pad.Empty() {
				cell = fmt.Sprintf("%02d", idx)
				style = m.styles.scene
				if padMorphing(pad, morphing) {
					style = m.styles.morphing
				}
			}
			if idx == m.cursor {
				style = m.styles.cursor
			}
			out.WriteString(style.Render(cell) + " ")
		}
		out.WriteString("\n")
	}
	out.WriteString("\n")

	// Selected pad detail + live values
	if pad, err := project.Pad(m.cursor); err == nil && !pad.Empty() {
		name := pad.Name
		if name == "" {
			name = fmt.Sprintf("pad %d", m.cursor)
		}
		out.WriteString(" " + m.styles.scene.Render(name) + "\n")
		for _, t := range pad.CCTargets {
			line := m.formatTarget(project, t, m.Engine.Snapshot(), morphing)
			out.WriteString("   " + line + "\n")
		}
	} else {
		out.WriteString(m.styles.dim.Render(" empty pad") + "\n")
	}
	out.WriteString("\n")

	if status.SinkErr != nil {
		out.WriteString(" " + m.styles.err.Render("output: "+status.SinkErr.Error()) + "\n")
	}
	if status.SyncErr != nil {
		out.WriteString(" " + m.styles.err.Render("sync: "+status.SyncErr.Error()) + "\n")
	}
	if m.lastErr != nil {
		out.WriteString(" " + m.styles.err.Render(m.lastErr.Error()) + "\n")
	}

	out.WriteString(m.styles.dim.Render(" hjkl:move  enter:trigger  g:quantized  x:cancel  +/-:tempo  s:sync  o:output  ?:help  q:quit"))
	return out.String()
}

func (m Model) helpView() string {
	var out strings.Builder
	out.WriteString("\n " + m.styles.header.Render("snapmorph keys") + "\n\n")
	out.WriteString(widgets.KeyHelp([]widgets.KeySection{
		{Title: " Grid", Keys: []widgets.KeyBinding{
			{Key: "hjkl/arrows", Desc: "move cursor"},
			{Key: "enter/space", Desc: "trigger scene now"},
			{Key: "g", Desc: fmt.Sprintf("trigger on next %g-beat boundary", m.Quantize)},
			{Key: "x", Desc: "cancel pad's morphs"},
		}},
		{Title: " Transport", Keys: []widgets.KeyBinding{
			{Key: "+/-", Desc: "internal tempo up/down"},
			{Key: "s", Desc: "toggle tempo sync"},
			{Key: "o", Desc: "cycle MIDI output port"},
		}},
	}))
	out.WriteString("\n\n Legend\n")
	out.WriteString(widgets.LegendItem([3]uint8(m.theme.RGB(theme.RoleScene)), "scene", "pad holds CC targets") + "\n")
	out.WriteString(widgets.LegendItem([3]uint8(m.theme.RGB(theme.RoleMorphing)), "morphing", "values in flight") + "\n")
	out.WriteString("\n" + m.styles.dim.Render(" ?:back  q:quit"))
	return out.String()
}

func padMorphing(pad *engine.Pad, morphing map[midi.CCKey]bool) bool {
	for _, t := range pad.CCTargets {
		if morphing[midi.CCKey{Channel: t.Channel, Number: t.CCNumber}] {
			return true
		}
	}
	return false
}

func (m Model) formatTarget(p *engine.Project, t engine.CCTarget, snap engine.Snapshot, morphing map[midi.CCKey]bool) string {
	key := midi.CCKey{Channel: t.Channel, Number: t.CCNumber}
	name := fmt.Sprintf("cc%d", t.CCNumber)
	if def, ok := p.Definition(t.CCNumber); ok && def.Name != "" {
		name = def.Name
	}
	if t.NoOp {
		return m.styles.dim.Render(fmt.Sprintf("%-14s (no-op)", name))
	}

	cur, ok := snap[key]
	curStr := "--"
	if ok {
		curStr = fmt.Sprintf("%3d", cur)
	}
	line := fmt.Sprintf("%-14s %s -> %3d", name, curStr, t.TargetValue)
	if morphing[key] {
		return m.styles.morphing.Render(line)
	}
	return line
}
