// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/bridge"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorBridge is the part of the bridge the monitor drives
type monitorBridge interface {
	Stats() bridge.Snapshot
	EnableSensorForwarding(timeout time.Duration)
	DisableSensorForwarding()
	EnableLinkForwarding(timeout time.Duration)
	DisableLinkForwarding()
	EnableReceiveForwarding(timeout time.Duration)
	DisableReceiveForwarding()
	InjectEvent(e dvs.Event) error
	SetResolution(r dvs.Resolution) error
	Reset() error
}

// TUI model
type monitorModel struct {
	bridge        monitorBridge
	sensorInfo    string
	hostInfo      string
	stats         bridge.Snapshot
	input         textinput.Model
	eventLog      []eventLogEntry
	maxLogEntries int
	lastValue     uint16
	values        uint64
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type linkValueMsg struct {
	value uint16
}

func initialMonitorModel(b monitorBridge, sensorInfo, hostInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "mode half | fwd dvs 5000 | stop spn | inject 10 20 1 | reset"
	ti.Prompt = "> "
	ti.CharLimit = 64
	ti.Width = 60
	ti.Focus()

	return monitorModel{
		bridge:        b,
		sensorInfo:    sensorInfo,
		hostInfo:      hostInfo,
		stats:         b.Stats(),
		input:         ti,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		textinput.Blink,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line != "" {
				if err := m.execute(line); err != nil {
					m.addLogEntry(fmt.Sprintf("%s: %v", line, err), true)
				} else {
					m.addLogEntry(line, false)
				}
				m.stats = m.bridge.Stats()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.bridge.Stats()
		return m, tickCmd()

	case linkValueMsg:
		m.lastValue = msg.value
		m.values++
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// execute runs one command line typed into the monitor
func (m *monitorModel) execute(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "mode":
		if len(fields) != 2 {
			return fmt.Errorf("usage: mode full|half|quarter|eighth")
		}
		r, err := dvs.ParseResolution(fields[1])
		if err != nil {
			return err
		}
		return m.bridge.SetResolution(r)

	case "fwd":
		if len(fields) != 3 {
			return fmt.Errorf("usage: fwd dvs|spn|rcv <ms>")
		}
		ms, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid timeout %q", fields[2])
		}
		timeout := time.Duration(ms) * time.Millisecond
		switch fields[1] {
		case "dvs":
			m.bridge.EnableSensorForwarding(timeout)
		case "spn":
			m.bridge.EnableLinkForwarding(timeout)
		case "rcv":
			m.bridge.EnableReceiveForwarding(timeout)
		default:
			return fmt.Errorf("unknown channel %q", fields[1])
		}
		return nil

	case "stop":
		if len(fields) != 2 {
			return fmt.Errorf("usage: stop dvs|spn|rcv")
		}
		switch fields[1] {
		case "dvs":
			m.bridge.DisableSensorForwarding()
		case "spn":
			m.bridge.DisableLinkForwarding()
		case "rcv":
			m.bridge.DisableReceiveForwarding()
		default:
			return fmt.Errorf("unknown channel %q", fields[1])
		}
		return nil

	case "inject":
		if len(fields) != 4 {
			return fmt.Errorf("usage: inject <x> <y> <polarity>")
		}
		var vals [3]uint8
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				return fmt.Errorf("invalid value %q", f)
			}
			vals[i] = uint8(v)
		}
		return m.bridge.InjectEvent(dvs.Event{X: vals[0], Y: vals[1], Polarity: vals[2]})

	case "reset":
		return m.bridge.Reset()
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	st := m.stats
	st.CalculateRates()

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("DVSBRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Host: %s | Esc to quit", m.sensorInfo, m.hostInfo)))
	s.WriteString("\n\n")

	field := func(label, value string) string {
		return labelStyle.Render(label) + " " + valueStyle.Render(value)
	}
	warnIf := func(label string, v uint64) string {
		if v > 0 {
			return labelStyle.Render(label) + " " + errorStyle.Render(fmt.Sprintf("%d", v))
		}
		return field(label, "0")
	}

	var sensor strings.Builder
	fmt.Fprintf(&sensor, "%s   %s   %s\n",
		field("Bytes:", fmt.Sprintf("%d", st.BytesIn)),
		field("Events:", fmt.Sprintf("%d (%.1f/s)", st.Events, st.EventRate)),
		field("Injected:", fmt.Sprintf("%d", st.Injected)))
	fmt.Fprintf(&sensor, "%s   %s\n",
		warnIf("Resyncs:", st.Resyncs),
		warnIf("Dropped bytes:", st.BytesDropped))
	fmt.Fprintf(&sensor, "%s   %s   %s   %s",
		field("Resolution:", fmt.Sprintf("%s (%dx%d)", st.Resolution, st.Resolution.Side(), st.Resolution.Side())),
		field("Pending:", fmt.Sprintf("%d/%d", st.Pending, st.Capacity)),
		field("Emitted:", fmt.Sprintf("%d (%.1f/s)", st.Emitted, st.EmitRate)),
		warnIf("Dropped:", st.AggregatorDrops))
	s.WriteString(labelStyle.Render("Sensor:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(sensor.String()))
	s.WriteString("\n")

	var link strings.Builder
	fmt.Fprintf(&link, "%s   %s   %s\n",
		field("Queue:", fmt.Sprintf("%d/%d", st.QueueLen, st.QueueCap)),
		field("Queued:", fmt.Sprintf("%d", st.PacketsQueued)),
		warnIf("Evicted:", st.PacketsEvicted))
	fmt.Fprintf(&link, "%s   %s   %s\n",
		field("Symbols:", fmt.Sprintf("%d", st.SymbolsDriven)),
		field("Forwarded:", fmt.Sprintf("%d", st.SymbolsForwarded)),
		field("State:", st.TxState.String()))
	fmt.Fprintf(&link, "%s   %s   %s",
		field("Frames:", fmt.Sprintf("%d", st.FramesReceived)),
		warnIf("Bad frames:", st.FramesDropped),
		field("Last value:", fmt.Sprintf("0x%04X (%d seen)", m.lastValue, m.values)))
	s.WriteString(labelStyle.Render("Link:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(link.String()))
	s.WriteString("\n")

	s.WriteString(fmt.Sprintf("%s   %s   %s\n\n",
		field("Forward dvs:", onOffLabel(st.SensorForwarding)),
		field("spn:", onOffLabel(st.LinkForwarding)),
		field("rcv:", onOffLabel(st.ReceiveForwarding))))

	// Event log
	s.WriteString(labelStyle.Render("Commands:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no commands yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				fmt.Fprintf(&logContent, "%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message))
			} else {
				fmt.Fprintf(&logContent, "%s %s\n", headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message))
			}
		}
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}

func onOffLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
