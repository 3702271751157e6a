// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/console"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Focus states
const (
	focusCommandList = iota
	focusParamInput
)

// controlCommand is one entry of the command list
type controlCommand struct {
	op    string
	title string
	hint  string // empty when the command takes no parameter
	build func(arg string) ([]byte, error)
}

// Implement list.Item interface
func (c controlCommand) Title() string       { return fmt.Sprintf("%-4s  %s", strings.TrimSpace(c.op), c.title) }
func (c controlCommand) Description() string { return c.hint }
func (c controlCommand) FilterValue() string { return c.op }

func noParams(string) ([]byte, error) { return nil, nil }

func timeoutParam(arg string) ([]byte, error) {
	ms, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("timeout must be 0-65535 ms")
	}
	return []byte{byte(ms >> 8), byte(ms)}, nil
}

func eventParam(arg string) ([]byte, error) {
	fields := strings.Fields(arg)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected \"x y polarity\"")
	}
	params := make([]byte, 3)
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", f)
		}
		params[i] = byte(v)
	}
	return params, nil
}

func modeParam(arg string) ([]byte, error) {
	r, err := dvs.ParseResolution(strings.TrimSpace(arg))
	if err != nil {
		return nil, err
	}
	return []byte{byte(r)}, nil
}

func echoParam(arg string) ([]byte, error) {
	if len(arg) > console.LineLength-console.OpcodeLength-1 {
		return nil, fmt.Errorf("echo text too long")
	}
	return append([]byte{byte(len(arg))}, arg...), nil
}

var controlCommands = []controlCommand{
	{op: console.OpIdentify, title: "Identify", build: noParams},
	{op: console.OpEcho, title: "Echo", hint: "text", build: echoParam},
	{op: console.OpReset, title: "Reset", build: noParams},
	{op: console.OpSensorForward, title: "Forward sensor events", hint: "timeout ms (0 = on)", build: timeoutParam},
	{op: console.OpSensorStop, title: "Stop sensor events", build: noParams},
	{op: console.OpInjectEvent, title: "Inject event", hint: "x y polarity", build: eventParam},
	{op: console.OpLinkForward, title: "Forward link symbols", hint: "timeout ms (0 = on)", build: timeoutParam},
	{op: console.OpLinkStop, title: "Stop link symbols", build: noParams},
	{op: console.OpSetMode, title: "Set resolution", hint: "full | half | quarter | eighth", build: modeParam},
	{op: console.OpReceiveForward, title: "Forward received values", hint: "timeout ms (0 = on)", build: timeoutParam},
	{op: console.OpReceiveStop, title: "Stop received values", build: noParams},
}

// controlLogEntry is one line in the control log
type controlLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type controlModel struct {
	connMgr        *connectionManager
	connInfo       string
	connectionLost bool

	commandList  list.Model
	paramInput   textinput.Model
	focusedField int

	sensorOn  bool
	receiveOn bool
	joiner    console.RecordJoiner

	bridgeID      string
	events        uint64
	packets       uint64
	values        uint64
	statuses      uint64
	failures      uint64
	log           []controlLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

// Messages
type controlTickMsg time.Time

type controlBatchMsg struct {
	lines [][]byte
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "parameter"
	ti.CharLimit = console.LineLength
	ti.Width = 30

	items := make([]list.Item, len(controlCommands))
	for i, c := range controlCommands {
		items[i] = c
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commandList := list.New(items, delegate, 40, 12)
	commandList.Title = "Commands"
	commandList.SetShowStatusBar(false)
	commandList.SetShowHelp(false)
	commandList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		commandList:   commandList,
		paramInput:    ti,
		focusedField:  focusCommandList,
		log:           make([]controlLogEntry, 0),
		maxLogEntries: 200,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		return m, controlTickCmd()

	case controlBatchMsg:
		m.processLines(msg.lines)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField == focusCommandList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focusedField == focusCommandList {
			m.focusedField = focusParamInput
			m.paramInput.Focus()
		} else {
			m.focusedField = focusCommandList
			m.paramInput.Blur()
		}
		return m, nil

	case "enter":
		m.sendSelected()
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusedField == focusParamInput {
		m.paramInput, cmd = m.paramInput.Update(msg)
	} else {
		m.commandList, cmd = m.commandList.Update(msg)
	}
	return m, cmd
}

// sendSelected builds and sends the highlighted command
func (m *controlModel) sendSelected() {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}
	c, ok := m.commandList.SelectedItem().(controlCommand)
	if !ok {
		return
	}
	params, err := c.build(m.paramInput.Value())
	if err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", c.title, err), true)
		return
	}
	if err := m.connMgr.send(c.op, params...); err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", c.title, err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("> %q % X", c.op, params), false)
	m.trackForwarding(c.op)
}

// trackForwarding follows the forwarding modes switched from this client so
// split records can be rejoined. With both modes on, record lengths are
// ambiguous and lines are shown as they arrive.
func (m *controlModel) trackForwarding(op string) {
	switch op {
	case console.OpSensorForward:
		m.sensorOn = true
	case console.OpSensorStop:
		m.sensorOn = false
	case console.OpReceiveForward:
		m.receiveOn = true
	case console.OpReceiveStop:
		m.receiveOn = false
	case console.OpReset:
		m.sensorOn, m.receiveOn = false, false
	default:
		return
	}

	length := 0
	switch {
	case m.sensorOn && !m.receiveOn:
		length = console.EventRecordLength
	case m.receiveOn && !m.sensorOn:
		length = console.ValueRecordLength
	}
	if length != m.joiner.Length {
		if f := m.joiner.Flush(); f != nil {
			m.processLine(f)
		}
		m.joiner.Length = length
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

// lineKind classifies a line read from the console
type lineKind int

const (
	lineText lineKind = iota
	lineStatus
	lineEvent
	linePacket
	lineValue
)

func classifyLine(line []byte) lineKind {
	switch string(line) {
	case console.RespSuccess, console.RespNotRecognised, console.RespWrongLength, console.RespBadParameter:
		return lineStatus
	}
	switch {
	case len(line) == spinnlink.PacketLength && line[spinnlink.PosEOP] == spinnlink.EOP:
		return linePacket
	case len(line) == 3 && line[0] <= dvs.CoordinateMask && line[1] <= dvs.CoordinateMask && line[2] <= 1:
		return lineEvent
	case len(line) == 2:
		return lineValue
	}
	return lineText
}

func (m *controlModel) processLines(lines [][]byte) {
	for _, line := range lines {
		for _, l := range m.joiner.Add(line) {
			m.processLine(l)
		}
	}
}

func (m *controlModel) processLine(line []byte) {
	switch classifyLine(line) {
	case lineStatus:
		m.statuses++
		status := string(line)
		if status != console.RespSuccess {
			m.failures++
			m.addLogEntry("< "+status, true)
		} else {
			m.addLogEntry("< "+status, false)
		}

	case lineEvent:
		m.events++
		e, _ := console.ParseEventRecord(line)
		m.addLogEntry(fmt.Sprintf("event x=%d y=%d %s", e.X, e.Y, dvs.FormatPolarity(e.Polarity)), false)

	case linePacket:
		m.packets++
		var p spinnlink.Packet
		copy(p[:], line)
		if payload, ok := p.Payload(); ok {
			m.addLogEntry(fmt.Sprintf("packet %s (payload 0x%04X)", p, payload), false)
		} else {
			m.addLogEntry(fmt.Sprintf("packet %s (bad symbols)", p), true)
		}

	case lineValue:
		m.values++
		v, _ := console.ParseValueRecord(line)
		m.addLogEntry(fmt.Sprintf("value 0x%04X", v), false)

	default:
		text := string(line)
		if text == console.BoardID {
			m.bridgeID = text
		}
		m.addLogEntry(fmt.Sprintf("< %q", text), false)
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, controlLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height - 12
	if listHeight < 6 {
		listHeight = 6
	}
	m.commandList.SetSize(40, listHeight)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("DVSBRIDGE CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Tab=switch Enter=send Esc=quit", connStatus)))
	s.WriteString("\n")

	id := m.bridgeID
	if id == "" {
		id = "(not identified)"
	}
	s.WriteString(fmt.Sprintf(" %s %s   %s %s   %s %s   %s %s   %s %s\n\n",
		labelStyle.Render("Board:"), valueStyle.Render(id),
		labelStyle.Render("Events:"), valueStyle.Render(fmt.Sprintf("%d", m.events)),
		labelStyle.Render("Packets:"), valueStyle.Render(fmt.Sprintf("%d", m.packets)),
		labelStyle.Render("Values:"), valueStyle.Render(fmt.Sprintf("%d", m.values)),
		labelStyle.Render("Failed:"), func() string {
			if m.failures > 0 {
				return errorStyle.Render(fmt.Sprintf("%d/%d", m.failures, m.statuses))
			}
			return valueStyle.Render(fmt.Sprintf("0/%d", m.statuses))
		}()))

	// Left panel: command list and parameter input
	listBox, inputBox := boxStyle, boxStyle
	if m.focusedField == focusCommandList {
		listBox = focusedBoxStyle
	} else {
		inputBox = focusedBoxStyle
	}
	hint := ""
	if c, ok := m.commandList.SelectedItem().(controlCommand); ok && c.hint != "" {
		hint = headerStyle.Render(c.hint)
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		listBox.Render(m.commandList.View()),
		inputBox.Render(m.paramInput.View()+"\n"+hint))

	// Right panel: log
	logWidth := m.width - lipgloss.Width(left) - 6
	if logWidth < 20 {
		logWidth = 20
	}
	logHeight := lipgloss.Height(left) - 2
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.log) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.log); i++ {
		entry := m.log[i]
		style := warningStyle
		icon := "i"
		if entry.isError {
			style = errorStyle
			icon = "x"
		}
		fmt.Fprintf(&logContent, "%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message)
	}

	right := boxStyle.Width(logWidth).Render(logContent.String())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))

	return s.String()
}
