package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

type telegramLogEntry struct {
	source  string
	target  string
	group   bool
	command string
	payload []byte
}

type watchModel struct {
	portName string
	log      []telegramLogEntry
	maxLog   int
	table    table.Model
	quitting bool
}

func newWatchModel(portName string) watchModel {
	columns := []table.Column{
		{Title: "Source", Width: 10},
		{Title: "Target", Width: 10},
		{Title: "Command", Width: 10},
		{Title: "Payload", Width: 24},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	t.SetStyles(table.Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Cell:   lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12")),
	})

	return watchModel{
		portName: portName,
		maxLog:   200,
		table:    t,
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(msg.Height - 6)

	case tickMsg:
		return m, tickCmd()

	case telegramMsg:
		entry := telegramLogEntry{
			source:  msg.tg.Source().String(),
			group:   msg.tg.Multicast(),
			command: commandLabel(msg.tg.Command()),
			payload: append([]byte(nil), msg.tg.Payload()...),
		}
		if entry.group {
			entry.target = msg.tg.TargetGroup().String()
		} else {
			entry.target = msg.tg.TargetPhysical().String()
		}
		m.log = append(m.log, entry)
		if len(m.log) > m.maxLog {
			m.log = m.log[len(m.log)-m.maxLog:]
		}
		m.table.SetRows(rowsFromLog(m.log))
		m.table.GotoBottom()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rowsFromLog(log []telegramLogEntry) []table.Row {
	rows := make([]table.Row, len(log))
	for i, e := range log {
		rows[i] = table.Row{e.source, e.target, e.command, fmt.Sprintf("%x", e.payload)}
	}
	return rows
}

func commandLabel(c telegram.Command) string {
	switch c {
	case telegram.CommandValueRead:
		return "read"
	case telegram.CommandValueResponse:
		return "response"
	case telegram.CommandValueWrite:
		return "write"
	case telegram.CommandMemoryWrite:
		return "memwrite"
	default:
		return "unknown"
	}
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))

	return fmt.Sprintf("%s\n%s\n\n%s",
		titleStyle.Render("KNXMONITOR"),
		headerStyle.Render(fmt.Sprintf("Port: %s | Telegrams: %d | Press 'q' to quit", m.portName, len(m.log))),
		boxStyle.Render(m.table.View()),
	)
}
