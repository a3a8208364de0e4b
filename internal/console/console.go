// Package console is the operator-facing terminal UI: it shows where the
// server can be reached and edits the app registry in place.
package console

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mdp/qrterminal/v3"

	"github.com/harrylevesque/aviator/internal/models"
)

// Registry is the operator's view of the app store.
type Registry interface {
	List() []models.App
	Add(name, path, args string) models.App
	UpdateArgs(id, args string) bool
	Remove(id string)
}

// Options describes what the header shows.
type Options struct {
	Hostname   string
	LocalURL   string
	NetworkURL string
	Version    string
	// ShowQR renders NetworkURL as a QR code for phones.
	ShowQR bool
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEditArgs
)

// addStep walks the add prompt through its fields.
type addStep int

const (
	stepPath addStep = iota
	stepName
	stepArgs
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	localStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	netStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type model struct {
	reg  Registry
	opts Options
	qr   string

	apps   []models.App
	cursor int

	mode    mode
	step    addStep
	input   string
	pending models.App

	status string
	isErr  bool
	width  int
}

func newModel(reg Registry, opts Options) model {
	m := model{
		reg:    reg,
		opts:   opts,
		status: "Ready.",
	}
	if opts.ShowQR && opts.NetworkURL != "" {
		var buf bytes.Buffer
		qrterminal.GenerateHalfBlock(opts.NetworkURL, qrterminal.L, &buf)
		m.qr = buf.String()
	}
	m.refresh()
	return m
}

func (m *model) refresh() {
	m.apps = m.reg.List()
	if m.cursor >= len(m.apps) {
		m.cursor = len(m.apps) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) selected() (models.App, bool) {
	if len(m.apps) == 0 {
		return models.App{}, false
	}
	return m.apps[m.cursor], true
}

func (m *model) setStatus(msg string, isErr bool) {
	m.status, m.isErr = msg, isErr
}

// refreshInterval bounds how stale the list can be when the store changes
// outside the console.
const refreshInterval = time.Second

type refreshMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m model) Init() tea.Cmd { return tick() }

// Update re-reads the registry before handling every message, so selection
// and rendering always reflect the store.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.refresh()
	switch msg := msg.(type) {
	case refreshMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.mode == modeBrowse {
			return m.updateBrowse(msg)
		}
		return m.updateInput(msg)
	}
	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.apps)-1 {
			m.cursor++
		}
	case "a":
		m.mode, m.step, m.input = modeAdd, stepPath, ""
		m.pending = models.App{}
		m.setStatus("Executable path:", false)
	case "e":
		app, ok := m.selected()
		if !ok {
			m.setStatus("No application selected", true)
			return m, nil
		}
		m.mode, m.input = modeEditArgs, app.Args
		m.pending = app
		m.setStatus("Arguments for "+app.Name+":", false)
	case "d", "x", "delete":
		app, ok := m.selected()
		if !ok {
			m.setStatus("No application selected", true)
			return m, nil
		}
		m.reg.Remove(app.ID)
		m.refresh()
		m.setStatus("Removed "+app.Name, false)
	case "r":
		m.refresh()
		m.setStatus("Reloaded.", false)
	}
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode, m.input = modeBrowse, ""
		m.setStatus("Cancelled.", false)
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
		if m.mode == modeEditArgs {
			return m.commitArgs()
		}
		return m.advanceAdd()
	}
	return m, nil
}

func (m model) commitArgs() (tea.Model, tea.Cmd) {
	if m.reg.UpdateArgs(m.pending.ID, m.input) {
		m.setStatus("Updated arguments for "+m.pending.Name, false)
	} else {
		m.setStatus(m.pending.Name+" no longer exists", true)
	}
	m.mode, m.input = modeBrowse, ""
	m.refresh()
	return m, nil
}

func (m model) advanceAdd() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input)
	switch m.step {
	case stepPath:
		if value == "" {
			m.setStatus("Path is required. Executable path:", true)
			return m, nil
		}
		m.pending.Path = value
		m.step, m.input = stepName, defaultName(value)
		m.setStatus("Display name:", false)
	case stepName:
		if value == "" {
			value = defaultName(m.pending.Path)
		}
		m.pending.Name = value
		m.step, m.input = stepArgs, ""
		m.setStatus("Optional arguments for "+value+":", false)
	case stepArgs:
		app := m.reg.Add(m.pending.Name, m.pending.Path, value)
		m.mode, m.input = modeBrowse, ""
		m.refresh()
		for i, a := range m.apps {
			if a.ID == app.ID {
				m.cursor = i
			}
		}
		m.setStatus("Added "+app.Name, false)
	}
	return m, nil
}

// defaultName is the executable's base name without its extension.
func defaultName(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (m model) View() string {
	var b strings.Builder

	title := "Aviator server running"
	if m.opts.Version != "" {
		title += " " + dimStyle.Render("v"+m.opts.Version)
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	if m.opts.Hostname != "" {
		b.WriteString(dimStyle.Render(m.opts.Hostname) + "\n")
	}
	b.WriteString("Local:   " + localStyle.Render(m.opts.LocalURL) + "\n")
	b.WriteString("Network: " + netStyle.Render(m.opts.NetworkURL) + "\n")
	if m.qr != "" {
		b.WriteString(m.qr)
	}
	b.WriteString("\n")

	b.WriteString(boxStyle.Render(m.listView()) + "\n")

	switch m.mode {
	case modeBrowse:
		b.WriteString(dimStyle.Render("a add  e edit args  d remove  r reload  q stop server") + "\n")
	default:
		b.WriteString("> " + m.input + cursorStyle.Render("_") + "\n")
		b.WriteString(dimStyle.Render("enter confirm  esc cancel") + "\n")
	}

	if m.isErr {
		b.WriteString(errStyle.Render(m.status))
	} else {
		b.WriteString(m.status)
	}
	return b.String()
}

func (m model) listView() string {
	if len(m.apps) == 0 {
		return dimStyle.Render("No applications configured. Press a to add one.")
	}
	nameW := len("Name")
	for _, app := range m.apps {
		if n := lipgloss.Width(app.Name); n > nameW {
			nameW = n
		}
	}
	rows := make([]string, 0, len(m.apps)+1)
	rows = append(rows, dimStyle.Render(fmt.Sprintf("  %-*s  %s", nameW, "Name", "Path / Args")))
	for i, app := range m.apps {
		line := fmt.Sprintf("%-*s  %s", nameW, app.Name, app.Path)
		if app.Args != "" {
			line += " " + dimStyle.Render(app.Args)
		}
		if i == m.cursor {
			rows = append(rows, cursorStyle.Render(">")+" "+line)
		} else {
			rows = append(rows, "  "+line)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Run blocks until the operator quits.
func Run(reg Registry, opts Options) error {
	_, err := tea.NewProgram(newModel(reg, opts), tea.WithAltScreen()).Run()
	return err
}
