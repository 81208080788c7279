package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nitrodl/nitro-downloader/internal/domain"
)

const (
	tickInterval = 150 * time.Millisecond
	// logTail is how many log lines are shown under a tool being worked on
	logTail = 3
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg time.Time

// SnapshotMsg delivers a new provisioning snapshot to the model
type SnapshotMsg domain.ProvisioningSnapshot

// ErrorMsg signals a fatal error; the TUI quits
type ErrorMsg struct {
	Err error
}

// SetupModel renders a provisioning run as a table that updates in place.
// It quits once a run has completed.
type SetupModel struct {
	snap     domain.ProvisioningSnapshot
	received bool
	done     bool
	err      error
	tick     int
}

// NewSetupModel creates a model showing initial until the first update
func NewSetupModel(initial domain.ProvisioningSnapshot) SetupModel {
	return SetupModel{snap: initial}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface
func (m SetupModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case SnapshotMsg:
		m.snap = domain.ProvisioningSnapshot(msg)
		m.received = true
		if m.snap.Completed && !m.snap.Running {
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View satisfies the tea.Model interface
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(RenderManager(m.snap.PackageManager))
	b.WriteString("\n\n")
	b.WriteString(RenderTools(m.snap.Tools, !m.done))

	if m.err != nil {
		fmt.Fprintf(&b, "\nError: %v\n", m.err)
		return b.String()
	}

	if !m.done {
		spinner := spinnerFrames[m.tick%len(spinnerFrames)]
		finished, total := TerminalCounts(m.snap.Tools)
		fmt.Fprintf(&b, "\n%s Checking tools %d/%d...\n", spinner, finished, total)
	} else if m.snap.Completed {
		installed, failed := Outcome(m.snap.Tools)
		fmt.Fprintf(&b, "\nDone: %d installed, %d failed\n", installed, failed)
	}

	return b.String()
}

// Snapshot returns the last snapshot received
func (m SetupModel) Snapshot() domain.ProvisioningSnapshot {
	return m.snap
}

// Done returns whether the model has finished
func (m SetupModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred
func (m SetupModel) Err() error {
	return m.err
}

// RenderManager renders the package manager line
func RenderManager(pm domain.PackageManagerStatus) string {
	state := "not found"
	switch {
	case pm.Installing:
		state = "installing"
	case pm.Installed:
		state = "installed"
	}
	line := TitleStyle.Render("Homebrew") + "  " + StatusStyle(statusKey(state)).Render(state)
	if pm.Path != "" {
		line += "  " + FaintStyle.Render(pm.Path)
	}
	if pm.Message != "" {
		line += "\n" + FaintStyle.Render(pm.Message)
	}
	return line
}

func statusKey(state string) string {
	if state == "not found" {
		return "not_installed"
	}
	return state
}

// RenderTools renders the tool table. With showLog the tail of the log of
// tools still being worked on is shown under their row.
func RenderTools(tools []domain.ToolState, showLog bool) string {
	const (
		nameWidth   = 8
		statusWidth = 14
		verWidth    = 16
	)

	var b strings.Builder
	header := []string{
		HeaderStyle.Render(Pad("TOOL", nameWidth)),
		HeaderStyle.Render(Pad("STATUS", statusWidth)),
		HeaderStyle.Render(Pad("VERSION", verWidth)),
		HeaderStyle.Render("DETAIL"),
	}
	b.WriteString(strings.Join(header, "  "))
	b.WriteByte('\n')

	for _, tool := range tools {
		detail := tool.Status.Reason
		if detail == "" {
			detail = tool.Path
		}
		parts := []string{
			Pad(tool.Name, nameWidth),
			RenderStatus(string(tool.Status.Kind), statusWidth),
			Pad(NonEmptyOrDash(TruncateWithEllipsis(tool.Version, verWidth)), verWidth),
			detail,
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')

		if showLog && !tool.Status.IsTerminal() && len(tool.Log) > 0 {
			start := len(tool.Log) - logTail
			if start < 0 {
				start = 0
			}
			for _, line := range tool.Log[start:] {
				b.WriteString("    " + FaintStyle.Render(TruncateWithEllipsis(line, 100)) + "\n")
			}
		}
	}
	return b.String()
}

// TerminalCounts returns how many tools reached a terminal status, and the total
func TerminalCounts(tools []domain.ToolState) (int, int) {
	finished := 0
	for _, tool := range tools {
		if tool.Status.IsTerminal() {
			finished++
		}
	}
	return finished, len(tools)
}

// Outcome counts installed and failed tools
func Outcome(tools []domain.ToolState) (installed, failed int) {
	for _, tool := range tools {
		switch tool.Status.Kind {
		case domain.ToolInstalled:
			installed++
		case domain.ToolFailed:
			failed++
		}
	}
	return installed, failed
}
