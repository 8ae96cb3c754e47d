// Package ui renders a live bubbletea view of a running program: the
// task ring, the scheduler's step counter, and heap occupancy, updated
// a configurable number of instructions at a time.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"lacevm/internal/sched"
	"lacevm/internal/vm"
)

// InspectModel single-steps a Scheduler on a timer and renders its ring.
type InspectModel struct {
	sched        *sched.Scheduler
	stepsPerTick int

	spinner spinner.Model
	prog    progress.Model

	width int
	done  bool
	err   error
}

// NewInspectModel returns a Bubble Tea model driving s forward
// stepsPerTick instructions every tick until it halts.
func NewInspectModel(s *sched.Scheduler, stepsPerTick int) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	if stepsPerTick <= 0 {
		stepsPerTick = 1
	}
	return &InspectModel{sched: s, stepsPerTick: stepsPerTick, spinner: sp, prog: prog}
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init implements tea.Model.
func (m *InspectModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update implements tea.Model.
func (m *InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.advance()
		cmd := m.prog.SetPercent(m.occupancy())
		if m.done {
			return m, tea.Batch(cmd, tea.Quit)
		}
		return m, tea.Batch(cmd, tickCmd())

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progModel, cmd := m.prog.Update(msg)
		m.prog = progModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

// advance runs up to stepsPerTick instructions, stopping early on
// completion or a fatal error.
func (m *InspectModel) advance() {
	for i := 0; i < m.stepsPerTick; i++ {
		if m.sched.RootTask().Done {
			m.done = true
			return
		}
		if err := m.sched.StepOnce(); err != nil {
			m.err = err
			m.done = true
			return
		}
	}
}

func (m *InspectModel) occupancy() float64 {
	stats := m.sched.VM.Heap.Stats()
	if stats.TotalNodes == 0 {
		return 0
	}
	return float64(stats.LiveNodes) / float64(stats.TotalNodes)
}

// View implements tea.Model.
func (m *InspectModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))

	header := fmt.Sprintf("%s step %d", m.spinner.View(), m.sched.Steps)
	if m.done {
		if m.err != nil {
			header = fmt.Sprintf("halted: %v", m.err)
		} else {
			header = "done"
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	for _, t := range m.sched.Ring {
		marker := "  "
		if t == m.sched.Ring[m.sched.Current] && !m.done {
			marker = "> "
		}
		status := taskStatus(t)
		line := fmt.Sprintf("%s task %s  pc=%s  %s",
			marker, pad(fmt.Sprintf("%d", t.ID), 4), pad(fmt.Sprintf("%d", t.PC), 6), styleStatus(status).Render(status))
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(m.occupancy()))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func taskStatus(t *vm.Task) string {
	switch {
	case t.Done:
		return "done"
	case t.Blocked:
		return "blocked"
	default:
		return "runnable"
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "blocked":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

// pad right-pads s to width display columns, accounting for
// double-width runes the way a fixed-width table needs to.
func pad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
