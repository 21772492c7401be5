package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phases of a cycle as shown in the view.
const (
	PhaseValidating = "validating"
	PhaseRepairing  = "repairing"
	PhaseAccepted   = "accepted"
	PhaseRejected   = "rejected"
)

// maxLogLines is how much of the activity log stays on screen.
const maxLogLines = 8

// LoopState is what the view knows about the run.
type LoopState struct {
	Cycle     int // 1-based, 0 before the first cycle ends
	MaxCycles int
	Passed    int
	Total     int
	SyntaxOK  bool
	Phase     string
	Document  string
	Failures  []string
	Issues    []string
}

// CycleMsg reports a finished cycle. Attempt is 0 for the initial
// document.
type CycleMsg struct {
	Attempt  int
	Document string
	SyntaxOK bool
	Passed   int
	Total    int
	Accepted bool
	// Failures are one line per failing question.
	Failures []string
	Issues   []string
	// Repairing is set when a correction will follow.
	Repairing bool
}

// LogMsg adds a line to the activity log.
type LogMsg struct {
	Timestamp time.Time
	Message   string
}

// DoneMsg is sent once the loop has returned.
type DoneMsg struct {
	Err error
}

// LoopView renders the loop state.
type LoopView struct {
	state  LoopState
	width  int
	height int

	// Styles
	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	phaseStyle    lipgloss.Style
	warningStyle  lipgloss.Style
	failStyle     lipgloss.Style
	passStyle     lipgloss.Style
}

// NewLoopView creates a LoopView for a run of at most maxCycles cycles.
func NewLoopView(maxCycles int) *LoopView {
	return &LoopView{
		state: LoopState{MaxCycles: maxCycles, Phase: PhaseValidating},

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		passStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
	}
}

// Apply folds a finished cycle into the state.
func (v *LoopView) Apply(msg CycleMsg) {
	s := &v.state
	s.Cycle = msg.Attempt + 1
	s.Document = msg.Document
	s.SyntaxOK = msg.SyntaxOK
	s.Passed = msg.Passed
	s.Total = msg.Total
	s.Failures = msg.Failures
	s.Issues = msg.Issues
	switch {
	case msg.Accepted:
		s.Phase = PhaseAccepted
	case msg.Repairing:
		s.Phase = PhaseRepairing
	default:
		s.Phase = PhaseRejected
	}
}

// State returns the current state.
func (v *LoopView) State() LoopState {
	return v.state
}

// SetSize sets the view dimensions.
func (v *LoopView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// View renders the loop progress.
func (v *LoopView) View() string {
	var b strings.Builder
	s := v.state

	b.WriteString(v.headerStyle.Render("Correction Loop"))
	b.WriteString("\n")

	cycle := "-"
	if s.Cycle > 0 {
		cycle = fmt.Sprintf("%d/%d", s.Cycle, s.MaxCycles)
	}
	b.WriteString(v.labelStyle.Render("Cycle:"))
	b.WriteString(v.valueStyle.Render(cycle))
	b.WriteString("  ")
	b.WriteString(v.labelStyle.Render("Phase:"))
	b.WriteString(v.phaseStyle.Render(s.Phase))
	b.WriteString("\n")

	if s.Document != "" {
		b.WriteString(v.labelStyle.Render("Document:"))
		b.WriteString(s.Document)
		b.WriteString("\n")
	}

	if s.Cycle > 0 {
		b.WriteString(v.labelStyle.Render("Syntax:"))
		if s.SyntaxOK {
			b.WriteString(v.passStyle.Render("ok"))
		} else {
			b.WriteString(v.failStyle.Render("error"))
		}
		b.WriteString("\n")

		pct := float64(0)
		if s.Total > 0 {
			pct = float64(s.Passed) / float64(s.Total) * 100
		}
		b.WriteString(v.labelStyle.Render("Questions:"))
		b.WriteString(v.valueStyle.Render(fmt.Sprintf("%d/%d passed", s.Passed, s.Total)))
		b.WriteString("\n")
		b.WriteString(v.renderProgressBar(pct, 30))
		b.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(v.labelStyle.Render("Failing:"))
		b.WriteString("\n")
		for _, f := range s.Failures {
			b.WriteString("  ")
			b.WriteString(v.failStyle.Render("✗ "))
			b.WriteString(truncate(f, v.width-6))
			b.WriteString("\n")
		}
	}

	if len(s.Issues) > 0 {
		b.WriteString("\n")
		b.WriteString(v.labelStyle.Render("Issues:"))
		b.WriteString("\n")
		for _, issue := range s.Issues {
			b.WriteString("  ")
			b.WriteString(v.warningStyle.Render("! "))
			b.WriteString(truncate(issue, v.width-6))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// renderProgressBar renders a progress bar.
func (v *LoopView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := v.progressFull.Render(strings.Repeat("█", filled)) +
		v.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

// LoopApp is the bubbletea model around LoopView.
type LoopApp struct {
	title    string
	view     *LoopView
	spinner  spinner.Model
	logs     []LogMsg
	width    int
	height   int
	quitting bool
	done     bool
	err      error

	logStyle     lipgloss.Style
	logTimeStyle lipgloss.Style
	errorStyle   lipgloss.Style
	doneStyle    lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewLoopApp creates a LoopApp.
func NewLoopApp(title string, maxCycles int) *LoopApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &LoopApp{
		title:   title,
		view:    NewLoopView(maxCycles),
		spinner: s,

		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *LoopApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *LoopApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = !a.done
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.SetSize(msg.Width, msg.Height)

	case CycleMsg:
		a.view.Apply(msg)

	case LogMsg:
		a.logs = append(a.logs, msg)
		if len(a.logs) > 100 {
			a.logs = a.logs[len(a.logs)-100:]
		}

	case DoneMsg:
		a.done = true
		a.err = msg.Err

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// Done reports whether the loop has finished.
func (a *LoopApp) Done() bool {
	return a.done
}

// View implements tea.Model.
func (a *LoopApp) View() string {
	if a.quitting {
		return "Run cancelled.\n"
	}

	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("=== llm-owl " + a.title + " ===")
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(a.view.View())
	b.WriteString("\n")

	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("✗ %v", a.err)))
		b.WriteString(a.hintStyle.Render("  Press q to exit"))
	case a.done:
		b.WriteString(a.doneStyle.Render("✓ Document accepted."))
		b.WriteString(a.hintStyle.Render("  Press q to exit"))
	default:
		b.WriteString(a.spinner.View())
		b.WriteString(" ")
		b.WriteString(a.hintStyle.Render("Press q to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

// renderLogs renders the recent log entries.
func (a *LoopApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity"))
	b.WriteString("\n")

	start := 0
	if len(a.logs) > maxLogLines {
		start = len(a.logs) - maxLogLines
	}
	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		fmt.Fprintf(&b, "  %s %s\n", ts, a.logStyle.Render(entry.Message))
	}
	return b.String()
}

// NewLoopProgram creates the bubbletea program for a loop TUI.
func NewLoopProgram(title string, maxCycles int, opts ...tea.ProgramOption) (*tea.Program, *LoopApp) {
	app := NewLoopApp(title, maxCycles)
	p := tea.NewProgram(app, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	return p, app
}
