package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopView_Initial(t *testing.T) {
	v := NewLoopView(4)
	s := v.State()
	assert.Equal(t, 4, s.MaxCycles)
	assert.Equal(t, PhaseValidating, s.Phase)

	out := v.View()
	assert.Contains(t, out, "Correction Loop")
	assert.Contains(t, out, "validating")
	assert.NotContains(t, out, "Questions:")
}

func TestLoopView_ApplyPhases(t *testing.T) {
	tests := []struct {
		name string
		msg  CycleMsg
		want string
	}{
		{"accepted", CycleMsg{Accepted: true}, PhaseAccepted},
		{"repairing", CycleMsg{Repairing: true}, PhaseRepairing},
		{"rejected", CycleMsg{}, PhaseRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewLoopView(2)
			v.Apply(tt.msg)
			assert.Equal(t, tt.want, v.State().Phase)
		})
	}
}

func TestLoopView_RendersCycle(t *testing.T) {
	v := NewLoopView(4)
	v.SetSize(80, 24)
	v.Apply(CycleMsg{
		Attempt:   1,
		Document:  "out/fixed_output.ttl",
		SyntaxOK:  true,
		Passed:    1,
		Total:     2,
		Failures:  []string{"cq2: expected true, got false"},
		Issues:    []string{":x is both :Car and :Bicycle"},
		Repairing: true,
	})

	out := v.View()
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "out/fixed_output.ttl")
	assert.Contains(t, out, "1/2 passed")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "cq2: expected true, got false")
	assert.Contains(t, out, ":x is both")
	assert.Contains(t, out, "repairing")
}

func TestLoopView_SyntaxError(t *testing.T) {
	v := NewLoopView(1)
	v.Apply(CycleMsg{Total: 3})
	out := v.View()
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "0/3 passed")
}

func TestRenderProgressBar_Clamps(t *testing.T) {
	v := NewLoopView(1)
	assert.Contains(t, v.renderProgressBar(150, 10), "100%")
	assert.Contains(t, v.renderProgressBar(-5, 10), "0%")
	assert.Equal(t, 10, strings.Count(v.renderProgressBar(100, 10), "█"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "anything", truncate("anything", 0))
}

func TestLoopApp_Update(t *testing.T) {
	app := NewLoopApp("fix onto.ttl", 3)
	require.NotNil(t, app.Init())

	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 100, app.width)

	app.Update(CycleMsg{Attempt: 0, SyntaxOK: true, Passed: 2, Total: 2, Accepted: true})
	assert.Equal(t, PhaseAccepted, app.view.State().Phase)

	app.Update(LogMsg{Timestamp: time.Now(), Message: "Report written"})
	assert.Contains(t, app.View(), "Report written")
	assert.Contains(t, app.View(), "Press q to cancel")

	app.Update(DoneMsg{})
	assert.True(t, app.Done())
	assert.Contains(t, app.View(), "Document accepted")

	_, cmd := app.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
}

func TestLoopApp_DoneWithError(t *testing.T) {
	app := NewLoopApp("fix", 1)
	app.Update(DoneMsg{Err: errors.New("document rejected after 2 cycle(s)")})
	assert.Contains(t, app.View(), "document rejected after 2 cycle(s)")
}

func TestLoopApp_Quit(t *testing.T) {
	app := NewLoopApp("fix", 1)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, "Run cancelled.\n", app.View())

	app = NewLoopApp("fix", 1)
	app.Update(DoneMsg{})
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotEqual(t, "Run cancelled.\n", app.View())
}

func TestLoopApp_LogsKeepRecent(t *testing.T) {
	app := NewLoopApp("fix", 1)
	for i := 0; i < 120; i++ {
		app.Update(LogMsg{Timestamp: time.Now(), Message: "line"})
	}
	assert.Len(t, app.logs, 100)
	assert.Equal(t, maxLogLines, strings.Count(app.renderLogs(), "line"))
}
