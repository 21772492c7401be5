package tui

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) lines() []string {
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.(LogMsg).Message)
	}
	return out
}

func TestLogWriter_SplitsLines(t *testing.T) {
	rec := &recorder{}
	w := NewLogWriter(rec)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return at }

	fmt.Fprint(w, "first\nsec")
	assert.Equal(t, []string{"first"}, rec.lines())

	fmt.Fprint(w, "ond\n\n  \nthird")
	assert.Equal(t, []string{"first", "second"}, rec.lines())

	w.Flush()
	assert.Equal(t, []string{"first", "second", "third"}, rec.lines())
	assert.Equal(t, at, rec.msgs[0].(LogMsg).Timestamp)

	w.Flush()
	assert.Len(t, rec.msgs, 3)
}

func TestLogWriter_StripsColor(t *testing.T) {
	rec := &recorder{}
	w := NewLogWriter(rec)
	fmt.Fprint(w, "\x1b[32m✓\x1b[0m accepted\n")
	assert.Equal(t, []string{"✓ accepted"}, rec.lines())
}
