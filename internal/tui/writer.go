package tui

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Sender is the part of *tea.Program a LogWriter needs.
type Sender interface {
	Send(msg tea.Msg)
}

// LogWriter turns text written to it into LogMsg lines, one per non-blank
// line, with color codes removed.
type LogWriter struct {
	mu  sync.Mutex
	to  Sender
	buf bytes.Buffer
	now func() time.Time
}

// NewLogWriter creates a LogWriter sending to p.
func NewLogWriter(p Sender) *LogWriter {
	return &LogWriter{to: p, now: time.Now}
}

// Write implements io.Writer. Incomplete lines are held until a newline.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// put back the partial line
			w.buf.WriteString(line)
			break
		}
		w.send(line)
	}
	return len(p), nil
}

// Flush sends any partial line.
func (w *LogWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.send(w.buf.String())
		w.buf.Reset()
	}
}

func (w *LogWriter) send(line string) {
	line = strings.TrimSpace(ansi.ReplaceAllString(line, ""))
	if line == "" {
		return
	}
	w.to.Send(LogMsg{Timestamp: w.now(), Message: line})
}
