package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/config"
	"github.com/LyzardKing/llm-owl/internal/state"
)

var historyOpts struct {
	run    string
	limit  int
	status string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past validation runs",
	Long: `History lists recent runs recorded in the project's run database
(.llm-owl/history.db), newest first. With --run it shows every cycle of one
run.`,
	Example: `  llm-owl history
  llm-owl history --status rejected --limit 5
  llm-owl history --run 3f0c...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	fs := historyCmd.Flags()
	fs.StringVar(&historyOpts.run, "run", "", "Show the cycles of one run")
	fs.IntVar(&historyOpts.limit, "limit", 20, "Number of runs to list (0 for all)")
	fs.StringVar(&historyOpts.status, "status", "", "Only runs with this status: running, accepted, rejected, failed, interrupted")
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	acceptedStyle = cellStyle.Foreground(lipgloss.Color("34"))
	rejectedStyle = cellStyle.Foreground(lipgloss.Color("196"))
	otherStyle    = cellStyle.Foreground(lipgloss.Color("214"))
)

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := historyPath(cfg)
	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded yet. Run 'llm-owl validate' to start.")
		return nil
	}

	db, err := state.OpenMigrated(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if historyOpts.run != "" {
		return showRun(out, db, historyOpts.run)
	}

	var filter *state.RunStatus
	if historyOpts.status != "" {
		s := state.RunStatus(historyOpts.status)
		filter = &s
	}
	runs, err := db.ListRuns(filter, historyOpts.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No matching runs.")
		return nil
	}
	fmt.Fprintln(out, runsTable(runs, time.Now()))
	return nil
}

func runsTable(runs []state.Run, now time.Time) *table.Table {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Command,
			string(r.Status),
			strconv.Itoa(r.Cycles),
			r.DocumentPath,
			formatDuration(now.Sub(r.StartedAt)) + " ago",
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("RUN", "COMMAND", "STATUS", "CYCLES", "DOCUMENT", "STARTED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				return statusStyle(state.RunStatus(rows[row][2]))
			}
			return cellStyle
		})
}

func showRun(w io.Writer, db state.HistoryStore, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return errors.WithHint(errors.Newf("no run %q", id), "list runs with 'llm-owl history'")
	}

	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Command)
	fmt.Fprintf(w, "  Status:    %s\n", statusStyle(run.Status).UnsetPadding().Render(string(run.Status)))
	fmt.Fprintf(w, "  Document:  %s\n", run.DocumentPath)
	fmt.Fprintf(w, "  Questions: %s\n", run.QuestionsPath)
	fmt.Fprintf(w, "  Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  Took:      %s\n", formatDuration(run.FinishedAt.Sub(run.StartedAt)))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", run.Error)
	}

	cycles, err := db.ListCycles(id)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, cyclesTable(cycles))
	return nil
}

func cyclesTable(cycles []state.CycleRecord) *table.Table {
	rows := make([][]string, 0, len(cycles))
	for _, c := range cycles {
		verdict := "rejected"
		if c.Accepted {
			verdict = "accepted"
		}
		syntax := "ok"
		if !c.SyntaxOK {
			syntax = "error"
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Attempt),
			verdict,
			syntax,
			fmt.Sprintf("%d/%d", c.Passed, c.Total),
			strconv.Itoa(len(c.ConsistencyIssues)),
			c.DocumentPath,
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("CYCLE", "VERDICT", "SYNTAX", "PASSED", "ISSUES", "DOCUMENT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusStyle(state.RunStatus(rows[row][1]))
			}
			return cellStyle
		})
}

func statusStyle(s state.RunStatus) lipgloss.Style {
	switch s {
	case state.RunAccepted:
		return acceptedStyle
	case state.RunRejected, state.RunFailed:
		return rejectedStyle
	default:
		return otherStyle
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
