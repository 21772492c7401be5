package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/competency"
	"github.com/LyzardKing/llm-owl/internal/config"
	"github.com/LyzardKing/llm-owl/internal/ontology"
	"github.com/LyzardKing/llm-owl/internal/report"
	"github.com/LyzardKing/llm-owl/internal/runlog"
	"github.com/LyzardKing/llm-owl/internal/state"
	"github.com/LyzardKing/llm-owl/internal/validation"
)

// loopFlags are the flags shared by every command that validates.
type loopFlags struct {
	questionsPath string
	format        string
	reportPath    string
	logPath       string
	outDir        string
	maxAttempts   int
	strict        bool
	noHistory     bool
}

func (f *loopFlags) register(cmd *cobra.Command, withAttempts bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.questionsPath, "cqs-file", "q", "", "Competency questions file (YAML or JSON)")
	fs.StringVar(&f.format, "format", "", "Document format: turtle, ntriples, rdfxml (default from extension)")
	fs.StringVar(&f.reportPath, "report", "", "Where to write the JSON report (default validation.report_file)")
	fs.StringVar(&f.logPath, "log", "", "Structured run log, JSON lines (default validation.log_file)")
	fs.StringVar(&f.outDir, "out", "", "Directory for the final report and one report per cycle")
	fs.BoolVar(&f.strict, "strict", false, "Reject documents with consistency issues")
	fs.BoolVar(&f.noHistory, "no-history", false, "Do not record the run in the history database")
	if withAttempts {
		fs.IntVar(&f.maxAttempts, "max-attempts", -1, "Corrections after the first cycle (default validation.max_attempts)")
	}
}

// resolve fills unset flags from cfg. Flags always win.
func (f *loopFlags) resolve(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("strict") {
		f.strict = cfg.Validation.StrictConsistency
	}
	if f.maxAttempts < 0 {
		f.maxAttempts = cfg.Validation.MaxAttempts
	}
	if f.logPath == "" {
		f.logPath = cfg.Validation.LogFile
	}
	if f.reportPath == "" {
		f.reportPath = cfg.Validation.ReportFile
		if f.outDir != "" {
			f.reportPath = filepath.Join(f.outDir, report.DefaultFileName)
		}
	}
	if f.noHistory {
		cfg.History.Enabled = false
	}
}

// loadDocument reads a document; an empty format is taken from the file
// extension, then from config.
func loadDocument(path, format string, cfg *config.Config) (validation.Document, error) {
	if path == "" {
		return validation.Document{}, errors.WithHint(errors.New("no document given"), "pass --ttl-file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return validation.Document{}, errors.Wrap(err, "read document")
	}
	if format == "" {
		format = cfg.Validation.Format
		if ext := filepath.Ext(path); ext != "" {
			if _, err := ontology.ParseFormat(ext); err == nil {
				format = ext
			}
		}
	}
	f, err := ontology.ParseFormat(format)
	if err != nil {
		return validation.Document{}, err
	}
	return validation.Document{Text: string(data), Format: f, Path: path}, nil
}

func loadQuestions(path string) ([]competency.Question, error) {
	if path == "" {
		return nil, errors.WithHint(errors.New("no competency questions given"), "pass --cqs-file")
	}
	return competency.LoadFile(path)
}

func openRunLog(path string) (*runlog.Log, error) {
	if path == "" || path == "-" {
		return runlog.Nop(), nil
	}
	return runlog.Open(path)
}

// historyPath is the configured history database, else the project one,
// else the per-user one when the working directory is gone.
func historyPath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return state.GlobalDBPath()
	}
	return state.ProjectDBPath(cwd)
}

// openHistory opens the run history, or returns nil when it is disabled
// or unusable. History is never fatal.
func openHistory(w io.Writer, cfg *config.Config) state.HistoryStore {
	if !cfg.History.Enabled {
		return nil
	}
	db, err := state.OpenMigrated(historyPath(cfg))
	if err != nil {
		printStatus(w, "⚠", fmt.Sprintf("run history disabled: %v", err), color.FgYellow)
		return nil
	}
	if n, err := state.NewRecoveryManager(db).Clean(); err == nil && n > 0 {
		printStatus(w, "⚠", fmt.Sprintf("marked %d interrupted run(s)", n), color.FgYellow)
	}
	if cfg.History.Retention > 0 {
		_, _ = db.PurgeOldRuns(cfg.History.Retention)
	}
	return db
}

// correction is one run of the correction loop as the CLI drives it.
type correction struct {
	command   string
	cfg       *config.Config
	flags     *loopFlags
	log       *runlog.Log
	producer  validation.Producer
	out       io.Writer
	questions []competency.Question
	// observe, when set, sees every cycle after it is printed.
	observe func(validation.Cycle)
}

// run validates doc, corrects it while allowed, publishes the final report
// and records everything in the run history. The returned error is nil
// only for an accepted document.
func (c *correction) run(ctx context.Context, doc validation.Document) (*validation.Outcome, error) {
	validator := validation.NewValidator(c.log, validation.Options{
		StrictConsistency: c.flags.strict,
		QueryTimeout:      c.cfg.Validation.QueryTimeout,
	})
	ctrl := validation.NewController(validator, c.producer, validation.RetryConfig{
		MaxAttempts:          c.flags.maxAttempts,
		InjectFailureContext: c.cfg.Validation.InjectFailureContext,
	}, c.log)

	runID := uuid.NewString()
	history := openHistory(c.out, c.cfg)
	if history != nil {
		defer history.Close()
		err := history.CreateRun(&state.Run{
			ID:            runID,
			Command:       c.command,
			DocumentPath:  doc.Path,
			QuestionsPath: c.flags.questionsPath,
			MaxAttempts:   c.flags.maxAttempts,
			PID:           os.Getpid(),
		})
		if err != nil {
			printStatus(c.out, "⚠", fmt.Sprintf("run not recorded: %v", err), color.FgYellow)
			history = nil
		}
	}

	ctrl.OnCycle = func(runID string, cy validation.Cycle) {
		printCycle(c.out, cy)
		if c.observe != nil {
			c.observe(cy)
		}
		if c.flags.outDir != "" {
			if err := report.WriteFile(report.AttemptPath(c.flags.outDir, cy.Attempt), cy.Report); err != nil {
				printStatus(c.out, "⚠", err.Error(), color.FgYellow)
			}
		}
		if history != nil {
			if err := history.RecordCycle(cycleRecord(runID, cy)); err != nil {
				printStatus(c.out, "⚠", err.Error(), color.FgYellow)
			}
		}
	}

	outcome, loopErr := ctrl.RunWithID(ctx, runID, doc, c.questions)

	if r := outcome.Report(); r != nil {
		text, err := report.Publish(c.log, c.flags.reportPath, r)
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, text)
		if err != nil {
			printStatus(c.out, "⚠", err.Error(), color.FgYellow)
		} else if c.flags.reportPath != "" {
			printStatus(c.out, "✓", "Report written to "+c.flags.reportPath, color.FgGreen)
		}
	}

	if history != nil {
		status, msg := runStatus(outcome, loopErr)
		if err := history.FinishRun(runID, status, len(outcome.Cycles), msg); err != nil {
			printStatus(c.out, "⚠", err.Error(), color.FgYellow)
		}
	}

	if loopErr != nil {
		return outcome, loopErr
	}
	if outcome.Accepted {
		printStatus(c.out, "✓", outcome.Describe(), color.FgGreen)
	}
	return outcome, outcome.Err()
}

func runStatus(o *validation.Outcome, loopErr error) (state.RunStatus, string) {
	switch {
	case loopErr != nil && errors.Is(loopErr, context.Canceled):
		return state.RunInterrupted, loopErr.Error()
	case loopErr != nil:
		return state.RunFailed, loopErr.Error()
	case o.Accepted:
		return state.RunAccepted, ""
	default:
		return state.RunRejected, o.Describe()
	}
}

func cycleRecord(runID string, cy validation.Cycle) *state.CycleRecord {
	data, _ := report.Marshal(cy.Report)
	return &state.CycleRecord{
		RunID:             runID,
		Attempt:           cy.Attempt,
		DocumentPath:      cy.Document.Path,
		Document:          cy.Document.Text,
		SyntaxOK:          cy.Report.SyntaxOK,
		Passed:            cy.Report.Summary.Passed,
		Total:             cy.Report.Summary.Total,
		Accepted:          cy.Accepted,
		ConsistencyIssues: cy.Report.ConsistencyIssues,
		Report:            string(data),
		Duration:          cy.Duration,
	}
}
