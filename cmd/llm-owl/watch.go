package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/config"
	"github.com/LyzardKing/llm-owl/internal/runlog"
	"github.com/LyzardKing/llm-owl/internal/validation"
	"github.com/LyzardKing/llm-owl/internal/watch"
)

var watchOpts struct {
	loopFlags
	ttlFile  string
	debounce time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate an ontology whenever it or its questions change",
	Long: `Watch validates the document once, then again every time the document
or the competency questions file is saved. Stop it with Ctrl+C.`,
	Example: `  llm-owl watch --ttl-file ontology.ttl -q cqs.yaml`,
	Args:    cobra.NoArgs,
	RunE:    runWatch,
}

func init() {
	fs := watchCmd.Flags()
	fs.StringVarP(&watchOpts.ttlFile, "ttl-file", "i", "", "Document to validate")
	fs.DurationVar(&watchOpts.debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-validating")
	watchOpts.register(watchCmd, false)
	_ = watchCmd.MarkFlagRequired("ttl-file")
	_ = watchCmd.MarkFlagRequired("cqs-file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := &watchOpts.loopFlags
	flags.resolve(cmd, cfg)
	flags.maxAttempts = 0

	log, err := openRunLog(flags.logPath)
	if err != nil {
		return err
	}
	defer log.Close()

	w, err := watch.New([]string{watchOpts.ttlFile, flags.questionsPath}, watchOpts.debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	out := cmd.OutOrStdout()
	once := func() {
		fmt.Fprintln(out, color.New(color.Bold).Sprintf("── %s ──", time.Now().Format("15:04:05")))
		err := validateOnce(cmd.Context(), cfg, flags, log, out)
		switch {
		case err == nil:
		case errors.Is(err, validation.ErrRejected):
			printStatus(out, "✗", err.Error(), color.FgRed)
		default:
			printStatus(out, "✗", "Error: "+err.Error(), color.FgRed)
		}
	}

	once()
	printStatus(out, "•", "Watching for changes (Ctrl+C to stop)", color.FgHiBlack)
	err = w.Run(cmd.Context(), func(string) { once() })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// validateOnce reloads both files and runs a single cycle.
func validateOnce(ctx context.Context, cfg *config.Config, flags *loopFlags, log *runlog.Log, out io.Writer) error {
	doc, err := loadDocument(watchOpts.ttlFile, flags.format, cfg)
	if err != nil {
		return err
	}
	questions, err := loadQuestions(flags.questionsPath)
	if err != nil {
		return err
	}
	c := &correction{
		command:   "watch",
		cfg:       cfg,
		flags:     flags,
		log:       log,
		out:       out,
		questions: questions,
	}
	_, err = c.run(ctx, doc)
	return err
}
