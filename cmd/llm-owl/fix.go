package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/config"
	"github.com/LyzardKing/llm-owl/internal/generate"
	"github.com/LyzardKing/llm-owl/internal/validation"
)

var fixOpts struct {
	loopFlags
	ttlFile string
	model   string
	dest    string
	tui     bool
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Validate an ontology and repair it with an LLM until accepted",
	Long: `Fix validates an existing document and, while it is rejected, sends it
to the LLM together with the failure report. Each repair is saved as
fixed_output.ttl (default: next to the input) and validated again, up to
--max-attempts corrections.`,
	Example: `  llm-owl fix --ttl-file draft.ttl -q cqs.yaml --max-attempts 5`,
	Args:    cobra.NoArgs,
	RunE:    runFix,
}

func init() {
	fs := fixCmd.Flags()
	fs.StringVarP(&fixOpts.ttlFile, "ttl-file", "i", "", "Document to repair")
	fs.StringVarP(&fixOpts.model, "model", "m", "", "Model (default llm.model)")
	fs.StringVar(&fixOpts.dest, "dest", "", "Where repairs are saved (default the input's directory)")
	fs.BoolVar(&fixOpts.tui, "tui", false, "Follow the loop in a terminal view")
	fixOpts.register(fixCmd, true)
	_ = fixCmd.MarkFlagRequired("ttl-file")
	_ = fixCmd.MarkFlagRequired("cqs-file")
}

func runFix(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := &fixOpts.loopFlags
	flags.resolve(cmd, cfg)

	doc, err := loadDocument(fixOpts.ttlFile, flags.format, cfg)
	if err != nil {
		return err
	}
	questions, err := loadQuestions(flags.questionsPath)
	if err != nil {
		return err
	}
	llm, err := newCompleter(cfg, fixOpts.model)
	if err != nil {
		return err
	}
	log, err := openRunLog(flags.logPath)
	if err != nil {
		return err
	}
	defer log.Close()

	dest := fixOpts.dest
	if dest == "" {
		dest = filepath.Dir(fixOpts.ttlFile)
	}
	gen := generate.New(llm, generate.Options{
		Dest:          dest,
		BaseNamespace: cfg.Generate.BaseNamespace,
		Timeout:       cfg.LLM.Timeout,
	}, log)

	out := cmd.OutOrStdout()
	c := &correction{
		command:   "fix",
		cfg:       cfg,
		flags:     flags,
		log:       log,
		producer:  validation.NewFixerAdapter(gen),
		out:       out,
		questions: questions,
	}
	if fixOpts.tui {
		err = runWithTUI(cmd.Context(), "fix "+filepath.Base(fixOpts.ttlFile), c, doc)
	} else {
		_, err = c.run(cmd.Context(), doc)
	}
	if llm.Tracker().Calls() > 0 {
		in, outTok := llm.Tracker().Total()
		printStatus(out, "•", fmt.Sprintf("%d repair(s) by %s, %d input / %d output tokens",
			llm.Tracker().Calls(), llm.Name(), in, outTok), color.FgHiBlack)
	}
	return err
}
