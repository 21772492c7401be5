package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/config"
	"github.com/LyzardKing/llm-owl/internal/generate"
	"github.com/LyzardKing/llm-owl/internal/ontology"
	"github.com/LyzardKing/llm-owl/internal/validation"
)

var generateOpts struct {
	loopFlags
	file      string
	text      string
	system    string
	model     string
	name      string
	dest      string
	recursive bool
	tui       bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft an ontology from text with an LLM",
	Long: `Generate sends source text to an LLM and saves its answer as
<name>.md and the extracted Turtle as <name>.ttl in a fresh output
directory. Every prompt is appended to LLM_prompt.md there.

With --cqs-file the draft is validated. With --recursive a rejected draft
is sent back with the failure and re-validated, up to --max-attempts
times; each repair is saved as fixed_output.md and fixed_output.ttl.`,
	Example: `  llm-owl generate -f rules.txt -q cqs.yaml --recursive
  llm-owl generate -t "Cyclists must not ride on motorways." -m gpt-4o`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	fs := generateCmd.Flags()
	fs.StringVarP(&generateOpts.file, "file", "f", "", "Read source text from a file")
	fs.StringVarP(&generateOpts.text, "text", "t", "", "Source text")
	fs.StringVarP(&generateOpts.system, "system", "s", "", "System prompt file (default generate.system_prompt)")
	fs.StringVarP(&generateOpts.model, "model", "m", "", "Model (default llm.model)")
	fs.StringVarP(&generateOpts.name, "name", "n", "", "File stem of the draft (default generate.name)")
	fs.StringVar(&generateOpts.dest, "dest", "", "Output directory (default <dest_root>/dest_<model>_<name>)")
	fs.BoolVarP(&generateOpts.recursive, "recursive", "r", false, "Repair a rejected draft with the LLM")
	fs.BoolVar(&generateOpts.tui, "tui", false, "Follow the correction loop in a terminal view")
	generateOpts.register(generateCmd, true)
	generateCmd.MarkFlagsMutuallyExclusive("file", "text")
	generateCmd.MarkFlagsOneRequired("file", "text")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts := &generateOpts
	flags := &opts.loopFlags
	if opts.recursive && flags.questionsPath == "" {
		return errors.WithHint(errors.New("--recursive needs competency questions"), "pass --cqs-file")
	}

	text := opts.text
	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return errors.Wrap(err, "read source text")
		}
		text = string(data)
	}
	systemPath := opts.system
	if systemPath == "" {
		systemPath = cfg.Generate.SystemPrompt
	}
	system, err := generate.LoadSystemPrompt(systemPath)
	if err != nil {
		return err
	}
	name := opts.name
	if name == "" {
		name = cfg.Generate.Name
	}

	llm, err := newCompleter(cfg, opts.model)
	if err != nil {
		return err
	}
	dest := opts.dest
	if dest == "" {
		dest = generate.UniqueDest(cfg.Generate.DestRoot, modelName(llm), name)
	}
	if flags.outDir == "" {
		flags.outDir = dest
	}
	flags.resolve(cmd, cfg)

	log, err := openRunLog(flags.logPath)
	if err != nil {
		return err
	}
	defer log.Close()

	out := cmd.OutOrStdout()
	gen := generate.New(llm, generate.Options{
		Dest:          dest,
		BaseNamespace: cfg.Generate.BaseNamespace,
		Name:          name,
		Timeout:       cfg.LLM.Timeout,
	}, log)

	printStatus(out, "→", fmt.Sprintf("Drafting with %s into %s", llm.Name(), dest), color.FgCyan)
	draft, err := gen.Draft(cmd.Context(), system, text)
	if err != nil {
		return err
	}
	if draft.Empty {
		printStatus(out, "⚠", "The answer held no Turtle block", color.FgYellow)
	}
	printStatus(out, "✓", "Draft saved to "+draft.TurtlePath, color.FgGreen)

	if flags.questionsPath == "" {
		return nil
	}
	questions, err := loadQuestions(flags.questionsPath)
	if err != nil {
		return err
	}

	c := &correction{
		command:   "generate",
		cfg:       cfg,
		flags:     flags,
		log:       log,
		out:       out,
		questions: questions,
	}
	if opts.recursive {
		c.producer = validation.NewFixerAdapter(gen)
	} else {
		flags.maxAttempts = 0
	}

	doc := validation.Document{Text: draft.Turtle, Format: ontology.FormatTurtle, Path: draft.TurtlePath}
	if opts.tui {
		err = runWithTUI(cmd.Context(), "generate "+name, c, doc)
	} else {
		_, err = c.run(cmd.Context(), doc)
	}
	in, outTok := llm.Tracker().Total()
	printStatus(out, "•", fmt.Sprintf("%d LLM call(s), %d input / %d output tokens", llm.Tracker().Calls(), in, outTok), color.FgHiBlack)
	return err
}
