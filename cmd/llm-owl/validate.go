package main

import (
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/config"
)

var validateOpts struct {
	loopFlags
	ttlFile string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an ontology against competency questions",
	Long: `Validate runs one cycle of the pipeline on a document: syntax,
consistency, then every competency question. The report is printed and
written as JSON.

Exit status is 0 when the document is accepted, 1 when it is rejected
and 2 on any other error.`,
	Example: `  llm-owl validate --ttl-file ontology.ttl --cqs-file cqs.yaml
  llm-owl validate --ttl-file onto.owl --format rdfxml -q cqs.json --report out.json`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateOpts.ttlFile, "ttl-file", "i", "", "Document to validate")
	validateOpts.register(validateCmd, false)
	_ = validateCmd.MarkFlagRequired("ttl-file")
	_ = validateCmd.MarkFlagRequired("cqs-file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := &validateOpts.loopFlags
	flags.resolve(cmd, cfg)
	flags.maxAttempts = 0

	doc, err := loadDocument(validateOpts.ttlFile, flags.format, cfg)
	if err != nil {
		return err
	}
	questions, err := loadQuestions(flags.questionsPath)
	if err != nil {
		return err
	}
	log, err := openRunLog(flags.logPath)
	if err != nil {
		return err
	}
	defer log.Close()

	c := &correction{
		command:   "validate",
		cfg:       cfg,
		flags:     flags,
		log:       log,
		out:       cmd.OutOrStdout(),
		questions: questions,
	}
	_, err = c.run(cmd.Context(), doc)
	return err
}
