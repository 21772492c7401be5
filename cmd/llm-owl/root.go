package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/validation"
)

// Exit codes. Only an accepted document exits 0.
const (
	exitRejected = 1
	exitError    = 2
)

var rootCmd = &cobra.Command{
	Use:   "llm-owl",
	Short: "Validate and repair LLM-generated OWL ontologies",
	Long: `llm-owl checks a knowledge-graph document in three stages:

  1. Syntax        the document must parse (Turtle, N-Triples or RDF/XML)
  2. Consistency   no individual may belong to disjoint classes
  3. Questions     SPARQL competency questions must return the expected answers

A rejected document can be handed back to an LLM together with the report,
and re-validated, a bounded number of times.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err with any hints and returns the exit code.
func reportError(w io.Writer, err error) int {
	if errors.Is(err, validation.ErrRejected) {
		fmt.Fprintf(w, "%s %v\n", color.RedString("✗"), err)
		return exitRejected
	}
	fmt.Fprintf(w, "%s %v\n", color.RedString("Error:"), err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("hint:"), hint)
	}
	return exitError
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
