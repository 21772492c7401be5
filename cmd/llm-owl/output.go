package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/LyzardKing/llm-owl/internal/validation"
)

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// printCycle prints the one-line verdict of a cycle.
func printCycle(w io.Writer, c validation.Cycle) {
	label := "Initial document"
	if c.Attempt > 0 {
		label = fmt.Sprintf("Correction %d", c.Attempt)
	}
	if c.Document.Path != "" {
		label += " (" + c.Document.Path + ")"
	}

	r := c.Report
	var detail string
	switch {
	case !r.SyntaxOK:
		detail = "syntax error"
	default:
		detail = fmt.Sprintf("%d/%d questions passed", r.Summary.Passed, r.Summary.Total)
		if n := len(r.ConsistencyIssues); n > 0 {
			detail += fmt.Sprintf(", %d consistency issue(s)", n)
		}
	}

	if c.Accepted {
		printStatus(w, "✓", label+": "+detail, color.FgGreen)
	} else {
		printStatus(w, "✗", label+": "+detail, color.FgRed)
	}
}
