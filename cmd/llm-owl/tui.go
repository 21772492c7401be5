package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/LyzardKing/llm-owl/internal/tui"
	"github.com/LyzardKing/llm-owl/internal/validation"
)

// runWithTUI runs the loop behind the terminal view. Quitting the view
// cancels the loop; the loop's own result is returned.
func runWithTUI(ctx context.Context, title string, c *correction, doc validation.Document) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, _ := tui.NewLoopProgram(title, c.flags.maxAttempts+1)
	logs := tui.NewLogWriter(p)
	c.out = logs
	c.observe = func(cy validation.Cycle) {
		p.Send(cycleMsg(cy, c.producer != nil && cy.Attempt < c.flags.maxAttempts))
	}

	result := make(chan error, 1)
	go func() {
		_, err := c.run(ctx, doc)
		logs.Flush()
		p.Send(tui.DoneMsg{Err: err})
		result <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return errors.Wrap(err, "run terminal UI")
	}
	cancel()
	return <-result
}

func cycleMsg(cy validation.Cycle, repairing bool) tui.CycleMsg {
	r := cy.Report
	msg := tui.CycleMsg{
		Attempt:   cy.Attempt,
		Document:  cy.Document.Path,
		SyntaxOK:  r.SyntaxOK,
		Passed:    r.Summary.Passed,
		Total:     r.Summary.Total,
		Accepted:  cy.Accepted,
		Issues:    r.ConsistencyIssues,
		Repairing: !cy.Accepted && repairing,
	}
	if !r.SyntaxOK {
		msg.Failures = append(msg.Failures, "syntax: "+r.SyntaxError)
	}
	for _, o := range r.Failures() {
		switch {
		case o.Error != "":
			msg.Failures = append(msg.Failures, fmt.Sprintf("%s: %s", o.ID, o.Error))
		case o.Actual == nil:
			msg.Failures = append(msg.Failures, fmt.Sprintf("%s: expected %s, got no result", o.ID, o.Expected))
		default:
			msg.Failures = append(msg.Failures, fmt.Sprintf("%s: expected %s, got %s", o.ID, o.Expected, o.Actual))
		}
	}
	return msg
}
