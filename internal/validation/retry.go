package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LyzardKing/llm-owl/internal/competency"
	"github.com/LyzardKing/llm-owl/internal/report"
	"github.com/LyzardKing/llm-owl/internal/runlog"
)

var (
	// ErrProducerFailure marks a failed correction request. The loop stops.
	ErrProducerFailure = errors.New("producer failure")
	// ErrRejected marks a run that ended without an accepted document.
	ErrRejected = errors.New("document rejected")
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of corrections requested after the
	// first cycle (default: 3). Zero disables correction.
	MaxAttempts int
	// InjectFailureContext adds stage hints to the failure description.
	InjectFailureContext bool
}

// DefaultRetryConfig returns sensible defaults for retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:          3,
		InjectFailureContext: true,
	}
}

// RetryHandler decides whether to retry and describes failures.
type RetryHandler struct {
	config RetryConfig
}

// NewRetryHandler creates a new retry handler.
func NewRetryHandler(config RetryConfig) *RetryHandler {
	if config.MaxAttempts < 0 {
		config.MaxAttempts = 0
	}
	return &RetryHandler{
		config: config,
	}
}

// RetryContext contains information for a correction request.
type RetryContext struct {
	// Attempt is the number of the correction being requested (1-indexed).
	Attempt int
	// ValidationFeedback describes the last cycle's failure for the producer.
	ValidationFeedback string
}

// ShouldRetry reports whether a correction may follow the given number of
// corrections already made.
func (h *RetryHandler) ShouldRetry(corrections int) bool {
	return corrections < h.config.MaxAttempts
}

// BuildRetryContext creates the context for the next correction.
func (h *RetryHandler) BuildRetryContext(corrections int, lastValidation *ValidationResult) *RetryContext {
	return &RetryContext{
		Attempt:            corrections + 1,
		ValidationFeedback: h.buildValidationFeedback(lastValidation),
	}
}

// buildValidationFeedback renders the failed cycle for the producer: the
// syntax error verbatim, or the consistency issues and the question report.
func (h *RetryHandler) buildValidationFeedback(result *ValidationResult) string {
	if result == nil || result.Report == nil {
		return ""
	}
	r := result.Report

	var sb strings.Builder
	if !r.SyntaxOK {
		sb.WriteString(r.SyntaxError)
	} else {
		for _, issue := range r.ConsistencyIssues {
			sb.WriteString(issue)
			sb.WriteString("\n")
		}
		sb.WriteString(report.Render(r))
	}

	if h.config.InjectFailureContext {
		switch {
		case !r.SyntaxOK:
			sb.WriteString("\n\nFocus on: the document does not parse. Fix the Turtle syntax first.")
		case result.Stages.Questions != nil && !result.Stages.Questions.Passed:
			sb.WriteString("\n\nFocus on: the competency questions above. Add the missing classes, properties and individuals.")
		case len(r.ConsistencyIssues) > 0:
			sb.WriteString("\n\nFocus on: the logical contradictions listed above.")
		}
	}
	return sb.String()
}

// Producer creates a corrected document from a rejected one.
type Producer interface {
	Produce(ctx context.Context, previous Document, failure string) (Document, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, previous Document, failure string) (Document, error)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context, previous Document, failure string) (Document, error) {
	return f(ctx, previous, failure)
}

// Cycle is one pass of validation over one document.
type Cycle struct {
	// Attempt is 0 for the initial document and n for the n-th correction.
	Attempt  int
	Document Document
	Report   *report.Report
	Accepted bool
	Summary  string
	Duration time.Duration
}

// Outcome is the full history of a controller run.
type Outcome struct {
	RunID  string
	Cycles []Cycle
	// Accepted is set when the last cycle accepted its document.
	Accepted bool
	// Exhausted is set when the run stopped because no further correction
	// was allowed.
	Exhausted bool
}

// Final returns the last cycle, or nil before any cycle ran.
func (o *Outcome) Final() *Cycle {
	if len(o.Cycles) == 0 {
		return nil
	}
	return &o.Cycles[len(o.Cycles)-1]
}

// Report returns the report of the last cycle.
func (o *Outcome) Report() *report.Report {
	if c := o.Final(); c != nil {
		return c.Report
	}
	return nil
}

// Err is nil for an accepted run and an ErrRejected-marked error otherwise.
func (o *Outcome) Err() error {
	if o.Accepted {
		return nil
	}
	return errors.Mark(errors.Newf("document rejected after %d cycle(s)", len(o.Cycles)), ErrRejected)
}

// ValidatorInterface runs one cycle.
type ValidatorInterface interface {
	Validate(ctx context.Context, input ValidationInput) *ValidationResult
}

// Controller drives validate/correct cycles until a document is accepted
// or the retry budget is spent.
type Controller struct {
	validator    ValidatorInterface
	producer     Producer
	retryHandler *RetryHandler
	log          *runlog.Log

	// OnCycle, when set, is called after every cycle with the run ID.
	OnCycle func(runID string, c Cycle)
}

// NewController creates a controller. A nil producer disables correction.
func NewController(validator ValidatorInterface, producer Producer, config RetryConfig, log *runlog.Log) *Controller {
	return &Controller{
		validator:    validator,
		producer:     producer,
		retryHandler: NewRetryHandler(config),
		log:          log,
	}
}

// Run validates doc and, while it is rejected and the budget allows, asks
// the producer for a corrected document. Every cycle is recorded in the
// returned Outcome, which is non-nil even when an error is returned.
//
// The context is checked between cycles and handed to the producer; a
// cycle that has started always completes.
func (c *Controller) Run(ctx context.Context, doc Document, questions []competency.Question) (*Outcome, error) {
	return c.RunWithID(ctx, uuid.NewString(), doc, questions)
}

// RunWithID is Run with a caller-chosen run ID.
func (c *Controller) RunWithID(ctx context.Context, runID string, doc Document, questions []competency.Question) (*Outcome, error) {
	log := c.log.With(zap.String(runlog.FieldRunID, runID))
	out := &Outcome{RunID: runID}

	for corrections := 0; ; corrections++ {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrapf(err, "correction loop interrupted before cycle %d", corrections)
		}

		log.Emit(runlog.StageCycleStart, zap.Int(runlog.FieldAttempt, corrections))
		result := c.validator.Validate(ctx, ValidationInput{Document: doc, Questions: questions})

		cycle := Cycle{
			Attempt:  corrections,
			Document: doc,
			Report:   result.Report,
			Accepted: result.AllPassed,
			Summary:  result.Summary,
			Duration: result.Duration,
		}
		out.Cycles = append(out.Cycles, cycle)
		log.Emit(runlog.StageCycleEnd,
			zap.Int(runlog.FieldAttempt, corrections),
			zap.Bool("accepted", cycle.Accepted),
			zap.Int("passed", result.Report.Summary.Passed),
			zap.Int("total", result.Report.Summary.Total),
		)
		if c.OnCycle != nil {
			c.OnCycle(runID, cycle)
		}

		if cycle.Accepted {
			out.Accepted = true
			return out, nil
		}

		if c.producer == nil || !c.retryHandler.ShouldRetry(corrections) {
			out.Exhausted = c.producer != nil
			return out, nil
		}

		retryCtx := c.retryHandler.BuildRetryContext(corrections, result)
		log.Emit(runlog.StageProducerCall, zap.Int(runlog.FieldAttempt, retryCtx.Attempt))

		next, err := c.producer.Produce(ctx, doc, retryCtx.ValidationFeedback)
		if err != nil {
			log.Fail(runlog.StageProducerError, err, zap.Int(runlog.FieldAttempt, retryCtx.Attempt))
			return out, errors.Mark(
				errors.Wrapf(err, "correction %d", retryCtx.Attempt),
				ErrProducerFailure)
		}
		doc = next
	}
}

// Describe summarises an outcome in one line.
func (o *Outcome) Describe() string {
	final := o.Final()
	if final == nil {
		return "no cycles ran"
	}
	status := "rejected"
	if o.Accepted {
		status = "accepted"
	}
	return fmt.Sprintf("%s after %d cycle(s): %d/%d questions passed",
		status, len(o.Cycles), final.Report.Summary.Passed, final.Report.Summary.Total)
}
