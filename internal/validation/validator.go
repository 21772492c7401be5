package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LyzardKing/llm-owl/internal/competency"
	"github.com/LyzardKing/llm-owl/internal/ontology"
	"github.com/LyzardKing/llm-owl/internal/reasoner"
	"github.com/LyzardKing/llm-owl/internal/report"
	"github.com/LyzardKing/llm-owl/internal/runlog"
)

// Document is a candidate ontology. It is never modified; a correction
// produces a new Document.
type Document struct {
	// Text is the serialized graph.
	Text string
	// Format is the serialization of Text. Empty means Turtle.
	Format ontology.Format
	// Path is where the text came from or was saved, if anywhere.
	Path string
}

// Validator runs the validation stages for one document:
//  1. Syntax
//  2. Consistency
//  3. Competency questions
//
// and assembles the cycle report.
type Validator struct {
	log       *runlog.Log
	evaluator *competency.Evaluator
	// strict makes consistency issues block acceptance.
	strict bool
}

// Options tunes a Validator.
type Options struct {
	// StrictConsistency rejects documents with consistency issues. By
	// default they are reported but do not affect acceptance.
	StrictConsistency bool
	// QueryTimeout bounds each competency query. Zero means no limit.
	QueryTimeout time.Duration
}

// NewValidator creates a validator reporting to log, which may be nil.
func NewValidator(log *runlog.Log, opts Options) *Validator {
	ev := competency.NewEvaluator(log)
	ev.QueryTimeout = opts.QueryTimeout
	return &Validator{
		log:       log,
		evaluator: ev,
		strict:    opts.StrictConsistency,
	}
}

// ValidationInput is everything one cycle needs.
type ValidationInput struct {
	Document  Document
	Questions []competency.Question
}

// ValidationResult is the outcome of one cycle.
type ValidationResult struct {
	// AllPassed is the acceptance decision for the document.
	AllPassed bool
	// Report is the structured cycle report. It is always set.
	Report *report.Report
	// Stages holds the result of each stage that ran.
	Stages ValidationStages
	// Summary provides a human-readable summary.
	Summary string
	// FailureReason explains why validation failed (if it did).
	FailureReason string
	// Duration is the time taken by the whole cycle.
	Duration time.Duration
}

// ValidationStages contains the results of each stage.
type ValidationStages struct {
	Syntax      *StageResult
	Consistency *StageResult
	Questions   *StageResult
}

// StageResult contains the result from a single stage.
type StageResult struct {
	// Name is the stage name (e.g., "Syntax").
	Name string
	// Passed indicates if this stage passed.
	Passed bool
	// Output contains detailed output from this stage.
	Output string
	// Duration is the time taken for this stage.
	Duration time.Duration
}

// Validate runs the stages in sequence. A syntax failure ends the cycle
// early; consistency issues are recorded and evaluation continues.
//
// Cancelling ctx does not interrupt a cycle in progress.
func (v *Validator) Validate(ctx context.Context, input ValidationInput) *ValidationResult {
	ctx = context.WithoutCancel(ctx)
	startTime := time.Now()
	result := &ValidationResult{}

	// Stage 1: Syntax
	g, syntax, syntaxErr := v.runSyntax(input.Document)
	result.Stages.Syntax = syntax
	if syntaxErr != nil {
		result.Report = report.Build(syntaxErr, nil, nil)
		result.FailureReason = "Syntax check failed"
		result.Duration = time.Since(startTime)
		result.Summary = v.buildSummary(result)
		return result
	}

	// Stage 2: Consistency
	consistency, issues := v.runConsistency(g)
	result.Stages.Consistency = consistency

	// Stage 3: Competency questions
	questions, eval := v.runQuestions(ctx, g, input.Questions)
	result.Stages.Questions = questions

	result.Report = report.Build(nil, issues, &eval)
	result.AllPassed = result.Report.AllPassed()
	switch {
	case !questions.Passed:
		result.FailureReason = "Competency questions failed"
	case v.strict && !consistency.Passed:
		result.AllPassed = false
		result.FailureReason = "Consistency check failed"
	}

	result.Duration = time.Since(startTime)
	result.Summary = v.buildSummary(result)
	return result
}

func (v *Validator) runSyntax(doc Document) (*ontology.Graph, *StageResult, error) {
	startTime := time.Now()
	stage := &StageResult{Name: "Syntax"}

	g, err := ontology.Parse(doc.Text, doc.Format)
	stage.Duration = time.Since(startTime)
	if err != nil {
		v.log.Fail(runlog.StageTTLInvalid, err, zap.String(runlog.FieldPath, doc.Path))
		stage.Output = err.Error()
		return nil, stage, err
	}

	v.log.Emit(runlog.StageTTLValid,
		zap.String(runlog.FieldPath, doc.Path),
		zap.Int("triples", g.Len()),
	)
	stage.Passed = true
	stage.Output = fmt.Sprintf("%d triples", g.Len())
	return g, stage, nil
}

func (v *Validator) runConsistency(g *ontology.Graph) (*StageResult, []string) {
	startTime := time.Now()
	stage := &StageResult{Name: "Consistency"}

	res := reasoner.Reason(g)
	issues := res.Issues()
	switch {
	case !res.Consistent:
		v.log.Fail(runlog.StageConsistencyError, nil, zap.String("clash", res.Clash))
	case len(issues) > 0:
		names := make([]string, len(res.UnsatisfiableClasses))
		for i, iri := range res.UnsatisfiableClasses {
			names[i] = ontology.LocalName(iri)
		}
		v.log.Emit(runlog.StageConsistencyIssues, zap.String("inconsistent_classes", strings.Join(names, ", ")))
	default:
		v.log.Emit(runlog.StageConsistencyOK)
	}

	stage.Passed = len(issues) == 0
	stage.Output = strings.Join(issues, "\n")
	stage.Duration = time.Since(startTime)
	return stage, issues
}

func (v *Validator) runQuestions(ctx context.Context, g *ontology.Graph, qs []competency.Question) (*StageResult, competency.Result) {
	startTime := time.Now()
	eval := v.evaluator.Evaluate(ctx, g, qs)
	return &StageResult{
		Name:     "Competency Questions",
		Passed:   eval.AllPassed(),
		Output:   fmt.Sprintf("%d/%d passed", eval.Passed, eval.Total()),
		Duration: time.Since(startTime),
	}, eval
}

// buildSummary creates a human-readable summary of the stage results.
func (v *Validator) buildSummary(result *ValidationResult) string {
	var sb strings.Builder

	sb.WriteString("Validation Results:\n")

	stages := []*StageResult{
		result.Stages.Syntax,
		result.Stages.Consistency,
		result.Stages.Questions,
	}

	for i, stage := range stages {
		if stage == nil {
			continue
		}
		status := "✗ FAIL"
		if stage.Passed {
			status = "✓ PASS"
		}
		sb.WriteString(fmt.Sprintf("\nStage %d (%s): %s [%v]\n", i+1, stage.Name, status, stage.Duration.Round(time.Microsecond)))
		if !stage.Passed && stage.Output != "" {
			output := stage.Output
			if len(output) > 200 {
				output = output[:200] + "..."
			}
			sb.WriteString(fmt.Sprintf("  Details: %s\n", output))
		}
	}

	if result.AllPassed {
		sb.WriteString("\n✓ Document accepted\n")
	} else {
		sb.WriteString(fmt.Sprintf("\n✗ Validation failed: %s\n", result.FailureReason))
	}

	return sb.String()
}
