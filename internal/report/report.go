// Package report assembles the per-cycle validation report, renders it for
// humans and persists it.
package report

import (
	"fmt"
	"strings"

	"github.com/LyzardKing/llm-owl/internal/competency"
)

// DefaultFileName is the report file written into an output directory.
const DefaultFileName = "validation_report.json"

// Outcome is the result of one competency question.
type Outcome = competency.Outcome

// Summary counts questions. Passed never exceeds Total.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

// Report is the outcome of one validation cycle.
type Report struct {
	Summary           Summary   `json:"summary"`
	Results           []Outcome `json:"results"`
	SyntaxOK          bool      `json:"syntax_ok"`
	SyntaxError       string    `json:"syntax_error,omitempty"`
	ConsistencyIssues []string  `json:"consistency_issues"`
}

// Build assembles a report. A non-nil syntaxErr means the document did not
// parse; evaluation results are ignored in that case and the summary is
// {0, 0}. A nil eval means evaluation did not run.
func Build(syntaxErr error, issues []string, eval *competency.Result) *Report {
	r := &Report{
		Results:           []Outcome{},
		SyntaxOK:          syntaxErr == nil,
		ConsistencyIssues: []string{},
	}
	if syntaxErr != nil {
		r.SyntaxError = syntaxErr.Error()
		return r
	}
	r.ConsistencyIssues = append(r.ConsistencyIssues, issues...)
	if eval != nil {
		r.Results = append(r.Results, eval.Outcomes...)
		for _, o := range r.Results {
			if o.Passed {
				r.Summary.Passed++
			}
		}
		r.Summary.Total = len(r.Results)
	}
	return r
}

// AllPassed reports whether the document parsed and every question passed.
// Consistency issues do not affect it.
func (r *Report) AllPassed() bool {
	return r.SyntaxOK && r.Summary.Passed == r.Summary.Total
}

// Failures returns the outcomes that did not pass, in order.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Results {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Render formats the report for a terminal or a prompt. For each failing
// question it shows the error when there is one, otherwise expected and
// actual values.
func Render(r *Report) string {
	var sb strings.Builder

	sb.WriteString("Competency Questions Validation Report:\n")
	fmt.Fprintf(&sb, "  Passed %d out of %d questions.\n", r.Summary.Passed, r.Summary.Total)

	if !r.SyntaxOK {
		fmt.Fprintf(&sb, "  Syntax error: %s\n", r.SyntaxError)
	}
	if len(r.ConsistencyIssues) > 0 {
		sb.WriteString("  Consistency issues:\n")
		for _, issue := range r.ConsistencyIssues {
			fmt.Fprintf(&sb, "    %s\n", issue)
		}
	}

	for _, o := range r.Failures() {
		fmt.Fprintf(&sb, "- Question ID: %s\n", o.ID)
		if o.Question != "" {
			fmt.Fprintf(&sb, "  Question: %s\n", o.Question)
		}
		if o.Error != "" {
			fmt.Fprintf(&sb, "  Error: %s\n", o.Error)
			continue
		}
		fmt.Fprintf(&sb, "  Expected: %s\n", o.Expected)
		fmt.Fprintf(&sb, "  Actual: %s\n", o.Actual)
	}

	return strings.TrimRight(sb.String(), "\n")
}
