package competency

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LyzardKing/llm-owl/internal/ontology"
	"github.com/LyzardKing/llm-owl/internal/runlog"
	"github.com/LyzardKing/llm-owl/internal/sparql"
)

// RowSeparator joins the values of one result row.
const RowSeparator = "|"

// Shape tells which field of an Actual is set.
type Shape int

const (
	ShapeBoolean Shape = iota
	ShapeRows
)

// Actual is what a query returned.
type Actual struct {
	Shape   Shape
	Boolean bool
	// Rows are canonical rows in result order, duplicates kept.
	Rows []string
}

// BooleanResult wraps the answer of an ASK query.
func BooleanResult(b bool) *Actual {
	return &Actual{Shape: ShapeBoolean, Boolean: b}
}

// RowsResult wraps canonical SELECT rows.
func RowsResult(rows []string) *Actual {
	if rows == nil {
		rows = []string{}
	}
	return &Actual{Shape: ShapeRows, Rows: rows}
}

func (a *Actual) String() string {
	if a == nil {
		return "none"
	}
	if a.Shape == ShapeBoolean {
		return fmt.Sprint(a.Boolean)
	}
	return listString(a.Rows)
}

// MarshalJSON writes a boolean or a list of strings.
func (a *Actual) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	if a.Shape == ShapeBoolean {
		return json.Marshal(a.Boolean)
	}
	rows := a.Rows
	if rows == nil {
		rows = []string{}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON accepts the output of MarshalJSON.
func (a *Actual) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = *BooleanResult(b)
		return nil
	}
	var rows []string
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	*a = *RowsResult(rows)
	return nil
}

// Canonicalize renders one solution as the values of vars joined by
// RowSeparator. Unbound variables contribute an empty string.
func Canonicalize(vars []string, b sparql.Binding) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		if t, ok := b[v]; ok {
			parts[i] = t.String()
		}
	}
	return strings.Join(parts, RowSeparator)
}

// CanonicalizeBound is Canonicalize without the unbound variables, so
// "a|" becomes "a".
func CanonicalizeBound(vars []string, b sparql.Binding) string {
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		if t, ok := b[v]; ok {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, RowSeparator)
}

// Outcome is the result of one question in one cycle.
type Outcome struct {
	ID       string      `json:"id"`
	Query    string      `json:"sparql"`
	Question string      `json:"question"`
	Expected Expectation `json:"expected"`
	Actual   *Actual     `json:"actual"`
	Passed   bool        `json:"passed"`
	Error    string      `json:"error,omitempty"`
}

// Result is the evaluator output for a batch of questions.
type Result struct {
	Outcomes []Outcome
	Passed   int
}

// Total is the number of questions evaluated.
func (r Result) Total() int { return len(r.Outcomes) }

// AllPassed reports overall success. An empty batch succeeds.
func (r Result) AllPassed() bool { return r.Passed == len(r.Outcomes) }

// Evaluator runs competency questions against a graph.
type Evaluator struct {
	log *runlog.Log
	// QueryTimeout bounds each query. Zero means no limit.
	QueryTimeout time.Duration
}

// NewEvaluator returns an evaluator reporting to log, which may be nil.
func NewEvaluator(log *runlog.Log) *Evaluator {
	return &Evaluator{log: log}
}

// Evaluate scores every question, in order, against g. A failing query is
// recorded on its outcome and never stops the batch.
func (e *Evaluator) Evaluate(ctx context.Context, g *ontology.Graph, questions []Question) Result {
	e.log.Emit(runlog.StageCQStart, zap.Int("total_questions", len(questions)))

	res := Result{Outcomes: make([]Outcome, 0, len(questions))}
	for _, q := range questions {
		out := e.evaluateOne(ctx, g, q)
		if out.Passed {
			res.Passed++
		}
		res.Outcomes = append(res.Outcomes, out)

		e.log.Emit(runlog.StageCompetencyQuestion,
			zap.String("id", out.ID),
			zap.Bool("passed", out.Passed),
			zap.String("error", out.Error),
			zap.Any("expected", out.Expected),
			zap.Any("actual", out.Actual),
			zap.String("sparql", out.Query),
			zap.String("question", out.Question),
		)
	}

	e.log.Emit(runlog.StageCQEnd, zap.Dict("summary",
		zap.Int("total", res.Total()),
		zap.Int("passed", res.Passed),
	))
	return res
}

func (e *Evaluator) evaluateOne(ctx context.Context, g *ontology.Graph, q Question) Outcome {
	out := Outcome{
		ID:       q.ID,
		Query:    q.Query,
		Question: q.Question,
		Expected: q.Expected,
	}

	if e.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.QueryTimeout)
		defer cancel()
	}

	qr, err := sparql.Exec(ctx, g, q.Query)
	if err != nil {
		out.Error = err.Error()
		e.log.Fail(runlog.StageQuestionError, err,
			zap.String("id", q.ID),
			zap.String("sparql", q.Query),
		)
		return out
	}

	out.Actual = actualOf(qr, q.OmitUnbound)
	out.Passed = q.Expected.Matches(out.Actual)
	return out
}

func actualOf(qr *sparql.Result, omitUnbound bool) *Actual {
	if qr.IsBoolean() {
		return BooleanResult(qr.Boolean)
	}
	canon := Canonicalize
	if omitUnbound {
		canon = CanonicalizeBound
	}
	rows := make([]string, len(qr.Rows))
	for i, b := range qr.Rows {
		rows[i] = canon(qr.Vars, b)
	}
	return RowsResult(rows)
}
