package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LyzardKing/llm-owl/internal/competency"
	"github.com/LyzardKing/llm-owl/internal/runlog"
)

func sampleEval() *competency.Result {
	return &competency.Result{
		Passed: 1,
		Outcomes: []competency.Outcome{
			{
				ID:       "q1",
				Query:    "ASK { ?s ?p ?o }",
				Question: "Is there anything?",
				Expected: competency.ExpectBool(true),
				Actual:   competency.BooleanResult(true),
				Passed:   true,
			},
			{
				ID:       "q2",
				Query:    "SELECT ?x WHERE { ?x a :Car }",
				Question: "Which cars exist?",
				Expected: competency.ExpectCount(2),
				Actual:   competency.RowsResult([]string{"a", "b", "c"}),
			},
			{
				ID:    "q3",
				Query: "SELEC",
				Error: "parse error at line 1, column 1: expected SELECT or ASK",
			},
		},
	}
}

func TestBuild_Summary(t *testing.T) {
	r := Build(nil, []string{"The ontology is inconsistent"}, sampleEval())

	assert.True(t, r.SyntaxOK)
	assert.Equal(t, Summary{Total: 3, Passed: 1}, r.Summary)
	assert.Len(t, r.Results, 3)
	assert.Equal(t, []string{"The ontology is inconsistent"}, r.ConsistencyIssues)
	assert.False(t, r.AllPassed())

	passed := 0
	for _, o := range r.Results {
		if o.Passed {
			passed++
		}
	}
	assert.Equal(t, r.Summary.Passed, passed)
}

func TestBuild_SyntaxFailure(t *testing.T) {
	r := Build(errors.New("unexpected token"), nil, sampleEval())

	assert.False(t, r.SyntaxOK)
	assert.Equal(t, "unexpected token", r.SyntaxError)
	assert.Empty(t, r.Results)
	assert.Equal(t, Summary{}, r.Summary)
	assert.False(t, r.AllPassed(), "an unparsed document never passes vacuously")
}

func TestBuild_NoQuestions(t *testing.T) {
	r := Build(nil, nil, &competency.Result{})
	assert.True(t, r.AllPassed())
	assert.Equal(t, Summary{}, r.Summary)
}

func TestBuild_ConsistencyIssuesDoNotBlock(t *testing.T) {
	r := Build(nil, []string{"There are inconsistent classes in the ontology: A"}, &competency.Result{
		Passed:   1,
		Outcomes: []competency.Outcome{{ID: "q", Passed: true}},
	})
	assert.True(t, r.AllPassed())
}

func TestRender(t *testing.T) {
	r := Build(nil, []string{"There are inconsistent classes in the ontology: Zombie"}, sampleEval())

	want := `Competency Questions Validation Report:
  Passed 1 out of 3 questions.
  Consistency issues:
    There are inconsistent classes in the ontology: Zombie
- Question ID: q2
  Question: Which cars exist?
  Expected: 2
  Actual: [a, b, c]
- Question ID: q3
  Error: parse error at line 1, column 1: expected SELECT or ASK`
	assert.Equal(t, want, Render(r))
}

func TestRender_SyntaxError(t *testing.T) {
	text := Render(Build(errors.New("bad"), nil, nil))
	assert.Equal(t, "Competency Questions Validation Report:\n  Passed 0 out of 0 questions.\n  Syntax error: bad", text)
}

func TestRender_ErrorTakesPrecedence(t *testing.T) {
	r := Build(nil, nil, &competency.Result{Outcomes: []competency.Outcome{{
		ID:       "q",
		Expected: competency.ExpectBool(true),
		Error:    "boom",
	}}})
	text := Render(r)
	assert.Contains(t, text, "  Error: boom")
	assert.NotContains(t, text, "Expected:")
	assert.NotContains(t, text, "Actual:")
}

func TestMarshal_Shape(t *testing.T) {
	data, err := Marshal(Build(nil, nil, sampleEval()))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]interface{}{"total": 3.0, "passed": 1.0}, doc["summary"])
	assert.Equal(t, true, doc["syntax_ok"])
	assert.NotContains(t, doc, "syntax_error")
	assert.Equal(t, []interface{}{}, doc["consistency_issues"])

	results := doc["results"].([]interface{})
	require.Len(t, results, 3)
	q2 := results[1].(map[string]interface{})
	assert.Equal(t, "q2", q2["id"])
	assert.Equal(t, "SELECT ?x WHERE { ?x a :Car }", q2["sparql"])
	assert.Equal(t, 2.0, q2["expected"])
	assert.Equal(t, []interface{}{"a", "b", "c"}, q2["actual"])
	assert.Equal(t, false, q2["passed"])

	q3 := results[2].(map[string]interface{})
	assert.Nil(t, q3["actual"])
	assert.Nil(t, q3["expected"])
	assert.NotEmpty(t, q3["error"])

	assert.Contains(t, string(data), "\n  \"summary\": {", "indented by two spaces")
}

func TestWriteFile_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", DefaultFileName)

	require.NoError(t, WriteFile(path, Build(nil, nil, sampleEval())))
	require.NoError(t, WriteFile(path, Build(errors.New("bad"), nil, nil)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var r Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.False(t, r.SyntaxOK)
	assert.Equal(t, "bad", r.SyntaxError)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, DefaultFileName, entries[0].Name())
}

func TestWriteFile_FailureLeavesOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, WriteFile(path, Build(nil, nil, sampleEval())))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A directory in place of the target makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))
	assert.Error(t, WriteFile(blocked, Build(nil, nil, nil)))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPublish(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := runlog.New(zap.New(core))
	r := Build(nil, nil, sampleEval())

	path := filepath.Join(t.TempDir(), DefaultFileName)
	text, err := Publish(log, path, r)
	require.NoError(t, err)
	assert.Equal(t, Render(r), text)
	assert.FileExists(t, path)
	assert.Equal(t, 1, logs.FilterMessage(runlog.StageReportWritten).Len())

	text, err = Publish(log, "", r)
	require.NoError(t, err)
	assert.Equal(t, Render(r), text)
}

func TestPublish_WriteFailureStillRenders(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))

	r := Build(nil, nil, sampleEval())
	text, err := Publish(runlog.Nop(), blocked, r)
	assert.Error(t, err)
	assert.Equal(t, Render(r), text)
}

func TestAttemptPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "validation_report.attempt-2.json"), AttemptPath("out", 2))
}
