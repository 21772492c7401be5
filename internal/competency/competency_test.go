package competency

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LyzardKing/llm-owl/internal/ontology"
	"github.com/LyzardKing/llm-owl/internal/runlog"
)

const roadTurtle = `@prefix : <http://example.org/highway_code#> .
@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix owl: <http://www.w3.org/2002/07/owl#> .

:Vehicle a owl:Class .
:Car a owl:Class ; rdfs:subClassOf :Vehicle .
:Bicycle a owl:Class ; rdfs:subClassOf :Vehicle .
:Sign a owl:Class .

:car1 a :Car ; :colour "red" .
:car2 a :Car ; :colour "red" .
:car3 a :Car ; :colour "blue" .
:bike1 a :Bicycle .
`

func roadGraph(t *testing.T) *ontology.Graph {
	t.Helper()
	g, err := ontology.Parse(roadTurtle, ontology.FormatTurtle)
	require.NoError(t, err)
	return g
}

func evaluate(t *testing.T, questions ...Question) Result {
	t.Helper()
	return NewEvaluator(nil).Evaluate(context.Background(), roadGraph(t), questions)
}

func TestEvaluate_BooleanQueries(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected Expectation
		want     bool
	}{
		{"unset true passes", "ASK { ?s ?p ?o }", Expectation{}, true},
		{"unset false fails", "ASK { :car1 a :Sign }", Expectation{}, false},
		{"expected true", "ASK { :car1 a :Car }", ExpectBool(true), true},
		{"expected false and false", "ASK { :car1 a :Sign }", ExpectBool(false), true},
		{"expected false but true", "ASK { :car1 a :Car }", ExpectBool(false), false},
		{"count against boolean", "ASK { :car1 a :Car }", ExpectCount(1), false},
		{"rows against boolean", "ASK { :car1 a :Car }", ExpectRows("true"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluate(t, Question{ID: "q", Query: tt.query, Expected: tt.expected})
			require.Len(t, res.Outcomes, 1)
			out := res.Outcomes[0]
			assert.Empty(t, out.Error)
			require.NotNil(t, out.Actual)
			assert.Equal(t, ShapeBoolean, out.Actual.Shape)
			assert.Equal(t, tt.want, out.Passed)
		})
	}
}

func TestEvaluate_RowCountIncludesDuplicates(t *testing.T) {
	// Three cars, two of them red: the colour column has a duplicate row.
	q := Question{
		ID:       "q2",
		Query:    "SELECT ?c WHERE { ?car a :Car ; :colour ?c }",
		Expected: ExpectCount(3),
	}
	res := evaluate(t, q)

	out := res.Outcomes[0]
	assert.True(t, out.Passed)
	assert.ElementsMatch(t, []string{"red", "red", "blue"}, out.Actual.Rows)

	q.Expected = ExpectCount(2)
	res = evaluate(t, q)
	out = res.Outcomes[0]
	assert.False(t, out.Passed)
	assert.Len(t, out.Actual.Rows, 3, "actual lists every row even on failure")
}

func TestEvaluate_RowSetIgnoresOrderAndDuplicates(t *testing.T) {
	tests := []struct {
		name     string
		expected Expectation
		want     bool
	}{
		{"same set", ExpectRows("red", "blue"), true},
		{"reordered with duplicates", ExpectRows("blue", "red", "blue"), true},
		{"missing value", ExpectRows("red"), false},
		{"extra value", ExpectRows("red", "blue", "green"), false},
		{"empty set", ExpectRows(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluate(t, Question{
				ID:       "colours",
				Query:    "SELECT ?c WHERE { ?car :colour ?c }",
				Expected: tt.expected,
			})
			assert.Equal(t, tt.want, res.Outcomes[0].Passed)
		})
	}
}

func TestEvaluate_EmptyRowSetMatchesNoRows(t *testing.T) {
	res := evaluate(t, Question{
		ID:       "none",
		Query:    "SELECT ?s WHERE { ?s a :Sign }",
		Expected: ExpectRows(),
	})
	assert.True(t, res.Outcomes[0].Passed)
}

func TestEvaluate_UnsetRowsNeedsOneRow(t *testing.T) {
	res := evaluate(t,
		Question{ID: "some", Query: "SELECT ?v WHERE { ?v a :Bicycle }"},
		Question{ID: "none", Query: "SELECT ?v WHERE { ?v a :Sign }"},
	)
	assert.True(t, res.Outcomes[0].Passed)
	assert.False(t, res.Outcomes[1].Passed)
	assert.Equal(t, []string{}, res.Outcomes[1].Actual.Rows)
}

func TestEvaluate_BoolAgainstRowsFails(t *testing.T) {
	res := evaluate(t, Question{ID: "q", Query: "SELECT ?v WHERE { ?v a :Car }", Expected: ExpectBool(true)})
	assert.False(t, res.Outcomes[0].Passed)
	assert.Len(t, res.Outcomes[0].Actual.Rows, 3)
}

func TestEvaluate_CountAgainstBooleanFails(t *testing.T) {
	res := evaluate(t, Question{ID: "q", Query: "ASK { ?v a :Car }", Expected: ExpectCount(1)})
	assert.False(t, res.Outcomes[0].Passed)
	assert.True(t, res.Outcomes[0].Actual.Boolean)
}

func TestEvaluate_CanonicalRowsFollowProjection(t *testing.T) {
	res := evaluate(t, Question{
		ID:       "pairs",
		Query:    "SELECT ?c ?car WHERE { ?car :colour ?c } ORDER BY ?car",
		Expected: ExpectRows("red|http://example.org/highway_code#car1", "red|http://example.org/highway_code#car2", "blue|http://example.org/highway_code#car3"),
	})
	out := res.Outcomes[0]
	assert.True(t, out.Passed, "actual: %v", out.Actual)
	assert.Equal(t, "red|http://example.org/highway_code#car1", out.Actual.Rows[0])
}

func TestEvaluate_UnboundRendersEmpty(t *testing.T) {
	res := evaluate(t, Question{
		ID:    "optional",
		Query: "SELECT ?v ?c WHERE { ?v a :Bicycle OPTIONAL { ?v :colour ?c } }",
	})
	out := res.Outcomes[0]
	require.Len(t, out.Actual.Rows, 1)
	assert.Equal(t, "http://example.org/highway_code#bike1|", out.Actual.Rows[0])
}

func TestEvaluate_OmitUnbound(t *testing.T) {
	res := evaluate(t, Question{
		ID:          "optional",
		Query:       "SELECT ?v ?c WHERE { ?v a :Bicycle OPTIONAL { ?v :colour ?c } }",
		Expected:    ExpectRows("http://example.org/highway_code#bike1"),
		OmitUnbound: true,
	})
	out := res.Outcomes[0]
	assert.True(t, out.Passed, "actual: %v", out.Actual)
	assert.Equal(t, []string{"http://example.org/highway_code#bike1"}, out.Actual.Rows)
}

func TestEvaluate_BadQueryDoesNotStopBatch(t *testing.T) {
	res := evaluate(t,
		Question{ID: "bad", Query: "SELEC ?x WHERE { ?x ?p ?o }"},
		Question{ID: "good", Query: "ASK { ?s ?p ?o }", Expected: ExpectBool(true)},
	)

	require.Len(t, res.Outcomes, 2)
	bad := res.Outcomes[0]
	assert.False(t, bad.Passed)
	assert.NotEmpty(t, bad.Error)
	assert.Nil(t, bad.Actual)

	assert.True(t, res.Outcomes[1].Passed)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Total())
	assert.False(t, res.AllPassed())
}

func TestEvaluate_EmptyBatchSucceeds(t *testing.T) {
	res := evaluate(t)
	assert.Equal(t, 0, res.Total())
	assert.True(t, res.AllPassed())
}

func TestEvaluate_Idempotent(t *testing.T) {
	questions := []Question{
		{ID: "a", Query: "SELECT ?c WHERE { ?car :colour ?c }", Expected: ExpectRows("red", "blue")},
		{ID: "b", Query: "ASK { :bike1 a :Car }", Expected: ExpectBool(false)},
		{ID: "c", Query: "SELECT ?x WHERE { ?x a ?y", Expected: ExpectCount(1)},
	}
	g := roadGraph(t)
	ev := NewEvaluator(nil)

	first, err := json.Marshal(ev.Evaluate(context.Background(), g, questions).Outcomes)
	require.NoError(t, err)
	second, err := json.Marshal(ev.Evaluate(context.Background(), g, questions).Outcomes)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestEvaluate_Logs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ev := NewEvaluator(runlog.New(zap.New(core)))

	ev.Evaluate(context.Background(), roadGraph(t), []Question{
		{ID: "ok", Query: "ASK { ?s ?p ?o }"},
		{ID: "broken", Query: "ASK {"},
	})

	stages := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		stages = append(stages, e.Message)
	}
	assert.Equal(t, []string{
		runlog.StageCQStart,
		runlog.StageCompetencyQuestion,
		runlog.StageQuestionError,
		runlog.StageCompetencyQuestion,
		runlog.StageCQEnd,
	}, stages)

	start := logs.FilterMessage(runlog.StageCQStart).All()[0].ContextMap()
	assert.EqualValues(t, 2, start["total_questions"])

	end := logs.FilterMessage(runlog.StageCQEnd).All()[0].ContextMap()
	assert.Equal(t, map[string]interface{}{"total": int64(2), "passed": int64(1)}, end["summary"])
}

func TestCanonicalize(t *testing.T) {
	b := map[string]ontology.Term{
		"a": ontology.NewIRI("http://example.org/x"),
		"b": ontology.NewTypedLiteral("4", ontology.XSDInteger),
	}
	assert.Equal(t, "http://example.org/x|4", Canonicalize([]string{"a", "b"}, b))
	assert.Equal(t, "4||http://example.org/x", Canonicalize([]string{"b", "missing", "a"}, b))
	assert.Equal(t, "4|http://example.org/x", CanonicalizeBound([]string{"b", "missing", "a"}, b))
}

func TestParse_Unbound(t *testing.T) {
	qs, err := Parse([]byte(`
- sparql: SELECT ?x WHERE { ?x a ?c }
  unbound: omit
- sparql: SELECT ?x WHERE { ?x a ?c }
  unbound: empty
- sparql: SELECT ?x WHERE { ?x a ?c }
`))
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.True(t, qs[0].OmitUnbound)
	assert.False(t, qs[1].OmitUnbound)
	assert.False(t, qs[2].OmitUnbound)

	_, err = Parse([]byte("- sparql: ASK {}\n  unbound: drop\n"))
	assert.Error(t, err)
}

func TestParse_Shapes(t *testing.T) {
	data := []byte(`
- id: q1
  question: Is there anything?
  sparql: ASK { ?s ?p ?o }
  expected: true
- name: named
  query: SELECT ?x WHERE { ?x a ?c }
  expected: 3
- sparql: SELECT ?x WHERE { ?x a ?c }
  expected: [a, 2, b]
- sparql: SELECT ?x WHERE { ?x a ?c }
- sparql: SELECT ?x WHERE { ?x a ?c }
  expected: null
- sparql: SELECT ?x WHERE { ?x a ?c }
  expected: []
`)
	qs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, qs, 6)

	assert.Equal(t, "q1", qs[0].ID)
	assert.Equal(t, "Is there anything?", qs[0].Question)
	assert.Equal(t, ExpectBool(true), qs[0].Expected)

	assert.Equal(t, "named", qs[1].ID)
	assert.Equal(t, "SELECT ?x WHERE { ?x a ?c }", qs[1].Query)
	assert.Equal(t, ExpectCount(3), qs[1].Expected)

	assert.Equal(t, "cq3", qs[2].ID)
	assert.Equal(t, ExpectRows("a", "2", "b"), qs[2].Expected)

	assert.Equal(t, Unset, qs[3].Expected.Kind)
	assert.Equal(t, Unset, qs[4].Expected.Kind)

	assert.Equal(t, RowSet, qs[5].Expected.Kind)
	assert.Empty(t, qs[5].Expected.Rows)
}

func TestParse_JSONAndWrapped(t *testing.T) {
	qs, err := Parse([]byte(`{"questions": [{"id": "j1", "sparql": "ASK { ?s ?p ?o }", "expected": false}]}`))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "j1", qs[0].ID)
	assert.Equal(t, ExpectBool(false), qs[0].Expected)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing query", "- id: q1\n  expected: true\n"},
		{"scalar document", "just text\n"},
		{"nested expected", "- sparql: ASK {}\n  expected: {a: 1}\n"},
		{"non-scalar list item", "- sparql: ASK {}\n  expected: [[a]]\n"},
		{"bad yaml", "- sparql: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	qs, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cqs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- sparql: ASK { ?s ?p ?o }\n"), 0o644))

	qs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "cq1", qs[0].ID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExpectationJSON(t *testing.T) {
	tests := []struct {
		exp  Expectation
		want string
	}{
		{Expectation{}, "null"},
		{ExpectBool(true), "true"},
		{ExpectCount(2), "2"},
		{ExpectRows("a", "b"), `["a","b"]`},
		{ExpectRows(), "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.exp.Kind.String(), func(t *testing.T) {
			data, err := json.Marshal(tt.exp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back Expectation
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.exp.Kind, back.Kind)
		})
	}
}

func TestActualString(t *testing.T) {
	var none *Actual
	assert.Equal(t, "none", none.String())
	assert.Equal(t, "true", BooleanResult(true).String())
	assert.Equal(t, "[a, b|c]", RowsResult([]string{"a", "b|c"}).String())
}
