package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LyzardKing/llm-owl/internal/competency"
	"github.com/LyzardKing/llm-owl/internal/report"
	"github.com/LyzardKing/llm-owl/internal/runlog"
)

const prefixes = `@prefix : <http://example.org/highway_code#> .
@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix owl: <http://www.w3.org/2002/07/owl#> .
`

const goodDoc = prefixes + `
:Vehicle a owl:Class .
:Car a owl:Class ; rdfs:subClassOf :Vehicle .
:car1 a :Car .
:car2 a :Car .
`

const brokenDoc = prefixes + `
:Car a owl:Class
:car1 a :Car .
`

const clashDoc = goodDoc + `
:Bicycle a owl:Class ; owl:disjointWith :Car .
:car1 a :Bicycle .
`

const unsatDoc = goodDoc + `
:Bicycle a owl:Class ; owl:disjointWith :Car .
:Amphibian a owl:Class ; rdfs:subClassOf :Car , :Bicycle .
`

var carQuestions = []competency.Question{
	{ID: "has-car", Query: "ASK { ?c a :Car }", Expected: competency.ExpectBool(true)},
	{ID: "two-cars", Query: "SELECT ?c WHERE { ?c a :Car }", Expected: competency.ExpectCount(2)},
}

func observed() (*runlog.Log, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return runlog.New(zap.New(core)), logs
}

func stages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func TestValidate_Accepted(t *testing.T) {
	log, logs := observed()
	v := NewValidator(log, Options{})

	res := v.Validate(context.Background(), ValidationInput{
		Document:  Document{Text: goodDoc, Path: "good.ttl"},
		Questions: carQuestions,
	})

	assert.True(t, res.AllPassed)
	assert.Empty(t, res.FailureReason)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.SyntaxOK)
	assert.Equal(t, report.Summary{Total: 2, Passed: 2}, res.Report.Summary)
	assert.Empty(t, res.Report.ConsistencyIssues)
	assert.True(t, res.Stages.Syntax.Passed)
	assert.True(t, res.Stages.Consistency.Passed)
	assert.True(t, res.Stages.Questions.Passed)
	assert.Contains(t, res.Summary, "Document accepted")

	assert.Equal(t, []string{
		runlog.StageTTLValid,
		runlog.StageConsistencyOK,
		runlog.StageCQStart,
		runlog.StageCompetencyQuestion,
		runlog.StageCompetencyQuestion,
		runlog.StageCQEnd,
	}, stages(logs))
}

func TestValidate_SyntaxFailureSkipsEvaluation(t *testing.T) {
	log, logs := observed()
	v := NewValidator(log, Options{})

	res := v.Validate(context.Background(), ValidationInput{
		Document:  Document{Text: brokenDoc},
		Questions: carQuestions,
	})

	assert.False(t, res.AllPassed)
	assert.Equal(t, "Syntax check failed", res.FailureReason)
	assert.False(t, res.Report.SyntaxOK)
	assert.NotEmpty(t, res.Report.SyntaxError)
	assert.Empty(t, res.Report.Results)
	assert.Equal(t, report.Summary{}, res.Report.Summary)
	assert.Nil(t, res.Stages.Consistency)
	assert.Nil(t, res.Stages.Questions)

	assert.Equal(t, []string{runlog.StageTTLInvalid}, stages(logs))
}

func TestValidate_InconsistencyIsAdvisory(t *testing.T) {
	log, logs := observed()
	v := NewValidator(log, Options{})

	res := v.Validate(context.Background(), ValidationInput{
		Document:  Document{Text: clashDoc},
		Questions: carQuestions,
	})

	assert.True(t, res.AllPassed, "questions still decide acceptance")
	assert.Equal(t, []string{"The ontology is inconsistent"}, res.Report.ConsistencyIssues)
	assert.False(t, res.Stages.Consistency.Passed)
	assert.Equal(t, 2, res.Report.Summary.Total)

	entries := logs.FilterMessage(runlog.StageConsistencyError).All()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ContextMap()["clash"])
}

func TestValidate_UnsatisfiableClassesLogged(t *testing.T) {
	log, logs := observed()
	v := NewValidator(log, Options{})

	res := v.Validate(context.Background(), ValidationInput{Document: Document{Text: unsatDoc}})

	assert.Equal(t, []string{"There are inconsistent classes in the ontology: Amphibian"}, res.Report.ConsistencyIssues)
	entries := logs.FilterMessage(runlog.StageConsistencyIssues).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Amphibian", entries[0].ContextMap()["inconsistent_classes"])
}

func TestValidate_StrictConsistency(t *testing.T) {
	v := NewValidator(nil, Options{StrictConsistency: true})

	res := v.Validate(context.Background(), ValidationInput{
		Document:  Document{Text: clashDoc},
		Questions: carQuestions,
	})

	assert.False(t, res.AllPassed)
	assert.Equal(t, "Consistency check failed", res.FailureReason)
	assert.Equal(t, 2, res.Report.Summary.Passed, "questions are still evaluated")
}

func TestValidate_QuestionFailure(t *testing.T) {
	v := NewValidator(nil, Options{})

	res := v.Validate(context.Background(), ValidationInput{
		Document: Document{Text: goodDoc},
		Questions: []competency.Question{
			{ID: "bikes", Query: "ASK { ?b a :Bicycle }"},
			{ID: "bad", Query: "SELECT"},
		},
	})

	assert.False(t, res.AllPassed)
	assert.Equal(t, "Competency questions failed", res.FailureReason)
	assert.Equal(t, report.Summary{Total: 2, Passed: 0}, res.Report.Summary)
	assert.NotEmpty(t, res.Report.Results[1].Error)
}

func TestValidate_CancelledContextStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewValidator(nil, Options{}).Validate(ctx, ValidationInput{
		Document:  Document{Text: goodDoc},
		Questions: carQuestions,
	})
	assert.True(t, res.AllPassed)
}

func TestValidate_Idempotent(t *testing.T) {
	v := NewValidator(nil, Options{})
	in := ValidationInput{Document: Document{Text: unsatDoc}, Questions: append(carQuestions, competency.Question{ID: "x", Query: "ASK {"})}

	first, err := report.Marshal(v.Validate(context.Background(), in).Report)
	require.NoError(t, err)
	second, err := report.Marshal(v.Validate(context.Background(), in).Report)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
