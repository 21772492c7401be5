package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LyzardKing/llm-owl/internal/ontology"
	"github.com/LyzardKing/llm-owl/internal/runlog"
)

type fakeLLM struct {
	replies []string
	err     error
	systems []string
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

const draftReply = "[{\"sentence\": \"Cars are vehicles.\"}]\n\n## OWL\n\n```ttl\n:Car a owl:Class ;\n    rdfs:subClassOf :Vehicle .\n```\n"

func TestSplitResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"after marker", draftReply, ":Car a owl:Class ;\n    rdfs:subClassOf :Vehicle ."},
		{"turtle fence case-insensitive", "## OWL\n```Turtle\n:A a owl:Class .\n```", ":A a owl:Class ."},
		{"first block wins", "## OWL\n```ttl\n:A a owl:Class .\n```\n```ttl\n:B a owl:Class .\n```", ":A a owl:Class ."},
		{"block before marker ignored", "```ttl\n:Early a owl:Class .\n```\n## OWL\n```ttl\n:Late a owl:Class .\n```", ":Late a owl:Class ."},
		{"no marker searches whole text", "Here you go:\n```ttl\n:Fixed a owl:Class .\n```", ":Fixed a owl:Class ."},
		{"marker without block", "## OWL\n:A a owl:Class .", ""},
		{"other language fence", "## OWL\n```json\n{}\n```", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitResponse(tt.content))
		})
	}
}

func TestAssembleParses(t *testing.T) {
	doc := Assemble("", SplitResponse(draftReply))
	assert.True(t, strings.HasPrefix(doc, "# Prefixes\n@prefix : <http://example.org/highway_code#> .\n"))
	assert.Contains(t, doc, "\n\n# Generated code\n\n:Car a owl:Class")

	g, err := ontology.Parse(doc, ontology.FormatTurtle)
	require.NoError(t, err)
	assert.Positive(t, g.Len())
}

func TestPrefixBlock_CustomBase(t *testing.T) {
	assert.Contains(t, PrefixBlock("http://example.org/traffic#"), "@prefix : <http://example.org/traffic#> .")
}

func TestPrompts(t *testing.T) {
	p := DraftPrompt("Vehicles must stop.")
	assert.True(t, strings.HasSuffix(p, "Legal text:\n\nVehicles must stop."))
	assert.Contains(t, p, "`## OWL`")

	f := FixPrompt(":A a :B", "Passed 0 out of 1 questions.")
	assert.Contains(t, f, "Here is the original Turtle code:\n:A a :B\n")
	assert.Contains(t, f, "The Turtle code has the following issues:\nPassed 0 out of 1 questions.\n")
}

func TestLoadSystemPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.md")
	require.NoError(t, os.WriteFile(path, []byte("step by step"), 0644))

	got, err := LoadSystemPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "step by step", got)

	_, err = LoadSystemPrompt(filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestGenerator_Draft(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dest := filepath.Join(t.TempDir(), "out")
	llm := &fakeLLM{replies: []string{draftReply}}
	g := New(llm, Options{Dest: dest, Name: "rules"}, runlog.New(zap.New(core)))

	d, err := g.Draft(context.Background(), "system text", "Cars are vehicles.")
	require.NoError(t, err)
	assert.False(t, d.Empty)
	assert.Equal(t, filepath.Join(dest, "rules.md"), d.MarkdownPath)
	assert.Equal(t, filepath.Join(dest, "rules.ttl"), d.TurtlePath)

	raw, err := os.ReadFile(d.MarkdownPath)
	require.NoError(t, err)
	assert.Equal(t, draftReply, string(raw))
	ttl, err := os.ReadFile(d.TurtlePath)
	require.NoError(t, err)
	assert.Equal(t, d.Turtle, string(ttl))

	assert.Equal(t, []string{"system text"}, llm.systems)
	assert.Contains(t, llm.prompts[0], "Cars are vehicles.")

	promptLog, err := os.ReadFile(filepath.Join(dest, PromptLogName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(promptLog), "# SYSTEM\nsystem text\n\n# USER\n"))

	assert.Equal(t, 1, logs.FilterMessage(runlog.StageLLMCall).Len())
	assert.Equal(t, 1, logs.FilterMessage(runlog.StageDraftSaved).Len())
}

func TestGenerator_DraftWithoutTurtle(t *testing.T) {
	g := New(&fakeLLM{replies: []string{"I cannot help with that."}}, Options{Dest: t.TempDir()}, nil)

	d, err := g.Draft(context.Background(), "", "text")
	require.NoError(t, err)
	assert.True(t, d.Empty)
	assert.True(t, strings.HasSuffix(d.Turtle, "# Generated code\n\n"), "prefix block is still written")
}

func TestGenerator_DraftRejectsEmptyText(t *testing.T) {
	llm := &fakeLLM{replies: []string{draftReply}}
	_, err := New(llm, Options{Dest: t.TempDir()}, nil).Draft(context.Background(), "", "  ")
	assert.Error(t, err)
	assert.Empty(t, llm.prompts)
}

func TestGenerator_Fix(t *testing.T) {
	dest := t.TempDir()
	llm := &fakeLLM{replies: []string{
		"```ttl\n:car1 a :Car .\n```",
		"```ttl\n:car2 a :Car .\n```",
	}}
	g := New(llm, Options{Dest: dest}, nil)

	text, path, err := g.Fix(context.Background(), ":car1 a :Car", "does not parse")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, FixedOutputName+".ttl"), path)
	assert.Contains(t, text, ":car1 a :Car .")
	assert.Equal(t, fixSystemPrompt, llm.systems[0])
	assert.Contains(t, llm.prompts[0], "does not parse")

	text, _, err = g.Fix(context.Background(), text, "missing car2")
	require.NoError(t, err)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, text, string(saved), "later fixes replace the file")

	promptLog, err := os.ReadFile(filepath.Join(dest, PromptLogName))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(promptLog), "# SYSTEM\n"), "prompt log is appended")
}

func TestGenerator_FixLLMError(t *testing.T) {
	g := New(&fakeLLM{err: errors.New("quota exceeded")}, Options{Dest: t.TempDir()}, nil)
	_, _, err := g.Fix(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestUniqueDest(t *testing.T) {
	root := t.TempDir()
	first := UniqueDest(root, "org/model:7b", "output")
	assert.Equal(t, filepath.Join(root, "dest_org-model-7b_output"), first)

	require.NoError(t, os.MkdirAll(first, 0755))
	second := UniqueDest(root, "org/model:7b", "output")
	assert.Equal(t, first+"_1", second)

	require.NoError(t, os.MkdirAll(second, 0755))
	assert.Equal(t, first+"_2", UniqueDest(root, "org/model:7b", "output"))
}
