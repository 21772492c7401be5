// Package generate drafts OWL ontologies from natural-language text with an
// LLM and repairs drafts from validator feedback.
package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultSystemPromptFile is read when no system prompt path is given.
	DefaultSystemPromptFile = "system_step-by-step.md"
	// PromptLogName collects every prompt sent, appended per call.
	PromptLogName = "LLM_prompt.md"
	// DefaultBaseNamespace is bound to the empty prefix.
	DefaultBaseNamespace = "http://example.org/highway_code#"

	fixSystemPrompt = "Your task is to fix the provided OWL Turtle code based on the following error message from a validator:"
)

// LoadSystemPrompt reads the system prompt file.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		path = DefaultSystemPromptFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WithHint(errors.Wrapf(err, "read system prompt %s", path),
			"pass --system or set generate.system_prompt")
	}
	return string(data), nil
}

// DraftPrompt wraps the source text in the drafting instructions.
func DraftPrompt(text string) string {
	return "Please follow the system step-by-step instructions exactly. " +
		"Given the following legal text, produce two outputs in this order:\n" +
		"1) A JSON array of extracted sentence-level objects as described in the system prompt.\n" +
		"2) A section `## OWL` containing the OWL representation in Turtle (ttl).\n\n" +
		"Legal text:\n\n" + text
}

// FixPrompt asks for a corrected version of code given the validator's
// complaint.
func FixPrompt(code, failure string) string {
	return fmt.Sprintf(`
Here is the original Turtle code:
%s
The Turtle code has the following issues:
%s
Please provide a corrected version of the OWL Turtle code that resolves these issues.
`, code, failure)
}

// PrefixBlock is the fixed prefix header every generated document starts with.
func PrefixBlock(base string) string {
	if base == "" {
		base = DefaultBaseNamespace
	}
	return "# Prefixes\n" +
		"@prefix : <" + base + "> .\n" +
		"@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .\n" +
		"@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .\n" +
		"@prefix owl: <http://www.w3.org/2002/07/owl#> .\n" +
		"@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .\n"
}

// appendPromptLog records one exchange in dest/LLM_prompt.md.
func appendPromptLog(dest, system, user string) error {
	f, err := os.OpenFile(filepath.Join(dest, PromptLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open prompt log")
	}
	defer f.Close()

	var b strings.Builder
	for _, m := range [][2]string{{"system", system}, {"user", user}} {
		fmt.Fprintf(&b, "# %s\n%s\n\n", strings.ToUpper(m[0]), m[1])
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return errors.Wrap(err, "write prompt log")
	}
	return nil
}
