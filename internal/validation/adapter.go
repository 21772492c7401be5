package validation

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

// Fixer rewrites ontology text given a failure description. It returns the
// new text as Turtle and, when it saved the text, the file path.
type Fixer interface {
	Fix(ctx context.Context, text, failure string) (fixed string, path string, err error)
}

// FixerAdapter adapts a Fixer to Producer. This keeps the generation
// package free of any dependency on validation types.
type FixerAdapter struct {
	fixer Fixer
}

// NewFixerAdapter creates a Producer backed by fixer.
func NewFixerAdapter(fixer Fixer) *FixerAdapter {
	return &FixerAdapter{
		fixer: fixer,
	}
}

// Produce implements Producer. The corrected document is Turtle whatever
// the format of the previous one. An empty answer is a failure.
func (a *FixerAdapter) Produce(ctx context.Context, previous Document, failure string) (Document, error) {
	text, path, err := a.fixer.Fix(ctx, previous.Text, failure)
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, errors.New("producer returned an empty document")
	}
	return Document{
		Text:   text,
		Format: ontology.FormatTurtle,
		Path:   path,
	}, nil
}

var _ Producer = (*FixerAdapter)(nil)
