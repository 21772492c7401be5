package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/LyzardKing/llm-owl/internal/runlog"
)

// FixedOutputName is the file stem of repaired drafts.
const FixedOutputName = "fixed_output"

// Completer is a single-turn chat model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options configures a Generator.
type Options struct {
	// Dest is the output directory; it is created if missing.
	Dest string
	// BaseNamespace is bound to the empty prefix.
	BaseNamespace string
	// Name is the file stem of the first draft.
	Name string
	// Timeout bounds one LLM call. Zero means no limit.
	Timeout time.Duration
}

// Draft is one saved LLM answer.
type Draft struct {
	// Raw is the full response.
	Raw string
	// Turtle is the assembled document: prefix block plus extracted body.
	Turtle string
	// Empty is set when the response held no Turtle block.
	Empty        bool
	MarkdownPath string
	TurtlePath   string
}

// Generator drafts and repairs ontologies and keeps every answer on disk.
type Generator struct {
	llm  Completer
	opts Options
	log  *runlog.Log
}

// New creates a Generator. log may be nil.
func New(llm Completer, opts Options, log *runlog.Log) *Generator {
	if opts.Name == "" {
		opts.Name = "output"
	}
	if opts.BaseNamespace == "" {
		opts.BaseNamespace = DefaultBaseNamespace
	}
	return &Generator{llm: llm, opts: opts, log: log}
}

// Dest returns the output directory.
func (g *Generator) Dest() string {
	return g.opts.Dest
}

// Draft turns source text into a first ontology draft saved as
// <name>.md and <name>.ttl.
func (g *Generator) Draft(ctx context.Context, system, text string) (*Draft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no source text to convert")
	}
	return g.exchange(ctx, system, DraftPrompt(text), g.opts.Name)
}

// Fix asks for a corrected version of text and saves it as
// fixed_output.md and fixed_output.ttl, replacing the previous fix.
func (g *Generator) Fix(ctx context.Context, text, failure string) (string, string, error) {
	d, err := g.exchange(ctx, fixSystemPrompt, FixPrompt(text, failure), FixedOutputName)
	if err != nil {
		return "", "", err
	}
	return d.Turtle, d.TurtlePath, nil
}

func (g *Generator) exchange(ctx context.Context, system, prompt, stem string) (*Draft, error) {
	if err := os.MkdirAll(g.opts.Dest, 0755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	if err := appendPromptLog(g.opts.Dest, system, prompt); err != nil {
		return nil, err
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := g.llm.Complete(ctx, system, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "LLM call failed")
	}
	g.log.Emit(runlog.StageLLMCall,
		zap.String("stem", stem),
		zap.Int("response_bytes", len(raw)),
		zap.Duration("duration", time.Since(start)))

	body := SplitResponse(raw)
	d := &Draft{
		Raw:    raw,
		Turtle: Assemble(g.opts.BaseNamespace, body),
		Empty:  body == "",
	}
	d.MarkdownPath, d.TurtlePath, err = SaveOutputs(g.opts.Dest, stem, d.Raw, d.Turtle)
	if err != nil {
		return nil, err
	}
	g.log.Emit(runlog.StageDraftSaved,
		zap.String(runlog.FieldPath, d.TurtlePath),
		zap.Bool("empty", d.Empty))
	return d, nil
}

// SaveOutputs writes the raw response and the Turtle document as
// <stem>.md and <stem>.ttl in dest.
func SaveOutputs(dest, stem, raw, turtle string) (mdPath, ttlPath string, err error) {
	mdPath = filepath.Join(dest, stem+".md")
	ttlPath = filepath.Join(dest, stem+".ttl")
	if err := os.WriteFile(mdPath, []byte(raw), 0644); err != nil {
		return "", "", errors.Wrapf(err, "write %s", mdPath)
	}
	if err := os.WriteFile(ttlPath, []byte(turtle), 0644); err != nil {
		return "", "", errors.Wrapf(err, "write %s", ttlPath)
	}
	return mdPath, ttlPath, nil
}

// UniqueDest returns root/dest_<model>_<name>, suffixed with _1, _2, ...
// when that directory already exists.
func UniqueDest(root, model, name string) string {
	base := filepath.Join(root, fmt.Sprintf("dest_%s_%s", sanitize(model), name))
	dest := base
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = fmt.Sprintf("%s_%d", base, i)
	}
}

// sanitize keeps model ids like "org/model:tag" usable as a path element.
func sanitize(s string) string {
	return strings.NewReplacer("/", "-", ":", "-", "\\", "-").Replace(s)
}
