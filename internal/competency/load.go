package competency

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// record is one question as it appears on disk.
type record struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Question string      `yaml:"question"`
	SPARQL   string      `yaml:"sparql"`
	Query    string      `yaml:"query"`
	Expected Expectation `yaml:"expected"`
	Unbound  string      `yaml:"unbound"`
}

// LoadFile reads questions from a YAML or JSON file.
func LoadFile(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read competency questions %s", path)
	}
	qs, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return qs, nil
}

// Parse decodes questions from YAML (JSON is accepted as YAML). The document
// is either a sequence of questions or a mapping with a "questions" key. An
// empty document yields no questions.
func Parse(data []byte) ([]Question, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse competency questions")
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var records []record
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, errors.Wrap(err, "decode competency questions")
		}
	case yaml.MappingNode:
		var wrapped struct {
			Questions []record `yaml:"questions"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, errors.Wrap(err, "decode competency questions")
		}
		records = wrapped.Questions
	case yaml.ScalarNode:
		if root.ShortTag() == "!!null" {
			return nil, nil
		}
		fallthrough
	default:
		return nil, errors.WithHint(
			errors.Newf("line %d: competency questions must be a list", root.Line),
			`use a top-level list, or a mapping with a "questions" key`)
	}

	out := make([]Question, 0, len(records))
	for i, r := range records {
		q := Question{
			ID:       firstNonEmpty(r.ID, r.Name, fmt.Sprintf("cq%d", i+1)),
			Question: r.Question,
			Query:    firstNonEmpty(r.SPARQL, r.Query),
			Expected: r.Expected,
		}
		if strings.TrimSpace(q.Query) == "" {
			return nil, errors.Newf("question %s has no sparql query", q.ID)
		}
		switch r.Unbound {
		case "", "empty":
		case "omit":
			q.OmitUnbound = true
		default:
			return nil, errors.WithHint(
				errors.Newf("question %s: unknown unbound mode %q", q.ID, r.Unbound),
				`use "empty" or "omit"`)
		}
		out = append(out, q)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
