// Package competency loads competency questions and scores a graph against
// them.
package competency

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Question is one competency question. It is read-only once loaded.
type Question struct {
	// ID identifies the question. Loaders fill in a positional label when
	// the source has none.
	ID string
	// Question is the natural-language text. Optional.
	Question string
	// Query is a SPARQL ASK or SELECT query.
	Query string
	// Expected is what the query must return.
	Expected Expectation
	// OmitUnbound drops unbound variables from canonical rows instead of
	// leaving an empty field. Set with "unbound: omit".
	OmitUnbound bool
}

// ExpectKind selects which field of an Expectation is meaningful.
type ExpectKind int

const (
	// Unset: an ASK must be true, a SELECT must return at least one row.
	Unset ExpectKind = iota
	// ExactBool: an ASK must return Bool.
	ExactBool
	// RowCount: a SELECT must return exactly Count rows, duplicates included.
	RowCount
	// RowSet: the distinct canonical rows of a SELECT must equal Rows as a set.
	RowSet
)

func (k ExpectKind) String() string {
	switch k {
	case Unset:
		return "unset"
	case ExactBool:
		return "bool"
	case RowCount:
		return "count"
	case RowSet:
		return "rows"
	default:
		return fmt.Sprintf("ExpectKind(%d)", int(k))
	}
}

// Expectation is the expected result of a question, decided at load time.
type Expectation struct {
	Kind  ExpectKind
	Bool  bool
	Count int
	// Rows keeps the values in source order for reporting; matching
	// ignores order and duplicates.
	Rows []string
}

// ExpectBool expects an ASK query to return b.
func ExpectBool(b bool) Expectation { return Expectation{Kind: ExactBool, Bool: b} }

// ExpectCount expects a SELECT query to return n rows.
func ExpectCount(n int) Expectation { return Expectation{Kind: RowCount, Count: n} }

// ExpectRows expects the canonical rows of a SELECT query to be exactly rows.
func ExpectRows(rows ...string) Expectation {
	if rows == nil {
		rows = []string{}
	}
	return Expectation{Kind: RowSet, Rows: rows}
}

// Matches reports whether actual satisfies e. A boolean expectation never
// matches rows and a row expectation never matches a boolean.
func (e Expectation) Matches(actual *Actual) bool {
	if actual == nil {
		return false
	}

	switch actual.Shape {
	case ShapeBoolean:
		switch e.Kind {
		case Unset:
			return actual.Boolean
		case ExactBool:
			return actual.Boolean == e.Bool
		default:
			return false
		}

	case ShapeRows:
		switch e.Kind {
		case Unset:
			return len(actual.Rows) > 0
		case RowCount:
			return len(actual.Rows) == e.Count
		case RowSet:
			return sameSet(actual.Rows, e.Rows)
		default:
			return false
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, s := range a {
		as[s] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, ok := as[s]; !ok {
			return false
		}
		bs[s] = struct{}{}
	}
	return len(as) == len(bs)
}

// String renders the expectation for humans.
func (e Expectation) String() string {
	switch e.Kind {
	case ExactBool:
		return fmt.Sprint(e.Bool)
	case RowCount:
		return fmt.Sprint(e.Count)
	case RowSet:
		return listString(e.Rows)
	default:
		return "none"
	}
}

// MarshalJSON writes null, a boolean, a number or a list of strings.
func (e Expectation) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case ExactBool:
		return json.Marshal(e.Bool)
	case RowCount:
		return json.Marshal(e.Count)
	case RowSet:
		rows := e.Rows
		if rows == nil {
			rows = []string{}
		}
		return json.Marshal(rows)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Numbers must be integers.
func (e *Expectation) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode expectation")
	}

	switch v := raw.(type) {
	case nil:
		*e = Expectation{}
	case bool:
		*e = ExpectBool(v)
	case float64:
		if v != float64(int(v)) {
			return errors.Newf("expected row count must be an integer, got %v", v)
		}
		*e = ExpectCount(int(v))
	case string:
		*e = ExpectRows(v)
	case []interface{}:
		rows := make([]string, len(v))
		for i, item := range v {
			rows[i] = fmt.Sprint(item)
		}
		*e = ExpectRows(rows...)
	default:
		return errors.Newf("unsupported expectation %s", string(data))
	}
	return nil
}

// UnmarshalYAML picks the expectation shape from the node: null leaves it
// unset, a boolean or integer scalar selects ExactBool or RowCount, a
// sequence of scalars selects RowSet. Any other scalar is a one-row set.
func (e *Expectation) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			*e = Expectation{}
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return errors.Wrapf(err, "line %d: expected", node.Line)
			}
			*e = ExpectBool(b)
		case "!!int":
			var n int
			if err := node.Decode(&n); err != nil {
				return errors.Wrapf(err, "line %d: expected", node.Line)
			}
			*e = ExpectCount(n)
		default:
			*e = ExpectRows(node.Value)
		}
		return nil

	case yaml.SequenceNode:
		rows := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return errors.Newf("line %d: expected values must be scalars", item.Line)
			}
			rows = append(rows, item.Value)
		}
		*e = ExpectRows(rows...)
		return nil

	case yaml.AliasNode:
		return e.UnmarshalYAML(node.Alias)
	}
	return errors.Newf("line %d: expected must be a boolean, an integer or a list", node.Line)
}

func listString(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
