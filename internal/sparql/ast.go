package sparql

import (
	"strings"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

// Form is the query form.
type Form int

const (
	// FormSelect returns variable bindings.
	FormSelect Form = iota
	// FormAsk returns a single boolean.
	FormAsk
)

func (f Form) String() string {
	if f == FormAsk {
		return "ASK"
	}
	return "SELECT"
}

// Query is a parsed query, ready to run against any number of graphs.
type Query struct {
	Form     Form
	Distinct bool

	star        bool
	projections []projection
	where       *groupPattern
	groupBy     []groupCond
	having      []expr
	orderBy     []orderCond
	limit       int
	offset      int
	aggregated  bool
	patternVars []string
}

// Vars returns the projected variable names in order.
func (q *Query) Vars() []string {
	if q.star {
		var out []string
		for _, v := range q.patternVars {
			if !isHiddenVar(v) {
				out = append(out, v)
			}
		}
		return out
	}
	out := make([]string, len(q.projections))
	for i, p := range q.projections {
		out[i] = p.name
	}
	return out
}

type projection struct {
	name string
	expr expr
}

type groupCond struct {
	expr expr
	name string
}

type orderCond struct {
	expr expr
	desc bool
}

// Blank nodes in patterns become variables with this prefix; they never
// appear in SELECT * output.
const hiddenVarPrefix = "_:"

func isHiddenVar(name string) bool {
	return strings.HasPrefix(name, hiddenVarPrefix)
}

// node is a variable or a constant term in a triple pattern.
type node struct {
	name string
	term ontology.Term
}

func (n node) isVar() bool { return n.name != "" }

type pattern interface {
	patternNode()
}

type groupPattern struct {
	elems   []pattern
	filters []expr
}

type triplePattern struct {
	s    node
	p    node
	path path
	o    node
}

type bgp struct {
	triples []triplePattern
}

type unionPattern struct {
	alts []*groupPattern
}

type optionalPattern struct {
	group *groupPattern
}

type minusPattern struct {
	group *groupPattern
}

type bindPattern struct {
	expr expr
	name string
}

type valuesPattern struct {
	vars []string
	// rows hold zero Terms for UNDEF.
	rows [][]ontology.Term
}

type subSelect struct {
	query *Query
}

func (*groupPattern) patternNode()    {}
func (*bgp) patternNode()             {}
func (*unionPattern) patternNode()    {}
func (*optionalPattern) patternNode() {}
func (*minusPattern) patternNode()    {}
func (*bindPattern) patternNode()     {}
func (*valuesPattern) patternNode()   {}
func (*subSelect) patternNode()       {}

// Property paths.
type path interface {
	pathNode()
}

type linkPath struct{ iri string }
type inversePath struct{ inner path }
type seqPath struct{ parts []path }
type altPath struct{ alts []path }
type modPath struct {
	inner path
	mod   byte
}
type negatedPath struct {
	fwd []string
	inv []string
}

func (linkPath) pathNode()    {}
func (inversePath) pathNode() {}
func (seqPath) pathNode()     {}
func (altPath) pathNode()     {}
func (modPath) pathNode()     {}
func (negatedPath) pathNode() {}

// Expressions.
type expr interface {
	exprNode()
}

type varExpr struct{ name string }
type constExpr struct{ term ontology.Term }
type binaryExpr struct {
	op   string
	l, r expr
}
type unaryExpr struct {
	op string
	x  expr
}
type callExpr struct {
	// name is the upper-cased builtin name, or a datatype IRI for casts.
	name string
	args []expr
}
type existsExpr struct {
	not   bool
	group *groupPattern
}
type inExpr struct {
	x    expr
	list []expr
	not  bool
}
type aggExpr struct {
	name     string
	distinct bool
	star     bool
	arg      expr
	sep      string
}

func (varExpr) exprNode()    {}
func (constExpr) exprNode()  {}
func (binaryExpr) exprNode() {}
func (unaryExpr) exprNode()  {}
func (callExpr) exprNode()   {}
func (existsExpr) exprNode() {}
func (inExpr) exprNode()     {}
func (aggExpr) exprNode()    {}
