// Package reasoner detects logical contradictions in an ontology graph.
//
// The reasoner covers a sound but incomplete fragment of OWL 2: class
// subsumption and disjointness, existential restrictions, property domains
// and ranges, property characteristics, individual identity and datatype
// ranges. Anything it reports is a real contradiction; some contradictions
// that need full tableau reasoning go unnoticed.
//
// Each call to Reason opens a new Session over the graph and closes it
// before returning, so no inferred state survives between documents.
package reasoner

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/LyzardKing/llm-owl/internal/graph"
	"github.com/LyzardKing/llm-owl/internal/ontology"
)

// MsgInconsistent is the single issue reported for a globally contradictory ontology.
const MsgInconsistent = "The ontology is inconsistent"

// ErrSessionClosed is returned by Run on a closed session.
var ErrSessionClosed = errors.New("reasoner session closed")

// Result is the outcome of one reasoning session.
type Result struct {
	// Consistent is false when the ontology as a whole has no model.
	Consistent bool
	// Clash explains the first contradiction found when Consistent is false.
	Clash string
	// UnsatisfiableClasses lists the named classes that can have no members,
	// as IRIs sorted by local name. Empty when Consistent is false.
	UnsatisfiableClasses []string
}

// Issues converts the result into the human-readable issue list. An empty
// list means the ontology is consistent and every named class is satisfiable.
func (r Result) Issues() []string {
	if !r.Consistent {
		return []string{MsgInconsistent}
	}
	if len(r.UnsatisfiableClasses) == 0 {
		return nil
	}
	names := make([]string, len(r.UnsatisfiableClasses))
	for i, iri := range r.UnsatisfiableClasses {
		names[i] = ontology.LocalName(iri)
	}
	return []string{"There are inconsistent classes in the ontology: " + strings.Join(names, ", ")}
}

// CheckConsistency reasons over g and returns the issue list. It never fails:
// a session that cannot run is reported as an issue.
func CheckConsistency(g *ontology.Graph) []string {
	return Reason(g).Issues()
}

// Reason runs a fresh session over g.
func Reason(g *ontology.Graph) Result {
	s := NewSession(g)
	defer s.Close()

	res, err := s.Run()
	if err != nil {
		return Result{Consistent: false, Clash: err.Error()}
	}
	return res
}

// Session holds the inferred state for one graph. It is single-use and not
// safe for concurrent use.
type Session struct {
	g      *ontology.Graph
	closed bool

	classes  *graph.Hierarchy
	props    *graph.Hierarchy
	terms    map[string]ontology.Term
	disjoint map[string]map[string]struct{}
	unsat    map[string]struct{}

	// someValues maps a restriction node to its (property, filler) pairs.
	someValues map[string][]restriction
	// schema holds keys of class expressions and properties, which are never individuals.
	schema map[string]struct{}
}

type restriction struct {
	property string
	filler   string
}

// NewSession creates a session over g. The graph is only read.
func NewSession(g *ontology.Graph) *Session {
	return &Session{
		g:          g,
		classes:    graph.New(),
		props:      graph.New(),
		terms:      make(map[string]ontology.Term),
		disjoint:   make(map[string]map[string]struct{}),
		unsat:      make(map[string]struct{}),
		someValues: make(map[string][]restriction),
		schema:     make(map[string]struct{}),
	}
}

// Close releases the inferred state.
func (s *Session) Close() {
	s.closed = true
	s.g = nil
	s.classes = nil
	s.props = nil
	s.terms = nil
	s.disjoint = nil
	s.unsat = nil
	s.someValues = nil
	s.schema = nil
}

// Run classifies the ontology and checks the individuals against it.
func (s *Session) Run() (Result, error) {
	if s.closed {
		return Result{}, ErrSessionClosed
	}

	s.buildProperties()
	s.buildClasses()
	s.computeUnsatisfiable()

	if clash := s.checkIndividuals(); clash != "" {
		return Result{Consistent: false, Clash: clash}, nil
	}

	var named []string
	for key := range s.unsat {
		t := s.terms[key]
		if !t.IsIRI() || t.Value == ontology.OWLNothing {
			continue
		}
		named = append(named, t.Value)
	}
	sort.Slice(named, func(i, j int) bool {
		li, lj := ontology.LocalName(named[i]), ontology.LocalName(named[j])
		if li != lj {
			return li < lj
		}
		return named[i] < named[j]
	})

	return Result{Consistent: true, UnsatisfiableClasses: named}, nil
}

// node registers a term as a class-hierarchy node and returns its key.
func (s *Session) node(t ontology.Term) string {
	key := t.Key()
	s.terms[key] = t
	s.classes.AddNode(key)
	s.schema[key] = struct{}{}
	return key
}

func (s *Session) addDisjoint(a, b string) {
	if s.disjoint[a] == nil {
		s.disjoint[a] = make(map[string]struct{})
	}
	if s.disjoint[b] == nil {
		s.disjoint[b] = make(map[string]struct{})
	}
	s.disjoint[a][b] = struct{}{}
	s.disjoint[b][a] = struct{}{}
}

func (s *Session) addPairwiseDisjoint(members []ontology.Term) {
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			s.addDisjoint(s.node(members[i]), s.node(members[j]))
		}
	}
}

// buildClasses derives the subsumption hierarchy and disjointness axioms.
func (s *Session) buildClasses() {
	g := s.g

	s.node(ontology.NewIRI(ontology.OWLThing))
	s.node(ontology.NewIRI(ontology.OWLNothing))

	for _, class := range []string{ontology.OWLClass, ontology.RDFSClass, ontology.OWLRestriction} {
		for _, c := range g.InstancesOf(class) {
			s.node(c)
		}
	}

	for _, t := range g.WithPredicate(ontology.RDFSSubClassOf) {
		s.classes.AddEdge(s.node(t.Subject), s.node(t.Object))
	}
	for _, t := range g.WithPredicate(ontology.OWLEquivalentClass) {
		a, b := s.node(t.Subject), s.node(t.Object)
		s.classes.AddEdge(a, b)
		s.classes.AddEdge(b, a)
	}
	for _, t := range g.WithPredicate(ontology.OWLIntersectionOf) {
		c := s.node(t.Subject)
		if members, ok := g.List(t.Object); ok {
			for _, m := range members {
				s.classes.AddEdge(c, s.node(m))
			}
		}
	}
	for _, t := range g.WithPredicate(ontology.OWLUnionOf) {
		c := s.node(t.Subject)
		if members, ok := g.List(t.Object); ok {
			for _, m := range members {
				s.classes.AddEdge(s.node(m), c)
			}
		}
	}
	for _, t := range g.WithPredicate(ontology.OWLDisjointUnionOf) {
		c := s.node(t.Subject)
		if members, ok := g.List(t.Object); ok {
			for _, m := range members {
				s.classes.AddEdge(s.node(m), c)
			}
			s.addPairwiseDisjoint(members)
		}
	}
	for _, t := range g.WithPredicate(ontology.OWLDisjointWith) {
		s.addDisjoint(s.node(t.Subject), s.node(t.Object))
	}
	for _, t := range g.WithPredicate(ontology.OWLComplementOf) {
		s.addDisjoint(s.node(t.Subject), s.node(t.Object))
	}
	for _, axiom := range g.InstancesOf(ontology.OWLAllDisjointClasses) {
		for _, list := range g.Objects(axiom, ontology.OWLMembers) {
			if members, ok := g.List(list); ok {
				s.addPairwiseDisjoint(members)
			}
		}
	}

	// Existential restrictions: anything in ∃p.F is in the domain of p.
	for _, r := range g.InstancesOf(ontology.OWLRestriction) {
		key := s.node(r)
		for _, p := range g.Objects(r, ontology.OWLOnProperty) {
			if !p.IsIRI() {
				continue
			}
			for _, f := range g.Objects(r, ontology.OWLSomeValuesFrom) {
				if f.IsLiteral() {
					continue
				}
				s.someValues[key] = append(s.someValues[key], restriction{property: p.Value, filler: s.node(f)})
			}
			for _, d := range s.domains(p.Value) {
				s.classes.AddEdge(key, s.node(d))
			}
		}
	}
}

// buildProperties derives the property hierarchy.
func (s *Session) buildProperties() {
	for _, t := range s.g.WithPredicate(ontology.RDFSSubPropertyOf) {
		if t.Subject.IsIRI() && t.Object.IsIRI() {
			s.props.AddEdge(t.Subject.Value, t.Object.Value)
			s.schema[t.Subject.Key()] = struct{}{}
			s.schema[t.Object.Key()] = struct{}{}
		}
	}
	for _, t := range s.g.WithPredicate(ontology.OWLEquivalentProperty) {
		if t.Subject.IsIRI() && t.Object.IsIRI() {
			s.props.AddEdge(t.Subject.Value, t.Object.Value)
			s.props.AddEdge(t.Object.Value, t.Subject.Value)
			s.schema[t.Subject.Key()] = struct{}{}
			s.schema[t.Object.Key()] = struct{}{}
		}
	}
	for _, class := range propertyClasses {
		for _, p := range s.g.InstancesOf(class) {
			s.schema[p.Key()] = struct{}{}
			if p.IsIRI() {
				s.props.AddNode(p.Value)
			}
		}
	}
	for _, pred := range []string{ontology.RDFSDomain, ontology.RDFSRange, ontology.OWLInverseOf} {
		for _, t := range s.g.WithPredicate(pred) {
			s.schema[t.Subject.Key()] = struct{}{}
		}
	}
}

var propertyClasses = []string{
	ontology.RDFNS + "Property",
	ontology.OWLObjectProperty,
	ontology.OWLDatatypeProperty,
	ontology.OWLAnnotationProperty,
	ontology.OWLFunctionalProperty,
	ontology.OWLNS + "InverseFunctionalProperty",
	ontology.OWLNS + "TransitiveProperty",
	ontology.OWLNS + "SymmetricProperty",
	ontology.OWLIrreflexiveProperty,
	ontology.OWLAsymmetricProperty,
	ontology.OWLNS + "ReflexiveProperty",
}

// domains returns the rdfs:domain classes of p and its super-properties.
func (s *Session) domains(p string) []ontology.Term {
	return s.propertyObjects(p, ontology.RDFSDomain)
}

// ranges returns the rdfs:range classes or datatypes of p and its super-properties.
func (s *Session) ranges(p string) []ontology.Term {
	return s.propertyObjects(p, ontology.RDFSRange)
}

func (s *Session) propertyObjects(p, pred string) []ontology.Term {
	var out []ontology.Term
	for _, q := range s.props.Ancestors(p) {
		out = append(out, s.g.Objects(ontology.NewIRI(q), pred)...)
	}
	return out
}

// clashIn returns a description of the first contradiction among a set of
// class keys, or "" if the set is jointly satisfiable as far as we can tell.
func (s *Session) clashIn(keys map[string]struct{}) string {
	nothing := ontology.NewIRI(ontology.OWLNothing).Key()
	if _, ok := keys[nothing]; ok {
		return "owl:Nothing"
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, a := range sorted {
		if _, ok := s.unsat[a]; ok {
			return "unsatisfiable class " + s.display(a)
		}
		for b := range s.disjoint[a] {
			if _, ok := keys[b]; ok {
				x, y := s.display(a), s.display(b)
				if y < x {
					x, y = y, x
				}
				return "disjoint classes " + x + " and " + y
			}
		}
	}
	return ""
}

// closure returns the union of the ancestors of the given class keys.
func (s *Session) closure(keys ...string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, k := range keys {
		for _, a := range s.classes.Ancestors(k) {
			out[a] = struct{}{}
		}
	}
	return out
}

// computeUnsatisfiable marks every class node that provably has no members.
// Iterates to a fixpoint because unsatisfiability flows upward through
// existential restrictions.
func (s *Session) computeUnsatisfiable() {
	nodes := s.classes.Nodes()
	for changed := true; changed; {
		changed = false
		for _, n := range nodes {
			if _, ok := s.unsat[n]; ok {
				continue
			}
			if s.nodeUnsatisfiable(n) {
				s.unsat[n] = struct{}{}
				changed = true
			}
		}
	}
}

func (s *Session) nodeUnsatisfiable(n string) bool {
	anc := s.closure(n)
	for a := range anc {
		if a == n {
			continue
		}
		if _, ok := s.unsat[a]; ok {
			return true
		}
	}
	if s.clashIn(anc) != "" {
		return true
	}

	// ∃p.F is empty when F is empty or F cannot meet the range of p.
	for _, r := range s.someValues[n] {
		if _, ok := s.unsat[r.filler]; ok {
			return true
		}
		members := []string{r.filler}
		for _, rg := range s.ranges(r.property) {
			if !isDatatype(rg) {
				members = append(members, s.node(rg))
			}
		}
		if len(members) > 1 && s.clashIn(s.closure(members...)) != "" {
			return true
		}
	}
	return false
}

// display renders a class key for explanations.
func (s *Session) display(key string) string {
	t, ok := s.terms[key]
	if !ok {
		return key
	}
	return displayTerm(t)
}

func displayTerm(t ontology.Term) string {
	switch {
	case t.IsIRI():
		return t.LocalName()
	case t.IsBlank():
		return "_:" + t.Value
	default:
		return t.Key()
	}
}
