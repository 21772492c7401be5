package ontology

// Triple is a single RDF statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Graph is an indexed, duplicate-free set of triples. A Graph is built once
// by Parse and then only read; it is not safe for concurrent mutation.
type Graph struct {
	triples []Triple
	seen    map[[3]string]struct{}
	bySubj  map[string][]int
	byPred  map[string][]int
	byObj   map[string][]int

	prefixes map[string]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		seen:   make(map[[3]string]struct{}),
		bySubj: make(map[string][]int),
		byPred: make(map[string][]int),
		byObj:  make(map[string][]int),

		prefixes: make(map[string]string),
	}
}

// BindPrefix records a namespace prefix declared by the source document.
func (g *Graph) BindPrefix(prefix, namespace string) {
	g.prefixes[prefix] = namespace
}

// Prefixes returns a copy of the declared namespace prefixes.
func (g *Graph) Prefixes() map[string]string {
	out := make(map[string]string, len(g.prefixes))
	for k, v := range g.prefixes {
		out[k] = v
	}
	return out
}

// Add inserts a triple. Adding a triple that is already present is a no-op.
// Returns true if the triple was new.
func (g *Graph) Add(t Triple) bool {
	key := [3]string{t.Subject.Key(), t.Predicate.Key(), t.Object.Key()}
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}

	idx := len(g.triples)
	g.triples = append(g.triples, t)
	g.bySubj[key[0]] = append(g.bySubj[key[0]], idx)
	g.byPred[key[1]] = append(g.byPred[key[1]], idx)
	g.byObj[key[2]] = append(g.byObj[key[2]], idx)
	return true
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns all triples in insertion order. The slice must not be modified.
func (g *Graph) Triples() []Triple {
	return g.triples
}

// Has reports whether the exact triple is in the graph.
func (g *Graph) Has(s, p, o Term) bool {
	_, ok := g.seen[[3]string{s.Key(), p.Key(), o.Key()}]
	return ok
}

// Match returns the triples matching the pattern, where a nil position is a
// wildcard. Results are in insertion order.
func (g *Graph) Match(s, p, o *Term) []Triple {
	candidates, all := g.candidates(s, p, o)
	if all {
		out := make([]Triple, 0, len(g.triples))
		for _, t := range g.triples {
			if matches(t, s, p, o) {
				out = append(out, t)
			}
		}
		return out
	}

	out := make([]Triple, 0, len(candidates))
	for _, i := range candidates {
		t := g.triples[i]
		if matches(t, s, p, o) {
			out = append(out, t)
		}
	}
	return out
}

// candidates picks the smallest index for the bound positions. all is true
// when nothing is bound and a full scan is needed.
func (g *Graph) candidates(s, p, o *Term) (idx []int, all bool) {
	best := -1
	consider := func(list []int) {
		if best < 0 || len(list) < best {
			best = len(list)
			idx = list
		}
	}
	if s != nil {
		consider(g.bySubj[s.Key()])
	}
	if p != nil {
		consider(g.byPred[p.Key()])
	}
	if o != nil {
		consider(g.byObj[o.Key()])
	}
	return idx, best < 0
}

func matches(t Triple, s, p, o *Term) bool {
	if s != nil && t.Subject != *s {
		return false
	}
	if p != nil && t.Predicate != *p {
		return false
	}
	if o != nil && t.Object != *o {
		return false
	}
	return true
}

// Objects returns the objects of all (s, p, ?) triples.
func (g *Graph) Objects(s Term, p string) []Term {
	pred := NewIRI(p)
	var out []Term
	for _, t := range g.Match(&s, &pred, nil) {
		out = append(out, t.Object)
	}
	return out
}

// Subjects returns the subjects of all (?, p, o) triples.
func (g *Graph) Subjects(p string, o Term) []Term {
	pred := NewIRI(p)
	var out []Term
	for _, t := range g.Match(nil, &pred, &o) {
		out = append(out, t.Subject)
	}
	return out
}

// WithPredicate returns all triples using predicate p.
func (g *Graph) WithPredicate(p string) []Triple {
	pred := NewIRI(p)
	return g.Match(nil, &pred, nil)
}

// InstancesOf returns the subjects typed rdf:type class.
func (g *Graph) InstancesOf(class string) []Term {
	return g.Subjects(RDFType, NewIRI(class))
}

// List walks an RDF collection starting at head and returns its members.
// ok is false when the structure is not a well-formed, acyclic list.
func (g *Graph) List(head Term) (members []Term, ok bool) {
	visited := make(map[string]bool)
	cur := head
	for {
		if cur.IsIRI() && cur.Value == RDFNil {
			return members, true
		}
		if visited[cur.Key()] {
			return nil, false
		}
		visited[cur.Key()] = true

		firsts := g.Objects(cur, RDFFirst)
		rests := g.Objects(cur, RDFRest)
		if len(firsts) != 1 || len(rests) != 1 {
			return nil, false
		}
		members = append(members, firsts[0])
		cur = rests[0]
	}
}
