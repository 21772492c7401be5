package sparql

import (
	"github.com/LyzardKing/llm-owl/internal/ontology"
)

type pair [2]ontology.Term

// pathPairs returns the (start, end) pairs connected by p. A nil s or o
// leaves that end open.
func (e *evaluator) pathPairs(p path, s, o *ontology.Term) []pair {
	switch p := p.(type) {
	case linkPath:
		pred := ontology.NewIRI(p.iri)
		triples := e.g.Match(s, &pred, o)
		out := make([]pair, len(triples))
		for i, t := range triples {
			out[i] = pair{t.Subject, t.Object}
		}
		return out

	case inversePath:
		inner := e.pathPairs(p.inner, o, s)
		out := make([]pair, len(inner))
		for i, pr := range inner {
			out[i] = pair{pr[1], pr[0]}
		}
		return out

	case altPath:
		var out []pair
		for _, alt := range p.alts {
			out = append(out, e.pathPairs(alt, s, o)...)
		}
		return out

	case seqPath:
		return e.seqPairs(p.parts, s, o)

	case negatedPath:
		return e.negatedPairs(p, s, o)

	case modPath:
		switch p.mod {
		case '?':
			return distinctPairs(append(e.zeroPairs(s, o), e.pathPairs(p.inner, s, o)...))
		case '*':
			return distinctPairs(append(e.zeroPairs(s, o), e.closurePairs(p.inner, s, o)...))
		default:
			return e.closurePairs(p.inner, s, o)
		}
	}
	return nil
}

func (e *evaluator) seqPairs(parts []path, s, o *ontology.Term) []pair {
	if len(parts) == 1 {
		return e.pathPairs(parts[0], s, o)
	}

	var out []pair
	if s == nil && o != nil {
		last := len(parts) - 1
		for _, r := range e.pathPairs(parts[last], nil, o) {
			mid := r[0]
			for _, l := range e.seqPairs(parts[:last], nil, &mid) {
				out = append(out, pair{l[0], r[1]})
			}
		}
		return out
	}

	for _, l := range e.pathPairs(parts[0], s, nil) {
		mid := l[1]
		for _, r := range e.seqPairs(parts[1:], &mid, o) {
			out = append(out, pair{l[0], r[1]})
		}
	}
	return out
}

func (e *evaluator) negatedPairs(p negatedPath, s, o *ontology.Term) []pair {
	excluded := func(list []string, iri string) bool {
		for _, x := range list {
			if x == iri {
				return true
			}
		}
		return false
	}

	var out []pair
	if len(p.fwd) > 0 || len(p.inv) == 0 {
		for _, t := range e.g.Match(s, nil, o) {
			if !excluded(p.fwd, t.Predicate.Value) {
				out = append(out, pair{t.Subject, t.Object})
			}
		}
	}
	if len(p.inv) > 0 {
		for _, t := range e.g.Match(o, nil, s) {
			if !excluded(p.inv, t.Predicate.Value) {
				out = append(out, pair{t.Object, t.Subject})
			}
		}
	}
	return out
}

// zeroPairs is the zero-length path: every node connected to itself.
func (e *evaluator) zeroPairs(s, o *ontology.Term) []pair {
	switch {
	case s != nil:
		if o == nil || o.Key() == s.Key() {
			return []pair{{*s, *s}}
		}
		return nil
	case o != nil:
		return []pair{{*o, *o}}
	}
	nodes := e.allNodes()
	out := make([]pair, len(nodes))
	for i, n := range nodes {
		out[i] = pair{n, n}
	}
	return out
}

// closurePairs is the one-or-more path.
func (e *evaluator) closurePairs(inner path, s, o *ontology.Term) []pair {
	var out []pair
	switch {
	case s != nil:
		for _, r := range e.reach(inner, *s, false) {
			if o == nil || o.Key() == r.Key() {
				out = append(out, pair{*s, r})
			}
		}
	case o != nil:
		for _, r := range e.reach(inner, *o, true) {
			out = append(out, pair{r, *o})
		}
	default:
		for _, n := range e.allNodes() {
			for _, r := range e.reach(inner, n, false) {
				out = append(out, pair{n, r})
			}
		}
	}
	return out
}

// reach returns the nodes reachable from start in one or more steps of
// inner, following it backwards when backward is set. The start node is
// included only when a cycle leads back to it.
func (e *evaluator) reach(inner path, start ontology.Term, backward bool) []ontology.Term {
	seen := make(map[string]struct{})
	var out []ontology.Term
	frontier := []ontology.Term{start}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		var steps []pair
		if backward {
			steps = e.pathPairs(inner, nil, &cur)
		} else {
			steps = e.pathPairs(inner, &cur, nil)
		}
		for _, st := range steps {
			next := st[1]
			if backward {
				next = st[0]
			}
			if _, ok := seen[next.Key()]; ok {
				continue
			}
			seen[next.Key()] = struct{}{}
			out = append(out, next)
			frontier = append(frontier, next)
		}
	}
	return out
}

func distinctPairs(in []pair) []pair {
	seen := make(map[[2]string]struct{}, len(in))
	out := in[:0:0]
	for _, p := range in {
		k := [2]string{p[0].Key(), p[1].Key()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
