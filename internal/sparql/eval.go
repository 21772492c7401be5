package sparql

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

// Binding maps variable names to terms. Unbound variables are absent.
type Binding map[string]ontology.Term

// Result is the outcome of running a query.
type Result struct {
	Form Form
	// Boolean is the answer of an ASK query.
	Boolean bool
	// Vars is the projected variable order of a SELECT query.
	Vars []string
	// Rows are the solutions of a SELECT query, in result order.
	Rows []Binding
}

// IsBoolean reports whether the result came from an ASK query.
func (r *Result) IsBoolean() bool {
	return r.Form == FormAsk
}

// Exec parses src with the graph's declared prefixes and runs it against g.
func Exec(ctx context.Context, g *ontology.Graph, src string) (*Result, error) {
	q, err := Parse(src, WithPrefixes(g.Prefixes()))
	if err != nil {
		return nil, err
	}
	return q.Evaluate(ctx, g)
}

// Evaluate runs the query against g. The graph is only read.
func (q *Query) Evaluate(ctx context.Context, g *ontology.Graph) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &EvalError{Msg: fmt.Sprint(r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "query interrupted")
	}

	e := &evaluator{ctx: ctx, g: g, regex: make(map[string]*regexp.Regexp)}
	sols, err := e.group(q.where, []Binding{{}}, true)
	if err != nil {
		return nil, err
	}
	if q.Form == FormAsk {
		return &Result{Form: FormAsk, Boolean: len(sols) > 0}, nil
	}

	rows, err := e.solve(q, sols)
	if err != nil {
		return nil, err
	}
	return &Result{Form: FormSelect, Vars: q.Vars(), Rows: rows}, nil
}

type evaluator struct {
	ctx   context.Context
	g     *ontology.Graph
	steps int
	regex map[string]*regexp.Regexp
	nodes []ontology.Term
}

// tick checks for cancellation every so often.
func (e *evaluator) tick() error {
	e.steps++
	if e.steps&1023 != 0 {
		return nil
	}
	if err := e.ctx.Err(); err != nil {
		return errors.Wrap(err, "query interrupted")
	}
	return nil
}

// allNodes returns every subject and object in the graph.
func (e *evaluator) allNodes() []ontology.Term {
	if e.nodes != nil {
		return e.nodes
	}
	seen := make(map[string]struct{})
	nodes := []ontology.Term{}
	add := func(t ontology.Term) {
		if _, ok := seen[t.Key()]; !ok {
			seen[t.Key()] = struct{}{}
			nodes = append(nodes, t)
		}
	}
	for _, t := range e.g.Triples() {
		add(t.Subject)
		add(t.Object)
	}
	e.nodes = nodes
	return nodes
}

// Graph patterns.

func (e *evaluator) group(gp *groupPattern, seed []Binding, applyFilters bool) ([]Binding, error) {
	sols := seed
	for _, el := range gp.elems {
		var err error
		switch el := el.(type) {
		case *bgp:
			sols, err = e.bgp(el, sols)
		case *groupPattern:
			var right []Binding
			if right, err = e.group(el, []Binding{{}}, true); err == nil {
				sols, err = e.join(sols, right)
			}
		case *unionPattern:
			var right []Binding
			for _, alt := range el.alts {
				var part []Binding
				if part, err = e.group(alt, []Binding{{}}, true); err != nil {
					break
				}
				right = append(right, part...)
			}
			if err == nil {
				sols, err = e.join(sols, right)
			}
		case *optionalPattern:
			var right []Binding
			if right, err = e.group(el.group, []Binding{{}}, false); err == nil {
				sols, err = e.leftJoin(sols, right, el.group.filters)
			}
		case *minusPattern:
			var right []Binding
			if right, err = e.group(el.group, []Binding{{}}, true); err == nil {
				sols = minus(sols, right)
			}
		case *bindPattern:
			sols = e.bind(el, sols)
		case *valuesPattern:
			sols, err = e.join(sols, el.bindings())
		case *subSelect:
			var inner []Binding
			if inner, err = e.group(el.query.where, []Binding{{}}, true); err == nil {
				var rows []Binding
				if rows, err = e.solve(el.query, inner); err == nil {
					sols, err = e.join(sols, rows)
				}
			}
		default:
			err = errors.Newf("unsupported pattern %T", el)
		}
		if err != nil {
			return nil, err
		}
	}

	if applyFilters && len(gp.filters) > 0 {
		sols = e.filter(sols, gp.filters)
	}
	return sols, nil
}

func (e *evaluator) filter(sols []Binding, filters []expr) []Binding {
	out := sols[:0:0]
	for _, mu := range sols {
		if e.holds(filters, mu) {
			out = append(out, mu)
		}
	}
	return out
}

// holds reports whether every filter evaluates to true; errors count as false.
func (e *evaluator) holds(filters []expr, mu Binding) bool {
	for _, f := range filters {
		v, err := e.eval(f, mu, nil)
		if err != nil {
			return false
		}
		ok, err := ebv(v)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func compatible(a, b Binding) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for k, v := range a {
		if w, ok := b[k]; ok && w.Key() != v.Key() {
			return false
		}
	}
	return true
}

func merge(a, b Binding) Binding {
	out := make(Binding, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (e *evaluator) join(left, right []Binding) ([]Binding, error) {
	var out []Binding
	for _, l := range left {
		for _, r := range right {
			if err := e.tick(); err != nil {
				return nil, err
			}
			if compatible(l, r) {
				out = append(out, merge(l, r))
			}
		}
	}
	return out, nil
}

func (e *evaluator) leftJoin(left, right []Binding, filters []expr) ([]Binding, error) {
	var out []Binding
	for _, l := range left {
		matched := false
		for _, r := range right {
			if err := e.tick(); err != nil {
				return nil, err
			}
			if !compatible(l, r) {
				continue
			}
			m := merge(l, r)
			if e.holds(filters, m) {
				out = append(out, m)
				matched = true
			}
		}
		if !matched {
			out = append(out, l)
		}
	}
	return out, nil
}

func minus(left, right []Binding) []Binding {
	var out []Binding
	for _, l := range left {
		removed := false
		for _, r := range right {
			if sharesVar(l, r) && compatible(l, r) {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, l)
		}
	}
	return out
}

func sharesVar(a, b Binding) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

func (e *evaluator) bind(b *bindPattern, sols []Binding) []Binding {
	out := make([]Binding, 0, len(sols))
	for _, mu := range sols {
		v, err := e.eval(b.expr, mu, nil)
		if err != nil {
			out = append(out, mu)
			continue
		}
		out = append(out, merge(mu, Binding{b.name: v}))
	}
	return out
}

func (vp *valuesPattern) bindings() []Binding {
	out := make([]Binding, 0, len(vp.rows))
	for _, row := range vp.rows {
		b := make(Binding, len(row))
		for i, t := range row {
			if !t.IsZero() {
				b[vp.vars[i]] = t
			}
		}
		out = append(out, b)
	}
	return out
}

// Basic graph patterns.

func (e *evaluator) bgp(b *bgp, in []Binding) ([]Binding, error) {
	if len(in) == 0 {
		return nil, nil
	}
	sols := in
	for _, tp := range orderTriples(b.triples, in[0]) {
		var next []Binding
		for _, mu := range sols {
			if err := e.tick(); err != nil {
				return nil, err
			}
			next = append(next, e.matchTriple(tp, mu)...)
		}
		sols = next
		if len(sols) == 0 {
			break
		}
	}
	return sols, nil
}

// orderTriples evaluates the most constrained patterns first: at each step
// the pattern with the most positions already bound is chosen.
func orderTriples(triples []triplePattern, seed Binding) []triplePattern {
	if len(triples) < 2 {
		return triples
	}
	bound := make(map[string]bool, len(seed))
	for k := range seed {
		bound[k] = true
	}
	score := func(tp triplePattern) int {
		n := 0
		for _, x := range []node{tp.s, tp.p, tp.o} {
			if !x.isVar() || bound[x.name] {
				n++
			}
		}
		if tp.path != nil {
			n--
		}
		return n
	}

	rest := append([]triplePattern(nil), triples...)
	out := make([]triplePattern, 0, len(triples))
	for len(rest) > 0 {
		best := 0
		for i := 1; i < len(rest); i++ {
			if score(rest[i]) > score(rest[best]) {
				best = i
			}
		}
		tp := rest[best]
		out = append(out, tp)
		rest = append(rest[:best], rest[best+1:]...)
		for _, x := range []node{tp.s, tp.p, tp.o} {
			if x.isVar() {
				bound[x.name] = true
			}
		}
	}
	return out
}

func resolve(n node, mu Binding) *ontology.Term {
	if !n.isVar() {
		t := n.term
		return &t
	}
	if t, ok := mu[n.name]; ok {
		return &t
	}
	return nil
}

// extend binds the variables of positions to terms, failing when a variable
// is already bound to a different term.
func extend(mu Binding, positions []node, terms []ontology.Term) (Binding, bool) {
	var out Binding
	for i, n := range positions {
		if !n.isVar() {
			continue
		}
		if cur, ok := mu[n.name]; ok {
			if cur.Key() != terms[i].Key() {
				return nil, false
			}
			continue
		}
		if cur, ok := out[n.name]; ok {
			if cur.Key() != terms[i].Key() {
				return nil, false
			}
			continue
		}
		if out == nil {
			out = make(Binding, len(mu)+len(positions))
			for k, v := range mu {
				out[k] = v
			}
		}
		out[n.name] = terms[i]
	}
	if out == nil {
		return mu, true
	}
	return out, true
}

func (e *evaluator) matchTriple(tp triplePattern, mu Binding) []Binding {
	s := resolve(tp.s, mu)
	o := resolve(tp.o, mu)

	var out []Binding
	if tp.path != nil {
		positions := []node{tp.s, tp.o}
		for _, pr := range e.pathPairs(tp.path, s, o) {
			if b, ok := extend(mu, positions, []ontology.Term{pr[0], pr[1]}); ok {
				out = append(out, b)
			}
		}
		return out
	}

	p := resolve(tp.p, mu)
	positions := []node{tp.s, tp.p, tp.o}
	for _, t := range e.g.Match(s, p, o) {
		if b, ok := extend(mu, positions, []ontology.Term{t.Subject, t.Predicate, t.Object}); ok {
			out = append(out, b)
		}
	}
	return out
}

// Solution modifiers.

type row struct {
	b   Binding
	grp []Binding
}

func (e *evaluator) solve(q *Query, sols []Binding) ([]Binding, error) {
	var rows []row
	if q.aggregated {
		rows = e.groupRows(q, sols)
		if len(q.having) > 0 {
			kept := rows[:0]
			for _, r := range rows {
				if e.holdsGroup(q.having, r) {
					kept = append(kept, r)
				}
			}
			rows = kept
		}
	} else {
		rows = make([]row, len(sols))
		for i, s := range sols {
			rows[i] = row{b: s}
		}
	}

	for i := range rows {
		for _, p := range q.projections {
			if p.expr == nil {
				continue
			}
			if v, err := e.eval(p.expr, rows[i].b, rows[i].grp); err == nil {
				rows[i].b = merge(rows[i].b, Binding{p.name: v})
			}
		}
	}

	if len(q.orderBy) > 0 {
		e.sortRows(q.orderBy, rows)
	}

	vars := q.Vars()
	out := make([]Binding, 0, len(rows))
	seen := make(map[string]struct{})
	for _, r := range rows {
		b := make(Binding, len(vars))
		for _, v := range vars {
			if t, ok := r.b[v]; ok {
				b[v] = t
			}
		}
		if q.Distinct {
			k := rowKey(vars, b)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, b)
	}

	if q.offset > 0 {
		if q.offset >= len(out) {
			out = out[:0]
		} else {
			out = out[q.offset:]
		}
	}
	if q.limit >= 0 && q.limit < len(out) {
		out = out[:q.limit]
	}
	return out, nil
}

func (e *evaluator) holdsGroup(conds []expr, r row) bool {
	for _, c := range conds {
		v, err := e.eval(c, r.b, r.grp)
		if err != nil {
			return false
		}
		if ok, err := ebv(v); err != nil || !ok {
			return false
		}
	}
	return true
}

func (e *evaluator) groupRows(q *Query, sols []Binding) []row {
	index := make(map[string]int)
	var rows []row
	for _, s := range sols {
		parts := make([]string, len(q.groupBy))
		gb := Binding{}
		for i, c := range q.groupBy {
			v, err := e.eval(c.expr, s, nil)
			if err != nil {
				continue
			}
			parts[i] = v.Key()
			if c.name != "" {
				gb[c.name] = v
			}
		}
		k := strings.Join(parts, "\x00")
		idx, ok := index[k]
		if !ok {
			idx = len(rows)
			index[k] = idx
			rows = append(rows, row{b: gb, grp: []Binding{}})
		}
		rows[idx].grp = append(rows[idx].grp, s)
	}
	if len(q.groupBy) == 0 && len(rows) == 0 {
		rows = []row{{b: Binding{}, grp: []Binding{}}}
	}
	return rows
}

func (e *evaluator) sortRows(conds []orderCond, rows []row) {
	keys := make([][]*ontology.Term, len(rows))
	for i, r := range rows {
		keys[i] = make([]*ontology.Term, len(conds))
		for j, c := range conds {
			if v, err := e.eval(c.expr, r.b, r.grp); err == nil {
				keys[i][j] = &v
			}
		}
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for j, c := range conds {
			cmp := orderCompare(ka[j], kb[j])
			if cmp == 0 {
				continue
			}
			if c.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	sorted := make([]row, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func rowKey(vars []string, b Binding) string {
	var sb strings.Builder
	for _, v := range vars {
		if t, ok := b[v]; ok {
			sb.WriteString(t.Key())
		}
		sb.WriteByte(0)
	}
	return sb.String()
}
