package sparql

import (
	"fmt"
	"strings"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

// DefaultPrefixes are available in every query without a PREFIX declaration.
var DefaultPrefixes = map[string]string{
	"rdf":  ontology.RDFNS,
	"rdfs": ontology.RDFSNS,
	"owl":  ontology.OWLNS,
	"xsd":  ontology.XSDNS,
}

var builtins = map[string]bool{
	"BOUND": true, "IF": true, "COALESCE": true,
	"ISIRI": true, "ISURI": true, "ISBLANK": true, "ISLITERAL": true, "ISNUMERIC": true,
	"STR": true, "LANG": true, "LANGMATCHES": true, "DATATYPE": true, "IRI": true, "URI": true,
	"STRLEN": true, "SUBSTR": true, "UCASE": true, "LCASE": true,
	"STRSTARTS": true, "STRENDS": true, "CONTAINS": true, "STRBEFORE": true, "STRAFTER": true,
	"CONCAT": true, "REGEX": true, "REPLACE": true,
	"ABS": true, "ROUND": true, "CEIL": true, "FLOOR": true,
	"SAMETERM": true, "STRDT": true, "STRLANG": true,
	"YEAR": true, "MONTH": true, "DAY": true,
}

var aggregates = map[string]bool{
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true, "AVG": true, "SAMPLE": true, "GROUP_CONCAT": true,
}

// casts are the datatype IRIs usable as constructor functions.
var casts = map[string]bool{
	ontology.XSDString:  true,
	ontology.XSDInteger: true,
	ontology.XSDInt:     true,
	ontology.XSDDecimal: true,
	ontology.XSDDouble:  true,
	ontology.XSDFloat:   true,
	ontology.XSDBoolean: true,
}

// Option configures Parse.
type Option func(*parser)

// WithPrefixes makes additional namespace prefixes available to the query.
// PREFIX declarations in the query take precedence.
func WithPrefixes(prefixes map[string]string) Option {
	return func(p *parser) {
		for k, v := range prefixes {
			p.prefixes[k] = v
		}
	}
}

// WithBase sets the base IRI for relative IRI references.
func WithBase(iri string) Option {
	return func(p *parser) { p.base = iri }
}

type parser struct {
	toks []token
	pos  int

	prefixes map[string]string
	base     string

	anon       int
	blankVars  map[string]string
	vars       []string
	seen       map[string]bool
	aggregated bool
}

type bailout struct{ err *ParseError }

// Parse parses a SELECT or ASK query.
func Parse(src string, opts ...Option) (q *Query, err error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{
		toks:      toks,
		prefixes:  make(map[string]string),
		blankVars: make(map[string]string),
		seen:      make(map[string]bool),
	}
	for k, v := range DefaultPrefixes {
		p.prefixes[k] = v
	}
	for _, opt := range opts {
		opt(p)
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			q, err = nil, b.err
		}
	}()

	return p.parseQuery(), nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(format string, args ...interface{}) {
	t := p.peek()
	panic(bailout{newParseError(t.line, t.col, format, args...)})
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.val == s
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) {
	if !p.acceptPunct(s) {
		p.fail("expected %q, found %s", s, p.peek())
	}
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.val, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) {
	if !p.acceptKeyword(kw) {
		p.fail("expected %s, found %s", kw, p.peek())
	}
}

func (p *parser) expectVar() string {
	t := p.peek()
	if t.kind != tokVar {
		p.fail("expected variable, found %s", t)
	}
	p.next()
	return t.val
}

func (p *parser) noteVar(name string) {
	if !p.seen[name] {
		p.seen[name] = true
		p.vars = append(p.vars, name)
	}
}

func (p *parser) freshVar() node {
	p.anon++
	name := fmt.Sprintf("%sanon%d", hiddenVarPrefix, p.anon)
	return node{name: name}
}

func (p *parser) parseQuery() *Query {
	p.parsePrologue()

	var q *Query
	switch {
	case p.acceptKeyword("SELECT"):
		q = p.parseSelect()
	case p.acceptKeyword("ASK"):
		q = p.parseAsk()
	case p.isKeyword("CONSTRUCT"), p.isKeyword("DESCRIBE"):
		p.fail("%s queries are not supported", strings.ToUpper(p.peek().val))
	default:
		p.fail("expected SELECT or ASK, found %s", p.peek())
	}

	if p.acceptKeyword("VALUES") {
		q.where.elems = append(q.where.elems, p.parseValues())
	}
	if p.peek().kind != tokEOF {
		p.fail("unexpected %s after query", p.peek())
	}
	return q
}

func (p *parser) parsePrologue() {
	for {
		switch {
		case p.acceptKeyword("BASE"):
			t := p.next()
			if t.kind != tokIRI {
				p.fail("expected IRI after BASE")
			}
			p.base = p.resolveIRI(t.val)
		case p.acceptKeyword("PREFIX"):
			t := p.next()
			if t.kind != tokPName || !strings.HasSuffix(t.val, ":") {
				p.fail("expected prefix name after PREFIX, found %s", t)
			}
			iri := p.next()
			if iri.kind != tokIRI {
				p.fail("expected IRI for prefix %q", t.val)
			}
			p.prefixes[strings.TrimSuffix(t.val, ":")] = p.resolveIRI(iri.val)
		default:
			return
		}
	}
}

// beginScope starts a new variable scope for a (sub)query and returns a
// function that restores the enclosing one.
func (p *parser) beginScope() func() {
	vars, seen, agg := p.vars, p.seen, p.aggregated
	p.vars, p.seen, p.aggregated = nil, make(map[string]bool), false
	return func() {
		p.vars, p.seen, p.aggregated = vars, seen, agg
	}
}

func (p *parser) parseSelect() *Query {
	restore := p.beginScope()
	defer restore()

	q := &Query{Form: FormSelect, limit: -1}
	if p.acceptKeyword("DISTINCT") {
		q.Distinct = true
	} else {
		p.acceptKeyword("REDUCED")
	}

	if p.acceptPunct("*") {
		q.star = true
	} else {
		for {
			if t := p.peek(); t.kind == tokVar {
				p.next()
				q.projections = append(q.projections, projection{name: t.val})
				continue
			}
			if p.acceptPunct("(") {
				e := p.parseExpr()
				p.expectKeyword("AS")
				name := p.expectVar()
				p.expectPunct(")")
				q.projections = append(q.projections, projection{name: name, expr: e})
				continue
			}
			break
		}
		if len(q.projections) == 0 {
			p.fail("expected variables or * after SELECT, found %s", p.peek())
		}
	}

	p.parseDataset()
	p.acceptKeyword("WHERE")
	q.where = p.parseGroup()
	p.parseModifiers(q)

	q.patternVars = p.vars
	q.aggregated = p.aggregated || len(q.groupBy) > 0
	if q.aggregated && q.star {
		p.fail("SELECT * cannot be used with GROUP BY or aggregates")
	}
	return q
}

func (p *parser) parseAsk() *Query {
	restore := p.beginScope()
	defer restore()

	q := &Query{Form: FormAsk, limit: -1}
	p.parseDataset()
	p.acceptKeyword("WHERE")
	q.where = p.parseGroup()
	p.parseModifiers(q)
	q.patternVars = p.vars
	q.aggregated = p.aggregated || len(q.groupBy) > 0
	return q
}

func (p *parser) parseDataset() {
	if p.isKeyword("FROM") {
		p.fail("FROM clauses are not supported; queries run against the ontology graph")
	}
}

func (p *parser) parseModifiers(q *Query) {
	if p.acceptKeyword("GROUP") {
		p.expectKeyword("BY")
		for {
			c, ok := p.parseGroupCond()
			if !ok {
				break
			}
			q.groupBy = append(q.groupBy, c)
		}
		if len(q.groupBy) == 0 {
			p.fail("expected grouping condition, found %s", p.peek())
		}
	}

	if p.acceptKeyword("HAVING") {
		for p.startsConstraint() {
			q.having = append(q.having, p.parseConstraint())
		}
		if len(q.having) == 0 {
			p.fail("expected HAVING condition, found %s", p.peek())
		}
		p.aggregated = true
	}

	if p.acceptKeyword("ORDER") {
		p.expectKeyword("BY")
		for {
			switch {
			case p.isKeyword("ASC"), p.isKeyword("DESC"):
				desc := strings.EqualFold(p.next().val, "DESC")
				p.expectPunct("(")
				e := p.parseExpr()
				p.expectPunct(")")
				q.orderBy = append(q.orderBy, orderCond{expr: e, desc: desc})
				continue
			case p.peek().kind == tokVar:
				q.orderBy = append(q.orderBy, orderCond{expr: varExpr{name: p.next().val}})
				continue
			case p.startsConstraint():
				q.orderBy = append(q.orderBy, orderCond{expr: p.parseConstraint()})
				continue
			}
			break
		}
		if len(q.orderBy) == 0 {
			p.fail("expected ORDER BY condition, found %s", p.peek())
		}
	}

	for i := 0; i < 2; i++ {
		switch {
		case p.acceptKeyword("LIMIT"):
			q.limit = p.parseCount("LIMIT")
		case p.acceptKeyword("OFFSET"):
			q.offset = p.parseCount("OFFSET")
		}
	}
}

func (p *parser) parseCount(kw string) int {
	t := p.peek()
	if t.kind != tokInteger {
		p.fail("expected integer after %s, found %s", kw, t)
	}
	p.next()
	var n int
	if _, err := fmt.Sscan(t.val, &n); err != nil || n < 0 {
		p.fail("invalid %s %q", kw, t.val)
	}
	return n
}

func (p *parser) parseGroupCond() (groupCond, bool) {
	t := p.peek()
	switch {
	case t.kind == tokVar:
		p.next()
		return groupCond{expr: varExpr{name: t.val}, name: t.val}, true
	case p.acceptPunct("("):
		e := p.parseExpr()
		name := ""
		if p.acceptKeyword("AS") {
			name = p.expectVar()
		}
		p.expectPunct(")")
		return groupCond{expr: e, name: name}, true
	case p.startsConstraint():
		return groupCond{expr: p.parseConstraint()}, true
	}
	return groupCond{}, false
}

func (p *parser) startsConstraint() bool {
	t := p.peek()
	switch t.kind {
	case tokPunct:
		return t.val == "("
	case tokIdent:
		u := strings.ToUpper(t.val)
		return builtins[u] || aggregates[u] || u == "NOT" || u == "EXISTS"
	case tokIRI, tokPName:
		next := p.peekAt(1)
		return next.kind == tokPunct && next.val == "("
	}
	return false
}

func (p *parser) parseConstraint() expr {
	if p.acceptPunct("(") {
		e := p.parseExpr()
		p.expectPunct(")")
		return e
	}
	return p.parsePrimary()
}

// Graph patterns.

func (p *parser) parseGroup() *groupPattern {
	p.expectPunct("{")

	if p.acceptKeyword("SELECT") {
		sub := p.parseSelect()
		p.expectPunct("}")
		for _, v := range sub.Vars() {
			p.noteVar(v)
		}
		return &groupPattern{elems: []pattern{&subSelect{query: sub}}}
	}

	gp := &groupPattern{}
	for {
		switch {
		case p.acceptPunct("}"):
			return gp
		case p.acceptPunct("."):
		case p.isPunct("{"):
			alts := []*groupPattern{p.parseGroup()}
			for p.acceptKeyword("UNION") {
				alts = append(alts, p.parseGroup())
			}
			if len(alts) == 1 {
				gp.elems = append(gp.elems, alts[0])
			} else {
				gp.elems = append(gp.elems, &unionPattern{alts: alts})
			}
		case p.acceptKeyword("OPTIONAL"):
			gp.elems = append(gp.elems, &optionalPattern{group: p.parseGroup()})
		case p.acceptKeyword("MINUS"):
			gp.elems = append(gp.elems, &minusPattern{group: p.parseGroup()})
		case p.acceptKeyword("FILTER"):
			gp.filters = append(gp.filters, p.parseConstraint())
		case p.acceptKeyword("BIND"):
			p.expectPunct("(")
			e := p.parseExpr()
			p.expectKeyword("AS")
			name := p.expectVar()
			p.expectPunct(")")
			p.noteVar(name)
			gp.elems = append(gp.elems, &bindPattern{expr: e, name: name})
		case p.acceptKeyword("VALUES"):
			gp.elems = append(gp.elems, p.parseValues())
		case p.isKeyword("GRAPH"), p.isKeyword("SERVICE"):
			p.fail("%s patterns are not supported", strings.ToUpper(p.peek().val))
		case p.startsTriple():
			gp.elems = append(gp.elems, p.parseTriplesBlock())
		default:
			p.fail("unexpected %s in group pattern", p.peek())
		}
	}
}

func (p *parser) parseValues() *valuesPattern {
	vp := &valuesPattern{}
	if t := p.peek(); t.kind == tokVar {
		p.next()
		p.noteVar(t.val)
		vp.vars = []string{t.val}
		p.expectPunct("{")
		for !p.acceptPunct("}") {
			vp.rows = append(vp.rows, []ontology.Term{p.parseDataValue()})
		}
		return vp
	}

	p.expectPunct("(")
	for !p.acceptPunct(")") {
		name := p.expectVar()
		p.noteVar(name)
		vp.vars = append(vp.vars, name)
	}
	p.expectPunct("{")
	for !p.acceptPunct("}") {
		p.expectPunct("(")
		var row []ontology.Term
		for !p.acceptPunct(")") {
			row = append(row, p.parseDataValue())
		}
		if len(row) != len(vp.vars) {
			p.fail("VALUES row has %d values for %d variables", len(row), len(vp.vars))
		}
		vp.rows = append(vp.rows, row)
	}
	return vp
}

func (p *parser) parseDataValue() ontology.Term {
	if p.acceptKeyword("UNDEF") {
		return ontology.Term{}
	}
	if t, ok := p.parseTerm(); ok {
		return t
	}
	p.fail("expected data value, found %s", p.peek())
	return ontology.Term{}
}

func (p *parser) startsTriple() bool {
	t := p.peek()
	switch t.kind {
	case tokVar, tokIRI, tokPName, tokBlank, tokString, tokInteger, tokDecimal, tokDouble:
		return true
	case tokIdent:
		return t.val == "true" || t.val == "false"
	case tokPunct:
		return t.val == "[" || t.val == "("
	}
	return false
}

func (p *parser) parseTriplesBlock() *bgp {
	b := &bgp{}
	for p.startsTriple() {
		p.parseTriplesSameSubject(b)
		if !p.acceptPunct(".") {
			break
		}
	}
	return b
}

func (p *parser) parseTriplesSameSubject(b *bgp) {
	if p.isPunct("[") {
		subj := p.parseBlankNodePropertyList(b)
		if p.startsVerb() {
			p.parsePropertyList(subj, b)
		}
		return
	}
	subj := p.parseGraphNode(b)
	p.parsePropertyList(subj, b)
}

func (p *parser) startsVerb() bool {
	t := p.peek()
	switch t.kind {
	case tokVar, tokIRI, tokPName:
		return true
	case tokIdent:
		return t.val == "a"
	case tokPunct:
		return t.val == "^" || t.val == "!" || t.val == "("
	}
	return false
}

func (p *parser) parsePropertyList(subj node, b *bgp) {
	for {
		if !p.startsVerb() {
			p.fail("expected predicate, found %s", p.peek())
		}
		pred, pth := p.parseVerb()
		for {
			obj := p.parseGraphNode(b)
			b.triples = append(b.triples, triplePattern{s: subj, p: pred, path: pth, o: obj})
			if !p.acceptPunct(",") {
				break
			}
		}
		if !p.acceptPunct(";") {
			return
		}
		for p.acceptPunct(";") {
		}
		if !p.startsVerb() {
			return
		}
	}
}

func (p *parser) parseVerb() (node, path) {
	t := p.peek()
	if t.kind == tokVar {
		p.next()
		p.noteVar(t.val)
		return node{name: t.val}, nil
	}
	pth := p.parsePathAlt()
	if link, ok := pth.(linkPath); ok {
		return node{term: ontology.NewIRI(link.iri)}, nil
	}
	return node{}, pth
}

func (p *parser) parseGraphNode(b *bgp) node {
	t := p.peek()
	switch {
	case t.kind == tokVar:
		p.next()
		p.noteVar(t.val)
		return node{name: t.val}
	case t.kind == tokBlank:
		p.next()
		name, ok := p.blankVars[t.val]
		if !ok {
			name = p.freshVar().name
			p.blankVars[t.val] = name
		}
		return node{name: name}
	case t.kind == tokPunct && t.val == "[":
		return p.parseBlankNodePropertyList(b)
	case t.kind == tokPunct && t.val == "(":
		return p.parseCollection(b)
	}
	if term, ok := p.parseTerm(); ok {
		return node{term: term}
	}
	p.fail("expected term or variable, found %s", t)
	return node{}
}

func (p *parser) parseBlankNodePropertyList(b *bgp) node {
	p.expectPunct("[")
	n := p.freshVar()
	if p.acceptPunct("]") {
		return n
	}
	p.parsePropertyList(n, b)
	p.expectPunct("]")
	return n
}

func (p *parser) parseCollection(b *bgp) node {
	p.expectPunct("(")
	var items []node
	for !p.acceptPunct(")") {
		items = append(items, p.parseGraphNode(b))
	}
	rdfNil := node{term: ontology.NewIRI(ontology.RDFNil)}
	if len(items) == 0 {
		return rdfNil
	}

	first := node{term: ontology.NewIRI(ontology.RDFFirst)}
	rest := node{term: ontology.NewIRI(ontology.RDFRest)}
	head := p.freshVar()
	cell := head
	for i, item := range items {
		b.triples = append(b.triples, triplePattern{s: cell, p: first, o: item})
		next := rdfNil
		if i < len(items)-1 {
			next = p.freshVar()
		}
		b.triples = append(b.triples, triplePattern{s: cell, p: rest, o: next})
		cell = next
	}
	return head
}

// Property paths.

func (p *parser) parsePathAlt() path {
	alts := []path{p.parsePathSeq()}
	for p.acceptPunct("|") {
		alts = append(alts, p.parsePathSeq())
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return altPath{alts: alts}
}

func (p *parser) parsePathSeq() path {
	parts := []path{p.parsePathEltOrInverse()}
	for p.acceptPunct("/") {
		parts = append(parts, p.parsePathEltOrInverse())
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return seqPath{parts: parts}
}

func (p *parser) parsePathEltOrInverse() path {
	if p.acceptPunct("^") {
		return inversePath{inner: p.parsePathElt()}
	}
	return p.parsePathElt()
}

func (p *parser) parsePathElt() path {
	prim := p.parsePathPrimary()
	if t := p.peek(); t.kind == tokPunct && (t.val == "*" || t.val == "+" || t.val == "?") {
		p.next()
		return modPath{inner: prim, mod: t.val[0]}
	}
	return prim
}

func (p *parser) parsePathPrimary() path {
	switch {
	case p.acceptPunct("("):
		inner := p.parsePathAlt()
		p.expectPunct(")")
		return inner
	case p.acceptPunct("!"):
		neg := negatedPath{}
		one := func() {
			inverse := p.acceptPunct("^")
			iri := p.parsePredicateIRI()
			if inverse {
				neg.inv = append(neg.inv, iri)
			} else {
				neg.fwd = append(neg.fwd, iri)
			}
		}
		if p.acceptPunct("(") {
			if !p.acceptPunct(")") {
				one()
				for p.acceptPunct("|") {
					one()
				}
				p.expectPunct(")")
			}
		} else {
			one()
		}
		return neg
	}
	return linkPath{iri: p.parsePredicateIRI()}
}

func (p *parser) parsePredicateIRI() string {
	t := p.peek()
	switch {
	case t.kind == tokIdent && t.val == "a":
		p.next()
		return ontology.RDFType
	case t.kind == tokIRI:
		p.next()
		return p.resolveIRI(t.val)
	case t.kind == tokPName:
		iri := p.resolvePName(t.val)
		p.next()
		return iri
	}
	p.fail("expected predicate, found %s", t)
	return ""
}

// Terms.

func (p *parser) resolveIRI(iri string) string {
	if p.base == "" || strings.Contains(iri, ":") {
		return iri
	}
	if strings.HasPrefix(iri, "#") {
		if i := strings.Index(p.base, "#"); i >= 0 {
			return p.base[:i] + iri
		}
		return p.base + iri
	}
	if i := strings.LastIndex(p.base, "/"); i >= 0 {
		return p.base[:i+1] + iri
	}
	return p.base + iri
}

func (p *parser) resolvePName(pname string) string {
	i := strings.Index(pname, ":")
	prefix, local := pname[:i], pname[i+1:]
	ns, ok := p.prefixes[prefix]
	if !ok {
		p.fail("undefined prefix %q", prefix)
	}
	if strings.Contains(local, `\`) {
		var sb strings.Builder
		for j := 0; j < len(local); j++ {
			if local[j] == '\\' && j+1 < len(local) {
				j++
			}
			sb.WriteByte(local[j])
		}
		local = sb.String()
	}
	return ns + local
}

// parseTerm parses an IRI, prefixed name or literal.
func (p *parser) parseTerm() (ontology.Term, bool) {
	t := p.peek()
	switch t.kind {
	case tokIRI:
		p.next()
		return ontology.NewIRI(p.resolveIRI(t.val)), true
	case tokPName:
		iri := p.resolvePName(t.val)
		p.next()
		return ontology.NewIRI(iri), true
	}
	return p.parseLiteral()
}

func (p *parser) parseLiteral() (ontology.Term, bool) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		if lang := p.peek(); lang.kind == tokLang {
			p.next()
			return ontology.NewLangLiteral(t.val, lang.val), true
		}
		if p.acceptPunct("^^") {
			dt, ok := p.parseTerm()
			if !ok || !dt.IsIRI() {
				p.fail("expected datatype IRI, found %s", p.peek())
			}
			return ontology.NewTypedLiteral(t.val, dt.Value), true
		}
		return ontology.NewLiteral(t.val), true
	case tokInteger, tokDecimal, tokDouble:
		p.next()
		return numericLiteral(t.kind, t.val), true
	case tokIdent:
		if t.val == "true" || t.val == "false" {
			p.next()
			return ontology.NewTypedLiteral(t.val, ontology.XSDBoolean), true
		}
	case tokPunct:
		if n := p.peekAt(1); (t.val == "-" || t.val == "+") && (n.kind == tokInteger || n.kind == tokDecimal || n.kind == tokDouble) {
			p.next()
			p.next()
			return numericLiteral(n.kind, t.val+n.val), true
		}
	}
	return ontology.Term{}, false
}

func numericLiteral(kind tokenKind, lex string) ontology.Term {
	switch kind {
	case tokDecimal:
		return ontology.NewTypedLiteral(lex, ontology.XSDDecimal)
	case tokDouble:
		return ontology.NewTypedLiteral(lex, ontology.XSDDouble)
	default:
		return ontology.NewTypedLiteral(lex, ontology.XSDInteger)
	}
}

// Expressions.

func (p *parser) parseExpr() expr {
	return p.parseOr()
}

func (p *parser) parseOr() expr {
	l := p.parseAnd()
	for p.acceptPunct("||") {
		l = binaryExpr{op: "||", l: l, r: p.parseAnd()}
	}
	return l
}

func (p *parser) parseAnd() expr {
	l := p.parseRel()
	for p.acceptPunct("&&") {
		l = binaryExpr{op: "&&", l: l, r: p.parseRel()}
	}
	return l
}

func (p *parser) parseRel() expr {
	l := p.parseAdd()
	t := p.peek()
	if t.kind == tokPunct {
		switch t.val {
		case "=", "!=", "<", ">", "<=", ">=":
			p.next()
			return binaryExpr{op: t.val, l: l, r: p.parseAdd()}
		}
	}
	if p.acceptKeyword("IN") {
		return inExpr{x: l, list: p.parseExprList()}
	}
	if p.isKeyword("NOT") && strings.EqualFold(p.peekAt(1).val, "IN") {
		p.next()
		p.next()
		return inExpr{x: l, list: p.parseExprList(), not: true}
	}
	return l
}

func (p *parser) parseExprList() []expr {
	p.expectPunct("(")
	var list []expr
	if p.acceptPunct(")") {
		return list
	}
	list = append(list, p.parseExpr())
	for p.acceptPunct(",") {
		list = append(list, p.parseExpr())
	}
	p.expectPunct(")")
	return list
}

func (p *parser) parseAdd() expr {
	l := p.parseMul()
	for {
		switch {
		case p.acceptPunct("+"):
			l = binaryExpr{op: "+", l: l, r: p.parseMul()}
		case p.acceptPunct("-"):
			l = binaryExpr{op: "-", l: l, r: p.parseMul()}
		default:
			return l
		}
	}
}

func (p *parser) parseMul() expr {
	l := p.parseUnary()
	for {
		switch {
		case p.acceptPunct("*"):
			l = binaryExpr{op: "*", l: l, r: p.parseUnary()}
		case p.acceptPunct("/"):
			l = binaryExpr{op: "/", l: l, r: p.parseUnary()}
		default:
			return l
		}
	}
}

func (p *parser) parseUnary() expr {
	switch {
	case p.acceptPunct("!"):
		return unaryExpr{op: "!", x: p.parseUnary()}
	case p.acceptPunct("-"):
		return unaryExpr{op: "-", x: p.parseUnary()}
	case p.acceptPunct("+"):
		return unaryExpr{op: "+", x: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() expr {
	t := p.peek()
	switch t.kind {
	case tokPunct:
		if t.val == "(" {
			p.next()
			e := p.parseExpr()
			p.expectPunct(")")
			return e
		}
	case tokVar:
		p.next()
		return varExpr{name: t.val}
	case tokIRI, tokPName:
		term, _ := p.parseTerm()
		if p.isPunct("(") {
			if !casts[term.Value] {
				p.fail("unsupported function <%s>", term.Value)
			}
			args := p.parseExprList()
			if len(args) != 1 {
				p.fail("cast to <%s> takes one argument", term.Value)
			}
			return callExpr{name: term.Value, args: args}
		}
		return constExpr{term: term}
	case tokIdent:
		return p.parseKeywordExpr(t)
	}
	if term, ok := p.parseLiteral(); ok {
		return constExpr{term: term}
	}
	p.fail("expected expression, found %s", t)
	return nil
}

func (p *parser) parseKeywordExpr(t token) expr {
	if t.val == "true" || t.val == "false" {
		term, _ := p.parseLiteral()
		return constExpr{term: term}
	}

	name := strings.ToUpper(t.val)
	switch {
	case name == "NOT":
		p.next()
		p.expectKeyword("EXISTS")
		return existsExpr{not: true, group: p.parseExistsGroup()}
	case name == "EXISTS":
		p.next()
		return existsExpr{group: p.parseExistsGroup()}
	case aggregates[name]:
		p.next()
		return p.parseAggregate(name)
	case builtins[name]:
		p.next()
		return callExpr{name: name, args: p.parseExprList()}
	}
	p.fail("unknown function or keyword %s", t)
	return nil
}

// parseExistsGroup parses the pattern of EXISTS, whose variables are not
// visible to the enclosing query.
func (p *parser) parseExistsGroup() *groupPattern {
	vars, seen := p.vars, p.seen
	p.seen = make(map[string]bool)
	gp := p.parseGroup()
	p.vars, p.seen = vars, seen
	return gp
}

func (p *parser) parseAggregate(name string) expr {
	p.aggregated = true
	p.expectPunct("(")
	agg := aggExpr{name: name, sep: " "}
	agg.distinct = p.acceptKeyword("DISTINCT")
	if name == "COUNT" && p.acceptPunct("*") {
		agg.star = true
	} else {
		agg.arg = p.parseExpr()
	}
	if name == "GROUP_CONCAT" && p.acceptPunct(";") {
		p.expectKeyword("SEPARATOR")
		p.expectPunct("=")
		t := p.next()
		if t.kind != tokString {
			p.fail("expected separator string")
		}
		agg.sep = t.val
	}
	p.expectPunct(")")
	return agg
}
