package sparql

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

var (
	errType    = errors.New("type error")
	errUnbound = errors.New("unbound variable")
)

// eval computes the value of x under mu. grp holds the solutions of the
// current group when aggregating and is nil otherwise.
func (e *evaluator) eval(x expr, mu Binding, grp []Binding) (ontology.Term, error) {
	switch x := x.(type) {
	case varExpr:
		if t, ok := mu[x.name]; ok {
			return t, nil
		}
		return ontology.Term{}, errUnbound
	case constExpr:
		return x.term, nil
	case unaryExpr:
		return e.evalUnary(x, mu, grp)
	case binaryExpr:
		return e.evalBinary(x, mu, grp)
	case inExpr:
		return e.evalIn(x, mu, grp)
	case existsExpr:
		sols, err := e.group(x.group, []Binding{mu}, true)
		if err != nil {
			return ontology.Term{}, err
		}
		return boolTerm((len(sols) > 0) != x.not), nil
	case callExpr:
		return e.call(x, mu, grp)
	case aggExpr:
		if grp == nil {
			return ontology.Term{}, errors.Newf("aggregate %s outside of a group", x.name)
		}
		return e.aggregate(x, grp)
	}
	return ontology.Term{}, errors.Newf("unsupported expression %T", x)
}

func boolTerm(b bool) ontology.Term {
	return ontology.NewTypedLiteral(strconv.FormatBool(b), ontology.XSDBoolean)
}

// ebv is the effective boolean value of a term.
func ebv(t ontology.Term) (bool, error) {
	if !t.IsLiteral() {
		return false, errType
	}
	if t.Datatype == ontology.XSDBoolean {
		v := strings.TrimSpace(t.Value)
		return v == "true" || v == "1", nil
	}
	if n, ok := toNumeric(t); ok {
		return n.v != 0 && !math.IsNaN(n.v), nil
	}
	if isStringLiteral(t) || t.Lang != "" {
		return t.Value != "", nil
	}
	return false, errType
}

func (e *evaluator) evalUnary(x unaryExpr, mu Binding, grp []Binding) (ontology.Term, error) {
	v, err := e.eval(x.x, mu, grp)
	if err != nil {
		return ontology.Term{}, err
	}
	if x.op == "!" {
		b, err := ebv(v)
		if err != nil {
			return ontology.Term{}, err
		}
		return boolTerm(!b), nil
	}
	n, ok := toNumeric(v)
	if !ok {
		return ontology.Term{}, errType
	}
	if x.op == "-" {
		n.v = -n.v
	}
	return n.term(), nil
}

func (e *evaluator) evalBinary(x binaryExpr, mu Binding, grp []Binding) (ontology.Term, error) {
	switch x.op {
	case "||", "&&":
		return e.evalLogical(x, mu, grp)
	}

	l, err := e.eval(x.l, mu, grp)
	if err != nil {
		return ontology.Term{}, err
	}
	r, err := e.eval(x.r, mu, grp)
	if err != nil {
		return ontology.Term{}, err
	}

	switch x.op {
	case "=":
		return boolTerm(termsEqual(l, r)), nil
	case "!=":
		return boolTerm(!termsEqual(l, r)), nil
	case "<", ">", "<=", ">=":
		c, err := compareValues(l, r)
		if err != nil {
			return ontology.Term{}, err
		}
		switch x.op {
		case "<":
			return boolTerm(c < 0), nil
		case ">":
			return boolTerm(c > 0), nil
		case "<=":
			return boolTerm(c <= 0), nil
		default:
			return boolTerm(c >= 0), nil
		}
	}
	return arithmetic(x.op, l, r)
}

// evalLogical implements the three-valued || and && where an error on one
// side can be masked by the other.
func (e *evaluator) evalLogical(x binaryExpr, mu Binding, grp []Binding) (ontology.Term, error) {
	lb, lerr := e.evalBool(x.l, mu, grp)
	rb, rerr := e.evalBool(x.r, mu, grp)
	if x.op == "||" {
		switch {
		case lerr == nil && lb, rerr == nil && rb:
			return boolTerm(true), nil
		case lerr == nil && rerr == nil:
			return boolTerm(false), nil
		}
	} else {
		switch {
		case lerr == nil && !lb, rerr == nil && !rb:
			return boolTerm(false), nil
		case lerr == nil && rerr == nil:
			return boolTerm(true), nil
		}
	}
	if lerr != nil {
		return ontology.Term{}, lerr
	}
	return ontology.Term{}, rerr
}

func (e *evaluator) evalBool(x expr, mu Binding, grp []Binding) (bool, error) {
	v, err := e.eval(x, mu, grp)
	if err != nil {
		return false, err
	}
	return ebv(v)
}

func (e *evaluator) evalIn(x inExpr, mu Binding, grp []Binding) (ontology.Term, error) {
	v, err := e.eval(x.x, mu, grp)
	if err != nil {
		return ontology.Term{}, err
	}
	var firstErr error
	for _, item := range x.list {
		w, err := e.eval(item, mu, grp)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if termsEqual(v, w) {
			return boolTerm(!x.not), nil
		}
	}
	if firstErr != nil {
		return ontology.Term{}, firstErr
	}
	return boolTerm(x.not), nil
}

// Values.

type numKind int

const (
	numInteger numKind = iota
	numDecimal
	numDouble
)

type numeric struct {
	kind numKind
	v    float64
}

var integerDatatypes = map[string]bool{
	ontology.XSDInteger: true, ontology.XSDInt: true, ontology.XSDLong: true,
	ontology.XSDShort: true, ontology.XSDByte: true,
	ontology.XSDNonNegativeInteger: true, ontology.XSDPositiveInteger: true,
	ontology.XSDNonPositiveInteger: true, ontology.XSDNegativeInteger: true,
	ontology.XSDUnsignedInt: true, ontology.XSDUnsignedLong: true,
}

func toNumeric(t ontology.Term) (numeric, bool) {
	if !t.IsLiteral() {
		return numeric{}, false
	}
	lex := strings.TrimSpace(t.Value)
	switch {
	case integerDatatypes[t.Datatype]:
		i, err := strconv.ParseInt(strings.TrimPrefix(lex, "+"), 10, 64)
		if err != nil {
			return numeric{}, false
		}
		return numeric{kind: numInteger, v: float64(i)}, true
	case t.Datatype == ontology.XSDDecimal:
		f, err := strconv.ParseFloat(lex, 64)
		if err != nil {
			return numeric{}, false
		}
		return numeric{kind: numDecimal, v: f}, true
	case t.Datatype == ontology.XSDDouble || t.Datatype == ontology.XSDFloat:
		switch lex {
		case "INF", "+INF":
			return numeric{kind: numDouble, v: math.Inf(1)}, true
		case "-INF":
			return numeric{kind: numDouble, v: math.Inf(-1)}, true
		}
		f, err := strconv.ParseFloat(lex, 64)
		if err != nil {
			return numeric{}, false
		}
		return numeric{kind: numDouble, v: f}, true
	}
	return numeric{}, false
}

func (n numeric) term() ontology.Term {
	switch n.kind {
	case numInteger:
		return ontology.NewTypedLiteral(strconv.FormatInt(int64(n.v), 10), ontology.XSDInteger)
	case numDecimal:
		return ontology.NewTypedLiteral(strconv.FormatFloat(n.v, 'f', -1, 64), ontology.XSDDecimal)
	default:
		switch {
		case math.IsInf(n.v, 1):
			return ontology.NewTypedLiteral("INF", ontology.XSDDouble)
		case math.IsInf(n.v, -1):
			return ontology.NewTypedLiteral("-INF", ontology.XSDDouble)
		}
		return ontology.NewTypedLiteral(strconv.FormatFloat(n.v, 'g', -1, 64), ontology.XSDDouble)
	}
}

func integerTerm(i int) ontology.Term {
	return ontology.NewTypedLiteral(strconv.Itoa(i), ontology.XSDInteger)
}

func arithmetic(op string, l, r ontology.Term) (ontology.Term, error) {
	a, ok := toNumeric(l)
	if !ok {
		return ontology.Term{}, errType
	}
	b, ok := toNumeric(r)
	if !ok {
		return ontology.Term{}, errType
	}
	kind := a.kind
	if b.kind > kind {
		kind = b.kind
	}

	var v float64
	switch op {
	case "+":
		v = a.v + b.v
	case "-":
		v = a.v - b.v
	case "*":
		v = a.v * b.v
	case "/":
		if kind == numInteger {
			kind = numDecimal
		}
		if b.v == 0 && kind != numDouble {
			return ontology.Term{}, errors.New("division by zero")
		}
		v = a.v / b.v
	default:
		return ontology.Term{}, errors.Newf("unknown operator %q", op)
	}
	return numeric{kind: kind, v: v}.term(), nil
}

func isStringLiteral(t ontology.Term) bool {
	return t.IsLiteral() && t.Lang == "" && t.Datatype == ontology.XSDString
}

func isStringLike(t ontology.Term) bool {
	return isStringLiteral(t) || (t.IsLiteral() && t.Lang != "")
}

func parseDateTime(t ontology.Term) (time.Time, bool) {
	if !t.IsLiteral() || (t.Datatype != ontology.XSDDateTime && t.Datatype != ontology.XSDDate) {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02", "2006-01-02Z07:00"} {
		if tm, err := time.Parse(layout, strings.TrimSpace(t.Value)); err == nil {
			return tm, true
		}
	}
	return time.Time{}, false
}

// termsEqual compares by value where both sides have comparable values, and
// by term identity otherwise.
func termsEqual(a, b ontology.Term) bool {
	if na, ok := toNumeric(a); ok {
		if nb, ok := toNumeric(b); ok {
			return na.v == nb.v
		}
	}
	if a.IsLiteral() && b.IsLiteral() {
		switch {
		case isStringLiteral(a) && isStringLiteral(b):
			return a.Value == b.Value
		case a.Datatype == ontology.XSDBoolean && b.Datatype == ontology.XSDBoolean:
			x, _ := ebv(a)
			y, _ := ebv(b)
			return x == y
		}
		if ta, ok := parseDateTime(a); ok {
			if tb, ok := parseDateTime(b); ok {
				return ta.Equal(tb)
			}
		}
	}
	return a.Key() == b.Key()
}

func compareValues(a, b ontology.Term) (int, error) {
	if na, ok := toNumeric(a); ok {
		if nb, ok := toNumeric(b); ok {
			switch {
			case na.v < nb.v:
				return -1, nil
			case na.v > nb.v:
				return 1, nil
			}
			return 0, nil
		}
	}
	if isStringLiteral(a) && isStringLiteral(b) || (a.Lang != "" && a.Lang == b.Lang) {
		return strings.Compare(a.Value, b.Value), nil
	}
	if a.Datatype == ontology.XSDBoolean && b.Datatype == ontology.XSDBoolean && a.IsLiteral() && b.IsLiteral() {
		x, _ := ebv(a)
		y, _ := ebv(b)
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	}
	if ta, ok := parseDateTime(a); ok {
		if tb, ok := parseDateTime(b); ok {
			return ta.Compare(tb), nil
		}
	}
	return 0, errType
}

// orderCompare is the total order used by ORDER BY: unbound, blank nodes,
// IRIs, then literals.
func orderCompare(a, b *ontology.Term) int {
	rank := func(t *ontology.Term) int {
		switch {
		case t == nil:
			return 0
		case t.IsBlank():
			return 1
		case t.IsIRI():
			return 2
		}
		return 3
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	if a == nil {
		return 0
	}
	if ra == 3 {
		if c, err := compareValues(*a, *b); err == nil {
			return c
		}
		return strings.Compare(a.Key(), b.Key())
	}
	return strings.Compare(a.Value, b.Value)
}

// Functions.

func (e *evaluator) call(x callExpr, mu Binding, grp []Binding) (ontology.Term, error) {
	switch x.name {
	case "BOUND":
		if len(x.args) != 1 {
			return ontology.Term{}, errors.New("BOUND takes one variable")
		}
		v, ok := x.args[0].(varExpr)
		if !ok {
			return ontology.Term{}, errType
		}
		_, bound := mu[v.name]
		return boolTerm(bound), nil
	case "IF":
		if len(x.args) != 3 {
			return ontology.Term{}, errors.New("IF takes three arguments")
		}
		cond, err := e.evalBool(x.args[0], mu, grp)
		if err != nil {
			return ontology.Term{}, err
		}
		if cond {
			return e.eval(x.args[1], mu, grp)
		}
		return e.eval(x.args[2], mu, grp)
	case "COALESCE":
		for _, a := range x.args {
			if v, err := e.eval(a, mu, grp); err == nil {
				return v, nil
			}
		}
		return ontology.Term{}, errUnbound
	}

	args := make([]ontology.Term, len(x.args))
	for i, a := range x.args {
		v, err := e.eval(a, mu, grp)
		if err != nil {
			return ontology.Term{}, err
		}
		args[i] = v
	}

	if casts[x.name] {
		return cast(args[0], x.name)
	}
	return e.builtin(x.name, args)
}

func arity(name string, args []ontology.Term, min, max int) error {
	if len(args) < min || len(args) > max {
		return errors.Newf("%s: wrong number of arguments (%d)", name, len(args))
	}
	return nil
}

func stringArg(t ontology.Term) (string, error) {
	if !isStringLike(t) {
		return "", errType
	}
	return t.Value, nil
}

// withSameTag returns a string literal carrying the language tag of like.
func withSameTag(s string, like ontology.Term) ontology.Term {
	if like.Lang != "" {
		return ontology.NewLangLiteral(s, like.Lang)
	}
	return ontology.NewLiteral(s)
}

func (e *evaluator) builtin(name string, args []ontology.Term) (ontology.Term, error) {
	limits := map[string][2]int{
		"REGEX": {2, 3}, "REPLACE": {3, 4}, "SUBSTR": {2, 3}, "CONCAT": {0, 1 << 16},
		"LANGMATCHES": {2, 2}, "STRSTARTS": {2, 2}, "STRENDS": {2, 2}, "CONTAINS": {2, 2},
		"STRBEFORE": {2, 2}, "STRAFTER": {2, 2}, "SAMETERM": {2, 2}, "STRDT": {2, 2}, "STRLANG": {2, 2},
	}
	lim, ok := limits[name]
	if !ok {
		lim = [2]int{1, 1}
	}
	if err := arity(name, args, lim[0], lim[1]); err != nil {
		return ontology.Term{}, err
	}

	switch name {
	case "ISIRI", "ISURI":
		return boolTerm(args[0].IsIRI()), nil
	case "ISBLANK":
		return boolTerm(args[0].IsBlank()), nil
	case "ISLITERAL":
		return boolTerm(args[0].IsLiteral()), nil
	case "ISNUMERIC":
		_, ok := toNumeric(args[0])
		return boolTerm(ok), nil
	case "STR":
		if args[0].IsBlank() {
			return ontology.Term{}, errType
		}
		return ontology.NewLiteral(args[0].Value), nil
	case "LANG":
		if !args[0].IsLiteral() {
			return ontology.Term{}, errType
		}
		return ontology.NewLiteral(args[0].Lang), nil
	case "LANGMATCHES":
		tag, rng := strings.ToLower(args[0].Value), strings.ToLower(args[1].Value)
		if rng == "*" {
			return boolTerm(tag != ""), nil
		}
		return boolTerm(tag == rng || strings.HasPrefix(tag, rng+"-")), nil
	case "DATATYPE":
		if !args[0].IsLiteral() {
			return ontology.Term{}, errType
		}
		return ontology.NewIRI(args[0].Datatype), nil
	case "IRI", "URI":
		if args[0].IsIRI() {
			return args[0], nil
		}
		if !isStringLiteral(args[0]) {
			return ontology.Term{}, errType
		}
		return ontology.NewIRI(args[0].Value), nil
	case "STRLEN":
		s, err := stringArg(args[0])
		if err != nil {
			return ontology.Term{}, err
		}
		return integerTerm(utf8.RuneCountInString(s)), nil
	case "SUBSTR":
		return substr(args)
	case "UCASE", "LCASE":
		s, err := stringArg(args[0])
		if err != nil {
			return ontology.Term{}, err
		}
		if name == "UCASE" {
			s = strings.ToUpper(s)
		} else {
			s = strings.ToLower(s)
		}
		return withSameTag(s, args[0]), nil
	case "STRSTARTS", "STRENDS", "CONTAINS", "STRBEFORE", "STRAFTER":
		return stringPair(name, args[0], args[1])
	case "CONCAT":
		var sb strings.Builder
		lang := ""
		for i, a := range args {
			s, err := stringArg(a)
			if err != nil {
				return ontology.Term{}, err
			}
			if i == 0 {
				lang = a.Lang
			} else if a.Lang != lang {
				lang = ""
			}
			sb.WriteString(s)
		}
		if lang != "" {
			return ontology.NewLangLiteral(sb.String(), lang), nil
		}
		return ontology.NewLiteral(sb.String()), nil
	case "REGEX":
		s, err := stringArg(args[0])
		if err != nil {
			return ontology.Term{}, err
		}
		re, err := e.compile(args[1:])
		if err != nil {
			return ontology.Term{}, err
		}
		return boolTerm(re.MatchString(s)), nil
	case "REPLACE":
		s, err := stringArg(args[0])
		if err != nil {
			return ontology.Term{}, err
		}
		flags := args[3:]
		re, err := e.compile(append([]ontology.Term{args[1]}, flags...))
		if err != nil {
			return ontology.Term{}, err
		}
		return withSameTag(re.ReplaceAllString(s, args[2].Value), args[0]), nil
	case "ABS", "ROUND", "CEIL", "FLOOR":
		n, ok := toNumeric(args[0])
		if !ok {
			return ontology.Term{}, errType
		}
		switch name {
		case "ABS":
			n.v = math.Abs(n.v)
		case "ROUND":
			n.v = math.Floor(n.v + 0.5)
		case "CEIL":
			n.v = math.Ceil(n.v)
		default:
			n.v = math.Floor(n.v)
		}
		return n.term(), nil
	case "SAMETERM":
		return boolTerm(args[0].Key() == args[1].Key()), nil
	case "STRDT":
		if !isStringLiteral(args[0]) || !args[1].IsIRI() {
			return ontology.Term{}, errType
		}
		return ontology.NewTypedLiteral(args[0].Value, args[1].Value), nil
	case "STRLANG":
		if !isStringLiteral(args[0]) || !isStringLiteral(args[1]) || args[1].Value == "" {
			return ontology.Term{}, errType
		}
		return ontology.NewLangLiteral(args[0].Value, args[1].Value), nil
	case "YEAR", "MONTH", "DAY":
		tm, ok := parseDateTime(args[0])
		if !ok {
			return ontology.Term{}, errType
		}
		switch name {
		case "YEAR":
			return integerTerm(tm.Year()), nil
		case "MONTH":
			return integerTerm(int(tm.Month())), nil
		}
		return integerTerm(tm.Day()), nil
	}
	return ontology.Term{}, errors.Newf("unsupported function %s", name)
}

func substr(args []ontology.Term) (ontology.Term, error) {
	s, err := stringArg(args[0])
	if err != nil {
		return ontology.Term{}, err
	}
	start, ok := toNumeric(args[1])
	if !ok {
		return ontology.Term{}, errType
	}
	runes := []rune(s)
	from := int(math.Round(start.v)) - 1
	to := len(runes)
	if len(args) == 3 {
		n, ok := toNumeric(args[2])
		if !ok {
			return ontology.Term{}, errType
		}
		to = from + int(math.Round(n.v))
	}
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return withSameTag("", args[0]), nil
	}
	return withSameTag(string(runes[from:to]), args[0]), nil
}

func stringPair(name string, a, b ontology.Term) (ontology.Term, error) {
	s, err := stringArg(a)
	if err != nil {
		return ontology.Term{}, err
	}
	t, err := stringArg(b)
	if err != nil {
		return ontology.Term{}, err
	}
	if b.Lang != "" && b.Lang != a.Lang {
		return ontology.Term{}, errType
	}

	switch name {
	case "STRSTARTS":
		return boolTerm(strings.HasPrefix(s, t)), nil
	case "STRENDS":
		return boolTerm(strings.HasSuffix(s, t)), nil
	case "CONTAINS":
		return boolTerm(strings.Contains(s, t)), nil
	case "STRBEFORE":
		if i := strings.Index(s, t); i >= 0 {
			return withSameTag(s[:i], a), nil
		}
		return ontology.NewLiteral(""), nil
	default:
		if i := strings.Index(s, t); i >= 0 {
			return withSameTag(s[i+len(t):], a), nil
		}
		return ontology.NewLiteral(""), nil
	}
}

// compile builds a regular expression from a pattern and optional flags,
// caching the result for the lifetime of the evaluation.
func (e *evaluator) compile(args []ontology.Term) (*regexp.Regexp, error) {
	pattern := args[0].Value
	flags := ""
	if len(args) > 1 {
		flags = args[1].Value
	}
	key := flags + "\x00" + pattern
	if re, ok := e.regex[key]; ok {
		return re, nil
	}

	var goFlags strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			goFlags.WriteRune(f)
		case 'x':
			pattern = stripRegexWhitespace(pattern)
		case 'q':
			pattern = regexp.QuoteMeta(pattern)
		default:
			return nil, errors.Newf("unsupported regex flag %q", f)
		}
	}
	if goFlags.Len() > 0 {
		pattern = "(?" + goFlags.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "invalid regular expression")
	}
	e.regex[key] = re
	return re, nil
}

func stripRegexWhitespace(p string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, p)
}

func cast(v ontology.Term, dt string) (ontology.Term, error) {
	if !v.IsLiteral() {
		if dt == ontology.XSDString && v.IsIRI() {
			return ontology.NewLiteral(v.Value), nil
		}
		return ontology.Term{}, errType
	}
	lex := strings.TrimSpace(v.Value)

	switch dt {
	case ontology.XSDString:
		return ontology.NewLiteral(v.Value), nil
	case ontology.XSDBoolean:
		if n, ok := toNumeric(v); ok {
			return boolTerm(n.v != 0 && !math.IsNaN(n.v)), nil
		}
		switch lex {
		case "true", "1":
			return boolTerm(true), nil
		case "false", "0":
			return boolTerm(false), nil
		}
		return ontology.Term{}, errType
	}

	var f float64
	if n, ok := toNumeric(v); ok {
		f = n.v
	} else if v.Datatype == ontology.XSDBoolean {
		if b, _ := ebv(v); b {
			f = 1
		}
	} else if isStringLiteral(v) {
		parsed, err := strconv.ParseFloat(lex, 64)
		if err != nil {
			return ontology.Term{}, errType
		}
		f = parsed
	} else {
		return ontology.Term{}, errType
	}

	switch dt {
	case ontology.XSDInteger, ontology.XSDInt:
		if isStringLiteral(v) && strings.ContainsAny(lex, ".eE") {
			return ontology.Term{}, errType
		}
		return ontology.NewTypedLiteral(strconv.FormatInt(int64(math.Trunc(f)), 10), dt), nil
	case ontology.XSDDecimal:
		return numeric{kind: numDecimal, v: f}.term(), nil
	default:
		t := numeric{kind: numDouble, v: f}.term()
		t.Datatype = dt
		return t, nil
	}
}

// Aggregates.

func (e *evaluator) aggregate(a aggExpr, grp []Binding) (ontology.Term, error) {
	if a.star {
		if !a.distinct {
			return integerTerm(len(grp)), nil
		}
		seen := make(map[string]struct{})
		for _, b := range grp {
			seen[bindingKey(b)] = struct{}{}
		}
		return integerTerm(len(seen)), nil
	}

	var vals []ontology.Term
	seen := make(map[string]struct{})
	for _, b := range grp {
		v, err := e.eval(a.arg, b, nil)
		if err != nil {
			continue
		}
		if a.distinct {
			if _, dup := seen[v.Key()]; dup {
				continue
			}
			seen[v.Key()] = struct{}{}
		}
		vals = append(vals, v)
	}

	switch a.name {
	case "COUNT":
		return integerTerm(len(vals)), nil
	case "SUM", "AVG":
		sum := numeric{kind: numInteger}
		for _, v := range vals {
			n, ok := toNumeric(v)
			if !ok {
				return ontology.Term{}, errType
			}
			if n.kind > sum.kind {
				sum.kind = n.kind
			}
			sum.v += n.v
		}
		if a.name == "AVG" && len(vals) > 0 {
			sum.v /= float64(len(vals))
			if sum.kind == numInteger {
				sum.kind = numDecimal
			}
		}
		return sum.term(), nil
	case "MIN", "MAX":
		if len(vals) == 0 {
			return ontology.Term{}, errUnbound
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c := orderCompare(&v, &best)
			if (a.name == "MIN" && c < 0) || (a.name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "SAMPLE":
		if len(vals) == 0 {
			return ontology.Term{}, errUnbound
		}
		return vals[0], nil
	case "GROUP_CONCAT":
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = v.Value
		}
		return ontology.NewLiteral(strings.Join(parts, a.sep)), nil
	}
	return ontology.Term{}, errors.Newf("unsupported aggregate %s", a.name)
}

func bindingKey(b Binding) string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, k := range names {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k].Key())
		sb.WriteByte(0)
	}
	return sb.String()
}
