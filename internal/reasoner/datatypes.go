package reasoner

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

type intBounds struct {
	min, max *big.Int
}

func bound(v int64) *big.Int { return big.NewInt(v) }

var unsignedLongMax = new(big.Int).SetUint64(math.MaxUint64)

// integerTypes lists the xsd:integer family with their value-space bounds.
// A nil bound is unbounded.
var integerTypes = map[string]intBounds{
	ontology.XSDInteger:            {},
	ontology.XSDNonNegativeInteger: {min: bound(0)},
	ontology.XSDPositiveInteger:    {min: bound(1)},
	ontology.XSDNonPositiveInteger: {max: bound(0)},
	ontology.XSDNegativeInteger:    {max: bound(-1)},
	ontology.XSDLong:               {min: bound(math.MinInt64), max: bound(math.MaxInt64)},
	ontology.XSDInt:                {min: bound(math.MinInt32), max: bound(math.MaxInt32)},
	ontology.XSDShort:              {min: bound(math.MinInt16), max: bound(math.MaxInt16)},
	ontology.XSDByte:               {min: bound(math.MinInt8), max: bound(math.MaxInt8)},
	ontology.XSDUnsignedLong:       {min: bound(0), max: unsignedLongMax},
	ontology.XSDUnsignedInt:        {min: bound(0), max: bound(math.MaxUint32)},
}

var stringTypes = map[string]bool{
	ontology.XSDString:           true,
	ontology.XSDNormalizedString: true,
	ontology.XSDToken:            true,
}

var floatTypes = map[string]bool{
	ontology.XSDFloat:  true,
	ontology.XSDDouble: true,
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02Z07:00",
}

// isDatatype reports whether t names a datatype rather than a class.
func isDatatype(t ontology.Term) bool {
	if !t.IsIRI() {
		return false
	}
	switch t.Value {
	case ontology.RDFSLiteral, ontology.RDFLangString, ontology.RDFPlainLiteral:
		return true
	}
	return strings.HasPrefix(t.Value, ontology.XSDNS)
}

func isNumeric(dt string) bool {
	_, isInt := integerTypes[dt]
	return isInt || dt == ontology.XSDDecimal
}

func parseInteger(lex string) (*big.Int, bool) {
	lex = strings.TrimPrefix(strings.TrimSpace(lex), "+")
	if lex == "" {
		return nil, false
	}
	return new(big.Int).SetString(lex, 10)
}

func parseDecimal(lex string) (*big.Rat, bool) {
	lex = strings.TrimSpace(lex)
	if !decimalPattern.MatchString(lex) {
		return nil, false
	}
	return new(big.Rat).SetString(strings.TrimPrefix(lex, "+"))
}

func parseFloat(lex string) (float64, bool) {
	switch strings.TrimSpace(lex) {
	case "INF", "+INF":
		return math.Inf(1), true
	case "-INF":
		return math.Inf(-1), true
	case "NaN":
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(lex), 64)
	return f, err == nil
}

func parseAnyTime(lex string, layouts []string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, strings.TrimSpace(lex)); err == nil {
			return true
		}
	}
	return false
}

func withinBounds(v *big.Int, b intBounds) bool {
	if b.min != nil && v.Cmp(b.min) < 0 {
		return false
	}
	if b.max != nil && v.Cmp(b.max) > 0 {
		return false
	}
	return true
}

// wellFormed reports whether a literal's lexical form is in the lexical
// space of its own datatype. Unknown datatypes are accepted.
func wellFormed(lit ontology.Term) bool {
	dt := lit.Datatype
	if b, ok := integerTypes[dt]; ok {
		v, ok := parseInteger(lit.Value)
		return ok && withinBounds(v, b)
	}
	switch {
	case dt == ontology.XSDDecimal:
		_, ok := parseDecimal(lit.Value)
		return ok
	case floatTypes[dt]:
		_, ok := parseFloat(lit.Value)
		return ok
	case dt == ontology.XSDBoolean:
		switch strings.TrimSpace(lit.Value) {
		case "true", "false", "1", "0":
			return true
		}
		return false
	case dt == ontology.XSDDateTime:
		return parseAnyTime(lit.Value, dateTimeLayouts)
	case dt == ontology.XSDDate:
		return parseAnyTime(lit.Value, dateLayouts)
	}
	return true
}

// compatible reports whether lit can be a member of the data range rangeDT.
func compatible(lit ontology.Term, rangeDT string) bool {
	switch rangeDT {
	case ontology.RDFSLiteral, ontology.RDFPlainLiteral:
		return true
	case ontology.RDFLangString:
		return lit.Lang != ""
	}
	if lit.Lang != "" {
		return false
	}
	if lit.Datatype == rangeDT {
		return true
	}

	if stringTypes[rangeDT] {
		return stringTypes[lit.Datatype]
	}
	if rangeDT == ontology.XSDDecimal {
		return isNumeric(lit.Datatype)
	}
	if b, ok := integerTypes[rangeDT]; ok {
		if !isNumeric(lit.Datatype) {
			return false
		}
		r, ok := parseDecimal(lit.Value)
		if !ok || !r.IsInt() {
			return false
		}
		return withinBounds(r.Num(), b)
	}
	if floatTypes[rangeDT] {
		return floatTypes[lit.Datatype]
	}

	// A datatype we do not model: only contradict a literal whose own
	// datatype is a known one.
	if !strings.HasPrefix(rangeDT, ontology.XSDNS) || !isKnownDatatype(rangeDT) {
		return true
	}
	return !isKnownDatatype(lit.Datatype)
}

func isKnownDatatype(dt string) bool {
	if isNumeric(dt) || stringTypes[dt] || floatTypes[dt] {
		return true
	}
	switch dt {
	case ontology.XSDBoolean, ontology.XSDDate, ontology.XSDDateTime, ontology.XSDAnyURI, ontology.RDFLangString:
		return true
	}
	return false
}

// sameValue reports whether two literals denote the same data value.
func sameValue(a, b ontology.Term) bool {
	if isNumeric(a.Datatype) && isNumeric(b.Datatype) {
		x, okx := parseDecimal(a.Value)
		y, oky := parseDecimal(b.Value)
		if okx && oky {
			return x.Cmp(y) == 0
		}
	}
	if floatTypes[a.Datatype] && floatTypes[b.Datatype] {
		x, okx := parseFloat(a.Value)
		y, oky := parseFloat(b.Value)
		if okx && oky {
			return x == y
		}
	}
	if a.Datatype == ontology.XSDBoolean && b.Datatype == ontology.XSDBoolean {
		return boolValue(a.Value) == boolValue(b.Value)
	}
	return a.Key() == b.Key()
}

func boolValue(lex string) bool {
	switch strings.TrimSpace(lex) {
	case "true", "1":
		return true
	}
	return false
}
