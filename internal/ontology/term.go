// Package ontology holds the in-memory RDF graph that every validation stage
// works against, and the syntax gate that produces it.
package ontology

import (
	"strings"
)

// TermKind identifies the RDF node type of a Term.
type TermKind int

const (
	// KindIRI is a named resource.
	KindIRI TermKind = iota
	// KindBlank is an anonymous resource.
	KindBlank
	// KindLiteral is a lexical value with optional datatype or language.
	KindLiteral
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term is an RDF node. Terms are values and safe to copy and compare.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// NewIRI returns an IRI term.
func NewIRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// NewBlank returns a blank node term with the given label (no "_:" prefix).
func NewBlank(label string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(label, "_:")}
}

// NewLiteral returns a plain literal. Plain literals are typed xsd:string.
func NewLiteral(lexical string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: XSDString}
}

// NewTypedLiteral returns a literal with an explicit datatype IRI.
func NewTypedLiteral(lexical, datatype string) Term {
	if datatype == "" {
		datatype = XSDString
	}
	return Term{Kind: KindLiteral, Value: lexical, Datatype: datatype}
}

// NewLangLiteral returns a language-tagged string.
func NewLangLiteral(lexical, lang string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: RDFLangString, Lang: strings.ToLower(lang)}
}

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsBlank reports whether t is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsZero reports whether t is the zero Term, used as "unbound".
func (t Term) IsZero() bool { return t == Term{} }

// String returns the lexical form of the term: the IRI itself, the blank
// node label, or the literal's lexical value. This is the form used when
// query rows are canonicalized for comparison.
func (t Term) String() string {
	return t.Value
}

// Key returns a string that uniquely identifies the term, suitable as a map key.
func (t Term) Key() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	default:
		var sb strings.Builder
		sb.WriteByte('"')
		sb.WriteString(t.Value)
		sb.WriteByte('"')
		if t.Lang != "" {
			sb.WriteByte('@')
			sb.WriteString(t.Lang)
		} else if t.Datatype != "" && t.Datatype != XSDString {
			sb.WriteString("^^<")
			sb.WriteString(t.Datatype)
			sb.WriteByte('>')
		}
		return sb.String()
	}
}

// LocalName returns the fragment or last path segment of an IRI, the way
// class names are shown to users.
func (t Term) LocalName() string {
	return LocalName(t.Value)
}

// LocalName returns the part of an IRI after the last '#', '/' or ':'.
func LocalName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	if i := strings.LastIndex(iri, ":"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}
