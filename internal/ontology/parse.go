package ontology

import (
	"io"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knakk/rdf"
)

// Format names a graph serialization accepted by Parse.
type Format string

const (
	// FormatTurtle is Terse RDF Triple Language, the default.
	FormatTurtle Format = "turtle"
	// FormatNTriples is line-based N-Triples.
	FormatNTriples Format = "ntriples"
	// FormatRDFXML is RDF/XML.
	FormatRDFXML Format = "rdfxml"
)

// ParseFormat maps a user-supplied name or file extension to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "", "turtle", "ttl":
		return FormatTurtle, nil
	case "ntriples", "n-triples", "nt":
		return FormatNTriples, nil
	case "rdfxml", "rdf/xml", "rdf", "owl", "xml":
		return FormatRDFXML, nil
	default:
		return "", errors.WithHint(
			errors.Newf("unsupported graph format %q", name),
			"use one of: turtle, ntriples, rdfxml")
	}
}

func (f Format) decoderFormat() rdf.Format {
	switch f {
	case FormatNTriples:
		return rdf.NTriples
	case FormatRDFXML:
		return rdf.RDFXML
	default:
		return rdf.Turtle
	}
}

// SyntaxError is returned when a document cannot be parsed. Message is the
// parser's diagnostic, unmodified.
type SyntaxError struct {
	Format  Format
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}

var prefixDecl = regexp.MustCompile(`(?mi)^\s*@?prefix\s+([A-Za-z][\w.-]*)?:\s*<([^>]*)>`)

// Parse decodes text into a fresh Graph. Any decoder failure aborts the
// parse; nothing is recovered from a partially valid document.
func Parse(text string, format Format) (g *Graph, err error) {
	if format == "" {
		format = FormatTurtle
	}

	// The decoder panics on a few malformed inputs; those are syntax errors too.
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = &SyntaxError{Format: format, Message: errors.Newf("%v", r).Error()}
		}
	}()

	dec := rdf.NewTripleDecoder(strings.NewReader(text), format.decoderFormat())
	g = NewGraph()
	for {
		tr, derr := dec.Decode()
		if derr == io.EOF {
			break
		}
		if derr != nil {
			return nil, &SyntaxError{Format: format, Message: derr.Error()}
		}
		g.Add(Triple{
			Subject:   convertTerm(tr.Subj),
			Predicate: convertTerm(tr.Pred),
			Object:    convertTerm(tr.Obj),
		})
	}

	if format != FormatRDFXML {
		for _, m := range prefixDecl.FindAllStringSubmatch(text, -1) {
			g.BindPrefix(m[1], m[2])
		}
	}
	return g, nil
}

func convertTerm(t rdf.Term) Term {
	switch t.Type() {
	case rdf.TermBlank:
		return NewBlank(t.String())
	case rdf.TermLiteral:
		lit, ok := t.(rdf.Literal)
		if !ok {
			return NewLiteral(t.String())
		}
		if lang := lit.Lang(); lang != "" {
			return NewLangLiteral(lit.String(), lang)
		}
		return NewTypedLiteral(lit.String(), lit.DataType.String())
	default:
		return NewIRI(t.String())
	}
}
