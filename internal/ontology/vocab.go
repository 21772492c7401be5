package ontology

// Namespaces.
const (
	RDFNS  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS = "http://www.w3.org/2000/01/rdf-schema#"
	OWLNS  = "http://www.w3.org/2002/07/owl#"
	XSDNS  = "http://www.w3.org/2001/XMLSchema#"
)

// RDF and RDFS vocabulary.
const (
	RDFType           = RDFNS + "type"
	RDFFirst          = RDFNS + "first"
	RDFRest           = RDFNS + "rest"
	RDFNil            = RDFNS + "nil"
	RDFLangString     = RDFNS + "langString"
	RDFPlainLiteral   = RDFNS + "PlainLiteral"
	RDFSSubClassOf    = RDFSNS + "subClassOf"
	RDFSSubPropertyOf = RDFSNS + "subPropertyOf"
	RDFSDomain        = RDFSNS + "domain"
	RDFSRange         = RDFSNS + "range"
	RDFSClass         = RDFSNS + "Class"
	RDFSLiteral       = RDFSNS + "Literal"
	RDFSLabel         = RDFSNS + "label"
)

// OWL vocabulary used by the reasoner.
const (
	OWLClass                     = OWLNS + "Class"
	OWLThing                     = OWLNS + "Thing"
	OWLNothing                   = OWLNS + "Nothing"
	OWLRestriction               = OWLNS + "Restriction"
	OWLObjectProperty            = OWLNS + "ObjectProperty"
	OWLDatatypeProperty          = OWLNS + "DatatypeProperty"
	OWLAnnotationProperty        = OWLNS + "AnnotationProperty"
	OWLFunctionalProperty        = OWLNS + "FunctionalProperty"
	OWLIrreflexiveProperty       = OWLNS + "IrreflexiveProperty"
	OWLAsymmetricProperty        = OWLNS + "AsymmetricProperty"
	OWLNamedIndividual           = OWLNS + "NamedIndividual"
	OWLOntology                  = OWLNS + "Ontology"
	OWLEquivalentClass           = OWLNS + "equivalentClass"
	OWLDisjointWith              = OWLNS + "disjointWith"
	OWLAllDisjointClasses        = OWLNS + "AllDisjointClasses"
	OWLDisjointUnionOf           = OWLNS + "disjointUnionOf"
	OWLComplementOf              = OWLNS + "complementOf"
	OWLIntersectionOf            = OWLNS + "intersectionOf"
	OWLUnionOf                   = OWLNS + "unionOf"
	OWLMembers                   = OWLNS + "members"
	OWLDistinctMembers           = OWLNS + "distinctMembers"
	OWLOnProperty                = OWLNS + "onProperty"
	OWLSomeValuesFrom            = OWLNS + "someValuesFrom"
	OWLAllValuesFrom             = OWLNS + "allValuesFrom"
	OWLSameAs                    = OWLNS + "sameAs"
	OWLDifferentFrom             = OWLNS + "differentFrom"
	OWLAllDifferent              = OWLNS + "AllDifferent"
	OWLEquivalentProperty        = OWLNS + "equivalentProperty"
	OWLInverseOf                 = OWLNS + "inverseOf"
	OWLNegativePropertyAssertion = OWLNS + "NegativePropertyAssertion"
	OWLSourceIndividual          = OWLNS + "sourceIndividual"
	OWLAssertionProperty         = OWLNS + "assertionProperty"
	OWLTargetIndividual          = OWLNS + "targetIndividual"
	OWLTargetValue               = OWLNS + "targetValue"
)

// XSD datatypes.
const (
	XSDString             = XSDNS + "string"
	XSDBoolean            = XSDNS + "boolean"
	XSDDecimal            = XSDNS + "decimal"
	XSDInteger            = XSDNS + "integer"
	XSDInt                = XSDNS + "int"
	XSDLong               = XSDNS + "long"
	XSDShort              = XSDNS + "short"
	XSDByte               = XSDNS + "byte"
	XSDNonNegativeInteger = XSDNS + "nonNegativeInteger"
	XSDPositiveInteger    = XSDNS + "positiveInteger"
	XSDNonPositiveInteger = XSDNS + "nonPositiveInteger"
	XSDNegativeInteger    = XSDNS + "negativeInteger"
	XSDUnsignedInt        = XSDNS + "unsignedInt"
	XSDUnsignedLong       = XSDNS + "unsignedLong"
	XSDFloat              = XSDNS + "float"
	XSDDouble             = XSDNS + "double"
	XSDDate               = XSDNS + "date"
	XSDDateTime           = XSDNS + "dateTime"
	XSDAnyURI             = XSDNS + "anyURI"
	XSDNormalizedString   = XSDNS + "normalizedString"
	XSDToken              = XSDNS + "token"
)
