package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

const prefixes = `@prefix : <http://example.org/highway_code#> .
@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
`

func mustParse(t *testing.T, body string) *ontology.Graph {
	t.Helper()
	g, err := ontology.Parse(prefixes+body, ontology.FormatTurtle)
	require.NoError(t, err)
	return g
}

func TestCheckConsistency_Consistent(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Car a owl:Class ; rdfs:subClassOf :Vehicle .
:Pedestrian a owl:Class ; owl:disjointWith :Vehicle .
:myCar a :Car .
`)
	assert.Empty(t, CheckConsistency(g))
}

func TestCheckConsistency_EmptyGraph(t *testing.T) {
	assert.Empty(t, CheckConsistency(ontology.NewGraph()))
}

func TestCheckConsistency_UnsatisfiableClasses(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Pedestrian a owl:Class ; owl:disjointWith :Vehicle .
:Zombie a owl:Class ; rdfs:subClassOf :Vehicle, :Pedestrian .
:Amphibian a owl:Class ; rdfs:subClassOf :Zombie .
`)
	assert.Equal(t,
		[]string{"There are inconsistent classes in the ontology: Amphibian, Zombie"},
		CheckConsistency(g))
}

func TestCheckConsistency_SubClassOfNothing(t *testing.T) {
	g := mustParse(t, `
:Ghost a owl:Class ; rdfs:subClassOf owl:Nothing .
`)
	res := Reason(g)
	assert.True(t, res.Consistent)
	assert.Equal(t, []string{"http://example.org/highway_code#Ghost"}, res.UnsatisfiableClasses)
}

func TestCheckConsistency_IndividualInDisjointClasses(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Pedestrian a owl:Class ; owl:disjointWith :Vehicle .
:bob a :Vehicle, :Pedestrian .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))

	res := Reason(g)
	assert.False(t, res.Consistent)
	assert.Contains(t, res.Clash, "bob")
	assert.Empty(t, res.UnsatisfiableClasses)
}

func TestCheckConsistency_AllDisjointClasses(t *testing.T) {
	g := mustParse(t, `
:A a owl:Class . :B a owl:Class . :C a owl:Class .
[] a owl:AllDisjointClasses ; owl:members ( :A :B :C ) .
:AC a owl:Class ; rdfs:subClassOf :A, :C .
`)
	assert.Equal(t, []string{"There are inconsistent classes in the ontology: AC"}, CheckConsistency(g))
}

func TestCheckConsistency_ComplementOf(t *testing.T) {
	g := mustParse(t, `
:Moving a owl:Class .
:Parked a owl:Class ; owl:complementOf :Moving .
:car1 a :Moving, :Parked .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_SomeValuesFromUnsatisfiableFiller(t *testing.T) {
	g := mustParse(t, `
:hasPart a owl:ObjectProperty .
:Broken a owl:Class ; rdfs:subClassOf owl:Nothing .
:Machine a owl:Class ;
    rdfs:subClassOf [ a owl:Restriction ; owl:onProperty :hasPart ; owl:someValuesFrom :Broken ] .
`)
	assert.Equal(t, []string{"There are inconsistent classes in the ontology: Broken, Machine"}, CheckConsistency(g))
}

func TestCheckConsistency_RestrictionDomainClash(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Sign a owl:Class ; owl:disjointWith :Vehicle .
:drives a owl:ObjectProperty ; rdfs:domain :Vehicle .
:StopSign a owl:Class ; rdfs:subClassOf :Sign ,
    [ a owl:Restriction ; owl:onProperty :drives ; owl:someValuesFrom owl:Thing ] .
`)
	assert.Equal(t, []string{"There are inconsistent classes in the ontology: StopSign"}, CheckConsistency(g))
}

func TestCheckConsistency_DomainPropagatesToIndividual(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Sign a owl:Class ; owl:disjointWith :Vehicle .
:hasWheels a owl:DatatypeProperty ; rdfs:domain :Vehicle .
:stop a :Sign ; :hasWheels 4 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_SubPropertyDomain(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Sign a owl:Class ; owl:disjointWith :Vehicle .
:hasPart a owl:ObjectProperty ; rdfs:domain :Vehicle .
:hasWheel a owl:ObjectProperty ; rdfs:subPropertyOf :hasPart .
:stop a :Sign ; :hasWheel :w1 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_AllValuesFrom(t *testing.T) {
	g := mustParse(t, `
:Driver a owl:Class . :Child a owl:Class ; owl:disjointWith :Adult . :Adult a owl:Class .
:drivenBy a owl:ObjectProperty .
:Car a owl:Class ;
    rdfs:subClassOf [ a owl:Restriction ; owl:onProperty :drivenBy ; owl:allValuesFrom :Adult ] .
:tim a :Child .
:c1 a :Car ; :drivenBy :tim .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_FunctionalDataProperty(t *testing.T) {
	g := mustParse(t, `
:speedLimit a owl:DatatypeProperty, owl:FunctionalProperty .
:road1 :speedLimit 30 ; :speedLimit 50 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))

	same := mustParse(t, `
:speedLimit a owl:DatatypeProperty, owl:FunctionalProperty .
:road1 :speedLimit "30"^^xsd:integer ; :speedLimit "030"^^xsd:int .
`)
	assert.Empty(t, CheckConsistency(same))
}

func TestCheckConsistency_FunctionalObjectPropertyMergesValues(t *testing.T) {
	g := mustParse(t, `
:ownedBy a owl:ObjectProperty, owl:FunctionalProperty .
:car :ownedBy :alice, :bob .
:alice owl:differentFrom :bob .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_DatatypeRange(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		rng    string
		issues []string
	}{
		{"integer in integer", `"3"^^xsd:integer`, "xsd:integer", nil},
		{"int in decimal", `"3"^^xsd:int`, "xsd:decimal", nil},
		{"string in integer", `"fast"`, "xsd:integer", []string{MsgInconsistent}},
		{"negative in nonNegative", `"-1"^^xsd:integer`, "xsd:nonNegativeInteger", []string{MsgInconsistent}},
		{"anything in Literal", `"x"@en`, "rdfs:Literal", nil},
		{"lang string in string", `"x"@en`, "xsd:string", []string{MsgInconsistent}},
		{"boolean in boolean", `true`, "xsd:boolean", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustParse(t, `
:limit a owl:DatatypeProperty ; rdfs:range `+tt.rng+` .
:road :limit `+tt.value+` .
`)
			assert.Equal(t, tt.issues, CheckConsistency(g))
		})
	}
}

func TestCheckConsistency_IllTypedLiteral(t *testing.T) {
	g := mustParse(t, `
:road :limit "thirty"^^xsd:integer .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_SameAndDifferent(t *testing.T) {
	g := mustParse(t, `
:a owl:sameAs :b .
:b owl:sameAs :c .
[] a owl:AllDifferent ; owl:distinctMembers ( :a :c ) .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_SameAsMergesTypes(t *testing.T) {
	g := mustParse(t, `
:Vehicle a owl:Class .
:Pedestrian a owl:Class ; owl:disjointWith :Vehicle .
:x a :Vehicle .
:y a :Pedestrian .
:x owl:sameAs :y .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_PropertyCharacteristics(t *testing.T) {
	irreflexive := mustParse(t, `
:overtakes a owl:ObjectProperty, owl:IrreflexiveProperty .
:car1 :overtakes :car1 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(irreflexive))

	asymmetric := mustParse(t, `
:follows a owl:ObjectProperty, owl:AsymmetricProperty .
:car1 :follows :car2 .
:car2 :follows :car1 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(asymmetric))

	fine := mustParse(t, `
:follows a owl:ObjectProperty, owl:AsymmetricProperty .
:car1 :follows :car2 .
:car2 :follows :car3 .
`)
	assert.Empty(t, CheckConsistency(fine))
}

func TestCheckConsistency_InverseAsymmetric(t *testing.T) {
	g := mustParse(t, `
:follows a owl:ObjectProperty, owl:AsymmetricProperty .
:leads a owl:ObjectProperty ; owl:inverseOf :follows .
:car1 :follows :car2 .
:car1 :leads :car2 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_NegativePropertyAssertion(t *testing.T) {
	g := mustParse(t, `
:hasLicence a owl:ObjectProperty .
:tim :hasLicence :lic1 .
[] a owl:NegativePropertyAssertion ;
    owl:sourceIndividual :tim ;
    owl:assertionProperty :hasLicence ;
    owl:targetIndividual :lic1 .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_ObjectPropertyWithLiteral(t *testing.T) {
	g := mustParse(t, `
:Person a owl:Class .
:drivenBy a owl:ObjectProperty ; rdfs:range :Person .
:car :drivenBy "tim" .
`)
	assert.Equal(t, []string{MsgInconsistent}, CheckConsistency(g))
}

func TestCheckConsistency_AnnotationsIgnored(t *testing.T) {
	g := mustParse(t, `
:note a owl:AnnotationProperty .
:speedLimit a owl:DatatypeProperty, owl:FunctionalProperty .
:Car a owl:Class ; rdfs:label "car"@en ; :note "one" .
:road1 :speedLimit 30 ; :note "a", "b" .
`)
	assert.Empty(t, CheckConsistency(g))
}

func TestCheckConsistency_Deterministic(t *testing.T) {
	g := mustParse(t, `
:A a owl:Class ; owl:disjointWith :B . :B a owl:Class .
:X a owl:Class ; rdfs:subClassOf :A, :B .
`)
	first := CheckConsistency(g)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, CheckConsistency(g))
	}
}

func TestSession_Closed(t *testing.T) {
	s := NewSession(ontology.NewGraph())
	s.Close()
	_, err := s.Run()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestResult_Issues(t *testing.T) {
	assert.Nil(t, Result{Consistent: true}.Issues())
	assert.Equal(t, []string{MsgInconsistent}, Result{Consistent: false, Clash: "x"}.Issues())
	assert.Equal(t,
		[]string{"There are inconsistent classes in the ontology: A, B"},
		Result{Consistent: true, UnsatisfiableClasses: []string{"http://x#A", "http://y/B"}}.Issues())
}
