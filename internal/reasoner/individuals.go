package reasoner

import (
	"sort"
	"strings"

	"github.com/LyzardKing/llm-owl/internal/ontology"
)

// assertion is a property assertion between an individual and a value.
type assertion struct {
	subject  string
	property string
	object   ontology.Term
}

// individuals holds the ABox view built by checkIndividuals.
type individuals struct {
	parent     map[string]string
	types      map[string]map[string]struct{}
	assertions []assertion
}

func (ind *individuals) add(key string) {
	if _, ok := ind.parent[key]; !ok {
		ind.parent[key] = key
	}
}

func (ind *individuals) find(key string) string {
	ind.add(key)
	for ind.parent[key] != key {
		ind.parent[key] = ind.parent[ind.parent[key]]
		key = ind.parent[key]
	}
	return key
}

func (ind *individuals) union(a, b string) bool {
	ra, rb := ind.find(a), ind.find(b)
	if ra == rb {
		return false
	}
	// Keep the smaller key as representative so explanations are stable.
	if rb < ra {
		ra, rb = rb, ra
	}
	ind.parent[rb] = ra
	return true
}

func (ind *individuals) addType(individual, class string) bool {
	if ind.types[individual] == nil {
		ind.types[individual] = make(map[string]struct{})
	}
	if _, ok := ind.types[individual][class]; ok {
		return false
	}
	ind.types[individual][class] = struct{}{}
	return true
}

// isVocabulary reports whether iri belongs to the RDF, RDFS, OWL or XSD vocabularies.
func isVocabulary(iri string) bool {
	for _, ns := range []string{ontology.RDFNS, ontology.RDFSNS, ontology.OWLNS, ontology.XSDNS} {
		if strings.HasPrefix(iri, ns) {
			return true
		}
	}
	return false
}

func (s *Session) isSchema(t ontology.Term) bool {
	_, ok := s.schema[t.Key()]
	return ok
}

func (s *Session) declared(p, class string) bool {
	return s.g.Has(ontology.NewIRI(p), ontology.NewIRI(ontology.RDFType), ontology.NewIRI(class))
}

// collectIndividuals gathers class and property assertions about individuals.
func (s *Session) collectIndividuals() *individuals {
	ind := &individuals{
		parent: make(map[string]string),
		types:  make(map[string]map[string]struct{}),
	}

	for _, t := range s.g.WithPredicate(ontology.RDFType) {
		if t.Object.IsLiteral() || s.isSchema(t.Subject) {
			continue
		}
		if t.Object.IsIRI() && isVocabulary(t.Object.Value) &&
			t.Object.Value != ontology.OWLThing && t.Object.Value != ontology.OWLNothing {
			if t.Object.Value == ontology.OWLNamedIndividual {
				s.terms[t.Subject.Key()] = t.Subject
				ind.add(t.Subject.Key())
			}
			continue
		}
		key := t.Subject.Key()
		s.terms[key] = t.Subject
		s.terms[t.Object.Key()] = t.Object
		ind.addType(key, t.Object.Key())
		ind.add(key)
	}

	var base []assertion
	for _, t := range s.g.Triples() {
		p := t.Predicate.Value
		if isVocabulary(p) || s.isSchema(t.Subject) || s.declared(p, ontology.OWLAnnotationProperty) {
			continue
		}
		if !t.Object.IsLiteral() && s.isSchema(t.Object) {
			continue
		}
		key := t.Subject.Key()
		s.terms[key] = t.Subject
		ind.add(key)
		if !t.Object.IsLiteral() {
			s.terms[t.Object.Key()] = t.Object
			ind.add(t.Object.Key())
		}
		base = append(base, assertion{subject: key, property: p, object: t.Object})
	}

	// Inverse properties add the mirrored assertion.
	inverses := make(map[string][]string)
	for _, t := range s.g.WithPredicate(ontology.OWLInverseOf) {
		if t.Subject.IsIRI() && t.Object.IsIRI() {
			inverses[t.Subject.Value] = append(inverses[t.Subject.Value], t.Object.Value)
			inverses[t.Object.Value] = append(inverses[t.Object.Value], t.Subject.Value)
		}
	}
	n := len(base)
	for i := 0; i < n; i++ {
		a := base[i]
		if a.object.IsLiteral() {
			continue
		}
		for _, q := range inverses[a.property] {
			base = append(base, assertion{subject: a.object.Key(), property: q, object: s.terms[a.subject]})
		}
	}

	// Every assertion also holds for the super-properties.
	seen := make(map[[3]string]struct{})
	for _, a := range base {
		for _, q := range s.props.Ancestors(a.property) {
			k := [3]string{a.subject, q, a.object.Key()}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			ind.assertions = append(ind.assertions, assertion{subject: a.subject, property: q, object: a.object})
		}
	}

	for _, t := range s.g.WithPredicate(ontology.OWLSameAs) {
		if !t.Subject.IsLiteral() && !t.Object.IsLiteral() {
			s.terms[t.Subject.Key()] = t.Subject
			s.terms[t.Object.Key()] = t.Object
			ind.union(t.Subject.Key(), t.Object.Key())
		}
	}
	return ind
}

// mergeFunctionalValues identifies the individual values of functional
// object properties that share a subject.
func (s *Session) mergeFunctionalValues(ind *individuals) {
	functional := make(map[string]bool)
	for _, p := range s.g.InstancesOf(ontology.OWLFunctionalProperty) {
		functional[p.Value] = true
	}
	if len(functional) == 0 {
		return
	}
	for changed := true; changed; {
		changed = false
		first := make(map[[2]string]string)
		for _, a := range ind.assertions {
			if !functional[a.property] || a.object.IsLiteral() {
				continue
			}
			k := [2]string{ind.find(a.subject), a.property}
			if prev, ok := first[k]; ok {
				if ind.union(prev, a.object.Key()) {
					changed = true
				}
				continue
			}
			first[k] = a.object.Key()
		}
	}
}

// inferTypes applies domains, ranges and universal restrictions until no
// new type is derived. It returns an explanation if a literal violates a range.
func (s *Session) inferTypes(ind *individuals) string {
	allValues := make(map[string][]restriction)
	for _, r := range s.g.InstancesOf(ontology.OWLRestriction) {
		for _, p := range s.g.Objects(r, ontology.OWLOnProperty) {
			for _, f := range s.g.Objects(r, ontology.OWLAllValuesFrom) {
				if p.IsIRI() && !f.IsLiteral() && !isDatatype(f) {
					allValues[r.Key()] = append(allValues[r.Key()], restriction{property: p.Value, filler: s.node(f)})
				}
			}
		}
	}

	// Merge type sets onto representatives.
	merged := make(map[string]map[string]struct{})
	for key, types := range ind.types {
		rep := ind.find(key)
		if merged[rep] == nil {
			merged[rep] = make(map[string]struct{})
		}
		for c := range types {
			merged[rep][c] = struct{}{}
		}
	}
	ind.types = merged

	for _, a := range ind.assertions {
		subj := ind.find(a.subject)
		for _, d := range s.g.Objects(ontology.NewIRI(a.property), ontology.RDFSDomain) {
			if !isDatatype(d) {
				ind.addType(subj, s.node(d))
			}
		}
		for _, rg := range s.g.Objects(ontology.NewIRI(a.property), ontology.RDFSRange) {
			switch {
			case a.object.IsLiteral() && isDatatype(rg):
				if !compatible(a.object, rg.Value) {
					return "value " + a.object.Key() + " of " + ontology.LocalName(a.property) +
						" is outside its range " + displayTerm(rg)
				}
			case a.object.IsLiteral():
				if s.declared(a.property, ontology.OWLObjectProperty) {
					return "object property " + ontology.LocalName(a.property) + " has literal value " + a.object.Key()
				}
			case !isDatatype(rg):
				ind.addType(ind.find(a.object.Key()), s.node(rg))
			}
		}
	}

	if len(allValues) == 0 {
		return ""
	}
	for changed := true; changed; {
		changed = false
		for _, a := range ind.assertions {
			if a.object.IsLiteral() {
				continue
			}
			subj := ind.find(a.subject)
			for c := range s.closure(keys(ind.types[subj])...) {
				for _, r := range allValues[c] {
					if r.property == a.property && ind.addType(ind.find(a.object.Key()), r.filler) {
						changed = true
					}
				}
			}
		}
	}
	return ""
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// checkIndividuals returns an explanation of the first contradiction among
// the individuals, or "" if none was found.
func (s *Session) checkIndividuals() string {
	ind := s.collectIndividuals()
	s.mergeFunctionalValues(ind)

	for _, a := range ind.assertions {
		if a.object.IsLiteral() && !wellFormed(a.object) {
			return "ill-typed literal " + a.object.Key()
		}
	}

	if clash := s.inferTypes(ind); clash != "" {
		return clash
	}

	reps := make([]string, 0, len(ind.types))
	for rep := range ind.types {
		reps = append(reps, rep)
	}
	sort.Strings(reps)
	for _, rep := range reps {
		if clash := s.clashIn(s.closure(keys(ind.types[rep])...)); clash != "" {
			return "individual " + s.display(rep) + " is a member of " + clash
		}
	}

	if clash := s.checkDistinct(ind); clash != "" {
		return clash
	}
	if clash := s.checkCharacteristics(ind); clash != "" {
		return clash
	}
	return s.checkNegativeAssertions(ind)
}

func (s *Session) checkDistinct(ind *individuals) string {
	for _, t := range s.g.WithPredicate(ontology.OWLDifferentFrom) {
		if t.Object.IsLiteral() {
			continue
		}
		if ind.find(t.Subject.Key()) == ind.find(t.Object.Key()) {
			return "individuals " + displayTerm(t.Subject) + " and " + displayTerm(t.Object) + " are both same and different"
		}
	}
	for _, axiom := range s.g.InstancesOf(ontology.OWLAllDifferent) {
		for _, pred := range []string{ontology.OWLMembers, ontology.OWLDistinctMembers} {
			for _, list := range s.g.Objects(axiom, pred) {
				members, ok := s.g.List(list)
				if !ok {
					continue
				}
				for i := range members {
					for j := i + 1; j < len(members); j++ {
						if ind.find(members[i].Key()) == ind.find(members[j].Key()) {
							return "individuals " + displayTerm(members[i]) + " and " + displayTerm(members[j]) + " are both same and different"
						}
					}
				}
			}
		}
	}
	return ""
}

func (s *Session) checkCharacteristics(ind *individuals) string {
	irreflexive := make(map[string]bool)
	for _, p := range s.g.InstancesOf(ontology.OWLIrreflexiveProperty) {
		irreflexive[p.Value] = true
	}
	asymmetric := make(map[string]bool)
	for _, p := range s.g.InstancesOf(ontology.OWLAsymmetricProperty) {
		asymmetric[p.Value] = true
	}
	functional := make(map[string]bool)
	for _, p := range s.g.InstancesOf(ontology.OWLFunctionalProperty) {
		functional[p.Value] = true
	}

	edges := make(map[[3]string]struct{})
	for _, a := range ind.assertions {
		if a.object.IsLiteral() {
			continue
		}
		edges[[3]string{ind.find(a.subject), a.property, ind.find(a.object.Key())}] = struct{}{}
	}

	values := make(map[[2]string]ontology.Term)
	for _, a := range ind.assertions {
		subj := ind.find(a.subject)
		if a.object.IsLiteral() {
			if !functional[a.property] {
				continue
			}
			k := [2]string{subj, a.property}
			if prev, ok := values[k]; ok && !sameValue(prev, a.object) {
				return "functional property " + ontology.LocalName(a.property) + " of " + s.display(subj) +
					" has values " + prev.Key() + " and " + a.object.Key()
			}
			values[k] = a.object
			continue
		}

		obj := ind.find(a.object.Key())
		if irreflexive[a.property] && subj == obj {
			return "irreflexive property " + ontology.LocalName(a.property) + " relates " + s.display(subj) + " to itself"
		}
		if asymmetric[a.property] {
			if _, ok := edges[[3]string{obj, a.property, subj}]; ok {
				return "asymmetric property " + ontology.LocalName(a.property) + " holds both ways between " +
					s.display(subj) + " and " + s.display(obj)
			}
		}
	}
	return ""
}

func (s *Session) checkNegativeAssertions(ind *individuals) string {
	for _, n := range s.g.InstancesOf(ontology.OWLNegativePropertyAssertion) {
		for _, src := range s.g.Objects(n, ontology.OWLSourceIndividual) {
			for _, p := range s.g.Objects(n, ontology.OWLAssertionProperty) {
				for _, a := range ind.assertions {
					if a.property != p.Value || ind.find(a.subject) != ind.find(src.Key()) {
						continue
					}
					for _, target := range s.g.Objects(n, ontology.OWLTargetIndividual) {
						if !a.object.IsLiteral() && ind.find(a.object.Key()) == ind.find(target.Key()) {
							return "negative assertion on " + p.LocalName() + " contradicted for " + displayTerm(src)
						}
					}
					for _, v := range s.g.Objects(n, ontology.OWLTargetValue) {
						if a.object.IsLiteral() && v.IsLiteral() && sameValue(a.object, v) {
							return "negative assertion on " + p.LocalName() + " contradicted for " + displayTerm(src)
						}
					}
				}
			}
		}
	}
	return ""
}
