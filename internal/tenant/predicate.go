// Package tenant builds the declarative access predicates that restrict
// which indexed chunks a caller may retrieve, and audits results after
// retrieval.
package tenant

import (
	"strings"

	"github.com/smartclaim/triage/internal/domain"
)

// ImpossibleMatch is a department value no real record carries. A
// predicate on it is unsatisfiable.
const ImpossibleMatch = "__IMPOSSIBLE_MATCH__"

// Clause is a single field-equality condition.
type Clause struct {
	Field string
	Value string
}

// Predicate is a conjunction of field-equality clauses. A nil *Predicate
// means "no restriction"; only the admin branch of Build produces one.
type Predicate struct {
	clauses []Clause
}

// Eq returns a predicate matching records whose field equals value.
func Eq(field, value string) *Predicate {
	return &Predicate{clauses: []Clause{{Field: field, Value: value}}}
}

// Never returns a predicate no record satisfies.
func Never() *Predicate {
	return Eq(domain.FieldDepartmentID, ImpossibleMatch)
}

// And intersects predicates. Nil operands are identity elements, so
// And(nil, p) is p and And() is nil. The result never matches more than
// any of its non-nil operands.
func And(preds ...*Predicate) *Predicate {
	var clauses []Clause
	restricted := false
	for _, p := range preds {
		if p == nil {
			continue
		}
		restricted = true
		clauses = append(clauses, p.clauses...)
	}
	if !restricted {
		return nil
	}
	return &Predicate{clauses: clauses}
}

// Clauses returns a copy of the conjunction.
func (p *Predicate) Clauses() []Clause {
	if p == nil {
		return nil
	}
	out := make([]Clause, len(p.clauses))
	copy(out, p.clauses)
	return out
}

// IsUnrestricted reports whether p places no constraint on records.
func (p *Predicate) IsUnrestricted() bool {
	return p == nil
}

// Matches evaluates p against chunk metadata. A missing field never equals
// a clause value.
func (p *Predicate) Matches(m domain.ChunkMetadata) bool {
	if p == nil {
		return true
	}
	for _, c := range p.clauses {
		v, ok := m.Lookup(c.Field)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

func (p *Predicate) String() string {
	if p == nil {
		return "<unrestricted>"
	}
	parts := make([]string, len(p.clauses))
	for i, c := range p.clauses {
		parts[i] = c.Field + "==" + c.Value
	}
	return strings.Join(parts, " AND ")
}
