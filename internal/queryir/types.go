package queryir

import "github.com/roach88/tdrive/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface; the marker method keeps implementations in
// this package so backend compilers can switch exhaustively.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface. Predicate types:
//   - Equals: field = literal_value
//   - And: all predicates must be true
//
// There is no OR and no negation; the selector language stays within what
// an explicit secondary index can answer.
type Predicate interface {
	predicateNode()
}

// Select matches records whose DocType field equals DocType and which
// satisfy Filter.
//
// Example:
//
//	Select{
//	  DocType: "file",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "UploaderEmail", Value: ir.IRString("arif@gmail.com")},
//	  }},
//	}
//
// Records without a DocType (assets) are never matched.
type Select struct {
	DocType string    // required document type
	Filter  Predicate // nil = every record of DocType
}

func (Select) queryNode() {}

// Equals is the field-equals-literal predicate. Field names a top-level
// field of the record; Value must be a scalar (string, int or bool).
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds a Select for docType with one Equals per entry of fields,
// in sorted field order so the resulting query is deterministic.
func Where(docType string, fields map[string]string) Select {
	keys := make(ir.IRObject, len(fields))
	for k, v := range fields {
		keys[k] = ir.IRString(v)
	}
	preds := make([]Predicate, 0, len(fields))
	for _, k := range keys.SortedKeys() {
		preds = append(preds, Equals{Field: k, Value: keys[k]})
	}
	return Select{DocType: docType, Filter: And{Predicates: preds}}
}
