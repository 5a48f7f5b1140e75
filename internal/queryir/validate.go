package queryir

import (
	"fmt"
	"regexp"

	"github.com/roach88/tdrive/internal/ir"
)

// DocTypeField is the record field a Select's DocType is matched against.
const DocTypeField = "DocType"

// validIdentifier matches field names that are safe to embed in a JSON
// path or an index key.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidField reports whether name can be used as a selector field.
func IsValidField(name string) bool {
	return validIdentifier.MatchString(name)
}

// Validate checks that q is a Select with a document type, identifier
// field names and scalar comparison values.
func Validate(q Query) error {
	sel, ok := q.(Select)
	if !ok {
		if p, isPtr := q.(*Select); isPtr && p != nil {
			sel = *p
		} else {
			return fmt.Errorf("unsupported query type: %T", q)
		}
	}
	if sel.DocType == "" {
		return fmt.Errorf("select requires a document type")
	}
	_, err := Conditions(sel)
	return err
}

// Conditions flattens sel's filter into the list of equality conditions
// it implies, DocType first. Nested And predicates are flattened in order.
func Conditions(sel Select) ([]Equals, error) {
	conds := []Equals{{Field: DocTypeField, Value: ir.IRString(sel.DocType)}}
	if err := flatten(sel.Filter, &conds); err != nil {
		return nil, err
	}
	for _, c := range conds {
		if !IsValidField(c.Field) {
			return nil, fmt.Errorf("invalid field name %q", c.Field)
		}
		switch c.Value.(type) {
		case ir.IRString, ir.IRInt, ir.IRBool:
		default:
			return nil, fmt.Errorf("field %s: value must be string, int or bool, got %s", c.Field, ir.TypeName(c.Value))
		}
	}
	return conds, nil
}

func flatten(p Predicate, out *[]Equals) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		*out = append(*out, pred)
	case *Equals:
		*out = append(*out, *pred)
	case And:
		for _, sub := range pred.Predicates {
			if err := flatten(sub, out); err != nil {
				return err
			}
		}
	case *And:
		return flatten(*pred, out)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

// Matches reports whether obj satisfies every condition. A condition on a
// missing field never matches, and values compare by kind and value.
func Matches(obj ir.IRObject, conds []Equals) bool {
	for _, c := range conds {
		v, ok := obj[c.Field]
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}
