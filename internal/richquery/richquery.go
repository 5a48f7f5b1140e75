// Package richquery converts between queryir selects and the JSON rich
// query strings passed through the world-state store contract:
//
//	{"selector":{"DocType":"file","UploaderEmail":"arif@gmail.com"}}
//
// Only implicit equality on top-level fields is supported; operator
// objects ($or, $gt, ...) are rejected.
package richquery

import (
	"fmt"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/queryir"
)

const selectorKey = "selector"

// Compile renders sel as a canonical JSON rich query.
func Compile(sel queryir.Select) (string, error) {
	if sel.DocType == "" {
		return "", fmt.Errorf("compile selector: document type is required")
	}
	conds, err := queryir.Conditions(sel)
	if err != nil {
		return "", fmt.Errorf("compile selector: %w", err)
	}

	selector := make(ir.IRObject, len(conds))
	for _, c := range conds {
		if prev, ok := selector[c.Field]; ok && prev != c.Value {
			return "", fmt.Errorf("compile selector: conflicting conditions on %s", c.Field)
		}
		selector[c.Field] = c.Value
	}

	data, err := ir.MarshalCanonical(ir.IRObject{selectorKey: selector})
	if err != nil {
		return "", fmt.Errorf("compile selector: %w", err)
	}
	return string(data), nil
}

// Parse reads a rich query string back into a Select. Equality conditions
// other than DocType come back in canonical field order.
func Parse(query string) (queryir.Select, error) {
	root, err := ir.UnmarshalIRObject([]byte(query))
	if err != nil {
		return queryir.Select{}, fmt.Errorf("parse rich query: %w", err)
	}
	for k := range root {
		if k != selectorKey {
			return queryir.Select{}, fmt.Errorf("parse rich query: unsupported key %q", k)
		}
	}
	selector, ok := root[selectorKey].(ir.IRObject)
	if !ok {
		return queryir.Select{}, fmt.Errorf("parse rich query: %q must be an object", selectorKey)
	}

	docType, ok := selector[queryir.DocTypeField].(ir.IRString)
	if !ok || docType == "" {
		return queryir.Select{}, fmt.Errorf("parse rich query: selector requires a string %s", queryir.DocTypeField)
	}

	preds := []queryir.Predicate{}
	for _, field := range selector.SortedKeys() {
		if field == queryir.DocTypeField {
			continue
		}
		preds = append(preds, queryir.Equals{Field: field, Value: selector[field]})
	}

	sel := queryir.Select{DocType: string(docType), Filter: queryir.And{Predicates: preds}}
	if err := queryir.Validate(sel); err != nil {
		return queryir.Select{}, fmt.Errorf("parse rich query: %w", err)
	}
	return sel, nil
}
