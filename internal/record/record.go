// Package record defines the world-state entities and their byte encoding.
//
// Encoding is canonical JSON (see ir.MarshalCanonical): the bytes written
// for a record are a pure function of its field values, independent of
// struct layout or construction order.
package record

import (
	"fmt"

	"github.com/roach88/tdrive/internal/ir"
)

// Document type discriminants written into the DocType field.
// Asset records carry no DocType.
const (
	DocTypeUser      = "user"
	DocTypeFile      = "file"
	DocTypeFileShare = "fileShare"
)

// DocTypeField is the field name holding the document type.
const DocTypeField = "DocType"

// Record is an entity that can be written to the world state.
type Record interface {
	// Fields returns the record as an object, including DocType when the
	// kind has one.
	Fields() ir.IRObject
}

// Decodable is implemented by pointers to record types.
type Decodable interface {
	FromFields(obj ir.IRObject) error
}

// Encode serializes r to canonical JSON.
func Encode(r Record) ([]byte, error) {
	data, err := ir.MarshalCanonical(r.Fields())
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode parses canonical (or any strict) JSON into r.
// Unknown fields are ignored and missing fields decode as "".
func Decode(data []byte, r Decodable) error {
	obj, err := ir.UnmarshalIRObject(data)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := r.FromFields(obj); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// fieldReader reads string fields from an object and keeps the first
// type error it hits.
type fieldReader struct {
	obj ir.IRObject
	err error
}

func (r *fieldReader) str(name string) string {
	s, ok := r.obj.String(name)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %s: expected string, got %s", name, ir.TypeName(r.obj[name]))
	}
	return s
}
