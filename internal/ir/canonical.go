package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// Every world-state value and every transaction response goes through here,
// so identical inputs yield identical bytes on every endorsing node.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (returns error)
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil, IRNull:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case IRString:
		return writeCanonicalString(buf, string(val))
	case string:
		return writeCanonicalString(buf, val)
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case IRBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case IRArray:
		return writeCanonicalArray(buf, val)
	case IRObject:
		return writeCanonicalObject(buf, val)
	case []any, map[string]any:
		converted, err := FromGo(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, converted)
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// FromGo converts plain Go values (string, int, int64, bool, []any,
// map[string]any) into an IRValue.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case int64:
		return IRInt(val), nil
	case int:
		return IRInt(val), nil
	case bool:
		return IRBool(val), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden")
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// CanonicalString returns the string a record field holds once s has been
// through MarshalCanonical and decoded again: NFC normalized, with each
// invalid UTF-8 byte replaced by U+FFFD. Compare caller input against
// stored fields through this.
func CanonicalString(s string) string {
	if utf8.ValidString(s) {
		return norm.NFC.String(s)
	}
	var buf bytes.Buffer
	if err := writeCanonicalString(&buf, s); err != nil {
		return norm.NFC.String(strings.ToValidUTF8(s, "\uFFFD"))
	}
	var out string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		return norm.NFC.String(strings.ToValidUTF8(s, "\uFFFD"))
	}
	return out
}

// writeCanonicalString writes s as an RFC 8785 JSON string.
// Only control characters, backslash and quote are escaped; U+2028 and
// U+2029 are written literally (encoding/json escapes them for JavaScript).
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))

	// Escapes produced by the encoder are always preceded by an unescaped
	// backslash, so scanning escape-by-escape never mistakes a literal
	// "\\u2028" for a separator escape.
	for i := 0; i < len(out); i++ {
		c := out[i]
		if c != '\\' {
			buf.WriteByte(c)
			continue
		}
		if i+5 < len(out) && out[i+1] == 'u' && string(out[i+2:i+5]) == "202" {
			switch out[i+5] {
			case '8':
				buf.WriteString("\u2028")
				i += 5
				continue
			case '9':
				buf.WriteString("\u2029")
				i += 5
				continue
			}
		}
		buf.WriteByte(c)
		if i+1 < len(out) {
			i++
			buf.WriteByte(out[i])
		}
	}
	return nil
}

func writeCanonicalArray(buf *bytes.Buffer, arr IRArray) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj IRObject) error {
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
