package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalArgs converts positional arguments to a JSON array TEXT.
// Arguments are stored byte for byte: canonical JSON would NFC-normalize
// them, and replay must hand the handler exactly what the client sent.
func marshalArgs(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalArgs parses JSON array TEXT back into positional arguments.
// Returns an empty slice (not nil) for an empty array.
func unmarshalArgs(data string) ([]string, error) {
	args := []string{}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}
