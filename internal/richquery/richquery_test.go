package richquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/queryir"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		sel      queryir.Select
		expected string
	}{
		{
			"files by uploader",
			queryir.Where("file", map[string]string{"UploaderEmail": "arif@gmail.com"}),
			`{"selector":{"DocType":"file","UploaderEmail":"arif@gmail.com"}}`,
		},
		{
			"shares by file",
			queryir.Where("fileShare", map[string]string{"FileKey": "file_cert.txt_hash123"}),
			`{"selector":{"DocType":"fileShare","FileKey":"file_cert.txt_hash123"}}`,
		},
		{
			"doc type only",
			queryir.Select{DocType: "user"},
			`{"selector":{"DocType":"user"}}`,
		},
		{
			"redundant doc type condition",
			queryir.Select{DocType: "user", Filter: queryir.Equals{Field: "DocType", Value: ir.IRString("user")}},
			`{"selector":{"DocType":"user"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		sel     queryir.Select
		wantErr string
	}{
		{"no doc type", queryir.Select{}, "document type is required"},
		{"conflict", queryir.Select{DocType: "user", Filter: queryir.Equals{Field: "DocType", Value: ir.IRString("file")}}, "conflicting conditions on DocType"},
		{"bad field", queryir.Where("file", map[string]string{"$or": "x"}), "invalid field name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.sel)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := queryir.Where("fileShare", map[string]string{
		"SharedWithEmail": "shahriar@gmail.com",
		"FileKey":         "file_1",
	})

	q, err := Compile(original)
	require.NoError(t, err)

	parsed, err := Parse(q)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"not json", `{`, "parse rich query"},
		{"no selector", `{}`, `"selector" must be an object`},
		{"extra key", `{"selector":{"DocType":"file"},"limit":10}`, `unsupported key "limit"`},
		{"no doc type", `{"selector":{"Name":"x"}}`, "requires a string DocType"},
		{"numeric doc type", `{"selector":{"DocType":1}}`, "requires a string DocType"},
		{"operator", `{"selector":{"DocType":"file","$or":[{"Name":"a"}]}}`, "invalid field name"},
		{"nested value", `{"selector":{"DocType":"file","Name":{"$gt":"a"}}}`, "must be string, int or bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
