package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/queryir"
)

func TestCompile_FilesByUploader(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Where("file", map[string]string{"UploaderEmail": "arif@gmail.com"}))
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM world_state")
	assert.Contains(t, sql, "ORDER BY key ASC COLLATE BINARY")
	assert.NotContains(t, sql, "arif@gmail.com", "values must be parameters")
	assert.NotContains(t, sql, "UploaderEmail", "paths must be parameters")
	assert.Equal(t, []any{
		"$.DocType", "$.DocType", "file",
		"$.UploaderEmail", "$.UploaderEmail", "arif@gmail.com",
	}, params)
}

func TestCompile_Pointer(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(&queryir.Select{DocType: "user"})
	require.NoError(t, err)
	assert.Contains(t, sql, "json_valid")
	assert.Equal(t, []any{"$.DocType", "$.DocType", "user"}, params)
}

func TestCompile_ValueKinds(t *testing.T) {
	sel := queryir.Select{DocType: "x", Filter: queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "n", Value: ir.IRInt(7)},
		queryir.Equals{Field: "b", Value: ir.IRBool(false)},
	}}}

	sql, params, err := NewSQLCompiler().Compile(sel)
	require.NoError(t, err)
	assert.Contains(t, sql, "= 'integer'")
	assert.Equal(t, []any{
		"$.DocType", "$.DocType", "x",
		"$.n", "$.n", int64(7),
		"$.b", "false",
	}, params)
}

func TestCompile_CustomTable(t *testing.T) {
	c := &SQLCompiler{Table: "snapshot"}
	sql, _, err := c.Compile(queryir.Select{DocType: "user"})
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM snapshot")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   queryir.Query
		wantErr string
	}{
		{"nil", nil, "nil query"},
		{"no doc type", queryir.Select{}, "document type"},
		{"bad field", queryir.Where("file", map[string]string{"a'b": "x"}), "invalid field name"},
		{"array value", queryir.Select{DocType: "f", Filter: queryir.Equals{Field: "a", Value: ir.IRArray{}}}, "must be string, int or bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSQLCompiler().Compile(tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
