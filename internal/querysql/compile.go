// Package querysql compiles queryir selects to parameterized SQLite over the
// world_state table, using SQLite's JSON functions to match record fields.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/queryir"
)

// DefaultTable is the world-state table created by statesqlite.
const DefaultTable = "world_state"

// docExpr yields the value as JSON text, or NULL when it is not valid JSON.
// The CASE guard keeps json_type/json_extract from raising on arbitrary
// bytes stored under non-record keys.
const docExpr = "CASE WHEN json_valid(CAST(value AS TEXT)) THEN CAST(value AS TEXT) END"

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query orders by key with COLLATE BINARY so results come back in the
// same order as a LevelDB index scan. Values and JSON paths are always
// parameters; field names are validated identifiers.
type SQLCompiler struct {
	Table string
}

// NewSQLCompiler creates a compiler for the default world-state table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: DefaultTable}
}

// Compile converts a query to (sql, params). The result set columns are
// key, value, version.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	var sel queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		sel = query
	case *queryir.Select:
		sel = *query
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	if err := queryir.Validate(sel); err != nil {
		return "", nil, err
	}
	conds, err := queryir.Conditions(sel)
	if err != nil {
		return "", nil, err
	}

	var where []string
	var params []any
	for _, cond := range conds {
		sql, condParams, err := compileEquals(cond)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, sql)
		params = append(params, condParams...)
	}

	sql := fmt.Sprintf("SELECT key, value, version FROM (SELECT key, value, version, %s AS doc FROM %s) WHERE %s ORDER BY key ASC COLLATE BINARY",
		docExpr, c.Table, strings.Join(where, " AND "))
	return sql, params, nil
}

// compileEquals matches both the JSON type and the value, so the string
// "1", the integer 1 and true stay distinct the way they are in the
// record encoding.
func compileEquals(eq queryir.Equals) (string, []any, error) {
	path := "$." + eq.Field

	switch v := eq.Value.(type) {
	case ir.IRString:
		return "json_type(doc, ?) = 'text' AND json_extract(doc, ?) = ?", []any{path, path, string(v)}, nil
	case ir.IRInt:
		return "json_type(doc, ?) = 'integer' AND json_extract(doc, ?) = ?", []any{path, path, int64(v)}, nil
	case ir.IRBool:
		return "json_type(doc, ?) = ?", []any{path, jsonBoolType(bool(v))}, nil
	default:
		return "", nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", eq.Value)
	}
}

func jsonBoolType(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
