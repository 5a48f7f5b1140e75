package chaincode

import (
	"context"
	"fmt"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/queryir"
	"github.com/roach88/tdrive/internal/record"
	"github.com/roach88/tdrive/internal/richquery"
	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
)

// QueryResult is one row of a query response. Record is the decoded
// value, or the raw text as a string when the value does not decode
// strictly, for example because it holds a float or a null.
type QueryResult struct {
	Key    string
	Record ir.IRValue
}

// Fields returns the row as it appears in a response.
func (r QueryResult) Fields() ir.IRObject {
	return ir.IRObject{"Key": ir.IRString(r.Key), "Record": r.Record}
}

// FindFileByUser lists the files uploaded by email.
func (t *TDrive) FindFileByUser(ctx context.Context, stub shim.Stub, email string) ([]QueryResult, error) {
	return t.query(ctx, stub, queryir.Where(record.DocTypeFile, map[string]string{
		"UploaderEmail": email,
	}))
}

// SharedFileListByFile lists the shares of fileKey.
func (t *TDrive) SharedFileListByFile(ctx context.Context, stub shim.Stub, fileKey string) ([]QueryResult, error) {
	return t.query(ctx, stub, queryir.Where(record.DocTypeFileShare, map[string]string{
		"FileKey": fileKey,
	}))
}

// SharedFileListByUser lists the shares addressed to email.
func (t *TDrive) SharedFileListByUser(ctx context.Context, stub shim.Stub, email string) ([]QueryResult, error) {
	return t.query(ctx, stub, queryir.Where(record.DocTypeFileShare, map[string]string{
		"SharedWithEmail": email,
	}))
}

// GetAllAssets returns every value in the world state in key order. The
// scan is unfiltered, so users, files and shares are included.
func (t *TDrive) GetAllAssets(ctx context.Context, stub shim.Stub) ([]ir.IRValue, error) {
	it, err := stub.GetStateByRange(ctx, "", "")
	if err != nil {
		return nil, err
	}
	rows, err := state.Collect(it)
	if err != nil {
		return nil, fmt.Errorf("scan world state: %w", err)
	}

	out := make([]ir.IRValue, 0, len(rows))
	for _, row := range rows {
		out = append(out, t.decodeValue(row.Key, row.Value))
	}
	return out, nil
}

func (t *TDrive) query(ctx context.Context, stub shim.Stub, sel queryir.Select) ([]QueryResult, error) {
	q, err := richquery.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	it, err := stub.GetQueryResult(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := state.Collect(it)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q, err)
	}

	out := make([]QueryResult, 0, len(rows))
	for _, row := range rows {
		if len(row.Value) == 0 {
			continue
		}
		out = append(out, QueryResult{Key: row.Key, Record: t.decodeValue(row.Key, row.Value)})
	}
	return out, nil
}

// decodeValue parses a stored value, degrading to the raw text when it is
// not strict JSON.
func (t *TDrive) decodeValue(key string, value []byte) ir.IRValue {
	v, err := ir.UnmarshalIRValue(value)
	if err != nil {
		if len(value) > 0 {
			t.logger.Warn("returning undecodable value as text", "key", key, "error", err)
		}
		return ir.IRString(value)
	}
	return v
}
