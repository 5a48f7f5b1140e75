package chaincode

import (
	"context"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/record"
	"github.com/roach88/tdrive/internal/shim"
)

// Function describes one invocable transaction function.
type Function struct {
	Name   string
	Params []string

	// ReadOnly functions never write; clients normally Evaluate them.
	ReadOnly bool
}

type route struct {
	Function
	call func(ctx context.Context, stub shim.Stub, args []string) (string, error)
}

// Router dispatches positional string arguments to the TDrive handlers.
// It implements shim.Handler.
type Router struct {
	routes map[string]route
}

var _ shim.Handler = (*Router)(nil)

// NewRouter registers every t-drive function on contract.
func NewRouter(contract *TDrive) *Router {
	r := &Router{routes: make(map[string]route)}
	t := contract

	r.add(false, "CreateUser", []string{"key", "email", "password", "name"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.CreateUser(ctx, stub, a[0], a[1], a[2], a[3]))
	})
	r.add(true, "FindUser", []string{"email", "password"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.FindUser(ctx, stub, a[0], a[1]))
	})

	r.add(false, "CreateFile", []string{"key", "name", "downloadLink", "fileHash", "uploaderEmail"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.CreateFile(ctx, stub, a[0], a[1], a[2], a[3], a[4]))
	})
	r.add(true, "FindFile", []string{"key"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.FindFile(ctx, stub, a[0]))
	})
	r.add(true, "FindFileByUser", []string{"email"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeResults(t.FindFileByUser(ctx, stub, a[0]))
	})
	r.add(false, "ChangeFileName", []string{"key", "newName"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.ChangeFileName(ctx, stub, a[0], a[1]))
	})
	r.add(false, "DeleteFile", []string{"key"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeStatus(t.DeleteFile(ctx, stub, a[0]), "File deleted")
	})

	r.add(false, "ShareFile", []string{"key", "fileKey", "sharedWithEmail"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.ShareFile(ctx, stub, a[0], a[1], a[2]))
	})
	r.add(true, "SharedFileListByFile", []string{"fileKey"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeResults(t.SharedFileListByFile(ctx, stub, a[0]))
	})
	r.add(true, "SharedFileListByUser", []string{"email"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeResults(t.SharedFileListByUser(ctx, stub, a[0]))
	})
	r.add(false, "DeleteFileShare", []string{"key"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeStatus(t.DeleteFileShare(ctx, stub, a[0]), "File share deleted")
	})

	r.add(false, "CreateAsset", []string{"id", "color", "size", "owner", "appraisedValue"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.CreateAsset(ctx, stub, a[0], a[1], a[2], a[3], a[4]))
	})
	r.add(true, "ReadAsset", []string{"id"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.ReadAsset(ctx, stub, a[0]))
	})
	r.add(false, "UpdateAsset", []string{"id", "color", "size", "owner", "appraisedValue"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeRecord(t.UpdateAsset(ctx, stub, a[0], a[1], a[2], a[3], a[4]))
	})
	r.add(false, "DeleteAsset", []string{"id"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return encodeStatus(t.DeleteAsset(ctx, stub, a[0]), "Asset deleted")
	})
	r.add(false, "TransferAsset", []string{"id", "newOwner"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		return t.TransferAsset(ctx, stub, a[0], a[1])
	})
	r.add(true, "AssetExists", []string{"id"}, func(ctx context.Context, stub shim.Stub, a []string) (string, error) {
		ok, err := t.AssetExists(ctx, stub, a[0])
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(ok), nil
	})
	r.add(true, "GetAllAssets", nil, func(ctx context.Context, stub shim.Stub, _ []string) (string, error) {
		values, err := t.GetAllAssets(ctx, stub)
		if err != nil {
			return "", err
		}
		return encodeValue(ir.IRArray(values))
	})

	return r
}

func (r *Router) add(readOnly bool, name string, params []string, call func(context.Context, shim.Stub, []string) (string, error)) {
	r.routes[name] = route{
		Function: Function{Name: name, Params: params, ReadOnly: readOnly},
		call:     call,
	}
}

// Invoke implements shim.Handler.
func (r *Router) Invoke(ctx context.Context, stub shim.Stub, function string, args []string) (string, error) {
	rt, ok := r.routes[function]
	if !ok {
		return "", fault.UnknownFunction(function)
	}
	if len(args) != len(rt.Params) {
		return "", fault.InvalidArgument("%s expects %d arguments, got %d", function, len(rt.Params), len(args))
	}
	for i, a := range args {
		if !utf8.ValidString(a) {
			return "", fault.InvalidArgument("%s: argument %s is not valid UTF-8", function, rt.Params[i])
		}
	}
	return rt.call(ctx, stub, args)
}

// Lookup returns the description of function.
func (r *Router) Lookup(function string) (Function, bool) {
	rt, ok := r.routes[function]
	return rt.Function, ok
}

// Functions lists the registered functions sorted by name.
func (r *Router) Functions() []Function {
	out := make([]Function, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt.Function)
	}
	slices.SortFunc(out, func(a, b Function) int {
		return ir.CompareUTF16(a.Name, b.Name)
	})
	return out
}

func encodeValue(v ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeRecord(r record.Record, err error) (string, error) {
	if err != nil {
		return "", err
	}
	data, err := record.Encode(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeResults(rows []QueryResult, err error) (string, error) {
	if err != nil {
		return "", err
	}
	arr := make(ir.IRArray, len(rows))
	for i, row := range rows {
		arr[i] = row.Fields()
	}
	return encodeValue(arr)
}

func encodeStatus(err error, status string) (string, error) {
	if err != nil {
		return "", err
	}
	return encodeValue(ir.IRObject{"status": ir.IRString(status)})
}
