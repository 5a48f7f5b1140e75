package chaincode

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/record"
	"github.com/roach88/tdrive/internal/repository"
	"github.com/roach88/tdrive/internal/shim"
)

// UserKeyPrefix is prepended to an email to form the key FindUser reads.
const UserKeyPrefix = "user_"

// TDrive holds the typed handlers. It has no per-invocation state; all
// state flows through the stub.
type TDrive struct {
	users  *repository.Repository[record.User, *record.User]
	files  *repository.Repository[record.File, *record.File]
	shares *repository.Repository[record.FileShare, *record.FileShare]
	assets *repository.Repository[record.Asset, *record.Asset]
	logger *slog.Logger
}

// New creates the contract. A nil logger discards output.
func New(logger *slog.Logger) *TDrive {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TDrive{
		users:  repository.New[record.User]("user"),
		files:  repository.New[record.File]("file"),
		shares: repository.New[record.FileShare]("fileShare"),
		assets: repository.New[record.Asset]("asset"),
		logger: logger.With("component", "chaincode"),
	}
}

// withMessage replaces the message of a NOT_FOUND failure, leaving every
// other error untouched.
func withMessage(err error, message string) error {
	if fault.IsNotFound(err) {
		return fault.NotFound(fault.KeyOf(err), message)
	}
	return err
}

// CreateUser writes a user record at key. An existing record at key is
// overwritten.
func (t *TDrive) CreateUser(ctx context.Context, stub shim.Stub, key, email, password, name string) (*record.User, error) {
	u := &record.User{Key: key, Email: email, Password: password, Name: name}
	if err := t.users.Put(ctx, stub, key, u); err != nil {
		return nil, err
	}
	return u, nil
}

// FindUser loads the user stored under "user_<email>" and checks password.
// Both sides are compared in canonical form, since stored strings are NFC.
func (t *TDrive) FindUser(ctx context.Context, stub shim.Stub, email, password string) (*record.User, error) {
	key := UserKeyPrefix + email
	u, err := t.users.Get(ctx, stub, key)
	if err != nil {
		return nil, withMessage(err, fmt.Sprintf("The asset %s does not exist", email))
	}
	if ir.CanonicalString(u.Password) != ir.CanonicalString(password) {
		return nil, fault.Unauthorized(key, "Email and password do not matched!")
	}
	return u, nil
}

// CreateFile writes file metadata at key, overwriting any existing record.
func (t *TDrive) CreateFile(ctx context.Context, stub shim.Stub, key, name, downloadLink, fileHash, uploaderEmail string) (*record.File, error) {
	f := &record.File{
		Key:           key,
		Name:          name,
		DownloadLink:  downloadLink,
		FileHash:      fileHash,
		UploaderEmail: uploaderEmail,
	}
	if err := t.files.Put(ctx, stub, key, f); err != nil {
		return nil, err
	}
	return f, nil
}

// FindFile loads the file at key.
func (t *TDrive) FindFile(ctx context.Context, stub shim.Stub, key string) (*record.File, error) {
	f, err := t.files.Get(ctx, stub, key)
	if err != nil {
		return nil, withMessage(err, "The asset does not exist")
	}
	return f, nil
}

// ChangeFileName rewrites the file at key with a new Name; the other file
// fields are carried over. Whatever is stored at key is read as a file, so
// a user or share there comes back as a file record with DocType "file"
// and only the file fields it happened to share.
func (t *TDrive) ChangeFileName(ctx context.Context, stub shim.Stub, key, newName string) (*record.File, error) {
	f, err := t.files.Get(ctx, stub, key)
	if err != nil {
		return nil, withMessage(err, "The asset does not exist")
	}
	f.Name = newName
	if err := t.files.Put(ctx, stub, key, f); err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFile removes the file at key. Shares that reference it are kept.
func (t *TDrive) DeleteFile(ctx context.Context, stub shim.Stub, key string) error {
	return withMessage(t.files.Delete(ctx, stub, key), "The asset does not exist")
}

// ShareFile writes a share of fileKey with sharedWithEmail at key. The
// file itself is not checked.
func (t *TDrive) ShareFile(ctx context.Context, stub shim.Stub, key, fileKey, sharedWithEmail string) (*record.FileShare, error) {
	s := &record.FileShare{Key: key, FileKey: fileKey, SharedWithEmail: sharedWithEmail}
	if err := t.shares.Put(ctx, stub, key, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteFileShare removes the share at key.
func (t *TDrive) DeleteFileShare(ctx context.Context, stub shim.Stub, key string) error {
	return withMessage(t.shares.Delete(ctx, stub, key), "The fileShare does not exist")
}

// AssetExists reports whether a non-empty value is stored at id.
func (t *TDrive) AssetExists(ctx context.Context, stub shim.Stub, id string) (bool, error) {
	return t.assets.Exists(ctx, stub, id)
}

// CreateAsset writes a new asset. The id must not be in use.
func (t *TDrive) CreateAsset(ctx context.Context, stub shim.Stub, id, color, size, owner, appraisedValue string) (*record.Asset, error) {
	exists, err := t.AssetExists(ctx, stub, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.AlreadyExists(id, fmt.Sprintf("The asset %s already exists", id))
	}

	a := &record.Asset{ID: id, Color: color, Size: size, Owner: owner, AppraisedValue: appraisedValue}
	if err := t.assets.Put(ctx, stub, id, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ReadAsset loads the asset at id.
func (t *TDrive) ReadAsset(ctx context.Context, stub shim.Stub, id string) (*record.Asset, error) {
	return t.assets.Get(ctx, stub, id)
}

// UpdateAsset replaces every field of the existing asset at id.
func (t *TDrive) UpdateAsset(ctx context.Context, stub shim.Stub, id, color, size, owner, appraisedValue string) (*record.Asset, error) {
	exists, err := t.AssetExists(ctx, stub, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fault.NotFound(id, fmt.Sprintf("The email %s does not exist", id))
	}

	a := &record.Asset{ID: id, Color: color, Size: size, Owner: owner, AppraisedValue: appraisedValue}
	if err := t.assets.Put(ctx, stub, id, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAsset removes the asset at id.
func (t *TDrive) DeleteAsset(ctx context.Context, stub shim.Stub, id string) error {
	return t.assets.Delete(ctx, stub, id)
}

// TransferAsset sets a new owner on the asset at id and returns the
// previous owner.
func (t *TDrive) TransferAsset(ctx context.Context, stub shim.Stub, id, newOwner string) (string, error) {
	a, err := t.assets.Get(ctx, stub, id)
	if err != nil {
		return "", err
	}
	oldOwner := a.Owner
	a.Owner = newOwner
	if err := t.assets.Put(ctx, stub, id, a); err != nil {
		return "", err
	}
	return oldOwner, nil
}
