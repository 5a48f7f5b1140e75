package record

import "github.com/roach88/tdrive/internal/ir"

// User is a registered account. Password is stored as supplied.
type User struct {
	Key      string
	Email    string
	Password string
	Name     string
}

// Fields implements Record.
func (u User) Fields() ir.IRObject {
	return ir.IRObject{
		DocTypeField: ir.IRString(DocTypeUser),
		"Key":        ir.IRString(u.Key),
		"Email":      ir.IRString(u.Email),
		"Password":   ir.IRString(u.Password),
		"Name":       ir.IRString(u.Name),
	}
}

// FromFields implements Decodable.
func (u *User) FromFields(obj ir.IRObject) error {
	r := fieldReader{obj: obj}
	*u = User{
		Key:      r.str("Key"),
		Email:    r.str("Email"),
		Password: r.str("Password"),
		Name:     r.str("Name"),
	}
	return r.err
}

// File is file metadata. The content itself lives off-ledger at DownloadLink.
type File struct {
	Key           string
	Name          string
	DownloadLink  string
	FileHash      string
	UploaderEmail string
}

// Fields implements Record.
func (f File) Fields() ir.IRObject {
	return ir.IRObject{
		DocTypeField:    ir.IRString(DocTypeFile),
		"Key":           ir.IRString(f.Key),
		"Name":          ir.IRString(f.Name),
		"DownloadLink":  ir.IRString(f.DownloadLink),
		"FileHash":      ir.IRString(f.FileHash),
		"UploaderEmail": ir.IRString(f.UploaderEmail),
	}
}

// FromFields implements Decodable.
func (f *File) FromFields(obj ir.IRObject) error {
	r := fieldReader{obj: obj}
	*f = File{
		Key:           r.str("Key"),
		Name:          r.str("Name"),
		DownloadLink:  r.str("DownloadLink"),
		FileHash:      r.str("FileHash"),
		UploaderEmail: r.str("UploaderEmail"),
	}
	return r.err
}

// FileShare grants SharedWithEmail access to the file at FileKey.
// FileKey is not checked against existing files.
type FileShare struct {
	Key             string
	FileKey         string
	SharedWithEmail string
}

// Fields implements Record.
func (s FileShare) Fields() ir.IRObject {
	return ir.IRObject{
		DocTypeField:      ir.IRString(DocTypeFileShare),
		"Key":             ir.IRString(s.Key),
		"FileKey":         ir.IRString(s.FileKey),
		"SharedWithEmail": ir.IRString(s.SharedWithEmail),
	}
}

// FromFields implements Decodable.
func (s *FileShare) FromFields(obj ir.IRObject) error {
	r := fieldReader{obj: obj}
	*s = FileShare{
		Key:             r.str("Key"),
		FileKey:         r.str("FileKey"),
		SharedWithEmail: r.str("SharedWithEmail"),
	}
	return r.err
}

// Asset is a generic owned item keyed by ID.
type Asset struct {
	ID             string
	Color          string
	Size           string
	Owner          string
	AppraisedValue string
}

// Fields implements Record.
func (a Asset) Fields() ir.IRObject {
	return ir.IRObject{
		"ID":             ir.IRString(a.ID),
		"Color":          ir.IRString(a.Color),
		"Size":           ir.IRString(a.Size),
		"Owner":          ir.IRString(a.Owner),
		"AppraisedValue": ir.IRString(a.AppraisedValue),
	}
}

// FromFields implements Decodable.
func (a *Asset) FromFields(obj ir.IRObject) error {
	r := fieldReader{obj: obj}
	*a = Asset{
		ID:             r.str("ID"),
		Color:          r.str("Color"),
		Size:           r.str("Size"),
		Owner:          r.str("Owner"),
		AppraisedValue: r.str("AppraisedValue"),
	}
	return r.err
}
