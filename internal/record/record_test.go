package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/ir"
)

func TestEncodeUser(t *testing.T) {
	data, err := Encode(User{Key: "user_arif@gmail.com", Email: "arif@gmail.com", Password: "123456", Name: "arif"})
	require.NoError(t, err)
	assert.Equal(t,
		`{"DocType":"user","Email":"arif@gmail.com","Key":"user_arif@gmail.com","Name":"arif","Password":"123456"}`,
		string(data))
}

func TestEncodeAssetHasNoDocType(t *testing.T) {
	data, err := Encode(Asset{ID: "asset1", Color: "blue", Size: "5", Owner: "Tomoko", AppraisedValue: "300"})
	require.NoError(t, err)
	assert.Equal(t,
		`{"AppraisedValue":"300","Color":"blue","ID":"asset1","Owner":"Tomoko","Size":"5"}`,
		string(data))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		rec   Record
		fresh func() Decodable
	}{
		{
			"user",
			User{Key: "user_a@x", Email: "a@x", Password: "pw", Name: "A"},
			func() Decodable { return &User{} },
		},
		{
			"file",
			File{Key: "file_cert.txt_hash123", Name: "cert.txt", DownloadLink: "/files/cert.txt", FileHash: "hash123", UploaderEmail: "arif@gmail.com"},
			func() Decodable { return &File{} },
		},
		{
			"file share",
			FileShare{Key: "fileshare_cert.txt_hash123", FileKey: "file_cert.txt_hash123", SharedWithEmail: "shahriar@gmail.com"},
			func() Decodable { return &FileShare{} },
		},
		{
			"asset",
			Asset{ID: "asset1", Color: "blue", Size: "5", Owner: "Tomoko", AppraisedValue: "300"},
			func() Decodable { return &Asset{} },
		},
		{
			"empty strings and markup",
			File{Key: "k", Name: "<a&b>", DownloadLink: ""},
			func() Decodable { return &File{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.rec)
			require.NoError(t, err)

			got := tt.fresh()
			require.NoError(t, Decode(data, got))

			// Decodable values are pointers; compare against the pointee.
			var value any
			switch v := got.(type) {
			case *User:
				value = *v
			case *File:
				value = *v
			case *FileShare:
				value = *v
			case *Asset:
				value = *v
			}
			assert.Empty(t, cmp.Diff(tt.rec, value))
		})
	}
}

func TestRoundTripNormalizesToCanonicalForm(t *testing.T) {
	u := User{Key: "user_a@x", Email: "a@x", Password: "e\u0301tude", Name: "Zo\u0308e"}
	data, err := Encode(u)
	require.NoError(t, err)

	var got User
	require.NoError(t, Decode(data, &got))
	assert.Equal(t, "\u00e9tude", got.Password)
	assert.Equal(t, ir.CanonicalString(u.Name), got.Name)

	again, err := Encode(got)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEncodeIndependentOfFieldOrder(t *testing.T) {
	a, err := Encode(File{Key: "k", Name: "n", DownloadLink: "d", FileHash: "h", UploaderEmail: "e"})
	require.NoError(t, err)

	// Same values presented in a different key order in the stored form.
	var f File
	require.NoError(t, Decode([]byte(`{"UploaderEmail":"e","Name":"n","Key":"k","FileHash":"h","DocType":"file","DownloadLink":"d"}`), &f))
	b, err := Encode(f)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDecodeTolerance(t *testing.T) {
	var u User
	require.NoError(t, Decode([]byte(`{"Email":"a@x","Extra":{"nested":[1,2]}}`), &u))
	assert.Equal(t, User{Email: "a@x"}, u)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"not json", `not json`, "decode record"},
		{"array", `["a"]`, "expected JSON object"},
		{"non-string field", `{"ID":"a","Size":5}`, "field Size: expected string, got int"},
		{"float", `{"ID":"a","Size":5.5}`, "float"},
		{"null field", `{"ID":null}`, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Asset
			err := Decode([]byte(tt.data), &a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
