package test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Member is a named file for the archive helpers.
type Member struct {
	Name string
	Data []byte
}

// Tar returns a tar archive of the members.
func Tar(t testing.TB, ms ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, m := range ms {
		h := &tar.Header{
			Name:     m.Name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(m.Data)),
		}
		if err := w.WriteHeader(h); err != nil {
			t.Fatalf("tar: %v", err)
		}
		if _, err := w.Write(m.Data); err != nil {
			t.Fatalf("tar: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("tar: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a zip archive of the members, deflate compressed.
func Zip(t testing.TB, ms ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range ms {
		f, err := w.Create(m.Name)
		if err != nil {
			t.Fatalf("zip: %v", err)
		}
		if _, err := f.Write(m.Data); err != nil {
			t.Fatalf("zip: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip: %v", err)
	}
	return buf.Bytes()
}

// EncryptedZip returns a zip archive whose members are flagged as encrypted.
//
// The data isn't actually encrypted; only the flag matters to readers that
// refuse encrypted members.
func EncryptedZip(t testing.TB, ms ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range ms {
		f, err := w.CreateHeader(&zip.FileHeader{Name: m.Name, Method: zip.Store, Flags: 0x1})
		if err != nil {
			t.Fatalf("zip: %v", err)
		}
		if _, err := f.Write(m.Data); err != nil {
			t.Fatalf("zip: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip: %v", err)
	}
	return buf.Bytes()
}

// Gzip returns "data" gzip compressed.
func Gzip(t testing.TB, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Name = name
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	return buf.Bytes()
}

// Nest wraps "data" in "levels" tar archives, innermost first, naming every
// member "name".
func Nest(t testing.TB, levels int, name string, data []byte) []byte {
	t.Helper()
	for range levels {
		data = Tar(t, Member{Name: name, Data: data})
	}
	return data
}
