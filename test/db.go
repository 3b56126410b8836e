package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quay/scancore/dbpkg"
)

// WritePackage builds a database package into "dir" and returns its path.
func WritePackage(t testing.TB, dir, name string, opts dbpkg.BuildOptions) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("package %q: %v", name, err)
	}
	defer f.Close()
	if _, err := dbpkg.Build(f, opts); err != nil {
		t.Fatalf("package %q: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("package %q: %v", name, err)
	}
	return p
}

// WriteFile writes a raw record file into "dir" and returns its path.
func WriteFile(t testing.TB, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatalf("file %q: %v", name, err)
	}
	return p
}
