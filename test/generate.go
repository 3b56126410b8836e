package test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// GenerateFixture is a helper for generating a test fixture file. A path that
// can be used to open the file is returned.
//
// Each call writes into a directory private to the test, so "name" only needs
// to be unique within one test.
func GenerateFixture(t testing.TB, name string, gen func(testing.TB, *os.File)) string {
	t.Helper()
	if !fs.ValidPath(name) || strings.Contains(name, "/") {
		t.Fatalf(`can't use "name" as a filename: %q`, name)
	}
	p := filepath.Join(fixtureDir(t), name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("generated file %q: unexpected create error: %v", name, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			t.Errorf("generated file %q: unexpected close error: %v", name, err)
		}
	}()
	gen(t, f)
	return p
}

// WriteFixture writes "data" to a fixture file named "name".
func WriteFixture(t testing.TB, name string, data []byte) string {
	t.Helper()
	return GenerateFixture(t, name, func(t testing.TB, f *os.File) {
		if _, err := f.Write(data); err != nil {
			t.Fatalf("generated file %q: unexpected write error: %v", name, err)
		}
	})
}

var (
	fixtureMu   sync.Mutex
	fixtureDirs = make(map[testing.TB]string)
)

func fixtureDir(t testing.TB) string {
	t.Helper()
	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	if d, ok := fixtureDirs[t]; ok {
		return d
	}
	d := t.TempDir()
	fixtureDirs[t] = d
	t.Cleanup(func() {
		fixtureMu.Lock()
		delete(fixtureDirs, t)
		fixtureMu.Unlock()
	})
	return d
}
