package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/quay/scancore"
	"github.com/quay/scancore/dbpkg"
	"github.com/quay/scancore/engine"
	"github.com/quay/scancore/sigdb"
	"github.com/quay/scancore/test"
)

var pkgTime = time.Date(2024, time.May, 2, 9, 15, 0, 0, time.UTC)

func pkgFiles() []dbpkg.File {
	return []dbpkg.File{
		{Name: "daily.db", Data: []byte("Test.Daily=6461696c79\n")},
		{Name: "daily.hdb", Data: []byte("d41d8cd98f00b204e9800998ecf8427e:0:Test.Empty\n")},
	}
}

func wantCode(t *testing.T, err error, c scancore.Code) {
	t.Helper()
	if got := scancore.CodeOf(err); got != c {
		t.Errorf("got: %v, want: %v (%v)", got, c, err)
	}
}

func TestSetGet(t *testing.T) {
	e := engine.New(nil)
	defer e.Close()

	if err := e.Set(engine.MaxScanSize, uint64(1<<20)); err != nil {
		t.Fatal(err)
	}
	if err := e.Set(engine.MaxRecursion, uint32(4)); err != nil {
		t.Fatal(err)
	}
	v, err := e.Get(engine.MaxScanSize)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, any(uint64(1<<20)); got != want {
		t.Errorf("got: %v, want: %v", got, want)
	}
	want := engine.DefaultLimits()
	want.MaxScanSize = 1 << 20
	want.MaxRecursion = 4
	if got := e.Limits(); !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}

	t.Run("Errors", func(t *testing.T) {
		tt := []struct {
			Name  string
			Field engine.Field
			Value any
		}{
			{Name: "WrongWidth", Field: engine.MaxFiles, Value: uint64(1)},
			{Name: "Untyped", Field: engine.MaxFileSize, Value: 1},
			{Name: "ReadOnlyVersion", Field: engine.DBVersion, Value: uint32(1)},
			{Name: "ReadOnlyTime", Field: engine.DBTime, Value: uint32(1)},
			{Name: "PUAFormat", Field: engine.PUACategories, Value: "Packer"},
			{Name: "PUAType", Field: engine.PUACategories, Value: 7},
			{Name: "Unknown", Field: engine.Field(99), Value: uint32(1)},
		}
		for _, tc := range tt {
			t.Run(tc.Name, func(t *testing.T) {
				wantCode(t, e.Set(tc.Field, tc.Value), scancore.EArg)
			})
		}
	})
	t.Run("Unset", func(t *testing.T) {
		for _, f := range []engine.Field{engine.PUACategories, engine.DBVersion, engine.DBTime} {
			_, err := e.Get(f)
			wantCode(t, err, scancore.EArg)
		}
	})
	t.Run("PUA", func(t *testing.T) {
		if err := e.Set(engine.PUACategories, ".Packer.Tool."); err != nil {
			t.Fatal(err)
		}
		v, err := e.Get(engine.PUACategories)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v, any(".Packer.Tool."); got != want {
			t.Errorf("got: %v, want: %v", got, want)
		}
	})
}

func TestFieldNames(t *testing.T) {
	for _, f := range []engine.Field{engine.MaxScanSize, engine.MinSSNCount, engine.PartialThreshold} {
		got, ok := engine.ParseField(f.String())
		if !ok || got != f {
			t.Errorf("got: %v, want: %v", got, f)
		}
	}
	if _, ok := engine.ParseField("NoSuchField"); ok {
		t.Error("expected error for unknown name")
	}
}

func TestLifecycle(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	test.WriteFile(t, dir, "local.db", "Test.Local=6c6f63616c\n")

	e := engine.New(nil)
	if _, err := e.Matcher(); !errors.Is(err, scancore.EArg) {
		t.Errorf("uncompiled matcher: got: %v, want: %v", err, scancore.EArg)
	}
	n, err := e.Load(ctx, dir, scancore.DBStdOptions)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got: %d signatures, want: 1", n)
	}
	if err := e.Compile(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Compile(ctx); err != nil {
		t.Errorf("second compile: %v", err)
	}
	if _, err := e.Load(ctx, dir, scancore.DBStdOptions); !errors.Is(err, scancore.EArg) {
		t.Errorf("load after compile: got: %v, want: %v", err, scancore.EArg)
	}
	if err := e.Set(engine.PUACategories, ".Packer."); !errors.Is(err, scancore.EArg) {
		t.Errorf("PUA after compile: got: %v, want: %v", err, scancore.EArg)
	}
	if err := e.Set(engine.MaxFiles, uint32(10)); err != nil {
		t.Errorf("limit after compile: %v", err)
	}
	// Raw files don't carry a version.
	if _, err := e.Get(engine.DBVersion); !errors.Is(err, scancore.EArg) {
		t.Errorf("got: %v, want: %v", err, scancore.EArg)
	}

	d := e.Dup()
	if d == nil || !d.Compiled() {
		t.Fatal("duplicate of compiled engine isn't compiled")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	wantCode(t, e.Close(), scancore.ENullArg)
	if _, err := e.Matcher(); !errors.Is(err, scancore.ENullArg) {
		t.Errorf("closed matcher: got: %v, want: %v", err, scancore.ENullArg)
	}
	if e.Dup() != nil {
		t.Error("Dup of closed engine returned non-nil")
	}
	if _, err := e.Get(engine.MaxFiles); !errors.Is(err, scancore.ENullArg) {
		t.Errorf("got: %v, want: %v", err, scancore.ENullArg)
	}

	m, err := d.Matcher()
	if err != nil {
		t.Fatalf("duplicate lost matcher: %v", err)
	}
	if got, want := m.Scan([]byte("a local file"), sigdb.TargetAny, false), []string{"Test.Local"}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	var nilEngine *engine.Engine
	wantCode(t, nilEngine.Close(), scancore.ENullArg)
	_, err = nilEngine.Load(ctx, dir, 0)
	wantCode(t, err, scancore.ENullArg)
}

func TestDupUncompiled(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	p := test.WriteFile(t, dir, "a.db", "Test.A=41414141\n")

	e := engine.New(nil)
	defer e.Close()
	if _, err := e.Load(ctx, p, 0); err != nil {
		t.Fatal(err)
	}
	d := e.Dup()
	defer d.Close()
	// Loading into the original doesn't leak into the copy.
	if _, err := e.Load(ctx, test.WriteFile(t, dir, "b.db", "Test.B=42424242\n"), 0); err != nil {
		t.Fatal(err)
	}
	if err := d.Compile(ctx); err != nil {
		t.Fatal(err)
	}
	m, err := d.Matcher()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Sigs(), uint(1); got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestLoadPackages(t *testing.T) {
	ctx := test.Logging(t)
	key := test.SigningKey(t, "engine")

	build := func(t *testing.T, dir, name string, version uint, when time.Time) string {
		return test.WritePackage(t, dir, name, dbpkg.BuildOptions{
			Time:    when,
			Signer:  key,
			Builder: "tester",
			Files:   pkgFiles(),
			Version: version,
		})
	}

	t.Run("Newest", func(t *testing.T) {
		dir := t.TempDir()
		build(t, dir, "main.cvd", 60, pkgTime)
		build(t, dir, "daily.cvd", 27000, pkgTime.Add(time.Hour))
		test.WriteFile(t, dir, "local.ndb", "Test.Local:0:*:6c6f63616c\n")
		test.WriteFile(t, dir, "notes.txt", "not loaded\n")

		e := engine.New(&engine.Options{Keyring: test.Keyring(t, "engine"), LoadConcurrency: 2})
		defer e.Close()
		n, err := e.Load(ctx, dir, scancore.DBStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := n, uint(5); got != want {
			t.Errorf("got: %d, want: %d", got, want)
		}
		if err := e.Compile(ctx); err != nil {
			t.Fatal(err)
		}
		v, err := e.Get(engine.DBVersion)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v, any(uint32(27000)); got != want {
			t.Errorf("version: got: %v, want: %v", got, want)
		}
		v, err = e.Get(engine.DBTime)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v, any(uint32(pkgTime.Add(time.Hour).Unix())); got != want {
			t.Errorf("time: got: %v, want: %v", got, want)
		}
	})

	t.Run("Official", func(t *testing.T) {
		dir := t.TempDir()
		build(t, dir, "main.cvd", 1, pkgTime)
		test.WriteFile(t, dir, "local.db", "Test.Local=6c6f63616c\n")

		e := engine.New(&engine.Options{Keyring: test.Keyring(t, "engine")})
		defer e.Close()
		n, err := e.Load(ctx, dir, scancore.DBOfficial|scancore.DBNoTempFile)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := n, uint(2); got != want {
			t.Errorf("got: %d, want: %d", got, want)
		}
	})

	t.Run("BadSignature", func(t *testing.T) {
		dir := t.TempDir()
		build(t, dir, "main.cvd", 1, pkgTime)
		e := engine.New(&engine.Options{Keyring: test.Keyring(t, "someone-else")})
		defer e.Close()
		n, err := e.Load(ctx, dir, 0)
		wantCode(t, err, scancore.EDSig)
		if n != 0 {
			t.Errorf("got: %d, want: 0", n)
		}
	})

	t.Run("Atomic", func(t *testing.T) {
		dir := t.TempDir()
		build(t, dir, "a.cvd", 1, pkgTime)
		p := build(t, dir, "b.cvd", 2, pkgTime)
		// Flip a body byte so the checksum no longer matches.
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		b[len(b)-1] ^= 0xff
		if err := os.WriteFile(p, b, 0o644); err != nil {
			t.Fatal(err)
		}

		e := engine.New(&engine.Options{
			Keyring:  test.Keyring(t, "engine"),
			SpoolDir: t.TempDir(),
		})
		defer e.Close()
		n, err := e.Load(ctx, dir, 0)
		wantCode(t, err, scancore.EMD5)
		if n != 0 {
			t.Errorf("got: %d, want: 0", n)
		}
		if err := e.Compile(ctx); err != nil {
			t.Fatal(err)
		}
		m, err := e.Matcher()
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Sigs(); got != 0 {
			t.Errorf("partial load: %d signatures present", got)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		e := engine.New(nil)
		defer e.Close()
		_, err := e.Load(ctx, filepath.Join(t.TempDir(), "nope"), 0)
		wantCode(t, err, scancore.EOpen)
	})

	t.Run("Malformed", func(t *testing.T) {
		dir := t.TempDir()
		test.WriteFile(t, dir, "a.db", "Test.A=41414141\n")
		test.WriteFile(t, dir, "b.db", "garbage\n")
		e := engine.New(nil)
		defer e.Close()
		n, err := e.Load(ctx, dir, 0)
		wantCode(t, err, scancore.EMalfDB)
		if n != 0 {
			t.Errorf("got: %d, want: 0", n)
		}
	})
}
