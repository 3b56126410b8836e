package scan_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/quay/scancore"
	"github.com/quay/scancore/engine"
	"github.com/quay/scancore/scan"
	"github.com/quay/scancore/test"
	"github.com/quay/scancore/unpack"
)

const (
	pattern = "scancore-test-pattern"
	other   = "another-known-pattern"
)

var records = fmt.Sprintf("Test.Pattern=%s\nTest.Other=%s\n",
	hex.EncodeToString([]byte(pattern)),
	hex.EncodeToString([]byte(other)))

type setup struct {
	Records  string
	// Files are extra database files, by name.
	Files    map[string]string
	Registry *unpack.Registry
	Limits   map[engine.Field]any
}

// NewEngine returns a compiled Engine. Spool files go to a per-test directory,
// which is checked for leftovers at cleanup.
func newEngine(t *testing.T, s setup) *engine.Engine {
	t.Helper()
	ctx := test.Logging(t)
	db := t.TempDir()
	test.WriteFile(t, db, "test.db", cmpOr(s.Records, records))
	for name, contents := range s.Files {
		test.WriteFile(t, db, name, contents)
	}
	spool := t.TempDir()
	e := engine.New(&engine.Options{Registry: s.Registry, SpoolDir: spool})
	if _, err := e.Load(ctx, db, scancore.DBStdOptions); err != nil {
		t.Fatal(err)
	}
	if err := e.Compile(ctx); err != nil {
		t.Fatal(err)
	}
	for f, v := range s.Limits {
		if err := e.Set(f, v); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		e.Close()
		ents, err := os.ReadDir(spool)
		if err != nil {
			t.Error(err)
		}
		if len(ents) != 0 {
			t.Errorf("spool files left behind: %v", ents)
		}
	})
	return e
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func scanBytes(t *testing.T, e *engine.Engine, b []byte, opts scancore.ScanOptions) (scancore.Result, error) {
	t.Helper()
	ctx := test.Logging(t)
	res, err := scan.ReaderAt(ctx, bytes.NewReader(b), int64(len(b)), t.Name(), e, opts)
	if (err != nil) != (res.Code < 0) {
		t.Errorf("error %v disagrees with code %v", err, res.Code)
	}
	if err != nil && scancore.CodeOf(err) != res.Code {
		t.Errorf("error code %v disagrees with result code %v", scancore.CodeOf(err), res.Code)
	}
	if (res.Code == scancore.Virus) != (res.Label != "") {
		t.Errorf("label %q with code %v", res.Label, res.Code)
	}
	return res, err
}

// Compare ignores the byte counts unless a test cares.
var ignoreCounts = cmpopts.IgnoreFields(scancore.Result{}, "Scanned")

func virus(labels ...string) scancore.Result {
	return scancore.Result{Code: scancore.Virus, Label: labels[0], Labels: labels}
}

func TestLeaf(t *testing.T) {
	e := newEngine(t, setup{Limits: map[engine.Field]any{engine.MaxRecursion: uint32(1)}})
	tt := []struct {
		Name string
		In   []byte
		Want scancore.Result
	}{
		{Name: "Empty", In: nil, Want: scancore.Result{}},
		{Name: "Text", In: []byte("nothing to see here\n"), Want: scancore.Result{}},
		{Name: "Binary", In: bytes.Repeat([]byte{0x00, 0xff, 0x13}, 1000), Want: scancore.Result{}},
		{Name: "Match", In: []byte("prefix " + pattern + " suffix"), Want: virus("Test.Pattern")},
		{Name: "MatchBinary", In: append([]byte{0x00, 0x01}, pattern...), Want: virus("Test.Pattern")},
	}
	for _, opts := range []scancore.ScanOptions{scancore.ScanRaw, scancore.ScanStdOptions} {
		for _, tc := range tt {
			t.Run(tc.Name, func(t *testing.T) {
				got, err := scanBytes(t, e, tc.In, opts)
				if err != nil {
					t.Fatalf("leaf aborted: %v", err)
				}
				if !cmp.Equal(got, tc.Want, ignoreCounts) {
					t.Error(cmp.Diff(got, tc.Want, ignoreCounts))
				}
				if got, want := got.Scanned, int64(len(tc.In)); got != want {
					t.Errorf("scanned: got: %d, want: %d", got, want)
				}
			})
		}
	}
}

func TestRecursionBound(t *testing.T) {
	e := newEngine(t, setup{Limits: map[engine.Field]any{engine.MaxRecursion: uint32(2)}})
	inner := []byte("xx" + pattern + "xx")

	t.Run("AtBound", func(t *testing.T) {
		res, err := scanBytes(t, e, test.Nest(t, 2, "level", inner), scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := res, virus("Test.Pattern"); !cmp.Equal(got, want, ignoreCounts) {
			t.Error(cmp.Diff(got, want, ignoreCounts))
		}
	})
	t.Run("OneDeeper", func(t *testing.T) {
		res, err := scanBytes(t, e, test.Nest(t, 3, "level", inner), scancore.ScanStdOptions)
		if got, want := res.Code, scancore.EMaxRec; got != want {
			t.Errorf("got: %v, want: %v (%v)", got, want, err)
		}
		if res.Label != "" {
			t.Errorf("abort carries label %q", res.Label)
		}
	})
	t.Run("ExecutableLeafAtBound", func(t *testing.T) {
		// Executables are inspected, not unpacked, so they sit at the
		// bound like any other leaf.
		pe := make([]byte, 0x100)
		copy(pe, "MZ")
		pe[0x3C] = 0x80
		copy(pe[0x80:], "PE\x00\x00")
		elf := []byte("\x7fELF\x02\x01\x01")
		for name, head := range map[string][]byte{"PE": pe, "ELF": elf} {
			leaf := append(slices.Clip(head), inner...)
			res, err := scanBytes(t, e, test.Nest(t, 2, "level", leaf), scancore.ScanStdOptions)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if got, want := res, virus("Test.Pattern"); !cmp.Equal(got, want, ignoreCounts) {
				t.Errorf("%s: %s", name, cmp.Diff(got, want, ignoreCounts))
			}
		}
	})
	t.Run("ArchiveDisabled", func(t *testing.T) {
		// Without ScanArchive, the nest is one opaque leaf. The pattern is
		// still visible in the raw tar bytes.
		res, err := scanBytes(t, e, test.Nest(t, 3, "level", inner), scancore.ScanRaw)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := res.Code, scancore.Virus; got != want {
			t.Errorf("got: %v, want: %v", got, want)
		}
	})
}

func TestScenario(t *testing.T) {
	limits := map[engine.Field]any{
		engine.MaxRecursion: uint32(2),
		engine.MaxScanSize:  uint64(10000),
	}
	e := newEngine(t, setup{Limits: limits})

	t.Run("Matched", func(t *testing.T) {
		inner := []byte(strings.Repeat("a", 50-len(pattern)) + pattern)
		res, err := scanBytes(t, e, test.Nest(t, 2, "nested", inner), scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := res, virus("Test.Pattern"); !cmp.Equal(got, want, ignoreCounts) {
			t.Error(cmp.Diff(got, want, ignoreCounts))
		}
		if res.Scanned > 10000 {
			t.Errorf("scanned %d bytes, over the limit", res.Scanned)
		}
	})
	t.Run("Oversized", func(t *testing.T) {
		// Deflate keeps the containers small, so it's the innermost object
		// that doesn't fit.
		inner := []byte(strings.Repeat("a", 20000) + pattern)
		middle := test.Zip(t, test.Member{Name: "inner", Data: inner})
		outer := test.Zip(t, test.Member{Name: "middle.zip", Data: middle})
		if len(outer)+len(middle) >= 10000 {
			t.Fatalf("fixture too large: %d+%d", len(outer), len(middle))
		}
		res, err := scanBytes(t, e, outer, scancore.ScanStdOptions)
		if got, want := res.Code, scancore.EMaxSize; got != want {
			t.Errorf("got: %v, want: %v (%v)", got, want, err)
		}
		if res.Scanned > 10000 {
			t.Errorf("scanned %d bytes, over the limit", res.Scanned)
		}

		// Sanity check: without the size limit, it matches.
		u := newEngine(t, setup{})
		res, err = scanBytes(t, u, outer, scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := res.Code, scancore.Virus; got != want {
			t.Errorf("got: %v, want: %v", got, want)
		}
	})
}

func TestLimits(t *testing.T) {
	members := func(n, size int) []test.Member {
		var ms []test.Member
		for i := range n {
			ms = append(ms, test.Member{Name: fmt.Sprintf("m%d", i), Data: bytes.Repeat([]byte{'z'}, size)})
		}
		return ms
	}
	tt := []struct {
		Name   string
		Limits map[engine.Field]any
		In     func(*testing.T) []byte
		Opts   scancore.ScanOptions
		Want   scancore.Result
		Check  func(*testing.T, scancore.Result)
	}{
		{
			Name:   "MaxFiles",
			Limits: map[engine.Field]any{engine.MaxFiles: uint32(3)},
			In:     func(t *testing.T) []byte { return test.Tar(t, members(5, 10)...) },
			Want:   scancore.Result{Code: scancore.EMaxFiles},
		},
		{
			Name:   "MaxFilesExact",
			Limits: map[engine.Field]any{engine.MaxFiles: uint32(5)},
			In:     func(t *testing.T) []byte { return test.Tar(t, members(5, 10)...) },
			Want:   scancore.Result{},
		},
		{
			Name:   "MaxScanSize",
			Limits: map[engine.Field]any{engine.MaxScanSize: uint64(8 << 10)},
			In:     func(t *testing.T) []byte { return test.Gzip(t, "big", make([]byte, 64<<10)) },
			Want:   scancore.Result{Code: scancore.EMaxSize},
			Check: func(t *testing.T, r scancore.Result) {
				if r.Scanned > 8<<10 {
					t.Errorf("scanned %d bytes, over the limit", r.Scanned)
				}
			},
		},
		{
			Name:   "TopLevelTooBig",
			Limits: map[engine.Field]any{engine.MaxScanSize: uint64(100), engine.MaxFileSize: uint64(0)},
			In:     func(t *testing.T) []byte { return make([]byte, 101) },
			Want:   scancore.Result{Code: scancore.EMaxSize},
		},
		{
			Name:   "TopLevelSkipped",
			Limits: map[engine.Field]any{engine.MaxFileSize: uint64(10)},
			In:     func(t *testing.T) []byte { return []byte("a long " + pattern) },
			Want:   scancore.Result{Skipped: 1},
		},
		{
			Name:   "MemberSkipped",
			Limits: map[engine.Field]any{engine.MaxFileSize: uint64(4096)},
			In: func(t *testing.T) []byte {
				return test.Zip(t,
					test.Member{Name: "big", Data: []byte(strings.Repeat("b", 5000) + pattern)},
					test.Member{Name: "small", Data: []byte(other)},
				)
			},
			Want: scancore.Result{Code: scancore.Virus, Label: "Test.Other", Labels: []string{"Test.Other"}, Skipped: 1},
		},
		{
			Name:   "Unlimited",
			Limits: map[engine.Field]any{engine.MaxFiles: uint32(0), engine.MaxRecursion: uint32(0), engine.MaxScanSize: uint64(0)},
			In:     func(t *testing.T) []byte { return test.Nest(t, 20, "n", []byte(pattern)) },
			Want:   virus("Test.Pattern"),
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			e := newEngine(t, setup{Limits: tc.Limits})
			opts := tc.Opts
			if opts == 0 {
				opts = scancore.ScanStdOptions
			}
			got, _ := scanBytes(t, e, tc.In(t), opts)
			if !cmp.Equal(got, tc.Want, ignoreCounts) {
				t.Error(cmp.Diff(got, tc.Want, ignoreCounts))
			}
			if tc.Check != nil {
				tc.Check(t, got)
			}
		})
	}
}

func TestAllMatches(t *testing.T) {
	e := newEngine(t, setup{})
	in := test.Tar(t,
		test.Member{Name: "a", Data: []byte(pattern)},
		test.Member{Name: "b", Data: []byte("clean")},
		test.Member{Name: "c", Data: []byte(other)},
		test.Member{Name: "d", Data: []byte(pattern)},
	)
	t.Run("First", func(t *testing.T) {
		got, err := scanBytes(t, e, in, scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if want := virus("Test.Pattern"); !cmp.Equal(got, want, ignoreCounts) {
			t.Error(cmp.Diff(got, want, ignoreCounts))
		}
	})
	t.Run("All", func(t *testing.T) {
		got, err := scanBytes(t, e, in, scancore.ScanStdOptions|scancore.ScanAllMatches)
		if err != nil {
			t.Fatal(err)
		}
		if want := virus("Test.Pattern", "Test.Other"); !cmp.Equal(got, want, ignoreCounts) {
			t.Error(cmp.Diff(got, want, ignoreCounts))
		}
	})
}

func TestWhitelist(t *testing.T) {
	allowed := []byte("allowed " + pattern)
	sum := md5.Sum(allowed)
	fp := fmt.Sprintf("%x:%d:Clean.Allowed\n", sum, len(allowed))
	tt := []struct {
		Name  string
		Setup setup
		Want  scancore.Code
	}{
		{Name: "Without", Setup: setup{}, Want: scancore.Virus},
		{Name: "With", Setup: setup{Files: map[string]string{"local.fp": fp}}, Want: scancore.Clean},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			e := newEngine(t, tc.Setup)
			got, err := scanBytes(t, e, allowed, scancore.ScanStdOptions)
			if err != nil {
				t.Fatal(err)
			}
			if got.Code != tc.Want {
				t.Errorf("got: %v, want: %v", got.Code, tc.Want)
			}
		})
	}
	t.Run("Member", func(t *testing.T) {
		// A whitelisted member is clean, but its siblings are still scanned.
		e := newEngine(t, setup{Files: map[string]string{"local.fp": fp}})
		in := test.Zip(t,
			test.Member{Name: "ok", Data: allowed},
			test.Member{Name: "bad", Data: []byte(other)},
		)
		got, err := scanBytes(t, e, in, scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if got.Label != "Test.Other" {
			t.Errorf("got: %q, want: %q", got.Label, "Test.Other")
		}
	})
}

func TestStructured(t *testing.T) {
	cards := "4111111111111111, 4111 1111 1111 1111; 4012-8888-8888-1881"
	ssns := "123-45-6789, 234-56-7890; 345-67-8901"
	stripped := "123456789, 234567890; 345678901"
	e := newEngine(t, setup{})
	tt := []struct {
		Name string
		In   string
		Opts scancore.ScanOptions
		Want string
	}{
		{Name: "Disabled", In: cards, Opts: scancore.ScanStdOptions},
		{Name: "Cards", In: cards, Opts: scancore.ScanStructured, Want: "Heuristics.Structured.CreditCardNumber"},
		{Name: "SSNNotRequested", In: ssns, Opts: scancore.ScanStructured},
		{Name: "SSN", In: ssns, Opts: scancore.ScanStructured | scancore.ScanStructuredSSNNormal, Want: "Heuristics.Structured.SSN"},
		{Name: "SSNStripped", In: stripped, Opts: scancore.ScanStructured | scancore.ScanStructuredSSNStripped, Want: "Heuristics.Structured.SSN"},
		{Name: "ExactFirst", In: cards + " " + pattern, Opts: scancore.ScanStructured, Want: "Test.Pattern"},
		{Name: "Precedence", In: cards + " " + pattern, Opts: scancore.ScanStructured | scancore.ScanHeuristicPrecedence, Want: "Heuristics.Structured.CreditCardNumber"},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := scanBytes(t, e, []byte(tc.In), tc.Opts)
			if err != nil {
				t.Fatal(err)
			}
			if got.Label != tc.Want {
				t.Errorf("got: %q, want: %q", got.Label, tc.Want)
			}
		})
	}

	t.Run("BelowMinimum", func(t *testing.T) {
		e := newEngine(t, setup{Limits: map[engine.Field]any{engine.MinCCCount: uint32(4)}})
		got, err := scanBytes(t, e, []byte(cards), scancore.ScanStructured)
		if err != nil {
			t.Fatal(err)
		}
		if got.Code != scancore.Clean {
			t.Errorf("got: %v, want: %v", got.Code, scancore.Clean)
		}
	})
}

func TestBrokenGzip(t *testing.T) {
	e := newEngine(t, setup{})
	trunc := func(b []byte) []byte { return b[:len(b)-8] }
	t.Run("BestEffort", func(t *testing.T) {
		in := trunc(test.Gzip(t, "x", []byte(strings.Repeat("q", 4096)+pattern)))
		got, err := scanBytes(t, e, in, scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if got.Code != scancore.Virus {
			t.Errorf("got: %v, want: %v", got.Code, scancore.Virus)
		}
	})
	t.Run("Block", func(t *testing.T) {
		in := trunc(test.Gzip(t, "x", []byte(strings.Repeat("q", 4096))))
		got, _ := scanBytes(t, e, in, scancore.ScanStdOptions|scancore.ScanBlockBroken)
		if got.Code != scancore.EGzip {
			t.Errorf("got: %v, want: %v", got.Code, scancore.EGzip)
		}
	})
}

func TestEncryptedZip(t *testing.T) {
	e := newEngine(t, setup{})
	in := test.EncryptedZip(t, test.Member{Name: "secret", Data: []byte("ciphertext")})
	got, err := scanBytes(t, e, in, scancore.ScanStdOptions)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != scancore.Clean {
		t.Errorf("got: %v, want: %v", got.Code, scancore.Clean)
	}
	got, _ = scanBytes(t, e, in, scancore.ScanStdOptions|scancore.ScanBlockEncrypted)
	if got.Code != scancore.EEncrypted {
		t.Errorf("got: %v, want: %v", got.Code, scancore.EEncrypted)
	}
}

func TestEntryPoints(t *testing.T) {
	ctx := test.Logging(t)
	e := newEngine(t, setup{})
	dir := t.TempDir()
	p := test.WriteFile(t, dir, "sample", "contains "+pattern)

	t.Run("File", func(t *testing.T) {
		res, err := scan.File(ctx, p, e, scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if res.Label != "Test.Pattern" {
			t.Errorf("got: %q", res.Label)
		}
	})
	t.Run("Desc", func(t *testing.T) {
		f, err := os.Open(p)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		res, err := scan.Desc(ctx, f, e, scancore.ScanStdOptions)
		if err != nil {
			t.Fatal(err)
		}
		if res.Label != "Test.Pattern" {
			t.Errorf("got: %q", res.Label)
		}
	})

	uncompiled := engine.New(nil)
	defer uncompiled.Close()
	closed := engine.New(nil)
	closed.Close()
	tt := []struct {
		Name string
		Scan func() (scancore.Result, error)
		Want scancore.Code
	}{
		{Name: "Missing", Want: scancore.EOpen, Scan: func() (scancore.Result, error) {
			return scan.File(ctx, filepath.Join(dir, "nope"), e, 0)
		}},
		{Name: "Directory", Want: scancore.EArg, Scan: func() (scancore.Result, error) {
			f, err := os.Open(dir)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			return scan.Desc(ctx, f, e, 0)
		}},
		{Name: "NilFile", Want: scancore.ENullArg, Scan: func() (scancore.Result, error) {
			return scan.Desc(ctx, nil, e, 0)
		}},
		{Name: "NilEngine", Want: scancore.ENullArg, Scan: func() (scancore.Result, error) {
			return scan.File(ctx, p, nil, 0)
		}},
		{Name: "Closed", Want: scancore.ENullArg, Scan: func() (scancore.Result, error) {
			return scan.File(ctx, p, closed, 0)
		}},
		{Name: "Uncompiled", Want: scancore.EArg, Scan: func() (scancore.Result, error) {
			return scan.File(ctx, p, uncompiled, 0)
		}},
		{Name: "Canceled", Want: scancore.EIO, Scan: func() (scancore.Result, error) {
			ctx, cancel := context.WithCancel(ctx)
			cancel()
			return scan.File(ctx, p, e, 0)
		}},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			res, err := tc.Scan()
			if got := res.Code; got != tc.Want {
				t.Errorf("got: %v, want: %v", got, tc.Want)
			}
			if got := scancore.CodeOf(err); got != tc.Want {
				t.Errorf("error: got: %v, want: %v", got, tc.Want)
			}
		})
	}
}
