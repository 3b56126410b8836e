package sigdb

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/quay/scancore"
)

func TestCount(t *testing.T) {
	tt := []struct {
		Name string
		File string
		Data string
		Want uint
		Code scancore.Code
	}{
		{Name: "Body", File: "x.db", Data: "# comment\n\nTest.A=41424344\nPUA.Win.Tool.B=4142??44\n", Want: 2},
		{Name: "Extended", File: "x.ndb", Data: "Test.N:0:*:48656c6c6f\nTest.M:6:EOF-4:7f454c46\n", Want: 2},
		{Name: "Hash", File: "x.hdb", Data: fmt.Sprintf("%032x:*:Test.H\n%064x:12:Test.S\n", 0, 0), Want: 2},
		{Name: "Whitelist", File: "x.fp", Data: fmt.Sprintf("%032x:4:Clean.File\n", 0), Want: 1},
		{Name: "Unknown", File: "COPYING", Data: "anything at all", Want: 0},
		{Name: "Malformed", File: "x.db", Data: "Test.A=41424344\nno separator here\n", Code: scancore.EMalfDB},
		{Name: "OddHex", File: "x.db", Data: "Test.A=414\n", Code: scancore.EMalfDB},
		{Name: "BadHex", File: "x.db", Data: "Test.A=41zz\n", Code: scancore.EMalfDB},
		{Name: "Short", File: "x.db", Data: "Test.A=41??42\n", Code: scancore.EPatShort},
		{Name: "AllWildcard", File: "x.db", Data: "Test.A=????\n", Code: scancore.EPatShort},
		{Name: "BadTarget", File: "x.ndb", Data: "Test.N:9:*:41424344\n", Code: scancore.EMalfDB},
		{Name: "BadOffset", File: "x.ndb", Data: "Test.N:0:EOF+1:41424344\n", Code: scancore.EMalfDB},
		{Name: "BadDigest", File: "x.hdb", Data: "abcd:*:Test.H\n", Code: scancore.EMalfDB},
		{Name: "BadSize", File: "x.hdb", Data: fmt.Sprintf("%032x:-1:Test.H\n", 0), Code: scancore.EMalfDB},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			n, err := Count(tc.File, []byte(tc.Data))
			if got, want := scancore.CodeOf(err), tc.Code; got != want {
				t.Fatalf("got: %v, want: %v (%v)", got, want, err)
			}
			if got, want := n, tc.Want; got != want {
				t.Errorf("got: %d, want: %d", got, want)
			}
		})
	}
}

func TestAddAtomic(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Add("good.db", []byte("Test.A=41424344\n"), LoadOptions{}); err != nil {
		t.Fatal(err)
	}
	_, err := b.Add("bad.db", []byte("Test.B=45464748\nTest.C=4\n"), LoadOptions{})
	if !errors.Is(err, scancore.EMalfDB) {
		t.Errorf("got: %v, want: %v", err, scancore.EMalfDB)
	}
	if got, want := b.Len(), uint(1); got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestPUA(t *testing.T) {
	const db = "Test.A=41424344\n" +
		"PUA.Win.Packer.Upx=45464748\n" +
		"PUA.Win.Tool.Netcat=494a4b4c\n"
	tt := []struct {
		Name string
		Opts LoadOptions
		Want uint
	}{
		{Name: "Default", Opts: LoadOptions{}, Want: 1},
		{Name: "PUA", Opts: LoadOptions{DB: scancore.DBPUA}, Want: 3},
		{
			Name: "Include",
			Opts: LoadOptions{
				DB:            scancore.DBPUA | scancore.DBPUAMode | scancore.DBPUAInclude,
				PUACategories: ".Packer.",
			},
			Want: 2,
		},
		{
			Name: "Exclude",
			Opts: LoadOptions{
				DB:            scancore.DBPUA | scancore.DBPUAMode | scancore.DBPUAExclude,
				PUACategories: ".Packer.Tool.",
			},
			Want: 1,
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			b := NewBuilder()
			n, err := b.Add("pua.db", []byte(db), tc.Opts)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := n, tc.Want; got != want {
				t.Errorf("got: %d, want: %d", got, want)
			}
			if got, want := b.Compile().Sigs(), tc.Want; got != want {
				t.Errorf("compiled: got: %d, want: %d", got, want)
			}
		})
	}
}

func TestMatcher(t *testing.T) {
	elf := []byte("\x7fELF........tail")
	wl := []byte("known good file")
	wlSum := md5.Sum(wl)
	hashed := []byte("exact hashed content")
	hashedSum := sha256.Sum256(hashed)

	b := NewBuilder()
	files := map[string]string{
		"a.db":  "Test.Plain=68656c6c6f\nTest.Wild=77??726c64\n",
		"b.ndb": "Test.Start:0:0:68656c6c6f\nTest.ELF:6:*:7f454c46\nTest.Tail:0:EOF-4:7461696c\n",
		"c.hdb": fmt.Sprintf("%s:%d:Test.Hash\n%s:1:Test.WrongSize\n", hex.EncodeToString(hashedSum[:]), len(hashed), hex.EncodeToString(hashedSum[:])),
		"d.fp":  fmt.Sprintf("%s:*:Known.Good\n", hex.EncodeToString(wlSum[:])),
	}
	for _, n := range []string{"a.db", "b.ndb", "c.hdb", "d.fp"} {
		if _, err := b.Add(n, []byte(files[n]), LoadOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	m := b.Compile()
	if got, want := m.Sigs(), uint(8); got != want {
		t.Errorf("sigs: got: %d, want: %d", got, want)
	}

	tt := []struct {
		Name   string
		Data   []byte
		Target Target
		All    bool
		Want   []string
	}{
		{Name: "None", Data: []byte("nothing here"), Want: nil},
		{Name: "First", Data: []byte("say hello world"), Want: []string{"Test.Plain"}},
		{Name: "All", Data: []byte("say hello wxrld"), All: true, Want: []string{"Test.Plain", "Test.Wild"}},
		{Name: "AnchoredStart", Data: []byte("hello"), All: true, Want: []string{"Test.Plain", "Test.Start"}},
		{Name: "TargetMismatch", Data: elf, Target: TargetPE, All: true, Want: []string{"Test.Tail"}},
		{Name: "TargetMatch", Data: elf, Target: TargetELF, All: true, Want: []string{"Test.ELF", "Test.Tail"}},
		{Name: "Hash", Data: hashed, All: true, Want: []string{"Test.Hash"}},
		{Name: "Short", Data: []byte("he"), Want: nil},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got := m.Scan(tc.Data, tc.Target, tc.All)
			if !cmp.Equal(got, tc.Want) {
				t.Error(cmp.Diff(got, tc.Want))
			}
		})
	}

	if !m.Whitelisted(wl) {
		t.Error("whitelist entry not honored")
	}
	if m.Whitelisted(hashed) {
		t.Error("unexpected whitelist hit")
	}
	var nilm *Matcher
	if nilm.Scan([]byte("hello"), TargetAny, true) != nil || nilm.Whitelisted(wl) || nilm.Sigs() != 0 {
		t.Error("nil Matcher misbehaved")
	}
}

func TestEmptyCompile(t *testing.T) {
	m := NewBuilder().Compile()
	if m.Sigs() != 0 {
		t.Errorf("got: %d sigs", m.Sigs())
	}
	if got := m.Scan([]byte("anything"), TargetAny, true); got != nil {
		t.Errorf("got: %v", got)
	}
}
