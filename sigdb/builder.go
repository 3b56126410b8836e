package sigdb

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/quay/scancore"
)

// BodySig is a byte pattern signature.
type bodySig struct {
	name   string
	target Target
	off    offset
	pat    pattern
}

// HashSig is a whole-object digest signature.
type hashSig struct {
	name string
	sum  string // lowercase hex
	size int64  // -1 for any
}

// LoadOptions controls which records [Builder.Add] keeps.
type LoadOptions struct {
	DB scancore.DBOptions
	// PUACategories is the dotted category filter used with
	// DBPUAInclude and DBPUAExclude, e.g. ".Packer.Tool.".
	PUACategories string

	// Keep at least one unkeyed field, to force keyed initialization.
	_forceKeys struct{}
}

// Builder accumulates records for compilation.
//
// The zero value is ready to use. A Builder is not safe for concurrent use.
type Builder struct {
	body   []bodySig
	hashes []hashSig
	fps    []hashSig
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return new(Builder) }

// Count reports the number of records in a file, irrespective of any PUA
// filtering. Files with unknown extensions have no records.
func Count(name string, data []byte) (uint, error) {
	var b Builder
	return b.add(name, data, LoadOptions{DB: scancore.DBPUA}, true)
}

// Add parses a record file into the Builder and reports the number of records
// kept.
//
// Add is atomic: if any line is malformed, nothing from the file is added and
// the returned error carries [scancore.EMalfDB] or [scancore.EPatShort].
// Files with unknown extensions are ignored.
func (b *Builder) Add(name string, data []byte, opts LoadOptions) (uint, error) {
	return b.add(name, data, opts, false)
}

func (b *Builder) add(name string, data []byte, opts LoadOptions, all bool) (uint, error) {
	const op = `sigdb.Add`
	k := kindOf(name)
	if k == kindUnknown {
		return 0, nil
	}
	var staged Builder
	var n uint
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	for lineno := 1; s.Scan(); lineno++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		sigName, err := staged.parseLine(k, line)
		if err != nil {
			code := scancore.EMalfDB
			if err == errShort {
				code = scancore.EPatShort
			}
			return 0, &scancore.Error{
				Op:      op,
				Code:    code,
				Message: fmt.Sprintf("%s:%d", name, lineno),
				Inner:   err,
			}
		}
		if !all && k != kindWhitelist && !keepPUA(sigName, opts) {
			staged.drop(k)
			continue
		}
		n++
	}
	if err := s.Err(); err != nil {
		return 0, &scancore.Error{
			Op:      op,
			Code:    scancore.EMalfDB,
			Message: name,
			Inner:   err,
		}
	}
	b.Merge(&staged)
	return n, nil
}

// ParseLine parses one record, appending it to the Builder, and returns its
// signature name.
func (b *Builder) parseLine(k kind, line string) (string, error) {
	switch k {
	case kindBody:
		name, hexpat, ok := strings.Cut(line, "=")
		if !ok || name == "" {
			return "", fmt.Errorf("expected Name=HEX")
		}
		p, err := parsePattern(hexpat)
		if err != nil {
			return "", err
		}
		b.body = append(b.body, bodySig{name: name, target: TargetAny, pat: p})
		return name, nil
	case kindExtended:
		fs := strings.SplitN(line, ":", 4)
		if len(fs) != 4 || fs[0] == "" {
			return "", fmt.Errorf("expected Name:Target:Offset:HEX")
		}
		t, err := strconv.ParseUint(fs[1], 10, 8)
		if err != nil || Target(t) > maxTarget {
			return "", fmt.Errorf("bad target %q", fs[1])
		}
		off, err := parseOffset(fs[2])
		if err != nil {
			return "", err
		}
		p, err := parsePattern(fs[3])
		if err != nil {
			return "", err
		}
		b.body = append(b.body, bodySig{name: fs[0], target: Target(t), off: off, pat: p})
		return fs[0], nil
	case kindHash, kindWhitelist:
		fs := strings.SplitN(line, ":", 3)
		if len(fs) != 3 || fs[2] == "" {
			return "", fmt.Errorf("expected HASH:SIZE:Name")
		}
		sum := strings.ToLower(fs[0])
		if len(sum) != 32 && len(sum) != 64 {
			return "", fmt.Errorf("bad digest length %d", len(sum))
		}
		if _, err := hex.DecodeString(sum); err != nil {
			return "", fmt.Errorf("bad digest: %w", err)
		}
		size := int64(-1)
		if fs[1] != "*" {
			sz, err := strconv.ParseInt(fs[1], 10, 64)
			if err != nil || sz < 0 {
				return "", fmt.Errorf("bad size %q", fs[1])
			}
			size = sz
		}
		h := hashSig{name: fs[2], sum: sum, size: size}
		if k == kindWhitelist {
			b.fps = append(b.fps, h)
		} else {
			b.hashes = append(b.hashes, h)
		}
		return fs[2], nil
	}
	panic("unreachable")
}

// Drop removes the most recently parsed record of the kind.
func (b *Builder) drop(k kind) {
	switch k {
	case kindBody, kindExtended:
		b.body = b.body[:len(b.body)-1]
	case kindHash:
		b.hashes = b.hashes[:len(b.hashes)-1]
	case kindWhitelist:
		b.fps = b.fps[:len(b.fps)-1]
	}
}

// Merge moves every record from "o" into the Builder.
func (b *Builder) Merge(o *Builder) {
	b.body = append(b.body, o.body...)
	b.hashes = append(b.hashes, o.hashes...)
	b.fps = append(b.fps, o.fps...)
	*o = Builder{}
}

// Clone returns an independent copy of the Builder.
func (b *Builder) Clone() *Builder {
	return &Builder{
		body:   append([]bodySig(nil), b.body...),
		hashes: append([]hashSig(nil), b.hashes...),
		fps:    append([]hashSig(nil), b.fps...),
	}
}

// Len reports the number of records in the Builder.
func (b *Builder) Len() uint {
	return uint(len(b.body) + len(b.hashes) + len(b.fps))
}

// KeepPUA implements the "potentially unwanted" filtering rules.
//
// Whitelist entries are never filtered.
func keepPUA(name string, opts LoadOptions) bool {
	if !strings.HasPrefix(name, "PUA.") {
		return true
	}
	if !opts.DB.Has(scancore.DBPUA) {
		return false
	}
	switch {
	case opts.DB.Has(scancore.DBPUAInclude):
		return inCategories(name, opts.PUACategories)
	case opts.DB.Has(scancore.DBPUAExclude):
		return !inCategories(name, opts.PUACategories)
	}
	return true
}

// InCategories reports whether any category in the dotted list appears as a
// component of the signature name.
func inCategories(name, cats string) bool {
	for _, c := range strings.Split(strings.Trim(cats, "."), ".") {
		if c == "" {
			continue
		}
		if strings.Contains(name, "."+c+".") {
			return true
		}
	}
	return false
}
