// Package dbpkg reads, verifies, and writes signature database packages.
//
// A package is a fixed-size ASCII header followed by a body: a tar archive,
// optionally gzip compressed, of signature record files. The header carries a
// SHA-256 checksum of the body and, optionally, an OpenPGP detached signature
// over the checksum's hex encoding.
//
// The header is [HeaderSize] bytes, space padded, of colon separated fields:
//
//	ScanDB:<time>:<version>:<sigs>:<flevel>:<sha256>:<dsig>:<builder>:<stime>
//
// The time field is formatted as [TimeLayout]. The dsig field is the standard
// base64 encoding of a binary detached signature, and may be empty.
package dbpkg

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quay/scancore"
)

// HeaderSize is the size of a package header.
const HeaderSize = 1024

// TimeLayout is the header's time format. It deliberately avoids colons.
const TimeLayout = "02 Jan 2006 15-04 -0700"

const magic = "ScanDB"

// Header is a package header.
type Header struct {
	// Time is the human-readable build time.
	Time time.Time
	// Checksum is the lowercase hex SHA-256 of the body.
	Checksum string
	// DSig is the base64 detached signature over Checksum, or empty.
	DSig string
	// Builder names who built the package.
	Builder string
	// Version is the database version, which increases monotonically.
	Version uint
	// Sigs is the number of records in the package.
	Sigs uint
	// FLevel is the functionality level the package requires.
	FLevel uint
	// STime is the build time in Unix seconds.
	STime int64
}

// ParseHeader parses a package header.
//
// Errors carry [scancore.ECVD].
func ParseHeader(b []byte) (*Header, error) {
	const op = `dbpkg.ParseHeader`
	bad := func(format string, args ...any) error {
		return &scancore.Error{
			Op:      op,
			Code:    scancore.ECVD,
			Message: fmt.Sprintf(format, args...),
		}
	}
	if len(b) < HeaderSize {
		return nil, bad("short header: %d bytes", len(b))
	}
	b = bytes.TrimRight(b[:HeaderSize], " \x00")
	fs := strings.Split(string(b), ":")
	if len(fs) != 9 {
		return nil, bad("expected 9 fields, found %d", len(fs))
	}
	if fs[0] != magic {
		return nil, bad("bad magic %q", fs[0])
	}
	var h Header
	var err error
	if h.Time, err = time.Parse(TimeLayout, fs[1]); err != nil {
		return nil, bad("bad time: %v", err)
	}
	uints := []struct {
		name string
		s    string
		dst  *uint
	}{
		{"version", fs[2], &h.Version},
		{"sigs", fs[3], &h.Sigs},
		{"flevel", fs[4], &h.FLevel},
	}
	for _, u := range uints {
		v, err := strconv.ParseUint(u.s, 10, 32)
		if err != nil {
			return nil, bad("bad %s %q", u.name, u.s)
		}
		*u.dst = uint(v)
	}
	h.Checksum = fs[5]
	if len(h.Checksum) != 64 || strings.Trim(h.Checksum, "0123456789abcdef") != "" {
		return nil, bad("bad checksum %q", h.Checksum)
	}
	h.DSig = fs[6]
	h.Builder = fs[7]
	if h.STime, err = strconv.ParseInt(fs[8], 10, 64); err != nil {
		return nil, bad("bad stime %q", fs[8])
	}
	return &h, nil
}

// MarshalBinary implements [encoding.BinaryMarshaler].
//
// The result is always exactly [HeaderSize] bytes.
func (h *Header) MarshalBinary() ([]byte, error) {
	if strings.ContainsAny(h.Builder, ":\n") || strings.ContainsRune(h.DSig, ':') {
		return nil, &scancore.Error{
			Op:      `dbpkg.MarshalBinary`,
			Code:    scancore.EArg,
			Message: "field contains a separator",
		}
	}
	s := strings.Join([]string{
		magic,
		h.Time.Format(TimeLayout),
		strconv.FormatUint(uint64(h.Version), 10),
		strconv.FormatUint(uint64(h.Sigs), 10),
		strconv.FormatUint(uint64(h.FLevel), 10),
		h.Checksum,
		h.DSig,
		h.Builder,
		strconv.FormatInt(h.STime, 10),
	}, ":")
	if len(s) > HeaderSize {
		return nil, &scancore.Error{
			Op:      `dbpkg.MarshalBinary`,
			Code:    scancore.EArg,
			Message: fmt.Sprintf("header too long: %d bytes", len(s)),
		}
	}
	b := bytes.Repeat([]byte{' '}, HeaderSize)
	copy(b, s)
	return b, nil
}
