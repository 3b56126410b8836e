// Package sigdb parses signature record files and compiles them into an
// immutable [Matcher].
//
// Four record formats are understood, selected by file extension:
//
//	.db   Name=HEX
//	.ndb  Name:Target:Offset:HEX
//	.hdb  HASH:SIZE:Name
//	.fp   HASH:SIZE:Name
//
// HEX is a byte pattern in hexadecimal where "??" matches any single byte.
// Target restricts a body signature to objects of one [Target] type. Offset is
// "*" (anywhere), a decimal offset from the start of the object, or "EOF-N"
// for an offset from the end. HASH is an MD5 or SHA-256 digest of a whole
// object and SIZE is its size in bytes, or "*" to accept any size. Records in
// ".fp" files are whitelist entries: an object matching one is reported
// clean.
//
// Lines starting with "#" and blank lines are ignored.
package sigdb

import (
	"path"
	"strings"
)

// MinPatternLen is the shortest fixed run of bytes a body pattern must
// contain.
const MinPatternLen = 2

// Target is the object type a body signature applies to.
type Target uint8

// Targets, with their record file values.
const (
	TargetAny Target = iota
	TargetPE
	TargetOLE2
	TargetHTML
	TargetMail
	TargetGraphics
	TargetELF
	TargetText

	maxTarget = TargetText
)

func (t Target) String() string {
	switch t {
	case TargetAny:
		return "any"
	case TargetPE:
		return "pe"
	case TargetOLE2:
		return "ole2"
	case TargetHTML:
		return "html"
	case TargetMail:
		return "mail"
	case TargetGraphics:
		return "graphics"
	case TargetELF:
		return "elf"
	case TargetText:
		return "text"
	}
	return "???"
}

// Kind is the record format of a file.
type kind uint8

const (
	kindUnknown kind = iota
	kindBody         // .db
	kindExtended     // .ndb
	kindHash         // .hdb
	kindWhitelist    // .fp
)

func kindOf(name string) kind {
	switch strings.ToLower(path.Ext(name)) {
	case ".db":
		return kindBody
	case ".ndb":
		return kindExtended
	case ".hdb":
		return kindHash
	case ".fp":
		return kindWhitelist
	}
	return kindUnknown
}

// Known reports whether the file name has a record file extension.
//
// Files with other names are ignored by [Builder.Add] and [Count].
func Known(name string) bool {
	return kindOf(name) != kindUnknown
}
