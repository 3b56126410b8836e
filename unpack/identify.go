package unpack

import (
	"bytes"
	"unicode/utf8"
)

// HeadSize is the number of leading bytes [Identify] wants to see.
const HeadSize = 1024

var magics = [...]struct {
	magic []byte
	fam   Family
}{
	{[]byte{0x1F, 0x8B}, Gzip},
	{[]byte{0x28, 0xB5, 0x2F, 0xFD}, Zstd},
	{[]byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, Xz},
	{[]byte("BZh"), Bzip2},
	{[]byte("PK\x03\x04"), Zip},
	{[]byte("PK\x05\x06"), Zip},
	{[]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, OLE2},
	{[]byte{0x7F, 'E', 'L', 'F'}, ELF},
	{[]byte("%PDF-"), PDF},
}

// Headers that start a mail message or a mailbox.
var mailHeaders = [...][]byte{
	[]byte("from "),
	[]byte("from:"),
	[]byte("received:"),
	[]byte("return-path:"),
	[]byte("delivered-to:"),
	[]byte("mime-version:"),
	[]byte("message-id:"),
	[]byte("x-mailer:"),
	[]byte("subject:"),
	[]byte("to:"),
}

var htmlMarkers = [...][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
	[]byte("<script"),
	[]byte("<iframe"),
}

// Identify classifies content by its leading bytes.
//
// The passed slice should be the first [HeadSize] bytes of the object, or the
// whole object if it's shorter.
func Identify(head []byte) Family {
	for _, m := range magics {
		if bytes.HasPrefix(head, m.magic) {
			return m.fam
		}
	}
	// Tar has its magic at a fixed offset: "ustar\x00" (POSIX) or
	// "ustar  \x00" (GNU).
	if len(head) >= 263 && bytes.Equal(head[257:262], []byte("ustar")) {
		return Tar
	}
	if isPE(head) {
		return PE
	}
	// PDF readers accept the header anywhere in the first KiB.
	if bytes.Contains(head, []byte("%PDF-")) {
		return PDF
	}
	if !isText(head) {
		return Unknown
	}
	lower := bytes.ToLower(bytes.TrimLeft(head, "\ufeff \t\r\n"))
	for _, h := range mailHeaders {
		if bytes.HasPrefix(lower, h) {
			return Mail
		}
	}
	for _, m := range htmlMarkers {
		if bytes.Contains(lower, m) {
			return HTML
		}
	}
	return Text
}

// IsPE checks for an MZ stub pointing at a PE signature.
func isPE(b []byte) bool {
	if len(b) < 0x40 || b[0] != 'M' || b[1] != 'Z' {
		return false
	}
	off := int(b[0x3C]) | int(b[0x3D])<<8 | int(b[0x3E])<<16 | int(b[0x3F])<<24
	if off < 0 || off+4 > len(b) {
		// Can't see the signature; an MZ header alone is enough to try.
		return true
	}
	return bytes.Equal(b[off:off+4], []byte("PE\x00\x00"))
}

// IsText reports whether the bytes look like text: valid UTF-8 (allowing a
// truncated final rune) with no control characters other than whitespace.
func isText(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for len(b) > 0 {
		r, sz := utf8.DecodeRune(b)
		if r == utf8.RuneError && sz <= 1 {
			if len(b) < utf8.UTFMax && !utf8.FullRune(b) {
				return true
			}
			return false
		}
		if r < 0x20 {
			switch r {
			case '\t', '\n', '\r', '\f':
			default:
				return false
			}
		}
		if r == 0x7F {
			return false
		}
		b = b[sz:]
	}
	return true
}
