package unpack

import (
	"github.com/quay/scancore"
)

//go:generate go tool stringer -type=Family

// Family is the tagged variant over the content families the dispatcher
// knows how to identify.
type Family uint8

// Families.
//
// Text and Unknown are always leaves; the rest may have an [Unpacker].
const (
	Unknown Family = iota
	Text
	Tar
	Zip
	Gzip
	Bzip2
	Xz
	Zstd
	Mail
	HTML
	OLE2
	PDF
	PE
	ELF
)

// Option reports the scan option bit that enables descending into the family.
//
// Families that are never unpacked report [scancore.ScanRaw].
func (f Family) Option() scancore.ScanOptions {
	switch f {
	case Tar, Zip, Gzip, Bzip2, Xz, Zstd:
		return scancore.ScanArchive
	case Mail:
		return scancore.ScanMail
	case HTML:
		return scancore.ScanHTML
	case OLE2:
		return scancore.ScanOLE2
	case PDF:
		return scancore.ScanPDF
	case PE:
		return scancore.ScanPE
	case ELF:
		return scancore.ScanELF
	}
	return scancore.ScanRaw
}

// Enabled reports whether the option set allows descending into the family.
func (f Family) Enabled(o scancore.ScanOptions) bool {
	opt := f.Option()
	return opt != scancore.ScanRaw && o.Has(opt)
}

// Container reports whether the family's unpacker can emit sub-objects.
//
// PE and ELF unpackers only inspect headers, so objects of those families are
// leaves for the purposes of the recursion and size bounds.
func (f Family) Container() bool {
	switch f {
	case Tar, Zip, Gzip, Bzip2, Xz, Zstd, Mail, HTML, OLE2, PDF:
		return true
	}
	return false
}

// Code reports the handler error code used when the family's unpacker fails.
func (f Family) Code() scancore.Code {
	switch f {
	case Zip:
		return scancore.EZip
	case Gzip:
		return scancore.EGzip
	case Bzip2:
		return scancore.EBzip
	case OLE2:
		return scancore.EOLE2
	}
	return scancore.EFormat
}
