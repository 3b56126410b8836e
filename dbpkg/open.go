package dbpkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/openpgp"

	"github.com/quay/scancore"
	"github.com/quay/scancore/internal/spool"
	"github.com/quay/scancore/sigdb"
	"github.com/quay/scancore/unpack"
)

const (
	// MaxFileSize bounds a single record file inside a package.
	MaxFileSize = 256 << 20
	// DefaultMaxBodySize bounds the decompressed size of a package body.
	DefaultMaxBodySize = 1 << 30
)

// Options controls [Open].
type Options struct {
	// Keyring is the trust anchor for signatures.
	Keyring openpgp.KeyRing
	// Spool is where the body is staged. If nil, [spool.Default] is used.
	Spool  *spool.Dir
	Policy Policy
	// DB options. DBNoTempFile stages the body in memory.
	DB scancore.DBOptions
	// MaxBodySize bounds the decompressed body. If zero,
	// DefaultMaxBodySize is used.
	MaxBodySize int64

	// Keep at least one unkeyed field, to force keyed initialization.
	_forceKeys struct{}
}

// File is one record file from a package body.
type File struct {
	Name string
	Data []byte
}

// Package is an opened, verified package.
type Package struct {
	Header *Header
	Files  []File
}

// Open verifies and extracts the package at "path".
//
// Verification happens as for [Verify]. A package requiring a functionality
// level above [scancore.FunctionalityLevel] reports [scancore.ESupport]. A body
// that can't be extracted reports [scancore.ECVDExtr], and a body holding a
// different number of records than the header claims reports
// [scancore.EMalfDB].
func Open(ctx context.Context, path string, opts *Options) (*Package, error) {
	const op = `dbpkg.Open`
	if opts == nil {
		opts = new(Options)
	}
	log := slog.With("path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, openErr(op, err)
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if h.FLevel > scancore.FunctionalityLevel {
		return nil, &scancore.Error{
			Op:      op,
			Code:    scancore.ESupport,
			Message: fmt.Sprintf("package needs functionality level %d (have %d)", h.FLevel, scancore.FunctionalityLevel),
		}
	}

	body, release, err := stage(opts, f)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := VerifyBody(h, io.NewSectionReader(body, 0, body.Size()), opts.Keyring, opts.Policy); err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "package verified",
		"version", h.Version,
		"signed", h.DSig != "")

	limit := opts.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	files, err := extract(ctx, body, limit)
	if err != nil {
		return nil, &scancore.Error{Op: op, Code: scancore.ECVDExtr, Inner: err}
	}
	var n uint
	for _, f := range files {
		c, err := sigdb.Count(f.Name, f.Data)
		if err != nil {
			return nil, err
		}
		n += c
	}
	if n != h.Sigs {
		return nil, &scancore.Error{
			Op:      op,
			Code:    scancore.EMalfDB,
			Message: fmt.Sprintf("header claims %d records, body has %d", h.Sigs, n),
		}
	}
	return &Package{Header: h, Files: files}, nil
}

// Stage copies the rest of "r" to temporary storage, or memory.
func stage(opts *Options, r io.Reader) (unpack.Source, func(), error) {
	const op = `dbpkg.stage`
	if opts.DB.Has(scancore.DBNoTempFile) {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
		}
		return bytes.NewReader(b), func() {}, nil
	}
	d := opts.Spool
	if d == nil {
		var err error
		d, err = spool.Default()
		if err != nil {
			return nil, nil, &scancore.Error{Op: op, Code: scancore.ETmpDir, Inner: err}
		}
	}
	sf, err := d.Create("dbpkg")
	if err != nil {
		return nil, nil, &scancore.Error{Op: op, Code: scancore.ETmpFile, Inner: err}
	}
	if _, err := io.Copy(sf, r); err != nil {
		sf.Close()
		return nil, nil, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	return sf, func() { sf.Close() }, nil
}

// Extract runs the body through the unpackers, collecting every file.
func extract(ctx context.Context, body unpack.Source, limit int64) ([]File, error) {
	head := make([]byte, unpack.HeadSize)
	n, err := body.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	var c collector
	switch fam := unpack.Identify(head[:n]); fam {
	case unpack.Gzip:
		err = new(unpack.GzipUnpacker).Unpack(ctx, body, tarSink{collector: &c, limit: limit})
	case unpack.Tar:
		err = new(unpack.TarUnpacker).Unpack(ctx, body, &c)
	default:
		return nil, fmt.Errorf("unexpected body format %v", fam)
	}
	if err != nil {
		return nil, err
	}
	return c.files, nil
}

// Collector is an [unpack.Sink] that keeps every member in memory.
type collector struct {
	files []File
}

var (
	errTooBig     = errors.New("record file too large")
	errBodyTooBig = errors.New("package body too large")
)

func (c *collector) Emit(_ context.Context, name string, r io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return err
	}
	if len(b) > MaxFileSize {
		return fmt.Errorf("%s: %w", name, errTooBig)
	}
	c.files = append(c.files, File{Name: name, Data: b})
	return nil
}

func (c *collector) Partial(ctx context.Context, name string, r io.Reader) error {
	return c.Emit(ctx, name, r)
}

func (c *collector) Encrypted(_ context.Context, name string) error {
	return fmt.Errorf("%s: encrypted member", name)
}

func (c *collector) Anomaly(context.Context, string) {}

// TarSink unpacks the single member of a compressed body as a tar.
type tarSink struct {
	*collector
	limit int64
}

func (t tarSink) Emit(ctx context.Context, _ string, r io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(r, t.limit+1))
	if err != nil {
		return err
	}
	if int64(len(b)) > t.limit {
		return fmt.Errorf("%w: over %d bytes", errBodyTooBig, t.limit)
	}
	return new(unpack.TarUnpacker).Unpack(ctx, bytes.NewReader(b), t.collector)
}
