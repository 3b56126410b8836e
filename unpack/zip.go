package unpack

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZipUnpacker handles zip archives.
//
// Stored, deflate, and zstd (method 93) members are supported. Members using
// other methods make the archive count as broken once every supported member
// has been emitted.
type ZipUnpacker struct{}

var _ Unpacker = (*ZipUnpacker)(nil)

// Family implements [Unpacker].
func (*ZipUnpacker) Family() Family { return Zip }

// Zstd compression method, per APPNOTE 4.4.5.
const zipMethodZstd = 93

// Unpack implements [Unpacker].
func (*ZipUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	z, err := zip.NewReader(src, src.Size())
	if err != nil {
		return broken(Zip, err)
	}
	// Registered per-Reader so the package-level registry isn't touched.
	z.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		d := getZstd()
		if err := d.Reset(r); err != nil {
			putZstd(d)
			return io.NopCloser(errReader{err})
		}
		return &zstdReadCloser{Decoder: d}
	})

	var unsupported []string
	for _, f := range z.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		// General purpose flag bit 0: encrypted.
		if f.Flags&0x1 != 0 {
			if err := sink.Encrypted(ctx, f.Name); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, zip.ErrAlgorithm):
			unsupported = append(unsupported, f.Name)
			continue
		default:
			return broken(Zip, err)
		}
		err = emit(ctx, Zip, sink, f.Name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	if len(unsupported) != 0 {
		return broken(Zip, fmt.Errorf("unsupported compression method for %q", unsupported))
	}
	return nil
}

// ZstdReadCloser returns the decoder to the pool on Close.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	if z.Decoder != nil {
		putZstd(z.Decoder)
		z.Decoder = nil
	}
	return nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
