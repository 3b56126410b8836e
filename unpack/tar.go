package unpack

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"path"
)

// TarUnpacker handles POSIX and GNU tar archives.
type TarUnpacker struct{}

var _ Unpacker = (*TarUnpacker)(nil)

// Family implements [Unpacker].
func (*TarUnpacker) Family() Family { return Tar }

// Unpack implements [Unpacker].
//
// Only regular files are emitted. Links, directories, and device nodes carry no
// content of their own.
func (*TarUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	rd := tar.NewReader(reader(src))
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := rd.Next()
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, io.EOF):
			if n == 0 {
				// A tar with no entries at all is almost certainly some other
				// format that happened to match the identification heuristic.
				return brokenf(Tar, "no entries")
			}
			return nil
		default:
			return broken(Tar, err)
		}
		n++
		if h.Typeflag != tar.TypeReg && h.Typeflag != tar.TypeRegA {
			continue
		}
		name := path.Clean("/" + h.Name)[1:]
		if err := emit(ctx, Tar, sink, name, rd); err != nil {
			return err
		}
	}
}
