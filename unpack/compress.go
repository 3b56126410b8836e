package unpack

import (
	"compress/bzip2"
	"context"
	"path"

	"github.com/ulikunitz/xz"
)

// GzipUnpacker handles gzip streams, emitting the single decompressed member.
//
// Concatenated gzip members are treated as one stream, as gunzip(1) does.
type GzipUnpacker struct{}

var _ Unpacker = (*GzipUnpacker)(nil)

// Family implements [Unpacker].
func (*GzipUnpacker) Family() Family { return Gzip }

// Unpack implements [Unpacker].
func (*GzipUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	z := getGzip()
	defer putGzip(z)
	if err := z.Reset(reader(src)); err != nil {
		return broken(Gzip, err)
	}
	name := "data"
	if n := path.Base(z.Name); z.Name != "" && n != "." && n != "/" {
		name = n
	}
	return emit(ctx, Gzip, sink, name, z)
}

// Bzip2Unpacker handles bzip2 streams.
type Bzip2Unpacker struct{}

var _ Unpacker = (*Bzip2Unpacker)(nil)

// Family implements [Unpacker].
func (*Bzip2Unpacker) Family() Family { return Bzip2 }

// Unpack implements [Unpacker].
func (*Bzip2Unpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	return emit(ctx, Bzip2, sink, "data", bzip2.NewReader(reader(src)))
}

// XzUnpacker handles xz streams.
type XzUnpacker struct{}

var _ Unpacker = (*XzUnpacker)(nil)

// Family implements [Unpacker].
func (*XzUnpacker) Family() Family { return Xz }

// Unpack implements [Unpacker].
func (*XzUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	z, err := xz.NewReader(reader(src))
	if err != nil {
		return broken(Xz, err)
	}
	return emit(ctx, Xz, sink, "data", z)
}

// ZstdUnpacker handles zstd streams.
type ZstdUnpacker struct{}

var _ Unpacker = (*ZstdUnpacker)(nil)

// Family implements [Unpacker].
func (*ZstdUnpacker) Family() Family { return Zstd }

// Unpack implements [Unpacker].
func (*ZstdUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	d := getZstd()
	defer putZstd(d)
	if err := d.Reset(reader(src)); err != nil {
		return broken(Zstd, err)
	}
	return emit(ctx, Zstd, sink, "data", d)
}
