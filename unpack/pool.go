package unpack

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// GetZstd pulls an initialized decoder from the pool.
func getZstd() *zstd.Decoder {
	d := zstdpool.Get()
	if d == nil {
		// Decoders are limited to a single goroutine and a bounded window,
		// so a hostile frame can't make us allocate without limit.
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxWindow(64<<20),
		)
		if err != nil {
			// Should *never* happen -- a nil Reader causes only internal setup allocations.
			panic(fmt.Sprintf("error creating zstd reader: %v", err))
		}
		return dec
	}
	return d.(*zstd.Decoder)
}

// PutZstd returns a decoder to the pool.
func putZstd(d *zstd.Decoder) {
	// Reset with a nil reader drops the reference to the previous input.
	if err := d.Reset(nil); err != nil {
		d.Close()
		return
	}
	zstdpool.Put(d)
}

// GetGzip pulls a reader from the pool.
func getGzip() *gzip.Reader {
	r := gzippool.Get()
	if r == nil {
		return new(gzip.Reader)
	}
	return r.(*gzip.Reader)
}

// PutGzip returns a reader to the pool.
func putGzip(r *gzip.Reader) { gzippool.Put(r) }

// Package-level pools for the respective objects.
var (
	zstdpool sync.Pool
	gzippool sync.Pool
)
