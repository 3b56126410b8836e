// Package scan is the recursive scan dispatcher.
//
// A scan walks the tree of objects reachable from a byte source: each object
// is identified, unpacked if its family is enabled and has an Unpacker, and
// matched against the Engine's compiled signatures. The walk is depth first in
// the order Unpackers emit members, and stops at the first detection unless
// [scancore.ScanAllMatches] is set. Resource bounds from the Engine's limits
// are enforced at one place, before each unpack and each sub-object, and
// exceeding one aborts the scan with a distinct code.
//
// Scans are safe to run concurrently against one compiled Engine.
package scan

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quay/scancore"
	"github.com/quay/scancore/engine"
	"github.com/quay/scancore/internal/spool"
	"github.com/quay/scancore/toolkit/log"
)

// File scans the file at "path".
func File(ctx context.Context, path string, eng *engine.Engine, opts scancore.ScanOptions) (scancore.Result, error) {
	const op = `scan.File`
	f, err := os.Open(path)
	if err != nil {
		code := scancore.EOpen
		if errors.Is(err, fs.ErrPermission) {
			code = scancore.EAccess
		}
		return aborted(&scancore.Error{Op: op, Code: code, Inner: err})
	}
	defer f.Close()
	return Desc(ctx, f, eng, opts)
}

// Desc scans the open file "f". The file's offset is not used or changed.
func Desc(ctx context.Context, f *os.File, eng *engine.Engine, opts scancore.ScanOptions) (scancore.Result, error) {
	const op = `scan.Desc`
	if f == nil {
		return aborted(&scancore.Error{Op: op, Code: scancore.ENullArg, Message: "nil file"})
	}
	fi, err := f.Stat()
	if err != nil {
		return aborted(&scancore.Error{Op: op, Code: scancore.EIO, Inner: err})
	}
	if !fi.Mode().IsRegular() {
		return aborted(&scancore.Error{Op: op, Code: scancore.EArg, Message: f.Name() + ": not a regular file"})
	}
	return ReaderAt(ctx, f, fi.Size(), f.Name(), eng, opts)
}

// ReaderAt scans "size" bytes of "r". The "name" is used for logging.
//
// The returned error is non-nil exactly when the Result's Code is negative,
// and reports the same Code. The Engine must be compiled.
func ReaderAt(ctx context.Context, r io.ReaderAt, size int64, name string, eng *engine.Engine, opts scancore.ScanOptions) (res scancore.Result, err error) {
	const op = `scan.ReaderAt`
	switch {
	case r == nil:
		return aborted(&scancore.Error{Op: op, Code: scancore.ENullArg, Message: "nil reader"})
	case size < 0:
		return aborted(&scancore.Error{Op: op, Code: scancore.EArg, Message: "negative size"})
	}
	m, err := eng.Matcher()
	if err != nil {
		return aborted(err)
	}
	limits := eng.Limits()

	var dir *spool.Dir
	if p := eng.SpoolDir(); p != "" {
		dir, err = spool.Open(p)
		if err != nil {
			return aborted(&scancore.Error{Op: op, Code: scancore.ETmpDir, Inner: err})
		}
		defer dir.Close()
	} else {
		dir, err = spool.Default()
		if err != nil {
			return aborted(&scancore.Error{Op: op, Code: scancore.ETmpDir, Inner: err})
		}
	}
	scope := spool.NewScope(dir)
	defer scope.Close()

	w := newWalk(m, eng.Registry(), limits, opts, scope)
	ctx = log.With(ctx, "scan_id", w.id.String(), "path", name)
	ctx, span := tracer.Start(ctx, "Scan", trace.WithAttributes(
		idKey.String(w.id.String()),
		sizeKey.Int64(size),
	))
	start := time.Now()
	defer func() {
		scanCounter.WithLabelValues(codeLabel(res.Code)).Inc()
		scanDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(codeKey.Int(int(res.Code)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan aborted")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		slog.DebugContext(ctx, "scan done",
			"code", res.Code,
			"label", res.Label,
			"scanned", res.Scanned,
			"skipped", res.Skipped,
			"elapsed", time.Since(start))
	}()

	if limits.MaxFileSize != 0 && uint64(size) > limits.MaxFileSize {
		skippedLog.Do(func() {
			slog.InfoContext(ctx, "object exceeds file size limit", "size", size, "limit", limits.MaxFileSize)
		})
		return scancore.Result{Code: scancore.Clean, Skipped: 1}, nil
	}
	if !w.reserveBytes(uint64(size)) {
		return w.aggregate(&scancore.Error{Op: op, Code: scancore.EMaxSize, Message: name})
	}
	return w.aggregate(w.dispatch(ctx, &frame{
		w:    w,
		src:  io.NewSectionReader(r, 0, size),
		name: name,
	}))
}
