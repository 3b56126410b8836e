package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/quay/scancore"
	"github.com/quay/scancore/unpack"
)

var _ unpack.Sink = (*frame)(nil)

// Emit implements [unpack.Sink].
func (f *frame) Emit(ctx context.Context, name string, r io.Reader) error {
	return f.recurse(ctx, name, r, false)
}

// Partial implements [unpack.Sink].
func (f *frame) Partial(ctx context.Context, name string, r io.Reader) error {
	if !f.w.opts.Has(scancore.ScanPartialMessage) {
		slog.DebugContext(ctx, "partial message skipped", "member", name)
		return nil
	}
	return f.recurse(ctx, name, r, true)
}

// Encrypted implements [unpack.Sink].
func (f *frame) Encrypted(ctx context.Context, name string) error {
	if f.w.opts.Has(scancore.ScanBlockEncrypted) {
		return &scancore.Error{
			Op:      `scan.recurse`,
			Code:    scancore.EEncrypted,
			Message: path.Join(f.name, name),
		}
	}
	encryptedLog.Do(func() {
		slog.InfoContext(ctx, "encrypted member skipped", "member", name)
	})
	return nil
}

// Anomaly implements [unpack.Sink].
func (f *frame) Anomaly(ctx context.Context, name string) {
	if !f.w.opts.Has(scancore.ScanAlgorithmic) {
		return
	}
	slog.DebugContext(ctx, "anomaly", "label", name)
	f.anomalies = append(f.anomalies, name)
}

// ReadErr remembers the error from the read side of a copy.
type readErr struct {
	r   io.Reader
	err error
}

func (r *readErr) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return n, err
}

// Recurse reserves, spools, and dispatches one sub-object.
//
// Partial objects never cause a limit abort: if they don't fit, they're
// dropped.
func (f *frame) recurse(ctx context.Context, name string, r io.Reader, partial bool) error {
	const op = `scan.recurse`
	w := f.w
	child := path.Join(f.name, name)
	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}
	if !w.reserveObject() {
		if partial {
			return nil
		}
		return &scancore.Error{Op: op, Code: scancore.EMaxFiles, Message: child}
	}

	sf, err := w.scope.Create("scan")
	if err != nil {
		return &scancore.Error{Op: op, Code: scancore.ETmpFile, Inner: err}
	}
	defer w.scope.Release(sf)
	rd := &readErr{r: r}
	var src io.Reader = rd
	max := w.limits.MaxFileSize
	if max != 0 {
		src = io.LimitReader(rd, int64(max)+1)
	}
	n, err := io.Copy(sf, src)
	if err != nil && rd.err == nil {
		return &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	if max != 0 && uint64(n) > max {
		w.skipped.Add(1)
		skippedLog.Do(func() {
			slog.InfoContext(ctx, "member exceeds file size limit", "member", name, "limit", max)
		})
		return nil
	}
	if rd.err != nil {
		if uint64(n) < w.limits.PartialThreshold {
			slog.DebugContext(ctx, "truncated member skipped",
				"member", name,
				"recovered", n,
				"reason", rd.err)
			return nil
		}
		partial = true
	}
	if !w.reserveBytes(uint64(n)) {
		if partial {
			return nil
		}
		return &scancore.Error{
			Op:      op,
			Code:    scancore.EMaxSize,
			Message: fmt.Sprintf("%s: %d bytes", child, n),
		}
	}
	return w.dispatch(ctx, &frame{
		w:       w,
		src:     io.NewSectionReader(sf, 0, n),
		name:    child,
		depth:   f.depth + 1,
		partial: partial,
	})
}
