package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quay/scancore"
	"github.com/quay/scancore/unpack"
)

func unpackObject(ctx context.Context, f *frame) (State, error) {
	const op = `scan.unpack`
	// Header inspectors never emit children, so only containers are bounded.
	if c := f.w.exhausted(f.depth); c != scancore.Clean && f.family.Container() {
		slog.DebugContext(ctx, "limit reached", "family", f.family, "reason", c)
		return Terminal, &scancore.Error{
			Op:      op,
			Code:    c,
			Message: fmt.Sprintf("%v at depth %d", f.family, f.depth),
		}
	}
	u, _ := f.w.registry.Lookup(f.family)
	err := u.Unpack(ctx, f.src, f)
	var serr *scancore.Error
	switch {
	case errors.Is(err, nil):
	case errors.Is(err, errFound), errors.As(err, &serr):
		// Raised by a frame beneath this one.
		return Terminal, err
	case errors.Is(err, unpack.ErrBroken):
		brokenLog.Do(func() {
			slog.WarnContext(ctx, "broken container", "family", f.family, "reason", err)
		})
		if f.w.opts.Has(scancore.ScanBlockBroken) {
			return Terminal, &scancore.Error{Op: op, Code: f.family.Code(), Inner: err}
		}
	default:
		return Terminal, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	// Containers are matched too, which is also the best-effort path for
	// broken ones.
	return Match, nil
}
