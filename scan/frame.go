package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/quay/scancore"
	"github.com/quay/scancore/toolkit/log"
	"github.com/quay/scancore/unpack"
)

// ErrFound ends a walk early because something matched.
var errFound = errors.New("scan: detection")

// Per-object warnings are throttled: a corpus of broken archives shouldn't
// flood the log.
var (
	brokenLog    = rate.Sometimes{First: 5, Interval: 10 * time.Second}
	skippedLog   = rate.Sometimes{First: 5, Interval: 10 * time.Second}
	encryptedLog = rate.Sometimes{First: 5, Interval: 10 * time.Second}
)

// Frame is one object in the tree: the top-level source, or a spooled
// sub-object.
type frame struct {
	w     *walk
	src   unpack.Source
	name  string
	depth uint32
	// Partial objects were recovered from a truncated member or a
	// "message/partial" fragment. They're matched as leaves.
	partial   bool
	family    unpack.Family
	anomalies []string

	data   []byte
	loaded bool
}

// Dispatch runs the FSM for one object and any objects beneath it.
func (w *walk) dispatch(ctx context.Context, f *frame) error {
	ctx = log.With(ctx, "depth", f.depth, "object", f.name)
	st := Identify
	var err error
	for err == nil && st != Terminal {
		st, err = stateToStateFunc[st](ctx, f)
	}
	return err
}

// Bytes returns the object's contents, reading them on first use.
func (f *frame) bytes() ([]byte, error) {
	if f.loaded {
		return f.data, nil
	}
	b := make([]byte, f.src.Size())
	n, err := f.src.ReadAt(b, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &scancore.Error{Op: `scan.read`, Code: scancore.EIO, Inner: err}
	}
	f.data, f.loaded = b[:n], true
	return f.data, nil
}

// Interrupted is the abort used when the caller's Context ends between
// objects.
func interrupted(err error) error {
	return &scancore.Error{Op: `scan`, Code: scancore.EIO, Message: "scan interrupted", Inner: err}
}

func identify(ctx context.Context, f *frame) (State, error) {
	if err := ctx.Err(); err != nil {
		return Terminal, interrupted(err)
	}
	b, err := f.bytes()
	if err != nil {
		return Terminal, err
	}
	if f.w.matcher.Whitelisted(b) {
		slog.DebugContext(ctx, "object whitelisted")
		return Terminal, nil
	}
	f.family = unpack.Identify(b[:min(len(b), unpack.HeadSize)])
	switch {
	case f.partial:
		return Match, nil
	case !f.family.Enabled(f.w.opts):
		return Match, nil
	}
	if _, ok := f.w.registry.Lookup(f.family); !ok {
		return Match, nil
	}
	return Unpack, nil
}
