package dbstat

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quay/scancore"
)

// DefaultDebounce is how long Watch waits for a burst of events to settle.
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions controls [Watch].
type WatchOptions struct {
	// Debounce is the quiet period after the last event before OnChange
	// runs. If zero, DefaultDebounce is used.
	Debounce time.Duration

	// Keep at least one unkeyed field, to force keyed initialization.
	_forceKeys struct{}
}

// Watch calls "onChange" whenever the database files in "dir" change, until
// the Context is canceled.
//
// Events are coalesced: OnChange runs once per burst, after the directory has
// been quiet for the debounce period, and only if a [Stat] comparison shows
// an actual change. Watch returns nil when the Context is canceled.
func Watch(ctx context.Context, dir string, onChange func(context.Context), opts *WatchOptions) error {
	const op = `dbstat.Watch`
	d := DefaultDebounce
	if opts != nil && opts.Debounce > 0 {
		d = opts.Debounce
	}
	st, err := Init(dir)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return &scancore.Error{Op: op, Code: scancore.EOpen, Inner: err}
	}
	slog.DebugContext(ctx, "watching database directory", "dir", dir)

	timer := time.NewTimer(d)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !IsDatabaseFile(filepath.Base(ev.Name)) || ev.Op == fsnotify.Chmod {
				continue
			}
			slog.DebugContext(ctx, "database directory event", "name", ev.Name, "op", ev.Op.String())
			timer.Reset(d)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Lost events; fall back to comparing the directory.
				timer.Reset(d)
				continue
			}
			slog.WarnContext(ctx, "watch error", "reason", err)
		case <-timer.C:
			changed, err := st.Changed()
			if err != nil {
				slog.WarnContext(ctx, "unable to stat database directory", "reason", err)
				continue
			}
			if !changed {
				continue
			}
			if err := st.Reset(); err != nil {
				slog.WarnContext(ctx, "unable to stat database directory", "reason", err)
				continue
			}
			slog.InfoContext(ctx, "database directory changed", "dir", dir, "files", len(st.Files()))
			onChange(ctx)
		}
	}
}
