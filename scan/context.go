package scan

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/quay/scancore"
	"github.com/quay/scancore/engine"
	"github.com/quay/scancore/internal/spool"
	"github.com/quay/scancore/sigdb"
	"github.com/quay/scancore/unpack"
)

// Walk is the shared state of one top-level scan.
//
// The counters only increase, and increase through reserve methods that
// compare against the bound before committing, so concurrent frames can't
// jointly overshoot a limit.
type walk struct {
	id       uuid.UUID
	opts     scancore.ScanOptions
	limits   engine.Limits
	matcher  *sigdb.Matcher
	registry *unpack.Registry
	scope    *spool.Scope

	bytes   atomic.Uint64
	objects atomic.Uint32
	skipped atomic.Int32

	mu     sync.Mutex
	labels []string
}

func newWalk(m *sigdb.Matcher, reg *unpack.Registry, l engine.Limits, opts scancore.ScanOptions, scope *spool.Scope) *walk {
	return &walk{
		id:       uuid.New(),
		opts:     opts,
		limits:   l,
		matcher:  m,
		registry: reg,
		scope:    scope,
	}
}

// ReserveBytes attributes "n" bytes to the scan, failing if that would take the
// total past MaxScanSize.
func (w *walk) reserveBytes(n uint64) bool {
	max := w.limits.MaxScanSize
	for {
		cur := w.bytes.Load()
		if max != 0 && (n > max || cur > max-n) {
			return false
		}
		if w.bytes.CompareAndSwap(cur, cur+n) {
			return true
		}
	}
}

// ReserveObject counts one extracted object, failing if that would take the
// count past MaxFiles.
func (w *walk) reserveObject() bool {
	max := w.limits.MaxFiles
	for {
		cur := w.objects.Load()
		if max != 0 && cur >= max {
			return false
		}
		if w.objects.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Exhausted reports which bound, if any, forbids descending into another
// container at "depth".
func (w *walk) exhausted(depth uint32) scancore.Code {
	l := &w.limits
	switch {
	case l.MaxRecursion != 0 && depth >= l.MaxRecursion:
		return scancore.EMaxRec
	case l.MaxScanSize != 0 && w.bytes.Load() >= l.MaxScanSize:
		return scancore.EMaxSize
	case l.MaxFiles != 0 && w.objects.Load() >= l.MaxFiles:
		return scancore.EMaxFiles
	}
	return scancore.Clean
}

// Found records detections. It reports whether the walk should stop.
func (w *walk) found(labels ...string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range labels {
		if !slices.Contains(w.labels, l) {
			w.labels = append(w.labels, l)
		}
	}
	return !w.opts.Has(scancore.ScanAllMatches)
}

// Detections returns the labels found so far, in the order found.
func (w *walk) detections() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.labels)
}
