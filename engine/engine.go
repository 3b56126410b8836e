// Package engine holds the scan engine: its configuration, its loaded
// signature databases, and the compiled matcher scans run against.
//
// An Engine goes through two phases. While uncompiled, databases are added
// with [Engine.Load]. [Engine.Compile] then freezes the signature set into a
// matcher, after which the Engine may be used for scans. Configuration may be
// read and written at any time and is internally synchronized, but Load and
// Compile must not run concurrently with scans of the same Engine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/openpgp"

	"github.com/quay/scancore"
	"github.com/quay/scancore/sigdb"
	"github.com/quay/scancore/unpack"
)

// Options are the construction-time settings of an Engine.
type Options struct {
	// Keyring is the trust anchor for package signatures.
	Keyring openpgp.KeyRing
	// Registry is the set of unpackers scans use. If nil,
	// [unpack.Default] is used.
	Registry *unpack.Registry
	// SpoolDir is where temporary files are created. If empty, the process
	// default is used.
	SpoolDir string
	// LoadConcurrency bounds how many packages are verified at once. If
	// zero, GOMAXPROCS is used.
	LoadConcurrency int
	// SkipSignature accepts signed packages without checking the
	// signature.
	SkipSignature bool
	// RequireSignature rejects unsigned packages.
	RequireSignature bool
}

// Engine is a scan engine. See the package documentation for its life cycle.
type Engine struct {
	opts Options

	mu       sync.RWMutex
	closed   bool
	limits   Limits
	pua      string
	dbHeader bool
	dbVer    uint32
	dbTime   uint32
	// Pending holds records loaded but not yet compiled. It's nil once
	// compiled.
	pending *sigdb.Builder
	// The STime of the newest package header loaded so far.
	newest int64
	shared *compiled
}

// Compiled is the matcher shared between an Engine and its duplicates.
type compiled struct {
	m    *sigdb.Matcher
	refs atomic.Int32
}

func (c *compiled) release() {
	if c.refs.Add(-1) == 0 {
		c.m = nil
	}
}

// New returns an empty, uncompiled Engine with default limits.
func New(opts *Options) *Engine {
	e := &Engine{
		limits:  DefaultLimits(),
		pending: sigdb.NewBuilder(),
		newest:  -1,
	}
	if opts != nil {
		e.opts = *opts
	}
	if e.opts.Registry == nil {
		e.opts.Registry = unpack.Default()
	}
	return e
}

func nullArg(op string) error {
	return &scancore.Error{Op: op, Code: scancore.ENullArg, Message: "engine is nil or closed"}
}

func invalid(op, format string, args ...any) error {
	return &scancore.Error{Op: op, Code: scancore.EArg, Message: fmt.Sprintf(format, args...)}
}

// Dup returns an Engine with a copy of this Engine's configuration.
//
// If this Engine is compiled, the duplicate shares its matcher; the matcher
// lives until every sharing Engine is closed. Otherwise the duplicate gets a
// copy of the records loaded so far. Dup of a closed Engine returns nil.
func (e *Engine) Dup() *Engine {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil
	}
	d := &Engine{
		opts:     e.opts,
		limits:   e.limits,
		pua:      e.pua,
		dbHeader: e.dbHeader,
		dbVer:    e.dbVer,
		dbTime:   e.dbTime,
		newest:   e.newest,
	}
	if e.shared != nil {
		e.shared.refs.Add(1)
		d.shared = e.shared
	} else {
		d.pending = e.pending.Clone()
	}
	return d
}

// Close releases this Engine's hold on the compiled matcher. Every later call
// on the Engine reports [scancore.ENullArg], including another Close.
func (e *Engine) Close() error {
	const op = `engine.Close`
	if e == nil {
		return nullArg(op)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nullArg(op)
	}
	e.closed = true
	e.pending = nil
	if e.shared != nil {
		e.shared.release()
		e.shared = nil
	}
	return nil
}

// Compiled reports whether [Engine.Compile] has run.
func (e *Engine) Compiled() bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shared != nil
}

// Compile builds the matcher from the loaded records and records the version
// and time of the newest loaded package. Compiling a compiled Engine does
// nothing; compiling with nothing loaded gives an empty matcher.
func (e *Engine) Compile(ctx context.Context) error {
	const op = `engine.Compile`
	if e == nil {
		return nullArg(op)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return nullArg(op)
	case e.shared != nil:
		return nil
	}
	m := e.pending.Compile()
	c := &compiled{m: m}
	c.refs.Store(1)
	e.shared = c
	e.pending = nil
	signatureGauge.Set(float64(m.Sigs()))
	slog.InfoContext(ctx, "engine compiled",
		"signatures", m.Sigs(),
		"db_version", e.dbVer,
		"db_time", e.dbTime)
	return nil
}

// Matcher returns the compiled matcher.
//
// A nil or closed Engine reports [scancore.ENullArg]; an uncompiled one
// reports [scancore.EArg].
func (e *Engine) Matcher() (*sigdb.Matcher, error) {
	const op = `engine.Matcher`
	if e == nil {
		return nil, nullArg(op)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch {
	case e.closed:
		return nil, nullArg(op)
	case e.shared == nil:
		return nil, invalid(op, "engine not compiled")
	}
	return e.shared.m, nil
}

// Registry returns the unpackers scans with this Engine use.
func (e *Engine) Registry() *unpack.Registry { return e.opts.Registry }

// SpoolDir returns the configured temporary directory, which may be empty.
func (e *Engine) SpoolDir() string { return e.opts.SpoolDir }

// Limits returns a snapshot of the current limits.
func (e *Engine) Limits() Limits {
	if e == nil {
		return DefaultLimits()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

// Set changes a setting.
//
// The value must have exactly the type documented on the [Field]. DBVersion and
// DBTime are read-only. PUACategories must be a dotted list such as
// ".Packer.Tool." and can't be changed once the Engine is compiled, since it
// affects which signatures load. Limits changed after compiling apply to scans
// started afterward.
func (e *Engine) Set(f Field, v any) error {
	const op = `engine.Set`
	if e == nil {
		return nullArg(op)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nullArg(op)
	}
	wrongType := func() error {
		return invalid(op, "%v: unexpected type %T", f, v)
	}
	switch f {
	case MaxScanSize, MaxFileSize, PartialThreshold:
		n, ok := v.(uint64)
		if !ok {
			return wrongType()
		}
		switch f {
		case MaxScanSize:
			e.limits.MaxScanSize = n
		case MaxFileSize:
			e.limits.MaxFileSize = n
		case PartialThreshold:
			e.limits.PartialThreshold = n
		}
	case MaxRecursion, MaxFiles, MinCCCount, MinSSNCount:
		n, ok := v.(uint32)
		if !ok {
			return wrongType()
		}
		switch f {
		case MaxRecursion:
			e.limits.MaxRecursion = n
		case MaxFiles:
			e.limits.MaxFiles = n
		case MinCCCount:
			e.limits.MinCCCount = n
		case MinSSNCount:
			e.limits.MinSSNCount = n
		}
	case PUACategories:
		s, ok := v.(string)
		if !ok {
			return wrongType()
		}
		if !puaPattern.MatchString(s) {
			return invalid(op, "%v: malformed category list %q", f, s)
		}
		if e.shared != nil {
			return invalid(op, "%v: engine already compiled", f)
		}
		e.pua = s
	case DBVersion, DBTime:
		return invalid(op, "%v: read-only", f)
	default:
		return invalid(op, "unknown field %v", f)
	}
	return nil
}

// Get reads a setting. The returned value has the type documented on the
// [Field].
//
// DBVersion and DBTime report [scancore.EArg] until a compiled Engine has
// loaded at least one package. PUACategories reports [scancore.EArg] if it
// was never set.
func (e *Engine) Get(f Field) (any, error) {
	const op = `engine.Get`
	if e == nil {
		return nil, nullArg(op)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, nullArg(op)
	}
	switch f {
	case MaxScanSize:
		return e.limits.MaxScanSize, nil
	case MaxFileSize:
		return e.limits.MaxFileSize, nil
	case PartialThreshold:
		return e.limits.PartialThreshold, nil
	case MaxRecursion:
		return e.limits.MaxRecursion, nil
	case MaxFiles:
		return e.limits.MaxFiles, nil
	case MinCCCount:
		return e.limits.MinCCCount, nil
	case MinSSNCount:
		return e.limits.MinSSNCount, nil
	case PUACategories:
		if e.pua == "" {
			return nil, invalid(op, "%v: not set", f)
		}
		return e.pua, nil
	case DBVersion, DBTime:
		if e.shared == nil || !e.dbHeader {
			return nil, invalid(op, "%v: no database compiled", f)
		}
		if f == DBVersion {
			return e.dbVer, nil
		}
		return e.dbTime, nil
	}
	return nil, invalid(op, "unknown field %v", f)
}
