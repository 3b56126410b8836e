package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quay/scancore"
	"github.com/quay/scancore/dbpkg"
	"github.com/quay/scancore/dbstat"
	"github.com/quay/scancore/internal/spool"
	"github.com/quay/scancore/sigdb"
	"github.com/quay/scancore/toolkit/log"
)

// Loaded is one database file, verified and read.
type loaded struct {
	header *dbpkg.Header // nil for raw record files
	files  []dbpkg.File
	path   string
}

// Load adds the database at "path", a package, a raw record file, or a
// directory of them, to the Engine's pending signature set. It reports the
// number of signatures added.
//
// Load is atomic: if any file fails to verify or parse, nothing is added and
// the count is zero. Packages are verified against the Engine's keyring.
// With [scancore.DBOfficial], raw record files are skipped. Loading into a
// compiled Engine reports [scancore.EArg].
func (e *Engine) Load(ctx context.Context, path string, opts scancore.DBOptions) (n uint, err error) {
	const op = `engine.Load`
	if e == nil {
		return 0, nullArg(op)
	}
	e.mu.RLock()
	closed, compiledAlready, pua := e.closed, e.shared != nil, e.pua
	e.mu.RUnlock()
	switch {
	case closed:
		return 0, nullArg(op)
	case compiledAlready:
		return 0, invalid(op, "engine already compiled")
	}
	ctx = log.With(ctx, "path", path)
	defer func() {
		loadCounter.WithLabelValues(successLabel(err)).Inc()
	}()

	paths, err := databaseFiles(path, opts)
	if err != nil {
		return 0, err
	}
	ls, err := e.readAll(ctx, paths, opts)
	if err != nil {
		slog.WarnContext(ctx, "database load failed", "reason", err)
		return 0, err
	}

	staging := sigdb.NewBuilder()
	lopts := sigdb.LoadOptions{DB: opts, PUACategories: pua}
	var newest *dbpkg.Header
	for _, l := range ls {
		for _, f := range l.files {
			c, err := staging.Add(f.Name, f.Data, lopts)
			if err != nil {
				slog.WarnContext(ctx, "database load failed", "file", l.path, "reason", err)
				return 0, err
			}
			n += c
		}
		if h := l.header; h != nil && (newest == nil || h.STime > newest.STime) {
			newest = h
		}
	}

	// Commit.
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return 0, nullArg(op)
	case e.shared != nil:
		return 0, invalid(op, "engine compiled during load")
	}
	e.pending.Merge(staging)
	if newest != nil && newest.STime > e.newest {
		e.newest = newest.STime
		e.dbHeader = true
		e.dbVer = uint32(newest.Version)
		e.dbTime = uint32(newest.STime)
	}
	slog.InfoContext(ctx, "database loaded", "files", len(ls), "signatures", n)
	return n, nil
}

func successLabel(err error) string {
	if err == nil {
		return "true"
	}
	return "false"
}

// DatabaseFiles resolves "path" into the list of files to load, sorted.
func databaseFiles(path string, opts scancore.DBOptions) ([]string, error) {
	const op = `engine.databaseFiles`
	fi, err := os.Stat(path)
	if err != nil {
		code := scancore.EOpen
		if errors.Is(err, fs.ErrPermission) {
			code = scancore.EAccess
		}
		return nil, &scancore.Error{Op: op, Code: code, Inner: err}
	}
	var names []string
	if fi.IsDir() {
		ents, err := os.ReadDir(path)
		if err != nil {
			return nil, &scancore.Error{Op: op, Code: scancore.EOpen, Inner: err}
		}
		for _, ent := range ents {
			if ent.IsDir() || !dbstat.IsDatabaseFile(ent.Name()) {
				continue
			}
			names = append(names, filepath.Join(path, ent.Name()))
		}
	} else {
		if !dbstat.IsDatabaseFile(path) {
			return nil, invalid(op, "%s: not a database file", path)
		}
		names = []string{path}
	}
	if opts.Has(scancore.DBOfficial) {
		names = slices.DeleteFunc(names, func(n string) bool { return !isPackage(n) })
	}
	slices.Sort(names)
	return names, nil
}

func isPackage(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".cvd")
}

// ReadAll verifies packages in parallel and reads raw files, returning them in
// the order of "paths".
func (e *Engine) readAll(ctx context.Context, paths []string, opts scancore.DBOptions) ([]loaded, error) {
	out := make([]loaded, len(paths))
	popts := &dbpkg.Options{
		Keyring: e.opts.Keyring,
		Policy: dbpkg.Policy{
			SkipSignature:    e.opts.SkipSignature,
			RequireSignature: e.opts.RequireSignature || opts.Has(scancore.DBOfficial),
		},
		DB: opts,
	}
	if e.opts.SpoolDir != "" && !opts.Has(scancore.DBNoTempFile) {
		d, err := spool.Open(e.opts.SpoolDir)
		if err != nil {
			return nil, &scancore.Error{Op: `engine.readAll`, Code: scancore.ETmpDir, Inner: err}
		}
		defer d.Close()
		popts.Spool = d
	}

	lim := e.opts.LoadConcurrency
	if lim <= 0 {
		lim = runtime.GOMAXPROCS(0)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(lim)
	for i, p := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			pprof.Do(ctx, pprof.Labels("task", "database_load", "file", filepath.Base(p)), func(ctx context.Context) {
				out[i], err = readOne(ctx, p, popts)
			})
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &scancore.Error{Op: `engine.readAll`, Code: scancore.EIO, Inner: err}
		}
		return nil, err
	}
	return out, nil
}

func readOne(ctx context.Context, path string, popts *dbpkg.Options) (loaded, error) {
	if isPackage(path) {
		pkg, err := dbpkg.Open(ctx, path, popts)
		if err != nil {
			return loaded{}, err
		}
		slog.DebugContext(ctx, "package opened",
			"file", path,
			"version", pkg.Header.Version,
			"sigs", pkg.Header.Sigs)
		return loaded{header: pkg.Header, files: pkg.Files, path: path}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return loaded{}, &scancore.Error{Op: `engine.readOne`, Code: scancore.EOpen, Inner: err}
	}
	return loaded{files: []dbpkg.File{{Name: filepath.Base(path), Data: b}}, path: path}, nil
}
