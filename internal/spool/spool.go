// Package spool provides scoped temporary storage for objects extracted
// during a scan.
//
// Files returned by this package are removed when closed. A [Scope] tracks
// every file created through it so that a scan can release everything it
// created on any exit path.
package spool

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// Dir is a directory that spool files are created in.
type Dir struct {
	root *os.Root
	path string
}

// Open returns a Dir rooted at "path".
//
// If "path" is empty, the location is chosen as for [Default].
func Open(path string) (*Dir, error) {
	if path == "" {
		path = defaultPath()
	}
	r, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("spool: unable to open %q: %w", path, err)
	}
	return &Dir{root: r, path: path}, nil
}

// Default returns the process-wide Dir.
//
// The location honors $TMPDIR, then tries to follow file-hierarchy(7) by
// preferring "/var/tmp" over [os.TempDir].
var Default = sync.OnceValues(func() (*Dir, error) {
	return Open("")
})

func defaultPath() string {
	if p, ok := os.LookupEnv("TMPDIR"); ok && p != "" {
		return p
	}
	for _, name := range []string{`/var/tmp`, os.TempDir()} {
		fi, err := os.Stat(name)
		if err == nil && fi.IsDir() {
			return name
		}
	}
	return os.TempDir()
}

// Path reports the directory's location.
func (d *Dir) Path() string { return d.path }

// Close releases the directory handle. Files already created are unaffected.
func (d *Dir) Close() error { return d.root.Close() }

func mkname(prefix string) string {
	return cmp.Or(prefix, "tmp") + "." +
		strconv.FormatUint(uint64(rand.Uint32()), 10)
}

// Create returns a read-write File that is removed when closed.
//
// If "prefix" is not provided, "tmp" will be used.
func (d *Dir) Create(prefix string) (*File, error) {
	name := mkname(prefix)
	f, anon, err := osCreate(d.root, name)
	if err != nil {
		return nil, err
	}
	sf := &File{File: f}
	if !anon {
		sf.remove = func() error { return d.root.Remove(name) }
	}
	return sf, nil
}

// File is a spool file.
type File struct {
	*os.File
	remove func() error
	once   sync.Once
	err    error
}

// Close closes the file and removes it from the filesystem.
//
// Close is idempotent.
func (f *File) Close() error {
	f.once.Do(func() {
		f.err = f.File.Close()
		if f.remove != nil {
			if err := f.remove(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				f.err = errors.Join(f.err, err)
			}
		}
	})
	return f.err
}

// Size reports the current size of the file.
func (f *File) Size() int64 {
	fi, err := f.File.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// Scope tracks spool files so they can be released together.
//
// A Scope is safe for concurrent use.
type Scope struct {
	dir  *Dir
	mu   sync.Mutex
	live map[*File]struct{}
	n    atomic.Int64
}

// NewScope returns a Scope creating files in "d".
func NewScope(d *Dir) *Scope {
	return &Scope{
		dir:  d,
		live: make(map[*File]struct{}),
	}
}

// Create creates a spool file owned by the Scope.
//
// The returned File may be closed early with [Scope.Release].
func (s *Scope) Create(prefix string) (*File, error) {
	f, err := s.dir.Create(prefix)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.live[f] = struct{}{}
	s.mu.Unlock()
	s.n.Add(1)
	return f, nil
}

// Release closes and removes a single file.
func (s *Scope) Release(f *File) error {
	s.mu.Lock()
	_, ok := s.live[f]
	delete(s.live, f)
	s.mu.Unlock()
	if ok {
		s.n.Add(-1)
	}
	return f.Close()
}

// Live reports the number of files created and not yet released.
func (s *Scope) Live() int64 { return s.n.Load() }

// Close releases every file still held by the Scope.
func (s *Scope) Close() error {
	s.mu.Lock()
	fs := make([]*File, 0, len(s.live))
	for f := range s.live {
		fs = append(fs, f)
	}
	clear(s.live)
	s.mu.Unlock()
	s.n.Store(0)
	var errs []error
	for _, f := range fs {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
