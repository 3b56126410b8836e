// Package dbstat detects changes to a database directory.
package dbstat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/quay/scancore"
)

// Extensions of the files that make up a database directory.
var extensions = []string{".cvd", ".db", ".hdb", ".fp", ".ndb"}

// IsDatabaseFile reports whether the name has a database file extension.
func IsDatabaseFile(name string) bool {
	return slices.Contains(extensions, strings.ToLower(filepath.Ext(name)))
}

type entry struct {
	ModTime time.Time
	Size    int64
	Mode    fs.FileMode
}

// Stat is a snapshot of a database directory.
type Stat struct {
	entries map[string]entry
	dir     string
	closed  bool
}

// Init takes a snapshot of the database files in "dir".
func Init(dir string) (*Stat, error) {
	es, err := snapshot(dir)
	if err != nil {
		return nil, err
	}
	return &Stat{dir: dir, entries: es}, nil
}

func snapshot(dir string) (map[string]entry, error) {
	const op = `dbstat.snapshot`
	ents, err := os.ReadDir(dir)
	if err != nil {
		code := scancore.EOpen
		if errors.Is(err, fs.ErrPermission) {
			code = scancore.EAccess
		}
		return nil, &scancore.Error{Op: op, Code: code, Inner: err}
	}
	out := make(map[string]entry, len(ents))
	for _, e := range ents {
		if e.IsDir() || !IsDatabaseFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, fs.ErrNotExist):
			// Raced with a removal.
			continue
		default:
			return nil, &scancore.Error{Op: op, Code: scancore.EIO, Inner: err}
		}
		out[e.Name()] = entry{
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
			Mode:    fi.Mode(),
		}
	}
	return out, nil
}

// Dir reports the directory the snapshot is of.
func (s *Stat) Dir() string { return s.dir }

// Files reports the names in the snapshot, sorted.
func (s *Stat) Files() []string {
	out := make([]string, 0, len(s.entries))
	for n := range s.entries {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Changed reports whether the directory differs from the snapshot: a database
// file was added or removed, or changed size, mode, or modification time.
func (s *Stat) Changed() (bool, error) {
	if s == nil || s.closed {
		return false, &scancore.Error{Op: `dbstat.Changed`, Code: scancore.ENullArg}
	}
	cur, err := snapshot(s.dir)
	if err != nil {
		return false, err
	}
	return !equal(s.entries, cur), nil
}

func equal(a, b map[string]entry) bool {
	if len(a) != len(b) {
		return false
	}
	for n, e := range a {
		o, ok := b[n]
		if !ok || o.Size != e.Size || o.Mode != e.Mode || !o.ModTime.Equal(e.ModTime) {
			return false
		}
	}
	return true
}

// Reset replaces the snapshot with the directory's current state.
func (s *Stat) Reset() error {
	if s == nil || s.closed {
		return &scancore.Error{Op: `dbstat.Reset`, Code: scancore.ENullArg}
	}
	cur, err := snapshot(s.dir)
	if err != nil {
		return err
	}
	s.entries = cur
	return nil
}

// Close releases the snapshot. Using the Stat after Close reports
// [scancore.ENullArg].
func (s *Stat) Close() error {
	if s == nil || s.closed {
		return &scancore.Error{Op: `dbstat.Close`, Code: scancore.ENullArg}
	}
	s.closed = true
	s.entries = nil
	return nil
}

func (s *Stat) String() string {
	return fmt.Sprintf("dbstat(%s, %d files)", s.dir, len(s.entries))
}
