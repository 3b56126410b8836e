package spool

import (
	"os"

	"golang.org/x/sys/unix"
)

// OsCreate creates the file.
//
// The Linux implementation uses O_TMPFILE when the filesystem supports it, so
// the file never has a name and the kernel reclaims it on the last close. The
// returned bool reports whether that happened.
func osCreate(root *os.Root, name string) (*os.File, bool, error) {
	f, err := root.OpenFile(".", os.O_RDWR|unix.O_TMPFILE, 0o600)
	if err == nil {
		return f, true, nil
	}
	f, err = root.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	return f, false, err
}
