//go:build !linux

package spool

import "os"

// OsCreate creates the file.
//
// The generic implementation creates a named file that's removed on Close.
func osCreate(root *os.Root, name string) (*os.File, bool, error) {
	f, err := root.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	return f, false, err
}
