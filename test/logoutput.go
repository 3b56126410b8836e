package test

import (
	"io"
	"testing"
)

// LogOutput returns the writer test logs are sent to.
func logOutput(t testing.TB) io.Writer {
	return t.Output()
}
