// Package test provides helpers shared by the package test suites.
package test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// TmpFile returns the path of a fresh database file for one test.
// The file lives in the test's temporary directory and is cleaned up
// with it.
func TmpFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), uuid.New().String()+".sqlite")
}
