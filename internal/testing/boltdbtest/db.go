// Package boltdbtest provides temporary BoltDB files for tests.
package boltdbtest

import (
	"os"
	"path/filepath"
	"sync"
)

// TempFile returns the name of a file that does not yet exist, suitable for
// use as a BoltDB database.
//
// The returned function removes the file, along with the temporary directory
// that contains it. It is safe to call more than once.
func TempFile() (string, func()) {
	dir, err := os.MkdirTemp("", "boltdbtest-")
	if err != nil {
		panic(err)
	}

	var once sync.Once
	return filepath.Join(dir, "events.boltdb"), func() {
		once.Do(func() {
			os.RemoveAll(dir)
		})
	}
}
