// Package guard forces test mode for any test binary that imports it, so
// entrypoints never start real runtimes under test.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("OPENSHELF_TEST_MODE") == "" {
			_ = os.Setenv("OPENSHELF_TEST_MODE", "1")
		}
	})
}
