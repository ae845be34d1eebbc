// pattern: Imperative Shell
package instance

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = "crewhub.lock"

// Lock acquires an exclusive file lock for single-instance enforcement.
// Only one dashboard should hold the event stream at a time; a second copy
// would double every subscription. Returns the flock handle (caller must
// defer Unlock) or an error if another instance already holds the lock.
func Lock(dataDir string) (*flock.Flock, error) {
	lockPath := filepath.Join(dataDir, lockFileName)
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another crewhub instance is already running")
	}
	return fl, nil
}
