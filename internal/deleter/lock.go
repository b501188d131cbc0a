package deleter

import (
	"fmt"

	"github.com/gofrs/flock"
)

// AcquireRunLock takes an exclusive file lock for the duration of a deletion
// run. Two deleters sharing one audit table would interleave batch ranges
// and corrupt resume positions; within-table ordering is only guaranteed
// for a single process.
func AcquireRunLock(path string) (release func(), err error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another sweeper run holds the lock at %s", path)
	}
	return func() { _ = lock.Unlock() }, nil
}
