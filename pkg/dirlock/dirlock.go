// Package dirlock guards an Ignite data directory against being opened by
// more than one process at a time: a second process racing the same
// append-only log would corrupt both the log and the index, which no
// amount of in-process locking can prevent.
package dirlock

import (
	"github.com/gofrs/flock"

	"github.com/caskdb/caskdb/pkg/errors"
)

const lockFileName = ".lock"

// Lock wraps a held directory lock. Release releases it.
type Lock struct {
	f *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock on dir/.lock. It returns an
// IoError if the directory is already locked by another process or if the
// lock file cannot be created.
func Acquire(dir string) (*Lock, error) {
	path := dir + "/" + lockFileName
	f := flock.New(path)

	locked, err := f.TryLock()
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to acquire data directory lock").
			WithPath(path)
	}
	if !locked {
		return nil, errors.NewStorageError(nil, errors.ErrorCodeIO, "data directory is already open by another process").
			WithPath(path)
	}

	return &Lock{f: f}, nil
}

// Release unlocks and closes the underlying lock file handle.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Unlock()
}
