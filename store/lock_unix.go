//go:build !windows

package store

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type fileLock struct {
	f *os.File
}

// LockDirectory takes an advisory exclusive flock() on <path>/.lock,
// failing fast (EWOULDBLOCK) rather than blocking if another process (or
// another Engine in this process) already holds it — mirrors bluge's
// directory lock contract of "at most one writer".
func LockDirectory(path string) (Lock, error) {
	f, err := os.OpenFile(path+string(os.PathSeparator)+lockFileName, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "store: open lock file")
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "store: directory already locked")
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) Release() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return errors.Wrap(err, "store: unlock")
	}
	return l.f.Close()
}
