//go:build windows

package store

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

type fileLock struct {
	f *os.File
}

// LockDirectory takes an advisory exclusive LockFileEx on <path>\.lock,
// the Windows counterpart to flock used on other platforms.
func LockDirectory(path string) (Lock, error) {
	f, err := os.OpenFile(path+string(os.PathSeparator)+lockFileName, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "store: open lock file")
	}
	ol := new(windows.Overlapped)
	err = windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, ol)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "store: directory already locked")
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) Release() error {
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, ol); err != nil {
		l.f.Close()
		return errors.Wrap(err, "store: unlock")
	}
	return l.f.Close()
}
