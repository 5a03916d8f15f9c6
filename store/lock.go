package store

// lockFileName is the name of the advisory lock file created inside the
// storage directory; shared by lock_unix.go and lock_windows.go.
const lockFileName = ".lock"

// Lock is an advisory, exclusive, process-wide lock obtained over a
// directory's lock file. Release unlocks and closes the underlying file
// descriptor. Implementations live in lock_unix.go / lock_windows.go,
// split by build tag the way a directory lock needs platform-specific
// syscalls (flock vs LockFileEx).
type Lock interface {
	Release() error
}
