package store

import "testing"

func TestLockDirectoryExclusive(t *testing.T) {
	dir := t.TempDir()

	l1, err := LockDirectory(dir)
	if err != nil {
		t.Fatalf("first LockDirectory: %v", err)
	}

	if _, err := LockDirectory(dir); err == nil {
		t.Fatal("second LockDirectory on the same path should fail while held")
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := LockDirectory(dir)
	if err != nil {
		t.Fatalf("LockDirectory after release: %v", err)
	}
	if err := l2.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
