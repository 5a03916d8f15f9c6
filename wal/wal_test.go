package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndRecover(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, SyncImmediate, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	entries := []Entry{
		{Sequence: 1, Op: OpAdd, Timestamp: 100, DocID: 1, Payload: []byte("doc-1")},
		{Sequence: 2, Op: OpAdd, Timestamp: 200, DocID: 2, Payload: []byte("doc-2")},
		{Sequence: 3, Op: OpDelete, Timestamp: 300, DocID: 1},
	}
	for _, e := range entries {
		if err := log.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var recovered []Entry
	if err := Recover(dir, func(e Entry) error {
		recovered = append(recovered, e)
		return nil
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if len(recovered) != len(entries) {
		t.Fatalf("recovered %d entries, want %d", len(recovered), len(entries))
	}
	for i, want := range entries {
		got := recovered[i]
		if got.Sequence != want.Sequence || got.Op != want.Op || got.DocID != want.DocID || string(got.Payload) != string(want.Payload) {
			t.Fatalf("entry %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestSyncModesDoNotLoseData(t *testing.T) {
	for _, mode := range []SyncMode{SyncImmediate, SyncBatch, SyncNone} {
		dir := t.TempDir()
		log, err := Open(dir, mode, nil)
		if err != nil {
			t.Fatalf("Open(%v): %v", mode, err)
		}
		if err := log.Append(Entry{Sequence: 1, Op: OpAdd, DocID: 7, Payload: []byte("x")}); err != nil {
			t.Fatalf("Append(%v): %v", mode, err)
		}
		if err := log.Close(); err != nil {
			t.Fatalf("Close(%v): %v", mode, err)
		}

		var count int
		if err := Recover(dir, func(Entry) error { count++; return nil }); err != nil {
			t.Fatalf("Recover(%v): %v", mode, err)
		}
		if count != 1 {
			t.Fatalf("mode %v: recovered %d entries, want 1", mode, count)
		}
	}
}

func TestRotateStartsNewFile(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, SyncImmediate, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Append(Entry{Sequence: 1, Op: OpAdd, DocID: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	firstSeq, err := log.Rotate()
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if err := log.Append(Entry{Sequence: 2, Op: OpAdd, DocID: 2}); err != nil {
		t.Fatalf("Append after rotate: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	seqs, err := listSequences(dir)
	if err != nil {
		t.Fatalf("listSequences: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("expected 2 log files after rotate, got %d (%v)", len(seqs), seqs)
	}
	if seqs[1] != firstSeq {
		t.Fatalf("rotate returned seq %d, directory has %v", firstSeq, seqs)
	}

	var docIDs []uint64
	if err := Recover(dir, func(e Entry) error {
		docIDs = append(docIDs, e.DocID)
		return nil
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(docIDs) != 2 || docIDs[0] != 1 || docIDs[1] != 2 {
		t.Fatalf("recovered doc ids = %v, want [1 2]", docIDs)
	}
}

func TestRecoverTruncatesOnPartialTrailingEntry(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, SyncImmediate, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Append(Entry{Sequence: 1, Op: OpAdd, DocID: 1, Payload: []byte("full")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a crash mid-write of a second entry by appending a
	// truncated length-prefixed record directly.
	path := filepath.Join(dir, "wal_00000000.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log file for corruption: %v", err)
	}
	if _, err := f.Write([]byte{50, 0, 0, 0, 'o', 'n', 'l', 'y'}); err != nil {
		t.Fatalf("write partial entry: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var count int
	if err := Recover(dir, func(Entry) error { count++; return nil }); err != nil {
		t.Fatalf("Recover should tolerate a truncated trailing entry: %v", err)
	}
	if count != 1 {
		t.Fatalf("recovered %d entries, want 1 (the partial trailing entry should be skipped)", count)
	}
}

func TestDiscardConsumedKeepsCurrentFile(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, SyncImmediate, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Append(Entry{Sequence: 1, Op: OpAdd, DocID: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := log.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if err := log.DiscardConsumed(); err != nil {
		t.Fatalf("DiscardConsumed: %v", err)
	}

	seqs, err := listSequences(dir)
	if err != nil {
		t.Fatalf("listSequences: %v", err)
	}
	if len(seqs) != 1 {
		t.Fatalf("expected only the current log file to remain, got %v", seqs)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
