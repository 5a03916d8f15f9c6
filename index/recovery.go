package index

import (
	"github.com/emberdb/ember/wal"
)

// Recover replays every WAL entry in walDir directly into w's staging
// segment and deletion bitmap, bypassing WAL append (the entries being
// replayed are themselves the log). ember.Open follows a successful
// Recover with Commit; the log files are left in place, and segments
// written by earlier runs are not reloaded, so the log is what a later
// Open replays.
func Recover(w *Writer, walDir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return wal.Recover(walDir, func(e wal.Entry) error {
		switch e.Op {
		case wal.OpAdd, wal.OpUpdate:
			doc, err := decodeDoc(e.Payload)
			if err != nil {
				return err
			}
			if err := w.staging.AddDoc(doc); err != nil {
				return err
			}
			w.stagedCount++
			if e.Sequence > w.seq.Load() {
				w.seq.Store(e.Sequence)
			}
			return nil
		case wal.OpDelete:
			w.deletions.Add(uint32(e.DocID))
			if e.Sequence > w.seq.Load() {
				w.seq.Store(e.Sequence)
			}
			return nil
		case wal.OpCommit:
			return nil
		}
		return nil
	})
}
