package index

import (
	"io"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/emberdb/ember/store"
	"github.com/emberdb/ember/wal"
)

// WriterConfig configures a Writer's storage, batching, and merge
// behavior.
type WriterConfig struct {
	Dir             store.Directory
	WALDir          string
	BatchSize       int
	FlushThreshold  int
	MaxSegmentSize  int64
	MergePolicy     MergePolicy
	WALSyncMode     wal.SyncMode
	ReaderCacheSize int
	Logger          *zap.Logger
}

// Writer is the single-writer ingestion path: WAL append, in-memory
// staging segment, snapshot publication, and background merge dispatch.
// At most one goroutine may be inside a Writer method that mutates state
// at a time — enforced by an internal mutex rather than assumed by the
// caller.
type Writer struct {
	mu  sync.Mutex
	cfg WriterConfig

	log     *wal.Log
	mvcc    *Controller
	seq     atomic.Uint64
	logger  *zap.Logger

	segments    []SegmentMeta
	deletions   *roaring.Bitmap
	staging     *SegmentWriter
	stagedCount int

	mergeMu      sync.Mutex
	mergeRunning bool
}

// NewWriter opens the WAL and starts a fresh staging segment.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.Named("writer")
	log, err := wal.Open(cfg.WALDir, cfg.WALSyncMode, cfg.Logger)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		cfg:       cfg,
		log:       log,
		mvcc:      NewController(100, 50),
		logger:    logger,
		deletions: roaring.New(),
	}
	if err := w.rollStagingLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) rollStagingLocked() error {
	sw, err := NewSegmentWriter(w.cfg.Dir, w.cfg.FlushThreshold, w.logger)
	if err != nil {
		return err
	}
	w.staging = sw
	w.stagedCount = 0
	return nil
}

func (w *Writer) nextSeq() uint64 { return w.seq.Inc() }

// Add appends an Add WAL entry, then folds the document into the staging
// segment, flushing if the batch threshold is reached.
func (w *Writer) Add(doc *Doc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := wal.Entry{
		Sequence:  w.nextSeq(),
		Op:        wal.OpAdd,
		Timestamp: time.Now().UnixNano(),
		DocID:     doc.ID,
		Payload:   encodeDoc(doc),
	}
	if err := w.log.Append(entry); err != nil {
		return errors.Wrap(err, "index: wal append failed, aborting add")
	}
	if err := w.staging.AddDoc(doc); err != nil {
		return err
	}
	w.stagedCount++
	if w.stagedCount >= w.cfg.BatchSize {
		return w.flushLocked()
	}
	return nil
}

// Delete marks docID removed: appends a Delete WAL entry, sets its bit in
// the deletion bitmap, and publishes a new snapshot over the same
// segment list with the updated bitmap.
func (w *Writer) Delete(docID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := wal.Entry{
		Sequence:  w.nextSeq(),
		Op:        wal.OpDelete,
		Timestamp: time.Now().UnixNano(),
		DocID:     docID,
	}
	if err := w.log.Append(entry); err != nil {
		return errors.Wrap(err, "index: wal append failed, aborting delete")
	}
	w.deletions.Add(uint32(docID))
	w.publishLocked()
	return nil
}

// Flush finalizes the staging segment (if non-empty) and publishes a new
// snapshot containing it, then dispatches a background merge if the
// policy selects candidates.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.stagedCount == 0 {
		return nil
	}
	meta, err := w.staging.Finalize()
	if err != nil {
		w.staging.Abort()
		if rerr := w.rollStagingLocked(); rerr != nil {
			w.logger.Error("failed to roll staging segment after finalize failure", zap.Error(rerr))
		}
		return errors.Wrap(err, "index: finalize segment")
	}
	w.segments = append(w.segments, meta)
	w.publishLocked()

	if err := w.rollStagingLocked(); err != nil {
		return err
	}

	candidates := w.cfg.MergePolicy.SelectCandidates(w.segments)
	if len(candidates) > 0 {
		w.dispatchMerge(candidates)
	}
	return nil
}

func (w *Writer) publishLocked() *Snapshot {
	var docCount uint64
	for _, s := range w.segments {
		docCount += uint64(s.DocCount)
	}
	return w.mvcc.CreateSnapshot(append([]SegmentMeta(nil), w.segments...), w.deletions.Clone(), docCount)
}

// Commit flushes then syncs the WAL, the durability boundary callers rely
// on before considering writes persisted.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	return w.log.Sync()
}

// Compact rewrites every segment that contains at least one deleted
// document into a fresh segment holding only its live documents, then
// publishes a snapshot over the rewritten segment set with an empty
// deletion bitmap.
func (w *Writer) Compact() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.deletions.IsEmpty() {
		return nil
	}

	var newSegments []SegmentMeta
	var toRemove []SegmentMeta
	for _, seg := range w.segments {
		if !segmentHasDeletions(seg, w.deletions) {
			newSegments = append(newSegments, seg)
			continue
		}
		rewritten, err := w.rewriteSegment(seg)
		if err != nil {
			return err
		}
		toRemove = append(toRemove, seg)
		if rewritten.DocCount > 0 {
			newSegments = append(newSegments, rewritten)
		}
	}

	w.segments = newSegments
	w.deletions = roaring.New()
	w.publishLocked()

	entry := wal.Entry{Sequence: w.nextSeq(), Op: wal.OpCommit, Timestamp: time.Now().UnixNano()}
	if err := w.log.Append(entry); err != nil {
		return errors.Wrap(err, "index: wal append commit marker")
	}
	if err := w.log.Sync(); err != nil {
		return err
	}

	for _, seg := range toRemove {
		_ = w.cfg.Dir.Remove(seg.SegFileName())
		_ = w.cfg.Dir.Remove(seg.IdxFileName())
	}
	return nil
}

func (w *Writer) rewriteSegment(seg SegmentMeta) (SegmentMeta, error) {
	reader, err := OpenSegmentReader(w.cfg.Dir, seg)
	if err != nil {
		return SegmentMeta{}, err
	}
	defer reader.Close()

	sw, err := NewSegmentWriter(w.cfg.Dir, w.cfg.FlushThreshold, w.logger)
	if err != nil {
		return SegmentMeta{}, err
	}
	it := reader.Iterator()
	for {
		doc, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sw.Abort()
			return SegmentMeta{}, err
		}
		if w.deletions.Contains(uint32(doc.ID)) {
			continue
		}
		if err := sw.AddDoc(doc); err != nil {
			sw.Abort()
			return SegmentMeta{}, err
		}
	}
	return sw.Finalize()
}

func segmentHasDeletions(seg SegmentMeta, deletions *roaring.Bitmap) bool {
	if deletions.IsEmpty() {
		return false
	}
	it := deletions.Iterator()
	it.AdvanceIfNeeded(uint32(seg.MinDocID))
	return it.HasNext() && it.PeekNext() <= uint32(seg.MaxDocID)
}

// Segments returns the currently published segment list (a copy).
func (w *Writer) Segments() []SegmentMeta {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]SegmentMeta(nil), w.segments...)
}

func (w *Writer) Controller() *Controller { return w.mvcc }

// Close flushes and closes the WAL. The staging segment, if non-empty,
// is left unfinalized; its WAL entries will be replayed on next open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.log.Close()
}

// dispatchMerge runs one merge in the background, skipping if a merge is
// already in flight (the next flush will re-offer candidates).
func (w *Writer) dispatchMerge(candidates []SegmentMeta) {
	w.mergeMu.Lock()
	if w.mergeRunning {
		w.mergeMu.Unlock()
		return
	}
	w.mergeRunning = true
	w.mergeMu.Unlock()

	go func() {
		defer func() {
			w.mergeMu.Lock()
			w.mergeRunning = false
			w.mergeMu.Unlock()
		}()
		if err := w.runMerge(candidates); err != nil {
			w.logger.Warn("background merge failed, original segments remain visible", zap.Error(err))
		}
	}()
}

// runMerge creates a new segment from the union of live documents across
// candidates, then atomically swaps them out in the published segment
// list. On any failure it logs and returns without mutating state — the
// original segments remain visible.
func (w *Writer) runMerge(candidates []SegmentMeta) error {
	byID := map[SegmentMeta]bool{}
	for _, c := range candidates {
		byID[c] = true
	}

	sw, err := NewSegmentWriter(w.cfg.Dir, w.cfg.FlushThreshold, w.logger)
	if err != nil {
		return err
	}

	w.mu.Lock()
	deletions := w.deletions.Clone()
	w.mu.Unlock()

	for _, seg := range candidates {
		reader, err := OpenSegmentReader(w.cfg.Dir, seg)
		if err != nil {
			sw.Abort()
			return err
		}
		it := reader.Iterator()
		for {
			doc, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				reader.Close()
				sw.Abort()
				return err
			}
			if deletions.Contains(uint32(doc.ID)) {
				continue
			}
			if err := sw.AddDoc(doc); err != nil {
				reader.Close()
				sw.Abort()
				return err
			}
		}
		reader.Close()
	}

	merged, err := sw.Finalize()
	if err != nil {
		return err
	}

	w.mu.Lock()
	var replaced []SegmentMeta
	for _, s := range w.segments {
		if !byID[s] {
			replaced = append(replaced, s)
		}
	}
	replaced = append(replaced, merged)
	w.segments = replaced
	w.publishLocked()
	w.mu.Unlock()

	for _, c := range candidates {
		_ = w.cfg.Dir.Remove(c.SegFileName())
		_ = w.cfg.Dir.Remove(c.IdxFileName())
	}
	w.logger.Info("merge completed", zap.Int("candidates", len(candidates)), zap.Uint32("merged_doc_count", merged.DocCount))
	return nil
}
