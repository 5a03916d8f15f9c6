package index

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/emberdb/ember/store"
)

// segmentReaderKey memoizes a per-segment reader pair by the snapshot
// version it was opened under and the segment's identity, so repeated
// acquires of the same version reuse its readers. A segment shared by
// two versions is opened once per version.
type segmentReaderKey struct {
	version   uint64
	segmentID string
}

type pooledSegment struct {
	seg *SegmentReader
	idx *IdxReader
}

// ReaderPool memoizes per-(version, segment) readers and evicts the
// oldest half by version once the configured maximum is exceeded.
type ReaderPool struct {
	mu         sync.Mutex
	dir        store.Directory
	controller *Controller
	cacheSize  int
	logger     *zap.Logger

	bySegment map[segmentReaderKey]*pooledSegment
	versions  map[uint64]bool // set of versions currently memoized, for eviction
	maxPooled int
}

func NewReaderPool(dir store.Directory, controller *Controller, cacheSize, maxPooled int, logger *zap.Logger) *ReaderPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReaderPool{
		dir:        dir,
		controller: controller,
		cacheSize:  cacheSize,
		logger:     logger.Named("reader_pool"),
		bySegment:  map[segmentReaderKey]*pooledSegment{},
		versions:   map[uint64]bool{},
		maxPooled:  maxPooled,
	}
}

// SnapshotReader bundles a snapshot with the segment/idx readers the
// executor needs to evaluate a query over it. Segments that fail to open
// (empty, missing file) are silently skipped, per the pooling contract.
type SnapshotReader struct {
	Snapshot *Snapshot
	Segments []SegmentReaderPair
}

type SegmentReaderPair struct {
	Meta SegmentMeta
	Seg  *SegmentReader
	Idx  *IdxReader
}

// Acquire returns a SnapshotReader for the current snapshot, opening and
// memoizing any segment readers not already cached for this version.
// Callers must call Release when done with the snapshot.
func (p *ReaderPool) Acquire() *SnapshotReader {
	snap := p.controller.CurrentSnapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions[snap.Version] = true

	var pairs []SegmentReaderPair
	for _, meta := range snap.Segments {
		if meta.IsEmpty() {
			continue
		}
		key := segmentReaderKey{version: snap.Version, segmentID: meta.ID.String()}
		ps, ok := p.bySegment[key]
		if !ok {
			seg, err := OpenSegmentReader(p.dir, meta)
			if err != nil {
				p.logger.Warn("skipping segment reader that failed to open", zap.String("segment", meta.ID.String()), zap.Error(err))
				continue
			}
			idx, err := OpenIdxReader(p.dir, meta, p.cacheSize)
			if err != nil {
				seg.Close()
				p.logger.Warn("skipping idx reader that failed to open", zap.String("segment", meta.ID.String()), zap.Error(err))
				continue
			}
			ps = &pooledSegment{seg: seg, idx: idx}
			p.bySegment[key] = ps
		}
		pairs = append(pairs, SegmentReaderPair{Meta: meta, Seg: ps.seg, Idx: ps.idx})
	}

	p.evictLocked()
	return &SnapshotReader{Snapshot: snap, Segments: pairs}
}

// Release drops the caller's reference on the snapshot. The underlying
// segment readers stay memoized until evicted by Acquire's bookkeeping.
func (p *ReaderPool) Release(r *SnapshotReader) {
	if r == nil {
		return
	}
	r.Snapshot.Release()
}

// evictLocked drops the oldest half (by version) of memoized versions
// once the pool exceeds maxPooled, closing their per-segment readers.
func (p *ReaderPool) evictLocked() {
	if p.maxPooled <= 0 || len(p.versions) <= p.maxPooled {
		return
	}
	versions := make([]uint64, 0, len(p.versions))
	for v := range p.versions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	evictCount := len(versions) / 2
	evictSet := map[uint64]bool{}
	for _, v := range versions[:evictCount] {
		evictSet[v] = true
		delete(p.versions, v)
	}
	for key, ps := range p.bySegment {
		if evictSet[key.version] {
			ps.seg.Close()
			ps.idx.Close()
			delete(p.bySegment, key)
		}
	}
}

// Close releases every memoized reader, used on engine shutdown.
func (p *ReaderPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, ps := range p.bySegment {
		ps.seg.Close()
		ps.idx.Close()
		delete(p.bySegment, key)
	}
}
