package index

import (
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// IsolationLevel is the closed set of transaction isolation guarantees a
// Txn may request.
type IsolationLevel uint8

const (
	ReadCommitted IsolationLevel = iota
	RepeatableRead
	Serializable
)

// ErrSerializationConflict is returned by Txn.Validate when a Serializable
// transaction's read set was produced from a snapshot version that is no
// longer current.
var ErrSerializationConflict = errors.New("index: serialization conflict, read set stale")

// Snapshot is an immutable, versioned view over a segment list and a
// deletion bitmap. Snapshots are reference-counted: the reader pool and
// any in-flight Txn hold a reference via Acquire, and release it via
// Release when done; the MVCC controller only reclaims a snapshot once
// its refcount is zero and GC eligibility is met.
type Snapshot struct {
	Version   uint64
	Segments  []SegmentMeta
	Deletions *roaring.Bitmap
	DocCount  uint64
	Timestamp time.Time

	refs atomic.Int32
}

func (s *Snapshot) Acquire() { s.refs.Inc() }
func (s *Snapshot) Release() { s.refs.Dec() }
func (s *Snapshot) refCount() int32 { return s.refs.Load() }

func (s *Snapshot) IsDeleted(docID uint64) bool {
	return s.Deletions != nil && s.Deletions.Contains(uint32(docID))
}

// Controller is the MVCC state machine: a monotonic version counter, a
// sorted map from version to snapshot, and the set of versions still
// referenced by in-flight transactions (the GC floor).
type Controller struct {
	mu               sync.RWMutex
	version          atomic.Uint64
	snapshots        map[uint64]*Snapshot
	activeMinVersion map[uint64]uint64 // txn id -> snapshot version it started from
	nextTxnID        uint64

	maxSnapshotVersions int
	minSnapshotVersions int
}

func NewController(maxSnapshotVersions, minSnapshotVersions int) *Controller {
	c := &Controller{
		snapshots:           map[uint64]*Snapshot{},
		activeMinVersion:    map[uint64]uint64{},
		maxSnapshotVersions: maxSnapshotVersions,
		minSnapshotVersions: minSnapshotVersions,
	}
	initial := &Snapshot{Version: 0, Deletions: roaring.New(), Timestamp: time.Now()}
	c.snapshots[0] = initial
	return c
}

// CurrentSnapshot returns the latest published snapshot with an acquired
// reference; callers must Release it when done.
func (c *Controller) CurrentSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.snapshots[c.version.Load()]
	snap.Acquire()
	return snap
}

func (c *Controller) CurrentVersion() uint64 { return c.version.Load() }

// CreateSnapshot allocates the next version, publishes a new snapshot
// over the given segments and deletion bitmap, then garbage-collects
// eligible old snapshots.
func (c *Controller) CreateSnapshot(segments []SegmentMeta, deletions *roaring.Bitmap, docCount uint64) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.version.Add(1)
	snap := &Snapshot{
		Version:   v,
		Segments:  segments,
		Deletions: deletions,
		DocCount:  docCount,
		Timestamp: time.Now(),
	}
	c.snapshots[v] = snap
	c.gcLocked()
	return snap
}

func (c *Controller) gcLocked() {
	if len(c.snapshots) <= c.minSnapshotVersions {
		return
	}
	floor := c.minActiveVersionLocked()
	current := c.version.Load()

	versions := make([]uint64, 0, len(c.snapshots))
	for v := range c.snapshots {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	for _, v := range versions {
		if len(c.snapshots) <= c.minSnapshotVersions {
			return
		}
		if v == current {
			continue
		}
		snap := c.snapshots[v]
		belowFloor := v < floor
		overCap := len(c.snapshots) > c.maxSnapshotVersions
		if (belowFloor || overCap) && snap.refCount() == 0 {
			delete(c.snapshots, v)
		}
	}
}

func (c *Controller) minActiveVersionLocked() uint64 {
	min := c.version.Load()
	for _, v := range c.activeMinVersion {
		if v < min {
			min = v
		}
	}
	return min
}

// BeginTxn registers a transaction starting from the current snapshot
// version, so GC won't reclaim snapshots it might still read from.
func (c *Controller) BeginTxn() (txnID uint64, startVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTxnID++
	txnID = c.nextTxnID
	startVersion = c.version.Load()
	c.activeMinVersion[txnID] = startVersion
	return txnID, startVersion
}

// EndTxn unregisters a transaction, allowing its start snapshot to become
// GC-eligible again.
func (c *Controller) EndTxn(txnID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activeMinVersion, txnID)
}

// Txn tracks one transaction's isolation level and (for Serializable) the
// set of document ids it has read, to validate at commit time.
type Txn struct {
	ID             uint64
	Isolation      IsolationLevel
	StartVersion   uint64
	controller     *Controller
	readDocIDs     map[uint64]struct{}
}

func (c *Controller) NewTxn(isolation IsolationLevel) *Txn {
	id, startVersion := c.BeginTxn()
	return &Txn{
		ID:           id,
		Isolation:    isolation,
		StartVersion: startVersion,
		controller:   c,
		readDocIDs:   map[uint64]struct{}{},
	}
}

// RecordRead notes that docID was read as part of this transaction's
// result set; only meaningful under Serializable.
func (t *Txn) RecordRead(docID uint64) {
	if t.Isolation == Serializable {
		t.readDocIDs[docID] = struct{}{}
	}
}

// Validate checks Serializable's read-set invariant: every doc id read
// must still come from the current snapshot version. ReadCommitted and
// RepeatableRead always validate successfully — a reader sees exactly
// one snapshot for its lifetime by construction (it was handed the
// snapshot at StartVersion and never advances).
func (t *Txn) Validate() error {
	if t.Isolation != Serializable {
		return nil
	}
	if len(t.readDocIDs) == 0 {
		return nil
	}
	if t.controller.CurrentVersion() != t.StartVersion {
		return ErrSerializationConflict
	}
	return nil
}

// Finish ends the transaction's registration with the controller,
// regardless of commit outcome.
func (t *Txn) Finish() {
	t.controller.EndTxn(t.ID)
}
