package index

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/emberdb/ember/store"
)

func TestReaderPoolAcquireOpensSegmentsForCurrentSnapshot(t *testing.T) {
	dir := store.NewMemDirectory()
	meta := buildTestSegment(t, dir, []*Doc{textDoc(1, "hello"), textDoc(2, "world")})

	c := NewController(100, 50)
	c.CreateSnapshot([]SegmentMeta{meta}, roaring.New(), 2)

	pool := NewReaderPool(dir, c, 16, 100, zap.NewNop())
	defer pool.Close()

	r := pool.Acquire()
	defer pool.Release(r)

	if len(r.Segments) != 1 {
		t.Fatalf("Segments = %d, want 1", len(r.Segments))
	}
	if r.Segments[0].Meta.ID != meta.ID {
		t.Fatalf("acquired segment id = %v, want %v", r.Segments[0].Meta.ID, meta.ID)
	}
}

func TestReaderPoolMemoizesReadersWithinSameVersion(t *testing.T) {
	dir := store.NewMemDirectory()
	meta := buildTestSegment(t, dir, []*Doc{textDoc(1, "hello")})

	c := NewController(100, 50)
	c.CreateSnapshot([]SegmentMeta{meta}, roaring.New(), 1)

	pool := NewReaderPool(dir, c, 16, 100, zap.NewNop())
	defer pool.Close()

	r1 := pool.Acquire()
	r2 := pool.Acquire()
	defer pool.Release(r1)
	defer pool.Release(r2)

	if r1.Segments[0].Seg != r2.Segments[0].Seg {
		t.Fatal("two Acquire calls against the same published version should reuse the same segment reader")
	}
	if r1.Segments[0].Idx != r2.Segments[0].Idx {
		t.Fatal("two Acquire calls against the same published version should reuse the same idx reader")
	}
}

func TestReaderPoolSkipsSegmentsThatFailToOpen(t *testing.T) {
	dir := store.NewMemDirectory()
	good := buildTestSegment(t, dir, []*Doc{textDoc(1, "hello")})
	id, _ := newSegmentID()
	broken := SegmentMeta{ID: id, DocCount: 1, MinDocID: 10, MaxDocID: 10, ByteSize: 123}

	c := NewController(100, 50)
	c.CreateSnapshot([]SegmentMeta{good, broken}, roaring.New(), 2)

	pool := NewReaderPool(dir, c, 16, 100, zap.NewNop())
	defer pool.Close()

	r := pool.Acquire()
	defer pool.Release(r)

	if len(r.Segments) != 1 {
		t.Fatalf("Segments = %d, want 1 (the broken one should be skipped silently)", len(r.Segments))
	}
	if r.Segments[0].Meta.ID != good.ID {
		t.Fatalf("surviving segment id = %v, want %v", r.Segments[0].Meta.ID, good.ID)
	}
}

func TestReaderPoolEvictsOldestHalfOfVersions(t *testing.T) {
	dir := store.NewMemDirectory()
	c := NewController(1000, 1)
	pool := NewReaderPool(dir, c, 16, 2, zap.NewNop())
	defer pool.Close()

	var metas []SegmentMeta
	for i := uint64(1); i <= 4; i++ {
		m := buildTestSegment(t, dir, []*Doc{textDoc(i, "term")})
		metas = append(metas, m)
		c.CreateSnapshot([]SegmentMeta{m}, roaring.New(), 1)
		r := pool.Acquire()
		pool.Release(r)
	}

	pool.mu.Lock()
	pooledCount := len(pool.versions)
	pool.mu.Unlock()
	if pooledCount > 2 {
		t.Fatalf("pooled version count = %d, want <= maxPooled (2)", pooledCount)
	}
}
