package search

import (
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/emberdb/ember/index"
	"github.com/emberdb/ember/query"
	"github.com/emberdb/ember/store"
)

func buildExecutorSegment(t *testing.T, docs []*index.Doc) index.SegmentReaderPair {
	t.Helper()
	dir := store.NewMemDirectory()
	sw, err := index.NewSegmentWriter(dir, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSegmentWriter: %v", err)
	}
	for _, d := range docs {
		if err := sw.AddDoc(d); err != nil {
			t.Fatalf("AddDoc: %v", err)
		}
	}
	meta, err := sw.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	seg, err := index.OpenSegmentReader(dir, meta)
	if err != nil {
		t.Fatalf("OpenSegmentReader: %v", err)
	}
	idx, err := index.OpenIdxReader(dir, meta, 16)
	if err != nil {
		t.Fatalf("OpenIdxReader: %v", err)
	}
	return index.SegmentReaderPair{Meta: meta, Seg: seg, Idx: idx}
}

func tokDoc(id uint64, field string, terms ...string) *index.Doc {
	var tokens []index.Token
	for i, term := range terms {
		tokens = append(tokens, index.Token{Term: []byte(term), Position: i})
	}
	return &index.Doc{ID: id, Fields: []index.FieldValue{{Name: field, Kind: index.FieldText, Text: strings.Join(terms, " "), Tokens: tokens, Stored: true}}}
}

func TestExecuteReturnsMatchingHitsSortedByScore(t *testing.T) {
	// All three docs share the same doc length (3 tokens) so the BM25
	// length-normalization term cancels out, leaving term frequency as the
	// only thing that can separate doc 1 (two occurrences of "alpha") from
	// doc 2 (one occurrence).
	docs := []*index.Doc{
		tokDoc(1, "title", "alpha", "alpha", "filler"),
		tokDoc(2, "title", "alpha", "filler", "other"),
		tokDoc(3, "title", "beta", "filler", "other"),
	}
	pair := buildExecutorSegment(t, docs)
	r := &index.SnapshotReader{
		Snapshot: &index.Snapshot{DocCount: 3, Deletions: nil},
		Segments: []index.SegmentReaderPair{pair},
	}

	res, err := Execute(r, query.NewTerm("title", "alpha"), Options{Limit: 10, ScoreKind: ScoreBM25})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalCandidates != 2 {
		t.Fatalf("TotalCandidates = %d, want 2", res.TotalCandidates)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("Hits = %d, want 2", len(res.Hits))
	}
	if res.Hits[0].DocID != 1 {
		t.Fatalf("top hit = %d, want doc 1 (two occurrences of alpha)", res.Hits[0].DocID)
	}
	for i := 1; i < len(res.Hits); i++ {
		if res.Hits[i].Score > res.Hits[i-1].Score {
			t.Fatal("hits should be sorted by score descending")
		}
	}
}

func TestExecuteSkipsDeletedDocs(t *testing.T) {
	docs := []*index.Doc{tokDoc(1, "title", "alpha"), tokDoc(2, "title", "alpha")}
	pair := buildExecutorSegment(t, docs)

	del := roaring.New()
	del.Add(2)
	r := &index.SnapshotReader{
		Snapshot: &index.Snapshot{DocCount: 2, Deletions: del},
		Segments: []index.SegmentReaderPair{pair},
	}

	res, err := Execute(r, query.NewTerm("title", "alpha"), Options{Limit: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalCandidates != 1 {
		t.Fatalf("TotalCandidates = %d, want 1 (doc 2 is deleted)", res.TotalCandidates)
	}
	if res.Hits[0].DocID != 1 {
		t.Fatalf("surviving hit = %d, want 1", res.Hits[0].DocID)
	}
}

func TestExecuteAppliesLimitAndOffset(t *testing.T) {
	var docs []*index.Doc
	for i := uint64(1); i <= 5; i++ {
		docs = append(docs, tokDoc(i, "title", "alpha"))
	}
	pair := buildExecutorSegment(t, docs)
	r := &index.SnapshotReader{Snapshot: &index.Snapshot{DocCount: 5}, Segments: []index.SegmentReaderPair{pair}}

	res, err := Execute(r, query.NewTerm("title", "alpha"), Options{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("Hits = %d, want 2", len(res.Hits))
	}
}

func TestExecuteValidateRejectsExcessiveDepth(t *testing.T) {
	q := query.NewBool().AddMust(query.NewBool().AddMust(query.NewBool().AddMust(query.NewTerm("a", "b"))))
	r := &index.SnapshotReader{Snapshot: &index.Snapshot{}}

	_, err := Execute(r, q, Options{Limit: 10, Validate: true, MaxDepth: 1})
	if err == nil {
		t.Fatal("expected a validation error for a query exceeding max depth")
	}
}

func TestExecuteValidateBansLeadingWildcard(t *testing.T) {
	r := &index.SnapshotReader{Snapshot: &index.Snapshot{}}
	_, err := Execute(r, query.NewWildcard("title", "*foo"), Options{Limit: 10, Validate: true, BanLeadingWildcard: true})
	if err == nil {
		t.Fatal("expected leading wildcard to be rejected when BanLeadingWildcard is set")
	}
}
