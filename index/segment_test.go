package index

import (
	"io"
	"testing"

	"go.uber.org/zap"

	"github.com/emberdb/ember/store"
)

func textDoc(id uint64, title string) *Doc {
	var tokens []Token
	pos := 0
	word := []byte{}
	flush := func() {
		if len(word) == 0 {
			return
		}
		tokens = append(tokens, Token{Term: append([]byte(nil), word...), Position: pos})
		pos++
		word = word[:0]
	}
	for i := 0; i < len(title); i++ {
		if title[i] == ' ' {
			flush()
			continue
		}
		word = append(word, title[i])
	}
	flush()
	return &Doc{
		ID: id,
		Fields: []FieldValue{
			{Name: "title", Kind: FieldText, Text: title, Tokens: tokens, Stored: true},
		},
	}
}

func buildTestSegment(t *testing.T, dir store.Directory, docs []*Doc) SegmentMeta {
	t.Helper()
	sw, err := NewSegmentWriter(dir, 0, zap.NewNop())
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
	return meta
}

func TestSegmentWriteReadRoundTrip(t *testing.T) {
	dir := store.NewMemDirectory()
	docs := []*Doc{
		textDoc(1, "hello world hello"),
		textDoc(2, "goodbye world"),
		textDoc(5, "hello again"),
	}
	meta := buildTestSegment(t, dir, docs)

	if meta.DocCount != 3 {
		t.Fatalf("DocCount = %d, want 3", meta.DocCount)
	}
	if meta.MinDocID != 1 || meta.MaxDocID != 5 {
		t.Fatalf("doc id range = [%d, %d], want [1, 5]", meta.MinDocID, meta.MaxDocID)
	}

	reader, err := OpenSegmentReader(dir, meta)
	if err != nil {
		t.Fatalf("OpenSegmentReader: %v", err)
	}
	defer reader.Close()

	if reader.DocCount() != 3 {
		t.Fatalf("reader.DocCount() = %d, want 3", reader.DocCount())
	}
	if err := reader.VerifyChecksum(); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}

	var seen []uint64
	it := reader.Iterator()
	for {
		doc, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Iterator.Next: %v", err)
		}
		seen = append(seen, doc.ID)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 5 {
		t.Fatalf("iterated ids = %v, want [1 2 5]", seen)
	}

	doc, err := reader.Get(2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if doc == nil || doc.Fields[0].Text != "goodbye world" {
		t.Fatalf("Get(2) = %+v", doc)
	}

	if missing, err := reader.Get(99); err != nil || missing != nil {
		t.Fatalf("Get(99) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestIdxReaderPostingsAndDictionary(t *testing.T) {
	dir := store.NewMemDirectory()
	docs := []*Doc{
		textDoc(1, "hello world hello"),
		textDoc(2, "goodbye world"),
		textDoc(5, "hello again"),
	}
	meta := buildTestSegment(t, dir, docs)

	idx, err := OpenIdxReader(dir, meta, 16)
	if err != nil {
		t.Fatalf("OpenIdxReader: %v", err)
	}
	defer idx.Close()

	if !idx.ContainsTerm("title", "hello") {
		t.Fatal("expected title/hello to exist")
	}
	if idx.ContainsTerm("title", "nonexistent") {
		t.Fatal("nonexistent term should not be found")
	}

	pl, ok, err := idx.GetPostings("title", "hello")
	if err != nil {
		t.Fatalf("GetPostings: %v", err)
	}
	if !ok {
		t.Fatal("expected postings for title/hello")
	}
	if pl.DocFreq() != 2 {
		t.Fatalf("DocFreq(hello) = %d, want 2 (docs 1 and 5)", pl.DocFreq())
	}
	p0, err := pl.At(0)
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	if p0.DocId != 1 || p0.TermFreq != 2 {
		t.Fatalf("posting 0 = %+v, want DocId 1, TermFreq 2", p0)
	}

	// "_all" should carry the same terms as every indexed text field.
	allPL, ok, err := idx.GetPostings("_all", "world")
	if err != nil {
		t.Fatalf("GetPostings(_all, world): %v", err)
	}
	if !ok || allPL.DocFreq() != 2 {
		t.Fatalf("_all/world postings = %v, docFreq should be 2", allPL)
	}

	dl, ok := idx.DocLength(1)
	if !ok || dl != 3 {
		t.Fatalf("DocLength(1) = (%d, %v), want (3, true)", dl, ok)
	}
	if avg := idx.AvgDocLength(); avg <= 0 {
		t.Fatalf("AvgDocLength = %v, want > 0", avg)
	}

	entry, ok := idx.Dictionary().Lookup("title\x00hello")
	if !ok {
		t.Fatal("expected dictionary entry for title\\x00hello")
	}
	if entry.DocFreq != 2 {
		t.Fatalf("entry.DocFreq = %d, want 2", entry.DocFreq)
	}
}

func TestSegmentFSDirectoryRoundTrip(t *testing.T) {
	dir, err := store.NewFSDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSDirectory: %v", err)
	}
	docs := []*Doc{textDoc(1, "alpha beta"), textDoc(2, "beta gamma")}
	meta := buildTestSegment(t, dir, docs)

	reader, err := OpenSegmentReader(dir, meta)
	if err != nil {
		t.Fatalf("OpenSegmentReader: %v", err)
	}
	defer reader.Close()
	if err := reader.VerifyChecksum(); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
}
