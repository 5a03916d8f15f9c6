package index

import (
	"reflect"
	"testing"
)

func samplePostings() []Posting {
	return []Posting{
		{DocId: 1, TermFreq: 2, Positions: []uint32{0, 5}, Norm: 1.0},
		{DocId: 3, TermFreq: 1, Positions: []uint32{2}, Norm: 0.5},
		{DocId: 9, TermFreq: 3, Positions: []uint32{0, 1, 2}, Norm: 0.25},
	}
}

func TestPostingListRoundTrip(t *testing.T) {
	pl, err := NewPostingListFromSorted(samplePostings())
	if err != nil {
		t.Fatalf("NewPostingListFromSorted: %v", err)
	}
	if pl.DocFreq() != 3 {
		t.Fatalf("DocFreq = %d, want 3", pl.DocFreq())
	}
	if pl.TotalFreq() != 6 {
		t.Fatalf("TotalFreq = %d, want 6", pl.TotalFreq())
	}

	ids, err := pl.DecodeDocIDs()
	if err != nil {
		t.Fatalf("DecodeDocIDs: %v", err)
	}
	want := []uint64{1, 3, 9}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("DecodeDocIDs = %v, want %v", ids, want)
	}

	p, err := pl.At(1)
	if err != nil {
		t.Fatalf("At(1): %v", err)
	}
	if p.DocId != 3 || p.TermFreq != 1 || !reflect.DeepEqual(p.Positions, []uint32{2}) {
		t.Fatalf("At(1) = %+v, want DocId 3", p)
	}

	idx, ok := pl.Find(9)
	if !ok || idx != 2 {
		t.Fatalf("Find(9) = (%d, %v), want (2, true)", idx, ok)
	}
	if _, ok := pl.Find(4); ok {
		t.Fatalf("Find(4) should miss")
	}
}

func TestPostingListMarshalRoundTrip(t *testing.T) {
	pl, err := NewPostingListFromSorted(samplePostings())
	if err != nil {
		t.Fatalf("NewPostingListFromSorted: %v", err)
	}
	buf := pl.Marshal()

	decoded, err := UnmarshalPostingList(buf)
	if err != nil {
		t.Fatalf("UnmarshalPostingList: %v", err)
	}
	if decoded.DocFreq() != pl.DocFreq() {
		t.Fatalf("DocFreq mismatch after round trip")
	}
	for i := 0; i < pl.DocFreq(); i++ {
		want, err := pl.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		got, err := decoded.At(i)
		if err != nil {
			t.Fatalf("decoded.At(%d): %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("posting %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestNewPostingListFromSortedRejectsUnsorted(t *testing.T) {
	bad := []Posting{
		{DocId: 5, TermFreq: 1, Positions: []uint32{0}},
		{DocId: 2, TermFreq: 1, Positions: []uint32{0}},
	}
	if _, err := NewPostingListFromSorted(bad); err == nil {
		t.Fatal("expected error for unsorted input")
	}
}
