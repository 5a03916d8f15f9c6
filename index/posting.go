package index

import (
	"math"
	"sort"

	"github.com/emberdb/ember/codec"
)

// Posting is the evidence that one term occurs in one document: its
// DocId, term frequency, the ordered token positions, and a field-length
// normalization factor used by the scorer.
type Posting struct {
	DocId     uint64
	TermFreq  uint32
	Positions []uint32
	Norm      float32
}

// PostingList holds, for one term, the encoded doc-id delta block, the
// parallel term-frequency array, and the per-posting encoded position
// blocks. Postings are ordered by DocId ascending — decoding doc_ids must
// always yield a strictly increasing sequence; this is relied upon by the
// skip list and by set-operation merges.
type PostingList struct {
	docIDBlock []byte
	termFreqs  []uint32
	posBlocks  [][]byte
	norms      []float32

	decoded []uint64 // lazily populated cache of decoded doc ids
}

// NewPostingListFromSorted builds a PostingList from postings already
// sorted by DocId ascending. Construction is total: given sorted input it
// always succeeds.
func NewPostingListFromSorted(postings []Posting) (*PostingList, error) {
	ids := make([]uint32, len(postings))
	tfs := make([]uint32, len(postings))
	pos := make([][]byte, len(postings))
	norms := make([]float32, len(postings))
	for i, p := range postings {
		if i > 0 && postings[i-1].DocId >= p.DocId {
			return nil, errNotSorted
		}
		ids[i] = uint32(p.DocId)
		tfs[i] = p.TermFreq
		pos[i] = codec.EncodeUvarints(p.Positions)
		norms[i] = p.Norm
	}
	return &PostingList{
		docIDBlock: codec.EncodeDeltaSorted(ids),
		termFreqs:  tfs,
		posBlocks:  pos,
		norms:      norms,
	}, nil
}

type postingListError string

func (e postingListError) Error() string { return string(e) }

const errNotSorted = postingListError("index: postings must be supplied sorted by DocId ascending")

// DocFreq is the number of documents carrying this term (len(term_freqs)).
func (pl *PostingList) DocFreq() int { return len(pl.termFreqs) }

// TotalFreq is the sum of all term frequencies across documents (Σ
// term_freqs).
func (pl *PostingList) TotalFreq() uint64 {
	var sum uint64
	for _, f := range pl.termFreqs {
		sum += uint64(f)
	}
	return sum
}

// DecodeDocIDs performs the expensive O(n) full decode of the doc-id
// block, caching the result on the PostingList for reuse.
func (pl *PostingList) DecodeDocIDs() ([]uint64, error) {
	if pl.decoded != nil {
		return pl.decoded, nil
	}
	ids32, err := codec.DecodeDeltaSorted(pl.docIDBlock)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(ids32))
	for i, v := range ids32 {
		ids[i] = uint64(v)
	}
	pl.decoded = ids
	return ids, nil
}

// At returns the posting at the given decoded index.
func (pl *PostingList) At(index int) (Posting, error) {
	ids, err := pl.DecodeDocIDs()
	if err != nil {
		return Posting{}, err
	}
	if index < 0 || index >= len(ids) {
		return Posting{}, postingListError("index: posting index out of range")
	}
	positions, err := codec.DecodeUvarints(pl.posBlocks[index])
	if err != nil {
		return Posting{}, err
	}
	return Posting{
		DocId:     ids[index],
		TermFreq:  pl.termFreqs[index],
		Positions: positions,
		Norm:      pl.norms[index],
	}, nil
}

// Find performs a binary search for docID over the decoded doc-id
// sequence, returning its index, or ok=false if absent.
func (pl *PostingList) Find(docID uint64) (index int, ok bool) {
	ids, err := pl.DecodeDocIDs()
	if err != nil {
		return 0, false
	}
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= docID })
	if i < len(ids) && ids[i] == docID {
		return i, true
	}
	return 0, false
}

// EncodedSize reports the approximate number of bytes this posting list
// occupies once serialized, used for the segment writer's staging
// threshold and for reporting segment byte size.
func (pl *PostingList) EncodedSize() int {
	n := len(pl.docIDBlock) + len(pl.termFreqs)*4 + len(pl.norms)*4
	for _, b := range pl.posBlocks {
		n += len(b)
	}
	return n
}

// Marshal serializes the posting list to a self-contained byte slice.
func (pl *PostingList) Marshal() []byte {
	var out []byte
	out = codec.AppendUvarint(out, uint32(len(pl.docIDBlock)))
	out = append(out, pl.docIDBlock...)
	out = codec.AppendUvarint(out, uint32(len(pl.termFreqs)))
	for _, tf := range pl.termFreqs {
		out = codec.AppendUvarint(out, tf)
	}
	for _, norm := range pl.norms {
		out = appendFloat32(out, norm)
	}
	for _, pb := range pl.posBlocks {
		out = codec.AppendUvarint(out, uint32(len(pb)))
		out = append(out, pb...)
	}
	return out
}

// UnmarshalPostingList reverses Marshal.
func UnmarshalPostingList(buf []byte) (*PostingList, error) {
	pos := 0
	readUvarint := func() (uint32, error) {
		v, n, err := codec.DecodeUvarint(buf[pos:])
		pos += n
		return v, err
	}

	blockLen, err := readUvarint()
	if err != nil {
		return nil, err
	}
	docIDBlock := append([]byte(nil), buf[pos:pos+int(blockLen)]...)
	pos += int(blockLen)

	count, err := readUvarint()
	if err != nil {
		return nil, err
	}
	termFreqs := make([]uint32, count)
	for i := range termFreqs {
		termFreqs[i], err = readUvarint()
		if err != nil {
			return nil, err
		}
	}
	norms := make([]float32, count)
	for i := range norms {
		norms[i] = readFloat32(buf[pos : pos+4])
		pos += 4
	}
	posBlocks := make([][]byte, count)
	for i := range posBlocks {
		l, err := readUvarint()
		if err != nil {
			return nil, err
		}
		posBlocks[i] = append([]byte(nil), buf[pos:pos+int(l)]...)
		pos += int(l)
	}

	return &PostingList{
		docIDBlock: docIDBlock,
		termFreqs:  termFreqs,
		posBlocks:  posBlocks,
		norms:      norms,
	}, nil
}

func appendFloat32(buf []byte, f float32) []byte {
	bits := math.Float32bits(f)
	return append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
}

func readFloat32(buf []byte) float32 {
	bits := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return math.Float32frombits(bits)
}
