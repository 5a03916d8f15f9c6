package index

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"math"
	"sort"
	"time"

	"github.com/emberdb/ember/codec"
	"github.com/emberdb/ember/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// allField is the synthetic field every text-field token is additionally
// indexed under. Its dictionary entries supply the IDF the scorer uses
// for a Term("_all", v) query; matching that query is still a
// per-document substring scan done by the matcher.
const allField = "_all"

type pendingPosting struct {
	docID     uint64
	positions []uint32
}

// SegmentWriter builds one immutable segment: a .seg file of framed,
// compressed document records and a companion .idx file holding the term
// dictionary and posting lists. Contract: either Finalize succeeds and
// both files are complete on disk, or the caller discards the writer and
// no reader ever observes the partial files (Abort removes them).
type SegmentWriter struct {
	dir    store.Directory
	logger *zap.Logger

	id      SegmentMeta
	segFile store.WriteCloser
	bw      *bufio.Writer

	flushThreshold int
	stagedBytes    int
	payloadCRC     uint32

	postings     map[string][]*pendingPosting // "field\x00term" -> postings, appended in doc order
	postingIndex map[string]map[uint64]*pendingPosting
	docLengths   map[uint64]uint32
}

// NewSegmentWriter creates a new segment in dir, reserving header space in
// the .seg file (filled in by Finalize).
func NewSegmentWriter(dir store.Directory, flushThreshold int, logger *zap.Logger) (*SegmentWriter, error) {
	if flushThreshold <= 0 {
		flushThreshold = 1 << 20
	}
	id, err := newSegmentID()
	if err != nil {
		return nil, err
	}
	meta := SegmentMeta{ID: id, CreatedAt: time.Now()}
	f, err := dir.Create(meta.SegFileName())
	if err != nil {
		return nil, err
	}
	var header [segmentHeaderSize]byte
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "index: write segment header placeholder")
	}
	return &SegmentWriter{
		dir:          dir,
		logger:       logger,
		id:           meta,
		segFile:      f,
		bw:           bufio.NewWriter(f),
		flushThreshold: flushThreshold,
		postings:     map[string][]*pendingPosting{},
		postingIndex: map[string]map[uint64]*pendingPosting{},
		docLengths:   map[uint64]uint32{},
	}, nil
}

func (w *SegmentWriter) Meta() SegmentMeta { return w.id }

// AddDoc serializes, compresses and appends doc to the .seg file, and
// folds its analyzed tokens into the in-memory term->postings map that
// Finalize will write out as the .idx.
func (w *SegmentWriter) AddDoc(doc *Doc) error {
	raw := encodeDoc(doc)
	block := store.EncodeBlock(raw)

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(block)))
	if _, err := w.bw.Write(lenPrefix[:]); err != nil {
		return errors.Wrap(err, "index: write doc record length")
	}
	if _, err := w.bw.Write(block); err != nil {
		return errors.Wrap(err, "index: write doc record block")
	}
	w.payloadCRC = crc32Combine(w.payloadCRC, lenPrefix[:], block)

	if w.id.DocCount == 0 || doc.ID < w.id.MinDocID {
		w.id.MinDocID = doc.ID
	}
	if doc.ID > w.id.MaxDocID {
		w.id.MaxDocID = doc.ID
	}
	w.id.DocCount++

	w.indexTokens(doc)

	w.stagedBytes += len(lenPrefix) + len(block)
	if w.stagedBytes >= w.flushThreshold {
		if err := w.bw.Flush(); err != nil {
			return errors.Wrap(err, "index: flush staged segment bytes")
		}
		if err := w.segFile.Sync(); err != nil {
			return errors.Wrap(err, "index: sync staged segment bytes")
		}
		w.stagedBytes = 0
	}
	return nil
}

func (w *SegmentWriter) indexTokens(doc *Doc) {
	var docLen uint32
	for _, f := range doc.Fields {
		if f.Kind != FieldText || len(f.Tokens) == 0 {
			continue
		}
		docLen += uint32(len(f.Tokens))
		perTerm := map[string][]uint32{}
		for _, t := range f.Tokens {
			perTerm[string(t.Term)] = append(perTerm[string(t.Term)], uint32(t.Position))
		}
		for term, positions := range perTerm {
			w.appendPosting(f.Name, term, doc.ID, positions)
			w.appendPosting(allField, term, doc.ID, positions)
		}
	}
	if docLen > 0 {
		w.docLengths[doc.ID] = docLen
	}
}

func (w *SegmentWriter) appendPosting(field, term string, docID uint64, positions []uint32) {
	key := field + "\x00" + term
	byDoc, ok := w.postingIndex[key]
	if !ok {
		byDoc = map[uint64]*pendingPosting{}
		w.postingIndex[key] = byDoc
	}
	pp, ok := byDoc[docID]
	if !ok {
		pp = &pendingPosting{docID: docID}
		byDoc[docID] = pp
		w.postings[key] = append(w.postings[key], pp)
	}
	pp.positions = append(pp.positions, positions...)
}

// Finalize writes the .seg header and the .idx file and fsyncs both. The
// segment is not visible to readers until the caller installs its
// SegmentMeta into a new snapshot.
func (w *SegmentWriter) Finalize() (SegmentMeta, error) {
	if err := w.bw.Flush(); err != nil {
		return SegmentMeta{}, errors.Wrap(err, "index: final flush")
	}

	var header [segmentHeaderSize]byte
	writeSegmentHeader(header[:], segmentVersion, w.id.DocCount, w.payloadCRC, w.id.MinDocID, w.id.MaxDocID)
	if wa, ok := w.segFile.(interface {
		WriteAt([]byte, int64) (int, error)
	}); ok {
		if _, err := wa.WriteAt(header[:], 0); err != nil {
			return SegmentMeta{}, errors.Wrap(err, "index: rewrite segment header")
		}
	}
	if err := w.segFile.Sync(); err != nil {
		return SegmentMeta{}, errors.Wrap(err, "index: fsync segment file")
	}
	if err := w.segFile.Close(); err != nil {
		return SegmentMeta{}, errors.Wrap(err, "index: close segment file")
	}

	idxBytes, err := w.buildIdx()
	if err != nil {
		return SegmentMeta{}, err
	}
	idxFile, err := w.dir.Create(w.id.IdxFileName())
	if err != nil {
		return SegmentMeta{}, err
	}
	if _, err := idxFile.Write(idxBytes); err != nil {
		idxFile.Close()
		return SegmentMeta{}, errors.Wrap(err, "index: write idx file")
	}
	if err := idxFile.Sync(); err != nil {
		idxFile.Close()
		return SegmentMeta{}, errors.Wrap(err, "index: fsync idx file")
	}
	if err := idxFile.Close(); err != nil {
		return SegmentMeta{}, errors.Wrap(err, "index: close idx file")
	}

	if size, err := w.dir.Stat(w.id.SegFileName()); err == nil {
		w.id.ByteSize = size
	}
	return w.id, nil
}

// Abort discards the in-progress segment files; called when the writer
// fails before Finalize or the caller decides not to keep the segment.
func (w *SegmentWriter) Abort() {
	w.segFile.Close()
	_ = w.dir.Remove(w.id.SegFileName())
	_ = w.dir.Remove(w.id.IdxFileName())
}

// buildIdx serializes the dictionary, the posting-list blob, and the
// per-document length table into the .idx payload, each as an
// independently compressed block, framed behind a small idx header.
func (w *SegmentWriter) buildIdx() ([]byte, error) {
	builder := NewDictionaryBuilder()
	var postingBlob []byte
	keys := make([]string, 0, len(w.postings))
	for k := range w.postings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pending := w.postings[key]
		sort.Slice(pending, func(i, j int) bool { return pending[i].docID < pending[j].docID })
		postings := make([]Posting, len(pending))
		var totalFreq uint64
		for i, pp := range pending {
			sort.Slice(pp.positions, func(a, b int) bool { return pp.positions[a] < pp.positions[b] })
			tf := uint32(len(pp.positions))
			totalFreq += uint64(tf)
			norm := float32(1.0)
			if dl, ok := w.docLengths[pp.docID]; ok && dl > 0 {
				norm = float32(1.0 / sqrt(float64(dl)))
			}
			postings[i] = Posting{DocId: pp.docID, TermFreq: tf, Positions: pp.positions, Norm: norm}
		}
		pl, err := NewPostingListFromSorted(postings)
		if err != nil {
			return nil, err
		}
		encoded := pl.Marshal()
		offset := uint64(len(postingBlob))
		postingBlob = append(postingBlob, encoded...)

		field, term := splitTermKey(key)
		entry := builder.Entry(dictKey(field, term))
		entry.DocFreq = len(postings)
		entry.TotalFreq = totalFreq
		entry.PostingOffset = offset
		entry.PostingSize = uint64(len(encoded))
	}

	dict, fstBytes, err := builder.Build()
	if err != nil {
		return nil, err
	}
	_ = dict

	entriesBytes := encodeDictEntries(builder)
	docLenBytes := encodeDocLengths(w.docLengths)

	var out []byte
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], idxMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], idxVersion)
	out = append(out, hdr[:]...)

	for _, section := range [][]byte{fstBytes, entriesBytes, postingBlob, docLenBytes} {
		block := store.EncodeBlock(section)
		out = codec.AppendUvarint(out, uint32(len(block)))
		out = append(out, block...)
	}
	return out, nil
}

func dictKey(field, term string) string { return field + "\x00" + term }

func splitTermKey(key string) (field, term string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}

func encodeDictEntries(b *DictionaryBuilder) []byte {
	terms := make([]string, 0, len(b.entries))
	for t := range b.entries {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var out []byte
	out = codec.AppendUvarint(out, uint32(len(terms)))
	for _, t := range terms {
		e := b.entries[t]
		out = appendString(out, e.Term)
		out = codec.AppendUvarint(out, uint32(e.DocFreq))
		out = codec.AppendUvarint(out, uint32(e.TotalFreq))
		out = codec.AppendUvarint(out, uint32(e.PostingOffset))
		out = codec.AppendUvarint(out, uint32(e.PostingSize))
	}
	return out
}

func decodeDictEntries(buf []byte) ([]DictEntry, error) {
	pos := 0
	readUvarint := func() (uint32, error) {
		v, n, err := codec.DecodeUvarint(buf[pos:])
		pos += n
		return v, err
	}
	count, err := readUvarint()
	if err != nil {
		return nil, err
	}
	entries := make([]DictEntry, count)
	for i := range entries {
		l, err := readUvarint()
		if err != nil {
			return nil, err
		}
		term := string(buf[pos : pos+int(l)])
		pos += int(l)
		df, err := readUvarint()
		if err != nil {
			return nil, err
		}
		tf, err := readUvarint()
		if err != nil {
			return nil, err
		}
		off, err := readUvarint()
		if err != nil {
			return nil, err
		}
		size, err := readUvarint()
		if err != nil {
			return nil, err
		}
		entries[i] = DictEntry{Term: term, DocFreq: int(df), TotalFreq: uint64(tf), PostingOffset: uint64(off), PostingSize: uint64(size)}
	}
	return entries, nil
}

func encodeDocLengths(lengths map[uint64]uint32) []byte {
	ids := make([]uint64, 0, len(lengths))
	for id := range lengths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []byte
	out = codec.AppendUvarint(out, uint32(len(ids)))
	var prev uint64
	for _, id := range ids {
		delta := id - prev
		out = codec.AppendUvarint(out, uint32(delta))
		out = codec.AppendUvarint(out, uint32(delta>>32))
		out = codec.AppendUvarint(out, lengths[id])
		prev = id
	}
	return out
}

func decodeDocLengths(buf []byte) (map[uint64]uint32, error) {
	pos := 0
	readUvarint := func() (uint32, error) {
		v, n, err := codec.DecodeUvarint(buf[pos:])
		pos += n
		return v, err
	}
	count, err := readUvarint()
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]uint32, count)
	var prev uint64
	for i := uint32(0); i < count; i++ {
		lo, err := readUvarint()
		if err != nil {
			return nil, err
		}
		hi, err := readUvarint()
		if err != nil {
			return nil, err
		}
		length, err := readUvarint()
		if err != nil {
			return nil, err
		}
		id := prev + (uint64(lo) | uint64(hi)<<32)
		out[id] = length
		prev = id
	}
	return out, nil
}

func sqrt(x float64) float64 { return math.Sqrt(x) }

// crc32Combine folds length-prefix and block bytes into a running CRC32
// without materializing the whole payload in memory.
func crc32Combine(running uint32, parts ...[]byte) uint32 {
	for _, p := range parts {
		running = crc32.Update(running, crc32.IEEETable, p)
	}
	return running
}
