package index

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru"

	"github.com/emberdb/ember/codec"
	"github.com/emberdb/ember/store"
	"github.com/pkg/errors"
)

// eagerThreshold is the .idx file size below which IdxReader loads the
// whole posting blob into memory up front; larger segments load posting
// lists lazily per term, subject to an LRU cache.
const eagerThreshold = 50 << 20

// IdxReader opens a segment's .idx file: the term dictionary plus, either
// eagerly or lazily depending on file size, the posting lists it indexes.
type IdxReader struct {
	dict        *Dictionary
	docLengths  map[uint64]uint32
	postingBlob []byte // non-nil when loaded eagerly
	f           store.ReaderAt
	blobOffset  int64 // absolute file offset of the posting blob section, for lazy reads
	eager       bool
	cache       *lru.Cache // term key -> *PostingList
}

type idxSection struct {
	offset int64
	data   []byte // only populated for sections read eagerly
	size   int64
}

// OpenIdxReader reads and parses a segment's .idx file. cacheSize bounds
// the lazy per-term posting-list LRU (ignored in eager mode).
func OpenIdxReader(dir store.Directory, meta SegmentMeta, cacheSize int) (*IdxReader, error) {
	f, err := dir.Open(meta.IdxFileName())
	if err != nil {
		return nil, err
	}
	var hdr [8]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "index: read idx header")
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != idxMagic {
		f.Close()
		return nil, errors.New("index: bad idx magic")
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) != idxVersion {
		f.Close()
		return nil, errors.New("index: idx version mismatch")
	}

	eager := f.Size() < eagerThreshold
	offset := int64(8)

	readSection := func(eagerLoad bool) (idxSection, error) {
		var lenBuf [5]byte
		n, err := f.ReadAt(lenBuf[:], offset)
		if err != nil && n == 0 {
			return idxSection{}, errors.Wrap(err, "index: read idx section length")
		}
		blockLen, consumed, err := codec.DecodeUvarint(lenBuf[:n])
		if err != nil {
			return idxSection{}, errors.Wrap(err, "index: decode idx section length")
		}
		dataOffset := offset + int64(consumed)
		sec := idxSection{offset: dataOffset, size: int64(blockLen)}
		if eagerLoad {
			buf := make([]byte, blockLen)
			if _, err := f.ReadAt(buf, dataOffset); err != nil {
				return idxSection{}, errors.Wrap(err, "index: read idx section")
			}
			decoded, err := store.DecodeBlock(buf)
			if err != nil {
				return idxSection{}, err
			}
			sec.data = decoded
		}
		offset = dataOffset + int64(blockLen)
		return sec, nil
	}

	fstSec, err := readSection(true)
	if err != nil {
		f.Close()
		return nil, err
	}
	entriesSec, err := readSection(true)
	if err != nil {
		f.Close()
		return nil, err
	}
	postingSec, err := readSection(eager)
	if err != nil {
		f.Close()
		return nil, err
	}
	docLenSec, err := readSection(true)
	if err != nil {
		f.Close()
		return nil, err
	}

	entries, err := decodeDictEntries(entriesSec.data)
	if err != nil {
		f.Close()
		return nil, err
	}
	dict, err := LoadDictionary(fstSec.data, entries)
	if err != nil {
		f.Close()
		return nil, err
	}
	docLengths, err := decodeDocLengths(docLenSec.data)
	if err != nil {
		f.Close()
		return nil, err
	}

	var cache *lru.Cache
	if !eager {
		if cacheSize <= 0 {
			cacheSize = 256
		}
		cache, err = lru.New(cacheSize)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "index: create posting list LRU")
		}
	}

	r := &IdxReader{
		dict:       dict,
		docLengths: docLengths,
		eager:      eager,
		cache:      cache,
		f:          f,
		blobOffset: postingSec.offset,
	}
	if eager {
		r.postingBlob = postingSec.data
	}
	return r, nil
}

func (r *IdxReader) Close() error { return r.f.Close() }

func (r *IdxReader) Dictionary() *Dictionary { return r.dict }

func (r *IdxReader) DocLength(docID uint64) (uint32, bool) {
	l, ok := r.docLengths[docID]
	return l, ok
}

// AvgDocLength computes the mean document length over every document this
// idx has length data for (i.e. every document with at least one text
// field token), used as a scorer input.
func (r *IdxReader) AvgDocLength() float64 {
	if len(r.docLengths) == 0 {
		return 0
	}
	var sum uint64
	for _, l := range r.docLengths {
		sum += uint64(l)
	}
	return float64(sum) / float64(len(r.docLengths))
}

// GetPostings resolves a (field, term) pair to its decoded PostingList,
// decoding and caching it on first access when operating in lazy mode.
func (r *IdxReader) GetPostings(field, term string) (*PostingList, bool, error) {
	entry, ok := r.dict.Lookup(dictKey(field, term))
	if !ok {
		return nil, false, nil
	}

	cacheKey := dictKey(field, term)
	if r.cache != nil {
		if v, ok := r.cache.Get(cacheKey); ok {
			return v.(*PostingList), true, nil
		}
	}

	var buf []byte
	if r.eager {
		buf = r.postingBlob[entry.PostingOffset : entry.PostingOffset+entry.PostingSize]
	} else {
		buf = make([]byte, entry.PostingSize)
		if _, err := r.f.ReadAt(buf, r.blobOffset+int64(entry.PostingOffset)); err != nil {
			return nil, false, errors.Wrap(err, "index: lazy read posting list")
		}
	}
	pl, err := UnmarshalPostingList(buf)
	if err != nil {
		return nil, false, err
	}
	if r.cache != nil {
		r.cache.Add(cacheKey, pl)
	}
	return pl, true, nil
}

func (r *IdxReader) ContainsTerm(field, term string) bool {
	return r.dict.Contains(dictKey(field, term))
}
