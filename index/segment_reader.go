package index

import (
	"encoding/binary"
	"io"

	"github.com/emberdb/ember/store"
	"github.com/pkg/errors"
)

// SegmentReader opens a .seg file for positional reads: a lazy document
// iterator, a linear-scan get-by-id (segments cap at ~100k documents in
// the reference merge policy, so a linear scan is acceptable). It has no
// query entry point: the executor walks Iterator and matches each
// document itself.
type SegmentReader struct {
	meta   SegmentMeta
	f      store.ReaderAt
	header segmentHeader
}

func OpenSegmentReader(dir store.Directory, meta SegmentMeta) (*SegmentReader, error) {
	f, err := dir.Open(meta.SegFileName())
	if err != nil {
		return nil, err
	}
	var hdr [segmentHeaderSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil && err != io.EOF {
		f.Close()
		return nil, errors.Wrap(err, "index: read segment header")
	}
	header, err := readSegmentHeader(hdr[:])
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "index: invalid segment header")
	}
	return &SegmentReader{meta: meta, f: f, header: header}, nil
}

func (r *SegmentReader) Close() error { return r.f.Close() }
func (r *SegmentReader) Meta() SegmentMeta { return r.meta }
func (r *SegmentReader) DocCount() uint32  { return r.header.docCount }

// DocIterator lazily reads one document record at a time starting at the
// segment's payload offset.
type DocIterator struct {
	r      *SegmentReader
	offset int64
}

func (r *SegmentReader) Iterator() *DocIterator {
	return &DocIterator{r: r, offset: segmentHeaderSize}
}

// Next returns the next document, or (nil, io.EOF) at the end.
func (it *DocIterator) Next() (*Doc, error) {
	var lenPrefix [4]byte
	n, err := it.r.f.ReadAt(lenPrefix[:], it.offset)
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "index: read doc record length")
	}
	blockLen := binary.LittleEndian.Uint32(lenPrefix[:])
	if blockLen == 0 {
		return nil, io.EOF
	}
	block := make([]byte, blockLen)
	if _, err := it.r.f.ReadAt(block, it.offset+4); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "index: read doc record block")
	}
	raw, err := store.DecodeBlock(block)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, err
	}
	it.offset += 4 + int64(blockLen)
	return doc, nil
}

// Get performs a linear scan for docID, returning (nil, nil) if absent.
func (r *SegmentReader) Get(docID uint64) (*Doc, error) {
	if docID < r.meta.MinDocID || docID > r.meta.MaxDocID {
		return nil, nil
	}
	it := r.Iterator()
	for {
		doc, err := it.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if doc.ID == docID {
			return doc, nil
		}
	}
}

// VerifyChecksum re-reads the whole payload region and compares its CRC32
// against the value recorded in the header, detecting a torn write left
// by a crash mid-finalize. Recovery does not call it.
func (r *SegmentReader) VerifyChecksum() error {
	size := r.f.Size()
	payload := make([]byte, size-segmentHeaderSize)
	if _, err := r.f.ReadAt(payload, segmentHeaderSize); err != nil && err != io.EOF {
		return errors.Wrap(err, "index: read segment payload")
	}
	if crc32IEEE(payload) != r.header.payloadCRC {
		return errors.New("index: segment checksum mismatch")
	}
	return nil
}
