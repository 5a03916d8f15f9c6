package index

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

const (
	segmentMagic   uint32 = 0x454d5347 // "EMSG"
	segmentVersion uint32 = 1
	idxMagic       uint32 = 0x454d4958 // "EMIX"
	idxVersion     uint32 = 1

	// segmentHeaderSize: magic(4) + version(4) + docCount(4) + crc32(4) +
	// minDocID(8) + maxDocID(8).
	segmentHeaderSize = 32
)

// SegmentMeta describes a published, immutable segment: its file names
// (keyed by id), creation time and observed DocId range, used by the
// merge policy's size-tiering and by the reader pool.
type SegmentMeta struct {
	ID        uuid.UUID
	CreatedAt time.Time
	ByteSize  int64
	DocCount  uint32
	MinDocID  uint64
	MaxDocID  uint64
}

func (m SegmentMeta) SegFileName() string { return m.ID.String() + ".seg" }
func (m SegmentMeta) IdxFileName() string { return m.ID.String() + ".idx" }

// IsEmpty reports whether the segment has no documents; empty segments are
// legal (a merge whose source documents were all deleted produces one) but
// skipped by readers.
func (m SegmentMeta) IsEmpty() bool { return m.DocCount == 0 }

func newSegmentID() (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.UUID{}, errors.Wrap(err, "index: generate segment id")
	}
	return id, nil
}

func writeSegmentHeader(buf []byte, version, docCount, payloadCRC uint32, minDocID, maxDocID uint64) {
	binary.LittleEndian.PutUint32(buf[0:4], segmentMagic)
	binary.LittleEndian.PutUint32(buf[4:8], version)
	binary.LittleEndian.PutUint32(buf[8:12], docCount)
	binary.LittleEndian.PutUint32(buf[12:16], payloadCRC)
	binary.LittleEndian.PutUint64(buf[16:24], minDocID)
	binary.LittleEndian.PutUint64(buf[24:32], maxDocID)
}

type segmentHeader struct {
	version    uint32
	docCount   uint32
	payloadCRC uint32
	minDocID   uint64
	maxDocID   uint64
}

func readSegmentHeader(buf []byte) (segmentHeader, error) {
	if len(buf) < segmentHeaderSize {
		return segmentHeader{}, errors.New("index: segment header truncated")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != segmentMagic {
		return segmentHeader{}, errors.New("index: bad segment magic")
	}
	h := segmentHeader{
		version:    binary.LittleEndian.Uint32(buf[4:8]),
		docCount:   binary.LittleEndian.Uint32(buf[8:12]),
		payloadCRC: binary.LittleEndian.Uint32(buf[12:16]),
		minDocID:   binary.LittleEndian.Uint64(buf[16:24]),
		maxDocID:   binary.LittleEndian.Uint64(buf[24:32]),
	}
	if h.version != segmentVersion {
		return segmentHeader{}, errors.Errorf("index: segment version mismatch: got %d want %d", h.version, segmentVersion)
	}
	return h, nil
}

func crc32IEEE(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
