// Package store provides the on-disk primitives shared by segments and the
// write-ahead log: a Directory abstraction over the filesystem or memory, an
// advisory exclusive lock file, a reusable byte-buffer pool for staged
// writes, and the self-describing compressed block format segments use to
// store document and posting-list payloads.
package store

import (
	"github.com/klauspost/compress/s2"
	"github.com/pkg/errors"
)

// BlockKind tags how a compressed block's payload was encoded.
type BlockKind uint8

const (
	// BlockStored means the payload is copied verbatim. Used for tiny
	// blocks where compression overhead would dominate, and as a
	// guaranteed-correct fallback.
	BlockStored BlockKind = iota
	// BlockS2 means the payload is klauspost/compress/s2-compressed.
	BlockS2
)

// minCompressSize is the threshold below which EncodeBlock skips
// compression outright rather than pay the s2 framing overhead.
const minCompressSize = 64

// EncodeBlock frames data as a self-describing compressed block:
// [1-byte kind][uvarint original size][payload]. The kind and original
// size let DecodeBlock recover the exact input without external context.
func EncodeBlock(data []byte) []byte {
	if len(data) < minCompressSize {
		return encodeBlock(BlockStored, data, data)
	}
	compressed := s2.Encode(nil, data)
	if len(compressed) >= len(data) {
		return encodeBlock(BlockStored, data, data)
	}
	return encodeBlock(BlockS2, data, compressed)
}

func encodeBlock(kind BlockKind, original, payload []byte) []byte {
	out := make([]byte, 0, 1+5+len(payload))
	out = append(out, byte(kind))
	out = appendUvarint(out, uint64(len(original)))
	out = append(out, payload...)
	return out
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(buf []byte) ([]byte, error) {
	if len(buf) < 1 {
		return nil, errors.New("store: empty compressed block")
	}
	kind := BlockKind(buf[0])
	originalSize, n, err := readUvarint(buf[1:])
	if err != nil {
		return nil, errors.Wrap(err, "store: decode block size")
	}
	payload := buf[1+n:]
	switch kind {
	case BlockStored:
		return append([]byte(nil), payload...), nil
	case BlockS2:
		out := make([]byte, 0, originalSize)
		decoded, err := s2.Decode(out[:cap(out)][:0], payload)
		if err != nil {
			return nil, errors.Wrap(err, "store: s2 decode")
		}
		return decoded, nil
	default:
		return nil, errors.Errorf("store: unknown block kind %d", kind)
	}
}

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readUvarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i >= 10 {
			return 0, 0, errors.New("store: uvarint overflow")
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("store: truncated uvarint")
}
