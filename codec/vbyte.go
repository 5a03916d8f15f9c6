// Package codec implements the integer encodings used by posting lists:
// plain variable-byte, and delta + variable-byte over sorted sequences.
package codec

import "fmt"

// maxVarintBytes is the most bytes a single uint32 can expand to: 32 bits
// at 7 payload bits per byte round up to 5 bytes.
const maxVarintBytes = 5

// AppendUvarint appends the variable-byte encoding of v to buf and returns
// the extended slice. The low 7 bits of each byte carry payload; the high
// bit is a continuation flag, cleared on the final byte.
func AppendUvarint(buf []byte, v uint32) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// EncodeUvarints encodes a plain (non-delta) sequence of uint32 values.
func EncodeUvarints(xs []uint32) []byte {
	if len(xs) == 0 {
		return []byte{}
	}
	buf := make([]byte, 0, len(xs)*2)
	for _, x := range xs {
		buf = AppendUvarint(buf, x)
	}
	return buf
}

// DecodeUvarint reads a single variable-byte value starting at buf[0].
// It returns the value and the number of bytes consumed. Decoding fails
// with an error if the continuation runs past maxVarintBytes without a
// terminating byte, or if buf is exhausted first.
func DecodeUvarint(buf []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < maxVarintBytes; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("codec: vbyte decode: unterminated sequence, missing terminator byte")
		}
		b := buf[i]
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("codec: vbyte decode: overflow past %d bytes", maxVarintBytes)
}

// DecodeUvarints decodes a buffer produced by EncodeUvarints in full.
func DecodeUvarints(buf []byte) ([]uint32, error) {
	if len(buf) == 0 {
		return []uint32{}, nil
	}
	out := make([]uint32, 0, len(buf)/2+1)
	pos := 0
	for pos < len(buf) {
		v, n, err := DecodeUvarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos += n
	}
	return out, nil
}
