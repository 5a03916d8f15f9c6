package codec

import "encoding/binary"

// EncodeDeltaSorted encodes a sorted ascending sequence of uint32 values:
// the first value is written as 4 raw little-endian bytes, each subsequent
// value as the variable-byte encoding of its positive difference from the
// prior value. Callers are responsible for the sortedness invariant; this
// codec only ever sees output from a posting-list builder that maintains it.
func EncodeDeltaSorted(xs []uint32) []byte {
	if len(xs) == 0 {
		return []byte{}
	}
	buf := make([]byte, 4, 4+len(xs)*2)
	binary.LittleEndian.PutUint32(buf, xs[0])
	prev := xs[0]
	for _, x := range xs[1:] {
		buf = AppendUvarint(buf, x-prev)
		prev = x
	}
	return buf
}

// DecodeDeltaSorted reverses EncodeDeltaSorted, rebuilding absolute values
// by running sum over the decoded deltas.
func DecodeDeltaSorted(buf []byte) ([]uint32, error) {
	if len(buf) == 0 {
		return []uint32{}, nil
	}
	if len(buf) < 4 {
		return nil, errShortBuffer
	}
	first := binary.LittleEndian.Uint32(buf[:4])
	out := []uint32{first}
	pos := 4
	running := first
	for pos < len(buf) {
		d, n, err := DecodeUvarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		running += d
		out = append(out, running)
		pos += n
	}
	return out, nil
}

var errShortBuffer = deltaError("codec: delta decode: buffer shorter than the 4-byte absolute head")

type deltaError string

func (e deltaError) Error() string { return string(e) }
