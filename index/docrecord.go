package index

import (
	"math"

	"github.com/emberdb/ember/codec"
)

// encodeDoc serializes a Doc to a self-contained byte slice: the document
// record that gets compressed and framed into the .seg file.
func encodeDoc(doc *Doc) []byte {
	var out []byte
	out = codec.AppendUvarint(out, uint32(doc.ID))
	out = codec.AppendUvarint(out, uint32(doc.ID>>32))
	out = codec.AppendUvarint(out, uint32(len(doc.Fields)))
	for _, f := range doc.Fields {
		out = appendString(out, f.Name)
		out = append(out, byte(f.Kind))
		stored := byte(0)
		if f.Stored {
			stored = 1
		}
		out = append(out, stored)
		switch f.Kind {
		case FieldText:
			out = appendString(out, f.Text)
			out = codec.AppendUvarint(out, uint32(len(f.Tokens)))
			for _, t := range f.Tokens {
				out = appendString(out, string(t.Term))
				out = codec.AppendUvarint(out, uint32(t.Position))
			}
		case FieldNumber:
			out = appendFloat64(out, f.Number)
		case FieldDate:
			out = codec.AppendUvarint(out, uint32(f.DateUnixNano))
			out = codec.AppendUvarint(out, uint32(f.DateUnixNano>>32))
		case FieldBool:
			b := byte(0)
			if f.Bool {
				b = 1
			}
			out = append(out, b)
		}
	}
	return out
}

// decodeDoc reverses encodeDoc.
func decodeDoc(buf []byte) (*Doc, error) {
	pos := 0
	readUvarint := func() (uint32, error) {
		v, n, err := codec.DecodeUvarint(buf[pos:])
		pos += n
		return v, err
	}
	readString := func() (string, error) {
		l, err := readUvarint()
		if err != nil {
			return "", err
		}
		s := string(buf[pos : pos+int(l)])
		pos += int(l)
		return s, nil
	}

	lo, err := readUvarint()
	if err != nil {
		return nil, err
	}
	hi, err := readUvarint()
	if err != nil {
		return nil, err
	}
	id := uint64(lo) | uint64(hi)<<32

	fieldCount, err := readUvarint()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldValue, fieldCount)
	for i := range fields {
		name, err := readString()
		if err != nil {
			return nil, err
		}
		kind := FieldKind(buf[pos])
		pos++
		stored := buf[pos] == 1
		pos++
		fv := FieldValue{Name: name, Kind: kind, Stored: stored}
		switch kind {
		case FieldText:
			fv.Text, err = readString()
			if err != nil {
				return nil, err
			}
			tokCount, err := readUvarint()
			if err != nil {
				return nil, err
			}
			fv.Tokens = make([]Token, tokCount)
			for j := range fv.Tokens {
				term, err := readString()
				if err != nil {
					return nil, err
				}
				p, err := readUvarint()
				if err != nil {
					return nil, err
				}
				fv.Tokens[j] = Token{Term: []byte(term), Position: int(p)}
			}
		case FieldNumber:
			fv.Number = readFloat64(buf[pos : pos+8])
			pos += 8
		case FieldDate:
			lo, err := readUvarint()
			if err != nil {
				return nil, err
			}
			hi, err := readUvarint()
			if err != nil {
				return nil, err
			}
			fv.DateUnixNano = int64(uint64(lo) | uint64(hi)<<32)
		case FieldBool:
			fv.Bool = buf[pos] == 1
			pos++
		}
		fields[i] = fv
	}
	return &Doc{ID: id, Fields: fields}, nil
}

func appendString(buf []byte, s string) []byte {
	buf = codec.AppendUvarint(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendFloat64(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(bits>>(8*i)))
	}
	return buf
}

func readFloat64(buf []byte) float64 {
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(buf[i]) << (8 * i)
	}
	return math.Float64frombits(bits)
}
