// Package index implements the segment-based inverted index: posting
// lists, skip lists, the term dictionary, segment read/write, the MVCC
// snapshot controller, the single-writer ingestion path and the merge
// policy. It is deliberately independent of the public ember.Document/
// ember.Field types so the facade package can depend on it without a
// dependency cycle; the facade translates its public types into the Doc
// representation defined here before handing documents to the Writer.
package index

// FieldKind mirrors ember.FieldKind without importing it.
type FieldKind uint8

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldDate
	FieldBool
)

// Token is one analyzed occurrence of a term within a text field.
// Position is strictly increasing within the field, per spec.
type Token struct {
	Term     []byte
	Position int
}

// FieldValue is the internal representation of one document field: enough
// to both build postings (Tokens, for FieldText) and reconstruct the
// original value for storage/retrieval.
type FieldValue struct {
	Name         string
	Kind         FieldKind
	Text         string
	Number       float64
	DateUnixNano int64
	Bool         bool
	Tokens       []Token
	Stored       bool
}

// Doc is the internal, analyzer-resolved form of a document as it is
// staged by the writer and serialized into a segment.
type Doc struct {
	ID     uint64
	Fields []FieldValue
}
