package ember

import (
	"time"

	"github.com/emberdb/ember/analysis"
)

// DocId is the opaque 64-bit identifier assigned to a document when it is
// accepted by the writer.
type DocId uint64

// Analyzer and TokenStream are re-exported from the analysis package so
// callers configuring an Engine don't need a second import for the most
// common case.
type Analyzer = analysis.Analyzer
type TokenStream = analysis.TokenStream
type Token = analysis.Token

// Simple is the engine's minimal built-in Analyzer (see analysis.Simple).
var Simple Analyzer = analysis.Simple

// FieldKind is the closed tagged union of supported field value types.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldDate
	FieldBool
)

// Field is one named, typed value within a Document. Exactly one of the
// Text/Number/Date/Bool accessors is meaningful, selected by Kind.
type Field struct {
	Name  string
	Kind  FieldKind
	text  string
	num   float64
	date  time.Time
	boo   bool
	store bool
}

func NewTextField(name, value string) Field {
	return Field{Name: name, Kind: FieldText, text: value, store: true}
}

func NewNumberField(name string, value float64) Field {
	return Field{Name: name, Kind: FieldNumber, num: value, store: true}
}

func NewDateField(name string, value time.Time) Field {
	return Field{Name: name, Kind: FieldDate, date: value.UTC(), store: true}
}

func NewBoolField(name string, value bool) Field {
	return Field{Name: name, Kind: FieldBool, boo: value, store: true}
}

// WithoutStore marks the field as indexed but not retained for retrieval,
// mirroring bluge's Field.StoreValue() being opt-in rather than implicit.
func (f Field) WithoutStore() Field {
	f.store = false
	return f
}

func (f Field) Text() string       { return f.text }
func (f Field) Number() float64    { return f.num }
func (f Field) Date() time.Time    { return f.date }
func (f Field) Bool() bool         { return f.boo }
func (f Field) Stored() bool       { return f.store }

// Document is an immutable (once accepted by the writer) mapping from
// field name to typed value. ID is assigned by the caller; the engine
// never generates document identifiers itself.
type Document struct {
	ID     DocId
	Fields []Field
}

// NewDocument starts building a Document with the given id.
func NewDocument(id DocId) *Document {
	return &Document{ID: id}
}

func (d *Document) AddField(f Field) *Document {
	d.Fields = append(d.Fields, f)
	return d
}

// Field looks up the first field with the given name, if any.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
