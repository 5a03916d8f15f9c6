package index

import (
	"bytes"
	"sort"

	"github.com/blevesearch/vellum"
)

// DictEntry is the per-term bookkeeping the term dictionary carries:
// document frequency, total frequency (Σ term_freqs), a lazily cached
// IDF, and the offset+size of the term's posting block within the
// segment's .idx payload.
type DictEntry struct {
	Term          string
	DocFreq       int
	TotalFreq     uint64
	idf           float64
	idfCached     bool
	PostingOffset uint64
	PostingSize   uint64
}

// IDF returns ln((N+1)/(df+1)), computing and caching it against the
// given snapshot document count on first use.
func (e *DictEntry) IDF(snapshotDocCount uint64) float64 {
	if e.idfCached {
		return e.idf
	}
	e.idf = idf(snapshotDocCount, uint64(e.DocFreq))
	e.idfCached = true
	return e.idf
}

func idf(n, df uint64) float64 {
	return ln((float64(n) + 1) / (float64(df) + 1))
}

// Dictionary is a segment's term -> posting-list-location index, backed
// by an FST (github.com/blevesearch/vellum) mapping each sorted term to
// an ordinal into a parallel DictEntry array. The FST gives O(1)-ish exact
// lookup and true range iteration for prefix enumeration without holding
// every term as a Go string in a map.
type Dictionary struct {
	fst     *vellum.FST
	entries []DictEntry
}

// DictionaryBuilder accumulates (term -> DictEntry) pairs and finalizes
// them into a Dictionary backed by a freshly built FST. Terms may be
// added in any order; Build sorts them before the FST insert, which
// requires strictly increasing key order.
type DictionaryBuilder struct {
	entries map[string]*DictEntry
}

func NewDictionaryBuilder() *DictionaryBuilder {
	return &DictionaryBuilder{entries: map[string]*DictEntry{}}
}

func (b *DictionaryBuilder) Entry(term string) *DictEntry {
	e, ok := b.entries[term]
	if !ok {
		e = &DictEntry{Term: term}
		b.entries[term] = e
	}
	return e
}

// Build constructs the FST and returns the finished Dictionary along
// with the serialized FST bytes (the caller persists these into the
// segment's .idx block).
func (b *DictionaryBuilder) Build() (*Dictionary, []byte, error) {
	terms := make([]string, 0, len(b.entries))
	for t := range b.entries {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var buf bytes.Buffer
	fstBuilder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]DictEntry, len(terms))
	for i, t := range terms {
		entries[i] = *b.entries[t]
		if err := fstBuilder.Insert([]byte(t), uint64(i)); err != nil {
			return nil, nil, err
		}
	}
	if err := fstBuilder.Close(); err != nil {
		return nil, nil, err
	}

	fstBytes := buf.Bytes()
	fst, err := vellum.Load(fstBytes)
	if err != nil {
		return nil, nil, err
	}

	return &Dictionary{fst: fst, entries: entries}, fstBytes, nil
}

// LoadDictionary reconstructs a Dictionary from a previously serialized
// FST plus its parallel entry array (read back from the segment's .idx
// block by the segment reader).
func LoadDictionary(fstBytes []byte, entries []DictEntry) (*Dictionary, error) {
	fst, err := vellum.Load(fstBytes)
	if err != nil {
		return nil, err
	}
	return &Dictionary{fst: fst, entries: entries}, nil
}

// Lookup performs an exact term lookup.
func (d *Dictionary) Lookup(term string) (*DictEntry, bool) {
	ord, exists, err := d.fst.Get([]byte(term))
	if err != nil || !exists {
		return nil, false
	}
	return &d.entries[ord], true
}

// Contains reports whether term exists in the dictionary.
func (d *Dictionary) Contains(term string) bool {
	_, ok := d.Lookup(term)
	return ok
}

// Len returns the number of distinct terms in the dictionary.
func (d *Dictionary) Len() int { return len(d.entries) }

// PrefixEnumerate returns all terms starting with prefix, in
// lexicographic order, using the FST's range iterator. minLen is the
// configured minimum prefix length; callers are expected to enforce it
// before calling (kept here only as a defensive check).
func (d *Dictionary) PrefixEnumerate(prefix string, minLen int) ([]string, error) {
	if len(prefix) < minLen {
		return nil, nil
	}
	start := []byte(prefix)
	end := prefixUpperBound(start)

	itr, err := d.fst.Iterator(start, end)
	if err == vellum.ErrIteratorDone {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for err == nil {
		k, _ := itr.Current()
		out = append(out, string(k))
		err = itr.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, err
	}
	return out, nil
}

// prefixUpperBound returns the smallest key that is lexicographically
// greater than every key starting with prefix, or nil if prefix is all
// 0xff bytes (meaning "no upper bound", i.e. iterate to the FST's end).
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// WildcardEnumerate scans every term in the dictionary and returns those
// matching the glob pattern ('*' = any run, '?' = single character,
// implicitly anchored at both ends).
func (d *Dictionary) WildcardEnumerate(pattern string) ([]string, error) {
	var out []string
	err := d.scan(func(term string) {
		if GlobMatch(pattern, term) {
			out = append(out, term)
		}
	})
	return out, err
}

// scanField walks only the compound keys belonging to field, via the
// same prefix-range trick PrefixEnumerate uses, handing visit the bare
// term (the compound key with the "field\x00" header stripped).
func (d *Dictionary) scanField(field string, visit func(term string)) error {
	start := []byte(field + "\x00")
	end := prefixUpperBound(start)
	itr, err := d.fst.Iterator(start, end)
	if err == vellum.ErrIteratorDone {
		return nil
	}
	if err != nil {
		return err
	}
	for err == nil {
		k, _ := itr.Current()
		_, term := splitTermKey(string(k))
		visit(term)
		err = itr.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return err
	}
	return nil
}

// PrefixEnumerateField is PrefixEnumerate scoped to one field, returning
// bare terms rather than compound dictionary keys.
func (d *Dictionary) PrefixEnumerateField(field, prefix string, minLen int) ([]string, error) {
	if len(prefix) < minLen {
		return nil, nil
	}
	compound, err := d.PrefixEnumerate(field+"\x00"+prefix, 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(compound))
	for i, c := range compound {
		_, out[i] = splitTermKey(c)
	}
	return out, nil
}

// WildcardEnumerateField scans only field's terms for pattern matches.
func (d *Dictionary) WildcardEnumerateField(field, pattern string) ([]string, error) {
	var out []string
	err := d.scanField(field, func(term string) {
		if GlobMatch(pattern, term) {
			out = append(out, term)
		}
	})
	return out, err
}

// FuzzyEnumerateField scans only field's terms for fuzzy matches. damerau
// selects Damerau-Levenshtein (adjacent transpositions count as one edit)
// over plain Levenshtein, per spec.md §4.3's "configurable" distance.
func (d *Dictionary) FuzzyEnumerateField(field, term string, maxEditDistance int, prefix string, damerau bool) ([]FuzzyMatch, error) {
	var out []FuzzyMatch
	err := d.scanField(field, func(candidate string) {
		if prefix != "" && !bytesHasPrefix(candidate, prefix) {
			return
		}
		dist := editDistance(term, candidate, maxEditDistance, damerau)
		if dist <= maxEditDistance {
			out = append(out, FuzzyMatch{Term: candidate, Distance: dist})
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Term < out[j].Term
	})
	return out, nil
}

// FuzzyMatch is one (term, distance) result of fuzzy enumeration.
type FuzzyMatch struct {
	Term     string
	Distance int
}

// FuzzyEnumerate scans every term and returns those within maxEditDistance
// of term (Damerau-Levenshtein when damerau is true, plain Levenshtein
// otherwise), subject to an optional hard prefix filter. Results are
// sorted by ascending distance, ties broken lexicographically. Distance 0
// degenerates to exact match.
func (d *Dictionary) FuzzyEnumerate(term string, maxEditDistance int, prefix string, damerau bool) ([]FuzzyMatch, error) {
	var out []FuzzyMatch
	err := d.scan(func(candidate string) {
		if prefix != "" && !bytesHasPrefix(candidate, prefix) {
			return
		}
		dist := editDistance(term, candidate, maxEditDistance, damerau)
		if dist <= maxEditDistance {
			out = append(out, FuzzyMatch{Term: candidate, Distance: dist})
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Term < out[j].Term
	})
	return out, nil
}

func bytesHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// scan walks every term in the dictionary in sorted order via the FST's
// unbounded iterator.
func (d *Dictionary) scan(visit func(term string)) error {
	itr, err := d.fst.Iterator(nil, nil)
	if err == vellum.ErrIteratorDone {
		return nil
	}
	if err != nil {
		return err
	}
	for err == nil {
		k, _ := itr.Current()
		visit(string(k))
		err = itr.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return err
	}
	return nil
}
