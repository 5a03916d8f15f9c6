// Package query defines the closed set of query AST node kinds the
// matcher and executor understand. It is factored out of the root ember
// package (which re-exports everything here as type aliases) so the
// search package can depend on the AST without creating an import cycle
// back through ember.
package query

// Query is the marker interface every concrete AST node implements; the
// matcher switches on the concrete type (see search/matcher.go).
type Query interface {
	isQuery()
	Boost() float64
}

type queryBase struct {
	boost float64
}

func (queryBase) isQuery() {}
func (q queryBase) Boost() float64 {
	if q.boost == 0 {
		return 1.0
	}
	return q.boost
}

// Term matches documents whose named text field contains Value as a
// case-insensitive substring of its raw text. Field "_all" matches if
// any text field of the document does.
type Term struct {
	queryBase
	Field string
	Value string
}

func NewTerm(field, value string) *Term { return &Term{Field: field, Value: value} }

func (q *Term) WithBoost(b float64) *Term { q.boost = b; return q }

// Phrase matches an ordered run of terms in Field, allowing Slop gaps
// between them.
type Phrase struct {
	queryBase
	Field string
	Terms []string
	Slop  int
}

func NewPhrase(field string, terms []string) *Phrase { return &Phrase{Field: field, Terms: terms} }

func (q *Phrase) WithSlop(slop int) *Phrase { q.Slop = slop; return q }

func (q *Phrase) WithBoost(b float64) *Phrase { q.boost = b; return q }

// Bool composes Must/Should/MustNot/Filter sub-clauses. Must clauses all
// match; must_not none match; at least one should matches when Should is
// non-empty, subject to MinimumShouldMatch (default 1). Filter behaves
// like Must but contributes zero to score.
type Bool struct {
	queryBase
	Must               []Query
	Should             []Query
	MustNot            []Query
	Filter             []Query
	MinimumShouldMatch int
}

func NewBool() *Bool { return &Bool{MinimumShouldMatch: 1} }

func (q *Bool) AddMust(sub Query) *Bool    { q.Must = append(q.Must, sub); return q }
func (q *Bool) AddShould(sub Query) *Bool  { q.Should = append(q.Should, sub); return q }
func (q *Bool) AddMustNot(sub Query) *Bool { q.MustNot = append(q.MustNot, sub); return q }
func (q *Bool) AddFilter(sub Query) *Bool  { q.Filter = append(q.Filter, sub); return q }
func (q *Bool) WithMinimumShouldMatch(n int) *Bool {
	q.MinimumShouldMatch = n
	return q
}

// Range matches Number or Date fields bounded by any combination of
// Gt/Gte/Lt/Lte. Text fields never match a range query.
type Range struct {
	queryBase
	Field           string
	Gt, Gte         *float64
	Lt, Lte         *float64
	DateGt, DateGte *int64
	DateLt, DateLte *int64
	IsDate          bool
}

func NewRange(field string) *Range { return &Range{Field: field} }

func (q *Range) WithBoost(b float64) *Range { q.boost = b; return q }

func (q *Range) WithGt(v float64) *Range  { q.Gt = &v; return q }
func (q *Range) WithGte(v float64) *Range { q.Gte = &v; return q }
func (q *Range) WithLt(v float64) *Range  { q.Lt = &v; return q }
func (q *Range) WithLte(v float64) *Range { q.Lte = &v; return q }

func (q *Range) WithDateGt(v int64) *Range  { q.DateGt = &v; q.IsDate = true; return q }
func (q *Range) WithDateGte(v int64) *Range { q.DateGte = &v; q.IsDate = true; return q }
func (q *Range) WithDateLt(v int64) *Range  { q.DateLt = &v; q.IsDate = true; return q }
func (q *Range) WithDateLte(v int64) *Range { q.DateLte = &v; q.IsDate = true; return q }

// Prefix matches documents containing any term in Field beginning with
// Prefix (checked against the document's own tokens).
type Prefix struct {
	queryBase
	Field  string
	Prefix string
}

func NewPrefix(field, prefix string) *Prefix { return &Prefix{Field: field, Prefix: prefix} }

// Wildcard matches a glob pattern over Field's terms. '*' matches any run
// of characters, '?' matches exactly one; the pattern is implicitly
// anchored at both ends.
type Wildcard struct {
	queryBase
	Field   string
	Pattern string
}

func NewWildcard(field, pattern string) *Wildcard { return &Wildcard{Field: field, Pattern: pattern} }

// Fuzzy matches terms within MaxEditDistance (0, 1 or 2) of Term,
// optionally requiring an exact PrefixLength match first. Transpositions
// selects Damerau-Levenshtein (an adjacent transposition counts as one
// edit rather than two) over plain Levenshtein; defaults to true.
type Fuzzy struct {
	queryBase
	Field           string
	Term            string
	MaxEditDistance int
	PrefixLength    int
	Transpositions  bool
}

func NewFuzzy(field, term string) *Fuzzy {
	return &Fuzzy{Field: field, Term: term, MaxEditDistance: 1, Transpositions: true}
}

func (q *Fuzzy) WithMaxEditDistance(d int) *Fuzzy { q.MaxEditDistance = d; return q }
func (q *Fuzzy) WithPrefixLength(n int) *Fuzzy     { q.PrefixLength = n; return q }
func (q *Fuzzy) WithTranspositions(t bool) *Fuzzy  { q.Transpositions = t; return q }

// MatchAll matches every live document.
type MatchAll struct{ queryBase }

func NewMatchAll() *MatchAll { return &MatchAll{} }
