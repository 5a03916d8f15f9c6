// Package search implements query evaluation: the per-document matcher,
// the per-snapshot executor that orchestrates matcher + scorer with
// top-K collection, the BM25/TF-IDF/unit scoring kernels, and the
// hash-keyed LRU query result cache.
package search

import (
	"strings"

	"github.com/emberdb/ember/index"
	"github.com/emberdb/ember/query"
)

// Match evaluates q against doc, returning whether it matches.
func Match(q query.Query, doc *index.Doc) bool {
	switch n := q.(type) {
	case *query.Term:
		return matchTerm(n, doc)
	case *query.Phrase:
		return matchPhrase(n, doc)
	case *query.Bool:
		return matchBool(n, doc)
	case *query.Range:
		return matchRange(n, doc)
	case *query.Prefix:
		return matchField(doc, n.Field, func(term string) bool {
			return strings.HasPrefix(term, n.Prefix)
		})
	case *query.Wildcard:
		return matchField(doc, n.Field, func(term string) bool {
			return index.GlobMatch(n.Pattern, term)
		})
	case *query.Fuzzy:
		return matchField(doc, n.Field, func(term string) bool {
			if n.PrefixLength > 0 && !strings.HasPrefix(term, shortPrefix(n.Term, n.PrefixLength)) {
				return false
			}
			return index.EditDistance(n.Term, term, n.MaxEditDistance, n.Transpositions) <= n.MaxEditDistance
		})
	case *query.MatchAll:
		return true
	default:
		return false
	}
}

func shortPrefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func field(doc *index.Doc, name string) (index.FieldValue, bool) {
	for _, f := range doc.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return index.FieldValue{}, false
}

// matchTerm matches a case-insensitive substring of q.Value against the
// field's raw stored text, not an exact analyzed-token match: field
// "_all" matches if any text field contains it, otherwise only the named
// field is consulted. This mirrors the original implementation's
// field_contains_text/doc_contains_text (lowercase + Contains against the
// raw text), not a term-dictionary lookup.
func matchTerm(q *query.Term, doc *index.Doc) bool {
	needle := strings.ToLower(q.Value)
	if q.Field == "_all" {
		for _, f := range doc.Fields {
			if f.Kind == index.FieldText && strings.Contains(strings.ToLower(f.Text), needle) {
				return true
			}
		}
		return false
	}
	f, ok := field(doc, q.Field)
	if !ok || f.Kind != index.FieldText {
		return false
	}
	return strings.Contains(strings.ToLower(f.Text), needle)
}

// matchField applies predicate to every token's term in the named field
// (or every text field, for "_all"), matching if any satisfies it.
func matchField(doc *index.Doc, fieldName string, predicate func(term string) bool) bool {
	check := func(f index.FieldValue) bool {
		if f.Kind != index.FieldText {
			return false
		}
		seen := map[string]bool{}
		for _, t := range f.Tokens {
			term := string(t.Term)
			if seen[term] {
				continue
			}
			seen[term] = true
			if predicate(term) {
				return true
			}
		}
		return false
	}
	if fieldName == "_all" {
		for _, f := range doc.Fields {
			if check(f) {
				return true
			}
		}
		return false
	}
	f, ok := field(doc, fieldName)
	if !ok {
		return false
	}
	return check(f)
}

// matchPhrase requires the phrase's terms to occur in doc's field in
// order, with total position gaps summing to at most slop. slop == 0
// requires strictly consecutive positions.
func matchPhrase(q *query.Phrase, doc *index.Doc) bool {
	f, ok := field(doc, q.Field)
	if !ok || f.Kind != index.FieldText || len(q.Terms) == 0 {
		return false
	}
	positionsOf := make([][]int, len(q.Terms))
	for i, term := range q.Terms {
		for _, t := range f.Tokens {
			if string(t.Term) == term {
				positionsOf[i] = append(positionsOf[i], t.Position)
			}
		}
		if len(positionsOf[i]) == 0 {
			return false
		}
	}
	return hasOrderedRun(positionsOf, q.Slop)
}

// hasOrderedRun tries every starting position of the first term and
// greedily extends, accepting the first occurrence of each subsequent
// term within the remaining slop budget.
func hasOrderedRun(positionsOf [][]int, slop int) bool {
	for _, start := range positionsOf[0] {
		prev := start
		remaining := slop
		ok := true
		for i := 1; i < len(positionsOf); i++ {
			found := false
			for _, p := range positionsOf[i] {
				if p <= prev {
					continue
				}
				gap := p - prev - 1
				if gap <= remaining {
					prev = p
					remaining -= gap
					found = true
					break
				}
			}
			if !found {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matchBool(q *query.Bool, doc *index.Doc) bool {
	for _, sub := range q.Must {
		if !Match(sub, doc) {
			return false
		}
	}
	for _, sub := range q.Filter {
		if !Match(sub, doc) {
			return false
		}
	}
	for _, sub := range q.MustNot {
		if Match(sub, doc) {
			return false
		}
	}
	if len(q.Should) > 0 {
		matched := 0
		for _, sub := range q.Should {
			if Match(sub, doc) {
				matched++
			}
		}
		minimum := q.MinimumShouldMatch
		if minimum <= 0 {
			minimum = 1
		}
		if matched < minimum {
			return false
		}
	}
	return true
}

func matchRange(q *query.Range, doc *index.Doc) bool {
	f, ok := field(doc, q.Field)
	if !ok {
		return false
	}
	if q.IsDate {
		if f.Kind != index.FieldDate {
			return false
		}
		v := f.DateUnixNano
		return boundsOK64(v, q.DateGt, q.DateGte, q.DateLt, q.DateLte)
	}
	if f.Kind != index.FieldNumber {
		return false
	}
	return boundsOKFloat(f.Number, q.Gt, q.Gte, q.Lt, q.Lte)
}

func boundsOKFloat(v float64, gt, gte, lt, lte *float64) bool {
	if gt != nil && !(v > *gt) {
		return false
	}
	if gte != nil && !(v >= *gte) {
		return false
	}
	if lt != nil && !(v < *lt) {
		return false
	}
	if lte != nil && !(v <= *lte) {
		return false
	}
	return true
}

func boundsOK64(v int64, gt, gte, lt, lte *int64) bool {
	if gt != nil && !(v > *gt) {
		return false
	}
	if gte != nil && !(v >= *gte) {
		return false
	}
	if lt != nil && !(v < *lt) {
		return false
	}
	if lte != nil && !(v <= *lte) {
		return false
	}
	return true
}
