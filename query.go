package ember

import "github.com/emberdb/ember/query"

// Query and its concrete node types are re-exported from the query
// package so callers never need to import it directly. The AST itself
// lives in a separate package so the search package can depend on it
// without importing ember (see query/query.go).
type Query = query.Query

type TermQuery = query.Term

func NewTermQuery(field, value string) *TermQuery { return query.NewTerm(field, value) }

type PhraseQuery = query.Phrase

func NewPhraseQuery(field string, terms []string) *PhraseQuery { return query.NewPhrase(field, terms) }

type BoolQuery = query.Bool

func NewBoolQuery() *BoolQuery { return query.NewBool() }

type RangeQuery = query.Range

func NewRangeQuery(field string) *RangeQuery { return query.NewRange(field) }

type PrefixQuery = query.Prefix

func NewPrefixQuery(field, prefix string) *PrefixQuery { return query.NewPrefix(field, prefix) }

type WildcardQuery = query.Wildcard

func NewWildcardQuery(field, pattern string) *WildcardQuery { return query.NewWildcard(field, pattern) }

type FuzzyQuery = query.Fuzzy

func NewFuzzyQuery(field, term string) *FuzzyQuery { return query.NewFuzzy(field, term) }

type MatchAllQuery = query.MatchAll

func NewMatchAllQuery() *MatchAllQuery { return query.NewMatchAll() }
