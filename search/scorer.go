package search

import (
	"github.com/emberdb/ember/index"
	"github.com/emberdb/ember/query"
)

// Kind is the closed set of scoring kernels the executor can be
// configured with.
type Kind uint8

const (
	ScoreBM25 Kind = iota
	ScoreTFIDF
	ScoreUnit
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// termStats bundles what a leaf term score needs out of a segment: the
// raw term frequency within this document's field and the dictionary's
// document-frequency-derived IDF.
type termStats struct {
	termFreq uint32
	idf      float64
}

// score computes one term's contribution for the configured kernel.
func score(kind Kind, stats termStats, docLength uint32, avgDocLength float64) float64 {
	if kind == ScoreUnit {
		return 1.0
	}
	tf := float64(stats.termFreq)
	switch kind {
	case ScoreTFIDF:
		normalized := tf
		if docLength > 0 {
			normalized = tf / float64(docLength)
		}
		return normalized * stats.idf
	case ScoreBM25:
		if avgDocLength == 0 {
			avgDocLength = float64(docLength)
		}
		denom := tf + bm25K1*(1-bm25B+bm25B*float64(docLength)/maxFloat(avgDocLength, 1))
		if denom == 0 {
			return 0
		}
		return stats.idf * tf * (bm25K1 + 1) / denom
	}
	return 0
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// docStats is the per-document, per-segment context the scorer needs:
// field token counts (for per-field tf) and the segment-wide average
// document length / document count feeding IDF and BM25's length norm.
type docStats struct {
	docID        uint64
	docLength    uint32
	avgDocLength float64
	totalDocs    uint64
	idx          *index.IdxReader
}

// Score walks q's AST, summing leaf-term contributions over must/should
// clauses (each multiplied by its own Boost()), mirroring the matcher's
// structure. Phrase queries score as a flat 1.0 (unit), per the
// reference scorer; filter and must_not clauses never contribute.
func Score(kind Kind, q query.Query, doc *index.Doc, stats docStats) float64 {
	switch n := q.(type) {
	case *query.Term:
		return n.Boost() * termScore(kind, n.Field, n.Value, doc, stats)
	case *query.Phrase:
		return n.Boost() * 1.0
	case *query.Prefix, *query.Wildcard, *query.Fuzzy:
		// Enumerated-term queries score as a flat match weight; the
		// reference scorer does not re-derive per-term IDF for a
		// multi-term match set.
		return n.Boost() * 1.0
	case *query.Bool:
		var total float64
		for _, sub := range n.Must {
			total += Score(kind, sub, doc, stats)
		}
		for _, sub := range n.Should {
			if Match(sub, doc) {
				total += Score(kind, sub, doc, stats)
			}
		}
		return total * n.Boost()
	case *query.Range:
		return n.Boost() * 1.0
	case *query.MatchAll:
		return 1.0
	default:
		return 0
	}
}

func termScore(kind Kind, fieldName, value string, doc *index.Doc, stats docStats) float64 {
	f, ok := field(doc, fieldName)
	lookupField := fieldName
	if !ok && fieldName == "_all" {
		lookupField = "_all"
	} else if !ok {
		return 0
	}

	var tf uint32
	if fieldName == "_all" {
		for _, ff := range doc.Fields {
			if ff.Kind != index.FieldText {
				continue
			}
			for _, t := range ff.Tokens {
				if string(t.Term) == value {
					tf++
				}
			}
		}
	} else {
		for _, t := range f.Tokens {
			if string(t.Term) == value {
				tf++
			}
		}
	}
	if tf == 0 {
		return 0
	}

	idfVal := 0.0
	if stats.idx != nil {
		if entry, ok := stats.idx.Dictionary().Lookup(dictKeyFor(lookupField, value)); ok {
			idfVal = entry.IDF(stats.totalDocs)
		}
	}
	return score(kind, termStats{termFreq: tf, idf: idfVal}, stats.docLength, stats.avgDocLength)
}

// dictKeyFor mirrors index's internal field\x00term compound key scheme
// (duplicated here rather than exported, since it's a one-line format
// both packages happen to agree on via index.IdxReader.GetPostings).
func dictKeyFor(field, term string) string { return field + "\x00" + term }
