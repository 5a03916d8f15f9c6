package search

import (
	"container/heap"
	"io"
	"time"

	"github.com/emberdb/ember/index"
	"github.com/emberdb/ember/query"
	"github.com/pkg/errors"
)

const (
	defaultMaxDepth   = 10
	defaultMaxClauses = 1024
)

// Options configures one Execute call.
type Options struct {
	Limit              int
	Offset             int
	ScoreKind          Kind
	Validate           bool
	MaxDepth           int
	MaxClauses         int
	BanLeadingWildcard bool
	Timeout            time.Duration
}

// Hit is one scored result.
type Hit struct {
	DocID uint64
	Score float64
}

// Result is the outcome of one Execute call.
type Result struct {
	Hits            []Hit
	TotalCandidates int
	MaxScore        float64
	ElapsedMillis   int64
}

// Execute evaluates q over every segment of r, collecting the top
// (offset+limit) hits by score into a bounded min-heap, then returns
// them sorted by score descending.
func Execute(r *index.SnapshotReader, q query.Query, opts Options) (*Result, error) {
	start := time.Now()
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.MaxClauses <= 0 {
		opts.MaxClauses = defaultMaxClauses
	}
	if opts.Validate {
		if err := validate(q, opts.MaxDepth, opts.MaxClauses, opts.BanLeadingWildcard, 0); err != nil {
			return nil, err
		}
	}

	heapSize := opts.Limit + opts.Offset
	h := &hitHeap{}
	heap.Init(h)
	total := 0
	var maxScore float64
	stopAfterSegment := false

	for _, seg := range r.Segments {
		if opts.Timeout > 0 && time.Since(start) > opts.Timeout {
			break
		}
		avg := seg.Idx.AvgDocLength()
		it := seg.Seg.Iterator()
		for {
			doc, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if r.Snapshot.IsDeleted(doc.ID) {
				continue
			}
			if !Match(q, doc) {
				continue
			}
			total++
			docLen, _ := seg.Idx.DocLength(doc.ID)
			s := Score(opts.ScoreKind, q, doc, docStats{
				docID:        doc.ID,
				docLength:    docLen,
				avgDocLength: avg,
				totalDocs:    r.Snapshot.DocCount,
				idx:          seg.Idx,
			})
			if s > maxScore {
				maxScore = s
			}
			pushBounded(h, Hit{DocID: doc.ID, Score: s}, heapSize)

			// Early-termination hint: once we have >= 3x limit
			// candidates and the current k-th score already clears
			// 0.5, later segments are unlikely to change the top-K
			// materially; stop scanning further segments.
			if h.Len() >= 3*opts.Limit && h.Len() > 0 && (*h)[0].Score > 0.5 {
				stopAfterSegment = true
			}
		}
		if stopAfterSegment {
			break
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(hits) {
			hits = nil
		} else {
			hits = hits[opts.Offset:]
		}
	}
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	return &Result{
		Hits:            hits,
		TotalCandidates: total,
		MaxScore:        maxScore,
		ElapsedMillis:   time.Since(start).Milliseconds(),
	}, nil
}

// pushBounded maintains h as the top-`limit` hits by score using a
// min-heap: push, then pop the minimum if over capacity.
func pushBounded(h *hitHeap, hit Hit, limit int) {
	if limit <= 0 {
		return
	}
	if h.Len() < limit {
		heap.Push(h, hit)
		return
	}
	if hit.Score > (*h)[0].Score {
		heap.Pop(h)
		heap.Push(h, hit)
	}
}

type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// validate checks max depth and max boolean clause count, and optionally
// bans a leading wildcard (a pattern beginning with '*' or '?').
func validate(q query.Query, maxDepth, maxClauses int, banLeadingWildcard bool, depth int) error {
	if depth > maxDepth {
		return errors.New("search: query exceeds max depth")
	}
	switch n := q.(type) {
	case *query.Bool:
		total := len(n.Must) + len(n.Should) + len(n.MustNot) + len(n.Filter)
		if total > maxClauses {
			return errors.New("search: query exceeds max boolean clauses")
		}
		for _, sub := range allClauses(n) {
			if err := validate(sub, maxDepth, maxClauses, banLeadingWildcard, depth+1); err != nil {
				return err
			}
		}
	case *query.Wildcard:
		if banLeadingWildcard && len(n.Pattern) > 0 && (n.Pattern[0] == '*' || n.Pattern[0] == '?') {
			return errors.New("search: leading wildcard queries are disabled")
		}
	}
	return nil
}

func allClauses(b *query.Bool) []query.Query {
	var out []query.Query
	out = append(out, b.Must...)
	out = append(out, b.Should...)
	out = append(out, b.MustNot...)
	out = append(out, b.Filter...)
	return out
}
