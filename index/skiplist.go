package index

// skipEntry is one accelerator entry: the doc id found at a given
// absolute index into the decoded posting list, and the index itself.
type skipEntry struct {
	docID uint64
	index int
}

// SkipList accelerates intersection/lookup over a single decoded posting
// list by recording every sqrt(n)-th position (minimum interval 4).
type SkipList struct {
	ids     []uint64
	entries []skipEntry
}

// NewSkipList builds a skip list over pl's decoded doc ids.
func NewSkipList(pl *PostingList) (*SkipList, error) {
	ids, err := pl.DecodeDocIDs()
	if err != nil {
		return nil, err
	}
	return newSkipListFromIDs(ids), nil
}

func newSkipListFromIDs(ids []uint64) *SkipList {
	n := len(ids)
	interval := intervalFor(n)
	sl := &SkipList{ids: ids}
	for i := 0; i < n; i += interval {
		sl.entries = append(sl.entries, skipEntry{docID: ids[i], index: i})
	}
	return sl
}

func intervalFor(n int) int {
	interval := isqrt(n)
	if interval < 4 {
		interval = 4
	}
	return interval
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// Find walks skip entries to the last one <= target, then scans linearly
// forward, returning the exact index if present.
func (sl *SkipList) Find(target uint64) (int, bool) {
	if len(sl.ids) == 0 {
		return 0, false
	}
	// binary search the skip entries for the last one with docID <= target
	lo, hi := 0, len(sl.entries)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if sl.entries[mid].docID <= target {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	start := sl.entries[best].index
	for i := start; i < len(sl.ids); i++ {
		if sl.ids[i] == target {
			return i, true
		}
		if sl.ids[i] > target {
			break
		}
	}
	return 0, false
}

// Intersect merges two skip-list-accelerated posting id sequences,
// advancing the lagging cursor via the other side's skip entries. The
// result is equivalent to a naive linear merge, but runs in O(m + n/sqrt(n))
// in the skewed case where one list is much longer than the other.
func Intersect(a, b *SkipList) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		av, bv := a.ids[i], b.ids[j]
		switch {
		case av == bv:
			out = append(out, av)
			i++
			j++
		case av < bv:
			if idx, ok := a.skipTo(i, bv); ok {
				i = idx
			} else {
				i++
			}
		default:
			if idx, ok := b.skipTo(j, av); ok {
				j = idx
			} else {
				j++
			}
		}
	}
	return out
}

// skipTo advances from position `from` to the furthest skip-entry index
// whose docID is still <= target, using this list's own skip entries as
// the accelerator for the caller's cursor.
func (sl *SkipList) skipTo(from int, target uint64) (int, bool) {
	best := from
	for _, e := range sl.entries {
		if e.index > from && e.docID <= target {
			best = e.index
		}
		if e.docID > target {
			break
		}
	}
	if best > from {
		return best, true
	}
	return from, false
}

// IntersectIDs is a convenience entry point over raw sorted id slices,
// for callers (such as the set-operation tests) that have no
// PostingList wrapper.
func IntersectIDs(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// UnionIDs returns the sorted unique union of two sorted id slices.
func UnionIDs(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
