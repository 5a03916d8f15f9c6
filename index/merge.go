package index

import (
	"math"
	"sort"
)

// MergePolicyKind is the closed set of merge policies the writer can be
// configured with.
type MergePolicyKind uint8

const (
	MergePolicyTiered MergePolicyKind = iota
	MergePolicyLogStructured
)

const smallSegmentBytes = 10 << 20 // segments under 10 MiB are "small"

// MergePolicy selects candidate segments for background merging given
// the current segment set and the configured maximum segment size.
type MergePolicy struct {
	Kind           MergePolicyKind
	MaxSegmentSize int64
}

// SelectCandidates returns the segments to merge, or nil if no merge
// should run right now.
func (p MergePolicy) SelectCandidates(segments []SegmentMeta) []SegmentMeta {
	switch p.Kind {
	case MergePolicyLogStructured:
		return p.selectLogStructured(segments)
	default:
		return p.selectTiered(segments)
	}
}

func sizeTier(byteSize int64) int {
	if byteSize <= 0 {
		return 0
	}
	return int(math.Log10(float64(byteSize)))
}

func (p MergePolicy) selectTiered(segments []SegmentMeta) []SegmentMeta {
	tiers := map[int][]SegmentMeta{}
	smallCount := 0
	for _, s := range segments {
		tiers[sizeTier(s.ByteSize)] = append(tiers[sizeTier(s.ByteSize)], s)
		if s.ByteSize < smallSegmentBytes {
			smallCount++
		}
	}

	triggered := smallCount >= 2
	if !triggered {
		for _, members := range tiers {
			if len(members) > 10 {
				triggered = true
				break
			}
		}
	}
	if !triggered {
		return nil
	}

	return p.accumulateCandidates(segments)
}

func (p MergePolicy) selectLogStructured(segments []SegmentMeta) []SegmentMeta {
	tiers := map[int][]SegmentMeta{}
	for _, s := range segments {
		tiers[sizeTier(s.ByteSize)] = append(tiers[sizeTier(s.ByteSize)], s)
	}
	for _, members := range tiers {
		if len(members) > 4 {
			sort.Slice(members, func(i, j int) bool { return members[i].ByteSize < members[j].ByteSize })
			return members
		}
	}
	return nil
}

// accumulateCandidates sorts segments ascending by size and accumulates
// until total bytes would exceed half the max segment size, or 10
// candidates are selected, whichever comes first. Fewer than 2
// candidates means no merge.
func (p MergePolicy) accumulateCandidates(segments []SegmentMeta) []SegmentMeta {
	sorted := append([]SegmentMeta(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ByteSize < sorted[j].ByteSize })

	half := p.MaxSegmentSize / 2
	var out []SegmentMeta
	var total int64
	for _, s := range sorted {
		if len(out) >= 10 {
			break
		}
		if total+s.ByteSize > half && len(out) > 0 {
			break
		}
		out = append(out, s)
		total += s.ByteSize
	}
	if len(out) < 2 {
		return nil
	}
	return out
}
