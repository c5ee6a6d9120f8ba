package retrieval

import (
	"sort"
)

// DefaultRRFK is the conventional reciprocal-rank-fusion constant. Larger
// values flatten the contribution difference between adjacent ranks.
const DefaultRRFK = 60

// Fuse merges the lexical and dense candidate lists into one deduplicated
// ranking using reciprocal rank fusion: each appearance of a child chunk at
// rank r contributes 1/(kConst+r), and contributions sum across every list
// the chunk appears in. Ordering is fully deterministic — descending fused
// score, then best (lowest) contributing rank, then child ID — so identical
// inputs always produce identical output.
func Fuse(lexResults, denseResults []Candidate, kConst int) []FusedCandidate {
	if kConst <= 0 {
		kConst = DefaultRRFK
	}

	fused := make(map[string]*FusedCandidate)
	// order preserves first-seen order so map iteration never leaks into
	// the output.
	var order []string

	accumulate := func(candidates []Candidate) {
		for _, c := range candidates {
			f, ok := fused[c.ChildID]
			if !ok {
				f = &FusedCandidate{ChildID: c.ChildID}
				fused[c.ChildID] = f
				order = append(order, c.ChildID)
			}
			f.FusedScore += 1.0 / float64(kConst+c.Rank)
			f.ContributingRanks = append(f.ContributingRanks, SourceRank{
				Source: c.Source,
				Rank:   c.Rank,
			})
		}
	}
	accumulate(lexResults)
	accumulate(denseResults)

	out := make([]FusedCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *fused[id])
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		bi, bj := out[i].bestRank(), out[j].bestRank()
		if bi != bj {
			return bi < bj
		}
		return out[i].ChildID < out[j].ChildID
	})

	return out
}
