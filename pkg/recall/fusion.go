package recall

import (
	"sort"
)

// fuseRRF merges several strategies' ranked hit lists with Reciprocal Rank
// Fusion: each id at 0-based rank r in a list contributes 1/(K+r+1); ids
// occurring in multiple lists accumulate both
// contributions and both sources. The merged list is sorted by score DESC
// with an ascending-id tie-break, for byte-identical output across runs
// against the same snapshot.
func fuseRRF(results []strategyResult, k int) []fusedCandidate {
	scores := make(map[string]float64)
	sources := make(map[string]map[string]bool)

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for rank, hit := range r.Hits {
			scores[hit.MemoryID] += 1.0 / float64(k+rank+1)
			if sources[hit.MemoryID] == nil {
				sources[hit.MemoryID] = make(map[string]bool)
			}
			sources[hit.MemoryID][string(r.Method)] = true
		}
	}

	out := make([]fusedCandidate, 0, len(scores))
	for id, score := range scores {
		srcSet := sources[id]
		srcList := make([]string, 0, len(srcSet))
		for s := range srcSet {
			srcList = append(srcList, s)
		}
		sort.Strings(srcList)
		out = append(out, fusedCandidate{MemoryID: id, RRF: score, Sources: srcList})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRF != out[j].RRF {
			return out[i].RRF > out[j].RRF
		}
		return out[i].MemoryID < out[j].MemoryID
	})
	return out
}

// rrfRange returns the min and max RRF score across candidates, for the
// hybrid scorer's normalization step.
func rrfRange(candidates []fusedCandidate) (min, max float64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	min, max = candidates[0].RRF, candidates[0].RRF
	for _, c := range candidates[1:] {
		if c.RRF < min {
			min = c.RRF
		}
		if c.RRF > max {
			max = c.RRF
		}
	}
	return min, max
}
