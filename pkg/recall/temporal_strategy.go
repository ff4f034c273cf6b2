package recall

import (
	"sort"

	"github.com/kittclouds/gokitt/internal/store"
)

// temporalStrategy scores every memory overlapping [from, to] by how
// recent its anchor instant is within that window, ordering newest first.
func temporalStrategy(db *store.Store, bankID string, from, to int64, limit int) strategyResult {
	candidates, err := db.TemporalCandidates(bankID, from, to)
	if err != nil {
		return strategyResult{Method: MethodTemporal, Err: err}
	}
	if len(candidates) == 0 {
		return strategyResult{Method: MethodTemporal}
	}

	anchors := make([]int64, len(candidates))
	minAnchor, maxAnchor := candidates[0].Anchor(), candidates[0].Anchor()
	for i, m := range candidates {
		a := m.Anchor()
		anchors[i] = a
		if a < minAnchor {
			minAnchor = a
		}
		if a > maxAnchor {
			maxAnchor = a
		}
	}

	type scored struct {
		id     string
		anchor int64
		score  float64
	}
	out := make([]scored, len(candidates))
	rangeSpan := float64(maxAnchor - minAnchor)
	for i, m := range candidates {
		var score float64
		if rangeSpan == 0 {
			score = 1
		} else {
			score = float64(anchors[i]-minAnchor) / rangeSpan
		}
		out[i] = scored{id: m.ID, anchor: anchors[i], score: clamp01(score)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].anchor != out[j].anchor {
			return out[i].anchor > out[j].anchor
		}
		return out[i].id < out[j].id
	})
	if len(out) > limit {
		out = out[:limit]
	}

	hits := make([]strategyHit, len(out))
	for i, o := range out {
		hits[i] = strategyHit{MemoryID: o.id, Score: o.score}
	}
	return strategyResult{Method: MethodTemporal, Hits: hits}
}
