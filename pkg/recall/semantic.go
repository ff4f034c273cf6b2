package recall

import (
	"context"

	"github.com/kittclouds/gokitt/internal/store"
)

// semanticStrategy embeds the query once and ranks memories by cosine
// similarity (1 - distance) over the bank's vector index. Tag filtering is
// deferred to hydration; this strategy is unfiltered.
func semanticStrategy(ctx context.Context, db *store.Store, cfg Config, bankID, query string, limit int) strategyResult {
	if cfg.Embed == nil {
		return strategyResult{Method: MethodSemantic, Err: ErrEmbedRequired}
	}
	vec, err := cfg.Embed(query)
	if err != nil {
		return strategyResult{Method: MethodSemantic, Err: err}
	}
	matches, err := db.KNN(bankID, vec, limit)
	if err != nil {
		return strategyResult{Method: MethodSemantic, Err: err}
	}
	hits := make([]strategyHit, len(matches))
	for i, m := range matches {
		hits[i] = strategyHit{MemoryID: m.MemoryID, Score: clamp01(1 - m.Distance)}
	}
	return strategyResult{Method: MethodSemantic, Hits: hits}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
