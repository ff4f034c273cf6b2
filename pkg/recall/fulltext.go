package recall

import (
	"strings"

	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/gokitt/internal/store"
	implicitmatcher "github.com/kittclouds/gokitt/pkg/implicit-matcher"
)

var enStopwords = stopwords.MustGet("en")

// buildFTSQuery tokenizes query, drops stopwords, quotes each remaining
// token for literal matching, and OR-joins them — an OR-joined query
// casts the widest net BM25 can rank, since AND would require every term
// present.
func buildFTSQuery(query string) string {
	tokens := implicitmatcher.TokenizeNorm(query)
	var kept []string
	for _, tok := range tokens {
		if enStopwords.Contains(tok) {
			continue
		}
		kept = append(kept, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(kept, " OR ")
}

// fulltextStrategy runs a BM25 query against the porter-stemmed FTS index,
// normalizing FTS5's raw bm25() rank (more negative is better) to a
// [0,1] score where 1 is the best match in the returned set.
func fulltextStrategy(db *store.Store, bankID, query string, limit int) strategyResult {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return strategyResult{Method: MethodFulltext}
	}

	matches, err := db.FullTextSearch(bankID, ftsQuery, limit)
	if err != nil {
		return strategyResult{Method: MethodFulltext, Err: err}
	}
	if len(matches) == 0 {
		return strategyResult{Method: MethodFulltext}
	}

	minRank, maxRank := matches[0].Rank, matches[0].Rank
	for _, m := range matches[1:] {
		if m.Rank < minRank {
			minRank = m.Rank
		}
		if m.Rank > maxRank {
			maxRank = m.Rank
		}
	}

	hits := make([]strategyHit, len(matches))
	for i, m := range matches {
		var score float64
		if maxRank == minRank {
			score = 1
		} else {
			score = (maxRank - m.Rank) / (maxRank - minRank)
		}
		hits[i] = strategyHit{MemoryID: m.MemoryID, Score: clamp01(score)}
	}
	return strategyResult{Method: MethodFulltext, Hits: hits}
}
