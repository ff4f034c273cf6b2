package recall

import (
	"math"
	"sort"

	"github.com/kittclouds/gokitt/internal/store"
)

// scoringRow accumulates every term the two scoring modes compute for one
// candidate, so the trace can report the full breakdown regardless of
// which mode actually ran.
type scoringRow struct {
	MemoryID string
	Sources  []string
	RRF      float64

	RRFNorm  float64
	Temporal float64
	Recency  float64
	CE       float64

	Probe  float64
	Base   float64
	Spread float64

	WMBoost  float64
	Location float64
	Combined float64
}

const millisPerDay = 24 * 60 * 60 * 1000

// sigmoid maps an unbounded rerank logit into (0,1).
func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// scoreCandidates computes the combined score for every fused candidate
// under the requested mode, then sorts by combined DESC with an
// ascending-id tie-break.
func scoreCandidates(
	mode ScoreMode,
	candidates []fusedCandidate,
	memories map[string]*store.MemoryUnit,
	semanticScores map[string]float64,
	temporalScores map[string]float64,
	cfg Config,
	now int64,
	wm *WorkingMemory,
	bankID, sessionID string,
	db *store.Store,
	rerankQuery string,
) ([]scoringRow, error) {
	rrfMin, rrfMax := rrfRange(candidates)

	rows := make([]scoringRow, 0, len(candidates))
	byID := make(map[string]int, len(candidates))
	for _, c := range candidates {
		m, ok := memories[c.MemoryID]
		if !ok {
			continue // missing referent: silently skipped
		}

		row := scoringRow{MemoryID: c.MemoryID, Sources: c.Sources, RRF: c.RRF}

		if rrfMax == rrfMin {
			row.RRFNorm = 0.5
		} else {
			row.RRFNorm = clamp01((c.RRF - rrfMin) / (rrfMax - rrfMin))
		}

		if t, ok := temporalScores[c.MemoryID]; ok {
			row.Temporal = t
		} else {
			row.Temporal = 0.5
		}

		daysSince := float64(now-m.Anchor()) / millisPerDay
		row.Recency = clamp(math.Max(0.1, 1-daysSince/365), 0.1, 1)

		sim := semanticScores[c.MemoryID]
		row.Probe = math.Pow(clamp01(sim), 1.35)

		row.Base = cognitiveBase(m, now)

		if wm != nil {
			row.WMBoost = wm.GetBoost(bankID, sessionID, c.MemoryID, now)
		}

		byID[c.MemoryID] = len(rows)
		rows = append(rows, row)
	}

	if mode == ModeCognitive {
		if err := applySpread(rows, byID, db); err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Combined = 0.5*rows[i].Probe + 0.35*rows[i].Base + 0.15*rows[i].Spread + rows[i].WMBoost
		}
	} else {
		ceScores, err := hybridCEScores(rows, cfg, rerankQuery, memories)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].CE = ceScores[i]
			rows[i].Combined = 0.6*rows[i].CE + 0.2*rows[i].RRFNorm + 0.1*rows[i].Temporal + 0.1*rows[i].Recency
		}
	}

	sortRowsByCombined(rows)
	return rows, nil
}

// sortRowsByCombined orders rows by combined score descending with an
// ascending-id tie-break, the same ordering scoreCandidates and the
// location-boost re-sort both rely on for deterministic output.
func sortRowsByCombined(rows []scoringRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Combined != rows[j].Combined {
			return rows[i].Combined > rows[j].Combined
		}
		return rows[i].MemoryID < rows[j].MemoryID
	})
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// cognitiveBase implements the ACT-R-inspired base-activation term: zero
// when the memory has never been recalled, otherwise decaying its encoding
// strength by elapsed time since last access over a 7-day time constant.
func cognitiveBase(m *store.MemoryUnit, now int64) float64 {
	if m.LastAccessed == nil {
		return 0
	}
	delta := now - *m.LastAccessed
	if delta < 0 {
		delta = 0
	}
	const tauMs = 7 * millisPerDay
	return m.EncodingStrength * math.Log(1+float64(m.AccessCount)) * math.Exp(-float64(delta)/tauMs)
}

// applySpread computes source_activation for every row, then the spread
// term from edges connecting candidates already in the pool.
func applySpread(rows []scoringRow, byID map[string]int, db *store.Store) error {
	ids := make([]string, len(rows))
	activation := make([]float64, len(rows))
	for i, r := range rows {
		ids[i] = r.MemoryID
		activation[i] = clamp01(0.7*r.Probe + 0.3*r.Base)
	}

	edges, err := db.EdgesAmong(ids)
	if err != nil {
		return err
	}

	sum := make([]float64, len(rows))
	for _, e := range edges {
		si, sok := byID[e.SourceID]
		ti, tok := byID[e.TargetID]
		if !sok || !tok {
			continue
		}
		sum[si] += e.Weight * activation[ti]
		sum[ti] += e.Weight * activation[si]
	}
	for i := range rows {
		rows[i].Spread = 1 - math.Exp(-sum[i])
	}
	return nil
}

// hybridCEScores resolves the optional cross-encoder rerank term: absent
// configuration falls back to the RRF-normalized score; a present reranker
// must score every row or the call fails with ErrRerankMismatch.
func hybridCEScores(rows []scoringRow, cfg Config, query string, memories map[string]*store.MemoryUnit) ([]float64, error) {
	out := make([]float64, len(rows))
	if cfg.Rerank == nil {
		for i, r := range rows {
			out[i] = r.RRFNorm
		}
		return out, nil
	}

	docs := make([]string, len(rows))
	for i, r := range rows {
		docs[i] = memories[r.MemoryID].Content
	}
	scores, err := cfg.Rerank(query, docs)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(rows) {
		return nil, ErrRerankMismatch
	}
	for i, s := range scores {
		out[i] = sigmoid(s)
	}
	return out, nil
}
