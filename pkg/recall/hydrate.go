package recall

import (
	"strings"

	"github.com/kittclouds/gokitt/internal/store"
	"github.com/kittclouds/gokitt/pkg/tagfilter"
)

// hydratedCandidate is a scored candidate after it has been joined back to
// its memory row and entity names, ready for filtering.
type hydratedCandidate struct {
	row      scoringRow
	memory   *store.MemoryUnit
	entities []*store.Entity
}

// hydrate batch-loads memory rows and memory-entity junctions for the
// scored candidates (three IN-queries total: the memory rows, then the
// junctions and their entity rows; no N+1), then applies every filter in
// rank order, stopping once limit candidates are accepted and skipping any
// candidate whose own content exceeds opts.MaxTokens.
func hydrate(
	db *store.Store,
	rows []scoringRow,
	opts RecallOptions,
) ([]hydratedCandidate, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.MemoryID
	}

	memories, err := db.GetMemoryUnits(ids)
	if err != nil {
		return nil, err
	}
	entitiesByMemory, err := db.GetEntitiesForMemories(ids)
	if err != nil {
		return nil, err
	}

	accepted := make([]hydratedCandidate, 0, opts.Limit)
	for _, row := range rows {
		if len(accepted) >= opts.Limit {
			break
		}
		m, ok := memories[row.MemoryID]
		if !ok {
			continue // missing referent: silently skipped
		}
		if !passesFilters(m, entitiesByMemory[row.MemoryID], opts) {
			continue
		}

		budget := opts.MaxTokens
		if budget <= 0 {
			budget = 1 << 30
		}
		if estimateTokens(m.Content) > budget {
			continue
		}

		accepted = append(accepted, hydratedCandidate{
			row:      row,
			memory:   m,
			entities: entitiesByMemory[row.MemoryID],
		})
	}
	return accepted, nil
}

func passesFilters(m *store.MemoryUnit, entities []*store.Entity, opts RecallOptions) bool {
	if opts.MinConfidence > 0 && m.Confidence < opts.MinConfidence {
		return false
	}
	if len(opts.FactTypes) > 0 && !containsStr(opts.FactTypes, string(m.FactType)) {
		return false
	}
	if len(opts.Tags) > 0 || opts.TagsMatch == tagfilter.AnyStrict || opts.TagsMatch == tagfilter.AllStrict {
		if !tagfilter.Matches(m.Tags, opts.Tags, opts.TagsMatch) {
			return false
		}
	}
	if len(opts.Entities) > 0 && !anyEntityNameMatches(entities, opts.Entities) {
		return false
	}
	if !ScopeMatches(m, opts.Scope, opts.ScopeMode) {
		return false
	}
	return true
}

func anyEntityNameMatches(entities []*store.Entity, wanted []string) bool {
	for _, e := range entities {
		for _, w := range wanted {
			if strings.EqualFold(e.Name, w) || strings.EqualFold(e.CanonicalName, w) {
				return true
			}
		}
	}
	return false
}

func containsStr(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// estimateTokens approximates a token count from character length, the
// same content_chars/4 heuristic the packer uses.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
