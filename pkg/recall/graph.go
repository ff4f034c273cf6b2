package recall

import (
	"sort"
	"sync"

	"github.com/kittclouds/gokitt/internal/store"
	implicitmatcher "github.com/kittclouds/gokitt/pkg/implicit-matcher"
)

var causalLinkTypes = map[string]bool{
	string(store.LinkCauses):   true,
	string(store.LinkCausedBy): true,
	string(store.LinkEnables):  true,
	string(store.LinkPrevents): true,
}

// edgeCache memoizes (link_type, direction, node) -> outbound edges so a
// multi-meta-path walk over the same frontier doesn't re-issue identical
// queries.
type edgeCache struct {
	mu     sync.RWMutex
	loaded map[string]bool
	edges  map[string][]store.LinkEdge
}

func newEdgeCache() *edgeCache {
	return &edgeCache{loaded: make(map[string]bool), edges: make(map[string][]store.LinkEdge)}
}

func cacheKey(linkType string, direction Direction, node string) string {
	return string(direction) + "|" + linkType + "|" + node
}

// edgesFor returns outbound edges for every node in nodeIDs, querying the
// store only for nodes not yet fully loaded, in chunks of at most
// chunkSize ids per query.
func (c *edgeCache) edgesFor(db *store.Store, linkType string, direction Direction, nodeIDs []string, chunkSize int) ([]store.LinkEdge, error) {
	c.mu.RLock()
	var missing []string
	var out []store.LinkEdge
	for _, n := range nodeIDs {
		key := cacheKey(linkType, direction, n)
		if c.loaded[key] {
			out = append(out, c.edges[key]...)
		} else {
			missing = append(missing, n)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	for start := 0; start < len(missing); start += chunkSize {
		end := start + chunkSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]
		edges, err := db.EdgesFrom(linkType, chunk, string(direction))
		if err != nil {
			return nil, err
		}
		byNode := make(map[string][]store.LinkEdge)
		for _, e := range edges {
			byNode[e.SourceID] = append(byNode[e.SourceID], e)
		}
		c.mu.Lock()
		for _, n := range chunk {
			key := cacheKey(linkType, direction, n)
			c.edges[key] = byNode[n]
			c.loaded[key] = true
		}
		c.mu.Unlock()
		out = append(out, edges...)
	}
	return out, nil
}

// graphSeeds resolves a query to a set of seed memory IDs with activation
// 1.0, via Aho-Corasick entity scanning; falling back to the top semantic
// matches when no entity is recognized.
func graphSeeds(db *store.Store, cfg Config, bankID, query string, limit int) (map[string]float64, error) {
	entities, err := db.ListEntities(bankID)
	if err != nil {
		return nil, err
	}

	var registered []implicitmatcher.RegisteredEntity
	for _, e := range entities {
		if cfg.EntityFrequencyThreshold > 0 && e.MentionCount > cfg.EntityFrequencyThreshold {
			continue
		}
		registered = append(registered, implicitmatcher.RegisteredEntity{
			ID: e.ID, BankID: e.BankID, Name: e.CanonicalName, EntityType: e.EntityType,
		})
	}

	seeds := make(map[string]float64)

	if len(registered) > 0 {
		dict, err := implicitmatcher.Compile(registered)
		if err != nil {
			return nil, err
		}
		matches := dict.ScanWithInfo(query)
		var entityIDs []string
		seen := make(map[string]bool)
		for _, m := range matches {
			for _, info := range m.Entities {
				if !seen[info.ID] {
					seen[info.ID] = true
					entityIDs = append(entityIDs, info.ID)
				}
			}
		}
		if len(entityIDs) > 0 {
			memoryIDs, err := db.GetMemoriesForEntities(entityIDs)
			if err != nil {
				return nil, err
			}
			for _, id := range memoryIDs {
				seeds[id] = 1.0
			}
		}
	}

	if len(seeds) == 0 && cfg.Embed != nil {
		sem := semanticStrategy(nil, db, cfg, bankID, query, limit)
		if sem.Err == nil {
			for _, h := range sem.Hits {
				seeds[h.MemoryID] = h.Score
			}
		}
	}

	return seeds, nil
}

// graphStrategy walks the typed meta-paths from the seed frontier,
// aggregating per-node scores weighted by path, and returns the top limit
// nodes by normalized aggregate.
func graphStrategy(db *store.Store, cfg Config, bankID, query string, limit int) strategyResult {
	seeds, err := graphSeeds(db, cfg, bankID, query, limit)
	if err != nil {
		return strategyResult{Method: MethodGraph, Err: err}
	}
	if len(seeds) == 0 {
		return strategyResult{Method: MethodGraph}
	}

	cache := newEdgeCache()
	aggregate := make(map[string]float64)
	for id, score := range seeds {
		aggregate[id] += score
	}

	for _, path := range cfg.MetaPaths {
		frontier := make(map[string]float64, len(seeds))
		for id, score := range seeds {
			frontier[id] = score
		}

		for _, step := range path.Steps {
			nodeIDs := make([]string, 0, len(frontier))
			for id := range frontier {
				nodeIDs = append(nodeIDs, id)
			}
			edges, err := cache.edgesFor(db, step.LinkType, step.Direction, nodeIDs, cfg.GraphEdgeChunkSize)
			if err != nil {
				return strategyResult{Method: MethodGraph, Err: err}
			}

			next := make(map[string]float64)
			for _, e := range edges {
				if causalLinkTypes[step.LinkType] && e.Weight < cfg.CausalWeightThreshold {
					continue
				}
				base, ok := frontier[e.SourceID]
				if !ok {
					continue
				}
				score := base * e.Weight * step.Decay
				if existing, ok := next[e.TargetID]; !ok || score > existing {
					next[e.TargetID] = score
				}
			}
			frontier = next
			if len(frontier) == 0 {
				break
			}
		}

		for id, score := range frontier {
			aggregate[id] += score * path.Weight
		}
	}

	maxScore := 0.0
	for _, score := range aggregate {
		if score > maxScore {
			maxScore = score
		}
	}

	hits := make([]strategyHit, 0, len(aggregate))
	for id, score := range aggregate {
		normalized := 1.0
		if maxScore > 0 {
			normalized = score / maxScore
		}
		hits = append(hits, strategyHit{MemoryID: id, Score: clamp01(normalized)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].MemoryID < hits[j].MemoryID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return strategyResult{Method: MethodGraph, Hits: hits}
}
