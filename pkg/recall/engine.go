package recall

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/gokitt/internal/store"
	"github.com/kittclouds/gokitt/pkg/docstore"
	extraction "github.com/kittclouds/gokitt/pkg/extract"
	"github.com/kittclouds/gokitt/pkg/idgen"
	implicitmatcher "github.com/kittclouds/gokitt/pkg/implicit-matcher"
	"github.com/kittclouds/gokitt/pkg/pool"
	"github.com/kittclouds/gokitt/pkg/tagfilter"
	"github.com/kittclouds/gokitt/pkg/temporal"
)

// Engine wraps the store with the retrieval core and its process-local
// working-memory and location-tracking state. One Engine per open store;
// its mutable state (working memory, session path touches) is scoped to
// the Engine value, not a package singleton, so tests and multi-tenant
// callers can isolate it trivially.
type Engine struct {
	db       *store.Store
	cfg      Config
	wm       *WorkingMemory
	location *LocationTracker
	chunks   *docstore.ChunkCache
}

// NewEngine builds an Engine over db with cfg's tunables.
func NewEngine(db *store.Store, cfg Config) *Engine {
	return &Engine{
		db:       db,
		cfg:      cfg,
		wm:       NewWorkingMemory(cfg.WorkingMemoryCapacity, cfg.WorkingMemoryDecayMs, cfg.WorkingMemoryMaxBoost),
		location: NewLocationTracker(db),
		chunks:   docstore.New(),
	}
}

// chunkContent returns chunkID's content, serving it from the in-memory
// chunk cache when already resident and populating the cache on a miss.
func (e *Engine) chunkContent(chunkID string) (string, bool) {
	chunk, err := e.GetChunk(chunkID)
	if err != nil || chunk == nil {
		return "", false
	}
	return chunk.Content, true
}

// Recall runs the full retrieval pipeline: temporal extraction, parallel
// multi-strategy candidate generation, RRF fusion, hybrid/cognitive
// scoring, location boost, scope filtering, hydration, and token-budget
// packing, finishing with a synchronous access write-through unless ctx is
// already cancelled.
func (e *Engine) Recall(ctx context.Context, bankID, query string, opts RecallOptions) (RecallResult, error) {
	if opts.Limit < 0 || opts.TokenBudget < 0 {
		return RecallResult{}, ErrNegativeCount
	}
	opts = mergeDefaults(opts)

	now := time.Now().UnixMilli()
	timeRange := resolveTimeRange(opts, query, time.Now())

	trace := newTrace(opts.EnableTrace, query, opts.MaxTokens, timeRange)

	candidatePool := opts.Limit * 5
	if candidatePool < 50 {
		candidatePool = 50
	}

	results, err := e.runStrategies(ctx, bankID, query, opts, timeRange, candidatePool, trace)
	if err != nil {
		return RecallResult{}, err
	}

	fused := fuseRRF(results, e.cfg.RRFK)
	if len(fused) == 0 {
		return RecallResult{Entities: map[string][]string{}, Chunks: map[string]string{}, Trace: trace}, nil
	}

	ids := pool.GetStringSlice()
	for _, c := range fused {
		ids = append(ids, c.MemoryID)
	}
	memories, err := e.db.GetMemoryUnits(ids)
	pool.PutStringSlice(ids)
	if err != nil {
		return RecallResult{}, err
	}

	semanticScores, temporalScores := splitStrategyScores(results)

	rows, err := scoreCandidates(opts.Mode, fused, memories, semanticScores, temporalScores, e.cfg, now, e.wm, bankID, opts.SessionID, e.db, query)
	if err != nil {
		return RecallResult{}, err
	}

	if err := e.applyLocationBoost(bankID, query, opts, rows, now); err != nil {
		return RecallResult{}, err
	}

	hydrated, err := hydrate(e.db, rows, opts)
	if err != nil {
		return RecallResult{}, err
	}

	budget := opts.TokenBudget
	packed := pack(hydrated, budget)

	var entities map[string][]string
	if opts.IncludeEntities {
		entities = make(map[string][]string, len(hydrated))
	}
	var chunks map[string]string
	if opts.IncludeChunks {
		chunks = make(map[string]string, len(hydrated))
	}

	packedTokens := make(map[string]string, len(packed.Packed))
	for _, p := range packed.Packed {
		packedTokens[p.MemoryID] = p.Mode
	}

	out := make([]ScoredMemory, 0, len(hydrated))
	selected := make([]string, 0, len(hydrated))
	for _, h := range hydrated {
		mode, ok := packedTokens[h.row.MemoryID]
		if !ok {
			continue
		}
		sm := ScoredMemory{
			MemoryID:      h.memory.ID,
			Content:       h.memory.Content,
			Gist:          h.memory.Gist,
			FactType:      string(h.memory.FactType),
			Confidence:    h.memory.Confidence,
			Tags:          h.memory.Tags,
			CombinedScore: h.row.Combined,
			Sources:       h.row.Sources,
			RRFScore:      h.row.RRF,
			Temporal:      h.row.Temporal,
			Recency:       h.row.Recency,
			CE:            h.row.CE,
			Probe:         h.row.Probe,
			Base:          h.row.Base,
			Spread:        h.row.Spread,
			WMBoost:       h.row.WMBoost,
			LocationBoost: h.row.Location,
			ChunkID:       h.memory.ChunkID,
		}
		if mode == "gist" {
			sm.Content = ""
		}
		for _, ent := range h.entities {
			sm.EntityNames = append(sm.EntityNames, ent.Name)
		}
		if opts.IncludeEntities {
			entities[h.memory.ID] = sm.EntityNames
		}
		if opts.IncludeChunks && h.memory.ChunkID != "" {
			if content, ok := e.chunkContent(h.memory.ChunkID); ok {
				chunks[h.memory.ChunkID] = content
			}
		}
		out = append(out, sm)
		selected = append(selected, h.memory.ID)
	}

	if ctx.Err() == nil && len(selected) > 0 {
		if err := e.db.UpdateAccessMetadata(selected, now); err != nil {
			return RecallResult{}, err
		}
		e.wm.Touch(bankID, opts.SessionID, selected, now)
	}

	trace.finish(rows, selected)

	return RecallResult{
		Memories:        out,
		Entities:        entities,
		Chunks:          chunks,
		TotalTokensUsed: packed.TotalTokensUsed,
		BudgetRemaining: packed.BudgetRemaining,
		Overflow:        packed.Overflow,
		Packed:          packed.Packed,
		Trace:           trace,
	}, nil
}

func mergeDefaults(opts RecallOptions) RecallOptions {
	def := DefaultRecallOptions()
	if opts.Limit <= 0 {
		opts.Limit = def.Limit
	}
	if len(opts.Methods) == 0 {
		opts.Methods = def.Methods
	}
	if opts.TagsMatch == "" {
		opts.TagsMatch = def.TagsMatch
	}
	if opts.Mode == "" {
		opts.Mode = def.Mode
	}
	if opts.MaxEntityTokens == 0 {
		opts.MaxEntityTokens = def.MaxEntityTokens
	}
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = def.MaxChunkTokens
	}
	return opts
}

func resolveTimeRange(opts RecallOptions, query string, ref time.Time) *TimeRange {
	if opts.TimeRange != nil {
		return opts.TimeRange
	}
	if r, ok := temporal.ExtractRange(query, ref); ok {
		return &TimeRange{From: r.From, To: r.To}
	}
	return nil
}

// runStrategies dispatches the requested retrieval strategies as
// independent errgroup tasks; an individual strategy's error is recorded
// on its own result rather than failing the group, so fusion can still
// proceed over the strategies that succeeded.
func (e *Engine) runStrategies(ctx context.Context, bankID, query string, opts RecallOptions, timeRange *TimeRange, limit int, trace *Trace) ([]strategyResult, error) {
	methods := opts.Methods
	if len(methods) == 0 {
		methods = AllMethods()
	}

	results := make([]strategyResult, len(methods))
	retrievals := make([]RetrievalTrace, len(methods))
	g, _ := errgroup.WithContext(ctx)

	for i, m := range methods {
		i, m := i, m
		g.Go(func() error {
			started := time.Now()
			var r strategyResult
			switch m {
			case MethodSemantic:
				r = semanticStrategy(ctx, e.db, e.cfg, bankID, query, limit)
			case MethodFulltext:
				r = fulltextStrategy(e.db, bankID, query, limit)
			case MethodGraph:
				r = graphStrategy(e.db, e.cfg, bankID, query, limit)
			case MethodTemporal:
				if timeRange == nil {
					r = strategyResult{Method: MethodTemporal}
				} else {
					r = temporalStrategy(e.db, bankID, timeRange.From, timeRange.To, limit)
				}
			}
			results[i] = r
			if r.Err != nil {
				e.cfg.Log.Debug().Err(r.Err).Str("bank_id", bankID).Str("method", string(m)).Msg("strategy failed, continuing without it")
			}
			top := r.Hits
			if len(top) > 5 {
				top = top[:5]
			}
			topIDs := make([]string, len(top))
			for j, h := range top {
				topIDs[j] = h.MemoryID
			}
			retrievals[i] = RetrievalTrace{Method: m, Duration: time.Since(started), Count: len(r.Hits), TopRanks: topIDs}
			return nil // strategy errors are carried on the result, never fail the group
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, rt := range retrievals {
		trace.recordRetrieval(rt)
	}
	return results, nil
}

func splitStrategyScores(results []strategyResult) (semantic, temporal map[string]float64) {
	semantic = make(map[string]float64)
	temporal = make(map[string]float64)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		switch r.Method {
		case MethodSemantic:
			for _, h := range r.Hits {
				semantic[h.MemoryID] = h.Score
			}
		case MethodTemporal:
			for _, h := range r.Hits {
				temporal[h.MemoryID] = h.Score
			}
		}
	}
	return semantic, temporal
}

// applyLocationBoost adds the path-familiarity boost to each candidate's
// combined score in place and re-sorts with the same tie-break, since the
// boost can change relative order.
func (e *Engine) applyLocationBoost(bankID, query string, opts RecallOptions, rows []scoringRow, now int64) error {
	signals := DetectLocationSignals(query)
	if opts.QueryPath != "" {
		signals = append(signals, opts.QueryPath)
	}
	if len(signals) == 0 {
		return nil
	}

	for i := range rows {
		boost, err := e.location.Boost(e.cfg, bankID, rows[i].MemoryID, signals, now)
		if err != nil {
			return err
		}
		rows[i].Location = boost
		rows[i].Combined += boost
	}

	sortRowsByCombined(rows)
	return nil
}

// Retain validates and persists an already-extracted batch of facts: each
// fact's memory row and (if configured) embedding in one transaction, then
// resolved-or-created entity rows and junctions, then within-batch links.
func (e *Engine) Retain(ctx context.Context, bankID string, batch *extraction.ExtractionBatch, opts RetainOptions) (RetainResult, error) {
	result := RetainResult{}
	now := time.Now().UnixMilli()

	memoryIDs := make([]string, len(batch.Facts))
	for i, f := range batch.Facts {
		id := idgen.New()
		memoryIDs[i] = id

		var vec []float32
		if e.cfg.Embed != nil {
			v, err := e.cfg.Embed(f.Content)
			if err != nil {
				return result, err
			}
			vec = v
		}

		profile := f.ScopeProfile
		if profile == "" {
			profile = opts.Scope.Profile
		}
		project := f.ScopeProject
		if project == "" {
			project = opts.Scope.Project
		}

		m := &store.MemoryUnit{
			ID:               id,
			BankID:           bankID,
			Content:          f.Content,
			SourceText:       f.SourceText,
			Gist:             f.Gist,
			FactType:         store.FactType(f.FactType),
			Confidence:       f.Confidence,
			OccurredStart:    f.OccurredStart,
			OccurredEnd:      f.OccurredEnd,
			MentionedAt:      f.MentionedAt,
			EventDate:        f.EventDate,
			CreatedAt:        now,
			UpdatedAt:        now,
			EncodingStrength: 1.0,
			Tags:             f.Tags,
			ScopeProfile:     profile,
			ScopeProject:     project,
		}
		if err := e.db.InsertMemoryWithEmbedding(m, vec); err != nil {
			return result, err
		}
		result.MemoryIDs = append(result.MemoryIDs, id)

		for _, ref := range f.Entities {
			entityID, err := e.resolveEntity(bankID, ref)
			if err != nil {
				return result, err
			}
			if err := e.db.LinkMemoryEntity(id, entityID); err != nil {
				return result, err
			}
			result.EntityIDs = appendUniqueStr(result.EntityIDs, entityID)
		}
	}

	for _, link := range batch.Links {
		if link.SourceIndex < 0 || link.SourceIndex >= len(memoryIDs) ||
			link.TargetIndex < 0 || link.TargetIndex >= len(memoryIDs) {
			continue // out-of-range index: silently skipped, not a batch-level failure
		}
		linkID := idgen.New()
		l := &store.MemoryLink{
			ID:        linkID,
			BankID:    bankID,
			SourceID:  memoryIDs[link.SourceIndex],
			TargetID:  memoryIDs[link.TargetIndex],
			LinkType:  store.LinkType(link.LinkType),
			Weight:    link.Weight,
			CreatedAt: now,
		}
		if err := e.db.InsertLink(l, bankID, bankID); err != nil {
			return result, err
		}
		result.LinkIDs = append(result.LinkIDs, linkID)
	}

	return result, nil
}

func (e *Engine) resolveEntity(bankID string, ref extraction.ExtractedEntityRef) (string, error) {
	canonical := implicitmatcher.CanonicalizeForMatch(ref.Name)
	existing, err := e.db.GetEntityByCanonicalName(bankID, canonical)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if err := e.db.IncrementMentionCount(existing.ID, 1); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	id := idgen.New()
	if err := e.db.UpsertEntity(&store.Entity{
		ID:            id,
		BankID:        bankID,
		Name:          ref.Name,
		CanonicalName: canonical,
		EntityType:    ref.EntityType,
		MentionCount:  1,
	}); err != nil {
		return "", err
	}
	return id, nil
}

func appendUniqueStr(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// ListTags returns the distinct tags in use across a bank's memories.
func (e *Engine) ListTags(bankID string) ([]string, error) {
	return e.db.ListTags(bankID)
}

// ListEntities returns every entity registered in a bank.
func (e *Engine) ListEntities(bankID string) ([]*store.Entity, error) {
	return e.db.ListEntities(bankID)
}

// ListDocuments returns the distinct document IDs referenced by a bank's
// memories.
func (e *Engine) ListDocuments(bankID string) ([]string, error) {
	return e.db.ListDocumentIDs(bankID)
}

// GetChunk resolves a single chunk by ID, serving from the in-memory chunk
// cache when resident.
func (e *Engine) GetChunk(chunkID string) (*store.Chunk, error) {
	if cached := e.chunks.Get(chunkID); cached != nil {
		return cached, nil
	}
	chunk, err := e.db.GetChunk(chunkID)
	if err != nil || chunk == nil {
		return chunk, err
	}
	e.chunks.Upsert(chunk)
	return chunk, nil
}

// ListEpisodes returns memories of fact type "experience" in a bank,
// optionally narrowed by tag filter, ordered by occurrence anchor.
func (e *Engine) ListEpisodes(bankID string, tags []string, mode tagfilter.Mode) ([]*store.MemoryUnit, error) {
	return e.db.ListEpisodes(bankID, tags, mode)
}
