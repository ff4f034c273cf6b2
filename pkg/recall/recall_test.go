package recall

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gokitt/internal/store"
	extraction "github.com/kittclouds/gokitt/pkg/extract"
	"github.com/kittclouds/gokitt/pkg/tagfilter"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	db, err := store.Open(":memory:", store.WithVectorDim(4))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.UpsertBank(&store.Bank{ID: "bank1", Name: "default", CreatedAt: 1, UpdatedAt: 1}))
	return NewEngine(db, NewConfig()), db
}

func retainFact(t *testing.T, e *Engine, bankID string, fact extraction.ExtractedFact) string {
	t.Helper()
	res, err := e.Retain(context.Background(), bankID, &extraction.ExtractionBatch{Facts: []extraction.ExtractedFact{fact}}, RetainOptions{})
	require.NoError(t, err)
	require.Len(t, res.MemoryIDs, 1)
	return res.MemoryIDs[0]
}

func TestRetainAndRecallFulltextRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	id := retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "The rocket launch was delayed due to weather", FactType: "world", Confidence: 0.9,
	})

	result, err := e.Recall(context.Background(), "bank1", "rocket launch delayed", DefaultRecallOptions())
	require.NoError(t, err)
	require.NotEmpty(t, result.Memories)
	require.Equal(t, id, result.Memories[0].MemoryID)
}

func TestRecallTagFilterExcludesOtherTags(t *testing.T) {
	e, _ := newTestEngine(t)
	retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Deployed the payment service to production", FactType: "world", Confidence: 0.9, Tags: []string{"infra"},
	})
	retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Deployed the payment service rollback", FactType: "world", Confidence: 0.9, Tags: []string{"billing"},
	})

	opts := DefaultRecallOptions()
	opts.Tags = []string{"infra"}
	opts.TagsMatch = tagfilter.AnyStrict

	result, err := e.Recall(context.Background(), "bank1", "payment service deployed", opts)
	require.NoError(t, err)
	for _, m := range result.Memories {
		require.Contains(t, m.Tags, "infra")
	}
}

func TestRecallScopeStrictExcludesOtherProject(t *testing.T) {
	e, _ := newTestEngine(t)
	retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Refactored the checkout module", FactType: "world", Confidence: 0.9, ScopeProject: "storefront",
	})
	billingID := retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Refactored the checkout gateway", FactType: "world", Confidence: 0.9, ScopeProject: "billing",
	})

	opts := DefaultRecallOptions()
	opts.Scope = Scope{Project: "storefront"}
	opts.ScopeMode = ScopeStrict

	result, err := e.Recall(context.Background(), "bank1", "refactored checkout", opts)
	require.NoError(t, err)
	for _, m := range result.Memories {
		require.NotEqual(t, billingID, m.MemoryID)
	}
}

func TestRecallWriteThroughBumpsAccessMetadata(t *testing.T) {
	e, db := newTestEngine(t)
	id := retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Met with the design team about onboarding", FactType: "experience", Confidence: 0.9,
	})

	_, err := e.Recall(context.Background(), "bank1", "design team onboarding", DefaultRecallOptions())
	require.NoError(t, err)

	units, err := db.GetMemoryUnits([]string{id})
	require.NoError(t, err)
	m := units[id]
	require.NotNil(t, m)
	require.EqualValues(t, 1, m.AccessCount)
	require.NotNil(t, m.LastAccessed)
}

func TestRecallSkipsWriteThroughOnCancelledContext(t *testing.T) {
	e, db := newTestEngine(t)
	id := retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Planned the quarterly roadmap review", FactType: "experience", Confidence: 0.9,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recall(ctx, "bank1", "quarterly roadmap review", DefaultRecallOptions())
	require.NoError(t, err)

	units, err := db.GetMemoryUnits([]string{id})
	require.NoError(t, err)
	require.EqualValues(t, 0, units[id].AccessCount)
}

func TestRetainRejectsBackwardCausalLinkAtParseTime(t *testing.T) {
	_, err := extraction.ParseBatch(`{"facts":[
		{"content":"a","factType":"world","confidence":0.5},
		{"content":"b","factType":"world","confidence":0.5}
	],"links":[{"sourceIndex":0,"targetIndex":1,"linkType":"caused_by","weight":1}]}`)
	require.ErrorIs(t, err, extraction.ErrBackwardCausalLink)
}

func TestRetainPersistsLinksWithinBatch(t *testing.T) {
	e, db := newTestEngine(t)
	batch := &extraction.ExtractionBatch{
		Facts: []extraction.ExtractedFact{
			{Content: "Server crashed at midnight", FactType: "world", Confidence: 0.9},
			{Content: "Traffic spike overwhelmed the cache", FactType: "world", Confidence: 0.9},
		},
		Links: []extraction.ExtractedLink{
			{SourceIndex: 1, TargetIndex: 0, LinkType: "causes", Weight: 0.9},
		},
	}
	res, err := e.Retain(context.Background(), "bank1", batch, RetainOptions{})
	require.NoError(t, err)
	require.Len(t, res.MemoryIDs, 2)
	require.Len(t, res.LinkIDs, 1)

	edges, err := db.EdgesFrom("causes", []string{res.MemoryIDs[1]}, "forward")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, res.MemoryIDs[0], edges[0].TargetID)
}

func TestRetainResolvesSharedEntityAcrossFacts(t *testing.T) {
	e, db := newTestEngine(t)
	batch := &extraction.ExtractionBatch{
		Facts: []extraction.ExtractedFact{
			{Content: "Alice reviewed the design doc", FactType: "world", Confidence: 0.9,
				Entities: []extraction.ExtractedEntityRef{{Name: "Alice", EntityType: "person"}}},
			{Content: "Alice approved the rollout", FactType: "world", Confidence: 0.9,
				Entities: []extraction.ExtractedEntityRef{{Name: "Alice", EntityType: "person"}}},
		},
	}
	res, err := e.Retain(context.Background(), "bank1", batch, RetainOptions{})
	require.NoError(t, err)
	require.Len(t, res.EntityIDs, 1)

	entity, err := db.GetEntityByCanonicalName("bank1", "alice")
	require.NoError(t, err)
	require.NotNil(t, entity)
	require.EqualValues(t, 2, entity.MentionCount)
}

func TestScopeMatchesUntaggedMemoryAlwaysPasses(t *testing.T) {
	m := &store.MemoryUnit{}
	require.True(t, ScopeMatches(m, Scope{Profile: "p1", Project: "proj1"}, ScopeStrict))
}

func TestScopeMatchesStrictRejectsMismatch(t *testing.T) {
	m := &store.MemoryUnit{ScopeProject: "billing"}
	require.False(t, ScopeMatches(m, Scope{Project: "storefront"}, ScopeStrict))
	require.True(t, ScopeMatches(m, Scope{Project: "billing"}, ScopeStrict))
}

func TestNormalizePathIsIdempotent(t *testing.T) {
	p := "  /Src//Foo/Bar.TS/ "
	once := NormalizePath(p)
	twice := NormalizePath(once)
	require.Equal(t, once, twice)
}

func TestDetectLocationSignalsRejectsVersionTriples(t *testing.T) {
	signals := DetectLocationSignals("upgrading to 1.2.3 should fix src/db/pool.go")
	require.Contains(t, signals, "src/db/pool.go")
	require.NotContains(t, signals, "1.2.3")
}

func TestFuseRRFMatchesReciprocalRankSumArithmetic(t *testing.T) {
	results := []strategyResult{
		{Method: MethodSemantic, Hits: []strategyHit{{MemoryID: "a"}, {MemoryID: "b"}, {MemoryID: "c"}}},
		{Method: MethodFulltext, Hits: []strategyHit{{MemoryID: "b"}, {MemoryID: "d"}, {MemoryID: "a"}}},
	}
	fused := fuseRRF(results, 60)

	byID := make(map[string]float64, len(fused))
	for _, f := range fused {
		byID[f.MemoryID] = f.RRF
	}
	require.InDelta(t, 1.0/61+1.0/63, byID["a"], 1e-12)
	require.InDelta(t, 1.0/62+1.0/61, byID["b"], 1e-12)
	require.InDelta(t, 1.0/63, byID["c"], 1e-12)
	require.InDelta(t, 1.0/62, byID["d"], 1e-12)

	order := make([]string, len(fused))
	for i, f := range fused {
		order[i] = f.MemoryID
	}
	require.Equal(t, []string{"b", "a", "d", "c"}, order)
}

func TestScoreCandidatesCognitiveModeRanksAccessedMemoryAheadOfUnaccessed(t *testing.T) {
	_, db := newTestEngine(t)

	now := int64(1_700_000_000_000)
	lastAccessed := now - 1000
	memA := &store.MemoryUnit{ID: "a", AccessCount: 10, LastAccessed: &lastAccessed, EncodingStrength: 1.0, CreatedAt: now}
	memB := &store.MemoryUnit{ID: "b", AccessCount: 0, EncodingStrength: 1.0, CreatedAt: now}
	memories := map[string]*store.MemoryUnit{"a": memA, "b": memB}

	fused := []fusedCandidate{{MemoryID: "a", RRF: 1.0}, {MemoryID: "b", RRF: 1.0}}
	semanticScores := map[string]float64{"a": 0.5, "b": 0.5}

	rows, err := scoreCandidates(ModeCognitive, fused, memories, semanticScores, nil, NewConfig(), now, nil, "bank1", "", db, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].MemoryID)
	require.Greater(t, rows[0].Combined, rows[1].Combined)
}

func TestLocationBoostPromotesAssociatedMemoryIntoTopFive(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now().UnixMilli()

	rows := make([]scoringRow, 15)
	for i := range rows {
		rows[i] = scoringRow{MemoryID: fmt.Sprintf("m%d", i), Combined: 0.99 - float64(i)*0.01}
	}
	target := "m9"

	baseline := append([]scoringRow(nil), rows...)
	sortRowsByCombined(baseline)
	var baselineTop5 []string
	for i := 0; i < 5; i++ {
		baselineTop5 = append(baselineTop5, baseline[i].MemoryID)
	}
	require.NotContains(t, baselineTop5, target)

	require.NoError(t, e.location.Record("bank1", "src/target/specific-file.ts", target, "", "", ""))
	require.NoError(t, e.applyLocationBoost("bank1", "What does src/target/specific-file.ts do?", RecallOptions{}, rows, now))

	var boostedTop5 []string
	for i := 0; i < 5; i++ {
		boostedTop5 = append(boostedTop5, rows[i].MemoryID)
	}
	require.Contains(t, boostedTop5, target)
}

func TestCognitiveRecallWriteThroughIncreasesBaseAndAddsWMBoostOnSecondRecall(t *testing.T) {
	e, _ := newTestEngine(t)
	id := retainFact(t, e, "bank1", extraction.ExtractedFact{
		Content: "Investigated the checkout latency spike", FactType: "world", Confidence: 0.9,
	})

	opts := DefaultRecallOptions()
	opts.Methods = []Method{MethodFulltext}
	opts.Mode = ModeCognitive
	opts.SessionID = "session-1"

	first, err := e.Recall(context.Background(), "bank1", "checkout latency spike", opts)
	require.NoError(t, err)
	require.NotEmpty(t, first.Memories)
	require.Equal(t, id, first.Memories[0].MemoryID)
	require.Zero(t, first.Memories[0].Base)
	require.Zero(t, first.Memories[0].WMBoost)

	time.Sleep(5 * time.Millisecond)

	second, err := e.Recall(context.Background(), "bank1", "checkout latency spike", opts)
	require.NoError(t, err)
	require.NotEmpty(t, second.Memories)
	require.Equal(t, id, second.Memories[0].MemoryID)
	require.Greater(t, second.Memories[0].Base, 0.0)
	require.Greater(t, second.Memories[0].WMBoost, 0.0)
	require.Less(t, second.Memories[0].WMBoost, 0.20)
}

func TestPackGistFallbackOnOverflow(t *testing.T) {
	candidates := []hydratedCandidate{
		{row: scoringRow{MemoryID: "m1", Combined: 0.9}, memory: &store.MemoryUnit{ID: "m1", Content: "0123456789012345", Gist: "0123"}},
		{row: scoringRow{MemoryID: "m2", Combined: 0.8}, memory: &store.MemoryUnit{ID: "m2", Content: "0123456789012345", Gist: "01"}},
	}
	result := pack(candidates, 6)
	require.True(t, result.Overflow)
	require.Len(t, result.Packed, 2)
	require.Equal(t, "full", result.Packed[0].Mode)
	require.Equal(t, "gist", result.Packed[1].Mode)
}
