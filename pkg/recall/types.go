package recall

import "github.com/kittclouds/gokitt/pkg/tagfilter"

// Method is one of the four retrieval strategies.
type Method string

const (
	MethodSemantic Method = "semantic"
	MethodFulltext Method = "fulltext"
	MethodGraph    Method = "graph"
	MethodTemporal Method = "temporal"
)

// AllMethods is the default method set when RecallOptions.Methods is empty.
func AllMethods() []Method { return []Method{MethodSemantic, MethodFulltext, MethodGraph, MethodTemporal} }

// ScoreMode selects the combined-scoring formula.
type ScoreMode string

const (
	ModeHybrid    ScoreMode = "hybrid"
	ModeCognitive ScoreMode = "cognitive"
)

// TimeRange is an explicit, caller-supplied temporal filter; when absent,
// Recall tries to extract one from the query text.
type TimeRange struct {
	From int64
	To   int64
}

// Scope is the profile/project/session lineage a memory or request carries.
type Scope struct {
	Profile string
	Project string
	Session string
}

// ScopeMode selects how strictly Scope must match.
type ScopeMode string

const (
	ScopeStrict        ScopeMode = "strict"
	ScopeProfileOnly   ScopeMode = "profile_only"
	ScopeProjectOnly   ScopeMode = "project_only"
)

// RecallOptions configures a single Recall call.
type RecallOptions struct {
	Limit     int
	Methods   []Method
	Tags      []string
	TagsMatch tagfilter.Mode

	FactTypes     []string
	MinConfidence float64
	Entities      []string

	TimeRange   *TimeRange
	MaxTokens   int
	TokenBudget int

	Mode ScoreMode

	SessionID string

	Scope     Scope
	ScopeMode ScopeMode

	IncludeEntities bool
	IncludeChunks   bool
	MaxEntityTokens int
	MaxChunkTokens  int

	EnableTrace bool

	// QueryPath is an optional file/module path associated with the
	// request, fed into the location-boost detector alongside whatever
	// path-like tokens the query text itself contains.
	QueryPath string
}

// DefaultRecallOptions returns sensible defaults for unset fields.
func DefaultRecallOptions() RecallOptions {
	return RecallOptions{
		Limit:           10,
		Methods:         AllMethods(),
		TagsMatch:       tagfilter.Any,
		Mode:            ModeHybrid,
		MaxEntityTokens: 200,
		MaxChunkTokens:  400,
	}
}

// PackedMemory is one memory as packed into the token budget.
type PackedMemory struct {
	MemoryID string
	Mode     string // "full" | "gist"
	Tokens   int
}

// ScoredMemory is a fully hydrated, scored, packed result row.
type ScoredMemory struct {
	MemoryID      string
	Content       string
	Gist          string
	FactType      string
	Confidence    float64
	Tags          []string
	CombinedScore float64
	Sources       []string

	RRFScore    float64
	Temporal    float64
	Recency     float64
	CE          float64
	Probe       float64
	Base        float64
	Spread      float64
	WMBoost     float64
	LocationBoost float64

	EntityNames []string
	ChunkID     string
}

// RecallResult is Recall's return value.
type RecallResult struct {
	Memories []ScoredMemory
	Entities map[string][]string // memory_id -> entity names, when IncludeEntities
	Chunks   map[string]string   // chunk_id -> content, when IncludeChunks

	TotalTokensUsed  int
	BudgetRemaining  int
	Overflow         bool
	Packed           []PackedMemory

	Trace *Trace
}

// RetainOptions configures a Retain call.
type RetainOptions struct {
	Scope Scope
}

// RetainResult reports what a Retain call persisted.
type RetainResult struct {
	MemoryIDs []string
	EntityIDs []string
	LinkIDs   []string
}
