// Package recall implements the engine's retrieval core: multi-strategy
// candidate generation, Reciprocal Rank Fusion, hybrid/cognitive scoring,
// working memory, location boost, scope filtering, hydration, and
// token-budget packing, wired together by Recall. Retain owns the write
// path that persists already-extracted facts.
package recall

import (
	"time"

	"github.com/rs/zerolog"
)

// EmbedFunc embeds text into the bank's configured vector dimension. It is
// the engine's only dependency on an external model: fact extraction and
// embedding generation both live outside this package.
type EmbedFunc func(text string) ([]float32, error)

// RerankFunc scores query against docs with a cross-encoder (or any other
// reranker); the returned slice must have the same length as docs.
type RerankFunc func(query string, docs []string) ([]float64, error)

// Direction is a meta-path step's traversal direction over memory_links.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Both     Direction = "both"
)

// MetaPathStep is one hop of a typed graph walk.
type MetaPathStep struct {
	LinkType  string
	Direction Direction
	Decay     float64
}

// MetaPath is a named, weighted sequence of steps the graph strategy walks
// from the seed frontier.
type MetaPath struct {
	Name   string
	Steps  []MetaPathStep
	Weight float64
}

// DefaultMetaPaths are the engine's built-in typed traversal paths.
func DefaultMetaPaths() []MetaPath {
	return []MetaPath{
		{Name: "entity", Weight: 1.0, Steps: []MetaPathStep{{LinkType: "entity", Direction: Both, Decay: 0.6}}},
		{Name: "semantic", Weight: 0.8, Steps: []MetaPathStep{{LinkType: "semantic", Direction: Both, Decay: 0.7}}},
		{Name: "causes_causes", Weight: 1.2, Steps: []MetaPathStep{
			{LinkType: "causes", Direction: Forward, Decay: 1.0},
			{LinkType: "causes", Direction: Forward, Decay: 1.0},
		}},
		{Name: "caused_by_caused_by", Weight: 1.2, Steps: []MetaPathStep{
			{LinkType: "caused_by", Direction: Backward, Decay: 1.0},
			{LinkType: "caused_by", Direction: Backward, Decay: 1.0},
		}},
		{Name: "entity_causes", Weight: 0.9, Steps: []MetaPathStep{
			{LinkType: "entity", Direction: Both, Decay: 1.0},
			{LinkType: "causes", Direction: Forward, Decay: 1.0},
		}},
		{Name: "semantic_entity", Weight: 0.7, Steps: []MetaPathStep{
			{LinkType: "semantic", Direction: Both, Decay: 1.0},
			{LinkType: "entity", Direction: Both, Decay: 1.0},
		}},
		{Name: "enables", Weight: 1.0, Steps: []MetaPathStep{{LinkType: "enables", Direction: Forward, Decay: 1.0}}},
		{Name: "prevents", Weight: 1.0, Steps: []MetaPathStep{{LinkType: "prevents", Direction: Forward, Decay: 1.0}}},
	}
}

// Config holds the engine's tunables, built with functional options the
// way the store is constructed (store.Open(dsn, opts...)) rather than
// loaded from a file — this is a library, not a standalone service.
type Config struct {
	Embed  EmbedFunc
	Rerank RerankFunc

	MetaPaths []MetaPath

	// EntityFrequencyThreshold excludes entities mentioned in more memories
	// than this from seed resolution, so a very common referent doesn't
	// turn graph retrieval into a near-full-bank scan.
	EntityFrequencyThreshold int64
	// CausalWeightThreshold is the minimum edge weight the graph walker
	// follows for causal link types.
	CausalWeightThreshold float64

	RRFK int

	WorkingMemoryCapacity int
	WorkingMemoryDecayMs  int64
	WorkingMemoryMaxBoost float64

	DirectPathBoost        float64
	MaxFamiliarityBoost    float64
	MaxCoAccessBoost       float64
	LocationFamiliarityTau time.Duration

	GraphEdgeChunkSize int

	Log zerolog.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithEmbed sets the embedding function used by the semantic strategy and
// by Retain when persisting new facts.
func WithEmbed(f EmbedFunc) Option { return func(c *Config) { c.Embed = f } }

// WithRerank sets the optional cross-encoder reranker for hybrid scoring.
func WithRerank(f RerankFunc) Option { return func(c *Config) { c.Rerank = f } }

// WithMetaPaths overrides the default typed meta-paths.
func WithMetaPaths(paths []MetaPath) Option { return func(c *Config) { c.MetaPaths = paths } }

// WithEntityFrequencyThreshold overrides the default seed-resolution cap.
func WithEntityFrequencyThreshold(n int64) Option {
	return func(c *Config) { c.EntityFrequencyThreshold = n }
}

// WithCausalWeightThreshold overrides the default causal edge-weight floor.
func WithCausalWeightThreshold(w float64) Option {
	return func(c *Config) { c.CausalWeightThreshold = w }
}

// WithLogger sets the structured logger; the zero Config defaults to
// zerolog.Nop() rather than a package-level global.
func WithLogger(log zerolog.Logger) Option { return func(c *Config) { c.Log = log } }

// NewConfig builds a Config with sensible defaults, applying opts in
// order.
func NewConfig(opts ...Option) Config {
	c := Config{
		MetaPaths:                DefaultMetaPaths(),
		EntityFrequencyThreshold: 500,
		CausalWeightThreshold:    0.3,
		RRFK:                     60,
		WorkingMemoryCapacity:    40,
		WorkingMemoryDecayMs:     900_000,
		WorkingMemoryMaxBoost:    0.2,
		DirectPathBoost:          0.12,
		MaxFamiliarityBoost:      0.10,
		MaxCoAccessBoost:         0.08,
		LocationFamiliarityTau:   7 * 24 * time.Hour,
		GraphEdgeChunkSize:       500,
		Log:                      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
