// Package extraction validates already-extracted facts before they reach
// the store. Fact extraction itself (the LLM call, prompt construction) is
// external to this package; ParseBatch only turns a JSON response into a
// validated tagged union, rejecting anything that doesn't match the
// fact_type contract.
package extraction

import "github.com/kittclouds/gokitt/internal/store"

// ExtractedFactType mirrors store.FactType at the parse boundary, kept
// distinct so the JSON tag names this package controls don't leak store's
// wire format.
type ExtractedFactType = store.FactType

// validFactTypes is the set of recognized fact_type discriminators.
var validFactTypes = map[ExtractedFactType]bool{
	store.FactExperience:  true,
	store.FactWorld:       true,
	store.FactOpinion:     true,
	store.FactObservation: true,
}

// IsValidFactType reports whether s is a recognized fact_type value.
func IsValidFactType(s string) bool {
	return validFactTypes[ExtractedFactType(s)]
}

// ExtractedEntityRef is an entity citation attached to a fact, resolved
// against (or created in) the bank's entities table at retain time.
type ExtractedEntityRef struct {
	Name       string `json:"name"`
	EntityType string `json:"entityType,omitempty"`
}

// ExtractedLink is a causal/semantic/temporal relation between two facts in
// the same extraction batch, referenced by index rather than ID since IDs
// don't exist until the facts are persisted.
type ExtractedLink struct {
	SourceIndex int     `json:"sourceIndex"`
	TargetIndex int     `json:"targetIndex"`
	LinkType    string  `json:"linkType"`
	Weight      float64 `json:"weight"`
}

// ExtractedFact is the unit an external extractor produces and this engine
// persists: a tagged union on FactType, plus whatever entities and links
// the extractor attached.
type ExtractedFact struct {
	Content    string   `json:"content"`
	SourceText string   `json:"sourceText,omitempty"`
	Gist       string   `json:"gist,omitempty"`
	FactType   string   `json:"factType"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`

	OccurredStart *int64 `json:"occurredStart,omitempty"`
	OccurredEnd   *int64 `json:"occurredEnd,omitempty"`
	MentionedAt   *int64 `json:"mentionedAt,omitempty"`
	EventDate     *int64 `json:"eventDate,omitempty"`

	ScopeProfile string `json:"scopeProfile,omitempty"`
	ScopeProject string `json:"scopeProject,omitempty"`

	Entities []ExtractedEntityRef `json:"entities,omitempty"`
}

// ExtractionBatch is the unified shape this package parses: a list of facts
// plus the cross-fact links an extractor may have inferred within the same
// batch (e.g. "fact 2 was caused_by fact 0").
type ExtractionBatch struct {
	Facts []ExtractedFact `json:"facts"`
	Links []ExtractedLink `json:"links,omitempty"`
}
