// Package store provides SQLite-backed persistence for the memory engine.
package store

// FactType categorizes a MemoryUnit's provenance.
type FactType string

const (
	FactExperience FactType = "experience"
	FactWorld      FactType = "world"
	FactOpinion    FactType = "opinion"
	FactObservation FactType = "observation"
)

// IsValid reports whether f is one of the recognized fact types.
func (f FactType) IsValid() bool {
	switch f {
	case FactExperience, FactWorld, FactOpinion, FactObservation:
		return true
	default:
		return false
	}
}

// LinkType enumerates the recognized MemoryLink edge kinds.
type LinkType string

const (
	LinkSemantic  LinkType = "semantic"
	LinkTemporal  LinkType = "temporal"
	LinkEntity    LinkType = "entity"
	LinkCausedBy  LinkType = "caused_by"
	LinkCauses    LinkType = "causes"
	LinkEnables   LinkType = "enables"
	LinkPrevents  LinkType = "prevents"
)

// IsValid reports whether l is a recognized link type.
func (l LinkType) IsValid() bool {
	switch l {
	case LinkSemantic, LinkTemporal, LinkEntity, LinkCausedBy, LinkCauses, LinkEnables, LinkPrevents:
		return true
	default:
		return false
	}
}

// Bank is a memory namespace. It owns all memories, entities, links, chunks,
// and the FTS/vector shadow rows for those memories.
type Bank struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Config    string `json:"config,omitempty"` // opaque JSON blob, caller-defined
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// MemoryUnit is the atomic retrievable fact.
type MemoryUnit struct {
	ID       string   `json:"id"`
	BankID   string   `json:"bankId"`
	Content  string   `json:"content"`
	SourceText string `json:"sourceText,omitempty"`
	Gist     string   `json:"gist,omitempty"`
	FactType FactType `json:"factType"`
	Confidence float64 `json:"confidence"`

	OccurredStart *int64 `json:"occurredStart,omitempty"`
	OccurredEnd   *int64 `json:"occurredEnd,omitempty"`
	MentionedAt   *int64 `json:"mentionedAt,omitempty"`
	EventDate     *int64 `json:"eventDate,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`

	AccessCount      int64  `json:"accessCount"`
	LastAccessed     *int64 `json:"lastAccessed,omitempty"`
	EncodingStrength float64 `json:"encodingStrength"`

	Tags []string `json:"tags,omitempty"`

	DocumentID string `json:"documentId,omitempty"`
	ChunkID    string `json:"chunkId,omitempty"`

	SourceMemoryIDs []string `json:"sourceMemoryIds,omitempty"`

	ScopeProfile string `json:"scopeProfile,omitempty"`
	ScopeProject string `json:"scopeProject,omitempty"`
}

// Anchor returns the temporal instant used to rank and score this memory,
// following the first-non-null precedence defined for the temporal strategy.
func (m *MemoryUnit) Anchor() int64 {
	if m.OccurredStart != nil && m.OccurredEnd != nil {
		return (*m.OccurredStart + *m.OccurredEnd) / 2
	}
	for _, v := range []*int64{m.OccurredStart, m.OccurredEnd, m.MentionedAt, m.EventDate} {
		if v != nil {
			return *v
		}
	}
	return m.CreatedAt
}

// Entity is a named referent shared across memories in a bank.
type Entity struct {
	ID            string `json:"id"`
	BankID        string `json:"bankId"`
	Name          string `json:"name"`
	CanonicalName string `json:"canonicalName"`
	EntityType    string `json:"entityType"`
	MentionCount  int64  `json:"mentionCount"`
}

// MemoryLink is a typed, weighted, directed edge between two memories.
type MemoryLink struct {
	ID        string   `json:"id"`
	BankID    string   `json:"bankId"`
	SourceID  string   `json:"sourceId"`
	TargetID  string   `json:"targetId"`
	LinkType  LinkType `json:"linkType"`
	Weight    float64  `json:"weight"`
	CreatedAt int64    `json:"createdAt"`
}

// Chunk is a text region of a larger document.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`
}

// Path is a normalized filesystem path tracked for location-boosted recall.
type Path struct {
	ID             string `json:"id"`
	BankID         string `json:"bankId"`
	NormalizedPath string `json:"normalizedPath"`
	AccessCount    int64  `json:"accessCount"`
	LastAccessed   *int64 `json:"lastAccessed,omitempty"`
	Profile        string `json:"profile,omitempty"`
	Project        string `json:"project,omitempty"`
}

// PathCoAccess is a co-access edge strength between two paths touched in the
// same session.
type PathCoAccess struct {
	PathA    string  `json:"pathA"`
	PathB    string  `json:"pathB"`
	Strength float64 `json:"strength"`
}
