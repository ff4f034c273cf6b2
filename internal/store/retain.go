package store

import (
	"encoding/json"
	"fmt"
)

// InsertMemoryWithEmbedding inserts a memory_units row and, if vector is
// non-nil, its vec0 row, in a single write transaction — the FTS shadow row
// follows automatically via the schema's insert trigger. Keeping these two
// writes transactional is the one place Retain needs atomicity narrower
// than "lock the whole store": a memory row without its vector is still a
// valid (if semantic-search-invisible) memory, but a half-written pair
// across a crash is not.
func (s *Store) InsertMemoryWithEmbedding(m *MemoryUnit, vector []float32) error {
	if vector != nil && len(vector) != s.dim {
		return fmt.Errorf("store: embedding has dim %d, want %d", len(vector), s.dim)
	}

	tagsJSON, err := marshalOptional(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	sourceIDsJSON, err := marshalOptional(m.SourceMemoryIDs)
	if err != nil {
		return fmt.Errorf("marshal source_memory_ids: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO memory_units (
			id, bank_id, content, source_text, gist, fact_type, confidence,
			occurred_start, occurred_end, mentioned_at, event_date,
			created_at, updated_at, access_count, last_accessed, encoding_strength,
			tags, document_id, chunk_id, source_memory_ids, scope_profile, scope_project
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.BankID, m.Content, m.SourceText, m.Gist, string(m.FactType), m.Confidence,
		m.OccurredStart, m.OccurredEnd, m.MentionedAt, m.EventDate,
		m.CreatedAt, m.UpdatedAt, m.AccessCount, m.LastAccessed, m.EncodingStrength,
		tagsJSON, nullIfEmpty(m.DocumentID), nullIfEmpty(m.ChunkID), sourceIDsJSON,
		nullIfEmpty(m.ScopeProfile), nullIfEmpty(m.ScopeProject))
	if err != nil {
		return fmt.Errorf("insert memory_unit: %w", err)
	}

	if vector != nil {
		raw, err := json.Marshal(vector)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO memory_vectors (memory_id, embedding) VALUES (?, ?)`, m.ID, string(raw)); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	return tx.Commit()
}
