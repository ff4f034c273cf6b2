package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gokitt/pkg/tagfilter"
)

// InsertMemoryUnit inserts a new memory unit. The FTS shadow row is kept in
// sync by a database trigger (schema.go); embeddings are a separate
// concern, written via UpsertEmbedding.
func (s *Store) InsertMemoryUnit(m *MemoryUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, err := marshalOptional(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	sourceIDsJSON, err := marshalOptional(m.SourceMemoryIDs)
	if err != nil {
		return fmt.Errorf("marshal source_memory_ids: %w", err)
	}

	_, err = s.db.Exec(`
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
	return err
}

// DeleteMemoryUnit removes a memory unit and everything keyed to it: its FTS
// shadow (via trigger), its vector row, its entity junctions, its path
// associations, and any links touching it (cascading on endpoint deletion).
func (s *Store) DeleteMemoryUnit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		"DELETE FROM memory_vectors WHERE memory_id = ?",
		"DELETE FROM memory_entities WHERE memory_id = ?",
		"DELETE FROM path_memories WHERE memory_id = ?",
		"DELETE FROM memory_links WHERE source_id = ? OR target_id = ?",
	}
	for _, stmt := range stmts {
		if strings.Contains(stmt, "source_id") {
			if _, err := tx.Exec(stmt, id, id); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("DELETE FROM memory_units WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateAccessMetadata bumps access_count and encoding_strength and sets
// last_accessed for every id in ids, in one statement per row (the access
// write-through). The caller must have already decided write-through should
// happen (e.g. skipped on a cancelled context).
func (s *Store) UpdateAccessMetadata(ids []string, now int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE memory_units
		SET access_count = access_count + 1,
		    last_accessed = ?,
		    encoding_strength = MIN(3.0, encoding_strength + 0.02)
		WHERE id = ?
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(now, id); err != nil {
			return fmt.Errorf("access write-through %s: %w", id, err)
		}
	}
	return tx.Commit()
}

const memoryUnitColumns = `id, bank_id, content, source_text, gist, fact_type, confidence,
		occurred_start, occurred_end, mentioned_at, event_date,
		created_at, updated_at, access_count, last_accessed, encoding_strength,
		tags, document_id, chunk_id, source_memory_ids, scope_profile, scope_project`

func scanMemoryUnit(scanner interface{ Scan(...any) error }, log zerolog.Logger) (*MemoryUnit, error) {
	var m MemoryUnit
	var factType string
	var sourceText, gist, tags, documentID, chunkID, sourceIDs, scopeProfile, scopeProject sql.NullString
	var occStart, occEnd, mentionedAt, eventDate, lastAccessed sql.NullInt64

	err := scanner.Scan(
		&m.ID, &m.BankID, &m.Content, &sourceText, &gist, &factType, &m.Confidence,
		&occStart, &occEnd, &mentionedAt, &eventDate,
		&m.CreatedAt, &m.UpdatedAt, &m.AccessCount, &lastAccessed, &m.EncodingStrength,
		&tags, &documentID, &chunkID, &sourceIDs, &scopeProfile, &scopeProject,
	)
	if err != nil {
		return nil, err
	}

	m.FactType = FactType(factType)
	if sourceText.Valid {
		m.SourceText = sourceText.String
	}
	if gist.Valid {
		m.Gist = gist.String
	}
	if documentID.Valid {
		m.DocumentID = documentID.String
	}
	if chunkID.Valid {
		m.ChunkID = chunkID.String
	}
	if scopeProfile.Valid {
		m.ScopeProfile = scopeProfile.String
	}
	if scopeProject.Valid {
		m.ScopeProject = scopeProject.String
	}
	if occStart.Valid {
		m.OccurredStart = &occStart.Int64
	}
	if occEnd.Valid {
		m.OccurredEnd = &occEnd.Int64
	}
	if mentionedAt.Valid {
		m.MentionedAt = &mentionedAt.Int64
	}
	if eventDate.Valid {
		m.EventDate = &eventDate.Int64
	}
	if lastAccessed.Valid {
		m.LastAccessed = &lastAccessed.Int64
	}

	// Corrupted JSON tags/source_memory_ids are treated as empty, never raised.
	m.Tags = unmarshalOptionalOrEmpty(tags, log, m.ID, "tags")
	m.SourceMemoryIDs = unmarshalOptionalOrEmpty(sourceIDs, log, m.ID, "source_memory_ids")

	return &m, nil
}

// GetMemoryUnit retrieves a single memory by ID. Returns (nil, nil) if absent.
func (s *Store) GetMemoryUnit(id string) (*MemoryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+memoryUnitColumns+` FROM memory_units WHERE id = ?`, id)
	m, err := scanMemoryUnit(row, s.log)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMemoryUnits batch-loads memory rows by ID in a single IN-query,
// avoiding the N+1 pattern the hydration pipeline requires.
func (s *Store) GetMemoryUnits(ids []string) (map[string]*MemoryUnit, error) {
	out := make(map[string]*MemoryUnit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(ids)
	rows, err := s.db.Query(`SELECT `+memoryUnitColumns+` FROM memory_units WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMemoryUnit(rows, s.log)
		if err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// TemporalCandidates returns every memory in bankID whose temporal fields
// overlap [from, to] under the occurrence-based predicate used by the recall
// engine's temporal strategy: either both occurred_start/occurred_end are
// known and that interval overlaps the range, or at least one of them is
// null and one of mentioned_at/occurred_start/occurred_end falls inside
// the range. Memories with no temporal
// anchor at all are excluded by construction — every branch of the
// predicate requires at least one non-null field.
func (s *Store) TemporalCandidates(bankID string, from, to int64) ([]*MemoryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+memoryUnitColumns+` FROM memory_units
		WHERE bank_id = ? AND (
			(occurred_start IS NOT NULL AND occurred_end IS NOT NULL AND occurred_start <= ? AND occurred_end >= ?)
			OR (occurred_start IS NULL OR occurred_end IS NULL) AND (
				(mentioned_at IS NOT NULL AND mentioned_at BETWEEN ? AND ?)
				OR (occurred_start IS NOT NULL AND occurred_start BETWEEN ? AND ?)
				OR (occurred_end IS NOT NULL AND occurred_end BETWEEN ? AND ?)
			)
		)
	`, bankID, to, from, from, to, from, to, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MemoryUnit
	for rows.Next() {
		m, err := scanMemoryUnit(rows, s.log)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTags returns the distinct tags used across a bank's memories, via
// json_each over the tags column, sorted for deterministic output.
func (s *Store) ListTags(bankID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT DISTINCT je.value FROM memory_units, json_each(memory_units.tags) je
		WHERE memory_units.bank_id = ? AND memory_units.tags IS NOT NULL
		ORDER BY je.value
	`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// ListEpisodes returns a bank's experience-typed memories, optionally
// narrowed by a tag filter pre-applied in SQL, ordered by occurred_start
// (falling back to mentioned_at) descending.
func (s *Store) ListEpisodes(bankID string, tags []string, mode tagfilter.Mode) ([]*MemoryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	predicate, args := tagfilter.SQLPredicate("tags", tags, mode)
	query := `
		SELECT ` + memoryUnitColumns + ` FROM memory_units
		WHERE bank_id = ? AND fact_type = ? AND ` + predicate + `
		ORDER BY COALESCE(occurred_start, mentioned_at, 0) DESC
	`
	queryArgs := append([]any{bankID, string(FactExperience)}, args...)

	rows, err := s.db.Query(query, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MemoryUnit
	for rows.Next() {
		m, err := scanMemoryUnit(rows, s.log)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// inClause builds a "?,?,?" placeholder string and the corresponding args
// slice for a SQL IN clause.
func inClause(ids []string) (string, []any) {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders, args
}

func marshalOptional[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalOptionalOrEmpty(s sql.NullString, log zerolog.Logger, memoryID, column string) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		log.Warn().Err(err).Str("memory_id", memoryID).Str("column", column).Msg("corrupted JSON column, treating as empty")
		return nil
	}
	return out
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
