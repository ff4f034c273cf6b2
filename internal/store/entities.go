package store

import (
	"database/sql"
	"fmt"
)

// UpsertEntity inserts or creates an entity keyed by (bank_id, canonical_name).
func (s *Store) UpsertEntity(e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO entities (id, bank_id, name, canonical_name, entity_type, mention_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bank_id, canonical_name) DO UPDATE SET
			name = excluded.name,
			entity_type = excluded.entity_type,
			mention_count = excluded.mention_count
	`, e.ID, e.BankID, e.Name, e.CanonicalName, e.EntityType, e.MentionCount)
	return err
}

// GetEntityByCanonicalName resolves an entity within a bank by its canonical
// name. Returns (nil, nil) if absent.
func (s *Store) GetEntityByCanonicalName(bankID, canonicalName string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entity
	err := s.db.QueryRow(`
		SELECT id, bank_id, name, canonical_name, entity_type, mention_count
		FROM entities WHERE bank_id = ? AND canonical_name = ?
	`, bankID, canonicalName).Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.MentionCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// IncrementMentionCount bumps an entity's mention_count by delta.
func (s *Store) IncrementMentionCount(entityID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE entities SET mention_count = mention_count + ? WHERE id = ?`, delta, entityID)
	return err
}

// ListEntities returns every entity in a bank, ordered by name.
func (s *Store) ListEntities(bankID string) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, bank_id, name, canonical_name, entity_type, mention_count
		FROM entities WHERE bank_id = ? ORDER BY name
	`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.MentionCount); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetEntitiesByName resolves every entity in a bank whose name matches one
// of names (used to seed graph retrieval after Aho-Corasick scanning).
func (s *Store) GetEntitiesByName(bankID string, names []string) ([]*Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(names)
	args = append([]any{bankID}, args...)
	rows, err := s.db.Query(`
		SELECT id, bank_id, name, canonical_name, entity_type, mention_count
		FROM entities WHERE bank_id = ? AND canonical_name IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.MentionCount); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// LinkMemoryEntity creates the (memory_id, entity_id) junction row if absent.
func (s *Store) LinkMemoryEntity(memoryID, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO memory_entities (memory_id, entity_id) VALUES (?, ?)
		ON CONFLICT(memory_id, entity_id) DO NOTHING
	`, memoryID, entityID)
	return err
}

// GetEntitiesForMemories batch-loads (memory_id -> entity IDs) junctions,
// then the entity rows themselves, in two IN-queries.
func (s *Store) GetEntitiesForMemories(memoryIDs []string) (map[string][]*Entity, error) {
	out := make(map[string][]*Entity, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return out, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(memoryIDs)
	junctionRows, err := s.db.Query(`
		SELECT memory_id, entity_id FROM memory_entities WHERE memory_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("load junctions: %w", err)
	}
	defer junctionRows.Close()

	entityToMemories := make(map[string][]string)
	var entityIDs []string
	seen := make(map[string]bool)
	for junctionRows.Next() {
		var memoryID, entityID string
		if err := junctionRows.Scan(&memoryID, &entityID); err != nil {
			return nil, err
		}
		entityToMemories[entityID] = append(entityToMemories[entityID], memoryID)
		if !seen[entityID] {
			seen[entityID] = true
			entityIDs = append(entityIDs, entityID)
		}
	}
	if err := junctionRows.Err(); err != nil {
		return nil, err
	}
	if len(entityIDs) == 0 {
		return out, nil
	}

	entPlaceholders, entArgs := inClause(entityIDs)
	entRows, err := s.db.Query(`
		SELECT id, bank_id, name, canonical_name, entity_type, mention_count
		FROM entities WHERE id IN (`+entPlaceholders+`)
	`, entArgs...)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer entRows.Close()

	for entRows.Next() {
		var e Entity
		if err := entRows.Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.MentionCount); err != nil {
			return nil, err
		}
		for _, memoryID := range entityToMemories[e.ID] {
			out[memoryID] = append(out[memoryID], &e)
		}
	}
	return out, entRows.Err()
}

// GetMemoriesForEntities returns, for each entity ID, the memories linked to
// it — the seed-resolution query for graph retrieval.
func (s *Store) GetMemoriesForEntities(entityIDs []string) ([]string, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(entityIDs)
	rows, err := s.db.Query(`
		SELECT DISTINCT memory_id FROM memory_entities WHERE entity_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
