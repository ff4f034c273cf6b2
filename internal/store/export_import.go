package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// exportData is the full-database JSON envelope produced by Export and
// consumed by Import. Embeddings are intentionally excluded — vectors are
// regenerated by the caller's embedding pipeline rather than serialized.
type exportData struct {
	Banks       []*Bank       `json:"banks"`
	MemoryUnits []*MemoryUnit `json:"memory_units"`
	Entities    []*Entity     `json:"entities"`
	Links       []*MemoryLink `json:"memory_links"`
	Chunks      []*Chunk      `json:"chunks"`
	Paths       []*Path       `json:"paths"`
}

// Export serializes the entire database to JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data exportData

	bankRows, err := s.db.Query(`SELECT id, name, config, created_at, updated_at FROM banks`)
	if err != nil {
		return nil, fmt.Errorf("export banks: %w", err)
	}
	for bankRows.Next() {
		var b Bank
		if err := bankRows.Scan(&b.ID, &b.Name, &b.Config, &b.CreatedAt, &b.UpdatedAt); err != nil {
			bankRows.Close()
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		data.Banks = append(data.Banks, &b)
	}
	bankRows.Close()
	if err := bankRows.Err(); err != nil {
		return nil, err
	}

	memRows, err := s.db.Query(`SELECT ` + memoryUnitColumns + ` FROM memory_units`)
	if err != nil {
		return nil, fmt.Errorf("export memory_units: %w", err)
	}
	for memRows.Next() {
		m, err := scanMemoryUnit(memRows, s.log)
		if err != nil {
			memRows.Close()
			return nil, fmt.Errorf("scan memory_unit: %w", err)
		}
		data.MemoryUnits = append(data.MemoryUnits, m)
	}
	memRows.Close()
	if err := memRows.Err(); err != nil {
		return nil, err
	}

	entRows, err := s.db.Query(`SELECT id, bank_id, name, canonical_name, entity_type, mention_count FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("export entities: %w", err)
	}
	for entRows.Next() {
		var e Entity
		if err := entRows.Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.MentionCount); err != nil {
			entRows.Close()
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		data.Entities = append(data.Entities, &e)
	}
	entRows.Close()
	if err := entRows.Err(); err != nil {
		return nil, err
	}

	linkRows, err := s.db.Query(`SELECT id, bank_id, source_id, target_id, link_type, weight, created_at FROM memory_links`)
	if err != nil {
		return nil, fmt.Errorf("export memory_links: %w", err)
	}
	for linkRows.Next() {
		var l MemoryLink
		var linkType string
		if err := linkRows.Scan(&l.ID, &l.BankID, &l.SourceID, &l.TargetID, &linkType, &l.Weight, &l.CreatedAt); err != nil {
			linkRows.Close()
			return nil, fmt.Errorf("scan memory_link: %w", err)
		}
		l.LinkType = LinkType(linkType)
		data.Links = append(data.Links, &l)
	}
	linkRows.Close()
	if err := linkRows.Err(); err != nil {
		return nil, err
	}

	chunkRows, err := s.db.Query(`SELECT id, document_id, chunk_index, content FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("export chunks: %w", err)
	}
	for chunkRows.Next() {
		var c Chunk
		if err := chunkRows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content); err != nil {
			chunkRows.Close()
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		data.Chunks = append(data.Chunks, &c)
	}
	chunkRows.Close()
	if err := chunkRows.Err(); err != nil {
		return nil, err
	}

	pathRows, err := s.db.Query(`SELECT id, bank_id, normalized_path, access_count, last_accessed, profile, project FROM paths`)
	if err != nil {
		return nil, fmt.Errorf("export paths: %w", err)
	}
	for pathRows.Next() {
		p, err := scanPathRow(pathRows)
		if err != nil {
			pathRows.Close()
			return nil, fmt.Errorf("scan path: %w", err)
		}
		data.Paths = append(data.Paths, p)
	}
	pathRows.Close()
	if err := pathRows.Err(); err != nil {
		return nil, err
	}

	return json.Marshal(data)
}

// rowScanner lets scanPathRow share code between *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPathRow(r rowScanner) (*Path, error) {
	var p Path
	var lastAccessed sql.NullInt64
	var profile, project sql.NullString
	if err := r.Scan(&p.ID, &p.BankID, &p.NormalizedPath, &p.AccessCount, &lastAccessed, &profile, &project); err != nil {
		return nil, err
	}
	if lastAccessed.Valid {
		p.LastAccessed = &lastAccessed.Int64
	}
	if profile.Valid {
		p.Profile = profile.String
	}
	if project.Valid {
		p.Project = project.String
	}
	return &p, nil
}

// Import clears all tables and restores them from a previously Exported
// JSON byte slice. Embeddings are not restored; callers must re-embed.
func (s *Store) Import(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	var in exportData
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("import unmarshal: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"memory_vectors", "path_coaccess", "path_memories", "memory_entities",
		"memory_links", "chunks", "paths", "entities", "memory_units", "banks",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, b := range in.Banks {
		if _, err := tx.Exec(`INSERT INTO banks (id, name, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			b.ID, b.Name, b.Config, b.CreatedAt, b.UpdatedAt); err != nil {
			return fmt.Errorf("import bank %s: %w", b.ID, err)
		}
	}

	for _, m := range in.MemoryUnits {
		tagsJSON, err := marshalOptional(m.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", m.ID, err)
		}
		sourceIDsJSON, err := marshalOptional(m.SourceMemoryIDs)
		if err != nil {
			return fmt.Errorf("marshal source_memory_ids for %s: %w", m.ID, err)
		}
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
			return fmt.Errorf("import memory_unit %s: %w", m.ID, err)
		}
	}

	for _, e := range in.Entities {
		if _, err := tx.Exec(`
			INSERT INTO entities (id, bank_id, name, canonical_name, entity_type, mention_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.BankID, e.Name, e.CanonicalName, e.EntityType, e.MentionCount); err != nil {
			return fmt.Errorf("import entity %s: %w", e.ID, err)
		}
	}

	for _, l := range in.Links {
		if _, err := tx.Exec(`
			INSERT INTO memory_links (id, bank_id, source_id, target_id, link_type, weight, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, l.ID, l.BankID, l.SourceID, l.TargetID, string(l.LinkType), l.Weight, l.CreatedAt); err != nil {
			return fmt.Errorf("import memory_link %s: %w", l.ID, err)
		}
	}

	for _, c := range in.Chunks {
		if _, err := tx.Exec(`
			INSERT INTO chunks (id, document_id, chunk_index, content) VALUES (?, ?, ?, ?)
		`, c.ID, c.DocumentID, c.ChunkIndex, c.Content); err != nil {
			return fmt.Errorf("import chunk %s: %w", c.ID, err)
		}
	}

	for _, p := range in.Paths {
		if _, err := tx.Exec(`
			INSERT INTO paths (id, bank_id, normalized_path, access_count, last_accessed, profile, project)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.BankID, p.NormalizedPath, p.AccessCount, p.LastAccessed, p.Profile, p.Project); err != nil {
			return fmt.Errorf("import path %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}
