package store

import "database/sql"

// InsertChunk stores a document chunk.
func (s *Store) InsertChunk(c *Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO chunks (id, document_id, chunk_index, content) VALUES (?, ?, ?, ?)
	`, c.ID, c.DocumentID, c.ChunkIndex, c.Content)
	return err
}

// GetChunk retrieves a single chunk by ID.
func (s *Store) GetChunk(id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Chunk
	err := s.db.QueryRow(`
		SELECT id, document_id, chunk_index, content FROM chunks WHERE id = ?
	`, id).Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChunksForDocument returns every chunk of a document, in order.
func (s *Store) ListChunksForDocument(documentID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, document_id, chunk_index, content FROM chunks
		WHERE document_id = ? ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListDocumentIDs returns the distinct document IDs referenced by any memory
// in the bank — the backing query for the read-only list_documents operation.
func (s *Store) ListDocumentIDs(bankID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT DISTINCT document_id FROM memory_units
		WHERE bank_id = ? AND document_id IS NOT NULL
	`, bankID)
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
