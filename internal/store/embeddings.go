package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertEmbedding writes (or replaces) a memory's vector row in the vec0
// virtual table. vector must have length s.VectorDim().
func (s *Store) UpsertEmbedding(memoryID string, vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("store: embedding has dim %d, want %d", len(vector), s.dim)
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO memory_vectors (memory_id, embedding) VALUES (?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET embedding = excluded.embedding
	`, memoryID, string(raw))
	return err
}

// DeleteEmbedding removes a memory's vector row, if present.
func (s *Store) DeleteEmbedding(memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM memory_vectors WHERE memory_id = ?", memoryID)
	return err
}

// VectorMatch is one row of a KNN query result: a memory ID and its distance
// from the query vector (lower is closer; the memory_vectors column uses
// vec0's cosine metric, and the semantic strategy converts the distance to
// a similarity score).
type VectorMatch struct {
	MemoryID string
	Distance float64
}

// KNN returns the k memory_ids whose embeddings are closest to query,
// restricted to the bank by a second IN-query against memory_units — vec0
// does not carry bank_id itself so candidate rows are filtered after the
// vector scan.
func (s *Store) KNN(bankID string, query []float32, k int) ([]VectorMatch, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("store: query vector has dim %d, want %d", len(query), s.dim)
	}
	raw, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query vector: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// vec0's KNN constraint (`k = ?`) can't be combined with a bank_id
	// predicate in the same MATCH query, so over-fetch from the vector
	// index and drop rows outside the bank client-side.
	rows, err := s.db.Query(`
		SELECT memory_id, distance FROM memory_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, string(raw), k*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []VectorMatch
	for rows.Next() {
		var vm VectorMatch
		if err := rows.Scan(&vm.MemoryID, &vm.Distance); err != nil {
			return nil, err
		}
		candidates = append(candidates, vm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.MemoryID
	}
	placeholders, args := inClause(ids)
	args = append(args, bankID)
	bankRows, err := s.db.Query(`SELECT id FROM memory_units WHERE id IN (`+placeholders+`) AND bank_id = ?`, args...)
	if err != nil {
		return nil, err
	}
	defer bankRows.Close()
	inBank := make(map[string]bool)
	for bankRows.Next() {
		var id string
		if err := bankRows.Scan(&id); err != nil {
			return nil, err
		}
		inBank[id] = true
	}
	if err := bankRows.Err(); err != nil {
		return nil, err
	}

	var out []VectorMatch
	for _, c := range candidates {
		if !inBank[c.MemoryID] {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// FTSMatch is one row of a full-text search result.
type FTSMatch struct {
	MemoryID string
	Rank     float64
}

// FullTextSearch runs a BM25-ranked FTS5 query (porter-stemmed) over memory
// content and tags, restricted to bankID, returning the top k matches.
func (s *Store) FullTextSearch(bankID, query string, k int) ([]FTSMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT rowid, bm25(memory_units_fts) AS rank
		FROM memory_units_fts
		WHERE memory_units_fts MATCH ? AND bank_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, bankID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FTSMatch
	for rows.Next() {
		var rowID int64
		var rank float64
		if err := rows.Scan(&rowID, &rank); err != nil {
			return nil, err
		}
		id, err := s.memoryIDForRowID(rowID)
		if err != nil {
			return nil, err
		}
		if id == "" {
			continue
		}
		out = append(out, FTSMatch{MemoryID: id, Rank: rank})
	}
	return out, rows.Err()
}

func (s *Store) memoryIDForRowID(rowID int64) (string, error) {
	var id string
	err := s.db.QueryRow("SELECT id FROM memory_units WHERE rowid = ?", rowID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}
