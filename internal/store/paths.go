package store

import "database/sql"

// UpsertPath inserts a normalized path or increments its access count if it
// already exists for the bank.
func (s *Store) UpsertPath(p *Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO paths (id, bank_id, normalized_path, access_count, last_accessed, profile, project)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bank_id, normalized_path) DO UPDATE SET
			access_count = access_count + 1,
			last_accessed = excluded.last_accessed
	`, p.ID, p.BankID, p.NormalizedPath, p.AccessCount, p.LastAccessed, p.Profile, p.Project)
	return err
}

// GetPathByNormalized resolves a path row by its normalized form within a
// bank. Returns (nil, nil) if absent.
func (s *Store) GetPathByNormalized(bankID, normalized string) (*Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Path
	var lastAccessed sql.NullInt64
	var profile, project sql.NullString
	err := s.db.QueryRow(`
		SELECT id, bank_id, normalized_path, access_count, last_accessed, profile, project
		FROM paths WHERE bank_id = ? AND normalized_path = ?
	`, bankID, normalized).Scan(&p.ID, &p.BankID, &p.NormalizedPath, &p.AccessCount, &lastAccessed, &profile, &project)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
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

// AssociateMemoryPath records that memory_id was recalled in relation to
// path_id.
func (s *Store) AssociateMemoryPath(pathID, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO path_memories (path_id, memory_id) VALUES (?, ?)
		ON CONFLICT(path_id, memory_id) DO NOTHING
	`, pathID, memoryID)
	return err
}

// PathIDsForMemory returns the path IDs directly associated with a memory.
func (s *Store) PathIDsForMemory(memoryID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT path_id FROM path_memories WHERE memory_id = ?`, memoryID)
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

// RecordCoAccess bumps (or creates) the co-access strength between two paths
// touched in the same session. Path pair order is normalized so (a,b) and
// (b,a) accumulate into the same row.
func (s *Store) RecordCoAccess(pathA, pathB string, delta float64) error {
	if pathA == pathB {
		return nil
	}
	if pathA > pathB {
		pathA, pathB = pathB, pathA
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO path_coaccess (path_a, path_b, strength) VALUES (?, ?, ?)
		ON CONFLICT(path_a, path_b) DO UPDATE SET strength = strength + excluded.strength
	`, pathA, pathB, delta)
	return err
}

// CoAccessStrength returns the co-access strength between pathID and every
// other path it has an edge with, plus the maximum strength observed in the
// bank (used to normalize the location boost's co-access term).
func (s *Store) CoAccessStrength(bankID, pathID string) (map[string]float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT path_a, path_b, strength FROM path_coaccess
		WHERE path_a = ? OR path_b = ?
	`, pathID, pathID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var a, b string
		var strength float64
		if err := rows.Scan(&a, &b, &strength); err != nil {
			return nil, 0, err
		}
		other := a
		if a == pathID {
			other = b
		}
		out[other] = strength
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var maxStrength sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT MAX(strength) FROM path_coaccess pc
		JOIN paths p ON p.id = pc.path_a
		WHERE p.bank_id = ?
	`, bankID).Scan(&maxStrength)
	if err != nil {
		return nil, 0, err
	}
	return out, maxStrength.Float64, nil
}
