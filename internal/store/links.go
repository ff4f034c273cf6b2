package store

import (
	"errors"
	"fmt"
)

// ErrSelfLink is returned when a MemoryLink's source and target are equal.
var ErrSelfLink = errors.New("store: link source and target must differ")

// ErrCrossBankLink is returned when a MemoryLink's endpoints belong to
// different banks.
var ErrCrossBankLink = errors.New("store: link endpoints must share a bank")

// InsertLink creates a memory_links row after checking the endpoint
// invariants: source != target, and both endpoints share bank_id.
// sourceBank and targetBank are the owning banks of the two endpoints (the
// caller already has these from the memories it is about to link).
func (s *Store) InsertLink(l *MemoryLink, sourceBank, targetBank string) error {
	if l.SourceID == l.TargetID {
		return ErrSelfLink
	}
	if sourceBank != targetBank || sourceBank != l.BankID {
		return ErrCrossBankLink
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO memory_links (id, bank_id, source_id, target_id, link_type, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.BankID, l.SourceID, l.TargetID, string(l.LinkType), l.Weight, l.CreatedAt)
	return err
}

// LinkEdge is a lightweight view of a memory_links row used by the graph
// walker's frontier expansion.
type LinkEdge struct {
	SourceID string
	TargetID string
	Weight   float64
}

// EdgesFrom batch-fetches outbound edges of the given link type touching any
// of the frontier node IDs, honoring the graph walker's ≤500-id chunking —
// callers are expected to chunk nodeIDs themselves; this method issues one
// query per call.
func (s *Store) EdgesFrom(linkType string, nodeIDs []string, direction string) ([]LinkEdge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(nodeIDs)
	args = append(args, string(linkType))

	var query string
	switch direction {
	case "forward":
		query = fmt.Sprintf(`SELECT source_id, target_id, weight FROM memory_links WHERE source_id IN (%s) AND link_type = ?`, placeholders)
	case "backward":
		query = fmt.Sprintf(`SELECT target_id, source_id, weight FROM memory_links WHERE target_id IN (%s) AND link_type = ?`, placeholders)
	default: // "both"
		fwd := fmt.Sprintf(`SELECT source_id, target_id, weight FROM memory_links WHERE source_id IN (%s) AND link_type = ?`, placeholders)
		bwd := fmt.Sprintf(`SELECT target_id, source_id, weight FROM memory_links WHERE target_id IN (%s) AND link_type = ?`, placeholders)
		query = fwd + " UNION ALL " + bwd
		args = append(args, args...)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []LinkEdge
	for rows.Next() {
		var e LinkEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Weight); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EdgesAmong returns every link of any type whose source and target are
// both within nodeIDs — the cognitive scorer's spread term sums over edges
// connecting candidates already in the current result pool, regardless of
// link type or direction.
func (s *Store) EdgesAmong(nodeIDs []string) ([]LinkEdge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(nodeIDs)
	args = append(args, args...)
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT source_id, target_id, weight FROM memory_links
		WHERE source_id IN (%s) AND target_id IN (%s)
	`, placeholders, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []LinkEdge
	for rows.Next() {
		var e LinkEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Weight); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// DeleteLink removes a single link by ID.
func (s *Store) DeleteLink(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM memory_links WHERE id = ?", id)
	return err
}
