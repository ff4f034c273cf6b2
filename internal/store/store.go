// Package store provides SQLite-backed persistence for the memory engine.
// Uses ncruces/go-sqlite3/driver, which provides a database/sql interface,
// plus the sqlite-vec extension for vector KNN and FTS5 for BM25 fulltext.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/rs/zerolog"
)

// DefaultVectorDim is the embedding width used when a Store is opened
// without an explicit dimension.
const DefaultVectorDim = 384

// Store is the SQLite-backed data store for banks, memory units, entities,
// links, chunks, and the location graph. It serializes writes behind a
// single mutex, mirroring the embedded single-writer model the engine is
// built for.
type Store struct {
	mu  sync.RWMutex
	db  *sql.DB
	dim int
	log zerolog.Logger
}

// Option configures a Store at construction time.
type Option func(*options)

type options struct {
	vectorDim int
	log       zerolog.Logger
}

// WithVectorDim sets the embedding dimension for the memory_vectors index.
func WithVectorDim(dim int) Option {
	return func(o *options) { o.vectorDim = dim }
}

// WithLogger sets the structured logger used for local-recovery warnings
// (e.g. corrupted JSON columns); the zero Store defaults to zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Open creates or opens a Store at dsn. Use ":memory:" for an ephemeral
// store or a file path for a persistent one.
func Open(dsn string, opts ...Option) (*Store, error) {
	cfg := options{vectorDim: DefaultVectorDim, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(vectorTableSchema(cfg.vectorDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create vector index: %w", err)
	}

	return &Store{db: db, dim: cfg.vectorDim, log: cfg.log}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// VectorDim returns the configured embedding width.
func (s *Store) VectorDim() int { return s.dim }

// =============================================================================
// Bank CRUD
// =============================================================================

// UpsertBank inserts or updates a bank by ID.
func (s *Store) UpsertBank(b *Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO banks (id, name, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, b.ID, b.Name, b.Config, b.CreatedAt, b.UpdatedAt)
	return err
}

// GetBank retrieves a bank by ID. Returns (nil, nil) if absent.
func (s *Store) GetBank(id string) (*Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b Bank
	var config sql.NullString
	err := s.db.QueryRow(`
		SELECT id, name, config, created_at, updated_at FROM banks WHERE id = ?
	`, id).Scan(&b.ID, &b.Name, &config, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if config.Valid {
		b.Config = config.String
	}
	return &b, nil
}

// GetBankByName retrieves a bank by its unique name.
func (s *Store) GetBankByName(name string) (*Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b Bank
	var config sql.NullString
	err := s.db.QueryRow(`
		SELECT id, name, config, created_at, updated_at FROM banks WHERE name = ?
	`, name).Scan(&b.ID, &b.Name, &config, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if config.Valid {
		b.Config = config.String
	}
	return &b, nil
}

// DeleteBank removes a bank and every row it owns: memories (and their FTS
// and vector shadow rows, via trigger/explicit delete), entities, links,
// paths, and co-access edges.
func (s *Store) DeleteBank(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	memIDs, err := queryIDs(tx, "SELECT id FROM memory_units WHERE bank_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bank: list memories: %w", err)
	}
	for _, mid := range memIDs {
		if _, err := tx.Exec("DELETE FROM memory_vectors WHERE memory_id = ?", mid); err != nil {
			return fmt.Errorf("delete bank: vector row %s: %w", mid, err)
		}
		if _, err := tx.Exec("DELETE FROM path_memories WHERE memory_id = ?", mid); err != nil {
			return fmt.Errorf("delete bank: path memory %s: %w", mid, err)
		}
	}

	pathIDs, err := queryIDs(tx, "SELECT id FROM paths WHERE bank_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bank: list paths: %w", err)
	}
	for _, pid := range pathIDs {
		if _, err := tx.Exec("DELETE FROM path_coaccess WHERE path_a = ? OR path_b = ?", pid, pid); err != nil {
			return fmt.Errorf("delete bank: coaccess %s: %w", pid, err)
		}
	}

	stmts := []string{
		"DELETE FROM memory_entities WHERE memory_id IN (SELECT id FROM memory_units WHERE bank_id = ?)",
		"DELETE FROM memory_links WHERE bank_id = ?",
		"DELETE FROM memory_units WHERE bank_id = ?",
		"DELETE FROM entities WHERE bank_id = ?",
		"DELETE FROM paths WHERE bank_id = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("delete bank: %w", err)
		}
	}
	if _, err := tx.Exec("DELETE FROM banks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete bank: %w", err)
	}

	return tx.Commit()
}

func queryIDs(tx *sql.Tx, query string, arg any) ([]string, error) {
	rows, err := tx.Query(query, arg)
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
