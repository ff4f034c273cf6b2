package store

import "strconv"

// schema defines all tables, indexes, and virtual tables for the memory engine.
const schema = `
CREATE TABLE IF NOT EXISTS banks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    config TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_units (
    id TEXT PRIMARY KEY,
    bank_id TEXT NOT NULL,
    content TEXT NOT NULL,
    source_text TEXT,
    gist TEXT,
    fact_type TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0,
    occurred_start INTEGER,
    occurred_end INTEGER,
    mentioned_at INTEGER,
    event_date INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed INTEGER,
    encoding_strength REAL NOT NULL DEFAULT 1.0,
    tags TEXT,
    document_id TEXT,
    chunk_id TEXT,
    source_memory_ids TEXT,
    scope_profile TEXT,
    scope_project TEXT
);

CREATE INDEX IF NOT EXISTS idx_memory_units_bank ON memory_units(bank_id);
CREATE INDEX IF NOT EXISTS idx_memory_units_fact_type ON memory_units(bank_id, fact_type);
CREATE INDEX IF NOT EXISTS idx_memory_units_document ON memory_units(document_id);
CREATE INDEX IF NOT EXISTS idx_memory_units_scope ON memory_units(bank_id, scope_profile, scope_project);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    bank_id TEXT NOT NULL,
    name TEXT NOT NULL,
    canonical_name TEXT NOT NULL,
    entity_type TEXT,
    mention_count INTEGER NOT NULL DEFAULT 0,
    UNIQUE(bank_id, canonical_name)
);

CREATE INDEX IF NOT EXISTS idx_entities_bank ON entities(bank_id);

CREATE TABLE IF NOT EXISTS memory_entities (
    memory_id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    PRIMARY KEY (memory_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);

CREATE TABLE IF NOT EXISTS memory_links (
    id TEXT PRIMARY KEY,
    bank_id TEXT NOT NULL,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    link_type TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_links_source ON memory_links(source_id, link_type);
CREATE INDEX IF NOT EXISTS idx_memory_links_target ON memory_links(target_id, link_type);
CREATE INDEX IF NOT EXISTS idx_memory_links_bank ON memory_links(bank_id);

CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);

CREATE TABLE IF NOT EXISTS paths (
    id TEXT PRIMARY KEY,
    bank_id TEXT NOT NULL,
    normalized_path TEXT NOT NULL,
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed INTEGER,
    profile TEXT,
    project TEXT,
    UNIQUE(bank_id, normalized_path)
);

CREATE INDEX IF NOT EXISTS idx_paths_bank ON paths(bank_id);

CREATE TABLE IF NOT EXISTS path_memories (
    path_id TEXT NOT NULL,
    memory_id TEXT NOT NULL,
    PRIMARY KEY (path_id, memory_id)
);

CREATE INDEX IF NOT EXISTS idx_path_memories_memory ON path_memories(memory_id);

CREATE TABLE IF NOT EXISTS path_coaccess (
    path_a TEXT NOT NULL,
    path_b TEXT NOT NULL,
    strength REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (path_a, path_b)
);

-- Fulltext shadow index over memory_units, porter-stemmed.
CREATE VIRTUAL TABLE IF NOT EXISTS memory_units_fts USING fts5(
    content,
    tags,
    bank_id UNINDEXED,
    content='memory_units',
    content_rowid='rowid',
    tokenize='porter'
);

CREATE TRIGGER IF NOT EXISTS memory_units_ai AFTER INSERT ON memory_units BEGIN
    INSERT INTO memory_units_fts(rowid, content, tags, bank_id)
    VALUES (new.rowid, new.content, coalesce(new.tags, ''), new.bank_id);
END;

CREATE TRIGGER IF NOT EXISTS memory_units_ad AFTER DELETE ON memory_units BEGIN
    INSERT INTO memory_units_fts(memory_units_fts, rowid, content, tags, bank_id)
    VALUES ('delete', old.rowid, old.content, coalesce(old.tags, ''), old.bank_id);
END;

CREATE TRIGGER IF NOT EXISTS memory_units_au AFTER UPDATE ON memory_units BEGIN
    INSERT INTO memory_units_fts(memory_units_fts, rowid, content, tags, bank_id)
    VALUES ('delete', old.rowid, old.content, coalesce(old.tags, ''), old.bank_id);
    INSERT INTO memory_units_fts(rowid, content, tags, bank_id)
    VALUES (new.rowid, new.content, coalesce(new.tags, ''), new.bank_id);
END;
`

// vectorTableSchema returns the CREATE VIRTUAL TABLE statement for the
// memory_vectors vec0 index at the given embedding dimension. One table per
// owner kind is a design goal; memories are the only owner kind wired in
// this repo, entities/mental-models are left as schema headroom.
func vectorTableSchema(dim int) string {
	return `CREATE VIRTUAL TABLE IF NOT EXISTS memory_vectors USING vec0(
    memory_id TEXT PRIMARY KEY,
    embedding FLOAT[` + strconv.Itoa(dim) + `] distance_metric=cosine
)`
}
