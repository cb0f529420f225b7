package store

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_units (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	occurred_start INTEGER,
	occurred_end INTEGER,
	mentioned_at INTEGER NOT NULL,
	context TEXT,
	fact_type TEXT NOT NULL,
	confidence_score REAL,
	access_count INTEGER NOT NULL DEFAULT 0,
	document_id TEXT,
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memory_units_bank ON memory_units(bank_id, fact_type);
CREATE INDEX IF NOT EXISTS idx_memory_units_bank_time ON memory_units(bank_id, occurred_start, occurred_end);
CREATE INDEX IF NOT EXISTS idx_memory_units_document ON memory_units(document_id);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	canonical_name_fold TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	aliases TEXT NOT NULL DEFAULT '[]',
	UNIQUE (bank_id, canonical_name_fold)
);

CREATE INDEX IF NOT EXISTS idx_entities_bank_type ON entities(bank_id, entity_type);

CREATE TABLE IF NOT EXISTS entity_links (
	memory_id TEXT NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	PRIMARY KEY (memory_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_links_entity ON entity_links(entity_id);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL,
	src TEXT NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
	dst TEXT NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
	link_type TEXT NOT NULL,
	weight REAL NOT NULL,
	causal_kind TEXT
);

CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src, link_type);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst, link_type);

-- FTS5 keyword index over memory_units.text, kept in sync with triggers,
-- mirroring the donor's chunks_fts / embeddings trigger pattern in
-- pkg/core/store_init.go.
CREATE VIRTUAL TABLE IF NOT EXISTS memory_units_fts USING fts5(
	text, content='memory_units', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memory_units_ai AFTER INSERT ON memory_units BEGIN
	INSERT INTO memory_units_fts(rowid, text) VALUES (new.rowid, new.text);
END;
CREATE TRIGGER IF NOT EXISTS memory_units_ad AFTER DELETE ON memory_units BEGIN
	INSERT INTO memory_units_fts(memory_units_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;
CREATE TRIGGER IF NOT EXISTS memory_units_au AFTER UPDATE ON memory_units BEGIN
	INSERT INTO memory_units_fts(memory_units_fts, rowid, text) VALUES('delete', old.rowid, old.text);
	INSERT INTO memory_units_fts(rowid, text) VALUES (new.rowid, new.text);
END;
`

func (s *Store) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}
