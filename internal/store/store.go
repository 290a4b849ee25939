// Package store provides the persistence layer for resources and taxonomy
// nodes: SQLite-backed CRUD via modernc.org/sqlite (pure Go, no CGO), an
// FTS5 lexical index for the lexical retrieval leg (§4.1), and authority
// vocabulary storage. The dense and sparse indexes live in internal/search,
// not here. It is grounded on the teacher's
// internal/store/sqlite_bm25.go connection-setup and corruption-recovery
// pattern, generalized from a code-chunk index to Resource/TaxonomyNode
// persistence.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/telemetry"
)

// DB wraps a single SQLite connection configured for WAL mode and holds the
// schema migrations for resources, taxonomy nodes, and their associations.
type DB struct {
	mu   sync.RWMutex
	conn *sql.DB
	path string
}

// Open opens (creating if necessary) a SQLite-backed store at path, or an
// in-memory store if path is ":memory:" or empty. It mirrors the teacher's
// single-writer WAL configuration: one open connection, busy-timeout
// tolerant of lock contention.
func Open(path string) (*DB, error) {
	dsn := ":memory:"
	if path != "" && path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
		if err := validateIntegrity(path); err != nil {
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	conn, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer conn.Close()
	var result string
	if err := conn.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS resources (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '[]',
	creator TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	classification_code TEXT NOT NULL DEFAULT '',
	read_status TEXT NOT NULL DEFAULT 'unread',
	quality_overall REAL NOT NULL DEFAULT 0,
	quality_dimensions TEXT NOT NULL DEFAULT '{}',
	quality_weights TEXT NOT NULL DEFAULT '{}',
	embedding BLOB,
	sparse_embedding TEXT,
	sparse_embedding_model TEXT NOT NULL DEFAULT '',
	sparse_embedding_updated_at DATETIME,
	ingestion_status TEXT NOT NULL DEFAULT 'pending',
	ingestion_error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS resources_fts USING fts5(
	id UNINDEXED,
	title,
	description,
	creator,
	subject,
	content='resources',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS resources_ai AFTER INSERT ON resources BEGIN
	INSERT INTO resources_fts(rowid, id, title, description, creator, subject)
	VALUES (new.rowid, new.id, new.title, new.description, new.creator, new.subject);
END;
CREATE TRIGGER IF NOT EXISTS resources_ad AFTER DELETE ON resources BEGIN
	INSERT INTO resources_fts(resources_fts, rowid, id, title, description, creator, subject)
	VALUES ('delete', old.rowid, old.id, old.title, old.description, old.creator, old.subject);
END;
CREATE TRIGGER IF NOT EXISTS resources_au AFTER UPDATE ON resources BEGIN
	INSERT INTO resources_fts(resources_fts, rowid, id, title, description, creator, subject)
	VALUES ('delete', old.rowid, old.id, old.title, old.description, old.creator, old.subject);
	INSERT INTO resources_fts(rowid, id, title, description, creator, subject)
	VALUES (new.rowid, new.id, new.title, new.description, new.creator, new.subject);
END;

CREATE TABLE IF NOT EXISTS taxonomy_nodes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	parent_id TEXT REFERENCES taxonomy_nodes(id) ON DELETE RESTRICT,
	level INTEGER NOT NULL DEFAULT 0,
	path TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	description TEXT NOT NULL DEFAULT '',
	allow_resources INTEGER NOT NULL DEFAULT 1,
	resource_count INTEGER NOT NULL DEFAULT 0,
	descendant_resource_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(parent_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_taxonomy_path ON taxonomy_nodes(path);

CREATE TABLE IF NOT EXISTS authority_entries (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	canonical TEXT NOT NULL,
	variants TEXT NOT NULL DEFAULT '[]',
	usage_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(category, canonical)
);
CREATE INDEX IF NOT EXISTS idx_authority_category ON authority_entries(category);

CREATE TABLE IF NOT EXISTS resource_taxonomy (
	resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
	taxonomy_node_id TEXT NOT NULL REFERENCES taxonomy_nodes(id) ON DELETE CASCADE,
	confidence REAL NOT NULL DEFAULT 1,
	is_predicted INTEGER NOT NULL DEFAULT 0,
	predicted_by TEXT NOT NULL DEFAULT '',
	needs_review INTEGER NOT NULL DEFAULT 0,
	review_priority REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (resource_id, taxonomy_node_id)
);
CREATE INDEX IF NOT EXISTS idx_resource_taxonomy_node ON resource_taxonomy(taxonomy_node_id);
`

func (db *DB) migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return telemetry.InitTelemetrySchema(db.conn)
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the raw connection for packages that need direct SQL access
// (the lexical index's FTS5 MATCH queries run against the same connection
// to stay inside the single-writer WAL discipline above).
func (db *DB) Conn() *sql.DB {
	return db.conn
}
