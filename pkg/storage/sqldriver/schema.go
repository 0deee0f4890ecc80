package sqldriver

import (
	"context"
	"strings"

	"github.com/poucet/noema-sub001/pkg/storage"
)

// schema is the shared DDL. Statements are append-only; new tables, columns
// and indexes may be added but existing ones never change shape, so IF NOT
// EXISTS migration stays sufficient. The {{BLOB}} marker is replaced with
// the dialect's binary column type.
const schema = `
CREATE TABLE IF NOT EXISTS content_blocks (
	id TEXT PRIMARY KEY,
	digest TEXT NOT NULL,
	media_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	origin TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_blocks_digest ON content_blocks(digest);

CREATE TABLE IF NOT EXISTS content_assets (
	id TEXT PRIMARY KEY,
	media_type TEXT NOT NULL,
	data {{BLOB}} NOT NULL,
	origin TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(conversation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id);

CREATE TABLE IF NOT EXISTS alternatives (
	id TEXT PRIMARY KEY,
	turn_id TEXT NOT NULL REFERENCES turns(id),
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	seq INTEGER NOT NULL,
	model_id TEXT NOT NULL DEFAULT '',
	closed INTEGER NOT NULL DEFAULT 0,
	incomplete INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	closed_at TEXT,
	UNIQUE(turn_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_alternatives_turn ON alternatives(turn_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	alternative_id TEXT NOT NULL REFERENCES alternatives(id),
	seq INTEGER NOT NULL,
	content_id TEXT NOT NULL REFERENCES content_blocks(id),
	asset_ids TEXT NOT NULL DEFAULT '[]',
	tool_calls TEXT NOT NULL DEFAULT '[]',
	tool_results TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	UNIQUE(alternative_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_messages_alternative ON messages(alternative_id);

CREATE TABLE IF NOT EXISTS views (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	name TEXT NOT NULL DEFAULT '',
	forked_from TEXT NOT NULL DEFAULT '',
	frontier_seq INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_views_conversation ON views(conversation_id);

CREATE TABLE IF NOT EXISTS selections (
	view_id TEXT NOT NULL REFERENCES views(id),
	turn_id TEXT NOT NULL REFERENCES turns(id),
	alternative_id TEXT NOT NULL REFERENCES alternatives(id),
	turn_seq INTEGER NOT NULL,
	PRIMARY KEY(view_id, turn_id)
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	root_revision_id TEXT NOT NULL DEFAULT '',
	current_revision_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revisions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	parent_id TEXT REFERENCES revisions(id),
	content_id TEXT NOT NULL REFERENCES content_blocks(id),
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_revisions_document ON revisions(document_id);

CREATE TABLE IF NOT EXISTS collections (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL REFERENCES collections(id),
	parent_id TEXT REFERENCES items(id),
	position REAL NOT NULL DEFAULT 0,
	target_kind TEXT NOT NULL,
	target_id TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	fields TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_collection ON items(collection_id);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);

CREATE TABLE IF NOT EXISTS refs (
	from_kind TEXT NOT NULL,
	from_id TEXT NOT NULL,
	to_kind TEXT NOT NULL,
	to_id TEXT NOT NULL,
	relation TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	PRIMARY KEY(from_kind, from_id, to_kind, to_id, relation)
);

CREATE INDEX IF NOT EXISTS idx_refs_to ON refs(to_kind, to_id);
`

// Migrate creates the tables if they don't exist.
func (d *Driver) Migrate(ctx context.Context) error {
	blob := "BLOB"
	if d.Dialect == DialectPostgres {
		blob = "BYTEA"
	}

	ddl := strings.ReplaceAll(schema, "{{BLOB}}", blob)

	_, err := d.DB.ExecContext(ctx, ddl)
	return storage.Unavailable("migrate", err)
}
