package store

const schema = `
CREATE TABLE IF NOT EXISTS peers (
	peer_id     TEXT PRIMARY KEY,
	handle      TEXT NOT NULL,
	added_at    INTEGER NOT NULL,
	pinned      INTEGER NOT NULL DEFAULT 0,
	order_index INTEGER NOT NULL DEFAULT 0,
	envelope_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS envelopes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	icon       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	msg_id         TEXT PRIMARY KEY,
	chat_id        TEXT NOT NULL,
	direction      TEXT NOT NULL,
	sender_peer_id TEXT NOT NULL,
	content_type   TEXT NOT NULL,
	text           TEXT NOT NULL DEFAULT '',
	file_hash      TEXT NOT NULL DEFAULT '',
	file_name      TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	status         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages (chat_id, msg_id);

CREATE TABLE IF NOT EXISTS files (
	hash       TEXT PRIMARY KEY,
	size_bytes INTEGER NOT NULL,
	mime_hint  TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL,
	first_seen INTEGER NOT NULL,
	origin     TEXT NOT NULL,
	sticker    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS profile (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	alias      TEXT NOT NULL DEFAULT '',
	avatar_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS theme (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	json TEXT NOT NULL DEFAULT '{}'
);
`
