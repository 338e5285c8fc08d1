package sqlite

// Schema bootstrap. Safe to run repeatedly: everything is IF NOT EXISTS.
const schema = `
CREATE TABLE IF NOT EXISTS boards (
    id          BLOB PRIMARY KEY,
    slug        TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    description TEXT,
    settings    TEXT NOT NULL DEFAULT '{}',
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
    id        BLOB PRIMARY KEY,
    board_id  BLOB NOT NULL REFERENCES boards(id),
    last_bump TIMESTAMP NOT NULL,
    is_sticky BOOLEAN NOT NULL DEFAULT 0,
    is_locked BOOLEAN NOT NULL DEFAULT 0,
    metadata  TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_threads_listing
    ON threads(board_id, is_sticky DESC, last_bump DESC);

CREATE TABLE IF NOT EXISTS posts (
    id                BLOB PRIMARY KEY,
    thread_id         BLOB NOT NULL REFERENCES threads(id),
    user_id_in_thread TEXT NOT NULL,
    content           TEXT NOT NULL,
    media_id          TEXT,
    is_op             BOOLEAN NOT NULL DEFAULT 0,
    created_at        TIMESTAMP NOT NULL,
    metadata          TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_posts_thread_created
    ON posts(thread_id, created_at);

CREATE TABLE IF NOT EXISTS bans (
    id         BLOB PRIMARY KEY,
    ip_address TEXT NOT NULL,
    reason     TEXT NOT NULL,
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
`
