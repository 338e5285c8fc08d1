package pg

const schema = `
CREATE TABLE IF NOT EXISTS boards (
    id          UUID PRIMARY KEY,
    slug        TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    description TEXT,
    settings    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
    id        UUID PRIMARY KEY,
    board_id  UUID NOT NULL REFERENCES boards(id),
    last_bump TIMESTAMPTZ NOT NULL,
    is_sticky BOOLEAN NOT NULL DEFAULT FALSE,
    is_locked BOOLEAN NOT NULL DEFAULT FALSE,
    metadata  JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_threads_listing
    ON threads(board_id, is_sticky DESC, last_bump DESC);

CREATE TABLE IF NOT EXISTS posts (
    id                UUID PRIMARY KEY,
    thread_id         UUID NOT NULL REFERENCES threads(id),
    user_id_in_thread TEXT NOT NULL,
    content           TEXT NOT NULL,
    media_id          TEXT,
    is_op             BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL,
    metadata          JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_posts_thread_created
    ON posts(thread_id, created_at);

CREATE TABLE IF NOT EXISTS bans (
    id         UUID PRIMARY KEY,
    ip_address TEXT NOT NULL,
    reason     TEXT NOT NULL,
    expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL
);
`
