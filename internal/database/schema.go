// Package database manages the SQLite handle and bootstraps the schema on
// startup.
package database

// Schema contains the SQL statements for the bridge store. Every statement
// is idempotent so it can be applied on each start.
const Schema = `
-- users: One row per bridged platform account. Times are epoch
-- milliseconds; a sync time of 0 means "never synced". The key columns hold
-- JWK exports and stay NULL until the actor is first used for federation.
CREATE TABLE IF NOT EXISTS users (
    username             TEXT PRIMARY KEY,
    platform_user_id     TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    avatar_url           TEXT NOT NULL DEFAULT '',
    created_at           INTEGER NOT NULL DEFAULT 0,
    last_post_sync_at    INTEGER NOT NULL DEFAULT 0,
    last_comment_sync_at INTEGER NOT NULL DEFAULT 0,
    public_key           TEXT,
    private_key          TEXT
);

-- posts: Latest page of a user's platform posts, upserted by post_id.
-- raw_content is the platform's content blocks serialized as JSON.
CREATE TABLE IF NOT EXISTS posts (
    post_id     TEXT PRIMARY KEY,
    username    TEXT NOT NULL REFERENCES users(username),
    title       TEXT NOT NULL DEFAULT '',
    raw_content TEXT NOT NULL DEFAULT '[]',
    sensitive   INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_posts_username_created ON posts(username, created_at DESC);

-- comments: Reserved. Same shape as posts, not written by any flow yet.
CREATE TABLE IF NOT EXISTS comments (
    comment_id  TEXT PRIMARY KEY,
    post_id     TEXT NOT NULL,
    username    TEXT NOT NULL REFERENCES users(username),
    raw_content TEXT NOT NULL DEFAULT '[]',
    created_at  INTEGER NOT NULL DEFAULT 0
);

-- followers: Remote actors following a bridged user. Presence of a row is
-- what makes syncing that user worthwhile.
CREATE TABLE IF NOT EXISTS followers (
    username TEXT NOT NULL REFERENCES users(username),
    actor    TEXT NOT NULL,
    PRIMARY KEY (username, actor)
);
`
