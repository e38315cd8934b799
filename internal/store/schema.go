package store

// Schema 爬取目标、文章和执行历史三张表
// 时间列统一存Unix毫秒
const Schema = `
CREATE TABLE IF NOT EXISTS crawl_targets (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL UNIQUE,
    url             TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    selector_config TEXT NOT NULL DEFAULT '',
    cron_expression TEXT NOT NULL,
    enabled         INTEGER NOT NULL DEFAULT 1 CHECK(enabled IN (0, 1)),
    crawl_type      TEXT NOT NULL DEFAULT 'static' CHECK(crawl_type IN ('static', 'dynamic')),
    last_crawled_at INTEGER,
    last_status     TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS news_articles (
    id            TEXT PRIMARY KEY,
    target_id     INTEGER NOT NULL REFERENCES crawl_targets(id) ON DELETE CASCADE,
    content_hash  TEXT NOT NULL UNIQUE,
    original_url  TEXT NOT NULL,
    title         TEXT NOT NULL,
    content       TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    published_at  INTEGER,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    crawled_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_news_articles_target ON news_articles(target_id, crawled_at);

CREATE TABLE IF NOT EXISTS crawl_history (
    id             TEXT PRIMARY KEY,
    target_id      INTEGER NOT NULL REFERENCES crawl_targets(id) ON DELETE CASCADE,
    status         TEXT NOT NULL CHECK(status IN ('SUCCESS', 'FAILED', 'PARTIAL')),
    articles_found INTEGER NOT NULL DEFAULT 0,
    articles_new   INTEGER NOT NULL DEFAULT 0,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    error_message  TEXT NOT NULL DEFAULT '',
    executed_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crawl_history_target ON crawl_history(target_id, executed_at);
`
