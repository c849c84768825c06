package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Source registry: one row per ingested document
CREATE TABLE IF NOT EXISTS sources (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    published_at TEXT,
    status TEXT DEFAULT 'pending',
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Raw chunks in source order; immutable once written
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    heading TEXT,
    token_count INTEGER,
    content_hash TEXT NOT NULL,
    UNIQUE(source_id, chunk_index)
);

-- Parent law records, natural key official_number
CREATE TABLE IF NOT EXISTS laws (
    id INTEGER PRIMARY KEY,
    official_number TEXT NOT NULL COLLATE NOCASE UNIQUE,
    slug TEXT NOT NULL,
    law_type TEXT NOT NULL DEFAULT 'OTHER',
    category TEXT NOT NULL DEFAULT 'ADMINISTRATIVE',
    enactment_date TEXT,
    official_title TEXT,
    url TEXT,
    source_id TEXT REFERENCES sources(id) ON DELETE SET NULL,
    translations JSON,
    tags JSON,
    status TEXT NOT NULL DEFAULT 'PENDING',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Article identity: (law, article_number)
CREATE TABLE IF NOT EXISTS law_articles (
    id INTEGER PRIMARY KEY,
    law_id INTEGER NOT NULL REFERENCES laws(id) ON DELETE CASCADE,
    article_number TEXT NOT NULL,
    number_key TEXT NOT NULL,
    article_order INTEGER NOT NULL DEFAULT 0,
    UNIQUE(law_id, article_number)
);

-- Versioned article text with validity window
CREATE TABLE IF NOT EXISTS law_article_versions (
    id INTEGER PRIMARY KEY,
    article_id INTEGER NOT NULL REFERENCES law_articles(id) ON DELETE CASCADE,
    official_text TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'ACTIVE'
        CHECK (status IN ('ACTIVE', 'SUPERSEDED', 'REVOKED', 'DRAFT')),
    valid_from TEXT,
    valid_to TEXT,
    category TEXT,
    translations JSON,
    tags JSON,
    cross_references JSON,
    run_id TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Typed law-to-law edges
CREATE TABLE IF NOT EXISTS law_relationships (
    id INTEGER PRIMARY KEY,
    source_law_id INTEGER NOT NULL REFERENCES laws(id) ON DELETE CASCADE,
    target_law_id INTEGER NOT NULL REFERENCES laws(id) ON DELETE CASCADE,
    relationship_type TEXT NOT NULL,
    target_article_key TEXT NOT NULL DEFAULT '',
    full_supersession INTEGER NOT NULL DEFAULT 0,
    source_article_id INTEGER REFERENCES law_articles(id) ON DELETE SET NULL,
    description TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_law_id, target_law_id, relationship_type, target_article_key),
    CHECK (source_law_id <> target_law_id)
);

-- Article-to-article references (internal or across laws)
CREATE TABLE IF NOT EXISTS law_article_references (
    source_article_id INTEGER NOT NULL REFERENCES law_articles(id) ON DELETE CASCADE,
    target_article_id INTEGER NOT NULL REFERENCES law_articles(id) ON DELETE CASCADE,
    relationship_type TEXT NOT NULL,
    PRIMARY KEY (source_article_id, target_article_id, relationship_type)
);

-- Shared tags
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL COLLATE NOCASE,
    tag_type TEXT NOT NULL,
    UNIQUE(name, tag_type)
);

CREATE TABLE IF NOT EXISTS article_version_tags (
    version_id INTEGER NOT NULL REFERENCES law_article_versions(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (version_id, tag_id)
);

CREATE TABLE IF NOT EXISTS law_tags (
    law_id INTEGER NOT NULL REFERENCES laws(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (law_id, tag_id)
);

-- Summary embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_article_versions USING vec0(
    version_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search over article text and Portuguese summary
CREATE VIRTUAL TABLE IF NOT EXISTS article_versions_fts USING fts5(
    official_text,
    summary,
    content='',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS law_article_versions_ai AFTER INSERT ON law_article_versions BEGIN
    INSERT INTO article_versions_fts(rowid, official_text, summary)
    VALUES (new.id, new.official_text, COALESCE(json_extract(new.translations, '$.pt.summary'), ''));
END;
CREATE TRIGGER IF NOT EXISTS law_article_versions_ad AFTER DELETE ON law_article_versions BEGIN
    INSERT INTO article_versions_fts(article_versions_fts, rowid, official_text, summary)
    VALUES ('delete', old.id, old.official_text, COALESCE(json_extract(old.translations, '$.pt.summary'), ''));
END;
CREATE TRIGGER IF NOT EXISTS law_article_versions_au AFTER UPDATE OF official_text, translations ON law_article_versions BEGIN
    INSERT INTO article_versions_fts(article_versions_fts, rowid, official_text, summary)
    VALUES ('delete', old.id, old.official_text, COALESCE(json_extract(old.translations, '$.pt.summary'), ''));
    INSERT INTO article_versions_fts(rowid, official_text, summary)
    VALUES (new.id, new.official_text, COALESCE(json_extract(new.translations, '$.pt.summary'), ''));
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);
CREATE INDEX IF NOT EXISTS idx_laws_slug ON laws(slug);
CREATE INDEX IF NOT EXISTS idx_laws_source ON laws(source_id);
CREATE INDEX IF NOT EXISTS idx_law_articles_key ON law_articles(law_id, number_key);
CREATE INDEX IF NOT EXISTS idx_versions_article ON law_article_versions(article_id);
CREATE INDEX IF NOT EXISTS idx_versions_status ON law_article_versions(status);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON law_relationships(source_law_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON law_relationships(target_law_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON law_relationships(relationship_type);
CREATE INDEX IF NOT EXISTS idx_article_refs_target ON law_article_references(target_article_id);
CREATE INDEX IF NOT EXISTS idx_version_tags_tag ON article_version_tags(tag_id);
CREATE INDEX IF NOT EXISTS idx_law_tags_tag ON law_tags(tag_id);
`, embeddingDim)
}
