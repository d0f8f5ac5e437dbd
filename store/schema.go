package store

// schemaSQL is the DDL for the corpus and link tables.
const schemaSQL = `
-- Hierarchical legal documents (acts, judgments, rule compilations)
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    doc_type TEXT NOT NULL CHECK (doc_type IN ('statute', 'case', 'rule')),
    parent_id TEXT REFERENCES documents(id) ON DELETE CASCADE,
    level INTEGER NOT NULL CHECK (level BETWEEN 0 AND 3),
    title TEXT NOT NULL,
    citation TEXT,
    court TEXT,
    year INTEGER,
    parties TEXT,
    jurisdiction TEXT DEFAULT 'SG',
    hash TEXT NOT NULL,
    section_number TEXT,
    section_title TEXT,
    act_name TEXT,
    subsection TEXT,
    para_no INTEGER,
    cause_of_action TEXT,
    outcome TEXT,
    remedy_awarded TEXT,
    facts_summary TEXT,
    full_text TEXT NOT NULL,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Statute-to-case interpretation links with denormalized display fields
CREATE TABLE IF NOT EXISTS interpretation_links (
    id TEXT PRIMARY KEY,
    statute_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    case_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    statute_name TEXT,
    statute_section TEXT,
    statute_text TEXT,
    case_name TEXT,
    case_citation TEXT,
    case_para_no INTEGER,
    case_text TEXT,
    court TEXT,
    year INTEGER,
    interpretation_type TEXT NOT NULL CHECK (interpretation_type IN
        ('NARROW', 'BROAD', 'CLARIFY', 'PURPOSIVE', 'LITERAL', 'APPLY')),
    authority TEXT NOT NULL CHECK (authority IN
        ('BINDING', 'PERSUASIVE', 'OBITER', 'DISSENT')),
    holding TEXT NOT NULL,
    fact_pattern_tags JSON,
    cause_of_action TEXT,
    sub_issues JSON,
    applicability_score REAL NOT NULL DEFAULT 0.5
        CHECK (applicability_score BETWEEN 0.0 AND 1.0),
    boost_factor REAL NOT NULL DEFAULT 2.0
        CHECK (boost_factor BETWEEN 1.0 AND 3.0),
    verified INTEGER NOT NULL DEFAULT 0,
    verified_by TEXT,
    verified_at DATETIME,
    extraction_method TEXT NOT NULL CHECK (extraction_method IN
        ('RULE_BASED', 'LLM_ASSISTED', 'MANUAL')),
    extraction_confidence REAL NOT NULL DEFAULT 0.5
        CHECK (extraction_confidence BETWEEN 0.0 AND 1.0),
    notes TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (statute_id, case_id)
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_documents_tree ON documents(parent_id, level);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);
CREATE INDEX IF NOT EXISTS idx_documents_citation ON documents(citation);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash);
CREATE INDEX IF NOT EXISTS idx_links_statute ON interpretation_links(statute_id);
CREATE INDEX IF NOT EXISTS idx_links_case ON interpretation_links(case_id);
CREATE INDEX IF NOT EXISTS idx_links_authority ON interpretation_links(authority);
CREATE INDEX IF NOT EXISTS idx_links_verified ON interpretation_links(verified)
    WHERE verified = 1;
CREATE INDEX IF NOT EXISTS idx_links_retrieval ON interpretation_links(
    statute_id, boost_factor DESC, applicability_score DESC);
`
