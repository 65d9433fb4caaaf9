package storage

const schema = `
-- Recovery attempt counters, one row per work unit that ever needed
-- zombie recovery.
CREATE TABLE IF NOT EXISTS recovery_attempts (
    wu TEXT PRIMARY KEY,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt TEXT NOT NULL,
    escalated INTEGER NOT NULL DEFAULT 0
);

-- Audit journal of applied repairs.
CREATE TABLE IF NOT EXISTS repair_journal (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    wu TEXT NOT NULL,
    kind TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_repair_journal_wu ON repair_journal(wu);
`
