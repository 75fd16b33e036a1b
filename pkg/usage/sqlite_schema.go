package usage

const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,

    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    origin TEXT NOT NULL,
    streaming BOOLEAN NOT NULL,
    thinking BOOLEAN NOT NULL,

    prompt_tokens INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    total_tokens INTEGER NOT NULL,
    estimated BOOLEAN NOT NULL,

    retries INTEGER NOT NULL,
    latency_ms INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_usage_recorded_at ON usage_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_records(provider, recorded_at);
`

const insertRecord = `
INSERT INTO usage_records (
    id, request_id, recorded_at,
    provider, model, origin,
    streaming, thinking,
    prompt_tokens, completion_tokens, total_tokens, estimated,
    retries, latency_ms,
    status, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectRecords = `
SELECT id, request_id, recorded_at,
    provider, model, origin,
    streaming, thinking,
    prompt_tokens, completion_tokens, total_tokens, estimated,
    retries, latency_ms,
    status, error
FROM usage_records`

const selectTotals = `
SELECT provider,
    COUNT(*),
    COALESCE(SUM(CASE WHEN status != 'success' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(retries), 0),
    COALESCE(SUM(prompt_tokens), 0),
    COALESCE(SUM(completion_tokens), 0),
    COALESCE(SUM(total_tokens), 0),
    COALESCE(SUM(CASE WHEN estimated THEN 1 ELSE 0 END), 0)
FROM usage_records`
