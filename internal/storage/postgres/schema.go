package postgres

// schemaSQL bootstraps the tables on startup. All statements are
// idempotent so repeated application is safe.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS scraper_results (
    id            BIGSERIAL PRIMARY KEY,
    job_id        TEXT NOT NULL UNIQUE,
    scraper_name  TEXT NOT NULL,
    ticker        TEXT NOT NULL,
    success       BOOLEAN NOT NULL,
    data          JSONB,
    error         TEXT,
    response_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    executed_at   TIMESTAMPTZ NOT NULL,
    metadata      JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scraper_results_ticker_executed
    ON scraper_results (ticker, executed_at DESC);

CREATE INDEX IF NOT EXISTS idx_scraper_results_scraper_executed
    ON scraper_results (scraper_name, executed_at DESC);

CREATE TABLE IF NOT EXISTS schedule_executions (
    id            BIGSERIAL PRIMARY KEY,
    schedule_name TEXT NOT NULL,
    scraper_name  TEXT NOT NULL,
    tickers       JSONB,
    job_ids       JSONB,
    executed_at   TIMESTAMPTZ NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_schedule_executions_name_executed
    ON schedule_executions (schedule_name, executed_at DESC);
`
