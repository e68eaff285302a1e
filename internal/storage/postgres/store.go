package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

// Store implements ResultStore and ExecutionStore on PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger arbor.ILogger
}

var (
	_ interfaces.ResultStore    = (*Store)(nil)
	_ interfaces.ExecutionStore = (*Store)(nil)
)

// NewStore wraps an open connection pool and applies the schema.
func NewStore(db *sqlx.DB, logger arbor.ILogger) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the pool is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// resultRow is the scan target for scraper_results.
type resultRow struct {
	JobID        string         `db:"job_id"`
	ScraperName  string         `db:"scraper_name"`
	Ticker       string         `db:"ticker"`
	Success      bool           `db:"success"`
	Data         []byte         `db:"data"`
	Error        sql.NullString `db:"error"`
	ResponseTime float64        `db:"response_time"`
	ExecutedAt   time.Time      `db:"executed_at"`
	Metadata     []byte         `db:"metadata"`
}

func (r *resultRow) toModel() (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{
		JobID:        r.JobID,
		ScraperName:  r.ScraperName,
		Ticker:       r.Ticker,
		Success:      r.Success,
		Error:        r.Error.String,
		ResponseTime: r.ResponseTime,
		ExecutedAt:   r.ExecutedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &result.Data); err != nil {
			return nil, fmt.Errorf("failed to decode result data: %w", err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &result.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode result metadata: %w", err)
		}
	}
	return result, nil
}

// SaveResult upserts one scrape result keyed by job id. A retried job
// replaces the earlier attempt's row, keeping one result per job.
func (s *Store) SaveResult(ctx context.Context, result *models.ScrapeResult) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}

	dataJSON, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("failed to encode result data: %w", err)
	}
	metaJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode result metadata: %w", err)
	}

	query := `
		INSERT INTO scraper_results
			(job_id, scraper_name, ticker, success, data, error, response_time, executed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			success       = EXCLUDED.success,
			data          = EXCLUDED.data,
			error         = EXCLUDED.error,
			response_time = EXCLUDED.response_time,
			executed_at   = EXCLUDED.executed_at,
			metadata      = EXCLUDED.metadata`

	_, err = s.db.ExecContext(ctx, query,
		result.JobID,
		result.ScraperName,
		result.Ticker,
		result.Success,
		dataJSON,
		nullString(result.Error),
		result.ResponseTime,
		result.ExecutedAt,
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResultsSince returns successful results for a ticker at or after the
// threshold, newest first.
func (s *Store) GetResultsSince(ctx context.Context, ticker string, since time.Time) ([]*models.ScrapeResult, error) {
	query := `
		SELECT job_id, scraper_name, ticker, success, data, error, response_time, executed_at, metadata
		FROM scraper_results
		WHERE ticker = $1 AND success = TRUE AND executed_at >= $2
		ORDER BY executed_at DESC`

	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, query, ticker, since); err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}

	results := make([]*models.ScrapeResult, 0, len(rows))
	for i := range rows {
		result, err := rows[i].toModel()
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", rows[i].JobID).Msg("Skipping undecodable result row")
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// GetResultByJobID returns the persisted result for a job, or nil when the
// job has no result yet.
func (s *Store) GetResultByJobID(ctx context.Context, jobID string) (*models.ScrapeResult, error) {
	query := `
		SELECT job_id, scraper_name, ticker, success, data, error, response_time, executed_at, metadata
		FROM scraper_results
		WHERE job_id = $1`

	var row resultRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query result: %w", err)
	}
	return row.toModel()
}

// DeleteResultsBefore removes results older than the threshold and returns
// the number of rows deleted.
func (s *Store) DeleteResultsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scraper_results WHERE executed_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old results: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return deleted, nil
}

// SaveExecution appends one schedule execution record.
func (s *Store) SaveExecution(ctx context.Context, exec *models.ScheduleExecution) error {
	if exec == nil {
		return fmt.Errorf("execution is nil")
	}

	tickersJSON, err := json.Marshal(exec.Tickers)
	if err != nil {
		return fmt.Errorf("failed to encode tickers: %w", err)
	}
	jobIDsJSON, err := json.Marshal(exec.JobIDs)
	if err != nil {
		return fmt.Errorf("failed to encode job ids: %w", err)
	}

	query := `
		INSERT INTO schedule_executions (schedule_name, scraper_name, tickers, job_ids, executed_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query,
		exec.ScheduleName, exec.ScraperName, tickersJSON, jobIDsJSON, exec.ExecutedAt); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// executionRow is the scan target for schedule_executions.
type executionRow struct {
	ID           int64     `db:"id"`
	ScheduleName string    `db:"schedule_name"`
	ScraperName  string    `db:"scraper_name"`
	Tickers      []byte    `db:"tickers"`
	JobIDs       []byte    `db:"job_ids"`
	ExecutedAt   time.Time `db:"executed_at"`
}

// GetExecutions returns the most recent executions for a schedule, newest
// first. A non-positive limit defaults to 50.
func (s *Store) GetExecutions(ctx context.Context, scheduleName string, limit int) ([]*models.ScheduleExecution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, schedule_name, scraper_name, tickers, job_ids, executed_at
		FROM schedule_executions
		WHERE schedule_name = $1
		ORDER BY executed_at DESC
		LIMIT $2`

	var rows []executionRow
	if err := s.db.SelectContext(ctx, &rows, query, scheduleName, limit); err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	execs := make([]*models.ScheduleExecution, 0, len(rows))
	for i := range rows {
		exec := &models.ScheduleExecution{
			ID:           rows[i].ID,
			ScheduleName: rows[i].ScheduleName,
			ScraperName:  rows[i].ScraperName,
			ExecutedAt:   rows[i].ExecutedAt,
		}
		if len(rows[i].Tickers) > 0 {
			if err := json.Unmarshal(rows[i].Tickers, &exec.Tickers); err != nil {
				return nil, fmt.Errorf("failed to decode tickers: %w", err)
			}
		}
		if len(rows[i].JobIDs) > 0 {
			if err := json.Unmarshal(rows[i].JobIDs, &exec.JobIDs); err != nil {
				return nil, fmt.Errorf("failed to decode job ids: %w", err)
			}
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
