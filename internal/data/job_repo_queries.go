package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/esg-pipeline/internal/data/pgxutil"
	"github.com/target/esg-pipeline/internal/domain/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(condition string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", condition, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

func buildJobListQuery(opts model.JobListOptions) (string, []any) {
	b := &jobFilterQueryBuilder{
		query:  `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`,
		argIdx: 1,
	}
	if opts.Status != nil && *opts.Status != "" {
		b.addFilter("status", string(*opts.Status))
	}
	if opts.Type != nil && *opts.Type != "" {
		b.addFilter("type", string(*opts.Type))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(opts.Offset, 0)

	b.query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", b.argIdx, b.argIdx+1)
	b.args = append(b.args, limit, offset)
	return b.query, b.args
}

// List returns jobs newest first with optional status and type filters.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	query, args := buildJobListQuery(opts)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Retry re-drives a failed job: its delivery budget is restored and it is
// scheduled immediately.
func (r *JobRepo) Retry(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			now := r.timeProvider.Now().UTC()
			j, err := scanJob(tx.QueryRowContext(ctx, `
				UPDATE jobs
				SET status = 'pending',
				    retry_count = 0,
				    progress = 0,
				    result = NULL,
				    last_error = NULL,
				    started_at = NULL,
				    completed_at = NULL,
				    lease_expires_at = NULL,
				    scheduled_at = $2,
				    updated_at = $2
				WHERE id = $1 AND status = 'failed'
				RETURNING `+jobColumns, id, now))
			if errors.Is(err, sql.ErrNoRows) {
				return r.retryMiss(ctx, tx, id)
			}
			if err != nil {
				return fmt.Errorf("retry job: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, jobChannel(string(j.Type)), j.ID); err != nil {
				return fmt.Errorf("send job notification: %w", err)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) retryMiss(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check job: %w", err)
	}
	if !exists {
		return ErrJobNotFound
	}
	return ErrJobNotRetryable
}
