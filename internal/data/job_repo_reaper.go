package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/data/pgxutil"
	"github.com/target/esg-pipeline/internal/domain/model"
)

// Advisory lock namespace for reaper operations; each step has its own minor
// key so concurrent reaper instances skip rather than queue.
const (
	advisoryLockReaperMajor       int32 = 1000
	advisoryLockReaperFailPending int32 = 1
	advisoryLockReaperDelete      int32 = 2
	advisoryLockReaperExpired     int32 = 3
)

// expiredLeaseError is recorded on jobs failed by the queue hard timeout.
const expiredLeaseError = "job exceeded queue timeout"

// FailExpiredLeases fails running jobs whose lease passed. The lease is the
// queue hard timeout, so such jobs are failed terminally regardless of their
// remaining deliveries. The failed rows are returned for follow-up.
func (r *JobRepo) FailExpiredLeases(ctx context.Context, batchSize int) ([]*model.Job, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive: %d", batchSize)
	}

	var failed []*model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, advisoryLockReaperMajor, advisoryLockReaperExpired)
			if err != nil || !locked {
				return err
			}

			now := r.timeProvider.Now().UTC()
			rows, err := tx.QueryContext(ctx, `
				UPDATE jobs
				SET status = 'failed',
				    retry_count = max_retries,
				    last_error = $2,
				    completed_at = $1,
				    lease_expires_at = NULL,
				    updated_at = $1
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = 'running'
					  AND lease_expires_at IS NOT NULL
					  AND lease_expires_at < $1
					ORDER BY lease_expires_at
					LIMIT $3
					FOR UPDATE SKIP LOCKED
				)
				RETURNING `+jobColumns, now, expiredLeaseError, batchSize)
			if err != nil {
				return fmt.Errorf("fail expired leases: %w", err)
			}
			defer func() {
				_ = rows.Close()
			}()

			for rows.Next() {
				job, scanErr := scanJob(rows)
				if scanErr != nil {
					return fmt.Errorf("scan expired job: %w", scanErr)
				}
				failed = append(failed, job)
			}
			return rows.Err()
		},
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// FailStalePendingJobs marks pending jobs older than maxAge as failed.
// Processes up to batchSize jobs per call to prevent long locks and I/O spikes.
func (r *JobRepo) FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, advisoryLockReaperMajor, advisoryLockReaperFailPending)
			if err != nil || !locked {
				return err
			}

			now := r.timeProvider.Now().UTC()
			res, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'failed',
					last_error = 'Job timed out in pending status',
					completed_at = $1,
					updated_at = $1
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = 'pending'
					  AND created_at < $2
					ORDER BY created_at
					LIMIT $3
				)
			`, now, now.Add(-maxAge), batchSize)
			if err != nil {
				return fmt.Errorf("fail stale pending jobs: %w", err)
			}
			rowsAffected, err = res.RowsAffected()
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// DeleteOldJobs deletes jobs with the given status older than maxAge.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid job status: %s", params.Status)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, advisoryLockReaperMajor, advisoryLockReaperDelete)
			if err != nil || !locked {
				return err
			}

			cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()
			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = $1
					  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
					ORDER BY COALESCE(completed_at, updated_at)
					LIMIT $3
				)
			`, string(params.Status), cutoff, params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete old jobs: %w", err)
			}
			rowsAffected, err = res.RowsAffected()
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
