package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/data/pgxutil"
	"github.com/target/esg-pipeline/internal/domain/model"
)

const defaultRetryDelaySeconds = 30

func (r *JobRepo) retryDelay() time.Duration {
	if r.cfg.RetryDelaySeconds > 0 {
		return time.Duration(r.cfg.RetryDelaySeconds) * time.Second
	}
	return defaultRetryDelaySeconds * time.Second
}

// SQL used by ReserveNext to atomically reserve the next job.
const reserveNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE type = $1 AND status = 'pending' AND scheduled_at <= $2
    ORDER BY priority DESC, scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'running',
    started_at = COALESCE(j.started_at, $2),
    lease_expires_at = $3,
    updated_at = $2
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.type, j.status, j.priority, j.payload, j.progress, j.result, j.remove_on_complete,
            j.scheduled_at, j.started_at, j.completed_at, j.retry_count, j.max_retries, j.last_error,
            j.lease_expires_at, j.created_at, j.updated_at`

const insertJobSQL = `
  INSERT INTO jobs (type, status, priority, payload, remove_on_complete, scheduled_at, max_retries, created_at, updated_at)
  VALUES ($1, 'pending', $2, $3, $4, $5, $6, $7, $7)
  RETURNING ` + jobColumns

// Create inserts a job in its own transaction and notifies listeners.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var insertErr error
			job, insertErr = r.CreateInTx(ctx, tx, req)
			return insertErr
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateInTx inserts a job within an existing transaction. The NOTIFY is
// delivered when that transaction commits.
func (r *JobRepo) CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error) {
	if tx == nil {
		return nil, errors.New("transaction is required")
	}
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	scheduledAt := now
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}

	row := tx.QueryRowContext(ctx, insertJobSQL,
		req.Type,
		req.Priority,
		[]byte(req.Payload),
		req.RemoveOnComplete,
		scheduledAt,
		req.MaxRetries,
		now,
	)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, jobChannel(string(req.Type)), job.ID); err != nil {
		return nil, fmt.Errorf("send job notification: %w", err)
	}
	return job, nil
}

// ReserveNext hands the next due job of jobType to exactly one caller.
func (r *JobRepo) ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("invalid job type: %s", jobType)
	}
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			leaseExpiresAt := now.Add(time.Duration(leaseSeconds) * time.Second)

			j, err := scanJob(tx.QueryRow(ctx, reserveNextUpdateSQL, jobType, now, leaseExpiresAt))
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if err != nil {
				return fmt.Errorf("reserve job: %w", err)
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

// Heartbeat refreshes the lease on a running job.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, jobID, now.Add(time.Duration(leaseSeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	return affected(res)
}

// UpdateProgress records worker progress (0-100) on a running job.
func (r *JobRepo) UpdateProgress(ctx context.Context, jobID string, progress int) (bool, error) {
	if progress < 0 || progress > 100 {
		return false, fmt.Errorf("progress out of range: %d", progress)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET progress = GREATEST(progress, $2),
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, jobID, progress, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update job progress: %w", err)
	}
	return affected(res)
}

// Complete finishes a running job. Jobs created with remove_on_complete are
// deleted instead of kept as completed rows.
func (r *JobRepo) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	now := r.timeProvider.Now().UTC()

	var result any
	if len(params.Result) > 0 {
		result = params.Result
	}

	var done bool
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id = $1 AND status = 'running' AND remove_on_complete
			`, params.JobID)
			if err != nil {
				return fmt.Errorf("remove completed job: %w", err)
			}
			if done, err = affected(res); err != nil || done {
				return err
			}

			res, err = tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'completed',
				    progress = 100,
				    result = $2,
				    completed_at = $3,
				    updated_at = $3,
				    lease_expires_at = NULL,
				    last_error = NULL
				WHERE id = $1 AND status = 'running'
			`, params.JobID, result, now)
			if err != nil {
				return fmt.Errorf("complete job: %w", err)
			}
			done, err = affected(res)
			return err
		},
	})
	if err != nil {
		return false, err
	}
	return done, nil
}

// Fail records a failed delivery. The job returns to pending after the retry
// delay while deliveries remain, otherwise it becomes failed.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	retryAt := now.Add(r.retryDelay())

	res, err := r.DB.ExecContext(ctx, `
      UPDATE jobs
      SET
        last_error = $2,
        retry_count = retry_count + 1,
        status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
        completed_at = CASE WHEN retry_count + 1 >= max_retries THEN $3::timestamptz ELSE NULL END,
        lease_expires_at = NULL,
        scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at ELSE $4::timestamptz END,
        updated_at = $3
      WHERE id = $1 AND status = 'running'
    `, id, errMsg, now, retryAt)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return affected(res)
}

// Stats returns statistics about jobs of the given type in different states.
func (r *JobRepo) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM jobs
  WHERE type = $1
  `, jobType).Scan(&s.Pending, &s.Running, &s.Completed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a job of jobType is inserted or ctx ends.
func (r *JobRepo) WaitForNotification(ctx context.Context, jobType model.JobType) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	channel := jobChannel(string(jobType))
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", channel, execErr)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "UNLISTEN "+quoted)
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload, result                        []byte
	lastError                              sql.NullString
	startedAt, completedAt, leaseExpiresAt sql.NullTime
}

func scanJob(scanner rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var d jobRowData
	if err := scanner.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.Priority,
		&d.payload,
		&job.Progress,
		&d.result,
		&job.RemoveOnComplete,
		&job.ScheduledAt,
		&d.startedAt,
		&d.completedAt,
		&job.RetryCount,
		&job.MaxRetries,
		&d.lastError,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Payload = cloneJSON(d.payload)
	if len(d.result) > 0 {
		job.Result = cloneJSON(d.result)
	}
	job.LastError = nullString(d.lastError)
	job.StartedAt = nullTime(d.startedAt)
	job.CompletedAt = nullTime(d.completedAt)
	job.LeaseExpiresAt = nullTime(d.leaseExpiresAt)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
