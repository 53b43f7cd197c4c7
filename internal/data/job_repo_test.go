package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/testutil"
)

func TestJobRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name    string
		req     *model.CreateJobRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid job creation",
			req:     testutil.NewJobRequest().WithPriority(50).RemoveOnComplete().Build(),
			wantErr: false,
		},
		{
			name:    "job with scheduled time",
			req:     testutil.NewJobRequest().WithScheduledAt(time.Now().Add(time.Hour)).WithMaxRetries(3).Build(),
			wantErr: false,
		},
		{
			name: "invalid job type",
			req: &model.CreateJobRequest{
				Type:       "invalid",
				Payload:    json.RawMessage(`{"test": true}`),
				MaxRetries: 1,
			},
			wantErr: true,
			errMsg:  "invalid job type",
		},
		{
			name: "empty payload",
			req: &model.CreateJobRequest{
				Type:       model.JobTypeEsgAnalysis,
				Payload:    json.RawMessage(``),
				MaxRetries: 1,
			},
			wantErr: true,
			errMsg:  "payload is required",
		},
		{
			name:    "invalid priority",
			req:     testutil.NewJobRequest().WithPriority(150).Build(),
			wantErr: true,
			errMsg:  "priority must be between 0 and 100",
		},
		{
			name:    "zero deliveries",
			req:     testutil.NewJobRequest().WithMaxRetries(0).Build(),
			wantErr: true,
			errMsg:  "max retries must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				repo := NewJobRepo(db, RepoConfig{})

				job, err := repo.Create(context.Background(), tt.req)

				if tt.wantErr {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errMsg)
					assert.Nil(t, job)
					return
				}

				require.NoError(t, err)
				require.NotNil(t, job)
				assert.NotEmpty(t, job.ID)
				assert.Equal(t, tt.req.Type, job.Type)
				assert.Equal(t, model.JobStatusPending, job.Status)
				assert.Equal(t, tt.req.Priority, job.Priority)
				assert.JSONEq(t, string(tt.req.Payload), string(job.Payload))
				assert.Equal(t, tt.req.MaxRetries, job.MaxRetries)
				assert.Equal(t, tt.req.RemoveOnComplete, job.RemoveOnComplete)
				assert.Equal(t, 0, job.RetryCount)
				assert.Equal(t, 0, job.Progress)
				assert.NotZero(t, job.CreatedAt)
				if tt.req.ScheduledAt != nil {
					assert.WithinDuration(t, *tt.req.ScheduledAt, job.ScheduledAt, time.Second)
				}
			})
		})
	}
}

func TestJobRepo_ReserveNext(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("reserves highest priority first and sets lease", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			low, err := repo.Create(ctx, testutil.NewJobRequest().WithPriority(10).Build())
			require.NoError(t, err)
			high, err := repo.Create(ctx, testutil.NewJobRequest().WithPriority(90).Build())
			require.NoError(t, err)

			job, err := repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 2400)
			require.NoError(t, err)
			assert.Equal(t, high.ID, job.ID)
			assert.Equal(t, model.JobStatusRunning, job.Status)
			require.NotNil(t, job.StartedAt)
			require.NotNil(t, job.LeaseExpiresAt)
			assert.WithinDuration(t, time.Now().Add(40*time.Minute), *job.LeaseExpiresAt, time.Minute)

			next, err := repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 2400)
			require.NoError(t, err)
			assert.Equal(t, low.ID, next.ID)

			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 2400)
			assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})

	t.Run("skips future scheduled jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			_, err := repo.Create(ctx, testutil.NewJobRequest().WithScheduledAt(time.Now().Add(time.Hour)).Build())
			require.NoError(t, err)

			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
			assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})

	t.Run("concurrent reservers get distinct jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			for range 3 {
				_, err := repo.Create(ctx, testutil.NewJobRequest().Build())
				require.NoError(t, err)
			}

			ids := make(chan string, 3)
			runner := testutil.NewConcurrentTestRunner(t, db)
			errs := runner.RunConcurrent(
				func() error { return reserveInto(ctx, repo, ids) },
				func() error { return reserveInto(ctx, repo, ids) },
				func() error { return reserveInto(ctx, repo, ids) },
			)
			runner.AssertNoErrors(errs)
			close(ids)

			seen := map[string]bool{}
			for id := range ids {
				assert.False(t, seen[id], "job %s reserved twice", id)
				seen[id] = true
			}
			assert.Len(t, seen, 3)
		})
	})
}

func reserveInto(ctx context.Context, repo *JobRepo, out chan<- string) error {
	job, err := repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
	if err != nil {
		return err
	}
	out <- job.ID
	return nil
}

func TestJobRepo_UpdateProgress(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		ok, err := repo.UpdateProgress(ctx, created.ID, 10)
		require.NoError(t, err)
		assert.False(t, ok, "pending jobs do not report progress")

		_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
		require.NoError(t, err)

		ok, err = repo.UpdateProgress(ctx, created.ID, 90)
		require.NoError(t, err)
		assert.True(t, ok)

		// progress never moves backwards
		_, err = repo.UpdateProgress(ctx, created.ID, 10)
		require.NoError(t, err)

		job, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 90, job.Progress)
	})
}

func TestJobRepo_Complete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("keeps row with result", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)
			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
			require.NoError(t, err)

			ok, err := repo.Complete(ctx, core.CompleteJobParams{JobID: created.ID, Result: []byte(`{"status":"COMPLETED"}`)})
			require.NoError(t, err)
			assert.True(t, ok)

			job, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusCompleted, job.Status)
			assert.Equal(t, 100, job.Progress)
			assert.JSONEq(t, `{"status":"COMPLETED"}`, string(job.Result))
			assert.NotNil(t, job.CompletedAt)
		})
	})

	t.Run("removes row when remove_on_complete", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewJobRequest().RemoveOnComplete().Build())
			require.NoError(t, err)
			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
			require.NoError(t, err)

			ok, err := repo.Complete(ctx, core.CompleteJobParams{JobID: created.ID})
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = repo.GetByID(ctx, created.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("not running is a no-op", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)

			ok, err := repo.Complete(ctx, core.CompleteJobParams{JobID: created.ID})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	})
}

func TestJobRepo_FailAndRetry(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("single delivery fails terminally", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)
			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
			require.NoError(t, err)

			ok, err := repo.Fail(ctx, created.ID, "analysis service unavailable")
			require.NoError(t, err)
			assert.True(t, ok)

			job, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, job.Status)
			require.NotNil(t, job.LastError)
			assert.Equal(t, "analysis service unavailable", *job.LastError)
		})
	})

	t.Run("remaining deliveries reschedule", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{RetryDelaySeconds: 60})
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewJobRequest().WithMaxRetries(2).Build())
			require.NoError(t, err)
			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
			require.NoError(t, err)

			_, err = repo.Fail(ctx, created.ID, "boom")
			require.NoError(t, err)

			job, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, job.Status)
			assert.Equal(t, 1, job.RetryCount)
			assert.True(t, job.ScheduledAt.After(time.Now().Add(30*time.Second)))
		})
	})

	t.Run("retry re-drives failed job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)

			_, err = repo.Retry(ctx, created.ID)
			require.ErrorIs(t, err, ErrJobNotRetryable)

			_, err = repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
			require.NoError(t, err)
			_, err = repo.Fail(ctx, created.ID, "boom")
			require.NoError(t, err)

			job, err := repo.Retry(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, job.Status)
			assert.Equal(t, 0, job.RetryCount)
			assert.Nil(t, job.LastError)

			_, err = repo.Retry(ctx, "00000000-0000-0000-0000-000000000000")
			assert.ErrorIs(t, err, ErrJobNotFound)
		})
	})
}

func TestJobRepo_ListAndStats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		for range 3 {
			_, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)
		}
		_, err := repo.ReserveNext(ctx, model.JobTypeEsgAnalysis, 60)
		require.NoError(t, err)

		stats, err := repo.Stats(ctx, model.JobTypeEsgAnalysis)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Pending)
		assert.Equal(t, 1, stats.Running)

		running := model.JobStatusRunning
		jobs, err := repo.List(ctx, model.JobListOptions{Status: &running})
		require.NoError(t, err)
		assert.Len(t, jobs, 1)

		jobs, err = repo.List(ctx, model.JobListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})
}

func TestBuildJobListQuery(t *testing.T) {
	status := model.JobStatusFailed
	jobType := model.JobTypeEsgAnalysis

	tests := []struct {
		name     string
		opts     model.JobListOptions
		contains []string
		args     []any
	}{
		{
			name:     "defaults",
			opts:     model.JobListOptions{},
			contains: []string{"LIMIT $1 OFFSET $2"},
			args:     []any{defaultListLimit, 0},
		},
		{
			name:     "filters and clamp",
			opts:     model.JobListOptions{Status: &status, Type: &jobType, Limit: 5000, Offset: -3},
			contains: []string{"status = $1", "type = $2", "LIMIT $3 OFFSET $4"},
			args:     []any{"failed", "esg_analysis", maxListLimit, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildJobListQuery(tt.opts)
			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}
