package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/data"
	domainjob "github.com/target/esg-pipeline/internal/domain/job"
	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/service"
)

// statusFetchLimit bounds concurrent lookups of `jobs status`.
const statusFetchLimit = 8

func newJobService(cfg *config.AppConfig, db *sql.DB) (*service.JobService, error) {
	policy, err := domainjob.NewLeasePolicy(cfg.EsgRunner.QueueTimeout, cfg.AnalysisClient.CallBudget())
	if err != nil {
		return nil, fmt.Errorf("lease policy: %w", err)
	}
	return service.NewJobService(service.JobServiceOptions{
		Repo:        data.NewJobRepo(db, data.RepoConfig{}),
		LeasePolicy: policy,
	})
}

func (a *app) withJobs(cmd *cobra.Command, fn func(ctx context.Context, jobs *service.JobService) error) error {
	return a.withDB(cmd, func(ctx context.Context, cfg *config.AppConfig, db *sql.DB) error {
		jobs, err := newJobService(cfg, db)
		if err != nil {
			return err
		}
		return fn(ctx, jobs)
	})
}

func (a *app) jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and re-drive analysis jobs",
	}
	cmd.AddCommand(a.jobsListCmd(), a.jobsStatusCmd(), a.jobsRetryCmd(), a.jobsStatsCmd())
	return cmd
}

func (a *app) jobsListCmd() *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := model.JobListOptions{Limit: limit, Offset: offset}
			if status != "" {
				s := model.JobStatus(status)
				if !s.Valid() {
					return fmt.Errorf("invalid status %q", status)
				}
				opts.Status = &s
			}
			return a.withJobs(cmd, func(ctx context.Context, jobs *service.JobService) error {
				list, err := jobs.List(ctx, opts)
				if err != nil {
					return err
				}
				return a.render(list, func(tw table.Writer) { jobTable(tw, list) })
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, running, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func jobTable(tw table.Writer, jobs []*model.Job) {
	tw.AppendHeader(table.Row{"ID", "Status", "Progress", "Attempts", "Lease expires", "Created", "Last error"})
	for _, j := range jobs {
		tw.AppendRow(table.Row{
			j.ID,
			j.Status,
			fmt.Sprintf("%d%%", j.Progress),
			fmt.Sprintf("%d/%d", j.RetryCount, j.MaxRetries),
			formatTime(j.LeaseExpiresAt),
			formatTime(&j.CreatedAt),
			deref(j.LastError),
		})
	}
}

type jobStatusRow struct {
	ID                  string `json:"id" yaml:"id"`
	model.JobStatusView `yaml:",inline"`
}

func (a *app) jobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>...",
		Short: "Show the queue status of one or more jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJobs(cmd, func(ctx context.Context, jobs *service.JobService) error {
				rows, err := fetchStatuses(ctx, jobs, args)
				if err != nil {
					return err
				}
				return a.render(rows, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Status", "Progress", "Failed reason"})
					for _, r := range rows {
						tw.AppendRow(table.Row{r.ID, r.Status, fmt.Sprintf("%d%%", r.Progress), deref(r.FailedReason)})
					}
				})
			})
		},
	}
}

type jobStatusReader interface {
	GetJobStatus(ctx context.Context, id string) (*model.JobStatusView, error)
}

// fetchStatuses looks the ids up concurrently and keeps the argument order.
func fetchStatuses(ctx context.Context, jobs jobStatusReader, ids []string) ([]jobStatusRow, error) {
	rows := make([]jobStatusRow, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			view, err := jobs.GetJobStatus(gctx, id)
			if err != nil {
				return err
			}
			rows[i] = jobStatusRow{ID: id, JobStatusView: *view}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *app) jobsRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-drive a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJobs(cmd, func(ctx context.Context, jobs *service.JobService) error {
				job, err := jobs.Retry(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(job, func(tw table.Writer) { jobTable(tw, []*model.Job{job}) })
			})
		},
	}
}

func (a *app) jobsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count analysis jobs per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withJobs(cmd, func(ctx context.Context, jobs *service.JobService) error {
				stats, err := jobs.Stats(ctx, model.JobTypeEsgAnalysis)
				if err != nil {
					return err
				}
				return a.render(stats, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Pending", "Running", "Completed", "Failed"})
					tw.AppendRow(table.Row{stats.Pending, stats.Running, stats.Completed, stats.Failed})
				})
			})
		},
	}
}
