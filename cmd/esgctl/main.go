// Command esgctl is the operator CLI of the ESG pipeline: migrations, queue
// inspection and re-drive, analysis lookups, local seeding and webhook signing.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/bootstrap"
	"github.com/target/esg-pipeline/internal/migrate"
)

// Version is set at build time.
var Version = "dev"

// app carries what every subcommand shares. Tests replace loadConfig and
// openDB.
type app struct {
	out     io.Writer
	logger  *slog.Logger
	output  string
	timeout time.Duration

	loadConfig func() (config.AppConfig, error)
	openDB     func(cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error)
}

func newApp(out io.Writer) *app {
	return &app{
		out:        out,
		logger:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		loadConfig: bootstrap.LoadConfig,
		openDB: func(cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
			return bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg, Logger: logger})
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout)
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command failure to callers
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "esgctl",
		Short:         "Operate the ESG analysis pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateFormat(a.output)
		},
	}
	root.PersistentFlags().StringVarP(&a.output, "output", "o", formatTable, "output format: table, json or yaml")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "deadline for database commands")

	root.AddCommand(
		a.migrateCmd(),
		a.jobsCmd(),
		a.analysisCmd(),
		a.seedCmd(),
		a.signCmd(),
	)
	return root
}

// withDB loads configuration, connects and runs fn under the command timeout.
func (a *app) withDB(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.AppConfig, db *sql.DB) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	db, err := a.openDB(cfg.Postgres, a.logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			a.logger.Warn("close database failed", "error", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	return fn(ctx, &cfg, db)
}

func (a *app) migrateCmd() *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDB(cmd, func(ctx context.Context, _ *config.AppConfig, db *sql.DB) error {
				if !statusOnly {
					applied, err := migrate.Run(ctx, db, a.logger)
					if err != nil {
						return fmt.Errorf("run migrations: %w", err)
					}
					a.logger.Info("migrations applied", "count", len(applied))
				}
				versions, err := migrate.Status(ctx, db)
				if err != nil {
					return err
				}
				return a.render(versions, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Version", "Applied at"})
					for _, v := range versions {
						tw.AppendRow(table.Row{v.Name, formatTime(v.AppliedAt)})
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only report which migrations are applied")
	return cmd
}
