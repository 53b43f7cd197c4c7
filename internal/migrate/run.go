// Package migrate applies the embedded PostgreSQL schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// lockKey serializes migrations across replicas starting at the same time.
const lockKey int64 = 0x65736770 // "esgp"

const createVersionsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Version is one embedded migration and when it was applied, if ever.
type Version struct {
	Name      string     `json:"version"             yaml:"version"`
	AppliedAt *time.Time `json:"appliedAt,omitempty" yaml:"appliedAt,omitempty"`
}

// Applied reports whether the migration has run.
func (v Version) Applied() bool { return v.AppliedAt != nil }

// Versions lists the embedded migration versions in apply order.
func Versions() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			out = append(out, strings.TrimSuffix(e.Name(), ".sql"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run applies every pending migration while holding a session advisory
// lock, each in its own transaction. It returns the versions it applied.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations")

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err = conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		// The parent context may already be cancelled here.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, uerr := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, lockKey); uerr != nil {
			logger.WarnContext(ctx, "release migration lock failed", "error", uerr)
		}
	}()

	if _, err = conn.ExecContext(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	versions, err := status(ctx, conn)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, v := range versions {
		if v.Applied() {
			continue
		}
		logger.InfoContext(ctx, "applying migration", "version", v.Name)
		if err := apply(ctx, conn, v.Name); err != nil {
			return applied, err
		}
		applied = append(applied, v.Name)
	}
	return applied, nil
}

// Status reports every embedded migration with its applied time. Versions
// recorded in the database but no longer embedded are ignored.
func Status(ctx context.Context, db *sql.DB) ([]Version, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var exists bool
	if err := conn.QueryRowContext(ctx, `SELECT to_regclass('schema_migrations') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check schema_migrations: %w", err)
	}
	if !exists {
		return merge(nil, nil)
	}
	return status(ctx, conn)
}

func status(ctx context.Context, conn *sql.Conn) ([]Version, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	recorded := make(map[string]time.Time)
	for rows.Next() {
		var (
			version string
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		recorded[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return merge(nil, recorded)
}

// merge pairs the embedded versions (or names, when given) with recorded
// applied times.
func merge(names []string, recorded map[string]time.Time) ([]Version, error) {
	if names == nil {
		var err error
		if names, err = Versions(); err != nil {
			return nil, err
		}
	}
	out := make([]Version, 0, len(names))
	for _, name := range names {
		v := Version{Name: name}
		if at, ok := recorded[name]; ok {
			v.AppliedAt = &at
		}
		out = append(out, v)
	}
	return out, nil
}

func apply(ctx context.Context, conn *sql.Conn, version string) (err error) {
	body, err := migrationsFS.ReadFile("migrations/" + version + ".sql")
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback migration %s: %w", version, rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("exec migration %s: %w", version, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
