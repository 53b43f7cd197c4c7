package data

import (
	"context"
	"database/sql"

	"github.com/target/esg-pipeline/internal/data/pgxutil"
)

// Transactor opens caller-owned transactions for multi-repository units of work.
type Transactor struct {
	DB *sql.DB
	// Opts applies to every transaction; nil uses the server defaults.
	Opts *sql.TxOptions
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{DB: db}
}

// WithTx runs fn in a transaction, committing only when fn returns nil.
func (t *Transactor) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return pgxutil.WithSQLTx(ctx, t.DB, pgxutil.SQLTxConfig{Opts: t.Opts, Fn: fn})
}
