package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/target/esg-pipeline/internal/data/pgxutil"
	"github.com/target/esg-pipeline/internal/domain/model"
)

const esgResultColumns = `id, organization_id, analysis_json, created_at, updated_at`

// EsgResultRepo stores the analysis documents returned by the analysis service.
type EsgResultRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewEsgResultRepo creates a new EsgResultRepo.
func NewEsgResultRepo(db *sql.DB) *EsgResultRepo {
	return &EsgResultRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// ReplaceForOrganization deletes every stored result of the organization and
// inserts doc in the same transaction, so readers see either the old or the
// new document.
func (r *EsgResultRepo) ReplaceForOrganization(ctx context.Context, organizationID string, doc []byte) (*model.EsgAnalysisResult, error) {
	if organizationID == "" {
		return nil, errors.New("organization id is required")
	}
	if len(doc) == 0 {
		doc = []byte(`{}`)
	}
	if !json.Valid(doc) {
		return nil, errors.New("analysis document must be valid JSON")
	}

	var out *model.EsgAnalysisResult
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM esg_analysis_results WHERE organization_id = $1`, organizationID); err != nil {
				return fmt.Errorf("delete previous results: %w", err)
			}
			now := r.timeProvider.Now().UTC()
			res, err := scanEsgResult(tx.QueryRowContext(ctx, `
				INSERT INTO esg_analysis_results (organization_id, analysis_json, created_at, updated_at)
				VALUES ($1, $2::jsonb, $3, $3)
				RETURNING `+esgResultColumns, organizationID, string(doc), now))
			if err != nil {
				return fmt.Errorf("insert result: %w", err)
			}
			out = res
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetLatestByOrganization returns the organization's stored result.
func (r *EsgResultRepo) GetLatestByOrganization(ctx context.Context, organizationID string) (*model.EsgAnalysisResult, error) {
	res, err := scanEsgResult(r.DB.QueryRowContext(ctx, `SELECT `+esgResultColumns+`
		FROM esg_analysis_results WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, organizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEsgResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get esg result: %w", err)
	}
	return res, nil
}

func scanEsgResult(row rowScanner) (*model.EsgAnalysisResult, error) {
	var (
		res model.EsgAnalysisResult
		raw []byte
	)
	if err := row.Scan(&res.ID, &res.OrganizationID, &raw, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.AnalysisJSON = cloneJSON(raw)
	return &res, nil
}
