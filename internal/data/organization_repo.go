package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/esg-pipeline/internal/data/pgxutil"
	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
)

const organizationColumns = `id, name, country, website, industry, document, email, owner_email, created_at, updated_at`

// OrganizationRepo provides database operations for organizations.
type OrganizationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewOrganizationRepo creates a new OrganizationRepo.
func NewOrganizationRepo(db *sql.DB) *OrganizationRepo {
	return &OrganizationRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// Create inserts a new organization.
func (r *OrganizationRepo) Create(ctx context.Context, req *model.CreateOrganizationRequest) (*model.Organization, error) {
	if req == nil {
		return nil, errors.New("create organization request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	var out model.Organization
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO organizations (name, country, website, industry, document, email, owner_email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING `+organizationColumns,
			strings.TrimSpace(req.Name),
			strings.TrimSpace(req.Country),
			strings.TrimSpace(req.Website),
			strings.TrimSpace(req.Industry),
			strings.TrimSpace(req.Document),
			req.Email,
			req.OwnerEmail,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Organization])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves an organization by ID.
func (r *OrganizationRepo) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	var out model.Organization
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Organization])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &out, nil
}

// GetByIDTx retrieves an organization within tx.
func (r *OrganizationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Organization, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	var (
		o                 model.Organization
		email, ownerEmail sql.NullString
	)
	err := tx.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id).Scan(
		&o.ID, &o.Name, &o.Country, &o.Website, &o.Industry, &o.Document,
		&email, &ownerEmail, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	o.Email = nullString(email)
	o.OwnerEmail = nullString(ownerEmail)
	return &o, nil
}
