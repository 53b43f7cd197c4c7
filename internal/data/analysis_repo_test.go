package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/testutil"
)

func TestAnalysisRepo_FindLatestByOrganization(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAnalysisRepo(db)
		ctx := context.Background()
		base := testutil.TestTime()

		orgID := testutil.SeedOrganization(t, db, "Acme")
		other := testutil.SeedOrganization(t, db, "Other")

		testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{OrganizationID: orgID, CreatedAt: base})
		latest := testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{
			OrganizationID: orgID,
			Status:         model.AnalysisStatusFailed,
			CreatedAt:      base.Add(2 * time.Hour),
		})
		testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{OrganizationID: orgID, CreatedAt: base.Add(time.Hour)})
		testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{OrganizationID: other, CreatedAt: base.Add(5 * time.Hour)})

		got, err := repo.FindLatestByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, latest, got.ID)
		assert.Equal(t, model.AnalysisStatusFailed, got.Status)
		assert.Equal(t, model.ShippingStatusNotSent, got.ShippingStatus)

		_, err = repo.FindLatestByOrganization(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrAnalysisNotFound)
	})
}

func TestAnalysisRepo_LockAndSetInTx(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAnalysisRepo(db)
		tx := NewTransactor(db)
		ctx := context.Background()

		orgID := testutil.SeedOrganization(t, db, "Acme")
		id := testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{OrganizationID: orgID})

		err := tx.WithTx(ctx, func(sqlTx *sql.Tx) error {
			a, err := repo.LockLatestByOrganizationTx(ctx, sqlTx, orgID)
			if err != nil {
				return err
			}
			if _, err := repo.SetPaymentStatusTx(ctx, sqlTx, a.ID, model.PaymentStatusCompleted); err != nil {
				return err
			}
			_, err = repo.SetStatusTx(ctx, sqlTx, a.ID, model.AnalysisStatusProcessing)
			return err
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.AnalysisStatusProcessing, got.Status)
		assert.Equal(t, model.PaymentStatusCompleted, got.PaymentStatus)

		_, err = repo.SetStatusTx(ctx, nil, id, model.AnalysisStatusFailed)
		assert.ErrorIs(t, err, ErrTxRequired)
	})
}

func TestAnalysisRepo_RollbackLeavesStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAnalysisRepo(db)
		ctx := context.Background()

		orgID := testutil.SeedOrganization(t, db, "Acme")
		id := testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{OrganizationID: orgID})

		err := NewTransactor(db).WithTx(ctx, func(sqlTx *sql.Tx) error {
			if _, err := repo.SetStatusTx(ctx, sqlTx, id, model.AnalysisStatusProcessing); err != nil {
				return err
			}
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, model.AnalysisStatusPending, testutil.AnalysisStatusOf(t, db, id))
	})
}

func TestAnalysisRepo_CompareAndSetStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAnalysisRepo(db)
		ctx := context.Background()

		orgID := testutil.SeedOrganization(t, db, "Acme")
		id := testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{
			OrganizationID: orgID,
			Status:         model.AnalysisStatusProcessing,
		})

		params := core.CompareAndSetStatusParams{
			ID:   id,
			From: model.AnalysisStatusProcessing,
			To:   model.AnalysisStatusCompleted,
		}
		a, ok, err := repo.CompareAndSetStatus(ctx, params)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.AnalysisStatusCompleted, a.Status)

		params.To = model.AnalysisStatusFailed
		a, ok, err = repo.CompareAndSetStatus(ctx, params)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, a)
		assert.Equal(t, model.AnalysisStatusCompleted, testutil.AnalysisStatusOf(t, db, id))
	})
}

func TestAnalysisRepo_ShippingAndStale(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAnalysisRepo(db)
		ctx := context.Background()

		orgID := testutil.SeedOrganization(t, db, "Acme")
		stale := testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{
			OrganizationID: orgID,
			Status:         model.AnalysisStatusProcessing,
			CreatedAt:      time.Now().Add(-3 * time.Hour),
		})
		testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{OrganizationID: orgID, Status: model.AnalysisStatusProcessing})

		queued := testutil.SeedAnalysis(t, db, testutil.AnalysisSeed{
			OrganizationID: orgID,
			Status:         model.AnalysisStatusProcessing,
			CreatedAt:      time.Now().Add(-3 * time.Hour),
		})
		_, err := NewJobRepo(db, RepoConfig{}).Create(ctx, testutil.NewJobRequest().
			WithPayload(model.EsgJobPayload{
				Organization: model.OrganizationDescriptor{ID: orgID, Name: "Acme"},
				AnalysisID:   queued,
			}).Build())
		require.NoError(t, err)

		found, err := repo.FindStaleProcessing(ctx, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, found, 1, "a record whose job is still pending is not stale")
		assert.Equal(t, stale, found[0].ID)

		a, err := repo.SetShippingStatus(ctx, stale, model.ShippingStatusSent)
		require.NoError(t, err)
		assert.Equal(t, model.ShippingStatusSent, a.ShippingStatus)

		_, err = repo.SetShippingStatus(ctx, "00000000-0000-0000-0000-000000000000", model.ShippingStatusSent)
		assert.ErrorIs(t, err, ErrAnalysisNotFound)
	})
}

func TestAnalysisRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAnalysisRepo(db)
		orgID := testutil.SeedOrganization(t, db, "Acme")

		pct := 15.0
		a, err := repo.Create(context.Background(), &model.CreateAnalysisRequest{
			OrganizationID:     orgID,
			DiscountID:         testutil.StringPtr("PROMO"),
			DiscountPercentage: &pct,
		})
		require.NoError(t, err)
		assert.Equal(t, model.AnalysisStatusPending, a.Status)
		assert.Equal(t, model.PaymentStatusPending, a.PaymentStatus)
		require.NotNil(t, a.DiscountPercentage)
		assert.InDelta(t, 15.0, *a.DiscountPercentage, 0.001)
	})
}
