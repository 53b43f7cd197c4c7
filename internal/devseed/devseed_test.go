package devseed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
	"github.com/target/esg-pipeline/internal/mocks"
)

func newRepos(t *testing.T) (Repos, *mocks.MockOrganizationRepository, *mocks.MockAnalysisRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	orgs := mocks.NewMockOrganizationRepository(ctrl)
	analyses := mocks.NewMockAnalysisRepository(ctrl)
	return Repos{Organizations: orgs, Analyses: analyses}, orgs, analyses
}

func TestRun_CreatesOrganizationAndPendingAnalysis(t *testing.T) {
	repos, orgs, analyses := newRepos(t)
	ctx := context.Background()

	orgs.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateOrganizationRequest) (*model.Organization, error) {
			assert.Equal(t, DefaultOrganizationName, req.Name)
			assert.Equal(t, DefaultCountry, req.Country)
			require.NotNil(t, req.Email)
			assert.Equal(t, "ops@example.com", *req.Email)
			return &model.Organization{ID: "org-1", Name: req.Name}, nil
		})
	analyses.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateAnalysisRequest) (*model.Analysis, error) {
			assert.Equal(t, "org-1", req.OrganizationID)
			require.NotNil(t, req.DiscountPercentage)
			assert.InDelta(t, 15.0, *req.DiscountPercentage, 0.001)
			return &model.Analysis{ID: "a-1", OrganizationID: "org-1", Status: model.AnalysisStatusPending}, nil
		})

	res, err := Run(ctx, repos, Options{Email: " ops@example.com ", DiscountPercentage: 15}, nil)
	require.NoError(t, err)
	assert.Equal(t, "org-1", res.Organization.ID)
	assert.Equal(t, model.AnalysisStatusPending, res.Analysis.Status)
}

func TestRun_ReusesExistingOrganization(t *testing.T) {
	repos, orgs, analyses := newRepos(t)
	ctx := context.Background()

	orgs.EXPECT().GetByID(ctx, "org-9").Return(&model.Organization{ID: "org-9"}, nil)
	analyses.EXPECT().Create(ctx, &model.CreateAnalysisRequest{OrganizationID: "org-9"}).
		Return(&model.Analysis{ID: "a-2", OrganizationID: "org-9"}, nil)

	res, err := Run(ctx, repos, Options{OrganizationID: "org-9"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a-2", res.Analysis.ID)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing repositories", func(t *testing.T) {
		_, err := Run(ctx, Repos{}, Options{}, nil)
		require.Error(t, err)
	})

	t.Run("unknown organization", func(t *testing.T) {
		repos, orgs, _ := newRepos(t)
		orgs.EXPECT().GetByID(ctx, "missing").Return(nil, apperrors.NotFound("organization not found"))

		_, err := Run(ctx, repos, Options{OrganizationID: "missing"}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("analysis insert fails", func(t *testing.T) {
		repos, orgs, analyses := newRepos(t)
		orgs.EXPECT().Create(ctx, gomock.Any()).Return(&model.Organization{ID: "org-1"}, nil)
		analyses.EXPECT().Create(ctx, gomock.Any()).Return(nil, errors.New("db down"))

		_, err := Run(ctx, repos, Options{}, nil)
		require.ErrorContains(t, err, "create analysis: db down")
	})
}
