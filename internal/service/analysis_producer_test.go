package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
	"github.com/target/esg-pipeline/internal/mocks"
)

type producerFixture struct {
	tx       *mocks.MockTransactor
	analyses *mocks.MockAnalysisRepository
	orgs     *mocks.MockOrganizationRepository
	jobs     *mocks.MockJobRepositoryTx
	bc       *recordingBroadcaster
	kicks    *stubJobNotifier
	producer *AnalysisProducer
}

func newProducerFixture(t *testing.T) *producerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &producerFixture{
		tx:       mocks.NewMockTransactor(ctrl),
		analyses: mocks.NewMockAnalysisRepository(ctrl),
		orgs:     mocks.NewMockOrganizationRepository(ctrl),
		jobs:     mocks.NewMockJobRepositoryTx(ctrl),
		bc:       &recordingBroadcaster{},
		kicks:    &stubJobNotifier{},
	}
	p, err := NewAnalysisProducer(AnalysisProducerOptions{
		Tx:            f.tx,
		Analyses:      f.analyses,
		Organizations: f.orgs,
		Jobs:          f.jobs,
		Broadcaster:   f.bc,
		Kicker:        f.kicks,
		Priority:      5,
	})
	require.NoError(t, err)
	f.producer = p
	return f
}

func TestAnalysisProducer_CreateJob(t *testing.T) {
	ctx := context.Background()
	org := &model.Organization{ID: "org-1", Name: "Acme", Country: "AR", Website: "https://acme.test", Industry: "energy", Document: "30-1"}

	t.Run("pending record moves to processing with one job", func(t *testing.T) {
		f := newProducerFixture(t)
		committed := expectTx(f.tx)

		f.analyses.EXPECT().LockLatestByOrganizationTx(ctx, gomock.Nil(), "org-1").
			Return(&model.Analysis{ID: "a-1", OrganizationID: "org-1", Status: model.AnalysisStatusPending}, nil)
		f.orgs.EXPECT().GetByIDTx(ctx, gomock.Nil(), "org-1").Return(org, nil)
		f.analyses.EXPECT().SetStatusTx(ctx, gomock.Nil(), "a-1", model.AnalysisStatusProcessing).
			Return(&model.Analysis{ID: "a-1", OrganizationID: "org-1", Status: model.AnalysisStatusProcessing, PaymentStatus: model.PaymentStatusCompleted}, nil)
		f.jobs.EXPECT().CreateInTx(ctx, gomock.Nil(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ *sql.Tx, req *model.CreateJobRequest) (*model.Job, error) {
				assert.Equal(t, model.JobTypeEsgAnalysis, req.Type)
				assert.Equal(t, 1, req.MaxRetries)
				assert.True(t, req.RemoveOnComplete)
				assert.Equal(t, 5, req.Priority)

				payload, err := model.DecodeEsgJobPayload(req.Payload)
				require.NoError(t, err)
				assert.Equal(t, "a-1", payload.AnalysisID)
				assert.Equal(t, org.Descriptor(), payload.Organization)
				return &model.Job{ID: "job-1", Type: req.Type}, nil
			})

		res, err := f.producer.CreateJob(ctx, "org-1")
		require.NoError(t, err)
		assert.True(t, *committed)
		assert.Equal(t, &model.CreateJobResult{JobID: "job-1", AnalysisID: "a-1", Status: model.AnalysisStatusProcessing}, res)

		updates := f.bc.Updates()
		require.Len(t, updates, 1)
		assert.Equal(t, model.AnalysisStatusProcessing, updates[0].Status)
		assert.Equal(t, []model.JobType{model.JobTypeEsgAnalysis}, f.kicks.kicks)

		encoded, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"jobId":"job-1","analysisId":"a-1","status":"PROCESSING"}`, string(encoded))
	})

	t.Run("terminal record starts a new run", func(t *testing.T) {
		f := newProducerFixture(t)
		expectTx(f.tx)

		f.analyses.EXPECT().LockLatestByOrganizationTx(ctx, gomock.Nil(), "org-1").
			Return(&model.Analysis{ID: "a-2", Status: model.AnalysisStatusFailed}, nil)
		f.orgs.EXPECT().GetByIDTx(ctx, gomock.Nil(), "org-1").Return(org, nil)
		f.analyses.EXPECT().SetStatusTx(ctx, gomock.Nil(), "a-2", model.AnalysisStatusProcessing).
			Return(&model.Analysis{ID: "a-2", Status: model.AnalysisStatusProcessing}, nil)
		f.jobs.EXPECT().CreateInTx(ctx, gomock.Nil(), gomock.Any()).Return(&model.Job{ID: "job-2"}, nil)

		res, err := f.producer.CreateJob(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, "a-2", res.AnalysisID)
	})

	t.Run("processing record is a conflict and nothing is enqueued", func(t *testing.T) {
		f := newProducerFixture(t)
		committed := expectTx(f.tx)

		f.analyses.EXPECT().LockLatestByOrganizationTx(ctx, gomock.Nil(), "org-1").
			Return(&model.Analysis{ID: "a-1", Status: model.AnalysisStatusProcessing}, nil)

		_, err := f.producer.CreateJob(ctx, "org-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.False(t, *committed)
		assert.Empty(t, f.bc.Updates())
		assert.Empty(t, f.kicks.kicks)
	})

	t.Run("no record is not found", func(t *testing.T) {
		f := newProducerFixture(t)
		expectTx(f.tx)

		f.analyses.EXPECT().LockLatestByOrganizationTx(ctx, gomock.Nil(), "org-9").
			Return(nil, apperrors.NotFound("analysis not found"))

		_, err := f.producer.CreateJob(ctx, "org-9")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("enqueue failure rolls back", func(t *testing.T) {
		f := newProducerFixture(t)
		committed := expectTx(f.tx)

		f.analyses.EXPECT().LockLatestByOrganizationTx(ctx, gomock.Nil(), "org-1").
			Return(&model.Analysis{ID: "a-1", Status: model.AnalysisStatusPending}, nil)
		f.orgs.EXPECT().GetByIDTx(ctx, gomock.Nil(), "org-1").Return(org, nil)
		f.analyses.EXPECT().SetStatusTx(ctx, gomock.Nil(), "a-1", model.AnalysisStatusProcessing).
			Return(&model.Analysis{ID: "a-1", Status: model.AnalysisStatusProcessing}, nil)
		f.jobs.EXPECT().CreateInTx(ctx, gomock.Nil(), gomock.Any()).Return(nil, assert.AnError)

		_, err := f.producer.CreateJob(ctx, "org-1")
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, *committed)
		assert.Empty(t, f.bc.Updates())
	})

	t.Run("empty organization id", func(t *testing.T) {
		f := newProducerFixture(t)
		_, err := f.producer.CreateJob(ctx, "")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestNewAnalysisProducer_RequiresDependencies(t *testing.T) {
	_, err := NewAnalysisProducer(AnalysisProducerOptions{})
	assert.Error(t, err)
}
