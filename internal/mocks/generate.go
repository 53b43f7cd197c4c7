// Package mocks provides gomock implementations of the repository and
// outbound port interfaces in internal/core.
//
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockJobRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
package mocks

// Repositories (internal/core/interfaces.go).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=repositories_mock.go github.com/target/esg-pipeline/internal/core AnalysisRepository,EsgResultRepository,JobRepository,JobRepositoryTx,OrganizationRepository,PaymentRepository,ReaperRepository,Transactor

// Outbound ports (internal/core/ports.go).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/target/esg-pipeline/internal/core AnalysisClient,ArtifactStore,EsgJobProducer,InFlightLock,Mailer,PaymentGateway,StatusBroadcaster
