package data

import apperrors "github.com/target/esg-pipeline/internal/errors"

// Shared sentinel errors for data-layer repositories. They carry application
// error codes so callers outside this package can classify them with
// apperrors.IsNotFound and friends; errors.Is against the sentinel also works.
var (
	ErrAnalysisNotFound     error = apperrors.NotFound("analysis not found")
	ErrOrganizationNotFound error = apperrors.NotFound("organization not found")
	ErrEsgResultNotFound    error = apperrors.NotFound("esg analysis result not found")
	ErrPaymentNotFound      error = apperrors.NotFound("payment not found")
	ErrTxRequired           error = apperrors.Internal("transaction is required")
)
