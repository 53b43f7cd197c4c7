// Package analysis holds the lifecycle rules of an analysis record.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid analysis status transition")

// External status values reported by the analysis service.
const (
	ExternalComplete   = "COMPLETE"
	ExternalIncomplete = "INCOMPLETE"
	ExternalFailed     = "FAILED"
)

// IsTerminal reports whether no automatic transition leaves s.
func IsTerminal(s model.AnalysisStatus) bool {
	switch s {
	case model.AnalysisStatusCompleted, model.AnalysisStatusIncomplete, model.AnalysisStatusFailed:
		return true
	case model.AnalysisStatusPending, model.AnalysisStatusProcessing:
		return false
	default:
		return false
	}
}

// IsInFlight reports whether a record in s blocks a new analysis for its organization.
func IsInFlight(s model.AnalysisStatus) bool {
	return s == model.AnalysisStatusPending || s == model.AnalysisStatusProcessing
}

// CanTransition reports whether from -> to is a legal automatic transition.
//
//	PENDING    -> PROCESSING
//	PROCESSING -> COMPLETED | INCOMPLETE | FAILED
//	terminal   -> PROCESSING (a new job for the same record)
func CanTransition(from, to model.AnalysisStatus) bool {
	switch from {
	case model.AnalysisStatusPending:
		return to == model.AnalysisStatusProcessing
	case model.AnalysisStatusProcessing:
		return IsTerminal(to)
	case model.AnalysisStatusCompleted, model.AnalysisStatusIncomplete, model.AnalysisStatusFailed:
		return to == model.AnalysisStatusProcessing
	default:
		return false
	}
}

// Transition validates from -> to and returns a descriptive error when illegal.
func Transition(from, to model.AnalysisStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NormalizeExternalStatus maps the analysis service status onto a terminal
// record status. Matching is case-insensitive; anything unrecognized,
// including an empty value, is FAILED.
func NormalizeExternalStatus(external string) model.AnalysisStatus {
	switch strings.ToUpper(strings.TrimSpace(external)) {
	case ExternalComplete:
		return model.AnalysisStatusCompleted
	case ExternalIncomplete:
		return model.AnalysisStatusIncomplete
	default:
		return model.AnalysisStatusFailed
	}
}
