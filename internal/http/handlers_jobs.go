// Package httpx provides the HTTP API of the ESG pipeline.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
)

// JobStatusReader returns the queue view of a job.
type JobStatusReader interface {
	GetJobStatus(ctx context.Context, id string) (*model.JobStatusView, error)
}

// JobHandlers provides HTTP handlers for the analysis job queue.
type JobHandlers struct {
	Producer core.EsgJobProducer
	Status   JobStatusReader
	Logger   *slog.Logger
}

type createJobRequest struct {
	OrganizationID string `json:"organizationId"`
}

// CreateJob starts an analysis for the organization's latest record.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !validID(w, r, h.Logger, "organizationId", req.OrganizationID) {
		return
	}

	res, err := h.Producer.CreateJob(r.Context(), req.OrganizationID)
	if err != nil {
		writeAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, res)
}

// GetJobStatus reports a job's queue state. Unknown ids, including malformed
// ones, report not_found with 200.
func (h *JobHandlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		WriteJSON(w, http.StatusOK, model.JobStatusView{Status: model.QueueStateNotFound})
		return
	}

	view, err := h.Status.GetJobStatus(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}
