package httpapi

import (
	"net/http"

	"github.com/bobmcallan/gardensync/internal/models"
	"github.com/bobmcallan/gardensync/internal/queuecontroller"
)

type createJobRequest struct {
	Kind            models.JobKind              `json:"kind"`
	WorkPayload     *models.WorkJobPayload      `json:"workPayload,omitempty"`
	ApprovalPayload *models.ApprovalJobPayload   `json:"approvalPayload,omitempty"`
	ClientOpID      string                      `json:"clientOpId"`
}

// handleJobsCreate serves POST /api/jobs, enqueuing a new Job through the
// QueueController.
func (s *Server) handleJobsCreate(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.ClientOpID == "" {
		WriteError(w, http.StatusBadRequest, "clientOpId is required for dedup")
		return
	}

	job, err := s.queue.AddJob(r.Context(), req.Kind, req.WorkPayload, req.ApprovalPayload, uc.UserAddress, uc.ChainID, queuecontroller.AddOpts{ClientOpID: req.ClientOpID})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to enqueue job: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

// routeJobs dispatches /api/jobs/{id}/process.
func (s *Server) routeJobs(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathParam(r, "/api/jobs/", "/process")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "job id required")
		return
	}

	result, err := s.queue.ProcessJob(r.Context(), uc.UserAddress, id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to process job: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// handleFlush serves POST /api/flush, draining every eligible job for the
// authenticated user — the explicit "Sync now" action of spec.md §5.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	processed, err := s.queue.Flush(r.Context(), uc.UserAddress)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to flush queue: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.queue.GetStats(r.Context(), uc.UserAddress)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load stats: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
