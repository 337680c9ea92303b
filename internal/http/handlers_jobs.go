package httpx

import (
	"errors"
	"net/http"

	"github.com/vestigas/delivery-ingest/internal/domain/model"
	"github.com/vestigas/delivery-ingest/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Ingest     *service.IngestService
	Deliveries *service.DeliveryService
}

// startJobResponse is the 202 body returned when a fetch job is accepted.
type startJobResponse struct {
	JobID   string          `json:"jobId"`
	Status  model.JobStatus `json:"status"`
	Message string          `json:"message"`
}

// StartFetch handles POST /fetch. The job is accepted and processed in the
// background; the response carries the ID to poll.
func (h *JobHandlers) StartFetch(w http.ResponseWriter, r *http.Request) {
	var req model.StartJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Ingest.StartJob(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "start_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusAccepted, startJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "fetch job accepted",
	})
}

// GetJob handles GET /jobs/{jobId}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required and cannot be empty")})
		return
	}

	job, err := h.Ingest.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "lookup_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// jobResultsResponse pairs the terminal job with a page of its stored
// delivery events.
type jobResultsResponse struct {
	Job        *model.Job            `json:"job"`
	Total      int                   `json:"total"`
	Deliveries []model.DeliveryEvent `json:"deliveries"`
}

// GetJobResults handles GET /jobs/{jobId}/results. Results are available
// only once the job is terminal; a job still in flight yields a 400 so the
// caller knows to keep polling.
func (h *JobHandlers) GetJobResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required and cannot be empty")})
		return
	}
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)

	job, total, events, err := h.Deliveries.ResultsForJob(r.Context(), jobID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
		case errors.Is(err, service.ErrJobNotTerminal):
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "job_not_finished", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "results_failed", Err: err})
		}
		return
	}
	if events == nil {
		events = []model.DeliveryEvent{}
	}

	WriteJSON(w, http.StatusOK, jobResultsResponse{Job: job, Total: total, Deliveries: events})
}
