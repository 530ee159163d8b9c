package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/collegebaseball/internal/backfill"
	"github.com/fortuna/collegebaseball/internal/store"
)

// Backfiller is the backfill service as seen by the API.
type Backfiller interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
	GetJob(ctx context.Context, jobID string) (*backfill.Job, error)
}

var errNoBackfill = errors.New("backfill service is not configured")

// BackfillHandler serves the job queue endpoints.
type BackfillHandler struct {
	service Backfiller
}

// NewBackfillHandler wraps service. A nil service answers 503.
func NewBackfillHandler(service Backfiller) *BackfillHandler {
	return &BackfillHandler{service: service}
}

func (h *BackfillHandler) available(w http.ResponseWriter) bool {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Unavailable", errNoBackfill)
		return false
	}
	return true
}

// HandleBackfillRequest handles POST /api/v1/backfill
func (h *BackfillHandler) HandleBackfillRequest(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req backfill.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// Validate here so a bad request is a 400 rather than an enqueue failure.
	if _, err := req.Spec(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid backfill request", err)
		return
	}
	job, err := h.service.Enqueue(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue backfill job", err)
		return
	}
	respondJSON(w, http.StatusAccepted, struct {
		Job *jobView `json:"job"`
	}{newJobView(job)})
}

// HandleBackfillStatus handles GET /api/v1/backfill/status
func (h *BackfillHandler) HandleBackfillStatus(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}
	respondJSON(w, http.StatusOK, newQueueView(summary))
}

// HandleGetJob handles GET /api/v1/backfill/jobs/{jobID}
func (h *BackfillHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	job, err := h.service.GetJob(r.Context(), mux.Vars(r)["jobID"])
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Job not found", err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to fetch job", err)
	default:
		respondJSON(w, http.StatusOK, newJobView(job))
	}
}

// queueView is the status endpoint body. Status is "idle" when nothing runs.
type queueView struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	ActiveJob *jobView   `json:"active_job,omitempty"`
	History   []*jobView `json:"history"`
}

func newQueueView(summary *backfill.StatusSummary) queueView {
	v := queueView{Status: "idle", Message: "No active jobs", History: []*jobView{}}
	if active := summary.ActiveJob; active != nil {
		v.Status = string(active.Status)
		if active.StatusMessage.Valid {
			v.Message = active.StatusMessage.String
		}
		v.ActiveJob = newJobView(active)
	}
	for _, job := range summary.History {
		v.History = append(v.History, newJobView(job))
	}
	return v
}

// jobView flattens the nullable columns of a stored job.
type jobView struct {
	JobID           string     `json:"job_id"`
	JobType         string     `json:"job_type"`
	Seasons         []int64    `json:"seasons"`
	Divisions       []int64    `json:"divisions,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Schools         []int64    `json:"schools,omitempty"`
	Save            bool       `json:"save"`
	Status          string     `json:"status"`
	StatusMessage   string     `json:"status_message,omitempty"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
	Failures        []string   `json:"failures,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func newJobView(job *backfill.Job) *jobView {
	if job == nil {
		return nil
	}
	v := &jobView{
		JobID:           job.JobID,
		JobType:         string(job.JobType),
		Seasons:         job.Seasons,
		Divisions:       job.Divisions,
		Categories:      job.Categories,
		Schools:         job.Schools,
		Save:            job.Save,
		Status:          string(job.Status),
		StatusMessage:   job.StatusMessage.String,
		ProgressCurrent: job.ProgressCurrent,
		ProgressTotal:   job.ProgressTotal,
		Failures:        job.Failures,
		LastError:       job.LastError.String,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	if job.StartedAt.Valid {
		v.StartedAt = &job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		v.CompletedAt = &job.CompletedAt.Time
	}
	return v
}
