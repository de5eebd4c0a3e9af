package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

var (
	errJobNotFound      = errors.New("job not found")
	errJobNotCancelable = errors.New("job cannot be cancelled")
)

// Job is an asynchronous song generation.
type Job struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Stage       string       `json:"stage,omitempty"`
	Progress    int          `json:"progress"` // 0-100
	Result      *song.Result `json:"result,omitempty"`
	Error       *APIError    `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	Request     song.Request `json:"request"`

	ctx      context.Context
	cancel   context.CancelFunc
	finished time.Time
}

// jobRetention is how long finished jobs stay queryable.
const jobRetention = time.Hour

// JobStore holds jobs in memory. Readers get copies.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
	now  func() time.Time
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

func (s *JobStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Create adds a pending job derived from parent and returns a copy. Finished
// jobs older than jobRetention are dropped.
func (s *JobStore) Create(parent context.Context, req song.Request) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	ctx, cancel := context.WithCancel(parent)
	now := s.stamp()
	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.jobs[job.ID] = job
	return *job
}

func (s *JobStore) pruneLocked() {
	cutoff := s.now().Add(-jobRetention)
	for id, job := range s.jobs {
		if job.Status.Finished() && job.finished.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all jobs, newest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt > jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// update applies fn to a job that has not finished yet. It reports false
// when the job is gone or already finished, so a cancelled job is never
// overwritten by its worker.
func (s *JobStore) update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists || job.Status.Finished() {
		return false
	}

	fn(job)
	job.UpdatedAt = s.stamp()
	if job.Status.Finished() {
		job.CompletedAt = job.UpdatedAt
		job.finished = s.now()
		job.cancel()
	}
	return true
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", errJobNotFound, id)
	}
	if job.Status.Finished() {
		return fmt.Errorf("%w (status: %s)", errJobNotCancelable, job.Status)
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.UpdatedAt = s.stamp()
	job.CompletedAt = job.UpdatedAt
	job.finished = s.now()
	return nil
}

// CancelAll cancels every unfinished job. Used at shutdown.
func (s *JobStore) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if !job.Status.Finished() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.UpdatedAt = s.stamp()
			job.CompletedAt = job.UpdatedAt
			job.finished = s.now()
		}
	}
}

// context returns the job's context.
func (s *JobStore) context(id string) (context.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.ctx, true
}

// jobOutcome is what a pool worker reports for one job.
type jobOutcome struct {
	ID       string
	Status   JobStatus
	Duration time.Duration
}

// runJob executes a generation job on a pool worker.
func (s *Server) runJob(id string) jobOutcome {
	start := time.Now()
	out := jobOutcome{ID: id}

	ctx, ok := s.jobs.context(id)
	if !ok {
		out.Status = JobStatusCancelled
		return out
	}
	if ctx.Err() != nil {
		out.Status = JobStatusCancelled
		return out
	}

	job, _ := s.jobs.Get(id)
	s.metrics.JobStarted()
	defer s.metrics.JobFinished()

	s.jobs.update(id, func(j *Job) { j.Status = JobStatusRunning })
	logging.JobEvent(id, string(JobStatusRunning))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	progress := func(p song.Progress) {
		s.jobs.update(id, func(j *Job) {
			j.Stage = p.Stage
			j.Progress = p.Percent
		})
		s.hub.Broadcast(ProgressMessage{
			Type:      MessageProgress,
			Operation: "generate",
			JobID:     id,
			Stage:     p.Stage,
			Progress:  p.Percent,
			Message:   p.Message,
		})
	}

	res, err := s.generator.GenerateWithProgress(ctx, job.Request, progress)
	out.Duration = time.Since(start)

	if err != nil {
		status, apiErr := classifyError(err)
		if cur, ok := s.jobs.Get(id); ok && cur.Status == JobStatusCancelled {
			out.Status = JobStatusCancelled
			return out
		}
		s.jobs.update(id, func(j *Job) {
			j.Status = JobStatusFailed
			j.Error = apiErr
		})
		s.hub.Broadcast(ProgressMessage{
			Type:      MessageError,
			Operation: "generate",
			JobID:     id,
			Message:   apiErr.Message,
			Data:      map[string]any{"code": apiErr.Code, "status": status},
		})
		out.Status = JobStatusFailed
		return out
	}

	if !s.jobs.update(id, func(j *Job) {
		j.Status = JobStatusCompleted
		j.Progress = 100
		j.Result = res
	}) {
		out.Status = JobStatusCancelled
		return out
	}
	s.hub.Broadcast(ProgressMessage{
		Type:      MessageComplete,
		Operation: "generate",
		JobID:     id,
		Progress:  100,
		Message:   res.Draft.Title,
		Data:      map[string]any{"title": res.Draft.Title},
	})
	out.Status = JobStatusCompleted
	return out
}

// collectJobResults logs finished jobs until the pool closes.
func (s *Server) collectJobResults() {
	for out := range s.pool.Results() {
		logging.JobEvent(out.ID, string(out.Status), "duration_ms", out.Duration.Milliseconds())
	}
}

// handleJobs handles GET /jobs (list) and POST /jobs (create).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := s.jobs.List()
		respondList(w, http.StatusOK, jobs, len(jobs))
	case http.MethodPost:
		s.createJob(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	var req song.Request
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		status, apiErr := classifyError(err)
		respondError(w, status, apiErr.Code, apiErr.Message)
		return
	}

	job := s.jobs.Create(s.baseCtx, req)
	if !s.pool.TrySubmit(job.ID) {
		s.jobs.update(job.ID, func(j *Job) {
			j.Status = JobStatusFailed
			j.Error = &APIError{Code: "QUEUE_FULL", Message: "Generation queue is full"}
		})
		respondError(w, http.StatusServiceUnavailable, "QUEUE_FULL", "Generation queue is full, try again later")
		return
	}
	logging.JobEvent(job.ID, string(JobStatusPending))

	respond(w, http.StatusAccepted, job)
}

// handleJobByID handles GET /jobs/{id} (status) and DELETE /jobs/{id} (cancel).
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if err := ValidateID(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, exists := s.jobs.Get(id)
		if !exists {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.jobs.Cancel(id); err != nil {
			if errors.Is(err, errJobNotFound) {
				respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
				return
			}
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		logging.JobEvent(id, string(JobStatusCancelled))
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}
