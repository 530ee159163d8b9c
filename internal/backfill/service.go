package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/publisher"
	"github.com/fortuna/collegebaseball/internal/schema"
)

// Request represents a backfill invocation request.
type Request struct {
	Type       string   `json:"type"`
	Seasons    []int    `json:"seasons"`
	Divisions  []int    `json:"divisions,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Schools    []int    `json:"schools,omitempty"`
	Save       *bool    `json:"save,omitempty"`
}

// Spec validates the request and converts it. Save defaults to true.
func (r Request) Spec() (JobSpec, error) {
	jobType, ok := ParseJobType(r.Type)
	if !ok {
		return JobSpec{}, fmt.Errorf("unsupported job type %q", r.Type)
	}
	spec := JobSpec{
		Type:      jobType,
		Seasons:   r.Seasons,
		Divisions: r.Divisions,
		Schools:   r.Schools,
		Save:      r.Save == nil || *r.Save,
	}
	for _, c := range r.Categories {
		cat, err := schema.ParseCategory(c)
		if err != nil {
			return JobSpec{}, err
		}
		spec.Categories = append(spec.Categories, cat)
	}
	return spec, spec.Validate()
}

// NewJob builds the queued row for spec.
func NewJob(spec JobSpec) *Job {
	job := &Job{
		JobID:         uuid.NewString(),
		JobType:       spec.Type,
		Seasons:       int64s(spec.Seasons),
		Divisions:     int64s(spec.Divisions),
		Schools:       int64s(spec.Schools),
		Save:          spec.Save,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
	}
	for _, c := range spec.Categories {
		job.Categories = append(job.Categories, string(c))
	}
	return job
}

// Service owns the job queue: it stores requests and drains them one at a
// time on a background worker.
type Service struct {
	repo    *Repository
	runner  *Runner
	events  publisher.Publisher
	metrics *monitoring.Metrics
	logger  *zap.Logger

	historyLimit int
	idleWait     time.Duration

	ctx     context.Context
	stop    context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// NewService wires the queue. Nothing runs until Start.
func NewService(repo *Repository, runner *Runner, pub publisher.Publisher, metrics *monitoring.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = publisher.Nop{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		repo:         repo,
		runner:       runner,
		events:       pub,
		metrics:      metrics,
		logger:       logger.Named("backfill"),
		historyLimit: 10,
		idleWait:     3 * time.Second,
		ctx:          ctx,
		stop:         stop,
		done:         make(chan struct{}),
	}
}

// Start requeues jobs orphaned by a crash and launches the worker. Calls
// after the first are no-ops.
func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Warn("requeue orphaned jobs", zap.Error(err))
	}
	go s.drain()
}

// Shutdown cancels the running job and waits for the worker to exit, up to ctx.
// A service that was never started returns at once.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue validates req and queues it.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}
	return s.EnqueueSpec(ctx, spec)
}

// EnqueueSpec queues an already validated spec. The planned entity count is
// stored as the job's progress total.
func (s *Service) EnqueueSpec(ctx context.Context, spec JobSpec) (*Job, error) {
	pending := NewJob(spec)
	pending.ProgressTotal = len(s.runner.plan(spec))

	job, err := s.repo.CreateJob(ctx, pending)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AppendEvent(ctx, job.JobID, "queued", "Job queued"); err != nil {
		s.logger.Warn("job event not recorded", zap.String("job_id", job.JobID), zap.Error(err))
	}
	s.publish(ctx, publisher.Event{
		Type:    publisher.EventJobQueued,
		JobID:   job.JobID,
		Message: string(job.JobType),
		Total:   job.ProgressTotal,
	})
	s.logger.Info("job queued",
		zap.String("job_id", job.JobID),
		zap.String("type", string(job.JobType)),
		zap.Int("entities", job.ProgressTotal))
	return job, nil
}

// GetJob returns one job by id.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

// GetStatus reports the running job, if any, and the latest history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	var (
		summary StatusSummary
		err     error
	)
	if summary.ActiveJob, err = s.repo.GetActiveJob(ctx); err != nil {
		return nil, err
	}
	if summary.History, err = s.repo.ListRecentJobs(ctx, s.historyLimit); err != nil {
		return nil, err
	}
	return &summary, nil
}

// drain claims and runs queued jobs until the service is stopped. An empty
// queue or a claim error waits idleWait before polling again.
func (s *Service) drain() {
	defer close(s.done)
	for s.ctx.Err() == nil {
		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil && s.ctx.Err() == nil {
			s.logger.Error("claiming job", zap.Error(err))
		}
		if job != nil {
			s.executeJob(job)
			continue
		}
		select {
		case <-s.ctx.Done():
		case <-time.After(s.idleWait):
		}
	}
}

func (s *Service) executeJob(job *Job) {
	logger := s.logger.With(zap.String("job_id", job.JobID), zap.String("type", string(job.JobType)))

	spec, err := job.Spec()
	if err != nil {
		logger.Error("invalid job spec", zap.Error(err))
		s.finish(job.JobID, JobStatusFailed, "Invalid job specification", err)
		return
	}

	reporter := Reporters{
		&jobReporter{ctx: s.ctx, repo: s.repo, jobID: job.JobID, logger: logger},
		&PublisherReporter{Ctx: s.ctx, Publisher: s.events, JobID: job.JobID, Logger: logger},
	}

	s.metrics.JobStarted()
	defer s.metrics.JobFinished()

	start := time.Now()
	summary, err := s.runner.Run(s.ctx, spec, reporter)
	if err != nil {
		logger.Error("job failed", zap.Error(err))
		s.finish(job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	logger.Info("job completed",
		zap.Int("entities", summary.Entities),
		zap.Int("rows", summary.Rows),
		zap.Int("failures", len(summary.Failures)),
		zap.Duration("took", time.Since(start)),
	)
	s.finish(job.JobID, JobStatusCompleted, completionMessage(summary), nil)
}

func (s *Service) finish(jobID string, status JobStatus, message string, jobErr error) {
	// The service context may already be cancelled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.UpdateStatus(ctx, jobID, status, message, jobErr); err != nil {
		s.logger.Error("update job status", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev publisher.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func completionMessage(summary Summary) string {
	if len(summary.Failures) == 0 {
		return fmt.Sprintf("Job completed: %d entities, %d rows", summary.Entities, summary.Rows)
	}
	return fmt.Sprintf("Job completed with %d failures: %d entities, %d rows",
		len(summary.Failures), summary.Entities, summary.Rows)
}
