// Package scheduler queues the nightly refresh of the current season.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/backfill"
	"github.com/fortuna/collegebaseball/internal/config"
)

// Enqueuer accepts backfill jobs. *backfill.Service satisfies it.
type Enqueuer interface {
	EnqueueSpec(ctx context.Context, spec backfill.JobSpec) (*backfill.Job, error)
}

// Status is what the scheduler reports about itself.
type Status struct {
	Enabled   bool      `json:"enabled"`
	Spec      string    `json:"spec"`
	Timezone  string    `json:"timezone"`
	Season    int       `json:"season"`
	Division  int       `json:"division"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
	LastJobID string    `json:"last_job_id,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Orchestrator runs the refresh on a cron schedule.
type Orchestrator struct {
	cfg      config.SchedulerConfig
	enqueuer Enqueuer
	logger   *zap.Logger
	cron     *cron.Cron
	entry    cron.EntryID

	mu        sync.Mutex
	lastRun   time.Time
	lastJobID string
	lastErr   error
}

// NewOrchestrator parses the schedule. An unknown timezone or a bad spec is
// an error.
func NewOrchestrator(cfg config.SchedulerConfig, enqueuer Enqueuer, logger *zap.Logger) (*Orchestrator, error) {
	if enqueuer == nil {
		return nil, errors.New("scheduler: enqueuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("scheduler: loading timezone %q: %w", cfg.Timezone, err)
		}
	}

	o := &Orchestrator{
		cfg:      cfg,
		enqueuer: enqueuer,
		logger:   logger.Named("scheduler"),
		cron:     cron.New(cron.WithLocation(loc)),
	}
	id, err := o.cron.AddFunc(cfg.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := o.Trigger(ctx); err != nil {
			o.logger.Error("scheduled refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: parsing spec %q: %w", cfg.Spec, err)
	}
	o.entry = id
	return o, nil
}

// Start runs the cron loop in the background.
func (o *Orchestrator) Start() {
	o.cron.Start()
	o.logger.Info("scheduler started",
		zap.String("spec", o.cfg.Spec),
		zap.String("timezone", o.cfg.Timezone),
		zap.Int("season", o.cfg.Season),
		zap.Int("division", o.cfg.Division),
		zap.Time("next_run", o.cron.Entry(o.entry).Next))
}

// Stop halts the schedule and waits for a running trigger, up to ctx.
func (o *Orchestrator) Stop(ctx context.Context) error {
	done := o.cron.Stop()
	select {
	case <-done.Done():
		o.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshSpec is the job the schedule queues: the current season's
// results for the configured division.
func (o *Orchestrator) RefreshSpec() backfill.JobSpec {
	spec := backfill.JobSpec{
		Type:    backfill.JobTypeTeamResults,
		Seasons: []int{o.cfg.Season},
		Save:    true,
	}
	if o.cfg.Division > 0 {
		spec.Divisions = []int{o.cfg.Division}
	}
	return spec
}

// Trigger queues the refresh now.
func (o *Orchestrator) Trigger(ctx context.Context) (*backfill.Job, error) {
	job, err := o.enqueuer.EnqueueSpec(ctx, o.RefreshSpec())

	o.mu.Lock()
	o.lastRun = time.Now()
	o.lastErr = err
	if job != nil {
		o.lastJobID = job.JobID
	}
	o.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("queueing refresh: %w", err)
	}
	o.logger.Info("refresh queued", zap.String("job_id", job.JobID), zap.Int("season", o.cfg.Season))
	return job, nil
}

// Status reports the schedule and the outcome of the last trigger.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{
		Enabled:   o.cfg.Enabled,
		Spec:      o.cfg.Spec,
		Timezone:  o.cfg.Timezone,
		Season:    o.cfg.Season,
		Division:  o.cfg.Division,
		LastRun:   o.lastRun,
		NextRun:   o.cron.Entry(o.entry).Next,
		LastJobID: o.lastJobID,
	}
	if o.lastErr != nil {
		s.LastError = o.lastErr.Error()
	}
	return s
}
