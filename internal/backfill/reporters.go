package backfill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/publisher"
)

// Reporters fans callbacks out to several reporters.
type Reporters []Reporter

func (rs Reporters) OnJobStart(spec JobSpec, total int) {
	for _, r := range rs {
		r.OnJobStart(spec, total)
	}
}

func (rs Reporters) OnEntityDone(e Entity, rows, index, total int) {
	for _, r := range rs {
		r.OnEntityDone(e, rows, index, total)
	}
}

func (rs Reporters) OnEntityFailed(e Entity, err error, index, total int) {
	for _, r := range rs {
		r.OnEntityFailed(e, err, index, total)
	}
}

func (rs Reporters) OnJobComplete(summary Summary) {
	for _, r := range rs {
		r.OnJobComplete(summary)
	}
}

func (rs Reporters) OnJobError(err error) {
	for _, r := range rs {
		r.OnJobError(err)
	}
}

// jobReporter mirrors progress into the backfill_jobs row.
type jobReporter struct {
	ctx    context.Context
	repo   *Repository
	jobID  string
	total  int
	logger *zap.Logger
}

func (r *jobReporter) OnJobStart(_ JobSpec, total int) {
	r.total = total
	r.check(r.repo.UpdateProgress(r.ctx, r.jobID, 0, total, "Job starting"))
}

func (r *jobReporter) OnEntityDone(e Entity, rows, index, total int) {
	msg := fmt.Sprintf("%s: %d rows (%d/%d)", e.Label, rows, index+1, total)
	r.check(r.repo.UpdateProgress(r.ctx, r.jobID, index+1, total, msg))
}

func (r *jobReporter) OnEntityFailed(e Entity, err error, index, total int) {
	failure := fmt.Sprintf("%s: %v", e.Label, err)
	r.check(r.repo.AppendFailure(r.ctx, r.jobID, failure))
	r.check(r.repo.AppendEvent(r.ctx, r.jobID, "entity_failed", failure))
	r.check(r.repo.UpdateProgress(r.ctx, r.jobID, index+1, total, failure))
}

func (r *jobReporter) OnJobComplete(summary Summary) {
	msg := fmt.Sprintf("Job complete: %d rows, %d failures", summary.Rows, len(summary.Failures))
	r.check(r.repo.UpdateProgress(r.ctx, r.jobID, r.total, r.total, msg))
}

func (r *jobReporter) OnJobError(err error) {
	r.check(r.repo.AppendEvent(r.ctx, r.jobID, "error", err.Error()))
}

func (r *jobReporter) check(err error) {
	if err != nil {
		r.logger.Warn("job bookkeeping failed", zap.String("job_id", r.jobID), zap.Error(err))
	}
}

// PublisherReporter turns runner callbacks into stream events.
type PublisherReporter struct {
	Ctx       context.Context
	Publisher publisher.Publisher
	JobID     string
	Logger    *zap.Logger
}

func (r *PublisherReporter) OnJobStart(spec JobSpec, total int) {
	r.publish(publisher.Event{
		Type:    publisher.EventJobStarted,
		Message: fmt.Sprintf("%s %v", spec.Type, spec.Seasons),
		Total:   total,
	})
}

func (r *PublisherReporter) OnEntityDone(e Entity, rows, index, total int) {
	r.publish(publisher.Event{
		Type:    publisher.EventTableReady,
		Message: e.Label,
		Current: index + 1,
		Total:   total,
		Payload: map[string]any{"key": e.Key, "rows": rows},
	})
}

func (r *PublisherReporter) OnEntityFailed(e Entity, err error, index, total int) {
	r.publish(publisher.Event{
		Type:    publisher.EventJobFailure,
		Message: fmt.Sprintf("%s: %v", e.Label, err),
		Current: index + 1,
		Total:   total,
	})
}

func (r *PublisherReporter) OnJobComplete(summary Summary) {
	r.publish(publisher.Event{
		Type:    publisher.EventJobCompleted,
		Current: summary.Entities,
		Total:   summary.Entities,
		Payload: summary,
	})
}

func (r *PublisherReporter) OnJobError(err error) {
	r.publish(publisher.Event{Type: publisher.EventJobFailed, Message: err.Error()})
}

func (r *PublisherReporter) publish(ev publisher.Event) {
	if r.Publisher == nil {
		return
	}
	ev.JobID = r.JobID
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.Publisher.Publish(ctx, ev); err != nil && r.Logger != nil {
		r.Logger.Warn("publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
