package backfill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
)

// Scraper is the part of *ncaa.Scraper the runner drives.
type Scraper interface {
	Bundle() *reference.Bundle
	TeamSeasonRoster(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error)
	TeamStats(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category, opts ncaa.StatsOptions) (*normalize.Table, error)
	TeamResults(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error)
	PlayerGameLogs(ctx context.Context, player reference.PlayerRef, season reference.SeasonRef, category schema.Category) (*normalize.Table, error)
}

// Sink receives every table the runner produces when saving is on.
type Sink interface {
	Save(ctx context.Context, key store.TableKey, t *normalize.Table) error
}

// Validate checks a spec before it is queued or run.
func (s JobSpec) Validate() error {
	if _, ok := ParseJobType(string(s.Type)); !ok {
		return fmt.Errorf("unsupported job type %q", s.Type)
	}
	if len(s.Seasons) == 0 {
		return errors.New("at least one season is required")
	}
	for _, d := range s.Divisions {
		if d < 1 || d > 3 {
			return fmt.Errorf("invalid division %d", d)
		}
	}
	return nil
}

type task struct {
	Entity
	fetch func(ctx context.Context) (*normalize.Table, error)
}

// Runner executes backfill specs one entity at a time.
type Runner struct {
	scraper Scraper
	sinks   []Sink
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewRunner constructs a runner. Sinks are only used for specs with Save set.
func NewRunner(scraper Scraper, logger *zap.Logger, metrics *monitoring.Metrics, sinks ...Sink) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		scraper: scraper,
		sinks:   sinks,
		logger:  logger.Named("backfill"),
		metrics: metrics,
	}
}

// Run executes the spec. An entity that fails is recorded in the summary
// and the run moves on; only an invalid spec or a cancelled context stops it.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (Summary, error) {
	if reporter == nil {
		reporter = Reporters{}
	}

	var summary Summary
	if err := spec.Validate(); err != nil {
		reporter.OnJobError(err)
		return summary, err
	}

	tasks := r.plan(spec)
	total := len(tasks)
	reporter.OnJobStart(spec, total)

	if spec.DryRun {
		for _, t := range tasks {
			r.logger.Info("dry run", zap.String("entity", t.Label))
		}
		summary.Entities = total
		reporter.OnJobComplete(summary)
		return summary, nil
	}

	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			reporter.OnJobError(err)
			return summary, err
		}

		rows, err := r.runTask(ctx, t, spec.Save)
		summary.Entities++
		r.metrics.RecordEntity(string(spec.Type), err != nil)
		if err != nil {
			if ctx.Err() != nil {
				reporter.OnJobError(ctx.Err())
				return summary, ctx.Err()
			}
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", t.Label, err))
			r.logger.Warn("entity failed", zap.String("entity", t.Label), zap.Error(err))
			reporter.OnEntityFailed(t.Entity, err, i, total)
			continue
		}
		summary.Rows += rows
		reporter.OnEntityDone(t.Entity, rows, i, total)
	}

	reporter.OnJobComplete(summary)
	return summary, nil
}

func (r *Runner) runTask(ctx context.Context, t task, save bool) (int, error) {
	tbl, err := t.fetch(ctx)
	if err != nil {
		return 0, err
	}
	if save {
		for _, s := range r.sinks {
			if err := s.Save(ctx, t.Key, tbl); err != nil {
				return 0, fmt.Errorf("saving: %w", err)
			}
		}
	}
	return tbl.Len(), nil
}

// Entities lists what Run would process for spec, in order.
func (r *Runner) Entities(spec JobSpec) []Entity {
	tasks := r.plan(spec)
	out := make([]Entity, len(tasks))
	for i, t := range tasks {
		out[i] = t.Entity
	}
	return out
}

func (r *Runner) plan(spec JobSpec) []task {
	categories := spec.Categories
	if len(categories) == 0 {
		categories = schema.Categories
	}

	var tasks []task
	for _, season := range spec.Seasons {
		seasonRef := reference.BySeason(season)

		switch spec.Type {
		case JobTypeRosters:
			for _, school := range r.schools(spec) {
				ref := reference.ByID(school.SchoolID)
				tasks = append(tasks, task{
					Entity: Entity{
						Label: fmt.Sprintf("%s %d roster", school.NCAAName, season),
						Key:   store.TableKey{Kind: store.KindRoster, Season: season, SchoolID: school.SchoolID},
					},
					fetch: func(ctx context.Context) (*normalize.Table, error) {
						return r.scraper.TeamSeasonRoster(ctx, ref, seasonRef)
					},
				})
			}

		case JobTypeTeamStats:
			for _, school := range r.schools(spec) {
				ref := reference.ByID(school.SchoolID)
				for _, cat := range categories {
					cat := cat
					tasks = append(tasks, task{
						Entity: Entity{
							Label: fmt.Sprintf("%s %d %s", school.NCAAName, season, cat),
							Key:   store.TableKey{Kind: store.KindTeamStats, Category: string(cat), Season: season, SchoolID: school.SchoolID},
						},
						fetch: func(ctx context.Context) (*normalize.Table, error) {
							return r.scraper.TeamStats(ctx, ref, seasonRef, cat, ncaa.StatsOptions{})
						},
					})
				}
			}

		case JobTypeTeamResults:
			for _, school := range r.schools(spec) {
				ref := reference.ByID(school.SchoolID)
				tasks = append(tasks, task{
					Entity: Entity{
						Label: fmt.Sprintf("%s %d results", school.NCAAName, season),
						Key:   store.TableKey{Kind: store.KindTeamResults, Season: season, SchoolID: school.SchoolID},
					},
					fetch: func(ctx context.Context) (*normalize.Table, error) {
						return r.scraper.TeamResults(ctx, ref, seasonRef)
					},
				})
			}

		case JobTypePlayerGameLogs:
			for _, p := range r.players(spec, season) {
				ref := reference.ByPlayerSeq(p.StatsPlayerSeq)
				for _, cat := range categories {
					cat := cat
					tasks = append(tasks, task{
						Entity: Entity{
							Label: fmt.Sprintf("%s (%d) %d %s", p.Name, p.StatsPlayerSeq, season, cat),
							Key: store.TableKey{
								Kind: store.KindPlayerGameLog, Category: string(cat), Season: season,
								SchoolID: p.SchoolID, Subject: p.StatsPlayerSeq,
							},
						},
						fetch: func(ctx context.Context) (*normalize.Table, error) {
							return r.scraper.PlayerGameLogs(ctx, ref, seasonRef, cat)
						},
					})
				}
			}
		}
	}
	return tasks
}

// schools resolves the spec's explicit school ids, or every school in the
// requested divisions. Unknown ids are kept so the failure is reported
// against the entity.
func (r *Runner) schools(spec JobSpec) []reference.School {
	bundle := r.scraper.Bundle()
	if len(spec.Schools) > 0 {
		out := make([]reference.School, 0, len(spec.Schools))
		for _, id := range spec.Schools {
			s, err := bundle.School(reference.ByID(id))
			if err != nil {
				s = reference.School{SchoolID: id, NCAAName: fmt.Sprintf("school %d", id)}
			}
			out = append(out, s)
		}
		return out
	}
	if len(spec.Divisions) == 0 {
		return bundle.Schools(0)
	}
	var out []reference.School
	for _, d := range spec.Divisions {
		out = append(out, bundle.Schools(d)...)
	}
	return out
}

func (r *Runner) players(spec JobSpec, season int) []reference.RosterEntry {
	bundle := r.scraper.Bundle()
	var out []reference.RosterEntry
	if len(spec.Divisions) == 0 {
		out = bundle.RosterPlayers(season, 0)
	} else {
		for _, d := range spec.Divisions {
			out = append(out, bundle.RosterPlayers(season, d)...)
		}
	}
	if len(spec.Schools) == 0 {
		return out
	}
	keep := make(map[int]bool, len(spec.Schools))
	for _, id := range spec.Schools {
		keep[id] = true
	}
	filtered := out[:0]
	for _, p := range out {
		if keep[p.SchoolID] {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
