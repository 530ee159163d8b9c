package backfill

import (
	"context"
	"fmt"

	"github.com/fortuna/collegebaseball/internal/export"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/store"
	"github.com/fortuna/collegebaseball/internal/store/repository"
)

// StoreSink writes rosters and results to their own tables and everything
// else as JSONB.
type StoreSink struct {
	Stats   *repository.StatsRepository
	Rosters *repository.RosterRepository
	Results *repository.ResultsRepository
}

// NewStoreSink builds the repositories over db.
func NewStoreSink(db *store.Database) *StoreSink {
	return &StoreSink{
		Stats:   repository.NewStatsRepository(db),
		Rosters: repository.NewRosterRepository(db),
		Results: repository.NewResultsRepository(db),
	}
}

// Save implements Sink.
func (s *StoreSink) Save(ctx context.Context, key store.TableKey, t *normalize.Table) error {
	switch key.Kind {
	case store.KindRoster:
		return s.Rosters.Upsert(ctx, store.RosterRows(t))
	case store.KindTeamResults:
		return s.Results.Upsert(ctx, store.ResultRows(t))
	default:
		return s.Stats.SaveTable(ctx, key, t)
	}
}

// ExportSink writes every table to the export directory.
type ExportSink struct {
	Writer *export.Writer
}

// Save implements Sink.
func (s *ExportSink) Save(_ context.Context, key store.TableKey, t *normalize.Table) error {
	var err error
	switch key.Kind {
	case store.KindRoster:
		_, err = s.Writer.Rosters(store.RosterRows(t), key.SchoolID, key.Season)
	case store.KindTeamResults:
		_, err = s.Writer.Results(store.ResultRows(t), key.SchoolID, key.Season)
	default:
		_, err = s.Writer.Table(t, exportName(key), key.SchoolID, key.Season)
	}
	return err
}

func exportName(key store.TableKey) string {
	name := key.Kind
	if key.Category != "" {
		name += "_" + key.Category
	}
	if key.Split != "" {
		name += "_" + key.Split
	}
	if key.Subject != 0 {
		name += fmt.Sprintf("_%d", key.Subject)
	}
	return name
}
