package repository

import (
	"context"

	"github.com/fortuna/collegebaseball/internal/store"
)

// Archive is the read side of every repository.
type Archive struct {
	stats   *StatsRepository
	rosters *RosterRepository
	results *ResultsRepository
}

// NewArchive builds the repositories over db.
func NewArchive(db *store.Database) *Archive {
	return &Archive{
		stats:   NewStatsRepository(db),
		rosters: NewRosterRepository(db),
		results: NewResultsRepository(db),
	}
}

func (a *Archive) LoadTable(ctx context.Context, key store.TableKey) (*store.StoredTable, error) {
	return a.stats.LoadTable(ctx, key)
}

func (a *Archive) ListKeys(ctx context.Context, schoolID, season int) ([]store.TableKey, error) {
	return a.stats.ListKeys(ctx, schoolID, season)
}

func (a *Archive) ListRoster(ctx context.Context, schoolID, season int) ([]store.RosterRow, error) {
	return a.rosters.ListBySchool(ctx, schoolID, season)
}

func (a *Archive) ListResults(ctx context.Context, schoolID, season int) ([]store.ResultRow, error) {
	return a.results.ListBySchool(ctx, schoolID, season)
}
