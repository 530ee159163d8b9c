package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/publisher"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
)

type fakeScraper struct {
	bundle *reference.Bundle
	fail   map[string]bool

	mu    sync.Mutex
	calls []string
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{
		bundle: reference.New(reference.Tables{
			Seasons: []reference.Season{{Season: 2022, SeasonID: 15860, BattingID: 15687, PitchingID: 15688, FieldingID: 15689}},
			Schools: []reference.School{
				{SchoolID: 167, NCAAName: "Cornell", Division: 1},
				{SchoolID: 275, NCAAName: "Harvard", Division: 1},
				{SchoolID: 30024, NCAAName: "Ithaca", Division: 3},
			},
			Rosters: []reference.RosterEntry{
				{StatsPlayerSeq: 2486499, Season: 2022, Name: "Jake Gelof", School: "Cornell", SchoolID: 167, Division: 1},
				{StatsPlayerSeq: 2306356, Season: 2022, Name: "Nathan Blumenfeld", School: "Harvard", SchoolID: 275, Division: 1},
			},
		}),
		fail: map[string]bool{},
	}
}

func (f *fakeScraper) Bundle() *reference.Bundle { return f.bundle }

func (f *fakeScraper) record(call string) (*normalize.Table, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.fail[call] {
		return nil, ncaa.ErrBlocked
	}
	return &normalize.Table{
		Columns: []string{"school_id"},
		Records: []normalize.Record{{"school_id": int64(1)}, {"school_id": int64(1)}},
	}, nil
}

func (f *fakeScraper) TeamSeasonRoster(_ context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error) {
	return f.record(fmt.Sprintf("roster %s %s", school, season))
}

func (f *fakeScraper) TeamStats(_ context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category, _ ncaa.StatsOptions) (*normalize.Table, error) {
	return f.record(fmt.Sprintf("stats %s %s %s", school, season, category))
}

func (f *fakeScraper) TeamResults(_ context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error) {
	return f.record(fmt.Sprintf("results %s %s", school, season))
}

func (f *fakeScraper) PlayerGameLogs(_ context.Context, player reference.PlayerRef, season reference.SeasonRef, category schema.Category) (*normalize.Table, error) {
	return f.record(fmt.Sprintf("gamelogs %s %s %s", player, season, category))
}

type memorySink struct {
	keys []store.TableKey
	err  error
}

func (s *memorySink) Save(_ context.Context, key store.TableKey, _ *normalize.Table) error {
	s.keys = append(s.keys, key)
	return s.err
}

type recordingReporter struct {
	started  int
	done     []Entity
	failed   []Entity
	complete *Summary
	errs     []error
}

func (r *recordingReporter) OnJobStart(_ JobSpec, total int) { r.started = total }
func (r *recordingReporter) OnEntityDone(e Entity, _, _, _ int) {
	r.done = append(r.done, e)
}
func (r *recordingReporter) OnEntityFailed(e Entity, _ error, _, _ int) {
	r.failed = append(r.failed, e)
}
func (r *recordingReporter) OnJobComplete(s Summary) { r.complete = &s }
func (r *recordingReporter) OnJobError(err error)    { r.errs = append(r.errs, err) }

func TestRunnerRostersContinuesPastFailures(t *testing.T) {
	scraper := newFakeScraper()
	scraper.fail[`roster school_id 275 season 2022`] = true
	sink := &memorySink{}
	m := monitoring.NewMetrics()
	runner := NewRunner(scraper, nil, m, sink)
	rep := &recordingReporter{}

	summary, err := runner.Run(context.Background(), JobSpec{
		Type: JobTypeRosters, Seasons: []int{2022}, Divisions: []int{1}, Save: true,
	}, rep)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Entities)
	assert.Equal(t, 2, summary.Rows)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0], "Harvard 2022 roster")
	assert.Contains(t, summary.Failures[0], "blocked")

	assert.Equal(t, 2, rep.started)
	require.Len(t, rep.done, 1)
	assert.Equal(t, "Cornell 2022 roster", rep.done[0].Label)
	require.Len(t, rep.failed, 1)
	require.NotNil(t, rep.complete)

	assert.Equal(t, []store.TableKey{{Kind: store.KindRoster, Season: 2022, SchoolID: 167}}, sink.keys)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackfillEntities.WithLabelValues("rosters")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackfillFailures.WithLabelValues("rosters")))
}

func TestRunnerTeamStatsDefaultsToAllCategories(t *testing.T) {
	scraper := newFakeScraper()
	runner := NewRunner(scraper, nil, nil)

	entities := runner.Entities(JobSpec{Type: JobTypeTeamStats, Seasons: []int{2022}, Schools: []int{167}})
	require.Len(t, entities, 3)
	for i, cat := range schema.Categories {
		assert.Equal(t, "Cornell 2022 "+string(cat), entities[i].Label)
		assert.Equal(t, string(cat), entities[i].Key.Category)
		assert.Equal(t, store.KindTeamStats, entities[i].Key.Kind)
	}
}

func TestRunnerAllDivisions(t *testing.T) {
	runner := NewRunner(newFakeScraper(), nil, nil)
	entities := runner.Entities(JobSpec{Type: JobTypeTeamResults, Seasons: []int{2022}})
	require.Len(t, entities, 3)
	assert.Equal(t, "Ithaca 2022 results", entities[2].Label)
}

func TestRunnerUnknownSchoolIsAnEntityFailure(t *testing.T) {
	runner := NewRunner(newFakeScraper(), nil, nil)
	entities := runner.Entities(JobSpec{Type: JobTypeTeamResults, Seasons: []int{2022}, Schools: []int{999}})
	require.Len(t, entities, 1)
	assert.Equal(t, "school 999 2022 results", entities[0].Label)
	assert.Equal(t, 999, entities[0].Key.SchoolID)
}

func TestRunnerPlayerGameLogs(t *testing.T) {
	scraper := newFakeScraper()
	runner := NewRunner(scraper, nil, nil)

	summary, err := runner.Run(context.Background(), JobSpec{
		Type: JobTypePlayerGameLogs, Seasons: []int{2022}, Schools: []int{167},
		Categories: []schema.Category{schema.Batting},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Entities)
	assert.Equal(t, []string{"gamelogs player 2486499 season 2022 batting"}, scraper.calls)
}

func TestRunnerPlayerKeysCarrySubject(t *testing.T) {
	runner := NewRunner(newFakeScraper(), nil, nil)
	entities := runner.Entities(JobSpec{Type: JobTypePlayerGameLogs, Seasons: []int{2022}, Divisions: []int{1}})
	require.Len(t, entities, 6)
	assert.Equal(t, int64(2306356), entities[0].Key.Subject)
	assert.Equal(t, 275, entities[0].Key.SchoolID)
	assert.Equal(t, "Nathan Blumenfeld (2306356) 2022 batting", entities[0].Label)
}

func TestRunnerDryRunFetchesNothing(t *testing.T) {
	scraper := newFakeScraper()
	rep := &recordingReporter{}
	summary, err := NewRunner(scraper, nil, nil).Run(context.Background(), JobSpec{
		Type: JobTypeRosters, Seasons: []int{2022}, DryRun: true,
	}, rep)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Entities)
	assert.Empty(t, scraper.calls)
	assert.NotNil(t, rep.complete)
}

func TestRunnerSaveOff(t *testing.T) {
	sink := &memorySink{}
	_, err := NewRunner(newFakeScraper(), nil, nil, sink).Run(context.Background(), JobSpec{
		Type: JobTypeRosters, Seasons: []int{2022}, Schools: []int{167},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, sink.keys)
}

func TestRunnerSinkErrorIsAFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	summary, err := NewRunner(newFakeScraper(), nil, nil, sink).Run(context.Background(), JobSpec{
		Type: JobTypeRosters, Seasons: []int{2022}, Schools: []int{167}, Save: true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0], "saving: disk full")
	assert.Equal(t, 0, summary.Rows)
}

func TestRunnerStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := &recordingReporter{}
	summary, err := NewRunner(newFakeScraper(), nil, nil).Run(ctx, JobSpec{
		Type: JobTypeRosters, Seasons: []int{2022},
	}, rep)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Entities)
	assert.Len(t, rep.errs, 1)
	assert.Nil(t, rep.complete)
}

func TestRunnerRejectsInvalidSpec(t *testing.T) {
	rep := &recordingReporter{}
	_, err := NewRunner(newFakeScraper(), nil, nil).Run(context.Background(), JobSpec{Type: JobTypeRosters}, rep)
	assert.Error(t, err)
	assert.Len(t, rep.errs, 1)
}

func TestRequestSpec(t *testing.T) {
	no := false
	tests := []struct {
		name    string
		req     Request
		want    JobSpec
		wantErr bool
	}{
		{
			name: "defaults save",
			req:  Request{Type: "rosters", Seasons: []int{2022}},
			want: JobSpec{Type: JobTypeRosters, Seasons: []int{2022}, Save: true},
		},
		{
			name: "explicit fields",
			req:  Request{Type: "team_stats", Seasons: []int{2021, 2022}, Divisions: []int{2}, Categories: []string{"pitching"}, Save: &no},
			want: JobSpec{Type: JobTypeTeamStats, Seasons: []int{2021, 2022}, Divisions: []int{2}, Categories: []schema.Category{schema.Pitching}},
		},
		{name: "unknown type", req: Request{Type: "season", Seasons: []int{2022}}, wantErr: true},
		{name: "no seasons", req: Request{Type: "rosters"}, wantErr: true},
		{name: "bad category", req: Request{Type: "team_stats", Seasons: []int{2022}, Categories: []string{"hitting"}}, wantErr: true},
		{name: "bad division", req: Request{Type: "rosters", Seasons: []int{2022}, Divisions: []int{4}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Spec()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobRoundTripsSpec(t *testing.T) {
	spec := JobSpec{
		Type:       JobTypeTeamStats,
		Seasons:    []int{2022},
		Divisions:  []int{1, 2},
		Categories: []schema.Category{schema.Batting, schema.Fielding},
		Schools:    []int{167},
		Save:       true,
	}
	job := NewJob(spec)
	_, err := uuid.Parse(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)

	got, err := job.Spec()
	require.NoError(t, err)
	assert.Equal(t, spec, got)
}

type recordingPublisher struct{ events []publisher.Event }

func (p *recordingPublisher) Publish(_ context.Context, ev publisher.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func TestPublisherReporter(t *testing.T) {
	pub := &recordingPublisher{}
	rep := &PublisherReporter{Publisher: pub, JobID: "job-1"}
	e := Entity{Label: "Cornell 2022 roster", Key: store.TableKey{Kind: store.KindRoster, Season: 2022, SchoolID: 167}}

	rep.OnJobStart(JobSpec{Type: JobTypeRosters, Seasons: []int{2022}}, 2)
	rep.OnEntityDone(e, 30, 0, 2)
	rep.OnEntityFailed(e, ncaa.ErrBlocked, 1, 2)
	rep.OnJobComplete(Summary{Entities: 2, Rows: 30, Failures: []string{"x"}})

	require.Len(t, pub.events, 4)
	types := make([]string, len(pub.events))
	for i, ev := range pub.events {
		types[i] = ev.Type
		assert.Equal(t, "job-1", ev.JobID)
	}
	assert.Equal(t, []string{
		publisher.EventJobStarted, publisher.EventTableReady, publisher.EventJobFailure, publisher.EventJobCompleted,
	}, types)
	assert.Equal(t, 1, pub.events[1].Current)
	assert.Equal(t, map[string]any{"key": e.Key, "rows": 30}, pub.events[1].Payload)
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "team_stats_batting", exportName(store.TableKey{Kind: store.KindTeamStats, Category: "batting"}))
	assert.Equal(t, "player_game_log_pitching_2486499", exportName(store.TableKey{Kind: store.KindPlayerGameLog, Category: "pitching", Subject: 2486499}))
}

func TestCompletionMessage(t *testing.T) {
	assert.Equal(t, "Job completed: 3 entities, 90 rows", completionMessage(Summary{Entities: 3, Rows: 90}))
	assert.Equal(t, "Job completed with 1 failures: 3 entities, 60 rows",
		completionMessage(Summary{Entities: 3, Rows: 60, Failures: []string{"a"}}))
}
