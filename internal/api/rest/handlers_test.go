package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/backfill"
	"github.com/fortuna/collegebaseball/internal/ingest/boydsworld"
	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
)

func testBundle() *reference.Bundle {
	return reference.New(reference.Tables{
		Seasons: []reference.Season{{Season: 2022, SeasonID: 15860, BattingID: 15687, PitchingID: 15688, FieldingID: 15689}},
		Schools: []reference.School{
			{SchoolID: 167, NCAAName: "Cornell", Division: 1},
			{SchoolID: 30024, NCAAName: "Ithaca", Division: 3},
		},
		Players: []reference.Player{{Name: "Jake Gelof", School: "Cornell", StatsPlayerSeq: 2486499}},
	})
}

type fakeScraper struct {
	bundle   *reference.Bundle
	err      error
	calls    int
	seasons  []int
	category schema.Category
	opts     ncaa.StatsOptions
	player   reference.PlayerRef
	seq      int64
}

func (f *fakeScraper) Bundle() *reference.Bundle { return f.bundle }

func (f *fakeScraper) table(school reference.SchoolRef, t *normalize.Table) (*normalize.Table, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if !school.IsZero() {
		if _, err := f.bundle.School(school); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func statsTable() *normalize.Table {
	return &normalize.Table{
		Columns: []string{"name", "AB", "school_id", "season"},
		Records: []normalize.Record{{"name": "Jake Gelof", "AB": int64(200), "school_id": int64(167), "season": int64(2022)}},
	}
}

func resultsTable() *normalize.Table {
	return &normalize.Table{
		Columns: []string{"date", "opponent_name", "runs_scored", "runs_allowed", "result", "game_id"},
		Records: []normalize.Record{
			{"date": "03/04/2022", "opponent_name": "Harvard", "runs_scored": int64(7), "runs_allowed": int64(3), "result": "win", "game_id": int64(1)},
			{"date": "03/05/2022", "opponent_name": "Yale", "runs_scored": int64(4), "runs_allowed": int64(10), "result": "loss", "game_id": int64(2)},
			{"date": "03/06/2022", "opponent_name": "Brown", "runs_scored": int64(6), "runs_allowed": int64(2), "result": "win", "game_id": int64(3)},
		},
	}
}

func rosterTable() *normalize.Table {
	return &normalize.Table{
		Columns: []string{"name", "position"},
		Records: []normalize.Record{
			{"name": "Jake Gelof", "position": "3B"},
			{"name": "Nathan Blumenfeld", "position": "P"},
			{"name": "Luis Ortiz", "position": "LF/P"},
			{"name": "Sam Hale", "position": "C"},
		},
	}
}

func (f *fakeScraper) TeamStats(_ context.Context, school reference.SchoolRef, _ reference.SeasonRef, c schema.Category, opts ncaa.StatsOptions) (*normalize.Table, error) {
	f.category, f.opts = c, opts
	return f.table(school, statsTable())
}

func (f *fakeScraper) TeamTotals(_ context.Context, school reference.SchoolRef, _ reference.SeasonRef, c schema.Category, opts ncaa.StatsOptions) (*normalize.Table, error) {
	f.category, f.opts = c, opts
	return f.table(school, statsTable())
}

func (f *fakeScraper) TeamGameLogs(_ context.Context, school reference.SchoolRef, _ reference.SeasonRef, c schema.Category) (*normalize.Table, error) {
	f.category = c
	return f.table(school, resultsTable())
}

func (f *fakeScraper) TeamResults(_ context.Context, school reference.SchoolRef, _ reference.SeasonRef) (*normalize.Table, error) {
	return f.table(school, resultsTable())
}

func (f *fakeScraper) TeamSeasonRoster(_ context.Context, school reference.SchoolRef, _ reference.SeasonRef) (*normalize.Table, error) {
	f.seasons = nil
	return f.table(school, rosterTable())
}

func (f *fakeScraper) TeamRoster(_ context.Context, school reference.SchoolRef, seasons []int) (*normalize.Table, error) {
	f.seasons = seasons
	return f.table(school, rosterTable())
}

func (f *fakeScraper) PlayerGameLogs(_ context.Context, player reference.PlayerRef, _ reference.SeasonRef, c schema.Category) (*normalize.Table, error) {
	f.player, f.category = player, c
	return f.table(reference.SchoolRef{}, statsTable())
}

func (f *fakeScraper) CareerStats(_ context.Context, seq int64, c schema.Category) (*normalize.Table, error) {
	f.seq, f.category = seq, c
	return f.table(reference.SchoolRef{}, statsTable())
}

type memoryCache struct {
	data map[string][]byte
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

type pinger struct{ err error }

func (p pinger) HealthCheck(context.Context) error { return p.err }

type fakeResults struct {
	games       []boydsworld.Game
	first, last int
}

func (f *fakeResults) Games(_ context.Context, _ reference.SchoolRef, first, last int) ([]boydsworld.Game, error) {
	f.first, f.last = first, last
	return f.games, nil
}

type fakeArchive struct {
	key store.TableKey
}

func (a *fakeArchive) LoadTable(_ context.Context, key store.TableKey) (*store.StoredTable, error) {
	a.key = key
	if key.Kind != store.KindTeamStats {
		return nil, store.ErrNotFound
	}
	return &store.StoredTable{Key: key, Table: statsTable()}, nil
}

func (a *fakeArchive) ListKeys(context.Context, int, int) ([]store.TableKey, error) {
	return nil, nil
}

func (a *fakeArchive) ListRoster(_ context.Context, schoolID, season int) ([]store.RosterRow, error) {
	return []store.RosterRow{{SchoolID: schoolID, Season: season, Name: "Jake Gelof"}}, nil
}

func (a *fakeArchive) ListResults(context.Context, int, int) ([]store.ResultRow, error) {
	return nil, nil
}

type fakeBackfill struct {
	req backfill.Request
}

func (b *fakeBackfill) Enqueue(_ context.Context, req backfill.Request) (*backfill.Job, error) {
	b.req = req
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}
	return backfill.NewJob(spec), nil
}

func (b *fakeBackfill) GetStatus(context.Context) (*backfill.StatusSummary, error) {
	return &backfill.StatusSummary{}, nil
}

func (b *fakeBackfill) GetJob(_ context.Context, id string) (*backfill.Job, error) {
	return nil, store.ErrNotFound
}

type fixture struct {
	scraper *fakeScraper
	cache   *memoryCache
	results *fakeResults
	archive *fakeArchive
	fill    *fakeBackfill
	deps    Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := schema.Default()
	require.NoError(t, err)

	f := &fixture{
		scraper: &fakeScraper{bundle: testBundle()},
		cache:   &memoryCache{data: map[string][]byte{}},
		results: &fakeResults{},
		archive: &fakeArchive{},
		fill:    &fakeBackfill{},
	}
	f.deps = Deps{
		Scraper:  f.scraper,
		Registry: registry,
		Results:  f.results,
		Archive:  f.archive,
		Backfill: f.fill,
		Cache:    f.cache,
		Health:   map[string]HealthChecker{"postgres": pinger{}},
		Metrics:  monitoring.NewMetrics(),
	}
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(f.deps).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.deps.Health["redis"] = pinger{err: errors.New("connection refused")}
	rec = f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, "GET", "/api/v1/seasons", nil)
	rec := f.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/seasons")
}

func TestReferenceRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/v1/schools?division=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schools []reference.School
	decodeBody(t, rec, &schools)
	require.Len(t, schools, 1)
	assert.Equal(t, "Ithaca", schools[0].NCAAName)

	rec = f.do(t, "GET", "/api/v1/schools/cornell", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/api/v1/schools/Nowhere%20State", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "GET", "/api/v1/schools?division=one", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "GET", "/api/v1/splits?season=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var splits struct {
		Splits []string `json:"splits"`
	}
	decodeBody(t, rec, &splits)
	assert.Contains(t, splits.Splits, "with_RISP")
}

func TestTeamStatsIsCached(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/v1/teams/167/stats?season=2022&category=pitching&split=vs_LH&advanced=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schema.Pitching, f.scraper.category)
	assert.Equal(t, ncaa.StatsOptions{Advanced: true, Split: "vs_LH"}, f.scraper.opts)

	var tbl normalize.Table
	decodeBody(t, rec, &tbl)
	assert.Equal(t, statsTable(), &tbl)

	rec = f.do(t, "GET", "/api/v1/teams/167/stats?season=2022&category=pitching&split=vs_LH&advanced=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.scraper.calls)
	assert.Len(t, f.cache.data, 1)
}

func TestTeamRouteErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"missing season", "/api/v1/teams/167/stats", nil, http.StatusBadRequest},
		{"bad category", "/api/v1/teams/167/stats?season=2022&category=hitting", nil, http.StatusBadRequest},
		{"bad advanced", "/api/v1/teams/167/totals?season=2022&advanced=maybe", nil, http.StatusBadRequest},
		{"unknown school", "/api/v1/teams/999/results?season=2022", nil, http.StatusNotFound},
		{"blocked", "/api/v1/teams/167/gamelogs?season=2022", ncaa.ErrBlocked, http.StatusBadGateway},
		{"upstream 500", "/api/v1/teams/167/results?season=2022", &ncaa.StatusError{URL: "x", StatusCode: 500}, http.StatusBadGateway},
		{"unknown split", "/api/v1/teams/167/stats?season=2022&split=x", &schema.SplitNotFoundError{Season: 2022, Split: "x"}, http.StatusNotFound},
		{"timeout", "/api/v1/teams/167/results?season=2022", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", "/api/v1/teams/167/results?season=2022", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.scraper.err = tt.err
			rec := f.do(t, "GET", tt.path, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestTeamRosterSummary(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/v1/teams/Cornell/roster?season=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.scraper.seasons)

	var body struct {
		Summary RosterSummary `json:"summary"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, 4, body.Summary.Players)
	assert.Equal(t, 2, body.Summary.Pitchers)
	assert.Equal(t, map[string]int{"INF": 1, "P": 2, "C": 1}, body.Summary.PositionGroups)

	rec = f.do(t, "GET", "/api/v1/teams/Cornell/roster?season=2021,2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2021, 2022}, f.scraper.seasons)

	rec = f.do(t, "GET", "/api/v1/teams/Cornell/roster?season=2021,x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWinPct(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/v1/teams/cornell/winpct?season=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got WinPct
	decodeBody(t, rec, &got)
	assert.Equal(t, 167, got.SchoolID)
	assert.Equal(t, 2, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.Equal(t, 0.667, got.WinPct)
	assert.Equal(t, int64(2), got.RunDifference)
	assert.InDelta(t, 0.5, got.PythagenPat, 0.1)
}

func TestPlayerRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/v1/players/2486499/gamelogs?season=2022&category=fielding", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reference.ByPlayerSeq(2486499), f.scraper.player)
	assert.Equal(t, schema.Fielding, f.scraper.category)

	rec = f.do(t, "GET", "/api/v1/players/Jake%20Gelof/gamelogs?season=2022&school=167", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reference.ByPlayerName("Jake Gelof", reference.ByID(167)), f.scraper.player)

	rec = f.do(t, "GET", "/api/v1/players/Jake%20Gelof/gamelogs?season=2022", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "GET", "/api/v1/players/Jake%20Gelof/career?school=Cornell", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2486499), f.scraper.seq)

	rec = f.do(t, "GET", "/api/v1/players/Nobody/career?school=Cornell", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconciliationRoute(t *testing.T) {
	f := newFixture(t)
	day := func(d int) time.Time { return time.Date(2022, 3, d, 0, 0, 0, 0, time.UTC) }
	f.results.games = []boydsworld.Game{
		{Date: day(4), Opponent: "Harvard", RunsScored: 7, RunsAllowed: 3},
		{Date: day(5), Opponent: "Yale", RunsScored: 4, RunsAllowed: 9},
		{Date: day(9), Opponent: "Penn", RunsScored: 1, RunsAllowed: 0},
	}

	rec := f.do(t, "GET", "/api/v1/teams/167/reconcile?season=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2022, f.results.first)
	assert.Equal(t, 2022, f.results.last)

	var report struct {
		Agreements     int `json:"agreements"`
		Conflicts      int `json:"conflicts"`
		NCAAOnly       int `json:"ncaa_only"`
		BoydsworldOnly int `json:"boydsworld_only"`
	}
	decodeBody(t, rec, &report)
	assert.Equal(t, 1, report.Agreements)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 1, report.NCAAOnly)
	assert.Equal(t, 1, report.BoydsworldOnly)
}

func TestBoydsworldRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/v1/teams/167/boydsworld?first=2020&last=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2020, f.results.first)
	assert.Equal(t, 2022, f.results.last)

	rec = f.do(t, "GET", "/api/v1/teams/167/boydsworld?first=2022&last=2020", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.deps.Results = nil
	rec = f.do(t, "GET", "/api/v1/teams/167/boydsworld?first=2022", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoredRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/v1/stored/teams/cornell/tables/team_stats?season=2022&category=batting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.TableKey{Kind: store.KindTeamStats, Category: "batting", Season: 2022, SchoolID: 167}, f.archive.key)

	rec = f.do(t, "GET", "/api/v1/stored/teams/cornell/tables/player_game_log?season=2022&subject=2486499", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int64(2486499), f.archive.key.Subject)

	rec = f.do(t, "GET", "/api/v1/stored/teams/cornell/roster?season=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []store.RosterRow
	decodeBody(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, 167, rows[0].SchoolID)

	rec = f.do(t, "GET", "/api/v1/stored/teams/cornell/results?season=2022", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	f.deps.Archive = nil
	rec = f.do(t, "GET", "/api/v1/stored/teams/cornell/tables?season=2022", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBackfillRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/v1/backfill", []byte(`{"type":"team_results","seasons":[2022],"divisions":[1]}`))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "team_results", f.fill.req.Type)

	var body struct {
		Job map[string]interface{} `json:"job"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "queued", body.Job["status"])
	assert.Equal(t, true, body.Job["save"])

	rec = f.do(t, "POST", "/api/v1/backfill", []byte(`{"type":"season","seasons":[2022]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/v1/backfill", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "GET", "/api/v1/backfill/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	decodeBody(t, rec, &status)
	assert.Equal(t, "idle", status["status"])

	rec = f.do(t, "GET", "/api/v1/backfill/jobs/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.deps.Backfill = nil
	rec = f.do(t, "GET", "/api/v1/backfill/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/v1/seasons", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
