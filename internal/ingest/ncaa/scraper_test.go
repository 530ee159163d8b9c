package ncaa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/metrics"
	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
)

const testBase = "https://stats.test"

// fixtureFetcher serves testdata files by URL. Unknown URLs answer 404.
type fixtureFetcher struct {
	files   map[string]string
	fetched []string
}

func (f *fixtureFetcher) Fetch(_ context.Context, pageURL string) ([]byte, error) {
	f.fetched = append(f.fetched, pageURL)
	name, ok := f.files[pageURL]
	if !ok {
		return nil, &StatusError{URL: pageURL, StatusCode: 404}
	}
	return os.ReadFile(filepath.Join("testdata", name))
}

func testBundle() *reference.Bundle {
	return reference.New(reference.Tables{
		Seasons: []reference.Season{
			{Season: 2021, SeasonID: 15580, BattingID: 15080, PitchingID: 15081, FieldingID: 15082},
			{Season: 2022, SeasonID: 15860, BattingID: 15687, PitchingID: 15688, FieldingID: 15689},
		},
		Schools: []reference.School{{SchoolID: 167, NCAAName: "Cornell", Division: 1}},
		Rosters: []reference.RosterEntry{
			{StatsPlayerSeq: 2486499, Season: 2022, Name: "Jake Gelof", School: "Cornell", SchoolID: 167, Division: 1},
		},
		PlayersHistory: []reference.PlayerHistory{{StatsPlayerSeq: 2486499, DebutSeason: 2021, SeasonLast: 2022}},
		LinearWeights: []reference.LinearWeights{{
			Season: 2022, Division: 1, WOBA: 0.355, WOBAScale: 1.18,
			WBB: 0.71, WHBP: 0.74, W1B: 0.9, W2B: 1.28, W3B: 1.63, WHR: 2.08, RPerPA: 0.145, CFIP: 3.6,
		}},
	})
}

func newTestScraper(t *testing.T, files map[string]string) (*Scraper, *fixtureFetcher, *monitoring.Metrics) {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	f := &fixtureFetcher{files: files}
	m := monitoring.NewMetrics()
	return NewScraper(testBundle(), reg, f, testBase, nil, m), f, m
}

var (
	battingStatsURL = TeamStatsURL(testBase, 167, 15860, 15687, 0)
	teamLogURL      = GameByGameURL(testBase, 15860, 167, TeamGameLogSeq, 15687)
)

func TestTeamStats(t *testing.T) {
	s, f, _ := newTestScraper(t, map[string]string{battingStatsURL: "team_stats_batting.html"})

	tbl, err := s.TeamStats(context.Background(), reference.ByName("Cornell"), reference.BySeason(2022), schema.Batting, StatsOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{battingStatsURL}, f.fetched)
	require.Equal(t, 2, tbl.Len(), "rows come from the last grid and keep players without a plate appearance")

	gelof := tbl.Records[0]
	assert.Equal(t, int64(2486499), gelof["stats_player_seq"])
	assert.Equal(t, "Jake Gelof", gelof["name"])
	assert.Equal(t, "3B", gelof["pos"])
	assert.Equal(t, int64(200), gelof["AB"])
	assert.Equal(t, int64(167), gelof["school_id"])
	assert.Equal(t, int64(2022), gelof["season"])
	for _, c := range normalize.Untrusted {
		assert.False(t, tbl.HasColumn(c), c)
	}
	assert.False(t, tbl.HasColumn("OBP"))

	assert.Equal(t, "Nathan Blumenfeld", tbl.Records[1]["name"])
	assert.Equal(t, int64(0), tbl.Records[1]["GS"])
}

func TestTeamStatsAdvanced(t *testing.T) {
	s, _, _ := newTestScraper(t, map[string]string{battingStatsURL: "team_stats_batting.html"})

	tbl, err := s.TeamStats(context.Background(), reference.ByID(167), reference.BySeasonID(15860), schema.Batting, StatsOptions{Advanced: true})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len(), "rows without a plate appearance are dropped")
	for _, c := range metrics.BattingColumns {
		assert.True(t, tbl.HasColumn(c), c)
	}

	r := tbl.Records[0]
	assert.Equal(t, int64(224), r["PA"])
	assert.Equal(t, int64(39), r["1B"])
	assert.Equal(t, 0.379, r["OBP"])
	assert.Equal(t, 0.3, r["BA"])
	assert.Equal(t, 0.49, r["SLG"])
	assert.NotZero(t, r["wOBA"])
}

func TestTeamStatsUnknownSplit(t *testing.T) {
	s, f, _ := newTestScraper(t, nil)

	_, err := s.TeamStats(context.Background(), reference.ByID(167), reference.BySeason(2022), schema.Batting, StatsOptions{Split: "vs_aliens"})
	var nf *schema.SplitNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Empty(t, f.fetched)
}

func TestTeamStatsUnknownSchool(t *testing.T) {
	s, _, _ := newTestScraper(t, nil)

	_, err := s.TeamStats(context.Background(), reference.ByName("Hogwarts"), reference.BySeason(2022), schema.Batting, StatsOptions{})
	var nf *reference.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "school", nf.Kind)
}

func TestTeamStatsFetchError(t *testing.T) {
	s, _, _ := newTestScraper(t, nil)

	_, err := s.TeamStats(context.Background(), reference.ByID(167), reference.BySeason(2022), schema.Batting, StatsOptions{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "Cornell 2022 batting")
}

func TestTeamTotals(t *testing.T) {
	s, _, _ := newTestScraper(t, map[string]string{battingStatsURL: "team_stats_batting.html"})

	tbl, err := s.TeamTotals(context.Background(), reference.ByID(167), reference.BySeason(2022), schema.Batting, StatsOptions{Advanced: true})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	assert.Equal(t, "label", tbl.Columns[0])
	for _, c := range append([]string{"name", "stats_player_seq"}, TotalsDropped...) {
		assert.False(t, tbl.HasColumn(c), c)
	}
	assert.Equal(t, "Totals", tbl.Records[0]["label"])
	assert.Equal(t, "Opponent Totals", tbl.Records[1]["label"])
	assert.Equal(t, int64(1900), tbl.Records[0]["AB"])
	assert.Equal(t, int64(2177), tbl.Records[0]["PA"])
	assert.Equal(t, int64(167), tbl.Records[1]["school_id"])
}

func TestTeamGameLogsAndResults(t *testing.T) {
	s, _, m := newTestScraper(t, map[string]string{teamLogURL: "game_by_game_team_batting.html"})
	defer func() {
		assert.Equal(t, 8.0, testutil.ToFloat64(m.RowsDecoded.WithLabelValues("team_game_log")), "two decodes of four rows")
	}()

	logs, err := s.TeamGameLogs(context.Background(), reference.ByID(167), reference.BySeason(2022), schema.Batting)
	require.NoError(t, err)
	require.Equal(t, 4, logs.Len())
	assert.Equal(t, int64(33), logs.Records[0]["AB"])
	assert.Equal(t, int64(0), logs.Records[3]["AB"], "cancelled games carry zeroed stats")

	res, err := s.TeamResults(context.Background(), reference.ByID(167), reference.BySeason(2022))
	require.NoError(t, err)
	assert.Equal(t, ResultColumns, res.Columns)
	require.Equal(t, 4, res.Len())

	tests := []struct {
		opponent string
		field    string
		innings  int64
		extras   bool
		scored   int64
		allowed  int64
		result   string
	}{
		{"Harvard", "away", 9, false, 7, 3, "win"},
		{"Yale", "neutral", 11, true, 4, 10, "loss"},
		{"Army", "home", 12, true, 5, 5, "tie"},
		{"Navy", "home", 0, false, 0, 0, "cancelled"},
	}
	for i, tt := range tests {
		r := res.Records[i]
		assert.Equal(t, tt.opponent, r["opponent_name"], "row %d", i)
		assert.Equal(t, tt.field, r["field"], "row %d", i)
		assert.Equal(t, tt.innings, r["innings_played"], "row %d", i)
		assert.Equal(t, tt.extras, r["extras"], "row %d", i)
		assert.Equal(t, tt.scored, r["runs_scored"], "row %d", i)
		assert.Equal(t, tt.allowed, r["runs_allowed"], "row %d", i)
		assert.Equal(t, tt.result, r["result"], "row %d", i)
		assert.Equal(t, int64(2022), r["season"], "row %d", i)
		assert.Equal(t, int64(15860), r["season_id"], "row %d", i)
	}
	assert.Equal(t, int64(2143881), res.Records[0]["game_id"])
	assert.Equal(t, int64(531234), res.Records[0]["opponent_id"])
	assert.Equal(t, int64(0), res.Records[3]["opponent_id"])

	pct, wins, ties, losses := metrics.ActualWinPct(metrics.GamesFromTable(res))
	assert.Equal(t, 0.5, pct)
	assert.Equal(t, []int{1, 2, 1}, []int{wins, ties, losses})
}

func TestPlayerGameLogs(t *testing.T) {
	playerURL := GameByGameURL(testBase, 15860, 167, 2486499, 15687)
	s, _, _ := newTestScraper(t, map[string]string{playerURL: "game_by_game_team_batting.html"})

	tbl, err := s.PlayerGameLogs(context.Background(), reference.ByPlayerSeq(2486499), reference.BySeason(2022), schema.Batting)
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())
	for _, r := range tbl.Records {
		assert.Equal(t, int64(2486499), r["stats_player_seq"])
		assert.Equal(t, int64(167), r["school_id"])
	}

	_, err = s.PlayerGameLogs(context.Background(), reference.ByPlayerSeq(1), reference.BySeason(2022), schema.Batting)
	var nf *reference.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestTeamSeasonRoster(t *testing.T) {
	s, _, m := newTestScraper(t, map[string]string{RosterURL(testBase, 167, 15860): "roster_2022.html"})

	tbl, err := s.TeamSeasonRoster(context.Background(), reference.ByID(167), reference.BySeason(2022))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len(), "players without a link are skipped")

	r := tbl.Records[0]
	assert.Equal(t, int64(2486499), r["stats_player_seq"])
	assert.Equal(t, "Jake Gelof", r["name"])
	assert.Equal(t, "6-1", r["height"])
	assert.Equal(t, int64(2), r["jersey"])
	assert.Equal(t, int64(15860), r["season_id"])
	assert.Equal(t, "Cornell", r["school"])
	assert.Equal(t, int64(167), r["school_id"])
	assert.Equal(t, int64(2022), r["season"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsRejected.WithLabelValues("roster", "no_id")))
}

func TestTeamRosterAcrossSeasons(t *testing.T) {
	s, f, _ := newTestScraper(t, map[string]string{
		RosterURL(testBase, 167, 15860): "roster_2022.html",
		RosterURL(testBase, 167, 15580): "roster_2021.html",
	})

	tbl, err := s.TeamRoster(context.Background(), reference.ByID(167), []int{2022, 2021, 2022, 2020})
	require.NoError(t, err)
	assert.Len(t, f.fetched, 2, "2020 has no reference season and is skipped before fetching")
	require.Equal(t, 4, tbl.Len())
	assert.False(t, tbl.HasColumn("height"))
	assert.Equal(t, int64(2021), tbl.Records[0]["season"])
	assert.Equal(t, "Luis Ortiz", tbl.Records[1]["name"])
	assert.Equal(t, int64(2022), tbl.Records[3]["season"])

	single, err := s.TeamRoster(context.Background(), reference.ByID(167), []int{2022})
	require.NoError(t, err)
	assert.True(t, single.HasColumn("height"))
}

func TestCareerStats(t *testing.T) {
	careerURL := CareerURL(testBase, 15580, 2486499, 15080)
	s, _, _ := newTestScraper(t, map[string]string{careerURL: "career_batting.html"})

	tbl, err := s.CareerStats(context.Background(), 2486499, schema.Batting)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len(), "the career summary row is skipped")

	assert.Equal(t, int64(2020), tbl.Records[0]["season"])
	assert.Equal(t, int64(2021), tbl.Records[1]["season"])
	assert.Equal(t, int64(511234), tbl.Records[0]["school_id"])
	assert.Equal(t, int64(180), tbl.Records[0]["AB"])
	assert.Equal(t, int64(2486499), tbl.Records[1]["stats_player_seq"])
	assert.False(t, tbl.HasColumn("Year"))

	_, err = s.CareerStats(context.Background(), 42, schema.Batting)
	var nf *reference.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
