package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/collegebaseball/internal/normalize"
)

func TestRosterRows(t *testing.T) {
	tbl := &normalize.Table{
		Columns: []string{"jersey", "stats_player_seq", "name", "position", "class_year", "games_played", "games_started", "season", "season_id", "school", "school_id"},
		Records: []normalize.Record{{
			"jersey": int64(2), "stats_player_seq": int64(2486499), "name": "Jake Gelof", "position": "INF",
			"class_year": "Jr", "games_played": int64(58), "games_started": int64(58),
			"season": int64(2022), "season_id": int64(15860), "school": "Virginia", "school_id": int64(746),
		}, {
			"jersey": normalize.Missing, "stats_player_seq": int64(7), "name": normalize.Missing,
			"season": int64(2022), "school_id": int64(746),
		}},
	}
	rows := RosterRows(tbl)
	require.Len(t, rows, 2)
	assert.Equal(t, RosterRow{
		Season: 2022, SchoolID: 746, StatsPlayerSeq: 2486499, SeasonID: 15860, School: "Virginia",
		Name: "Jake Gelof", Jersey: 2, Position: "INF", ClassYear: "Jr", GamesPlayed: 58, GamesStarted: 58,
	}, rows[0])
	assert.Equal(t, "", rows[1].Name)
	assert.Equal(t, 0, rows[1].Jersey)
}

func TestResultRowsRoundTrip(t *testing.T) {
	in := []ResultRow{{
		SchoolID: 167, Season: 2022, Date: "03/05/2022", OpponentName: "Yale", GameID: 2143900,
		SeasonID: 15860, Field: "neutral", OpponentID: 531300, InningsPlayed: 11, Extras: true,
		RunsScored: 4, RunsAllowed: 10, RunDifference: -6, Result: "loss",
	}}
	assert.Equal(t, in, ResultRows(ResultTable(in)))
}

func TestMigrationsAreOrdered(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.True(t, strings.HasPrefix(names[0], "migrations/001_"))
	assert.IsIncreasing(t, names)
}
