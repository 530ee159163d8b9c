package store

import (
	"time"

	"github.com/fortuna/collegebaseball/internal/normalize"
)

// Stored table kinds that are not decoder kinds.
const (
	KindRoster        = "roster"
	KindTeamStats     = "team_stats"
	KindTeamResults   = "team_results"
	KindPlayerGameLog = "player_game_log"
)

// TableKey identifies a stored table. Subject is the stats_player_seq for
// player-scoped tables and zero otherwise.
type TableKey struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Season   int    `json:"season"`
	SchoolID int    `json:"school_id"`
	Split    string `json:"split,omitempty"`
	Subject  int64  `json:"subject,omitempty"`
}

// StoredTable is a normalized table with its key.
type StoredTable struct {
	Key       TableKey         `json:"key"`
	Table     *normalize.Table `json:"table"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// RosterRow is one player on one season's roster.
type RosterRow struct {
	Season         int    `json:"season" parquet:"season"`
	SchoolID       int    `json:"school_id" parquet:"school_id"`
	StatsPlayerSeq int64  `json:"stats_player_seq" parquet:"stats_player_seq"`
	SeasonID       int    `json:"season_id" parquet:"season_id"`
	School         string `json:"school" parquet:"school"`
	Name           string `json:"name" parquet:"name,optional"`
	Jersey         int    `json:"jersey" parquet:"jersey"`
	Position       string `json:"position" parquet:"position,optional"`
	Height         string `json:"height,omitempty" parquet:"height,optional"`
	ClassYear      string `json:"class_year" parquet:"class_year,optional"`
	GamesPlayed    int    `json:"games_played" parquet:"games_played"`
	GamesStarted   int    `json:"games_started" parquet:"games_started"`
}

// ResultRow is one game from a team's point of view.
type ResultRow struct {
	SchoolID      int    `json:"school_id" parquet:"school_id"`
	Season        int    `json:"season" parquet:"season"`
	Date          string `json:"date" parquet:"date"`
	OpponentName  string `json:"opponent_name" parquet:"opponent_name"`
	GameID        int64  `json:"game_id" parquet:"game_id"`
	SeasonID      int    `json:"season_id" parquet:"season_id"`
	Field         string `json:"field" parquet:"field"`
	OpponentID    int    `json:"opponent_id" parquet:"opponent_id"`
	InningsPlayed int    `json:"innings_played" parquet:"innings_played"`
	Extras        bool   `json:"extras" parquet:"extras"`
	RunsScored    int    `json:"runs_scored" parquet:"runs_scored"`
	RunsAllowed   int    `json:"runs_allowed" parquet:"runs_allowed"`
	RunDifference int    `json:"run_difference" parquet:"run_difference"`
	Result        string `json:"result" parquet:"result"`
}

// RosterRows reads a roster table.
func RosterRows(t *normalize.Table) []RosterRow {
	out := make([]RosterRow, 0, t.Len())
	for _, r := range t.Records {
		out = append(out, RosterRow{
			Season:         int(r.Int("season")),
			SchoolID:       int(r.Int("school_id")),
			StatsPlayerSeq: r.Int("stats_player_seq"),
			SeasonID:       int(r.Int("season_id")),
			School:         r.Text("school"),
			Name:           r.Text("name"),
			Jersey:         int(r.Int("jersey")),
			Position:       r.Text("position"),
			Height:         r.Text("height"),
			ClassYear:      r.Text("class_year"),
			GamesPlayed:    int(r.Int("games_played")),
			GamesStarted:   int(r.Int("games_started")),
		})
	}
	return out
}

// ResultRows reads a team results table.
func ResultRows(t *normalize.Table) []ResultRow {
	out := make([]ResultRow, 0, t.Len())
	for _, r := range t.Records {
		out = append(out, ResultRow{
			SchoolID:      int(r.Int("school_id")),
			Season:        int(r.Int("season")),
			Date:          r.Text("date"),
			OpponentName:  r.Text("opponent_name"),
			GameID:        r.Int("game_id"),
			SeasonID:      int(r.Int("season_id")),
			Field:         r.Text("field"),
			OpponentID:    int(r.Int("opponent_id")),
			InningsPlayed: int(r.Int("innings_played")),
			Extras:        r.Bool("extras"),
			RunsScored:    int(r.Int("runs_scored")),
			RunsAllowed:   int(r.Int("runs_allowed")),
			RunDifference: int(r.Int("run_difference")),
			Result:        r.Text("result"),
		})
	}
	return out
}

// ResultTable lays stored results back out as a results table.
func ResultTable(rows []ResultRow) *normalize.Table {
	t := &normalize.Table{Columns: []string{
		"game_id", "date", "field", "opponent_name", "opponent_id",
		"innings_played", "extras", "runs_scored", "runs_allowed", "run_difference", "result",
		"school_id", "season_id", "season",
	}}
	for _, r := range rows {
		t.Records = append(t.Records, normalize.Record{
			"game_id":        r.GameID,
			"date":           r.Date,
			"field":          r.Field,
			"opponent_name":  r.OpponentName,
			"opponent_id":    int64(r.OpponentID),
			"innings_played": int64(r.InningsPlayed),
			"extras":         r.Extras,
			"runs_scored":    int64(r.RunsScored),
			"runs_allowed":   int64(r.RunsAllowed),
			"run_difference": int64(r.RunDifference),
			"result":         r.Result,
			"school_id":      int64(r.SchoolID),
			"season_id":      int64(r.SeasonID),
			"season":         int64(r.Season),
		})
	}
	return t
}
