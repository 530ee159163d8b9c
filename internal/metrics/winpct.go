package metrics

import (
	"math"

	"github.com/fortuna/collegebaseball/internal/decode"
	"github.com/fortuna/collegebaseball/internal/normalize"
)

// Game is one result from a team's perspective.
type Game struct {
	RunsScored  int64
	RunsAllowed int64
}

// RunDifference is scored minus allowed.
func (g Game) RunDifference() int64 { return g.RunsScored - g.RunsAllowed }

// GamesFromTable reads runs_scored and runs_allowed from a results table.
// Cancelled games and rows without a score were never played and are skipped.
func GamesFromTable(t *normalize.Table) []Game {
	games := make([]Game, 0, t.Len())
	for _, r := range t.Records {
		if !played(r) {
			continue
		}
		games = append(games, Game{RunsScored: r.Int("runs_scored"), RunsAllowed: r.Int("runs_allowed")})
	}
	return games
}

func played(r normalize.Record) bool {
	if r.Text("result") == decode.ResultCancelled {
		return false
	}
	for _, col := range []string{"runs_scored", "runs_allowed"} {
		switch r[col].(type) {
		case int64, float64:
		default:
			return false
		}
	}
	return true
}

// ActualWinPct is wins over decisions, with ties counting toward neither.
func ActualWinPct(games []Game) (pct float64, wins, ties, losses int) {
	for _, g := range games {
		switch d := g.RunDifference(); {
		case d > 0:
			wins++
		case d < 0:
			losses++
		default:
			ties++
		}
	}
	return ratio(float64(wins), float64(wins+losses)), wins, ties, losses
}

// PythagenPatWinPct is the expected winning percentage R^x/(R^x + RA^x)
// with x = RPG^0.287. It also returns the total run difference.
func PythagenPatWinPct(games []Game) (float64, int64) {
	if len(games) == 0 {
		return 0, 0
	}
	var scored, allowed int64
	for _, g := range games {
		scored += g.RunsScored
		allowed += g.RunsAllowed
	}
	x := math.Pow(float64(scored)/float64(len(games)), 0.287)
	rx := math.Pow(float64(scored), x)
	pct := rx / (rx + math.Pow(float64(allowed), x))
	return ratio(pct, 1), scored - allowed
}
