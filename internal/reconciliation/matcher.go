package reconciliation

import (
	"strings"
	"time"
	"unicode"

	"github.com/fortuna/collegebaseball/internal/decode"
	"github.com/fortuna/collegebaseball/internal/ingest/boydsworld"
	"github.com/fortuna/collegebaseball/internal/normalize"
)

// Game is a result from either source, seen from the school's side.
type Game struct {
	Date        time.Time `json:"date"`
	Opponent    string    `json:"opponent"`
	RunsScored  int       `json:"runs_scored"`
	RunsAllowed int       `json:"runs_allowed"`
	GameID      int64     `json:"game_id,omitempty"`
}

func (g Game) sameScore(o Game) bool {
	return g.RunsScored == o.RunsScored && g.RunsAllowed == o.RunsAllowed
}

// FromResults reads a team results table. Cancelled games and ties are
// left out because the other source never lists them.
func FromResults(t *normalize.Table) []Game {
	var out []Game
	for _, r := range t.Records {
		if r.Text("result") == decode.ResultCancelled || r.Text("result") == decode.ResultTie {
			continue
		}
		date, err := time.Parse("01/02/2006", r.Text("date"))
		if err != nil {
			continue
		}
		out = append(out, Game{
			Date:        date,
			Opponent:    r.Text("opponent_name"),
			RunsScored:  int(r.Int("runs_scored")),
			RunsAllowed: int(r.Int("runs_allowed")),
			GameID:      r.Int("game_id"),
		})
	}
	return out
}

// FromBoydsworld converts boydsworld results.
func FromBoydsworld(games []boydsworld.Game) []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		out = append(out, Game{Date: g.Date, Opponent: g.Opponent, RunsScored: g.RunsScored, RunsAllowed: g.RunsAllowed})
	}
	return out
}

// Matcher pairs games from the two sources. Games pair only on the same
// day; within a day an identical score wins, then a matching opponent.
type Matcher struct {
	aliases map[string]string
}

// NewMatcher builds a matcher. aliases maps a boydsworld spelling to the
// site's, e.g. "Miami, Florida" to "Miami (FL)".
func NewMatcher(aliases map[string]string) *Matcher {
	m := &Matcher{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		m.aliases[normalizeTeamName(from)] = normalizeTeamName(to)
	}
	return m
}

// Pair is one matched or unmatched game. Exactly one side may be nil.
type Pair struct {
	NCAA       *Game
	Boydsworld *Game
}

// Match pairs every game. Pairs follow the order of ncaaGames, with
// unmatched boydsworld games appended in their own order.
func (m *Matcher) Match(ncaaGames, bdGames []Game) []Pair {
	used := make([]bool, len(bdGames))
	byDay := make(map[string][]int)
	for i, g := range bdGames {
		k := dayKey(g.Date)
		byDay[k] = append(byDay[k], i)
	}

	pairs := make([]Pair, len(ncaaGames))
	for i := range ncaaGames {
		pairs[i].NCAA = &ncaaGames[i]
	}

	// exact score first so doubleheaders pair correctly
	for i, g := range ncaaGames {
		for _, j := range byDay[dayKey(g.Date)] {
			if !used[j] && g.sameScore(bdGames[j]) && m.sameTeam(g.Opponent, bdGames[j].Opponent) {
				used[j] = true
				pairs[i].Boydsworld = &bdGames[j]
				break
			}
		}
	}
	for i, g := range ncaaGames {
		if pairs[i].Boydsworld != nil {
			continue
		}
		for _, j := range byDay[dayKey(g.Date)] {
			if !used[j] && (g.sameScore(bdGames[j]) || m.sameTeam(g.Opponent, bdGames[j].Opponent)) {
				used[j] = true
				pairs[i].Boydsworld = &bdGames[j]
				break
			}
		}
	}

	for j := range bdGames {
		if !used[j] {
			pairs = append(pairs, Pair{Boydsworld: &bdGames[j]})
		}
	}
	return pairs
}

func (m *Matcher) sameTeam(ncaaName, bdName string) bool {
	a, b := normalizeTeamName(ncaaName), normalizeTeamName(bdName)
	if alias, ok := m.aliases[b]; ok {
		b = alias
	}
	if a == b {
		return true
	}
	return a != "" && b != "" && (strings.HasPrefix(a, b) || strings.HasPrefix(b, a))
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

// normalizeTeamName lower-cases a name, keeps letters and digits and
// spells out the usual abbreviations.
func normalizeTeamName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		switch f {
		case "st":
			fields[i] = "state"
		case "u", "univ":
			fields[i] = "university"
		}
	}
	return strings.Join(fields, " ")
}
