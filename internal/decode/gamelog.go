package decode

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result values carried by a decoded score.
const (
	ResultWin       = "win"
	ResultLoss      = "loss"
	ResultTie       = "tie"
	ResultCancelled = "cancelled"
)

// Venue values carried by a decoded opponent cell.
const (
	FieldHome    = "home"
	FieldAway    = "away"
	FieldNeutral = "neutral"
)

const regulationInnings = 9

// Score is the decoded content of a result cell such as "L 4-10 (11)".
type Score struct {
	RunsScored    int
	RunsAllowed   int
	RunDifference int
	Result        string
	InningsPlayed int
	Extras        bool
}

// ParseScore decodes a result cell. A placeholder means the game never
// happened and yields a cancelled result with zeroed numbers.
func ParseScore(raw string) (Score, error) {
	s := strings.TrimSpace(raw)
	if isPlaceholder(s) {
		return Score{Result: ResultCancelled}, nil
	}
	s = strings.NewReplacer("W", "", "L", "", "T", "").Replace(s)

	sc := Score{InningsPlayed: regulationInnings}
	if open := strings.Index(s, "("); open >= 0 {
		inner := s[open+1:]
		if end := strings.Index(inner, ")"); end >= 0 {
			inner = inner[:end]
		}
		n, err := strconv.Atoi(strings.TrimSpace(inner))
		if err != nil {
			return Score{}, fmt.Errorf("innings in score %q: %w", raw, err)
		}
		sc.InningsPlayed = n
		sc.Extras = n > regulationInnings
		s = s[:open]
	}

	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return Score{}, fmt.Errorf("score %q has no runs separator", raw)
	}
	var err error
	if sc.RunsScored, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return Score{}, fmt.Errorf("runs scored in %q: %w", raw, err)
	}
	if sc.RunsAllowed, err = strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err != nil {
		return Score{}, fmt.Errorf("runs allowed in %q: %w", raw, err)
	}
	sc.RunDifference = sc.RunsScored - sc.RunsAllowed
	switch {
	case sc.RunDifference > 0:
		sc.Result = ResultWin
	case sc.RunDifference < 0:
		sc.Result = ResultLoss
	default:
		sc.Result = ResultTie
	}
	return sc, nil
}

// ParseOpponent splits an opponent cell into name and venue. "@ Yale" is an
// away game, "Yale @ Omaha, NE" a neutral site and a bare name a home game.
// Only the first line of the cell is considered.
func ParseOpponent(raw string) (name, field string) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	switch {
	case s == "":
		return "", ""
	case strings.HasPrefix(s, "@"):
		return strings.TrimSpace(s[strings.LastIndex(s, "@")+1:]), FieldAway
	case strings.Contains(s, "@"):
		return strings.TrimSpace(s[:strings.Index(s, "@")]), FieldNeutral
	}
	return s, FieldHome
}

// GameLogOptions carries the values a game log row needs that are not on
// the row itself.
type GameLogOptions struct {
	SeasonID int
	SchoolID int
	// Identifier is appended to each accepted row: the school_id for team
	// logs, the stats_player_seq for player logs.
	Identifier string
}

// GameLogSelector is the game-by-game table: the fourth table on the page,
// rows without an id attribute, past three header rows. Purely positional.
var GameLogSelector = Selector{Index: 3, Rows: "tr:not([id])", SkipRows: 3}

// DecodeGameLog decodes a game-by-game table. Stat cells come from
// data-order attributes; the date, opponent and result cells are decoded
// into the named context columns of schema, which are emitted in schema
// order after the stats. Consecutive rows for the same game_id collapse.
func DecodeGameLog(markup io.Reader, schema []string, sel Selector, opts GameLogOptions) (*Result, error) {
	doc, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	return DecodeGameLogDocument(doc, schema, sel, opts)
}

// DecodeGameLogDocument is DecodeGameLog over a parsed document.
func DecodeGameLogDocument(doc *goquery.Document, schema []string, sel Selector, opts GameLogOptions) (*Result, error) {
	table, err := FindTable(doc, sel)
	if err != nil {
		return nil, err
	}
	acc := newAcceptor(schema, Options{Identifier: opts.Identifier, DedupeColumn: "game_id"})
	body := schema
	if len(body) > 0 {
		body = body[:len(body)-1]
	}

	rows(table, sel).Each(func(i int, tr *goquery.Selection) {
		g := scanGame(tr)
		if g.cells == 0 {
			return
		}
		name, field := ParseOpponent(g.opponent)
		if field == "" {
			acc.reject(i, RejectVenue, g.cells, g.date)
			return
		}
		score, err := ParseScore(g.score)
		if err != nil {
			acc.reject(i, RejectScore, g.cells, err.Error())
			return
		}

		ctx := map[string]string{
			"date":           g.date,
			"field":          field,
			"season_id":      strconv.Itoa(opts.SeasonID),
			"opponent_id":    g.opponentID,
			"opponent_name":  name,
			"innings_played": strconv.Itoa(score.InningsPlayed),
			"extras":         strconv.FormatBool(score.Extras),
			"runs_scored":    strconv.Itoa(score.RunsScored),
			"runs_allowed":   strconv.Itoa(score.RunsAllowed),
			"run_difference": strconv.Itoa(score.RunDifference),
			"result":         score.Result,
			"game_id":        g.gameID,
			"school_id":      strconv.Itoa(opts.SchoolID),
		}
		cells := append(RawRow(nil), g.stats...)
		for _, col := range body {
			if v, ok := ctx[col]; ok {
				cells = append(cells, v)
			}
		}
		acc.offer(i, cells)
	})
	return acc.result(), nil
}

type scannedGame struct {
	date       string
	opponent   string
	opponentID string
	score      string
	gameID     string
	stats      []string
	cells      int
}

// scanGame walks one game row. The leading cells are date, opponent and
// result; linked cells are routed by link kind and plain cells fill the
// first of those slots still empty.
func scanGame(tr *goquery.Selection) scannedGame {
	var g scannedGame
	var haveDate, haveOpp, haveScore bool

	tr.Find("td").Each(func(_ int, td *goquery.Selection) {
		g.cells++
		if v, ok := td.Attr("data-order"); ok {
			g.stats = append(g.stats, strings.TrimSpace(v))
			return
		}
		links := td.Find("a[href]")
		if links.Length() > 0 {
			links.Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				kind, id := ClassifyLink(href)
				switch kind {
				case GameLink:
					g.gameID = id
					g.score = cellText(a)
					haveScore = true
				case SchoolLink:
					g.opponentID = id
					if _, external := a.Attr("target"); !external {
						g.opponent = a.Text()
						haveOpp = true
					}
				}
			})
			if !haveOpp && !haveScore {
				// linked text we could not classify is still the opponent
				g.opponent = td.Text()
				haveOpp = true
			}
			return
		}
		text := strings.TrimSpace(td.Text())
		switch {
		case !haveDate:
			g.date = text
			haveDate = true
		case !haveOpp:
			g.opponent = td.Text()
			haveOpp = true
		case !haveScore:
			g.score = text
			haveScore = true
		}
	})
	if g.opponentID == "" {
		g.opponentID = "-"
	}
	return g
}

func isPlaceholder(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "-", "--", "---", "None", "<NA>":
		return true
	}
	return false
}
