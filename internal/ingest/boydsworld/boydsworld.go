// Package boydsworld reads historical game results from boydsworld.com. The
// site lists every game once, winner first, so a team's results are pulled
// from both sides of the listing.
package boydsworld

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
)

// DefaultURL is the score query endpoint.
const DefaultURL = "http://www.boydsworld.com/cgi/scores.pl"

// AllOpponents selects every opponent.
const AllOpponents = "all"

const dateLayout = "1/2/2006"

// Columns is the raw layout of the results table.
var Columns = []string{"date", "team_1", "team_1_score", "team_2", "team_2_score", "field"}

// TableColumns is the layout Table returns.
var TableColumns = []string{"date", "opponent", "runs_scored", "runs_allowed", "run_difference", "field", "season"}

// Game is one result seen from the queried team's side.
type Game struct {
	Date          time.Time `json:"date"`
	Opponent      string    `json:"opponent"`
	RunsScored    int       `json:"runs_scored"`
	RunsAllowed   int       `json:"runs_allowed"`
	RunDifference int       `json:"run_difference"`
	Field         string    `json:"field"`
}

// Query selects games for a team across an inclusive range of seasons.
type Query struct {
	Team      string
	FirstYear int
	LastYear  int // zero means FirstYear
	Opponent  string
}

// ScoresURL builds the query URL.
func ScoresURL(base string, q Query) string {
	if base == "" {
		base = DefaultURL
	}
	last := q.LastYear
	if last == 0 {
		last = q.FirstYear
	}
	opp := q.Opponent
	if opp == "" {
		opp = AllOpponents
	}
	v := url.Values{}
	v.Set("team1", q.Team)
	v.Set("firstyear", strconv.Itoa(q.FirstYear))
	v.Set("team2", opp)
	v.Set("lastyear", strconv.Itoa(last))
	v.Set("format", "HTML")
	v.Set("submit", "Fetch")
	return base + "?" + v.Encode()
}

// Client fetches results through any page fetcher.
type Client struct {
	fetcher ncaa.Fetcher
	bundle  *reference.Bundle
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a client. School names are translated to the site's
// spelling through bundle.
func NewClient(fetcher ncaa.Fetcher, bundle *reference.Bundle, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{fetcher: fetcher, bundle: bundle, baseURL: baseURL, logger: logger}
}

// Games returns a school's results between two seasons, ordered by date.
func (c *Client) Games(ctx context.Context, school reference.SchoolRef, first, last int) ([]Game, error) {
	sch, err := c.bundle.School(school)
	if err != nil {
		return nil, err
	}
	name := sch.BDName
	if name == "" {
		name = sch.NCAAName
	}

	body, err := c.fetcher.Fetch(ctx, ScoresURL(c.baseURL, Query{Team: name, FirstYear: first, LastYear: last}))
	if err != nil {
		return nil, fmt.Errorf("boydsworld games %s %d-%d: %w", name, first, last, err)
	}
	games, err := Parse(bytes.NewReader(body), name)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		c.logger.Info("no boydsworld games found",
			zap.String("team", name), zap.Int("first", first), zap.Int("last", last))
	}
	return games, nil
}

// Parse reads the second table of a results page. A layout other than
// Columns yields no games, which is how the site reports an empty query.
func Parse(markup io.Reader, team string) ([]Game, error) {
	doc, err := htmlquery.Parse(markup)
	if err != nil {
		return nil, fmt.Errorf("parsing boydsworld page: %w", err)
	}
	tables := htmlquery.Find(doc, "//table")
	if len(tables) < 2 {
		return nil, nil
	}

	rows := dropEmptyColumns(tableRows(tables[1]))
	if len(rows) == 0 || len(rows[0]) != len(Columns) {
		return nil, nil
	}

	var games []Game
	for _, cells := range rows {
		g, ok := fromRow(cells, team)
		if ok {
			games = append(games, g)
		}
	}
	sort.SliceStable(games, func(i, j int) bool { return games[i].Date.Before(games[j].Date) })
	return games, nil
}

func tableRows(table *html.Node) [][]string {
	var out [][]string
	for _, tr := range htmlquery.Find(table, ".//tr") {
		tds := htmlquery.Find(tr, "./td")
		if len(tds) == 0 {
			continue
		}
		cells := make([]string, len(tds))
		for i, td := range tds {
			cells[i] = strings.TrimSpace(htmlquery.InnerText(td))
		}
		out = append(out, cells)
	}
	return out
}

// dropEmptyColumns removes columns that are blank on every row. Ragged
// rows are left alone and fail the width check.
func dropEmptyColumns(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	width := len(rows[0])
	for _, r := range rows {
		if len(r) != width {
			return rows
		}
	}
	var keep []int
	for col := 0; col < width; col++ {
		for _, r := range rows {
			if r[col] != "" {
				keep = append(keep, col)
				break
			}
		}
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = make([]string, len(keep))
		for j, col := range keep {
			out[i][j] = r[col]
		}
	}
	return out
}

// fromRow reads a row from team's side. Rows the team did not win or lose
// (other teams, ties, unparseable scores) are skipped.
func fromRow(cells []string, team string) (Game, bool) {
	date, err := time.Parse(dateLayout, cells[0])
	if err != nil {
		return Game{}, false
	}
	s1, err1 := strconv.Atoi(cells[2])
	s2, err2 := strconv.Atoi(cells[4])
	if err1 != nil || err2 != nil || s1 <= s2 {
		return Game{}, false
	}

	g := Game{Date: date, Field: cells[5]}
	switch {
	case strings.EqualFold(cells[1], team):
		g.Opponent, g.RunsScored, g.RunsAllowed = cells[3], s1, s2
	case strings.EqualFold(cells[3], team):
		g.Opponent, g.RunsScored, g.RunsAllowed = cells[1], s2, s1
	default:
		return Game{}, false
	}
	g.RunDifference = g.RunsScored - g.RunsAllowed
	return g, true
}

// Table lays games out like the other normalized tables. Dates use the
// site's month/day/year form.
func Table(games []Game) *normalize.Table {
	t := &normalize.Table{Columns: append([]string(nil), TableColumns...)}
	for _, g := range games {
		t.Records = append(t.Records, normalize.Record{
			"date":           g.Date.Format("01/02/2006"),
			"opponent":       g.Opponent,
			"runs_scored":    int64(g.RunsScored),
			"runs_allowed":   int64(g.RunsAllowed),
			"run_difference": int64(g.RunDifference),
			"field":          g.Field,
			"season":         int64(g.Date.Year()),
		})
	}
	return t
}
