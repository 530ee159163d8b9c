package ncaa

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/decode"
	"github.com/fortuna/collegebaseball/internal/metrics"
	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
)

// StatGridSelector is the last stat_grid table on a team stats page; the
// page repeats the grid and only the last copy holds player links.
var StatGridSelector = decode.Selector{ID: "stat_grid", Index: -1, Rows: "tbody tr"}

// TotalsSelector is the footer of the first stat_grid table.
var TotalsSelector = decode.Selector{ID: "stat_grid", Index: 0, Rows: "tfoot tr"}

// TotalsDropped are per-player columns that mean nothing on a team line.
var TotalsDropped = []string{"Jersey", "Yr", "pos", "GP", "GS", "App"}

// ResultColumns is the projection TeamResults returns.
var ResultColumns = []string{
	"game_id", "date", "field", "opponent_name", "opponent_id",
	"innings_played", "extras", "runs_scored", "runs_allowed", "run_difference", "result",
	"school_id", "season_id", "season",
}

// StatsOptions selects a situational split and whether to derive metrics.
type StatsOptions struct {
	Advanced bool
	Split    string
}

// Scraper turns site pages into normalized tables.
type Scraper struct {
	bundle   *reference.Bundle
	registry *schema.Registry
	fetcher  Fetcher
	baseURL  string
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewScraper wires the reference data, registry and fetcher together.
func NewScraper(bundle *reference.Bundle, registry *schema.Registry, fetcher Fetcher, baseURL string, logger *zap.Logger, m *monitoring.Metrics) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		bundle:   bundle,
		registry: registry,
		fetcher:  fetcher,
		baseURL:  trimBase(baseURL),
		logger:   logger,
		metrics:  m,
	}
}

// Bundle exposes the reference data the scraper resolves against.
func (s *Scraper) Bundle() *reference.Bundle { return s.bundle }

// TeamStats returns one row per player from a team's season stat grid.
// Batting rows need a plate appearance once metrics are added; pitching
// rows always need an appearance.
func (s *Scraper) TeamStats(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category, opts StatsOptions) (*normalize.Table, error) {
	sch, sc, err := s.resolve(school, season)
	if err != nil {
		return nil, err
	}
	sea := sc.Season
	cols, err := s.registry.For(sea.Season, category, schema.TeamAggregate)
	if err != nil {
		return nil, err
	}
	splitID, err := s.splitID(sea.Season, category, opts.Split)
	if err != nil {
		return nil, err
	}

	pageURL := TeamStatsURL(s.baseURL, sch.SchoolID, sea.SeasonID, categoryID(sea, category), splitID)
	res, err := s.decode(ctx, pageURL, schema.TeamAggregate, func(r *bytes.Reader) (*decode.Result, error) {
		return decode.Decode(r, cols, StatGridSelector, decode.Options{
			Identifier:   strconv.Itoa(sch.SchoolID),
			KeepLinkText: true,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("team stats %s %d %s: %w", sch.NCAAName, sea.Season, category, err)
	}

	tbl, err := normalize.Normalize(res.Rows, cols, category, normalize.Options{Season: sea.Season})
	if err != nil {
		return nil, err
	}
	if category == schema.Pitching && tbl.HasColumn("App") {
		tbl.Filter(func(r normalize.Record) bool { return r.Int("App") > 0 })
	}
	if opts.Advanced {
		s.addMetrics(tbl, category, sc)
	}
	return tbl, nil
}

// TeamTotals returns the team and opponent lines from the stat grid footer.
// The raw row label ("Totals", "Opponent Totals") is kept in a label
// column.
func (s *Scraper) TeamTotals(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category, opts StatsOptions) (*normalize.Table, error) {
	sch, sc, err := s.resolve(school, season)
	if err != nil {
		return nil, err
	}
	sea := sc.Season
	layout, err := s.registry.For(sea.Season, category, schema.TeamAggregate)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(layout))
	for _, c := range layout {
		if c != schema.StatsPlayerSeqColumn {
			cols = append(cols, c)
		}
	}
	splitID, err := s.splitID(sea.Season, category, opts.Split)
	if err != nil {
		return nil, err
	}

	pageURL := TeamStatsURL(s.baseURL, sch.SchoolID, sea.SeasonID, categoryID(sea, category), splitID)
	res, err := s.decode(ctx, pageURL, "team_totals", func(r *bytes.Reader) (*decode.Result, error) {
		return decode.Decode(r, cols, TotalsSelector, decode.Options{Identifier: strconv.Itoa(sch.SchoolID)})
	})
	if err != nil {
		return nil, fmt.Errorf("team totals %s %d %s: %w", sch.NCAAName, sea.Season, category, err)
	}

	tbl, err := normalize.Normalize(res.Rows, cols, category, normalize.Options{Season: sea.Season})
	if err != nil {
		return nil, err
	}
	if at := indexOf(cols, "Player"); at >= 0 {
		for i, r := range tbl.Records {
			r["label"] = res.Rows[i][at]
		}
		tbl.Columns = append([]string{"label"}, tbl.Columns...)
		tbl.Drop("name")
	}
	tbl.Drop(TotalsDropped...)
	if opts.Advanced {
		s.addMetrics(tbl, category, sc)
	}
	return tbl, nil
}

// PlayerGameLogs returns a player's game-by-game line for a season.
func (s *Scraper) PlayerGameLogs(ctx context.Context, player reference.PlayerRef, season reference.SeasonRef, category schema.Category) (*normalize.Table, error) {
	sea, err := s.bundle.Season(season)
	if err != nil {
		return nil, err
	}
	pc, err := s.bundle.ResolvePlayer(player, sea.Season)
	if err != nil {
		return nil, err
	}
	cols, err := s.registry.For(sea.Season, category, schema.PlayerGameLog)
	if err != nil {
		return nil, err
	}

	pageURL := GameByGameURL(s.baseURL, sea.SeasonID, pc.School.SchoolID, pc.StatsPlayerSeq, categoryID(sea, category))
	res, err := s.decode(ctx, pageURL, schema.PlayerGameLog, func(r *bytes.Reader) (*decode.Result, error) {
		return decode.DecodeGameLog(r, cols, decode.GameLogSelector, decode.GameLogOptions{
			SeasonID:   sea.SeasonID,
			SchoolID:   pc.School.SchoolID,
			Identifier: strconv.FormatInt(pc.StatsPlayerSeq, 10),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("player game logs %d %d %s: %w", pc.StatsPlayerSeq, sea.Season, category, err)
	}
	return normalize.Normalize(res.Rows, cols, category, normalize.Options{Season: sea.Season})
}

// TeamGameLogs returns a team's game-by-game line for a season.
func (s *Scraper) TeamGameLogs(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category) (*normalize.Table, error) {
	sch, sc, err := s.resolve(school, season)
	if err != nil {
		return nil, err
	}
	sea := sc.Season
	cols, err := s.registry.For(sea.Season, category, schema.TeamGameLog)
	if err != nil {
		return nil, err
	}

	pageURL := GameByGameURL(s.baseURL, sea.SeasonID, sch.SchoolID, TeamGameLogSeq, categoryID(sea, category))
	res, err := s.decode(ctx, pageURL, schema.TeamGameLog, func(r *bytes.Reader) (*decode.Result, error) {
		return decode.DecodeGameLog(r, cols, decode.GameLogSelector, decode.GameLogOptions{
			SeasonID:   sea.SeasonID,
			SchoolID:   sch.SchoolID,
			Identifier: strconv.Itoa(sch.SchoolID),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("team game logs %s %d %s: %w", sch.NCAAName, sea.Season, category, err)
	}
	return normalize.Normalize(res.Rows, cols, category, normalize.Options{Season: sea.Season})
}

// TeamResults projects the batting game log onto game outcomes.
func (s *Scraper) TeamResults(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error) {
	logs, err := s.TeamGameLogs(ctx, school, season, schema.Batting)
	if err != nil {
		return nil, err
	}
	return logs.Select(ResultColumns...), nil
}

// TeamSeasonRoster returns the players listed for one season. Players
// without a link (no games played) are skipped by the decoder.
func (s *Scraper) TeamSeasonRoster(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error) {
	sch, sc, err := s.resolve(school, season)
	if err != nil {
		return nil, err
	}
	sea := sc.Season
	cols := s.registry.RosterColumns(sea.Season)

	pageURL := RosterURL(s.baseURL, sch.SchoolID, sea.SeasonID)
	res, err := s.decode(ctx, pageURL, "roster", func(r *bytes.Reader) (*decode.Result, error) {
		return decode.DecodeRoster(r, cols, decode.RosterSelector)
	})
	if err != nil {
		return nil, fmt.Errorf("roster %s %d: %w", sch.NCAAName, sea.Season, err)
	}

	tbl, err := normalize.Normalize(res.Rows, cols, "roster", normalize.Options{Season: sea.Season})
	if err != nil {
		return nil, err
	}
	tbl.Set("season_id", func(normalize.Record) any { return int64(sea.SeasonID) })
	tbl.Set("school", func(normalize.Record) any { return sch.NCAAName })
	tbl.Set("school_id", func(normalize.Record) any { return int64(sch.SchoolID) })
	return tbl, nil
}

// TeamRoster concatenates several seasons of rosters. Height is dropped
// because only some seasons carry it, and a failed season is logged and
// skipped.
func (s *Scraper) TeamRoster(ctx context.Context, school reference.SchoolRef, seasons []int) (*normalize.Table, error) {
	if len(seasons) == 1 {
		return s.TeamSeasonRoster(ctx, school, reference.BySeason(seasons[0]))
	}

	out := &normalize.Table{}
	for _, season := range uniqueSorted(seasons) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tbl, err := s.TeamSeasonRoster(ctx, school, reference.BySeason(season))
		if err != nil {
			s.logger.Warn("skipping roster season",
				zap.Stringer("school", school), zap.Int("season", season), zap.Error(err))
			continue
		}
		tbl.Drop("height")
		out.Append(tbl)
	}
	return out, nil
}

// CareerStats returns a player's season-by-season career line. The page is
// requested with the player's debut season.
func (s *Scraper) CareerStats(ctx context.Context, playerSeq int64, category schema.Category) (*normalize.Table, error) {
	debut, _, err := s.bundle.SeasonsPlayed(playerSeq)
	if err != nil {
		return nil, err
	}
	sea, err := s.bundle.Season(reference.BySeason(debut))
	if err != nil {
		return nil, err
	}
	cols, err := s.registry.For(debut, category, schema.PlayerCareer)
	if err != nil {
		return nil, err
	}

	pageURL := CareerURL(s.baseURL, sea.SeasonID, playerSeq, categoryID(sea, category))
	res, err := s.decode(ctx, pageURL, schema.PlayerCareer, func(r *bytes.Reader) (*decode.Result, error) {
		return decode.Decode(r, cols, decode.CareerSelector, decode.Options{
			Identifier: strconv.FormatInt(playerSeq, 10),
			SkipLabels: decode.CareerSkipLabels,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("career %d %s: %w", playerSeq, category, err)
	}
	return normalize.Normalize(res.Rows, cols, category, normalize.Options{Season: debut})
}

// resolve looks up the school and scopes the season to the school's division.
func (s *Scraper) resolve(school reference.SchoolRef, season reference.SeasonRef) (reference.School, reference.SeasonContext, error) {
	sch, err := s.bundle.School(school)
	if err != nil {
		return reference.School{}, reference.SeasonContext{}, err
	}
	sc, err := s.bundle.SeasonIn(season, sch.Division)
	if err != nil {
		return reference.School{}, reference.SeasonContext{}, err
	}
	return sch, sc, nil
}

func (s *Scraper) splitID(season int, category schema.Category, split string) (int, error) {
	if split == "" {
		return 0, nil
	}
	return s.registry.SplitID(season, category, split)
}

// decode fetches pageURL, runs fn over the body and records how many rows
// were kept and why the rest were dropped.
func (s *Scraper) decode(ctx context.Context, pageURL string, kind schema.Kind, fn func(*bytes.Reader) (*decode.Result, error)) (*decode.Result, error) {
	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	res, err := fn(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	reasons := make(map[string]int)
	for _, rej := range res.Rejected {
		reasons[string(rej.Reason)]++
		s.logger.Debug("row rejected",
			zap.String("kind", string(kind)),
			zap.Int("row", rej.Row),
			zap.String("reason", string(rej.Reason)),
			zap.Int("cells", rej.Cells),
			zap.String("detail", rej.Detail))
	}
	s.metrics.RecordDecode(string(kind), len(res.Rows), reasons)
	return res, nil
}

func (s *Scraper) addMetrics(tbl *normalize.Table, category schema.Category, sc reference.SeasonContext) {
	var weights *reference.LinearWeights
	if w, err := s.bundle.LinearWeights(sc.Season.Season, sc.Division); err == nil {
		weights = &w
	} else {
		s.logger.Warn("no linear weights, run values will be zero",
			zap.Int("season", sc.Season.Season), zap.Int("division", sc.Division))
	}
	switch category {
	case schema.Batting:
		metrics.AddBatting(tbl, weights)
	case schema.Pitching:
		metrics.AddPitching(tbl, weights)
	}
}

func categoryID(s reference.Season, c schema.Category) int {
	switch c {
	case schema.Pitching:
		return s.PitchingID
	case schema.Fielding:
		return s.FieldingID
	default:
		return s.BattingID
	}
}

func indexOf(cols []string, col string) int {
	for i, c := range cols {
		if c == col {
			return i
		}
	}
	return -1
}

func uniqueSorted(in []int) []int {
	seen := make(map[int]bool, len(in))
	var out []int
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
