package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/cache"
	"github.com/fortuna/collegebaseball/internal/ingest/boydsworld"
	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/metrics"
	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/reconciliation"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
)

// Scraper is what the handlers need from *ncaa.Scraper.
type Scraper interface {
	Bundle() *reference.Bundle
	TeamStats(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category, opts ncaa.StatsOptions) (*normalize.Table, error)
	TeamTotals(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category, opts ncaa.StatsOptions) (*normalize.Table, error)
	TeamGameLogs(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef, category schema.Category) (*normalize.Table, error)
	TeamResults(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error)
	TeamSeasonRoster(ctx context.Context, school reference.SchoolRef, season reference.SeasonRef) (*normalize.Table, error)
	TeamRoster(ctx context.Context, school reference.SchoolRef, seasons []int) (*normalize.Table, error)
	PlayerGameLogs(ctx context.Context, player reference.PlayerRef, season reference.SeasonRef, category schema.Category) (*normalize.Table, error)
	CareerStats(ctx context.Context, playerSeq int64, category schema.Category) (*normalize.Table, error)
}

// ResultsSource is the boydsworld client.
type ResultsSource interface {
	Games(ctx context.Context, school reference.SchoolRef, first, last int) ([]boydsworld.Game, error)
}

// Archive reads previously saved tables.
type Archive interface {
	LoadTable(ctx context.Context, key store.TableKey) (*store.StoredTable, error)
	ListKeys(ctx context.Context, schoolID, season int) ([]store.TableKey, error)
	ListRoster(ctx context.Context, schoolID, season int) ([]store.RosterRow, error)
	ListResults(ctx context.Context, schoolID, season int) ([]store.ResultRow, error)
}

// TableCache is the JSON side of the Redis cache.
type TableCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// HealthChecker is anything that can be pinged.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	scraper    Scraper
	registry   *schema.Registry
	results    ResultsSource
	reconciler *reconciliation.Engine
	archive    Archive
	cache      TableCache
	cacheTTL   time.Duration
	health     map[string]HealthChecker
	logger     *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	reconciler := deps.Reconciler
	if reconciler == nil {
		reconciler = reconciliation.NewEngine(reconciliation.PreferNCAA, reconciliation.NewMatcher(nil), logger)
	}
	return &Handler{
		scraper:    deps.Scraper,
		registry:   deps.Registry,
		results:    deps.Results,
		reconciler: reconciler,
		archive:    deps.Archive,
		cache:      deps.Cache,
		cacheTTL:   ttl,
		health:     deps.Health,
		logger:     logger.Named("rest"),
	}
}

// HealthCheck pings every dependency.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, c := range h.health {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"service": "collegebaseball",
		"checks":  checks,
	})
}

// GetSeasons lists the known seasons and their ids.
func (h *Handler) GetSeasons(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scraper.Bundle().Seasons())
}

// GetSchools lists schools, optionally for one division.
func (h *Handler) GetSchools(w http.ResponseWriter, r *http.Request) {
	division, err := intParam(r, "division", 0)
	if err != nil {
		h.fail(w, err)
		return
	}
	schools := h.scraper.Bundle().Schools(division)
	if schools == nil {
		schools = []reference.School{}
	}
	respondJSON(w, http.StatusOK, schools)
}

// GetSchool resolves a school by id or name.
func (h *Handler) GetSchool(w http.ResponseWriter, r *http.Request) {
	school, err := h.scraper.Bundle().School(schoolRef(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, school)
}

// GetSplits lists the situational splits for a season.
func (h *Handler) GetSplits(w http.ResponseWriter, r *http.Request) {
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	splits := h.registry.Splits(season, category)
	if splits == nil {
		splits = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"season":   season,
		"category": category,
		"splits":   splits,
	})
}

// GetTeamStats returns player rows for a team-season.
func (h *Handler) GetTeamStats(w http.ResponseWriter, r *http.Request) {
	h.teamAggregate(w, r, "stats", h.scraper.TeamStats)
}

// GetTeamTotals returns the team and opponent total rows.
func (h *Handler) GetTeamTotals(w http.ResponseWriter, r *http.Request) {
	h.teamAggregate(w, r, "totals", h.scraper.TeamTotals)
}

type aggregateFunc func(context.Context, reference.SchoolRef, reference.SeasonRef, schema.Category, ncaa.StatsOptions) (*normalize.Table, error)

func (h *Handler) teamAggregate(w http.ResponseWriter, r *http.Request, name string, fetch aggregateFunc) {
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	advanced, err := boolParam(r, "advanced")
	if err != nil {
		h.fail(w, err)
		return
	}
	opts := ncaa.StatsOptions{Advanced: advanced, Split: r.URL.Query().Get("split")}
	school := mux.Vars(r)["school"]

	key := cache.TableKey(name, strings.ToLower(school), strconv.Itoa(season), string(category), opts.Split, strconv.FormatBool(advanced))
	tbl, err := h.cachedTable(r.Context(), key, func() (*normalize.Table, error) {
		return fetch(r.Context(), reference.ParseSchool(school), reference.ParseSeason(season), category, opts)
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tbl)
}

// GetTeamGameLogs returns one row per game for a team-season.
func (h *Handler) GetTeamGameLogs(w http.ResponseWriter, r *http.Request) {
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	school := mux.Vars(r)["school"]
	key := cache.TableKey("gamelogs", strings.ToLower(school), strconv.Itoa(season), string(category))
	tbl, err := h.cachedTable(r.Context(), key, func() (*normalize.Table, error) {
		return h.scraper.TeamGameLogs(r.Context(), reference.ParseSchool(school), reference.ParseSeason(season), category)
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tbl)
}

// GetTeamResults returns the schedule with scores.
func (h *Handler) GetTeamResults(w http.ResponseWriter, r *http.Request) {
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	tbl, err := h.teamResults(r.Context(), mux.Vars(r)["school"], season)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tbl)
}

func (h *Handler) teamResults(ctx context.Context, school string, season int) (*normalize.Table, error) {
	key := cache.TableKey("results", strings.ToLower(school), strconv.Itoa(season))
	return h.cachedTable(ctx, key, func() (*normalize.Table, error) {
		return h.scraper.TeamResults(ctx, reference.ParseSchool(school), reference.ParseSeason(season))
	})
}

// RosterSummary counts a roster by position group.
type RosterSummary struct {
	Players        int            `json:"players"`
	Pitchers       int            `json:"pitchers"`
	PositionGroups map[string]int `json:"position_groups"`
}

func summarizeRoster(t *normalize.Table) RosterSummary {
	s := RosterSummary{PositionGroups: map[string]int{}}
	for _, rec := range t.Records {
		pos := rec.Text("position")
		s.Players++
		s.PositionGroups[normalize.PositionGroup(pos)]++
		if normalize.IsPitcher(pos) {
			s.Pitchers++
		}
	}
	return s
}

// GetTeamRoster returns a roster for one season or several
// (season=2021,2022).
func (h *Handler) GetTeamRoster(w http.ResponseWriter, r *http.Request) {
	seasons, err := seasonsParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	school := reference.ParseSchool(mux.Vars(r)["school"])

	var tbl *normalize.Table
	if len(seasons) == 1 {
		tbl, err = h.scraper.TeamSeasonRoster(r.Context(), school, reference.ParseSeason(seasons[0]))
	} else {
		tbl, err = h.scraper.TeamRoster(r.Context(), school, seasons)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"roster":  tbl,
		"summary": summarizeRoster(tbl),
	})
}

// WinPct is the record and expected record for a team-season.
type WinPct struct {
	SchoolID      int     `json:"school_id"`
	Season        int     `json:"season"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Ties          int     `json:"ties"`
	WinPct        float64 `json:"win_pct"`
	PythagenPat   float64 `json:"pythagenpat_win_pct"`
	RunDifference int64   `json:"run_difference"`
}

// GetWinPct computes actual and PythagenPat winning percentage.
func (h *Handler) GetWinPct(w http.ResponseWriter, r *http.Request) {
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	name := mux.Vars(r)["school"]
	school, err := h.scraper.Bundle().School(reference.ParseSchool(name))
	if err != nil {
		h.fail(w, err)
		return
	}
	tbl, err := h.teamResults(r.Context(), name, season)
	if err != nil {
		h.fail(w, err)
		return
	}

	games := metrics.GamesFromTable(tbl)
	pct, wins, ties, losses := metrics.ActualWinPct(games)
	pyth, diff := metrics.PythagenPatWinPct(games)
	respondJSON(w, http.StatusOK, WinPct{
		SchoolID:      school.SchoolID,
		Season:        season,
		Wins:          wins,
		Losses:        losses,
		Ties:          ties,
		WinPct:        pct,
		PythagenPat:   pyth,
		RunDifference: diff,
	})
}

// GetPlayerGameLogs returns a player's games for one season.
func (h *Handler) GetPlayerGameLogs(w http.ResponseWriter, r *http.Request) {
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	player, err := playerRef(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	tbl, err := h.scraper.PlayerGameLogs(r.Context(), player, reference.ParseSeason(season), category)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tbl)
}

// GetPlayerCareer returns one row per season played.
func (h *Handler) GetPlayerCareer(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	seq, err := h.playerSeq(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	tbl, err := h.scraper.CareerStats(r.Context(), seq, category)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tbl)
}

func (h *Handler) playerSeq(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["player"]
	if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return seq, nil
	}
	schoolParam := r.URL.Query().Get("school")
	if schoolParam == "" {
		return 0, badRequest("school is required when the player is given by name")
	}
	school, err := h.scraper.Bundle().School(reference.ParseSchool(schoolParam))
	if err != nil {
		return 0, err
	}
	return h.scraper.Bundle().PlayerID(raw, school.NCAAName)
}

func (h *Handler) cachedTable(ctx context.Context, key string, fetch func() (*normalize.Table, error)) (*normalize.Table, error) {
	if h.cache != nil {
		var cached normalize.Table
		ok, err := h.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			h.logger.Warn("table cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	tbl, err := fetch()
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, key, tbl, h.cacheTTL); err != nil {
			h.logger.Warn("table cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return tbl, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondError(w, status, http.StatusText(status), err)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var refErr *reference.NotFoundError
	var schemaErr *schema.NotFoundError
	var splitErr *schema.SplitNotFoundError
	var upstream *ncaa.StatusError

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &refErr), errors.As(err, &schemaErr), errors.As(err, &splitErr),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ncaa.ErrBlocked), errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func schoolRef(r *http.Request) reference.SchoolRef {
	return reference.ParseSchool(mux.Vars(r)["school"])
}

func playerRef(r *http.Request) (reference.PlayerRef, error) {
	raw := mux.Vars(r)["player"]
	if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return reference.ByPlayerSeq(seq), nil
	}
	school := r.URL.Query().Get("school")
	if school == "" {
		return reference.PlayerRef{}, badRequest("school is required when the player is given by name")
	}
	return reference.ByPlayerName(raw, reference.ParseSchool(school)), nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}

func requiredInt(r *http.Request, name string) (int, error) {
	if r.URL.Query().Get(name) == "" {
		return 0, badRequest("%s is required", name)
	}
	return intParam(r, name, 0)
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be a boolean", name)
	}
	return b, nil
}

func categoryParam(r *http.Request) (schema.Category, error) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		return schema.Batting, nil
	}
	c, err := schema.ParseCategory(raw)
	if err != nil {
		return "", badRequest("%v", err)
	}
	return c, nil
}

func seasonsParam(r *http.Request) ([]int, error) {
	raw := r.URL.Query().Get("season")
	if raw == "" {
		return nil, badRequest("season is required")
	}
	var seasons []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, badRequest("season must be a comma-separated list of years")
		}
		seasons = append(seasons, n)
	}
	return seasons, nil
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
