// Package reconciliation cross-checks a school's results from
// stats.ncaa.org against boydsworld.com.
package reconciliation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status classifies a pair.
type Status string

const (
	StatusAgree          Status = "agree"
	StatusConflict       Status = "conflict"
	StatusNCAAOnly       Status = "ncaa_only"
	StatusBoydsworldOnly Status = "boydsworld_only"
)

// Strategy decides which side a conflicting pair resolves to.
type Strategy string

const (
	// PreferNCAA keeps the site's score; it carries box score ids.
	PreferNCAA Strategy = "prefer_ncaa"
	// PreferBoydsworld keeps the boydsworld score.
	PreferBoydsworld Strategy = "prefer_boydsworld"
)

// Entry is one reconciled game.
type Entry struct {
	Status     Status `json:"status"`
	NCAA       *Game  `json:"ncaa,omitempty"`
	Boydsworld *Game  `json:"boydsworld,omitempty"`
	Resolved   Game   `json:"resolved"`
}

// Report summarizes one school-season.
type Report struct {
	SchoolID       int     `json:"school_id"`
	Season         int     `json:"season"`
	Agreements     int     `json:"agreements"`
	Conflicts      int     `json:"conflicts"`
	NCAAOnly       int     `json:"ncaa_only"`
	BoydsworldOnly int     `json:"boydsworld_only"`
	Entries        []Entry `json:"entries"`
}

// Metrics counts reconciliations since the engine was built or reset.
type Metrics struct {
	TotalReconciliations int
	Games                int
	Conflicts            int
	Unmatched            int
	LastReconciliation   time.Time
}

// Engine reconciles results. It is safe for concurrent use.
type Engine struct {
	strategy Strategy
	matcher  *Matcher
	logger   *zap.Logger

	mu      sync.Mutex
	metrics Metrics
}

// NewEngine builds an engine. An empty strategy means PreferNCAA.
func NewEngine(strategy Strategy, matcher *Matcher, logger *zap.Logger) *Engine {
	if strategy == "" {
		strategy = PreferNCAA
	}
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{strategy: strategy, matcher: matcher, logger: logger}
}

// Reconcile pairs both sources and classifies every game.
func (e *Engine) Reconcile(schoolID, season int, ncaaGames, bdGames []Game) *Report {
	rep := &Report{SchoolID: schoolID, Season: season, Entries: []Entry{}}

	for _, p := range e.matcher.Match(ncaaGames, bdGames) {
		entry := Entry{NCAA: p.NCAA, Boydsworld: p.Boydsworld}
		switch {
		case p.Boydsworld == nil:
			entry.Status = StatusNCAAOnly
			entry.Resolved = *p.NCAA
			rep.NCAAOnly++
		case p.NCAA == nil:
			entry.Status = StatusBoydsworldOnly
			entry.Resolved = *p.Boydsworld
			rep.BoydsworldOnly++
		case p.NCAA.sameScore(*p.Boydsworld):
			entry.Status = StatusAgree
			entry.Resolved = *p.NCAA
			rep.Agreements++
		default:
			entry.Status = StatusConflict
			entry.Resolved = e.resolve(*p.NCAA, *p.Boydsworld)
			rep.Conflicts++
			e.logger.Warn("score conflict",
				zap.Int("school_id", schoolID),
				zap.Time("date", p.NCAA.Date),
				zap.String("opponent", p.NCAA.Opponent),
				zap.Ints("ncaa", []int{p.NCAA.RunsScored, p.NCAA.RunsAllowed}),
				zap.Ints("boydsworld", []int{p.Boydsworld.RunsScored, p.Boydsworld.RunsAllowed}))
		}
		rep.Entries = append(rep.Entries, entry)
	}

	e.mu.Lock()
	e.metrics.TotalReconciliations++
	e.metrics.Games += len(rep.Entries)
	e.metrics.Conflicts += rep.Conflicts
	e.metrics.Unmatched += rep.NCAAOnly + rep.BoydsworldOnly
	e.metrics.LastReconciliation = time.Now()
	e.mu.Unlock()

	e.logger.Info("reconciled results",
		zap.Int("school_id", schoolID),
		zap.Int("season", season),
		zap.Int("agreements", rep.Agreements),
		zap.Int("conflicts", rep.Conflicts),
		zap.Int("ncaa_only", rep.NCAAOnly),
		zap.Int("boydsworld_only", rep.BoydsworldOnly))
	return rep
}

func (e *Engine) resolve(ncaa, bd Game) Game {
	if e.strategy == PreferBoydsworld {
		out := bd
		out.GameID = ncaa.GameID
		out.Opponent = ncaa.Opponent
		return out
	}
	return ncaa
}

// GetMetrics returns a copy of the counters.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// ResetMetrics clears the counters.
func (e *Engine) ResetMetrics() {
	e.mu.Lock()
	e.metrics = Metrics{}
	e.mu.Unlock()
}
