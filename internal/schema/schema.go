package schema

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var defaultDocument []byte

// Category selects one of the three stat tables the site publishes.
type Category string

const (
	Batting  Category = "batting"
	Pitching Category = "pitching"
	Fielding Category = "fielding"
)

// Categories lists every category in page order.
var Categories = []Category{Batting, Pitching, Fielding}

// ParseCategory validates a user supplied category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Batting, Pitching, Fielding:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown stat category %q", s)
}

// Kind is the shape of the requested table.
type Kind string

const (
	TeamAggregate Kind = "team_aggregate"
	TeamGameLog   Kind = "team_game_log"
	PlayerGameLog Kind = "player_game_log"
	PlayerCareer  Kind = "player_career"
)

// Identifier columns appended by the decoder rather than parsed from cells.
const (
	SchoolIDColumn       = "school_id"
	StatsPlayerSeqColumn = "stats_player_seq"
)

type document struct {
	GameContext []string                       `yaml:"game_context"`
	Prefixes    map[Kind]map[Category][]string `yaml:"prefixes"`
	Roster      rosterDocument                 `yaml:"roster"`
	Seasons     map[int]seasonDocument         `yaml:"seasons"`
}

type rosterDocument struct {
	Default       []string `yaml:"default"`
	WithHeight    []string `yaml:"with_height"`
	HeightSeasons []int    `yaml:"height_seasons"`
}

type seasonDocument struct {
	Batting       []string                    `yaml:"batting"`
	Pitching      []string                    `yaml:"pitching"`
	Fielding      []string                    `yaml:"fielding"`
	AggregateOmit map[Category][]string       `yaml:"aggregate_omit"`
	Splits        map[Category]map[string]int `yaml:"splits"`
}

func (s seasonDocument) stats(c Category) []string {
	switch c {
	case Batting:
		return s.Batting
	case Pitching:
		return s.Pitching
	case Fielding:
		return s.Fielding
	}
	return nil
}

type key struct {
	season   int
	category Category
	kind     Kind
}

// Registry holds every known column layout. It is immutable once built.
type Registry struct {
	layouts map[key][]string
	splits  map[int]map[Category]map[string]int
	roster  rosterDocument
	seasons []int
}

// Default parses the embedded registry document.
func Default() (*Registry, error) {
	return Parse(defaultDocument)
}

// Parse builds a registry from a YAML document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema document: %w", err)
	}
	if len(doc.GameContext) == 0 {
		return nil, fmt.Errorf("schema document has no game_context")
	}

	r := &Registry{
		layouts: make(map[key][]string),
		splits:  make(map[int]map[Category]map[string]int),
		roster:  doc.Roster,
	}
	for season, sd := range doc.Seasons {
		r.seasons = append(r.seasons, season)
		r.splits[season] = sd.Splits
		for _, c := range Categories {
			stats := sd.stats(c)
			if len(stats) == 0 {
				continue
			}
			r.layouts[key{season, c, TeamGameLog}] = concat(stats, doc.GameContext, []string{SchoolIDColumn})
			r.layouts[key{season, c, PlayerGameLog}] = concat(stats, doc.GameContext, []string{SchoolIDColumn, StatsPlayerSeqColumn})
			if prefix := doc.Prefixes[TeamAggregate][c]; len(prefix) > 0 {
				agg := without(stats, sd.AggregateOmit[c])
				r.layouts[key{season, c, TeamAggregate}] = concat(prefix, agg, []string{SchoolIDColumn})
			}
			if prefix := doc.Prefixes[PlayerCareer][c]; len(prefix) > 0 {
				r.layouts[key{season, c, PlayerCareer}] = concat(prefix, stats, []string{StatsPlayerSeqColumn})
			}
		}
	}
	sort.Ints(r.seasons)
	return r, nil
}

// For returns a copy of the column layout for a season, category and kind.
// Player career layouts are keyed by the player's debut season.
func (r *Registry) For(season int, category Category, kind Kind) ([]string, error) {
	cols, ok := r.layouts[key{season, category, kind}]
	if !ok {
		return nil, &NotFoundError{Season: season, Category: category, Kind: kind}
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out, nil
}

// Seasons lists the seasons with at least one layout, ascending.
func (r *Registry) Seasons() []int {
	out := make([]int, len(r.seasons))
	copy(out, r.seasons)
	return out
}

// SplitID returns the site's available_stat_id for a situational split.
func (r *Registry) SplitID(season int, category Category, split string) (int, error) {
	if id, ok := r.splits[season][category][split]; ok {
		return id, nil
	}
	return 0, &SplitNotFoundError{Season: season, Category: category, Split: split}
}

// Splits lists the split names known for a season and category, sorted.
func (r *Registry) Splits(season int, category Category) []string {
	var out []string
	for name := range r.splits[season][category] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RosterColumns returns the roster layout. Some seasons add a height column.
func (r *Registry) RosterColumns(season int) []string {
	src := r.roster.Default
	for _, s := range r.roster.HeightSeasons {
		if s == season {
			src = r.roster.WithHeight
			break
		}
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func concat(parts ...[]string) []string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func without(cols, drop []string) []string {
	if len(drop) == 0 {
		return cols
	}
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}
