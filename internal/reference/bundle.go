package reference

import (
	"sort"
	"strings"
)

type rosterKey struct {
	seq    int64
	season int
}

type weightsKey struct {
	season   int
	division int
}

// Bundle is an immutable, indexed view over the reference tables. It is
// safe for concurrent readers; nothing mutates it after New returns.
type Bundle struct {
	seasons      []Season
	seasonByYear map[int]Season
	seasonByID   map[int]Season

	schools      []School
	schoolByID   map[int]School
	schoolByNCAA map[string]School
	schoolByBD   map[string]School

	players map[string][]Player
	rosters map[rosterKey]RosterEntry
	history map[int64]PlayerHistory
	weights map[weightsKey]LinearWeights

	rosterList []RosterEntry
}

// PlayerContext is the canonical form every player input resolves to.
type PlayerContext struct {
	StatsPlayerSeq int64         `json:"stats_player_seq"`
	Name           string        `json:"name"`
	School         SchoolContext `json:"school"`
}

// New indexes t. Later rows win when a key repeats.
func New(t Tables) *Bundle {
	b := &Bundle{
		seasonByYear: make(map[int]Season, len(t.Seasons)),
		seasonByID:   make(map[int]Season, len(t.Seasons)),
		schoolByID:   make(map[int]School, len(t.Schools)),
		schoolByNCAA: make(map[string]School, len(t.Schools)),
		schoolByBD:   make(map[string]School, len(t.Schools)),
		players:      make(map[string][]Player, len(t.Players)),
		rosters:      make(map[rosterKey]RosterEntry, len(t.Rosters)),
		history:      make(map[int64]PlayerHistory, len(t.PlayersHistory)),
		weights:      make(map[weightsKey]LinearWeights, len(t.LinearWeights)),
	}

	for _, s := range t.Seasons {
		b.seasonByYear[s.Season] = s
		b.seasonByID[s.SeasonID] = s
	}
	for _, s := range b.seasonByYear {
		b.seasons = append(b.seasons, s)
	}
	sort.Slice(b.seasons, func(i, j int) bool { return b.seasons[i].Season < b.seasons[j].Season })

	for _, s := range t.Schools {
		b.schoolByID[s.SchoolID] = s
		b.schoolByNCAA[s.NCAAName] = s
		if s.BDName != "" {
			b.schoolByBD[s.BDName] = s
		}
	}
	for _, s := range b.schoolByID {
		b.schools = append(b.schools, s)
	}
	sort.Slice(b.schools, func(i, j int) bool { return b.schools[i].SchoolID < b.schools[j].SchoolID })

	for _, p := range t.Players {
		key := strings.ToLower(p.Name)
		b.players[key] = append(b.players[key], p)
	}
	for _, r := range t.Rosters {
		b.rosters[rosterKey{seq: r.StatsPlayerSeq, season: r.Season}] = r
	}
	b.rosterList = append(b.rosterList, t.Rosters...)
	sort.SliceStable(b.rosterList, func(i, j int) bool {
		if b.rosterList[i].Season != b.rosterList[j].Season {
			return b.rosterList[i].Season < b.rosterList[j].Season
		}
		return b.rosterList[i].StatsPlayerSeq < b.rosterList[j].StatsPlayerSeq
	})
	for _, h := range t.PlayersHistory {
		b.history[h.StatsPlayerSeq] = h
	}
	for _, w := range t.LinearWeights {
		b.weights[weightsKey{season: w.Season, division: w.Division}] = w
	}
	return b
}

// Seasons returns every known season in ascending order.
func (b *Bundle) Seasons() []Season {
	out := make([]Season, len(b.seasons))
	copy(out, b.seasons)
	return out
}

// Season resolves either flavour of season reference.
func (b *Bundle) Season(ref SeasonRef) (Season, error) {
	if ref.byID {
		if s, ok := b.seasonByID[ref.value]; ok {
			return s, nil
		}
		return Season{}, notFound("season_id", ref.value)
	}
	if s, ok := b.seasonByYear[ref.value]; ok {
		return s, nil
	}
	return Season{}, notFound("season", ref.value)
}

// SeasonIn resolves ref and scopes it to division.
func (b *Bundle) SeasonIn(ref SeasonRef, division int) (SeasonContext, error) {
	s, err := b.Season(ref)
	if err != nil {
		return SeasonContext{}, err
	}
	return SeasonContext{Season: s, Division: division}, nil
}

// School resolves a school reference. Names are matched against the site
// name first and the boydsworld name second, exactly and then ignoring case.
func (b *Bundle) School(ref SchoolRef) (School, error) {
	if ref.byID {
		if s, ok := b.schoolByID[ref.id]; ok {
			return s, nil
		}
		return School{}, notFound("school_id", ref.id)
	}
	if s, ok := b.schoolByNCAA[ref.name]; ok {
		return s, nil
	}
	if s, ok := b.schoolByBD[ref.name]; ok {
		return s, nil
	}
	for _, s := range b.schools {
		if strings.EqualFold(s.NCAAName, ref.name) || (s.BDName != "" && strings.EqualFold(s.BDName, ref.name)) {
			return s, nil
		}
	}
	return School{}, notFound("school", ref.name)
}

// Schools returns the schools in a division, or every school when division
// is zero, ordered by school_id.
func (b *Bundle) Schools(division int) []School {
	var out []School
	for _, s := range b.schools {
		if division == 0 || s.Division == division {
			out = append(out, s)
		}
	}
	return out
}

// PlayerID finds a player's stats_player_seq from name and school name.
func (b *Bundle) PlayerID(name, school string) (int64, error) {
	for _, p := range b.players[strings.ToLower(strings.TrimSpace(name))] {
		if p.School == school {
			return p.StatsPlayerSeq, nil
		}
	}
	return 0, notFound("player", name+" ("+school+")")
}

// PlayerInSeason returns the roster entry for a player in a season.
func (b *Bundle) PlayerInSeason(seq int64, season int) (RosterEntry, error) {
	if r, ok := b.rosters[rosterKey{seq: seq, season: season}]; ok {
		return r, nil
	}
	return RosterEntry{}, notFound("rostered player", seq)
}

// RosterPlayers lists roster entries for a season, optionally filtered by
// division (zero means all).
func (b *Bundle) RosterPlayers(season, division int) []RosterEntry {
	var out []RosterEntry
	for _, r := range b.rosterList {
		if r.Season != season {
			continue
		}
		if division != 0 && r.Division != division {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SeasonsPlayed returns a player's debut and most recent seasons.
func (b *Bundle) SeasonsPlayed(seq int64) (debut, last int, err error) {
	h, ok := b.history[seq]
	if !ok {
		return 0, 0, notFound("player history", seq)
	}
	return h.DebutSeason, h.SeasonLast, nil
}

// LinearWeights returns the run values for a season and division.
func (b *Bundle) LinearWeights(season, division int) (LinearWeights, error) {
	if w, ok := b.weights[weightsKey{season: season, division: division}]; ok {
		return w, nil
	}
	return LinearWeights{}, notFound("linear weights", weightsKey{season: season, division: division})
}

// ResolvePlayer turns a player reference into a canonical context. Seq
// references go through the season's rosters; name references need a school.
func (b *Bundle) ResolvePlayer(ref PlayerRef, season int) (PlayerContext, error) {
	if ref.seq != 0 {
		entry, err := b.PlayerInSeason(ref.seq, season)
		if err != nil {
			return PlayerContext{}, err
		}
		ctx := PlayerContext{StatsPlayerSeq: entry.StatsPlayerSeq, Name: entry.Name}
		if school, err := b.School(ByID(entry.SchoolID)); err == nil {
			ctx.School = school.Context()
		} else {
			ctx.School = SchoolContext{SchoolID: entry.SchoolID, CanonicalName: entry.School, Division: entry.Division}
		}
		return ctx, nil
	}
	if ref.school.IsZero() {
		return PlayerContext{}, notFound("player", ref.name+" (no school given)")
	}
	school, err := b.School(ref.school)
	if err != nil {
		return PlayerContext{}, err
	}
	seq, err := b.PlayerID(ref.name, school.NCAAName)
	if err != nil {
		return PlayerContext{}, err
	}
	return PlayerContext{StatsPlayerSeq: seq, Name: ref.name, School: school.Context()}, nil
}
