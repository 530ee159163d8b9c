package reference

import (
	"fmt"
	"strconv"
	"strings"
)

// SeasonRef identifies a season either by its four digit year or by the
// site's season_id. Build one with BySeason, BySeasonID or ParseSeason.
type SeasonRef struct {
	value int
	byID  bool
}

// BySeason refers to a season by calendar year.
func BySeason(year int) SeasonRef { return SeasonRef{value: year} }

// BySeasonID refers to a season by the site's season_id.
func BySeasonID(id int) SeasonRef { return SeasonRef{value: id, byID: true} }

// ParseSeason picks the variant from the digit count: four digits is a
// year, anything longer is a season_id.
func ParseSeason(n int) SeasonRef {
	if n >= 1000 && n <= 9999 {
		return BySeason(n)
	}
	return BySeasonID(n)
}

func (r SeasonRef) String() string {
	if r.byID {
		return fmt.Sprintf("season_id %d", r.value)
	}
	return fmt.Sprintf("season %d", r.value)
}

// SchoolRef identifies a school by name or by school_id.
type SchoolRef struct {
	name string
	id   int
	byID bool
}

// ByName refers to a school by its site name or its boydsworld name.
func ByName(name string) SchoolRef { return SchoolRef{name: name} }

// ByID refers to a school by school_id.
func ByID(id int) SchoolRef { return SchoolRef{id: id, byID: true} }

// ParseSchool treats an all-digit string as an id and anything else as a name.
func ParseSchool(s string) SchoolRef {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return ByID(id)
	}
	return ByName(s)
}

// IsZero reports whether the ref was never set.
func (r SchoolRef) IsZero() bool { return !r.byID && r.name == "" }

func (r SchoolRef) String() string {
	if r.byID {
		return fmt.Sprintf("school_id %d", r.id)
	}
	return fmt.Sprintf("school %q", r.name)
}

// PlayerRef identifies a player by stats_player_seq, or by name plus school.
type PlayerRef struct {
	seq    int64
	name   string
	school SchoolRef
}

// ByPlayerSeq refers to a player by stats_player_seq.
func ByPlayerSeq(seq int64) PlayerRef { return PlayerRef{seq: seq} }

// ByPlayerName refers to a player by name at a given school.
func ByPlayerName(name string, school SchoolRef) PlayerRef {
	return PlayerRef{name: name, school: school}
}

func (r PlayerRef) String() string {
	if r.seq != 0 {
		return fmt.Sprintf("player %d", r.seq)
	}
	return fmt.Sprintf("player %q (%s)", r.name, r.school)
}
