package normalize

import "strings"

// Position groups.
const (
	Infield    = "INF"
	Outfield   = "OF"
	Catcher    = "C"
	Pitcher    = "P"
	Designated = "DH"
	NotPitcher = "notP"
)

var positionGroups = map[string]string{
	"1B": Infield, "2B": Infield, "SS": Infield, "3B": Infield, "UT": Infield,
	"LF": Outfield, "CF": Outfield, "RF": Outfield,
	"OF": Outfield, "INF": Infield, "C": Catcher, "P": Pitcher, "DH": Designated,
}

// PositionGroup buckets a listed position. Multi-position listings such as
// "P/1B" use the last entry; anything unrecognized is infield.
func PositionGroup(pos string) string {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pos)), "/")
	if g, ok := positionGroups[strings.TrimSpace(parts[len(parts)-1])]; ok {
		return g
	}
	return Infield
}

var pitcherListings = map[string]bool{"P/C": true, "SS/P": true, "LF/P": true, "P": true}

// IsPitcher reports whether a listing names a pitcher.
func IsPitcher(pos string) bool {
	return pitcherListings[strings.ToUpper(strings.TrimSpace(pos))]
}

// PitchingGroup is Pitcher or NotPitcher.
func PitchingGroup(pos string) string {
	if IsPitcher(pos) {
		return Pitcher
	}
	return NotPitcher
}
