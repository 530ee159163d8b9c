package decode

import (
	"net/url"
	"strings"
)

// LinkKind tags what a hyperlink inside a table cell points at.
type LinkKind int

const (
	UnknownLink LinkKind = iota
	SchoolLink
	PlayerLink
	GameLink
)

func (k LinkKind) String() string {
	switch k {
	case SchoolLink:
		return "school"
	case PlayerLink:
		return "player"
	case GameLink:
		return "game"
	}
	return "unknown"
}

// ClassifyLink decides what an href refers to and pulls out the identifier
// embedded in it. The id is empty when the href carries none.
//
//	/contests/2143881/box_score     GameLink   2143881
//	/teams/531234                   SchoolLink 531234
//	/team/167/15860                 SchoolLink 167
//	/players/7185433                PlayerLink 7185433
//	/player/index?stats_player_seq=2486499&id=15860   PlayerLink 2486499
func ClassifyLink(href string) (LinkKind, string) {
	href = strings.TrimSpace(href)
	if href == "" {
		return UnknownLink, ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return UnknownLink, trailingID(strings.Split(href, "/"))
	}
	segs := splitPath(u.Path)

	switch {
	case strings.Contains(href, "box_score"):
		if n := len(segs); n >= 2 && segs[n-1] == "box_score" {
			return GameLink, digits(segs[n-2])
		}
		return GameLink, trailingID(segs)
	case strings.Contains(href, "/teams/") || strings.Contains(href, "/team/"):
		for i, s := range segs {
			if (s == "teams" || s == "team") && i+1 < len(segs) {
				return SchoolLink, digits(segs[i+1])
			}
		}
		return SchoolLink, trailingID(segs)
	case strings.Contains(href, "player"):
		if seq := u.Query().Get("stats_player_seq"); seq != "" {
			return PlayerLink, digits(seq)
		}
		if id := trailingID(segs); id != "" {
			return PlayerLink, id
		}
		// older pages put the seq in the last query pair
		if i := strings.LastIndex(href, "="); i >= 0 {
			return PlayerLink, digits(href[i+1:])
		}
		return PlayerLink, ""
	}
	return UnknownLink, trailingID(segs)
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// trailingID returns the last all-digit segment.
func trailingID(segs []string) string {
	for i := len(segs) - 1; i >= 0; i-- {
		if s := segs[i]; s != "" && isDigits(s) {
			return s
		}
	}
	return ""
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

func isDigits(s string) bool {
	for _, r := range s {
		if !isASCIIDigit(r) {
			return false
		}
	}
	return s != ""
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isASCIIDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
