package ncaa

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the live site.
const DefaultBaseURL = "https://stats.ncaa.org"

// TeamGameLogSeq is the stats_player_seq that selects a team's own log.
const TeamGameLogSeq = -100

// TeamStatsURL addresses a team's season stat grid. A zero splitID omits
// available_stat_id.
func TeamStatsURL(base string, schoolID, seasonID, categoryID, splitID int) string {
	q := url.Values{}
	q.Set("game_sport_year_ctl_id", strconv.Itoa(seasonID))
	q.Set("id", strconv.Itoa(seasonID))
	q.Set("year_stat_category_id", strconv.Itoa(categoryID))
	if splitID != 0 {
		q.Set("available_stat_id", strconv.Itoa(splitID))
	}
	return trimBase(base) + "/team/" + strconv.Itoa(schoolID) + "/stats?" + q.Encode()
}

// GameByGameURL addresses a game-by-game log. Pass TeamGameLogSeq for the
// team log.
func GameByGameURL(base string, seasonID, orgID int, playerSeq int64, categoryID int) string {
	q := url.Values{}
	q.Set("game_sport_year_ctl_id", strconv.Itoa(seasonID))
	q.Set("org_id", strconv.Itoa(orgID))
	q.Set("stats_player_seq", strconv.FormatInt(playerSeq, 10))
	q.Set("year_stat_category_id", strconv.Itoa(categoryID))
	return trimBase(base) + "/player/game_by_game?" + q.Encode()
}

// RosterURL addresses a season roster. It takes no query parameters.
func RosterURL(base string, schoolID, seasonID int) string {
	return trimBase(base) + "/team/" + strconv.Itoa(schoolID) + "/roster/" + strconv.Itoa(seasonID)
}

// CareerURL addresses a player's career page.
func CareerURL(base string, seasonID int, playerSeq int64, categoryID int) string {
	q := url.Values{}
	q.Set("id", strconv.Itoa(seasonID))
	q.Set("stats_player_seq", strconv.FormatInt(playerSeq, 10))
	q.Set("year_stat_category_id", strconv.Itoa(categoryID))
	return trimBase(base) + "/player/index?" + q.Encode()
}

func trimBase(base string) string {
	if base == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}
