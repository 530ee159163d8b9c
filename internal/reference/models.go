package reference

// Season maps a calendar season to the site's internal ids.
type Season struct {
	Season     int `parquet:"season" json:"season"`
	SeasonID   int `parquet:"season_id" json:"season_id"`
	BattingID  int `parquet:"batting_id" json:"batting_id"`
	PitchingID int `parquet:"pitching_id" json:"pitching_id"`
	FieldingID int `parquet:"fielding_id" json:"fielding_id"`
}

// SeasonContext is a resolved season, optionally scoped to a division.
type SeasonContext struct {
	Season
	Division int `json:"division,omitempty"`
}

// School is one row of the school lookup table. BDName is the spelling
// boydsworld.com uses; it is empty when the school has no alternate name.
type School struct {
	SchoolID int    `parquet:"school_id" json:"school_id"`
	NCAAName string `parquet:"ncaa_name" json:"ncaa_name"`
	BDName   string `parquet:"bd_name,optional" json:"bd_name,omitempty"`
	Division int    `parquet:"division" json:"division"`
}

// SchoolContext is the canonical form every school input resolves to.
type SchoolContext struct {
	SchoolID      int    `json:"school_id"`
	CanonicalName string `json:"school"`
	Division      int    `json:"division"`
}

// Context returns the canonical context for the school.
func (s School) Context() SchoolContext {
	return SchoolContext{SchoolID: s.SchoolID, CanonicalName: s.NCAAName, Division: s.Division}
}

// Player maps a player name at a school to a stats_player_seq.
type Player struct {
	Name           string `parquet:"name" json:"name"`
	School         string `parquet:"school" json:"school"`
	StatsPlayerSeq int64  `parquet:"stats_player_seq" json:"stats_player_seq"`
}

// RosterEntry places a player on a school's roster for one season.
type RosterEntry struct {
	StatsPlayerSeq int64  `parquet:"stats_player_seq" json:"stats_player_seq"`
	Season         int    `parquet:"season" json:"season"`
	Name           string `parquet:"name" json:"name"`
	School         string `parquet:"school" json:"school"`
	SchoolID       int    `parquet:"school_id" json:"school_id"`
	Division       int    `parquet:"division,optional" json:"division,omitempty"`
}

// PlayerHistory records the first and last season a player appeared.
type PlayerHistory struct {
	StatsPlayerSeq int64 `parquet:"stats_player_seq" json:"stats_player_seq"`
	DebutSeason    int   `parquet:"debut_season" json:"debut_season"`
	SeasonLast     int   `parquet:"season_last" json:"season_last"`
}

// LinearWeights holds league run values for one season and division.
type LinearWeights struct {
	Season    int     `parquet:"season" json:"season"`
	Division  int     `parquet:"division" json:"division"`
	WOBA      float64 `parquet:"wOBA" json:"wOBA"`
	WOBAScale float64 `parquet:"wOBAScale" json:"wOBAScale"`
	WBB       float64 `parquet:"wBB" json:"wBB"`
	WHBP      float64 `parquet:"wHBP" json:"wHBP"`
	W1B       float64 `parquet:"w1B" json:"w1B"`
	W2B       float64 `parquet:"w2B" json:"w2B"`
	W3B       float64 `parquet:"w3B" json:"w3B"`
	WHR       float64 `parquet:"wHR" json:"wHR"`
	RPerPA    float64 `parquet:"R/PA" json:"R/PA"`
	CFIP      float64 `parquet:"cFIP" json:"cFIP"`
}

// Tables is the raw content of every reference file.
type Tables struct {
	Seasons        []Season
	Schools        []School
	Players        []Player
	Rosters        []RosterEntry
	PlayersHistory []PlayerHistory
	LinearWeights  []LinearWeights
}
