package normalize

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ColumnType is the concrete type a column is coerced to.
type ColumnType int

const (
	Untyped ColumnType = iota
	Int
	Float
	Bool
	String
	PlayerSeq
)

// Columns are keyed by their renamed label.
var columnTypes = func() map[string]ColumnType {
	m := map[string]ColumnType{
		"extras":           Bool,
		"ERA":              Float,
		"IP":               Float,
		"stats_player_seq": PlayerSeq,
	}
	for _, c := range []string{
		"division", "innings_played", "opponent_id", "season_id", "school_id", "game_id",
		"runs_scored", "runs_allowed", "run_difference", "season", "GP", "GS", "BB", "Jersey",
		"DP", "H", "R", "ER", "SO", "TB", "2B", "3B", "HR", "RBI", "AB", "HBP", "SF", "K", "SH",
		"Picked", "SB", "IBB", "CS", "OPP DP", "SHO", "BF", "P-OAB", "3B-A", "2B-A", "Bk",
		"HR-A", "WP", "Inh Run", "Inh Run Score", "SHA", "SFA", "GO", "FO", "W", "L", "HB",
		"SV", "KL", "pickoffs", "OrdAppeared", "App", "GDP", "PO", "A", "TC", "E", "CI", "PB",
		"SBA", "CSB", "IDP", "TP", "pitches",
		"jersey", "games_played", "games_started",
	} {
		m[c] = Int
	}
	for _, c := range []string{
		"Yr", "pos", "date", "Year", "school", "opponent_name", "school_name", "name",
		"field", "result", "position", "height", "class_year",
	} {
		m[c] = String
	}
	return m
}()

// TypeOf returns the coercion applied to a renamed column.
func TypeOf(col string) ColumnType { return columnTypes[col] }

func converterFor(col string) func(any) any {
	switch TypeOf(col) {
	case Int:
		return toInt
	case Float:
		return toRoundedFloat
	case Bool:
		return toBool
	case String:
		return keep
	case PlayerSeq:
		return toPlayerSeq
	default:
		return toFloatOrString
	}
}

func keep(v any) any { return v }

func toInt(v any) any {
	switch v := v.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return Missing
}

func toRoundedFloat(v any) any {
	var f float64
	switch v := v.(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Missing
		}
	default:
		return Missing
	}
	return Round(f, 4)
}

func toBool(v any) any {
	switch v := v.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Missing
		}
		return b
	}
	return Missing
}

func toPlayerSeq(v any) any {
	switch v := v.(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(nonDigits.ReplaceAllString(v, ""), 10, 64)
		if err != nil {
			return Missing
		}
		return n
	}
	return Missing
}

func toFloatOrString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

// Round rounds half away from zero to places decimals.
func Round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}
