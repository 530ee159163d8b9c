// Package normalize retypes decoded rows into stable records: placeholders
// become zero, names are reformatted, site labels are renamed, counts and
// rates get concrete types, the season is back-filled and untrusted columns
// are dropped.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fortuna/collegebaseball/internal/decode"
	"github.com/fortuna/collegebaseball/internal/schema"
)

// Placeholders are the site's "no value" tokens.
var Placeholders = []string{"", " ", "-", "--", "---", "  -", "- -", "-  ", "None", "<NA>"}

// Renames maps site labels to the stable vocabulary.
var Renames = map[string]string{
	"Player":  "name",
	"Pos":     "pos",
	"Team":    "school_id",
	"Pitches": "pitches",
}

// Untrusted columns are recomputed downstream or unreliable on the site.
var Untrusted = []string{"OBPct", "BA", "SlgPct", "RBI2out", "G"}

// Options carry context the rows do not.
type Options struct {
	// Season back-fills the season column when no date or Year column
	// supplies one.
	Season int
}

var nonDigits = regexp.MustCompile(`\D+`)

var placeholderSet = func() map[string]bool {
	m := make(map[string]bool, len(Placeholders))
	for _, p := range Placeholders {
		m[p] = true
	}
	return m
}()

// IsPlaceholder reports whether a raw cell is a "no value" token.
func IsPlaceholder(s string) bool { return placeholderSet[s] }

// Normalize types rows laid out by columns. The category is recorded only
// for error context; the type table is keyed by column name alone.
//
// Only structural problems fail: an empty layout or a row whose width does
// not match it. Bad cells fall back to zero or Missing.
func Normalize(rows []decode.RawRow, columns []string, category schema.Category, opts Options) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("normalize %s: empty column layout", category)
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("normalize %s: row %d has %d cells, layout has %d", category, i, len(r), len(columns))
		}
	}

	cols := append([]string(nil), columns...)
	grid := make([][]any, len(rows))
	for i, r := range rows {
		grid[i] = eliminatePlaceholders(r)
	}

	// names are reformatted before the rename so both labels are covered
	for j, c := range cols {
		if c != "Player" && c != "name" {
			continue
		}
		for _, row := range grid {
			row[j] = formatNameValue(row[j])
		}
	}

	for j, c := range cols {
		if to, ok := Renames[c]; ok {
			cols[j] = to
		}
	}

	for j, c := range cols {
		if c == "name" {
			continue
		}
		for _, row := range grid {
			if s, ok := row[j].(string); ok {
				row[j] = strings.ReplaceAll(s, ",", "")
			}
		}
	}

	for j, c := range cols {
		conv := converterFor(c)
		for _, row := range grid {
			row[j] = conv(row[j])
		}
	}

	cols, grid = backfillSeason(cols, grid, opts.Season)
	keep := keptColumns(cols)

	t := &Table{Records: make([]Record, 0, len(grid))}
	for _, j := range keep {
		t.Columns = append(t.Columns, cols[j])
	}
	for _, row := range grid {
		rec := make(Record, len(keep))
		for _, j := range keep {
			rec[cols[j]] = row[j]
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func eliminatePlaceholders(r decode.RawRow) []any {
	out := make([]any, len(r))
	for i, cell := range r {
		if IsPlaceholder(cell) {
			out[i] = 0.0
		} else {
			out[i] = cell
		}
	}
	return out
}

func formatNameValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return Missing
	}
	name, ok := FormatName(s)
	if !ok {
		return Missing
	}
	return name
}

// backfillSeason derives the season from a trailing year in date, else a
// leading year in Year, else the given default. A row whose date or Year
// cell yields no year also takes the default. Year is always dropped.
func backfillSeason(cols []string, grid [][]any, season int) ([]string, [][]any) {
	dateAt, yearAt, seasonAt := -1, -1, -1
	for j, c := range cols {
		switch c {
		case "date":
			if dateAt < 0 {
				dateAt = j
			}
		case "Year":
			if yearAt < 0 {
				yearAt = j
			}
		case "season":
			if seasonAt < 0 {
				seasonAt = j
			}
		}
	}

	var derive func(row []any) any
	switch {
	case dateAt >= 0:
		derive = func(row []any) any { return yearSuffix(row[dateAt]) }
	case yearAt >= 0:
		derive = func(row []any) any { return yearPrefix(row[yearAt]) }
	case seasonAt < 0 && season != 0:
		derive = func([]any) any { return int64(season) }
	default:
		return cols, grid
	}
	if season != 0 {
		fromCell := derive
		derive = func(row []any) any {
			if v := fromCell(row); !IsMissing(v) {
				return v
			}
			return int64(season)
		}
	}

	if seasonAt < 0 {
		cols = append(cols, "season")
		for i, row := range grid {
			grid[i] = append(row, derive(row))
		}
	} else {
		for _, row := range grid {
			row[seasonAt] = derive(row)
		}
	}
	if yearAt >= 0 {
		cols[yearAt] = dropMarker
	}
	return cols, grid
}

const dropMarker = "\x00drop"

func yearSuffix(v any) any {
	s, ok := v.(string)
	if !ok || len(s) < 4 {
		return Missing
	}
	n, err := strconv.ParseInt(s[len(s)-4:], 10, 64)
	if err != nil {
		return Missing
	}
	return n
}

func yearPrefix(v any) any {
	s, ok := v.(string)
	if !ok || len(s) < 4 {
		return Missing
	}
	n, err := strconv.ParseInt(s[:4], 10, 64)
	if err != nil {
		return Missing
	}
	return n
}

// keptColumns returns the indexes that survive the untrusted-column drop and
// de-duplication, first occurrence winning.
func keptColumns(cols []string) []int {
	drop := make(map[string]bool, len(Untrusted))
	for _, c := range Untrusted {
		drop[c] = true
	}
	seen := make(map[string]bool, len(cols))
	var keep []int
	for j, c := range cols {
		if c == dropMarker || drop[c] || seen[c] {
			continue
		}
		seen[c] = true
		keep = append(keep, j)
	}
	return keep
}
