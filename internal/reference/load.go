package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Logical names of the reference files. Each may be stored as
// <name>.parquet or <name>.csv inside the reference directory.
const (
	SeasonsFile        = "seasons"
	SchoolsFile        = "schools"
	PlayersFile        = "players"
	RostersFile        = "rosters"
	PlayersHistoryFile = "players_history"
	LinearWeightsFile  = "linear_weights"
)

// Load reads every reference table under dir. Seasons, schools and linear
// weights are required; the player tables may be absent.
func Load(dir string) (*Bundle, error) {
	var t Tables
	var err error

	if t.Seasons, err = loadTable(dir, SeasonsFile, true, seasonFromCSV); err != nil {
		return nil, err
	}
	if t.Schools, err = loadTable(dir, SchoolsFile, true, schoolFromCSV); err != nil {
		return nil, err
	}
	if t.LinearWeights, err = loadTable(dir, LinearWeightsFile, true, weightsFromCSV); err != nil {
		return nil, err
	}
	if t.Players, err = loadTable(dir, PlayersFile, false, playerFromCSV); err != nil {
		return nil, err
	}
	if t.Rosters, err = loadTable(dir, RostersFile, false, rosterFromCSV); err != nil {
		return nil, err
	}
	if t.PlayersHistory, err = loadTable(dir, PlayersHistoryFile, false, historyFromCSV); err != nil {
		return nil, err
	}

	return New(t), nil
}

func loadTable[T any](dir, name string, required bool, fromCSV func(csvRecord) (T, error)) ([]T, error) {
	pq := filepath.Join(dir, name+".parquet")
	if _, err := os.Stat(pq); err == nil {
		rows, err := parquet.ReadFile[T](pq)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", pq, err)
		}
		return rows, nil
	}

	path := filepath.Join(dir, name+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("opening reference table %s: %w", name, err)
	}
	defer f.Close()

	rows, err := readCSV(f, fromCSV)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

type csvRecord struct {
	header map[string]int
	fields []string
	line   int
}

func (r csvRecord) str(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r csvRecord) asInt(col string) (int, error) {
	raw := r.str(col)
	if raw == "" {
		return 0, nil
	}
	// parquet exports sometimes leave integer columns as floats
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	return int(f), nil
}

func (r csvRecord) asInt64(col string) (int64, error) {
	raw := r.str(col)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	return n, nil
}

func (r csvRecord) asFloat(col string) (float64, error) {
	raw := r.str(col)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	return f, nil
}

func readCSV[T any](r io.Reader, fromCSV func(csvRecord) (T, error)) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var out []T
	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := fromCSV(csvRecord{header: header, fields: fields, line: line})
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func seasonFromCSV(r csvRecord) (Season, error) {
	var s Season
	var err error
	if s.Season, err = r.asInt("season"); err != nil {
		return s, err
	}
	if s.SeasonID, err = r.asInt("season_id"); err != nil {
		return s, err
	}
	if s.BattingID, err = r.asInt("batting_id"); err != nil {
		return s, err
	}
	if s.PitchingID, err = r.asInt("pitching_id"); err != nil {
		return s, err
	}
	s.FieldingID, err = r.asInt("fielding_id")
	return s, err
}

func schoolFromCSV(r csvRecord) (School, error) {
	s := School{NCAAName: r.str("ncaa_name"), BDName: r.str("bd_name")}
	var err error
	if s.SchoolID, err = r.asInt("school_id"); err != nil {
		return s, err
	}
	s.Division, err = r.asInt("division")
	return s, err
}

func playerFromCSV(r csvRecord) (Player, error) {
	p := Player{Name: r.str("name"), School: r.str("school")}
	var err error
	p.StatsPlayerSeq, err = r.asInt64("stats_player_seq")
	return p, err
}

func rosterFromCSV(r csvRecord) (RosterEntry, error) {
	e := RosterEntry{Name: r.str("name"), School: r.str("school")}
	var err error
	if e.StatsPlayerSeq, err = r.asInt64("stats_player_seq"); err != nil {
		return e, err
	}
	if e.Season, err = r.asInt("season"); err != nil {
		return e, err
	}
	if e.SchoolID, err = r.asInt("school_id"); err != nil {
		return e, err
	}
	e.Division, err = r.asInt("division")
	return e, err
}

func historyFromCSV(r csvRecord) (PlayerHistory, error) {
	var h PlayerHistory
	var err error
	if h.StatsPlayerSeq, err = r.asInt64("stats_player_seq"); err != nil {
		return h, err
	}
	if h.DebutSeason, err = r.asInt("debut_season"); err != nil {
		return h, err
	}
	h.SeasonLast, err = r.asInt("season_last")
	return h, err
}

func weightsFromCSV(r csvRecord) (LinearWeights, error) {
	var w LinearWeights
	var err error
	if w.Season, err = r.asInt("season"); err != nil {
		return w, err
	}
	if w.Division, err = r.asInt("division"); err != nil {
		return w, err
	}
	floats := []struct {
		col string
		dst *float64
	}{
		{"wOBA", &w.WOBA}, {"wOBAScale", &w.WOBAScale}, {"wBB", &w.WBB},
		{"wHBP", &w.WHBP}, {"w1B", &w.W1B}, {"w2B", &w.W2B}, {"w3B", &w.W3B},
		{"wHR", &w.WHR}, {"R/PA", &w.RPerPA}, {"cFIP", &w.CFIP},
	}
	for _, f := range floats {
		if *f.dst, err = r.asFloat(f.col); err != nil {
			return w, err
		}
	}
	return w, nil
}
