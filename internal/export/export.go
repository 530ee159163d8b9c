// Package export writes normalized tables and row sets to disk.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/store"
)

// Formats accepted by Writer.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// Writer places exports under a directory.
type Writer struct {
	Dir    string
	Format string
}

// NewWriter validates format and creates dir.
func NewWriter(dir, format string) (*Writer, error) {
	if format != FormatParquet && format != FormatCSV {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	return &Writer{Dir: dir, Format: format}, nil
}

// FileName is the base name for a team-season export, e.g. rosters_167_2022.parquet.
func (w *Writer) FileName(kind string, schoolID, season int) string {
	return fmt.Sprintf("%s_%d_%d.%s", kind, schoolID, season, w.Format)
}

// Rosters writes roster rows and returns the file path.
func (w *Writer) Rosters(rows []store.RosterRow, schoolID, season int) (string, error) {
	path := filepath.Join(w.Dir, w.FileName("rosters", schoolID, season))
	if w.Format == FormatCSV {
		return path, WriteTableCSV(path, rosterTable(rows))
	}
	return path, WriteParquet(path, rows)
}

// Results writes result rows and returns the file path.
func (w *Writer) Results(rows []store.ResultRow, schoolID, season int) (string, error) {
	path := filepath.Join(w.Dir, w.FileName("results", schoolID, season))
	if w.Format == FormatCSV {
		return path, WriteTableCSV(path, store.ResultTable(rows))
	}
	return path, WriteParquet(path, rows)
}

// Table writes a normalized table. Tables have no fixed schema, so they are
// always CSV.
func (w *Writer) Table(t *normalize.Table, kind string, schoolID, season int) (string, error) {
	name := fmt.Sprintf("%s_%d_%d.csv", kind, schoolID, season)
	path := filepath.Join(w.Dir, name)
	return path, WriteTableCSV(path, t)
}

// WriteParquet writes rows with snappy compression. Nothing is written for
// an empty slice.
func WriteParquet[T any](path string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := parquet.NewWriter(f, parquet.SchemaOf(new(T)), parquet.Compression(&parquet.Snappy))
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			_ = w.Close()
			_ = f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteTableCSV writes a header row followed by every record in column
// order. Missing values are empty cells.
func WriteTableCSV(path string, t *normalize.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		_ = f.Close()
		return err
	}
	for _, r := range t.Records {
		if err := w.Write(t.Strings(r)); err != nil {
			_ = f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func rosterTable(rows []store.RosterRow) *normalize.Table {
	t := &normalize.Table{Columns: []string{
		"season", "school_id", "stats_player_seq", "season_id", "school", "name", "jersey",
		"position", "height", "class_year", "games_played", "games_started",
	}}
	for _, r := range rows {
		t.Records = append(t.Records, normalize.Record{
			"season":           int64(r.Season),
			"school_id":        int64(r.SchoolID),
			"stats_player_seq": r.StatsPlayerSeq,
			"season_id":        int64(r.SeasonID),
			"school":           r.School,
			"name":             r.Name,
			"jersey":           int64(r.Jersey),
			"position":         r.Position,
			"height":           r.Height,
			"class_year":       r.ClassYear,
			"games_played":     int64(r.GamesPlayed),
			"games_started":    int64(r.GamesStarted),
		})
	}
	return t
}
