package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fortuna/collegebaseball/internal/normalize"
	"github.com/fortuna/collegebaseball/internal/store"
)

// StatsRepository stores normalized tables as JSONB.
type StatsRepository struct {
	db *store.Database
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *store.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

// SaveTable upserts a table under key.
func (r *StatsRepository) SaveTable(ctx context.Context, key store.TableKey, t *normalize.Table) error {
	columns, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("encoding columns: %w", err)
	}
	records, err := json.Marshal(t.Records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	query := `
		INSERT INTO stat_tables (kind, category, season, school_id, split, subject, columns, records, row_count, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (kind, category, season, school_id, split, subject) DO UPDATE SET
			columns = EXCLUDED.columns,
			records = EXCLUDED.records,
			row_count = EXCLUDED.row_count,
			fetched_at = NOW()
	`
	_, err = r.db.DB().ExecContext(ctx, query,
		key.Kind, key.Category, key.Season, key.SchoolID, key.Split, key.Subject,
		columns, records, t.Len(),
	)
	if err != nil {
		return fmt.Errorf("saving %s table: %w", key.Kind, err)
	}
	return nil
}

// LoadTable returns the table stored under key, or store.ErrNotFound.
func (r *StatsRepository) LoadTable(ctx context.Context, key store.TableKey) (*store.StoredTable, error) {
	query := `
		SELECT columns, records, fetched_at
		FROM stat_tables
		WHERE kind = $1 AND category = $2 AND season = $3 AND school_id = $4 AND split = $5 AND subject = $6
	`

	var columns, records []byte
	out := &store.StoredTable{Key: key}
	err := r.db.DB().QueryRowContext(ctx, query,
		key.Kind, key.Category, key.Season, key.SchoolID, key.Split, key.Subject,
	).Scan(&columns, &records, &out.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s table %d/%d: %w", key.Kind, key.SchoolID, key.Season, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying stat table: %w", err)
	}

	t, err := DecodeTable(columns, records)
	if err != nil {
		return nil, err
	}
	out.Table = t
	return out, nil
}

// ListKeys returns the keys stored for a school and season.
func (r *StatsRepository) ListKeys(ctx context.Context, schoolID, season int) ([]store.TableKey, error) {
	query := `
		SELECT kind, category, season, school_id, split, subject
		FROM stat_tables
		WHERE school_id = $1 AND season = $2
		ORDER BY kind, category, split, subject
	`
	rows, err := r.db.DB().QueryContext(ctx, query, schoolID, season)
	if err != nil {
		return nil, fmt.Errorf("listing stat tables: %w", err)
	}
	defer rows.Close()

	var keys []store.TableKey
	for rows.Next() {
		var k store.TableKey
		if err := rows.Scan(&k.Kind, &k.Category, &k.Season, &k.SchoolID, &k.Split, &k.Subject); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DecodeTable rebuilds a table from its stored columns and records.
func DecodeTable(columns, records []byte) (*normalize.Table, error) {
	doc := fmt.Sprintf(`{"columns":%s,"records":%s}`, columns, records)
	t := &normalize.Table{}
	if err := json.Unmarshal([]byte(doc), t); err != nil {
		return nil, fmt.Errorf("decoding stored table: %w", err)
	}
	return t, nil
}
