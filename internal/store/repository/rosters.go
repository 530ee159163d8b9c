package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/collegebaseball/internal/store"
)

// RosterRepository handles roster rows.
type RosterRepository struct {
	db *store.Database
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db *store.Database) *RosterRepository {
	return &RosterRepository{db: db}
}

// Upsert writes rows in one transaction.
func (r *RosterRepository) Upsert(ctx context.Context, rows []store.RosterRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rosters (
			season, school_id, stats_player_seq, season_id, school, name, jersey,
			position, height, class_year, games_played, games_started, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (season, school_id, stats_player_seq) DO UPDATE SET
			season_id = EXCLUDED.season_id,
			school = EXCLUDED.school,
			name = EXCLUDED.name,
			jersey = EXCLUDED.jersey,
			position = EXCLUDED.position,
			height = COALESCE(EXCLUDED.height, rosters.height),
			class_year = EXCLUDED.class_year,
			games_played = EXCLUDED.games_played,
			games_started = EXCLUDED.games_started,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("preparing roster upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Season, row.SchoolID, row.StatsPlayerSeq, row.SeasonID, row.School,
			nullString(row.Name), row.Jersey, nullString(row.Position), nullString(row.Height),
			nullString(row.ClassYear), row.GamesPlayed, row.GamesStarted,
		)
		if err != nil {
			return fmt.Errorf("upserting roster player %d: %w", row.StatsPlayerSeq, err)
		}
	}
	return tx.Commit()
}

// ListBySchool returns a school's roster for a season ordered by jersey.
func (r *RosterRepository) ListBySchool(ctx context.Context, schoolID, season int) ([]store.RosterRow, error) {
	query := `
		SELECT season, school_id, stats_player_seq, season_id, school, COALESCE(name, ''),
			COALESCE(jersey, 0), COALESCE(position, ''), COALESCE(height, ''), COALESCE(class_year, ''),
			games_played, games_started
		FROM rosters
		WHERE school_id = $1 AND season = $2
		ORDER BY jersey, stats_player_seq
	`
	rows, err := r.db.DB().QueryContext(ctx, query, schoolID, season)
	if err != nil {
		return nil, fmt.Errorf("querying roster: %w", err)
	}
	defer rows.Close()

	var out []store.RosterRow
	for rows.Next() {
		var row store.RosterRow
		if err := rows.Scan(
			&row.Season, &row.SchoolID, &row.StatsPlayerSeq, &row.SeasonID, &row.School, &row.Name,
			&row.Jersey, &row.Position, &row.Height, &row.ClassYear, &row.GamesPlayed, &row.GamesStarted,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
