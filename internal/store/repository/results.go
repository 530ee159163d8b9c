package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/collegebaseball/internal/store"
)

// ResultsRepository handles team results.
type ResultsRepository struct {
	db *store.Database
}

// NewResultsRepository creates a new results repository
func NewResultsRepository(db *store.Database) *ResultsRepository {
	return &ResultsRepository{db: db}
}

// Upsert writes rows in one transaction.
func (r *ResultsRepository) Upsert(ctx context.Context, rows []store.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO team_results (
			school_id, season, date, opponent_name, game_id, season_id, field, opponent_id,
			innings_played, extras, runs_scored, runs_allowed, run_difference, result, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (school_id, season, date, opponent_name, game_id) DO UPDATE SET
			field = EXCLUDED.field,
			opponent_id = EXCLUDED.opponent_id,
			innings_played = EXCLUDED.innings_played,
			extras = EXCLUDED.extras,
			runs_scored = EXCLUDED.runs_scored,
			runs_allowed = EXCLUDED.runs_allowed,
			run_difference = EXCLUDED.run_difference,
			result = EXCLUDED.result,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("preparing results upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.SchoolID, row.Season, row.Date, row.OpponentName, row.GameID, row.SeasonID,
			row.Field, row.OpponentID, row.InningsPlayed, row.Extras, row.RunsScored,
			row.RunsAllowed, row.RunDifference, row.Result,
		)
		if err != nil {
			return fmt.Errorf("upserting result %s vs %s: %w", row.Date, row.OpponentName, err)
		}
	}
	return tx.Commit()
}

// ListBySchool returns a school's results for a season in date order.
func (r *ResultsRepository) ListBySchool(ctx context.Context, schoolID, season int) ([]store.ResultRow, error) {
	query := `
		SELECT school_id, season, date, opponent_name, game_id, season_id, field, opponent_id,
			innings_played, extras, runs_scored, runs_allowed, run_difference, result
		FROM team_results
		WHERE school_id = $1 AND season = $2
		ORDER BY to_date(date, 'MM/DD/YYYY'), game_id
	`
	rows, err := r.db.DB().QueryContext(ctx, query, schoolID, season)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []store.ResultRow
	for rows.Next() {
		var row store.ResultRow
		if err := rows.Scan(
			&row.SchoolID, &row.Season, &row.Date, &row.OpponentName, &row.GameID, &row.SeasonID,
			&row.Field, &row.OpponentID, &row.InningsPlayed, &row.Extras, &row.RunsScored,
			&row.RunsAllowed, &row.RunDifference, &row.Result,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
