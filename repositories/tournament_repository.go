package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenakit/competition-system/models"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentStatusConflict = errors.New("tournament is no longer in the expected status")
	ErrTournamentEntryNotFound  = errors.New("tournament entry not found")
)

type TournamentRepository interface {
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	ListEntries(ctx context.Context, tournamentID int) ([]*models.TournamentEntry, error)
	CountEntries(ctx context.Context, tournamentID int) (int, error)
	UpdateEntrySeed(ctx context.Context, exec SQLExecutor, entryID int, seed int) error
	ClearSeeds(ctx context.Context, exec SQLExecutor, tournamentID int) error

	// UpdateStatus moves the tournament between statuses conditionally,
	// so two racing seeding or completion calls cannot both win.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, expected, next models.TournamentStatus) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `
		SELECT id, name, competitor_type, bracket_size, status, start_date, created_at
		FROM tournaments
		WHERE id = $1`

	tournament := &models.Tournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tournament.ID,
		&tournament.Name,
		&tournament.CompetitorType,
		&tournament.BracketSize,
		&tournament.Status,
		&tournament.StartDate,
		&tournament.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) ListEntries(ctx context.Context, tournamentID int) ([]*models.TournamentEntry, error) {
	query := `
		SELECT id, tournament_id, competitor_id, competitor_type, seed, created_at
		FROM tournament_entries
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entries := make([]*models.TournamentEntry, 0)
	for rows.Next() {
		entry := &models.TournamentEntry{}
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.TournamentID,
			&entry.CompetitorID,
			&entry.CompetitorType,
			&entry.Seed,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament entry row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament entry rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresTournamentRepository) CountEntries(ctx context.Context, tournamentID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM tournament_entries WHERE tournament_id = $1`
	if err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) UpdateEntrySeed(ctx context.Context, exec SQLExecutor, entryID int, seed int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_entries SET seed = $1 WHERE id = $2`
	res, err := executor.ExecContext(ctx, query, seed, entryID)
	if err != nil {
		return fmt.Errorf("failed to update seed for entry %d: %w", entryID, err)
	}
	return checkAffectedRows(res, ErrTournamentEntryNotFound)
}

func (r *postgresTournamentRepository) ClearSeeds(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_entries SET seed = NULL WHERE tournament_id = $1`
	_, err := executor.ExecContext(ctx, query, tournamentID)
	return err
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, expected, next models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	res, err := executor.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrTournamentStatusConflict
	}
	return nil
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}
