package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenakit/competition-system/models"
	"github.com/lib/pq"
)

var (
	ErrLadderNotFound      = errors.New("ladder not found")
	ErrLadderEntryNotFound = errors.New("ladder entry not found")
	ErrLadderEntryInvalid  = errors.New("ladder entry conflict or invalid")
)

type LadderRepository interface {
	GetByID(ctx context.Context, id int) (*models.Ladder, error)
	GetEntry(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (*models.LadderEntry, error)
	ListEntries(ctx context.Context, ladderID int) ([]*models.LadderEntry, error)

	// ApplyOutcome bumps one entry's counters and points in a single
	// atomic increment (points = points + delta), never through an
	// application-level read-modify-write, and refreshes last activity.
	ApplyOutcome(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType, outcome models.Outcome, pointsDelta int) error

	// Rank computes a competitor's 1-based rank on read: one plus the
	// number of entries on the same ladder with strictly greater points.
	Rank(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error)
}

type postgresLadderRepository struct {
	db *sql.DB
}

func NewPostgresLadderRepository(db *sql.DB) LadderRepository {
	return &postgresLadderRepository{db: db}
}

func (r *postgresLadderRepository) GetByID(ctx context.Context, id int) (*models.Ladder, error) {
	query := `
		SELECT id, name, competitor_type, win_points, loss_points, draw_points, created_at
		FROM ladders
		WHERE id = $1`

	ladder := &models.Ladder{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ladder.ID,
		&ladder.Name,
		&ladder.CompetitorType,
		&ladder.WinPoints,
		&ladder.LossPoints,
		&ladder.DrawPoints,
		&ladder.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLadderNotFound
		}
		return nil, fmt.Errorf("failed to scan ladder by id %d: %w", id, err)
	}
	return ladder, nil
}

const ladderEntryColumns = `
	id, ladder_id, competitor_id, competitor_type, points, wins, losses, draws,
	streak, best_streak, worst_streak, last_activity`

func (r *postgresLadderRepository) GetEntry(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (*models.LadderEntry, error) {
	query := `SELECT ` + ladderEntryColumns + `
		FROM ladder_entries
		WHERE ladder_id = $1 AND competitor_id = $2 AND competitor_type = $3`
	return r.scanEntry(r.db.QueryRowContext(ctx, query, ladderID, competitorID, competitorType))
}

func (r *postgresLadderRepository) ListEntries(ctx context.Context, ladderID int) ([]*models.LadderEntry, error) {
	query := `SELECT ` + ladderEntryColumns + `
		FROM ladder_entries
		WHERE ladder_id = $1
		ORDER BY points DESC, competitor_id ASC`

	rows, err := r.db.QueryContext(ctx, query, ladderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ladder entries for ladder %d: %w", ladderID, err)
	}
	defer rows.Close()

	entries := make([]*models.LadderEntry, 0)
	for rows.Next() {
		entry, scanErr := r.scanEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during ladder entry rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresLadderRepository) ApplyOutcome(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType, outcome models.Outcome, pointsDelta int) error {
	var counter string
	switch outcome {
	case models.OutcomeWon:
		counter = "wins"
	case models.OutcomeLost:
		counter = "losses"
	case models.OutcomeDraw:
		counter = "draws"
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}

	query := `
		UPDATE ladder_entries SET
			` + counter + ` = ` + counter + ` + 1,
			points = points + $1,
			last_activity = NOW()
		WHERE ladder_id = $2 AND competitor_id = $3 AND competitor_type = $4`

	res, err := r.db.ExecContext(ctx, query, pointsDelta, ladderID, competitorID, competitorType)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint != "" {
			return ErrLadderEntryInvalid
		}
		return err
	}
	return checkAffectedRows(res, ErrLadderEntryNotFound)
}

func (r *postgresLadderRepository) Rank(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error) {
	query := `
		SELECT 1 + COUNT(*)
		FROM ladder_entries
		WHERE ladder_id = $1
		  AND points > (
			SELECT points FROM ladder_entries
			WHERE ladder_id = $1 AND competitor_id = $2 AND competitor_type = $3
		  )`

	var rank int
	err := r.db.QueryRowContext(ctx, query, ladderID, competitorID, competitorType).Scan(&rank)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrLadderEntryNotFound
		}
		return 0, fmt.Errorf("failed to compute rank on ladder %d: %w", ladderID, err)
	}
	return rank, nil
}

func (r *postgresLadderRepository) scanEntry(rowScanner interface{ Scan(...interface{}) error }) (*models.LadderEntry, error) {
	entry := &models.LadderEntry{}
	err := rowScanner.Scan(
		&entry.ID,
		&entry.LadderID,
		&entry.CompetitorID,
		&entry.CompetitorType,
		&entry.Points,
		&entry.Wins,
		&entry.Losses,
		&entry.Draws,
		&entry.Streak,
		&entry.BestStreak,
		&entry.WorstStreak,
		&entry.LastActivity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLadderEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan ladder entry: %w", err)
	}
	return entry, nil
}
