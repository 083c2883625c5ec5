package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenakit/competition-system/models"
)

var ErrCompetitorNotFound = errors.New("competitor not found")

// CompetitorRepository maintains the career win/loss/draw tally kept on
// the player profile or team aggregate, independent of per-ladder or
// per-tournament records.
type CompetitorRepository interface {
	IncrementRecord(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType, outcome models.Outcome) error
	GetRecord(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType) (*models.CareerRecord, error)

	// GetContactEmail resolves where notifications for a competitor go:
	// the player's address, or the team captain's.
	GetContactEmail(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType) (string, error)
}

type postgresCompetitorRepository struct {
	db *sql.DB
}

func NewPostgresCompetitorRepository(db *sql.DB) CompetitorRepository {
	return &postgresCompetitorRepository{db: db}
}

func (r *postgresCompetitorRepository) IncrementRecord(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType, outcome models.Outcome) error {
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

	query := `UPDATE ` + r.table(competitorType) + ` SET ` + counter + ` = ` + counter + ` + 1 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, competitorID)
	if err != nil {
		return fmt.Errorf("failed to increment %s career record for %s %d: %w", counter, competitorType, competitorID, err)
	}
	return checkAffectedRows(res, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) GetRecord(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType) (*models.CareerRecord, error) {
	query := `SELECT wins, losses, draws FROM ` + r.table(competitorType) + ` WHERE id = $1`

	record := &models.CareerRecord{
		CompetitorID:   competitorID,
		CompetitorType: competitorType,
	}
	err := r.db.QueryRowContext(ctx, query, competitorID).Scan(&record.Wins, &record.Losses, &record.Draws)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitorNotFound
		}
		return nil, fmt.Errorf("failed to scan career record for %s %d: %w", competitorType, competitorID, err)
	}
	return record, nil
}

func (r *postgresCompetitorRepository) GetContactEmail(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType) (string, error) {
	var query string
	if competitorType == models.CompetitorTeam {
		query = `SELECT p.email FROM players p JOIN teams t ON t.captain_id = p.id WHERE t.id = $1`
	} else {
		query = `SELECT email FROM players WHERE id = $1`
	}

	var email string
	err := r.db.QueryRowContext(ctx, query, competitorID).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCompetitorNotFound
		}
		return "", fmt.Errorf("failed to resolve contact email for %s %d: %w", competitorType, competitorID, err)
	}
	return email, nil
}

func (r *postgresCompetitorRepository) table(competitorType models.CompetitorType) string {
	if competitorType == models.CompetitorTeam {
		return "teams"
	}
	return "players"
}
