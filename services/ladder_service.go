package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/repositories"
)

// CompetitorResult pairs a competitor with its final outcome in one
// confirmed match.
type CompetitorResult struct {
	CompetitorID   models.CompetitorRef
	CompetitorType models.CompetitorType
	Outcome        models.Outcome
}

type LadderService interface {
	// ApplyConfirmedResult applies a confirmed match's outcomes to the
	// ladder entries of both competitors: counter +1 and the ladder's
	// configured point delta, one atomic update per competitor.
	ApplyConfirmedResult(ctx context.Context, ladderID int, results []CompetitorResult) error

	// Standings lists the ladder's entries with their derived ranks.
	Standings(ctx context.Context, ladderID int) ([]*models.LadderStanding, error)

	Rank(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error)
}

type ladderService struct {
	ladderRepo repositories.LadderRepository
}

func NewLadderService(ladderRepo repositories.LadderRepository) LadderService {
	return &ladderService{ladderRepo: ladderRepo}
}

func (s *ladderService) ApplyConfirmedResult(ctx context.Context, ladderID int, results []CompetitorResult) error {
	ladder, err := s.ladderRepo.GetByID(ctx, ladderID)
	if err != nil {
		if errors.Is(err, repositories.ErrLadderNotFound) {
			return ErrLadderNotFound
		}
		return fmt.Errorf("failed to load ladder %d: %w", ladderID, err)
	}

	for _, result := range results {
		var delta int
		switch result.Outcome {
		case models.OutcomeWon:
			delta = ladder.WinPoints
		case models.OutcomeLost:
			delta = ladder.LossPoints
		case models.OutcomeDraw:
			delta = ladder.DrawPoints
		default:
			return fmt.Errorf("unknown outcome %q for competitor %d", result.Outcome, result.CompetitorID)
		}

		err := s.ladderRepo.ApplyOutcome(ctx, ladderID, result.CompetitorID, result.CompetitorType, result.Outcome, delta)
		if err != nil {
			return fmt.Errorf("failed to apply %s to %s %d on ladder %d: %w",
				result.Outcome, result.CompetitorType, result.CompetitorID, ladderID, err)
		}
	}
	return nil
}

func (s *ladderService) Standings(ctx context.Context, ladderID int) ([]*models.LadderStanding, error) {
	if _, err := s.ladderRepo.GetByID(ctx, ladderID); err != nil {
		if errors.Is(err, repositories.ErrLadderNotFound) {
			return nil, ErrLadderNotFound
		}
		return nil, fmt.Errorf("failed to load ladder %d: %w", ladderID, err)
	}

	entries, err := s.ladderRepo.ListEntries(ctx, ladderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for ladder %d: %w", ladderID, err)
	}

	// Entries come ordered by points descending. Rank is one plus the
	// number of entries with strictly greater points, so equal points
	// share a rank.
	standings := make([]*models.LadderStanding, len(entries))
	rank := 1
	for i, entry := range entries {
		if i > 0 && entry.Points < entries[i-1].Points {
			rank = i + 1
		}
		standings[i] = &models.LadderStanding{LadderEntry: *entry, Rank: rank}
	}
	return standings, nil
}

func (s *ladderService) Rank(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error) {
	rank, err := s.ladderRepo.Rank(ctx, ladderID, competitorID, competitorType)
	if err != nil {
		if errors.Is(err, repositories.ErrLadderEntryNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return rank, nil
}
