package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/repositories"
)

// ProgressionService is the coordinator invoked exactly once per match,
// at the moment it becomes confirmed. It branches the confirmed result
// into ladder standings or bracket advancement, then updates each
// competitor's career tally. It never mutates the match itself.
type ProgressionService interface {
	Dispatch(ctx context.Context, match *models.Match) error
}

type progressionService struct {
	ladders     LadderService
	tournaments TournamentService
	competitors repositories.CompetitorRepository
	logger      *slog.Logger
}

func NewProgressionService(
	ladders LadderService,
	tournaments TournamentService,
	competitors repositories.CompetitorRepository,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		ladders:     ladders,
		tournaments: tournaments,
		competitors: competitors,
		logger:      logger,
	}
}

func (s *progressionService) Dispatch(ctx context.Context, match *models.Match) error {
	if match.Status != models.MatchStatusConfirmed {
		return fmt.Errorf("cannot dispatch progression for match %d in status %s", match.ID, match.Status)
	}

	winner, loser, draw := match.Winner()

	// Each step is attempted even if an earlier one failed: the match
	// is already confirmed, so every derived update we do land is one
	// less for the operator to reconcile.
	var errs []error

	switch match.CompetitionType {
	case models.CompetitionLadder:
		if err := s.ladders.ApplyConfirmedResult(ctx, match.CompetitionID, confirmedResults(match)); err != nil {
			errs = append(errs, fmt.Errorf("ladder standings update: %w", err))
		}
	case models.CompetitionTournament:
		if match.Spot == nil {
			errs = append(errs, fmt.Errorf("tournament match %d has no bracket spot", match.ID))
			break
		}
		if !winner.CompetitorID.Valid() {
			// A removed winner leaves its bracket slot vacant rather
			// than advancing a sentinel.
			s.logger.Warn("skipping advancement for non-advanceable winner",
				slog.Int("match_id", match.ID),
				slog.Int("competitor_id", int(winner.CompetitorID)))
			break
		}
		if err := s.tournaments.AdvanceWinner(ctx, match.CompetitionID, *match.Spot, winner.CompetitorID); err != nil {
			errs = append(errs, fmt.Errorf("bracket advancement: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown competition type %q for match %d", match.CompetitionType, match.ID))
	}

	if draw {
		for _, side := range []*models.Side{&match.One, &match.Two} {
			if err := s.incrementCareer(ctx, side, models.OutcomeDraw); err != nil {
				errs = append(errs, err)
			}
		}
	} else {
		if err := s.incrementCareer(ctx, winner, models.OutcomeWon); err != nil {
			errs = append(errs, err)
		}
		if err := s.incrementCareer(ctx, loser, models.OutcomeLost); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *progressionService) incrementCareer(ctx context.Context, side *models.Side, outcome models.Outcome) error {
	if !side.CompetitorID.Valid() {
		return nil // removed or undecided sides are never scored
	}
	if err := s.competitors.IncrementRecord(ctx, side.CompetitorID, side.CompetitorType, outcome); err != nil {
		return fmt.Errorf("career record for %s %d: %w", side.CompetitorType, side.CompetitorID, err)
	}
	return nil
}

// confirmedResults maps the two sides of a confirmed match to their
// final outcomes, dropping removed competitors.
func confirmedResults(match *models.Match) []CompetitorResult {
	results := make([]CompetitorResult, 0, 2)
	for _, side := range []*models.Side{&match.One, &match.Two} {
		if !side.CompetitorID.Valid() {
			continue
		}
		outcome, ok := models.OutcomeOf(side.Result)
		if !ok {
			continue
		}
		results = append(results, CompetitorResult{
			CompetitorID:   side.CompetitorID,
			CompetitorType: side.CompetitorType,
			Outcome:        outcome,
		})
	}
	return results
}
