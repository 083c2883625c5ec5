package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/arenakit/competition-system/brackets"
	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/repositories"
	"github.com/arenakit/competition-system/storage"
	"golang.org/x/sync/errgroup"
)

const archiveTimeout = 30 * time.Second

// TournamentService seeds single-elimination brackets and advances
// winners through them. The bracket itself is never stored as a tree:
// every advancement recomputes its destination from the flat spot
// numbering in the brackets package.
type TournamentService interface {
	// Initialize deletes any existing matches, shuffles the registrant
	// list, seeds the first round into spots 1..bracketSize/2 and marks
	// the tournament in progress. Refused without mutation when the
	// bracket size is unsupported or registrants are short.
	Initialize(ctx context.Context, tournamentID int) (*models.Tournament, error)

	// AdvanceWinner places the winner of the match at fromSpot into its
	// next-round slot, or completes the tournament when fromSpot is the
	// final.
	AdvanceWinner(ctx context.Context, tournamentID, fromSpot int, winner models.CompetitorRef) error

	// FullBracket returns the tournament with its entries and matches.
	FullBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type tournamentService struct {
	txs            repositories.TxBeginner
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	hub            *brackets.Hub
	archiver       storage.FileUploader
	notifier       Notifier
	logger         *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewTournamentService(
	txs repositories.TxBeginner,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	hub *brackets.Hub,
	archiver storage.FileUploader,
	notifier Notifier,
	rng *rand.Rand,
	logger *slog.Logger,
) TournamentService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &tournamentService{
		txs:            txs,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		hub:            hub,
		archiver:       archiver,
		notifier:       notifier,
		logger:         logger,
		rng:            rng,
	}
}

func (s *tournamentService) Initialize(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.TournamentStatusComplete {
		return nil, ErrTournamentNotSeedable
	}
	if !brackets.ValidSize(tournament.BracketSize) {
		return nil, fmt.Errorf("%w: got %d", ErrBracketSizeUnsupported, tournament.BracketSize)
	}

	entries, err := s.tournamentRepo.ListEntries(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for tournament %d: %w", tournamentID, err)
	}
	if len(entries) < tournament.BracketSize {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughRegistrants, len(entries), tournament.BracketSize)
	}

	// Shuffled order is the seeding. Registrants beyond the bracket
	// size simply do not get a seed.
	shuffled := make([]*models.TournamentEntry, len(entries))
	copy(shuffled, entries)
	s.rngMu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.rngMu.Unlock()
	seeded := shuffled[:tournament.BracketSize]

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Int("tournament_id", tournamentID), slog.Any("error", rbErr))
			}
		}
	}()

	if txErr = s.matchRepo.DeleteByCompetition(ctx, tx, tournamentID, models.CompetitionTournament); txErr != nil {
		return nil, fmt.Errorf("failed to delete existing matches for tournament %d: %w", tournamentID, txErr)
	}
	if txErr = s.tournamentRepo.ClearSeeds(ctx, tx, tournamentID); txErr != nil {
		return nil, fmt.Errorf("failed to clear seeds for tournament %d: %w", tournamentID, txErr)
	}

	for i := 0; i < tournament.BracketSize/2; i++ {
		spot := i + 1
		match := &models.Match{
			CompetitionID:   tournamentID,
			CompetitionType: models.CompetitionTournament,
			Spot:            &spot,
			One: models.Side{
				CompetitorID:   seeded[2*i].CompetitorID,
				CompetitorType: seeded[2*i].CompetitorType,
			},
			Two: models.Side{
				CompetitorID:   seeded[2*i+1].CompetitorID,
				CompetitorType: seeded[2*i+1].CompetitorType,
			},
			MatchDate: tournament.StartDate,
			Status:    models.MatchStatusScheduled,
		}
		if txErr = s.matchRepo.Create(ctx, tx, match); txErr != nil {
			return nil, fmt.Errorf("failed to create first-round match at spot %d: %w", spot, txErr)
		}
	}

	for i, entry := range seeded {
		if txErr = s.tournamentRepo.UpdateEntrySeed(ctx, tx, entry.ID, i+1); txErr != nil {
			return nil, fmt.Errorf("failed to write seed for entry %d: %w", entry.ID, txErr)
		}
	}

	if txErr = s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID, tournament.Status, models.TournamentStatusInProgress); txErr != nil {
		return nil, fmt.Errorf("failed to mark tournament %d in progress: %w", tournamentID, txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit bracket for tournament %d: %w", tournamentID, txErr)
	}

	s.logger.Info("bracket seeded",
		slog.Int("tournament_id", tournamentID),
		slog.Int("bracket_size", tournament.BracketSize),
		slog.Int("registrants", len(entries)))

	return s.FullBracket(ctx, tournamentID)
}

func (s *tournamentService) AdvanceWinner(ctx context.Context, tournamentID, fromSpot int, winner models.CompetitorRef) error {
	if winner.Removed() {
		return ErrCompetitorRemoved
	}
	if !winner.Valid() {
		return fmt.Errorf("cannot advance competitor %d from spot %d", winner, fromSpot)
	}

	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	dest, slot, err := brackets.Destination(tournament.BracketSize, fromSpot)
	if err != nil {
		return fmt.Errorf("failed to compute destination for spot %d: %w", fromSpot, err)
	}

	if dest == 0 {
		return s.complete(ctx, tournament, winner)
	}

	match, err := s.matchRepo.UpsertSpot(ctx, tournamentID, dest, slot, winner, tournament.CompetitorType, tournament.StartDate)
	if err != nil {
		return fmt.Errorf("failed to place winner %d into spot %d of tournament %d: %w", winner, dest, tournamentID, err)
	}

	s.logger.Info("winner advanced",
		slog.Int("tournament_id", tournamentID),
		slog.Int("from_spot", fromSpot),
		slog.Int("to_spot", dest),
		slog.Int("slot", slot),
		slog.Int("competitor_id", int(winner)))

	s.hub.BroadcastToRoom(brackets.RoomForTournament(tournamentID), brackets.Message{
		Type:    brackets.EventWinnerAdvanced,
		Payload: match,
	})
	return nil
}

func (s *tournamentService) FullBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := s.tournamentRepo.ListEntries(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load entries: %w", err)
		}
		tournament.Entries = entries
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByCompetition(gCtx, tournamentID, models.CompetitionTournament)
		if err != nil {
			return fmt.Errorf("failed to load matches: %w", err)
		}
		tournament.Matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble bracket for tournament %d: %w", tournamentID, err)
	}
	return tournament, nil
}

// complete marks the tournament finished once its final-round match has
// confirmed. Announcement and archival are best effort.
func (s *tournamentService) complete(ctx context.Context, tournament *models.Tournament, champion models.CompetitorRef) error {
	err := s.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, tournament.Status, models.TournamentStatusComplete)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			// Already completed by a racing confirmation.
			return nil
		}
		return fmt.Errorf("failed to complete tournament %d: %w", tournament.ID, err)
	}

	s.logger.Info("tournament completed",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("champion_id", int(champion)))

	s.hub.BroadcastToRoom(brackets.RoomForTournament(tournament.ID), brackets.Message{
		Type: brackets.EventTournamentCompleted,
		Payload: map[string]interface{}{
			"tournament_id": tournament.ID,
			"champion_id":   champion,
		},
	})
	s.notifier.TournamentCompleted(tournament, champion)
	go s.archiveBracket(tournament.ID)
	return nil
}

// archiveBracket uploads the final bracket snapshot to object storage.
// Runs detached from the confirming request; failure is logged only.
func (s *tournamentService) archiveBracket(tournamentID int) {
	if s.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	bracket, err := s.FullBracket(ctx, tournamentID)
	if err != nil {
		s.logger.Warn("bracket archive skipped", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(bracket)
	if err != nil {
		s.logger.Warn("bracket archive marshal failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	key := fmt.Sprintf("brackets/%d.json", tournamentID)
	result, err := s.archiver.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn("bracket archive upload failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	s.logger.Info("bracket archived",
		slog.Int("tournament_id", tournamentID),
		slog.String("location", result.Location))
}

func (s *tournamentService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	return tournament, nil
}
