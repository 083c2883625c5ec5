package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/repositories"
)

// emailConfirmComment is written onto the confirming side when a match
// is confirmed through its magic link rather than an authenticated
// call.
const emailConfirmComment = "confirmed via email"

// MatchService drives a match through its lifecycle: scheduled →
// reported → confirmed or disputed, with administrative clear back to
// scheduled. Side ownership is the caller's concern (the authorization
// layer); this service enforces only the state preconditions.
type MatchService interface {
	Get(ctx context.Context, matchID int) (*models.Match, error)

	// Report records one side's claimed result on a scheduled match and
	// regenerates the confirm hash. The opposing side is notified with
	// a confirmation link.
	Report(ctx context.Context, matchID int, side models.MatchSide, result models.SideResult, comment, ip string) (*models.Match, error)

	// Confirm is a blind "I agree": the confirming side receives the
	// inverse of the reporter's claim, never a result of its own.
	Confirm(ctx context.Context, matchID int, side models.MatchSide, comment, ip string) (*models.Match, error)

	// Dispute marks the reported result as contested; the disputing
	// side's slot is set to "wrong" and an administrator must clear the
	// match before it can be reported again.
	Dispute(ctx context.Context, matchID int, side models.MatchSide, ip string) (*models.Match, error)

	// Clear blanks both sides and returns the match to scheduled.
	// Administrative; callable from any prior status.
	Clear(ctx context.Context, matchID int) (*models.Match, error)

	// ConfirmByHash performs Confirm using the hash itself as the
	// credential. Returns ErrConfirmLinkInvalid when no match carries
	// the hash and ErrMatchAlreadyConfirmed when the match has moved on
	// from reported, so a double-clicked link stays idempotent.
	ConfirmByHash(ctx context.Context, hash string) (*models.Match, error)
}

type matchService struct {
	matchRepo   repositories.MatchRepository
	progression ProgressionService
	notifier    Notifier
	publicURL   string
	logger      *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	progression ProgressionService,
	notifier Notifier,
	publicURL string,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:   matchRepo,
		progression: progression,
		notifier:    notifier,
		publicURL:   publicURL,
		logger:      logger,
	}
}

func (s *matchService) Get(ctx context.Context, matchID int) (*models.Match, error) {
	return s.getMatch(ctx, matchID)
}

func (s *matchService) Report(ctx context.Context, matchID int, side models.MatchSide, result models.SideResult, comment, ip string) (*models.Match, error) {
	if result != models.ResultWon && result != models.ResultLost && result != models.ResultDraw {
		return nil, ErrMatchInvalidResult
	}

	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusScheduled {
		return nil, ErrMatchNotScheduled
	}
	if !match.SideRef(side).CompetitorID.Valid() {
		return nil, ErrMatchWrongSide
	}

	hash, err := newConfirmHash()
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirm hash: %w", err)
	}

	err = s.matchRepo.UpdateSideResult(ctx, matchID, side, result, comment, ip, &hash,
		models.MatchStatusScheduled, models.MatchStatusReported)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, ErrMatchNotScheduled
		}
		return nil, fmt.Errorf("failed to record report for match %d: %w", matchID, err)
	}

	match, err = s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.notifier.MatchReported(match, side.Opposite(), s.confirmURL(hash))
	return match, nil
}

func (s *matchService) Confirm(ctx context.Context, matchID int, side models.MatchSide, comment, ip string) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, match, side, comment, ip)
}

func (s *matchService) Dispute(ctx context.Context, matchID int, side models.MatchSide, ip string) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusReported {
		return nil, ErrMatchNotReported
	}

	reporter := match.ReportedSide()
	if side != reporter.Opposite() {
		return nil, ErrMatchWrongSide
	}

	err = s.matchRepo.UpdateSideResult(ctx, matchID, side, models.ResultWrong, "", ip, nil,
		models.MatchStatusReported, models.MatchStatusDisputed)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, ErrMatchNotReported
		}
		return nil, fmt.Errorf("failed to record dispute for match %d: %w", matchID, err)
	}

	match, err = s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.notifier.MatchDisputed(match, reporter)
	return match, nil
}

func (s *matchService) Clear(ctx context.Context, matchID int) (*models.Match, error) {
	if err := s.matchRepo.Clear(ctx, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to clear match %d: %w", matchID, err)
	}
	return s.getMatch(ctx, matchID)
}

func (s *matchService) ConfirmByHash(ctx context.Context, hash string) (*models.Match, error) {
	if hash == "" {
		return nil, ErrConfirmLinkInvalid
	}

	match, err := s.matchRepo.GetByConfirmHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrConfirmLinkInvalid
		}
		return nil, fmt.Errorf("failed to look up confirm hash: %w", err)
	}

	if match.Status != models.MatchStatusReported {
		return match, ErrMatchAlreadyConfirmed
	}

	// The hash itself is the credential; the confirming side is
	// whichever one has not reported.
	return s.confirm(ctx, match, match.ReportedSide().Opposite(), emailConfirmComment, "")
}

func (s *matchService) confirm(ctx context.Context, match *models.Match, side models.MatchSide, comment, ip string) (*models.Match, error) {
	if match.Status != models.MatchStatusReported {
		if match.Status == models.MatchStatusConfirmed {
			return match, ErrMatchAlreadyConfirmed
		}
		return nil, ErrMatchNotReported
	}

	reporter := match.ReportedSide()
	if reporter == 0 || side != reporter.Opposite() {
		return nil, ErrMatchWrongSide
	}

	implied := match.SideRef(reporter).Result.Inverse()

	// Conditional on status still being reported: of two racing
	// confirmations exactly one lands here successfully and dispatches
	// progression, the other sees the conflict as "already confirmed".
	err := s.matchRepo.UpdateSideResult(ctx, match.ID, side, implied, comment, ip, nil,
		models.MatchStatusReported, models.MatchStatusConfirmed)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return match, ErrMatchAlreadyConfirmed
		}
		return nil, fmt.Errorf("failed to confirm match %d: %w", match.ID, err)
	}

	confirmed, err := s.getMatch(ctx, match.ID)
	if err != nil {
		return nil, err
	}

	if err := s.progression.Dispatch(ctx, confirmed); err != nil {
		// The match stays confirmed; standings and bracket state are
		// derived and reconciled by an operator on failure.
		s.logger.Error("downstream update failed after confirmation",
			slog.Int("match_id", confirmed.ID),
			slog.String("competition_type", string(confirmed.CompetitionType)),
			slog.Any("error", err))
		return confirmed, fmt.Errorf("%w: %v", ErrProgressionFailed, err)
	}

	return confirmed, nil
}

func (s *matchService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return match, nil
}

func (s *matchService) confirmURL(hash string) string {
	return fmt.Sprintf("%s/matches/confirm/%s", s.publicURL, hash)
}

// newConfirmHash returns a 128-bit random token, hex encoded. One
// active token exists per reported match and it is replaced on every
// report.
func newConfirmHash() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
