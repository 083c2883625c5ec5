package services

import "github.com/arenakit/competition-system/models"

// Notifier delivers competition notifications. Implementations are
// fire-and-forget: callers never wait on delivery and a delivery
// failure never rolls back the state transition that triggered it.
type Notifier interface {
	// MatchReported tells the opposing side a result is awaiting their
	// confirmation; confirmURL embeds the match's fresh confirm hash.
	MatchReported(match *models.Match, opponent models.MatchSide, confirmURL string)

	// MatchDisputed tells the original reporter and the administrator
	// that the reported result was contested.
	MatchDisputed(match *models.Match, reporter models.MatchSide)

	// TournamentCompleted announces the champion to the administrator.
	TournamentCompleted(tournament *models.Tournament, champion models.CompetitorRef)
}

// NoopNotifier discards every notification. Used where no SMTP
// configuration is present.
type NoopNotifier struct{}

func (NoopNotifier) MatchReported(*models.Match, models.MatchSide, string)        {}
func (NoopNotifier) MatchDisputed(*models.Match, models.MatchSide)                {}
func (NoopNotifier) TournamentCompleted(*models.Tournament, models.CompetitorRef) {}
