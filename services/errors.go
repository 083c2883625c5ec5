package services

import "errors"

// Shared errors used across services and the HTTP mapping.
var (
	// Not found
	ErrNotFound           = errors.New("requested resource not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrLadderNotFound     = errors.New("ladder not found")
	ErrTournamentNotFound = errors.New("tournament not found")

	// Match state machine preconditions
	ErrMatchNotScheduled  = errors.New("match is not awaiting a report")
	ErrMatchNotReported   = errors.New("match has no pending report")
	ErrMatchWrongSide     = errors.New("this side is not allowed to perform this action")
	ErrMatchInvalidResult = errors.New("reported result must be won, lost or draw")

	// Magic-link outcomes, informational rather than failures
	ErrConfirmLinkInvalid    = errors.New("confirmation link is not valid")
	ErrMatchAlreadyConfirmed = errors.New("match has already been confirmed")

	// Tournament seeding
	ErrBracketSizeUnsupported = errors.New("bracket size must be one of 4, 8, 16, 32, 64, 128, 256")
	ErrNotEnoughRegistrants   = errors.New("not enough registrants to fill the bracket")
	ErrTournamentNotSeedable  = errors.New("tournament cannot be seeded in its current status")

	// Advancement
	ErrCompetitorRemoved = errors.New("competitor was removed and cannot advance")

	// Standings or bracket updates failed after the match was already
	// confirmed. The confirmation is never rolled back; the caller must
	// alert so an operator can reconcile the derived state.
	ErrProgressionFailed = errors.New("failed to apply confirmed result downstream")
)
