package models

import "time"

type TournamentStatus string

const (
	TournamentStatusCreated    TournamentStatus = "created"
	TournamentStatusOpen       TournamentStatus = "open"
	TournamentStatusInProgress TournamentStatus = "in_progress"
	TournamentStatusComplete   TournamentStatus = "complete"
)

type Tournament struct {
	ID             int              `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	CompetitorType CompetitorType   `json:"competitor_type" db:"competitor_type"`
	BracketSize    int              `json:"bracket_size" db:"bracket_size"`
	Status         TournamentStatus `json:"status" db:"status"`
	StartDate      time.Time        `json:"start_date" db:"start_date"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`

	// Populated by the service layer for bracket views, not mapped
	// directly.
	Entries []*TournamentEntry `json:"entries,omitempty" db:"-"`
	Matches []*Match           `json:"matches,omitempty" db:"-"`
}

// TournamentEntry is a registered competitor. Seed is nil until the
// bracket is initialized, then 1..BracketSize in shuffled order.
type TournamentEntry struct {
	ID             int            `json:"id" db:"id"`
	TournamentID   int            `json:"tournament_id" db:"tournament_id"`
	CompetitorID   CompetitorRef  `json:"competitor_id" db:"competitor_id"`
	CompetitorType CompetitorType `json:"competitor_type" db:"competitor_type"`
	Seed           *int           `json:"seed,omitempty" db:"seed"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
