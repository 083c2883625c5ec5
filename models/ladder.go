package models

import "time"

// Ladder configuration consumed by the standings updater. The point
// deltas are applied per confirmed outcome and are never mutated here.
type Ladder struct {
	ID             int            `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	CompetitorType CompetitorType `json:"competitor_type" db:"competitor_type"`
	WinPoints      int            `json:"win_points" db:"win_points"`
	LossPoints     int            `json:"loss_points" db:"loss_points"`
	DrawPoints     int            `json:"draw_points" db:"draw_points"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// LadderEntry is one competitor's accumulated record on one ladder.
// Rank is derived on read (1 + entries with strictly greater points),
// never stored. The streak fields exist in the schema but are not
// maintained on the match-confirmation path; they are administratively
// maintained.
type LadderEntry struct {
	ID             int            `json:"id" db:"id"`
	LadderID       int            `json:"ladder_id" db:"ladder_id"`
	CompetitorID   CompetitorRef  `json:"competitor_id" db:"competitor_id"`
	CompetitorType CompetitorType `json:"competitor_type" db:"competitor_type"`
	Points         int            `json:"points" db:"points"`
	Wins           int            `json:"wins" db:"wins"`
	Losses         int            `json:"losses" db:"losses"`
	Draws          int            `json:"draws" db:"draws"`
	Streak         int            `json:"streak" db:"streak"`
	BestStreak     int            `json:"best_streak" db:"best_streak"`
	WorstStreak    int            `json:"worst_streak" db:"worst_streak"`
	LastActivity   time.Time      `json:"last_activity" db:"last_activity"`
}

// LadderStanding is an entry with its computed rank, the read model for
// standings listings.
type LadderStanding struct {
	LadderEntry
	Rank int `json:"rank"`
}
