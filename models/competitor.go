package models

type CompetitorType string

const (
	CompetitorPlayer CompetitorType = "player"
	CompetitorTeam   CompetitorType = "team"
)

// Outcome is a final match outcome from one competitor's perspective,
// used for career records and ladder deltas.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomeDraw Outcome = "draw"
)

// OutcomeOf narrows a confirmed side result to an outcome. A Wrong or
// Unset result has no outcome; the second return is false.
func OutcomeOf(r SideResult) (Outcome, bool) {
	switch r {
	case ResultWon:
		return OutcomeWon, true
	case ResultLost:
		return OutcomeLost, true
	case ResultDraw:
		return OutcomeDraw, true
	}
	return "", false
}

// CareerRecord is a competitor's lifetime tally across every ladder and
// tournament, incremented once per confirmed match.
type CareerRecord struct {
	CompetitorID   CompetitorRef  `json:"competitor_id" db:"competitor_id"`
	CompetitorType CompetitorType `json:"competitor_type" db:"competitor_type"`
	Wins           int            `json:"wins" db:"wins"`
	Losses         int            `json:"losses" db:"losses"`
	Draws          int            `json:"draws" db:"draws"`
}
