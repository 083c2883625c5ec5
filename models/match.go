package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled    MatchStatus = "scheduled"
	MatchStatusReported     MatchStatus = "reported"
	MatchStatusConfirmed    MatchStatus = "confirmed"
	MatchStatusDisputed     MatchStatus = "disputed"
	MatchStatusBye          MatchStatus = "tournament_bye"
	MatchStatusUndetermined MatchStatus = "undetermined"
)

type CompetitionType string

const (
	CompetitionLadder     CompetitionType = "ladder"
	CompetitionTournament CompetitionType = "tournament"
)

// SideResult is the per-side outcome slot. A side starts Unset (empty
// string in the DB), receives Won/Lost/Draw through report/confirm, or
// Wrong when the opposing side disputes the reported result.
type SideResult string

const (
	ResultUnset SideResult = ""
	ResultWon   SideResult = "won"
	ResultLost  SideResult = "lost"
	ResultDraw  SideResult = "draw"
	ResultWrong SideResult = "wrong"
)

func (r SideResult) IsSet() bool {
	return r != ResultUnset
}

// Inverse returns the result the opposing side implicitly accepts when
// it confirms this one: won<->lost, draw stays draw.
func (r SideResult) Inverse() SideResult {
	switch r {
	case ResultWon:
		return ResultLost
	case ResultLost:
		return ResultWon
	case ResultDraw:
		return ResultDraw
	}
	return ResultUnset
}

type MatchSide int

const (
	SideOne MatchSide = 1
	SideTwo MatchSide = 2
)

func (s MatchSide) Opposite() MatchSide {
	if s == SideOne {
		return SideTwo
	}
	return SideOne
}

// CompetitorRef is a competitor id with two reserved sentinels:
// 0 marks a bracket slot whose feeder match has not produced a winner
// yet, -2 marks a competitor that was removed from the system after the
// match was recorded. A removed competitor is never advanced or scored.
type CompetitorRef int

const (
	CompetitorUndecided CompetitorRef = 0
	CompetitorRemoved   CompetitorRef = -2
)

func (c CompetitorRef) Undecided() bool { return c == CompetitorUndecided }

func (c CompetitorRef) Removed() bool { return c == CompetitorRemoved }

// Valid reports whether c refers to a real competitor.
func (c CompetitorRef) Valid() bool { return c > 0 }

type Side struct {
	CompetitorID   CompetitorRef  `json:"competitor_id" db:"competitor_id"`
	CompetitorType CompetitorType `json:"competitor_type" db:"competitor_type"`
	IP             string         `json:"-" db:"ip"`
	Result         SideResult     `json:"result" db:"result"`
	Comment        string         `json:"comment" db:"comment"`
}

type Match struct {
	ID              int             `json:"id" db:"id"`
	CompetitionID   int             `json:"competition_id" db:"competition_id"`
	CompetitionType CompetitionType `json:"competition_type" db:"competition_type"`

	// Spot is the 1-based bracket position, nil for ladder matches.
	Spot *int `json:"spot,omitempty" db:"spot"`

	One Side `json:"one"`
	Two Side `json:"two"`

	MatchDate time.Time   `json:"match_date" db:"match_date"`
	Status    MatchStatus `json:"status" db:"status"`

	// ConfirmHash is the opaque magic-link credential, regenerated on
	// every report. Nil while nothing is pending confirmation.
	ConfirmHash *string `json:"-" db:"confirm_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SideRef returns a pointer to the requested side's slot.
func (m *Match) SideRef(side MatchSide) *Side {
	if side == SideOne {
		return &m.One
	}
	return &m.Two
}

// ReportedSide returns which side has already set a result, or 0 if
// neither has (the match has not been reported).
func (m *Match) ReportedSide() MatchSide {
	if m.One.Result.IsSet() {
		return SideOne
	}
	if m.Two.Result.IsSet() {
		return SideTwo
	}
	return 0
}

// ResolveWinner applies the confirmed-result resolution rule to a pair
// of final side results. It is total over every pair reachable through
// confirmation: exactly one of side-one-wins, side-two-wins, or draw
// holds. On a draw the returned side is SideOne, a nominal value for
// record keeping only.
func ResolveWinner(one, two SideResult) (winner MatchSide, draw bool) {
	if one == ResultWon || two == ResultLost {
		return SideOne, false
	}
	if one == ResultDraw || two == ResultDraw {
		return SideOne, true
	}
	return SideTwo, false
}

// Winner returns the winning and losing sides of a confirmed match.
func (m *Match) Winner() (winner, loser *Side, draw bool) {
	side, draw := ResolveWinner(m.One.Result, m.Two.Result)
	if side == SideOne {
		return &m.One, &m.Two, draw
	}
	return &m.Two, &m.One, draw
}
