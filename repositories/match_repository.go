package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arenakit/competition-system/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchStatusConflict     = errors.New("match is no longer in the expected status")
	ErrMatchCompetitionInvalid = errors.New("match competition conflict or invalid")
	ErrMatchSpotConflict       = errors.New("match spot conflict")
)

const matchColumns = `
	id, competition_id, competition_type, spot,
	one_competitor_id, one_competitor_type, one_ip, one_result, one_comment,
	two_competitor_id, two_competitor_type, two_ip, two_result, two_comment,
	match_date, status, confirm_hash, created_at`

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByConfirmHash(ctx context.Context, hash string) (*models.Match, error)
	GetBySpot(ctx context.Context, tournamentID, spot int) (*models.Match, error)
	ListByCompetition(ctx context.Context, competitionID int, competitionType models.CompetitionType) ([]*models.Match, error)

	// UpdateSideResult writes one side's result/comment/ip and moves the
	// match from expectedStatus to newStatus in a single conditional
	// update. confirmHash, when non-nil, replaces the stored hash.
	// Returns ErrMatchStatusConflict when the match exists but its
	// status no longer matches expectedStatus, so exactly one of two
	// racing callers observes success.
	UpdateSideResult(ctx context.Context, id int, side models.MatchSide, result models.SideResult, comment, ip string, confirmHash *string, expectedStatus, newStatus models.MatchStatus) error

	// Clear blanks both sides' result/ip/comment, drops the confirm
	// hash and returns the match to scheduled.
	Clear(ctx context.Context, id int) error

	// UpsertSpot atomically places a winner into one slot of the match
	// at (tournamentID, spot). A fresh row is inserted as undetermined
	// with the opposing slot undecided; an existing row gets the slot
	// filled and becomes scheduled, since both feeders are then known.
	UpsertSpot(ctx context.Context, tournamentID, spot, slot int, winnerID models.CompetitorRef, competitorType models.CompetitorType, matchDate time.Time) (*models.Match, error)

	DeleteByCompetition(ctx context.Context, exec SQLExecutor, competitionID int, competitionType models.CompetitionType) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(competition_id, competition_type, spot,
			 one_competitor_id, one_competitor_type, one_ip, one_result, one_comment,
			 two_competitor_id, two_competitor_type, two_ip, two_result, two_comment,
			 match_date, status, confirm_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.CompetitionID,
		match.CompetitionType,
		match.Spot,
		match.One.CompetitorID, match.One.CompetitorType, match.One.IP, match.One.Result, match.One.Comment,
		match.Two.CompetitorID, match.Two.CompetitorType, match.Two.IP, match.Two.Result, match.Two.Comment,
		match.MatchDate,
		match.Status,
		match.ConfirmHash,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByConfirmHash(ctx context.Context, hash string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE confirm_hash = $1`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, hash))
}

func (r *postgresMatchRepository) GetBySpot(ctx context.Context, tournamentID, spot int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE competition_id = $1 AND competition_type = $2 AND spot = $3`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, tournamentID, models.CompetitionTournament, spot))
}

func (r *postgresMatchRepository) ListByCompetition(ctx context.Context, competitionID int, competitionType models.CompetitionType) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE competition_id = $1 AND competition_type = $2
		ORDER BY spot ASC NULLS LAST, id ASC`

	rows, err := r.db.QueryContext(ctx, query, competitionID, competitionType)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for %s %d: %w", competitionType, competitionID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateSideResult(ctx context.Context, id int, side models.MatchSide, result models.SideResult, comment, ip string, confirmHash *string, expectedStatus, newStatus models.MatchStatus) error {
	prefix := "one"
	if side == models.SideTwo {
		prefix = "two"
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`UPDATE matches SET `)
	queryBuilder.WriteString(prefix + `_result = $1, `)
	queryBuilder.WriteString(prefix + `_comment = $2, `)
	queryBuilder.WriteString(prefix + `_ip = $3, status = $4`)

	args := []interface{}{result, comment, ip, newStatus}
	placeholderIndex := 5

	if confirmHash != nil {
		queryBuilder.WriteString(", confirm_hash = $" + strconv.Itoa(placeholderIndex))
		args = append(args, *confirmHash)
		placeholderIndex++
	}

	queryBuilder.WriteString(" WHERE id = $" + strconv.Itoa(placeholderIndex))
	args = append(args, id)
	placeholderIndex++
	queryBuilder.WriteString(" AND status = $" + strconv.Itoa(placeholderIndex))
	args = append(args, expectedStatus)

	res, err := r.db.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return r.handleMatchError(err)
	}
	return r.resolveConditionalMiss(ctx, res, id)
}

func (r *postgresMatchRepository) Clear(ctx context.Context, id int) error {
	query := `
		UPDATE matches SET
			one_result = '', one_comment = '', one_ip = '',
			two_result = '', two_comment = '', two_ip = '',
			status = $1, confirm_hash = NULL
		WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, models.MatchStatusScheduled, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpsertSpot(ctx context.Context, tournamentID, spot, slot int, winnerID models.CompetitorRef, competitorType models.CompetitorType, matchDate time.Time) (*models.Match, error) {
	oneID := models.CompetitorUndecided
	twoID := models.CompetitorUndecided
	if slot == int(models.SideOne) {
		oneID = winnerID
	} else {
		twoID = winnerID
	}

	// Single atomic upsert keyed by (competition_id, spot): two feeder
	// matches confirming concurrently must not create duplicate rows or
	// lose one side's write.
	query := `
		INSERT INTO matches
			(competition_id, competition_type, spot,
			 one_competitor_id, one_competitor_type, one_ip, one_result, one_comment,
			 two_competitor_id, two_competitor_type, two_ip, two_result, two_comment,
			 match_date, status)
		VALUES ($1, $2, $3, $4, $5, '', '', '', $6, $5, '', '', '', $7, $8)
		ON CONFLICT (competition_id, competition_type, spot) DO UPDATE SET
			one_competitor_id = CASE WHEN $9 = 1 THEN $10::int ELSE matches.one_competitor_id END,
			two_competitor_id = CASE WHEN $9 = 2 THEN $10::int ELSE matches.two_competitor_id END,
			status = $11
		RETURNING ` + matchColumns

	return r.scanMatch(r.db.QueryRowContext(ctx, query,
		tournamentID,
		models.CompetitionTournament,
		spot,
		oneID, competitorType,
		twoID,
		matchDate,
		models.MatchStatusUndetermined,
		slot, winnerID,
		models.MatchStatusScheduled,
	))
}

func (r *postgresMatchRepository) DeleteByCompetition(ctx context.Context, exec SQLExecutor, competitionID int, competitionType models.CompetitionType) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM matches WHERE competition_id = $1 AND competition_type = $2`
	_, err := executor.ExecContext(ctx, query, competitionID, competitionType)
	return err
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// resolveConditionalMiss distinguishes "row gone" from "row present but
// status moved on" after a conditional update touched zero rows.
func (r *postgresMatchRepository) resolveConditionalMiss(ctx context.Context, res sql.Result, id int) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return getErr
	}
	return ErrMatchStatusConflict
}

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	match := &models.Match{}
	err := rowScanner.Scan(
		&match.ID,
		&match.CompetitionID,
		&match.CompetitionType,
		&match.Spot,
		&match.One.CompetitorID, &match.One.CompetitorType, &match.One.IP, &match.One.Result, &match.One.Comment,
		&match.Two.CompetitorID, &match.Two.CompetitorType, &match.Two.IP, &match.Two.Result, &match.Two.Comment,
		&match.MatchDate,
		&match.Status,
		&match.ConfirmHash,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return match, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_competition_id_fkey":
			return ErrMatchCompetitionInvalid
		case "matches_competition_spot_key":
			return ErrMatchSpotConflict
		}
	}
	return err
}
