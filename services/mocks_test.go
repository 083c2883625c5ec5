package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arenakit/competition-system/models"
	"github.com/arenakit/competition-system/repositories"
	"github.com/arenakit/competition-system/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	_ repositories.MatchRepository      = (*memMatchRepo)(nil)
	_ repositories.LadderRepository     = (*memLadderRepo)(nil)
	_ repositories.TournamentRepository = (*memTournamentRepo)(nil)
	_ repositories.CompetitorRepository = (*memCompetitorRepo)(nil)
	_ repositories.TxBeginner           = (*fakeTxBeginner)(nil)
	_ Notifier                          = (*mockNotifier)(nil)
	_ ProgressionService                = (*mockProgression)(nil)
	_ TournamentService                 = (*mockTournamentService)(nil)
	_ LadderService                     = (*mockLadderService)(nil)
	_ storage.FileUploader              = (*mockUploader)(nil)
)

// memMatchRepo is an in-memory MatchRepository with the same
// conditional-update semantics as the Postgres implementation, so the
// services' race handling can be exercised without a database.
type memMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match

	// beforeUpdate, when set, runs inside UpdateSideResult after the
	// match is located but before the status condition is checked.
	// Tests use it to interleave a competing writer.
	beforeUpdate func(id int)
}

func newMemMatchRepo() *memMatchRepo {
	return &memMatchRepo{matches: make(map[int]*models.Match)}
}

func (r *memMatchRepo) add(match *models.Match) *models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(match)
}

func (r *memMatchRepo) insertLocked(match *models.Match) *models.Match {
	r.nextID++
	match.ID = r.nextID
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	r.matches[match.ID] = match
	return copyMatch(match)
}

func copyMatch(m *models.Match) *models.Match {
	out := *m
	if m.Spot != nil {
		spot := *m.Spot
		out.Spot = &spot
	}
	if m.ConfirmHash != nil {
		hash := *m.ConfirmHash
		out.ConfirmHash = &hash
	}
	return &out
}

func (r *memMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := copyMatch(match)
	r.insertLocked(stored)
	match.ID = stored.ID
	return nil
}

func (r *memMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(match), nil
}

func (r *memMatchRepo) GetByConfirmHash(ctx context.Context, hash string) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, match := range r.matches {
		if match.ConfirmHash != nil && *match.ConfirmHash == hash {
			return copyMatch(match), nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *memMatchRepo) GetBySpot(ctx context.Context, tournamentID, spot int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match := r.findSpotLocked(tournamentID, spot)
	if match == nil {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(match), nil
}

func (r *memMatchRepo) findSpotLocked(tournamentID, spot int) *models.Match {
	for _, match := range r.matches {
		if match.CompetitionType == models.CompetitionTournament &&
			match.CompetitionID == tournamentID &&
			match.Spot != nil && *match.Spot == spot {
			return match
		}
	}
	return nil
}

func (r *memMatchRepo) ListByCompetition(ctx context.Context, competitionID int, competitionType models.CompetitionType) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, match := range r.matches {
		if match.CompetitionID == competitionID && match.CompetitionType == competitionType {
			out = append(out, copyMatch(match))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMatchRepo) UpdateSideResult(ctx context.Context, id int, side models.MatchSide, result models.SideResult, comment, ip string, confirmHash *string, expectedStatus, newStatus models.MatchStatus) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Status != expectedStatus {
		return repositories.ErrMatchStatusConflict
	}
	slot := match.SideRef(side)
	slot.Result = result
	slot.Comment = comment
	slot.IP = ip
	if confirmHash != nil {
		hash := *confirmHash
		match.ConfirmHash = &hash
	}
	match.Status = newStatus
	return nil
}

func (r *memMatchRepo) Clear(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	for _, slot := range []*models.Side{&match.One, &match.Two} {
		slot.Result = models.ResultUnset
		slot.Comment = ""
		slot.IP = ""
	}
	match.ConfirmHash = nil
	match.Status = models.MatchStatusScheduled
	return nil
}

func (r *memMatchRepo) UpsertSpot(ctx context.Context, tournamentID, spot, slot int, winnerID models.CompetitorRef, competitorType models.CompetitorType, matchDate time.Time) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match := r.findSpotLocked(tournamentID, spot)
	if match == nil {
		spotCopy := spot
		match = &models.Match{
			CompetitionID:   tournamentID,
			CompetitionType: models.CompetitionTournament,
			Spot:            &spotCopy,
			One:             models.Side{CompetitorID: models.CompetitorUndecided, CompetitorType: competitorType},
			Two:             models.Side{CompetitorID: models.CompetitorUndecided, CompetitorType: competitorType},
			MatchDate:       matchDate,
			Status:          models.MatchStatusUndetermined,
		}
		r.insertLocked(match)
	} else {
		match.Status = models.MatchStatusScheduled
	}
	match.SideRef(models.MatchSide(slot)).CompetitorID = winnerID
	return copyMatch(match), nil
}

func (r *memMatchRepo) DeleteByCompetition(ctx context.Context, exec repositories.SQLExecutor, competitionID int, competitionType models.CompetitionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, match := range r.matches {
		if match.CompetitionID == competitionID && match.CompetitionType == competitionType {
			delete(r.matches, id)
		}
	}
	return nil
}

// memLadderRepo keeps ladder entries in memory and applies outcomes as
// increments, mirroring the single-statement update of the real
// repository.
type memLadderRepo struct {
	mu      sync.Mutex
	ladders map[int]*models.Ladder
	entries []*models.LadderEntry

	applyErr error
}

func newMemLadderRepo(ladders ...*models.Ladder) *memLadderRepo {
	repo := &memLadderRepo{ladders: make(map[int]*models.Ladder)}
	for _, ladder := range ladders {
		repo.ladders[ladder.ID] = ladder
	}
	return repo
}

func (r *memLadderRepo) addEntry(entry *models.LadderEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = len(r.entries) + 1
	r.entries = append(r.entries, entry)
}

func (r *memLadderRepo) GetByID(ctx context.Context, id int) (*models.Ladder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ladder, ok := r.ladders[id]
	if !ok {
		return nil, repositories.ErrLadderNotFound
	}
	out := *ladder
	return &out, nil
}

func (r *memLadderRepo) GetEntry(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (*models.LadderEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.findLocked(ladderID, competitorID, competitorType)
	if entry == nil {
		return nil, repositories.ErrLadderEntryNotFound
	}
	out := *entry
	return &out, nil
}

func (r *memLadderRepo) findLocked(ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) *models.LadderEntry {
	for _, entry := range r.entries {
		if entry.LadderID == ladderID && entry.CompetitorID == competitorID && entry.CompetitorType == competitorType {
			return entry
		}
	}
	return nil
}

func (r *memLadderRepo) ListEntries(ctx context.Context, ladderID int) ([]*models.LadderEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LadderEntry
	for _, entry := range r.entries {
		if entry.LadderID == ladderID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].CompetitorID < out[j].CompetitorID
	})
	return out, nil
}

func (r *memLadderRepo) ApplyOutcome(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType, outcome models.Outcome, pointsDelta int) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.findLocked(ladderID, competitorID, competitorType)
	if entry == nil {
		return repositories.ErrLadderEntryNotFound
	}
	switch outcome {
	case models.OutcomeWon:
		entry.Wins++
	case models.OutcomeLost:
		entry.Losses++
	case models.OutcomeDraw:
		entry.Draws++
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	entry.Points += pointsDelta
	entry.LastActivity = time.Now()
	return nil
}

func (r *memLadderRepo) Rank(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.findLocked(ladderID, competitorID, competitorType)
	if entry == nil {
		return 0, repositories.ErrLadderEntryNotFound
	}
	rank := 1
	for _, other := range r.entries {
		if other.LadderID == ladderID && other.Points > entry.Points {
			rank++
		}
	}
	return rank, nil
}

// memTournamentRepo backs the tournament service with in-memory
// tournaments and entries, including the conditional status update.
type memTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	entries     []*models.TournamentEntry
}

func newMemTournamentRepo(tournaments ...*models.Tournament) *memTournamentRepo {
	repo := &memTournamentRepo{tournaments: make(map[int]*models.Tournament)}
	for _, tournament := range tournaments {
		repo.tournaments[tournament.ID] = tournament
	}
	return repo
}

func (r *memTournamentRepo) addEntry(entry *models.TournamentEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = len(r.entries) + 1
	r.entries = append(r.entries, entry)
}

func (r *memTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tournament, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	out := *tournament
	out.Entries = nil
	out.Matches = nil
	return &out, nil
}

func (r *memTournamentRepo) ListEntries(ctx context.Context, tournamentID int) ([]*models.TournamentEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TournamentEntry
	for _, entry := range r.entries {
		if entry.TournamentID == tournamentID {
			copied := *entry
			if entry.Seed != nil {
				seed := *entry.Seed
				copied.Seed = &seed
			}
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memTournamentRepo) CountEntries(ctx context.Context, tournamentID int) (int, error) {
	entries, _ := r.ListEntries(ctx, tournamentID)
	return len(entries), nil
}

func (r *memTournamentRepo) UpdateEntrySeed(ctx context.Context, exec repositories.SQLExecutor, entryID int, seed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.ID == entryID {
			s := seed
			entry.Seed = &s
			return nil
		}
	}
	return repositories.ErrTournamentEntryNotFound
}

func (r *memTournamentRepo) ClearSeeds(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.TournamentID == tournamentID {
			entry.Seed = nil
		}
	}
	return nil
}

func (r *memTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, expected, next models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tournament, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if tournament.Status != expected {
		return repositories.ErrTournamentStatusConflict
	}
	tournament.Status = next
	return nil
}

// memCompetitorRepo tracks career records, creating a zeroed record on
// first increment.
type memCompetitorRepo struct {
	mu      sync.Mutex
	records map[string]*models.CareerRecord
	emails  map[string]string

	incrementErr error
}

func newMemCompetitorRepo() *memCompetitorRepo {
	return &memCompetitorRepo{
		records: make(map[string]*models.CareerRecord),
		emails:  make(map[string]string),
	}
}

func competitorKey(id models.CompetitorRef, competitorType models.CompetitorType) string {
	return fmt.Sprintf("%s:%d", competitorType, id)
}

func (r *memCompetitorRepo) setEmail(id models.CompetitorRef, competitorType models.CompetitorType, email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails[competitorKey(id, competitorType)] = email
}

func (r *memCompetitorRepo) IncrementRecord(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType, outcome models.Outcome) error {
	if r.incrementErr != nil {
		return r.incrementErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := competitorKey(competitorID, competitorType)
	record, ok := r.records[key]
	if !ok {
		record = &models.CareerRecord{CompetitorID: competitorID, CompetitorType: competitorType}
		r.records[key] = record
	}
	switch outcome {
	case models.OutcomeWon:
		record.Wins++
	case models.OutcomeLost:
		record.Losses++
	case models.OutcomeDraw:
		record.Draws++
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	return nil
}

func (r *memCompetitorRepo) GetRecord(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType) (*models.CareerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[competitorKey(competitorID, competitorType)]
	if !ok {
		return nil, repositories.ErrCompetitorNotFound
	}
	out := *record
	return &out, nil
}

func (r *memCompetitorRepo) GetContactEmail(ctx context.Context, competitorID models.CompetitorRef, competitorType models.CompetitorType) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.emails[competitorKey(competitorID, competitorType)]
	if !ok {
		return "", repositories.ErrCompetitorNotFound
	}
	return email, nil
}

// mockNotifier records every notification it receives.
type mockNotifier struct {
	mu        sync.Mutex
	reported  []reportedNotification
	disputed  []disputedNotification
	completed []completedNotification
}

type reportedNotification struct {
	matchID    int
	opponent   models.MatchSide
	confirmURL string
}

type disputedNotification struct {
	matchID  int
	reporter models.MatchSide
}

type completedNotification struct {
	tournamentID int
	champion     models.CompetitorRef
}

func (n *mockNotifier) MatchReported(match *models.Match, opponent models.MatchSide, confirmURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reported = append(n.reported, reportedNotification{match.ID, opponent, confirmURL})
}

func (n *mockNotifier) MatchDisputed(match *models.Match, reporter models.MatchSide) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disputed = append(n.disputed, disputedNotification{match.ID, reporter})
}

func (n *mockNotifier) TournamentCompleted(tournament *models.Tournament, champion models.CompetitorRef) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, completedNotification{tournament.ID, champion})
}

// mockProgression records dispatched matches and returns a canned
// error.
type mockProgression struct {
	mu      sync.Mutex
	matches []*models.Match
	err     error
}

func (p *mockProgression) Dispatch(ctx context.Context, match *models.Match) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matches = append(p.matches, match)
	return p.err
}

// mockTournamentService lets the progression dispatcher be tested
// without a full bracket stack.
type mockTournamentService struct {
	initializeFn func(ctx context.Context, tournamentID int) (*models.Tournament, error)
	advanceFn    func(ctx context.Context, tournamentID, fromSpot int, winner models.CompetitorRef) error
	fullFn       func(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

func (m *mockTournamentService) Initialize(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return m.initializeFn(ctx, tournamentID)
}

func (m *mockTournamentService) AdvanceWinner(ctx context.Context, tournamentID, fromSpot int, winner models.CompetitorRef) error {
	return m.advanceFn(ctx, tournamentID, fromSpot, winner)
}

func (m *mockTournamentService) FullBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return m.fullFn(ctx, tournamentID)
}

type mockLadderService struct {
	applyFn     func(ctx context.Context, ladderID int, results []CompetitorResult) error
	standingsFn func(ctx context.Context, ladderID int) ([]*models.LadderStanding, error)
	rankFn      func(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error)
}

func (m *mockLadderService) ApplyConfirmedResult(ctx context.Context, ladderID int, results []CompetitorResult) error {
	return m.applyFn(ctx, ladderID, results)
}

func (m *mockLadderService) Standings(ctx context.Context, ladderID int) ([]*models.LadderStanding, error) {
	return m.standingsFn(ctx, ladderID)
}

func (m *mockLadderService) Rank(ctx context.Context, ladderID int, competitorID models.CompetitorRef, competitorType models.CompetitorType) (int, error) {
	return m.rankFn(ctx, ladderID, competitorID, competitorType)
}

// fakeTx satisfies repositories.Tx; the in-memory repositories ignore
// the executor entirely.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (t *fakeTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (t *fakeTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeTxBeginner struct {
	lastTx *fakeTx
}

func (b *fakeTxBeginner) Begin(ctx context.Context) (repositories.Tx, error) {
	tx := &fakeTx{}
	b.lastTx = tx
	return tx, nil
}

// mockUploader captures archived payloads.
type mockUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newMockUploader() *mockUploader {
	return &mockUploader{uploads: make(map[string][]byte)}
}

func (u *mockUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads[key] = data
	return &storage.UploadResult{Key: key, Location: "mem://" + key}, nil
}

func (u *mockUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.uploads, key)
	return nil
}

func (u *mockUploader) GetPublicURL(key string) string {
	return "mem://" + key
}
