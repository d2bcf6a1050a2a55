package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/chessanalytics/ingest-core/internal/domain"
)

// memGameStore is a development/test-only in-memory GameStore, adapted
// from the teacher's mutex+map repository used "when no DB is
// configured". It enforces the same (account_id, pgn_hash) uniqueness
// invariant as the Postgres-backed implementation.
type memGameStore struct {
	mu     sync.RWMutex
	nextID int64
	games  map[int64]*domain.Game
	byKey  map[string]*domain.Game // "accountID|pgnHash" -> game
}

// NewMemoryGameStore builds an in-memory GameStore for tests.
func NewMemoryGameStore() GameStore {
	return &memGameStore{
		games: make(map[int64]*domain.Game),
		byKey: make(map[string]*domain.Game),
	}
}

func dedupKey(accountID int64, fingerprint string) string {
	return strconv.FormatInt(accountID, 10) + "|" + fingerprint
}

func (m *memGameStore) Exists(ctx context.Context, accountID int64, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byKey[dedupKey(accountID, fingerprint)]
	return ok, nil
}

func (m *memGameStore) Insert(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := dedupKey(game.AccountID, game.PGNHash)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[key]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	id := m.nextID
	copyGame := *game
	copyGame.ID = id
	m.games[id] = &copyGame
	m.byKey[key] = &copyGame
	return id, nil
}

func (m *memGameStore) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, g := range m.games {
		if g.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (m *memGameStore) DeleteByAccount(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, g := range m.games {
		if g.AccountID == accountID {
			delete(m.games, id)
			delete(m.byKey, dedupKey(g.AccountID, g.PGNHash))
		}
	}
	return nil
}

func (m *memGameStore) DailyActivity(ctx context.Context, accountID int64, from, to *time.Time) ([]DailyActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byDay := map[string]*DailyActivity{}
	var order []string
	for _, g := range m.games {
		if g.AccountID != accountID {
			continue
		}
		if from != nil && g.PlayedAt.Before(*from) {
			continue
		}
		if to != nil && g.PlayedAt.After(*to) {
			continue
		}
		day := g.PlayedAt.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailyActivity{Date: day}
			byDay[day] = d
			order = append(order, day)
		}
		d.Games++
		switch g.Result {
		case domain.ResultWin:
			d.Wins++
		case domain.ResultLoss:
			d.Losses++
		case domain.ResultDraw:
			d.Draws++
		}
	}
	out := make([]DailyActivity, 0, len(order))
	for _, day := range order {
		out = append(out, *byDay[day])
	}
	return out, nil
}

func (m *memGameStore) BreakdownByColor(ctx context.Context, accountID int64) (ColorBreakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out ColorBreakdown
	for _, g := range m.games {
		if g.AccountID != accountID {
			continue
		}
		tally := &out.White
		if g.Color == domain.ColorBlack {
			tally = &out.Black
		}
		switch g.Result {
		case domain.ResultWin:
			tally.Wins++
		case domain.ResultLoss:
			tally.Losses++
		case domain.ResultDraw:
			tally.Draws++
		}
	}
	return out, nil
}

func (m *memGameStore) BreakdownByTimeControl(ctx context.Context, accountID int64) (map[domain.TimeControlCategory]ResultTally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[domain.TimeControlCategory]ResultTally{}
	for _, g := range m.games {
		if g.AccountID != accountID {
			continue
		}
		tally := out[g.TimeControlCategory]
		switch g.Result {
		case domain.ResultWin:
			tally.Wins++
		case domain.ResultLoss:
			tally.Losses++
		case domain.ResultDraw:
			tally.Draws++
		}
		out[g.TimeControlCategory] = tally
	}
	return out, nil
}

// memJobStore is an in-memory JobStore counterpart, used by the same
// tests that exercise memGameStore.
type memJobStore struct {
	mu     sync.RWMutex
	nextID int64
	jobs   map[int64]*domain.Job
}

// NewMemoryJobStore builds an in-memory JobStore for tests.
func NewMemoryJobStore() JobStore {
	return &memJobStore{jobs: make(map[int64]*domain.Job)}
}

func (m *memJobStore) Create(ctx context.Context, job *domain.Job) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	copyJob := *job
	copyJob.ID = id
	copyJob.Status = domain.JobPending
	m.jobs[id] = &copyJob
	return id, nil
}

func (m *memJobStore) Get(ctx context.Context, id int64) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	copyJob := *j
	return &copyJob, nil
}

func (m *memJobStore) SetProcessing(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.Status == domain.JobPending {
		j.Status = domain.JobProcessing
	}
	return nil
}

func (m *memJobStore) SetTotalGames(ctx context.Context, id int64, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		v := total
		j.TotalGames = &v
	}
	return nil
}

func (m *memJobStore) SetTotalArchives(ctx context.Context, id int64, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		v := total
		j.TotalArchives = &v
	}
	return nil
}

func (m *memJobStore) FlushCounters(ctx context.Context, id int64, processed, duplicates int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.ProcessedGames = processed
		j.DuplicateGames = duplicates
	}
	return nil
}

func (m *memJobStore) FlushArchiveProgress(ctx context.Context, id int64, archivesProcessed, totalGamesSoFar int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		v := archivesProcessed
		j.ArchivesProcessed = &v
		t := totalGamesSoFar
		j.TotalGames = &t
	}
	return nil
}

func (m *memJobStore) MarkCompleted(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = domain.JobCompleted
	}
	return nil
}

func (m *memJobStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = domain.JobFailed
		j.ErrorMessage = errMsg
	}
	return nil
}

func (m *memJobStore) ExistsActive(ctx context.Context, accountID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		if j.AccountID == accountID && !j.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

// memAccountStore is an in-memory AccountStore counterpart, used by
// the same tests that exercise memGameStore/memJobStore.
type memAccountStore struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
}

// NewMemoryAccountStore builds an in-memory AccountStore seeded with accts.
func NewMemoryAccountStore(accts ...*domain.Account) AccountStore {
	m := &memAccountStore{accounts: make(map[int64]*domain.Account)}
	for _, a := range accts {
		copyAcct := *a
		m.accounts[a.ID] = &copyAcct
	}
	return m
}

func (m *memAccountStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	copyAcct := *a
	return &copyAcct, nil
}

func (m *memAccountStore) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	if a.LastSyncAt == nil || !a.LastSyncAt.After(syncedAt) {
		t := syncedAt.UTC()
		a.LastSyncAt = &t
	}
	return nil
}
