package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chessanalytics/ingest-core/internal/domain"
	"github.com/chessanalytics/ingest-core/internal/fetch"
	"github.com/chessanalytics/ingest-core/internal/providerprofile"
	"github.com/chessanalytics/ingest-core/internal/store"
)

const threeGamesPGN = `[Event "Test"]
[White "alice"]
[Black "bob"]
[Date "2024.01.01"]
[Result "1-0"]

1. e4 e5 2. Nf3 *

[Event "Test"]
[White "carl"]
[Black "alice"]
[Date "2024.01.02"]
[Result "0-1"]

1. d4 d5 *

[Event "Test"]
[White "alice"]
[Black "dave"]
[Date "2024.01.03"]
[Result "1/2-1/2"]

1. c4 c5 *
`

func waitForTerminal(t *testing.T, jobs store.JobStore, jobID int64) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job != nil && job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach a terminal state in time", jobID)
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, store.GameStore, store.JobStore, store.AccountStore, *domain.Account) {
	t.Helper()
	catalog, err := providerprofile.New("")
	if err != nil {
		t.Fatalf("providerprofile.New: %v", err)
	}
	games := store.NewMemoryGameStore()
	jobs := store.NewMemoryJobStore()
	account := &domain.Account{ID: 1, Platform: domain.PlatformOther, Username: "alice"}
	accounts := store.NewMemoryAccountStore(account)
	log := zap.NewNop()
	c := New(games, jobs, accounts, fetch.NewClient(), catalog, log, 4)
	return c, games, jobs, accounts, account
}

func TestEnqueueFileImportProcessesAllGames(t *testing.T) {
	c, games, jobs, _, account := newTestCoordinator(t)

	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(threeGamesPGN), 0o644); err != nil {
		t.Fatalf("write pgn: %v", err)
	}

	job, err := c.EnqueueFileImport(context.Background(), account, path, "games.pgn")
	if err != nil {
		t.Fatalf("EnqueueFileImport: %v", err)
	}

	final := waitForTerminal(t, jobs, job.ID)
	if final.Status != domain.JobCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", final.Status, final.ErrorMessage)
	}
	if final.ProcessedGames != 3 {
		t.Fatalf("expected 3 processed games, got %d", final.ProcessedGames)
	}
	if final.DuplicateGames != 0 {
		t.Fatalf("expected 0 duplicates on first run, got %d", final.DuplicateGames)
	}
	n, err := games.CountByAccount(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("CountByAccount: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 stored games, got %d", n)
	}
}

func TestEnqueueFileImportSecondRunIsAllDuplicates(t *testing.T) {
	c, _, jobs, _, account := newTestCoordinator(t)

	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(threeGamesPGN), 0o644); err != nil {
		t.Fatalf("write pgn: %v", err)
	}

	first, err := c.EnqueueFileImport(context.Background(), account, path, "games.pgn")
	if err != nil {
		t.Fatalf("first EnqueueFileImport: %v", err)
	}
	waitForTerminal(t, jobs, first.ID)

	second, err := c.EnqueueFileImport(context.Background(), account, path, "games.pgn")
	if err != nil {
		t.Fatalf("second EnqueueFileImport: %v", err)
	}
	final := waitForTerminal(t, jobs, second.ID)
	if final.ProcessedGames != 3 || final.DuplicateGames != 3 {
		t.Fatalf("expected processed=3 duplicates=3 on rerun, got processed=%d duplicates=%d",
			final.ProcessedGames, final.DuplicateGames)
	}
}

func TestEnqueueFileImportRejectsConcurrentJob(t *testing.T) {
	c, _, _, _, account := newTestCoordinator(t)

	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(threeGamesPGN), 0o644); err != nil {
		t.Fatalf("write pgn: %v", err)
	}

	if _, err := c.EnqueueFileImport(context.Background(), account, path, "games.pgn"); err != nil {
		t.Fatalf("first EnqueueFileImport: %v", err)
	}
	if _, err := c.EnqueueFileImport(context.Background(), account, path, "games.pgn"); err != ErrImportActive {
		t.Fatalf("expected ErrImportActive, got %v", err)
	}
}

func TestEnqueueChessComImportRejectsWrongPlatform(t *testing.T) {
	c, _, _, _, account := newTestCoordinator(t)
	account.Platform = domain.PlatformLichess
	if _, err := c.EnqueueChessComImport(context.Background(), account); err != ErrWrongPlatform {
		t.Fatalf("expected ErrWrongPlatform, got %v", err)
	}
}
