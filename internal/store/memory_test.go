package store

import (
	"context"
	"testing"
	"time"

	"github.com/chessanalytics/ingest-core/internal/domain"
)

func TestMemoryGameStoreDedup(t *testing.T) {
	s := NewMemoryGameStore()
	ctx := context.Background()

	g := &domain.Game{AccountID: 1, PlayedAt: time.Now().UTC(), Result: domain.ResultWin, Color: domain.ColorWhite, PGNHash: "abc"}
	if _, err := s.Insert(ctx, g); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.Insert(ctx, g); err != ErrDuplicateGame {
		t.Fatalf("expected ErrDuplicateGame on second insert, got %v", err)
	}

	exists, err := s.Exists(ctx, 1, "abc")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected game to exist")
	}

	count, err := s.CountByAccount(ctx, 1)
	if err != nil {
		t.Fatalf("CountByAccount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestMemoryGameStoreDailyActivityDateRange(t *testing.T) {
	s := NewMemoryGameStore()
	ctx := context.Background()

	day1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	for i, played := range []time.Time{day1, day2, day3} {
		g := &domain.Game{AccountID: 1, PlayedAt: played, Result: domain.ResultWin, Color: domain.ColorWhite, PGNHash: string(rune('a' + i))}
		if _, err := s.Insert(ctx, g); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	rows, err := s.DailyActivity(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("DailyActivity unscoped: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 days unscoped, got %d", len(rows))
	}

	from := day2
	rows, err = s.DailyActivity(ctx, 1, &from, nil)
	if err != nil {
		t.Fatalf("DailyActivity from day2: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 days from day2, got %d", len(rows))
	}

	to := day2
	rows, err = s.DailyActivity(ctx, 1, nil, &to)
	if err != nil {
		t.Fatalf("DailyActivity to day2: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 days up to day2, got %d", len(rows))
	}

	rows, err = s.DailyActivity(ctx, 1, &from, &to)
	if err != nil {
		t.Fatalf("DailyActivity from/to day2: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 day in [day2,day2], got %d", len(rows))
	}
}

func TestMemoryJobStoreLifecycle(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	id, err := s.Create(ctx, &domain.Job{AccountID: 7})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := s.ExistsActive(ctx, 7)
	if err != nil || !active {
		t.Fatalf("ExistsActive: %v, active=%v", err, active)
	}

	if err := s.SetProcessing(ctx, id); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}
	if err := s.FlushCounters(ctx, id, 3, 1); err != nil {
		t.Fatalf("FlushCounters: %v", err)
	}
	if err := s.MarkCompleted(ctx, id); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Fatalf("expected COMPLETED, got %q", job.Status)
	}
	if job.ProcessedGames != 3 || job.DuplicateGames != 1 {
		t.Fatalf("unexpected counters: %+v", job)
	}

	active, err = s.ExistsActive(ctx, 7)
	if err != nil || active {
		t.Fatalf("expected no active job after completion, active=%v err=%v", active, err)
	}
}
