package fetch

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisPacer(t *testing.T) (Pacer, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisPacer(rdb), func() { mr.Close() }
}

func TestRedisPacerEnforcesDelayAcrossInstances(t *testing.T) {
	pacer, cleanup := newTestRedisPacer(t)
	defer cleanup()
	ctx := context.Background()

	if err := pacer.Wait(ctx, "chess.com", 20*time.Millisecond); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	start := time.Now()
	if err := pacer.Wait(ctx, "chess.com", 20*time.Millisecond); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected second Wait to block for the shared delay, took %v", time.Since(start))
	}
}

func TestLocalPacerZeroDelayNeverBlocks(t *testing.T) {
	p := NewLocalPacer()
	ctx := context.Background()
	start := time.Now()
	if err := p.Wait(ctx, "lichess", 0); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) > 5*time.Millisecond {
		t.Fatalf("expected zero-delay Wait to return immediately")
	}
}
