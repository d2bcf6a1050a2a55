package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pacer enforces the inter-request delay for a provider. Wait reserves
// the next slot, then blocks until it is safe to issue the request.
type Pacer interface {
	Wait(ctx context.Context, provider string, delay time.Duration) error
}

// localPacer is an in-process pacer: one Go process, one clock. This is
// the default, and what every single-instance test relies on for
// locally-observable inter-request timings. 429 backoff sleeps do not
// go through a Pacer.
type localPacer struct {
	mu   sync.Mutex
	next map[string]time.Time
}

// NewLocalPacer builds the default in-process Pacer.
func NewLocalPacer() Pacer {
	return &localPacer{next: make(map[string]time.Time)}
}

func (p *localPacer) Wait(ctx context.Context, provider string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	p.mu.Lock()
	wait := time.Until(p.next[provider])
	p.next[provider] = timeNowOrLater(p.next[provider]).Add(delay)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleepWithContext(ctx, wait)
}

func timeNowOrLater(t time.Time) time.Time {
	now := time.Now()
	if t.After(now) {
		return t
	}
	return now
}

// redisPacer paces requests against a key shared across process
// instances, so that two ingestion workers importing from the same
// provider concurrently (for different accounts) still respect one
// shared inter-request budget. Grounded on internal/pvpchess/manager.go's
// rdb.Watch(ctx, fn, key) + TxPipeline optimistic-concurrency idiom.
type redisPacer struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewRedisPacer builds a Pacer backed by rdb.
func NewRedisPacer(rdb *redis.Client) Pacer {
	return &redisPacer{rdb: rdb, keyPrefix: "ingest:pacer:"}
}

func (p *redisPacer) Wait(ctx context.Context, provider string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	key := p.keyPrefix + provider

	var wait time.Duration
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		var nextAllowed time.Time
		if err == nil {
			ms, perr := parseUnixMilli(raw)
			if perr == nil {
				nextAllowed = time.UnixMilli(ms)
			}
		} else if err != redis.Nil {
			return err
		}

		now := time.Now()
		wait = time.Until(nextAllowed)
		reserved := now
		if nextAllowed.After(now) {
			reserved = nextAllowed
		}
		newNext := reserved.Add(delay)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, fmt.Sprintf("%d", newNext.UnixMilli()), delay*4)
			return nil
		})
		return err
	}

	if err := p.rdb.Watch(ctx, txf, key); err != nil {
		return fmt.Errorf("redis pacer: %w", err)
	}
	if wait <= 0 {
		return nil
	}
	return sleepWithContext(ctx, wait)
}

func parseUnixMilli(s string) (int64, error) {
	var ms int64
	_, err := fmt.Sscanf(s, "%d", &ms)
	return ms, err
}
