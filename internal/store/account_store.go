package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chessanalytics/ingest-core/internal/domain"
)

// AccountStore is the core's minimal view onto accounts: it only reads
// Platform/Username/LastSyncAt and writes LastSyncAt on a successful
// sync. Account creation/validation is an external collaborator.
type AccountStore interface {
	Get(ctx context.Context, id int64) (*domain.Account, error)
	SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error
}

type accountStore struct {
	db *sql.DB
}

// NewAccountStore builds a Postgres-backed AccountStore.
func NewAccountStore(db *sql.DB) AccountStore {
	return &accountStore{db: db}
}

func (s *accountStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	const query = `SELECT id, platform, username, label, created_at, last_sync_at FROM accounts WHERE id = $1`

	var a domain.Account
	var label sql.NullString
	var lastSyncAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Platform, &a.Username, &label, &a.CreatedAt, &lastSyncAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Label = label.String
	if lastSyncAt.Valid {
		a.LastSyncAt = &lastSyncAt.Time
	}
	return &a, nil
}

// SetLastSyncAt advances last_sync_at only if syncedAt is not earlier
// than the current value, preserving the monotonicity invariant even
// under out-of-order concurrent writers.
func (s *accountStore) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	const query = `UPDATE accounts SET last_sync_at = $2 WHERE id = $1 AND (last_sync_at IS NULL OR last_sync_at <= $2)`
	if _, err := s.db.ExecContext(ctx, query, id, syncedAt.UTC()); err != nil {
		return fmt.Errorf("set account last_sync_at: %w", err)
	}
	return nil
}

// NormalizeUsername returns the canonical comparison form for an
// account username: (platform, lowercase(username)) identifies an
// account.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
