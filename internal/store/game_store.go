package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chessanalytics/ingest-core/internal/domain"
)

// ErrDuplicateGame is returned by GameStore.Insert when the
// (account_id, pgn_hash) pair already exists. It is not a failure at the
// Job level — the Coordinator counts it as a duplicate and continues.
var ErrDuplicateGame = errors.New("game already exists for this account")

// GameStore persists Game records and answers the dedup existence check.
type GameStore interface {
	Exists(ctx context.Context, accountID int64, fingerprint string) (bool, error)
	Insert(ctx context.Context, game *domain.Game) (int64, error)
	CountByAccount(ctx context.Context, accountID int64) (int, error)
	DeleteByAccount(ctx context.Context, accountID int64) error

	// DailyActivity aggregates by UTC calendar day, optionally scoped to
	// [from, to] (either bound nil means unbounded on that side).
	DailyActivity(ctx context.Context, accountID int64, from, to *time.Time) ([]DailyActivity, error)
	BreakdownByColor(ctx context.Context, accountID int64) (ColorBreakdown, error)
	BreakdownByTimeControl(ctx context.Context, accountID int64) (map[domain.TimeControlCategory]ResultTally, error)
}

// ResultTally counts wins/losses/draws for some grouping.
type ResultTally struct {
	Wins   int
	Losses int
	Draws  int
}

// ColorBreakdown is the per-color result tally.
type ColorBreakdown struct {
	White ResultTally
	Black ResultTally
}

// DailyActivity is one row of the daily-activity aggregate.
type DailyActivity struct {
	Date   string // YYYY-MM-DD, UTC calendar day
	Games  int
	Wins   int
	Losses int
	Draws  int
}

type gameStore struct {
	db *sql.DB
}

// NewGameStore builds a Postgres-backed GameStore.
func NewGameStore(db *sql.DB) GameStore {
	return &gameStore{db: db}
}

func (s *gameStore) Exists(ctx context.Context, accountID int64, fingerprint string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM games WHERE account_id = $1 AND pgn_hash = $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, accountID, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("check game existence: %w", err)
	}
	return exists, nil
}

// Insert is grounded on the teacher's dedup-safe insert idiom: an
// ON CONFLICT DO NOTHING ... RETURNING id, where a NULL/no-rows result
// means the row already existed rather than an error.
func (s *gameStore) Insert(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil game payload")
	}

	const query = `
		INSERT INTO games (
			account_id, played_at, result, color, time_control_raw,
			time_control_category, eco_code, opening_name, opponent, pgn_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, pgn_hash) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := s.db.QueryRowContext(
		ctx, query,
		game.AccountID, game.PlayedAt, game.Result, game.Color, game.TimeControlRaw,
		game.TimeControlCategory, game.ECOCode, game.OpeningName, game.Opponent, game.PGNHash,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return id.Int64, nil
}

func (s *gameStore) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM games WHERE account_id = $1`
	var n int
	if err := s.db.QueryRowContext(ctx, query, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games by account: %w", err)
	}
	return n, nil
}

func (s *gameStore) DeleteByAccount(ctx context.Context, accountID int64) error {
	const query = `DELETE FROM games WHERE account_id = $1`
	if _, err := s.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("delete games by account: %w", err)
	}
	return nil
}

func (s *gameStore) DailyActivity(ctx context.Context, accountID int64, from, to *time.Time) ([]DailyActivity, error) {
	query := `
		SELECT
			to_char(played_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE result = 'WIN'),
			COUNT(*) FILTER (WHERE result = 'LOSS'),
			COUNT(*) FILTER (WHERE result = 'DRAW')
		FROM games
		WHERE account_id = $1`

	args := []any{accountID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND played_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND played_at <= $%d", len(args))
	}
	query += " GROUP BY day ORDER BY day"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily activity: %w", err)
	}
	defer rows.Close()

	var out []DailyActivity
	for rows.Next() {
		var d DailyActivity
		if err := rows.Scan(&d.Date, &d.Games, &d.Wins, &d.Losses, &d.Draws); err != nil {
			return nil, fmt.Errorf("scan daily activity: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *gameStore) BreakdownByColor(ctx context.Context, accountID int64) (ColorBreakdown, error) {
	const query = `
		SELECT color,
			COUNT(*) FILTER (WHERE result = 'WIN'),
			COUNT(*) FILTER (WHERE result = 'LOSS'),
			COUNT(*) FILTER (WHERE result = 'DRAW')
		FROM games
		WHERE account_id = $1
		GROUP BY color`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return ColorBreakdown{}, fmt.Errorf("breakdown by color: %w", err)
	}
	defer rows.Close()

	var out ColorBreakdown
	for rows.Next() {
		var color string
		var tally ResultTally
		if err := rows.Scan(&color, &tally.Wins, &tally.Losses, &tally.Draws); err != nil {
			return ColorBreakdown{}, fmt.Errorf("scan breakdown by color: %w", err)
		}
		switch domain.Color(color) {
		case domain.ColorWhite:
			out.White = tally
		case domain.ColorBlack:
			out.Black = tally
		}
	}
	return out, rows.Err()
}

func (s *gameStore) BreakdownByTimeControl(ctx context.Context, accountID int64) (map[domain.TimeControlCategory]ResultTally, error) {
	const query = `
		SELECT time_control_category,
			COUNT(*) FILTER (WHERE result = 'WIN'),
			COUNT(*) FILTER (WHERE result = 'LOSS'),
			COUNT(*) FILTER (WHERE result = 'DRAW')
		FROM games
		WHERE account_id = $1
		GROUP BY time_control_category`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("breakdown by time control: %w", err)
	}
	defer rows.Close()

	out := map[domain.TimeControlCategory]ResultTally{}
	for rows.Next() {
		var category string
		var tally ResultTally
		if err := rows.Scan(&category, &tally.Wins, &tally.Losses, &tally.Draws); err != nil {
			return nil, fmt.Errorf("scan breakdown by time control: %w", err)
		}
		out[domain.TimeControlCategory(category)] = tally
	}
	return out, rows.Err()
}
