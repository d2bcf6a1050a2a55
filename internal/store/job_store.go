package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chessanalytics/ingest-core/internal/domain"
)

// JobStore persists Job records and their mutable counters. Each
// mutation is its own committed unit of work so a concurrent poller
// sees fresh values while the surrounding import is still in progress.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Job, error)
	SetProcessing(ctx context.Context, id int64) error
	SetTotalGames(ctx context.Context, id int64, total int) error
	SetTotalArchives(ctx context.Context, id int64, total int) error
	FlushCounters(ctx context.Context, id int64, processed, duplicates int) error
	FlushArchiveProgress(ctx context.Context, id int64, archivesProcessed, totalGamesSoFar int) error
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExistsActive(ctx context.Context, accountID int64) (bool, error)
}

type jobStore struct {
	db *sql.DB
}

// NewJobStore builds a Postgres-backed JobStore.
func NewJobStore(db *sql.DB) JobStore {
	return &jobStore{db: db}
}

func (s *jobStore) Create(ctx context.Context, job *domain.Job) (int64, error) {
	const query = `
		INSERT INTO jobs (account_id, file_name, status, total_games, processed_games, duplicate_games)
		VALUES ($1, $2, $3, $4, 0, 0)
		RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, query, job.AccountID, job.FileName, domain.JobPending, job.TotalGames).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

func (s *jobStore) Get(ctx context.Context, id int64) (*domain.Job, error) {
	const query = `
		SELECT id, account_id, file_name, status, total_games, processed_games,
			duplicate_games, archives_processed, total_archives, error_message,
			created_at, completed_at
		FROM jobs WHERE id = $1`

	var j domain.Job
	var fileName, errMsg sql.NullString
	var totalGames, archivesProcessed, totalArchives sql.NullInt64
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.AccountID, &fileName, &j.Status, &totalGames, &j.ProcessedGames,
		&j.DuplicateGames, &archivesProcessed, &totalArchives, &errMsg,
		&j.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	j.FileName = fileName.String
	j.ErrorMessage = errMsg.String
	if totalGames.Valid {
		v := int(totalGames.Int64)
		j.TotalGames = &v
	}
	if archivesProcessed.Valid {
		v := int(archivesProcessed.Int64)
		j.ArchivesProcessed = &v
	}
	if totalArchives.Valid {
		v := int(totalArchives.Int64)
		j.TotalArchives = &v
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

func (s *jobStore) SetProcessing(ctx context.Context, id int64) error {
	const query = `UPDATE jobs SET status = $2 WHERE id = $1 AND status = $3`
	_, err := s.db.ExecContext(ctx, query, id, domain.JobProcessing, domain.JobPending)
	if err != nil {
		return fmt.Errorf("set job processing: %w", err)
	}
	return nil
}

func (s *jobStore) SetTotalGames(ctx context.Context, id int64, total int) error {
	const query = `UPDATE jobs SET total_games = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, total); err != nil {
		return fmt.Errorf("set job total games: %w", err)
	}
	return nil
}

func (s *jobStore) SetTotalArchives(ctx context.Context, id int64, total int) error {
	const query = `UPDATE jobs SET total_archives = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, total); err != nil {
		return fmt.Errorf("set job total archives: %w", err)
	}
	return nil
}

// FlushCounters is grounded on the teacher's ON CONFLICT ... DO UPDATE
// counter-upsert idiom, generalized to a plain UPDATE since the row
// always already exists by the time a flush runs.
func (s *jobStore) FlushCounters(ctx context.Context, id int64, processed, duplicates int) error {
	const query = `UPDATE jobs SET processed_games = $2, duplicate_games = $3 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, processed, duplicates); err != nil {
		return fmt.Errorf("flush job counters: %w", err)
	}
	return nil
}

func (s *jobStore) FlushArchiveProgress(ctx context.Context, id int64, archivesProcessed, totalGamesSoFar int) error {
	const query = `UPDATE jobs SET archives_processed = $2, total_games = $3 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, archivesProcessed, totalGamesSoFar); err != nil {
		return fmt.Errorf("flush archive progress: %w", err)
	}
	return nil
}

func (s *jobStore) MarkCompleted(ctx context.Context, id int64) error {
	const query = `UPDATE jobs SET status = $2, completed_at = $3 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, domain.JobCompleted, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (s *jobStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	const query = `UPDATE jobs SET status = $2, error_message = $3, completed_at = $4 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, domain.JobFailed, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

func (s *jobStore) ExistsActive(ctx context.Context, accountID int64) (bool, error) {
	const query = `SELECT EXISTS(
		SELECT 1 FROM jobs WHERE account_id = $1 AND status IN ($2, $3)
	)`
	var exists bool
	err := s.db.QueryRowContext(ctx, query, accountID, domain.JobPending, domain.JobProcessing).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active job: %w", err)
	}
	return exists, nil
}
