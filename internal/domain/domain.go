// Package domain holds the plain data types shared across the ingestion
// pipeline: accounts, jobs, and the games they produce.
package domain

import "time"

// Platform identifies the provider an Account belongs to.
type Platform string

const (
	PlatformChessCom Platform = "CHESS_COM"
	PlatformLichess  Platform = "LICHESS"
	PlatformOther    Platform = "OTHER"
)

// Account is a player identity on a provider. The core only reads
// Platform/Username/LastSyncAt and writes LastSyncAt on a successful sync;
// everything else belongs to an external CRUD surface.
type Account struct {
	ID         int64
	Platform   Platform
	Username   string
	Label      string
	CreatedAt  time.Time
	LastSyncAt *time.Time
}

// JobStatus is the lifecycle state of one logical import.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether s is a terminal status; once terminal, a Job's
// fields never change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one logical import attempt for one account from one source.
// The Coordinator exclusively owns a running Job until it reaches a
// terminal state; pollers only ever read it.
type Job struct {
	ID                int64
	AccountID         int64
	FileName          string
	Status            JobStatus
	TotalGames        *int
	ProcessedGames    int
	DuplicateGames    int
	ArchivesProcessed *int
	TotalArchives     *int
	ErrorMessage      string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// ProgressPercent returns floor(100*processed/total) when total is known
// and positive, else nil.
func (j *Job) ProgressPercent() *int {
	if j.TotalGames == nil || *j.TotalGames <= 0 {
		return nil
	}
	p := (100 * j.ProcessedGames) / *j.TotalGames
	return &p
}

// GameResult is the outcome of a game from the ingesting player's
// perspective.
type GameResult string

const (
	ResultWin  GameResult = "WIN"
	ResultLoss GameResult = "LOSS"
	ResultDraw GameResult = "DRAW"
)

// Color is the side the ingesting player held.
type Color string

const (
	ColorWhite Color = "WHITE"
	ColorBlack Color = "BLACK"
)

// TimeControlCategory buckets a PGN TimeControl header into a coarse class.
type TimeControlCategory string

const (
	TimeControlUltraBullet   TimeControlCategory = "ULTRABULLET"
	TimeControlBullet        TimeControlCategory = "BULLET"
	TimeControlBlitz         TimeControlCategory = "BLITZ"
	TimeControlRapid         TimeControlCategory = "RAPID"
	TimeControlClassical     TimeControlCategory = "CLASSICAL"
	TimeControlCorrespondence TimeControlCategory = "CORRESPONDENCE"
	TimeControlUnknown       TimeControlCategory = "UNKNOWN"
)

// Game is one ingested game. Written once by the Coordinator after a
// successful dedup check; never updated afterward.
type Game struct {
	ID                 int64
	AccountID          int64
	PlayedAt           time.Time
	Result             GameResult
	Color              Color
	TimeControlRaw     string
	TimeControlCategory TimeControlCategory
	ECOCode            string
	OpeningName        string
	Opponent           string
	PGNHash            string
	CreatedAt          time.Time
}
