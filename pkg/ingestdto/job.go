// Package ingestdto holds the plain JSON wire shapes for the HTTP
// surface, grounded on pkg/chessdto's plain-struct style and
// internal/pvpchess/types.go's json-tag conventions.
package ingestdto

import "time"

// Job is the wire shape for a Job, including the derived
// progress_percent field.
type Job struct {
	ID                int64     `json:"id"`
	AccountID         int64     `json:"account_id"`
	FileName          string    `json:"file_name,omitempty"`
	Status            string    `json:"status"`
	TotalGames        *int      `json:"total_games"`
	ProcessedGames    int       `json:"processed_games"`
	DuplicateGames    int       `json:"duplicate_games"`
	ArchivesProcessed *int      `json:"archives_processed"`
	TotalArchives     *int      `json:"total_archives"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	ProgressPercent   *int      `json:"progress_percent"`
}
