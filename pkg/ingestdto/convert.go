package ingestdto

import (
	"sort"

	"github.com/chessanalytics/ingest-core/internal/domain"
	"github.com/chessanalytics/ingest-core/internal/store"
)

// FromJob converts a domain.Job to its wire shape, deriving
// progress_percent.
func FromJob(j *domain.Job) Job {
	return Job{
		ID:                j.ID,
		AccountID:         j.AccountID,
		FileName:          j.FileName,
		Status:            string(j.Status),
		TotalGames:        j.TotalGames,
		ProcessedGames:    j.ProcessedGames,
		DuplicateGames:    j.DuplicateGames,
		ArchivesProcessed: j.ArchivesProcessed,
		TotalArchives:     j.TotalArchives,
		ErrorMessage:      j.ErrorMessage,
		CreatedAt:         j.CreatedAt,
		CompletedAt:       j.CompletedAt,
		ProgressPercent:   j.ProgressPercent(),
	}
}

// FromAccount converts a domain.Account to its wire shape.
func FromAccount(a *domain.Account) Account {
	return Account{
		ID:         a.ID,
		Platform:   string(a.Platform),
		Username:   a.Username,
		Label:      a.Label,
		CreatedAt:  a.CreatedAt,
		LastSyncAt: a.LastSyncAt,
	}
}

func fromResultTally(t store.ResultTally) ResultTally {
	return ResultTally{Wins: t.Wins, Losses: t.Losses, Draws: t.Draws}
}

// FromDailyActivity converts a slice of store.DailyActivity rows.
func FromDailyActivity(rows []store.DailyActivity) []DailyActivity {
	out := make([]DailyActivity, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailyActivity{
			Date: r.Date, Games: r.Games, Wins: r.Wins, Losses: r.Losses, Draws: r.Draws,
		})
	}
	return out
}

// FromColorBreakdown converts a store.ColorBreakdown.
func FromColorBreakdown(b store.ColorBreakdown) ColorBreakdown {
	return ColorBreakdown{White: fromResultTally(b.White), Black: fromResultTally(b.Black)}
}

// FromTimeControlBreakdown converts a map keyed by TimeControlCategory
// into a deterministic slice, sorted by category name.
func FromTimeControlBreakdown(m map[domain.TimeControlCategory]store.ResultTally) []TimeControlBreakdown {
	out := make([]TimeControlBreakdown, 0, len(m))
	for cat, tally := range m {
		out = append(out, TimeControlBreakdown{Category: string(cat), ResultTally: fromResultTally(tally)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
