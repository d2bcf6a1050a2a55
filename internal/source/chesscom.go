package source

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chessanalytics/ingest-core/internal/fetch"
	"github.com/chessanalytics/ingest-core/internal/normalize"
	"github.com/chessanalytics/ingest-core/internal/pgn"
)

const chessComBaseURL = "https://api.chess.com/pub/player"

// ChessComSource performs the two-phase Chess.com discovery/fetch
// sequence: an archive-list lookup, an incremental filter against
// LastSyncAt, then a sequential per-archive fetch. Grounded on the Java
// ChessComApiService's ordering; JSON decoding follows the teacher's
// small-unexported-DTO style used in pkg/chessdto.
type ChessComSource struct {
	Session    *fetch.Session
	Username   string
	LastSyncAt *time.Time
}

type chessComArchiveList struct {
	Archives []string `json:"archives"`
}

type chessComGame struct {
	PGN string `json:"pgn"`
}

type chessComGamesResponse struct {
	Games []chessComGame `json:"games"`
}

var archiveMonthPattern = regexp.MustCompile(`/games/(\d{4})/(\d{2})$`)

// Archives fetches and filters the account's archive list. The
// returned slice is in provider order (oldest first).
func (s *ChessComSource) Archives(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/%s/games/archives", chessComBaseURL, strings.ToLower(s.Username))
	body, err := s.Session.FetchText(ctx, url)
	if err != nil {
		return nil, err
	}
	var list chessComArchiveList
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		return nil, fmt.Errorf("decode archive list: %w", err)
	}
	return filterArchives(list.Archives, s.LastSyncAt), nil
}

// filterArchives drops archives strictly before the year-month of
// lastSync. An archive URL that doesn't match the expected pattern is
// kept conservatively.
func filterArchives(archives []string, lastSync *time.Time) []string {
	if lastSync == nil {
		return archives
	}
	cutoffYear, cutoffMonth := lastSync.UTC().Year(), int(lastSync.UTC().Month())

	out := make([]string, 0, len(archives))
	for _, a := range archives {
		m := archiveMonthPattern.FindStringSubmatch(a)
		if m == nil {
			out = append(out, a)
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if year < cutoffYear || (year == cutoffYear && month < cutoffMonth) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Run fetches each archive in order, normalizes every game it contains,
// and invokes handle. discovered is called with the archive's game
// count as soon as it is known, before any of its games are handed to
// handle, so the Coordinator can bump total_games ahead of processing
// (grounded on ChessComApiService.java's updateJobTotal ordering).
// progress is called after each archive completes with the running
// archives-processed count and the fixed total; a non-retryable
// per-archive failure is swallowed so the job continues.
func (s *ChessComSource) Run(ctx context.Context, archives []string, handle Handler, discovered ArchiveDiscovered, progress Progress) error {
	for i, url := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := s.Session.FetchText(ctx, url)
		if err != nil {
			if isArchiveRetryable(err) {
				return err
			}
			progress(i+1, len(archives))
			continue
		}

		var resp chessComGamesResponse
		if jsonErr := json.Unmarshal([]byte(body), &resp); jsonErr != nil {
			progress(i+1, len(archives))
			continue
		}

		discovered(len(resp.Games))

		for _, g := range resp.Games {
			raw := pgn.ParseOne([]byte(g.PGN))
			game := normalize.Normalize(raw, s.Username)
			if game == nil {
				continue
			}
			if err := handle(ctx, game); err != nil {
				return err
			}
		}
		progress(i+1, len(archives))
	}
	return nil
}

// isArchiveRetryable reports whether err should fail the whole job
// rather than just this archive. Only context cancellation propagates;
// 404s, rate-limiting, and other provider errors on a single archive
// are tolerated so the job continues with the rest. The skipped
// archive's error is not logged.
func isArchiveRetryable(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}
