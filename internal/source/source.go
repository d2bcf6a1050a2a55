// Package source implements the three Source Adapters that feed the
// Ingestion Coordinator: a local PGN file, the Chess.com public API,
// and the Lichess streaming export API. Each adapter emits normalized
// games to a caller-supplied handler and reports its own progress
// shape back through a small Progress callback rather than writing to
// the Job Store directly, so the Coordinator owns all persistence.
package source

import (
	"context"

	"github.com/chessanalytics/ingest-core/internal/normalize"
)

// Handler is invoked once per normalized game, in source order.
type Handler func(ctx context.Context, game *normalize.ParsedGame) error

// Progress reports incremental archive counts back to the Coordinator
// so it can flush them to the Job Store. Only ChessComSource takes a
// Progress; LichessSource reports a processed count through its own
// callback and PgnFileSource reports none.
type Progress func(archivesProcessed, totalArchives int)

// ArchiveDiscovered reports the number of games found in an archive
// just fetched, before any of them are handed to Handler. The
// Coordinator uses this to give total_games headroom for the whole
// archive up front, rather than deriving it from the processed count.
type ArchiveDiscovered func(gamesInArchive int)
