// Package normalize maps a raw parsed PGN game into the pipeline's
// internal domain.Game shape: player color, result from the player's
// perspective, time-control category, UTC timestamp, and a stable
// deduplication fingerprint.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chessanalytics/ingest-core/internal/domain"
	"github.com/chessanalytics/ingest-core/internal/pgn"
)

// ParsedGame is a normalized, validated game ready for storage. A nil
// return from Normalize means the raw game could not be attributed to
// the given username (neither side matches) or is otherwise invalid.
type ParsedGame struct {
	PlayedAt            time.Time
	Result              domain.GameResult
	Color               domain.Color
	TimeControlRaw      string
	TimeControlCategory domain.TimeControlCategory
	ECOCode             string
	OpeningName         string
	Opponent            string
	PGNHash             string
}

// valid reports whether p carries the four fields the spec requires for
// a game to be persisted. TimeControlCategory is never required —
// UNKNOWN is a valid category.
func (p *ParsedGame) valid() bool {
	return p != nil && !p.PlayedAt.IsZero() && p.Result != "" && p.Color != "" && p.PGNHash != ""
}

// Normalize converts a raw parsed game into a ParsedGame from the
// perspective of username, or returns nil if username matches neither
// the White nor the Black header, or if the result is otherwise invalid.
func Normalize(raw pgn.RawGame, username string) *ParsedGame {
	white := raw.Headers["White"]
	black := raw.Headers["Black"]

	var color domain.Color
	var opponent string
	switch {
	case strings.EqualFold(strings.TrimSpace(white), strings.TrimSpace(username)):
		color = domain.ColorWhite
		opponent = black
	case strings.EqualFold(strings.TrimSpace(black), strings.TrimSpace(username)):
		color = domain.ColorBlack
		opponent = white
	default:
		return nil
	}

	result := parseResult(raw.Headers["Result"], color)
	playedAt := parsePlayedAt(raw.Headers["Date"], raw.Headers["UTCTime"], raw.Headers["Time"])
	category := categorizeTimeControl(raw.Headers["TimeControl"])
	hash := fingerprint(raw.Headers["Date"], white, black, raw.Headers["Result"], raw.Moves)

	p := &ParsedGame{
		PlayedAt:            playedAt,
		Result:              result,
		Color:               color,
		TimeControlRaw:      raw.Headers["TimeControl"],
		TimeControlCategory: category,
		ECOCode:             raw.Headers["ECO"],
		OpeningName:         raw.Headers["Opening"],
		Opponent:            opponent,
		PGNHash:             hash,
	}
	if !p.valid() {
		return nil
	}
	return p
}

// parseResult maps the PGN result token to a GameResult from the given
// color's perspective. "1/2-1/2" and anything unrecognized (including
// "*") are treated as a DRAW.
func parseResult(token string, color domain.Color) domain.GameResult {
	switch strings.TrimSpace(token) {
	case "1-0":
		if color == domain.ColorWhite {
			return domain.ResultWin
		}
		return domain.ResultLoss
	case "0-1":
		if color == domain.ColorBlack {
			return domain.ResultWin
		}
		return domain.ResultLoss
	default:
		return domain.ResultDraw
	}
}

const (
	dateLayout = "2006.01.02"
	timeLayout = "15:04:05"
)

// parsePlayedAt combines the Date header with UTCTime (preferred) or
// Time into a UTC timestamp. A missing or "?"-containing Date falls back
// to today; a missing time falls back to midnight.
func parsePlayedAt(dateRaw, utcTimeRaw, timeRaw string) time.Time {
	dateRaw = strings.TrimSpace(dateRaw)
	var day time.Time
	if dateRaw == "" || strings.Contains(dateRaw, "?") {
		day = time.Now().UTC()
	} else if d, err := time.Parse(dateLayout, dateRaw); err == nil {
		day = d
	} else {
		day = time.Now().UTC()
	}

	timeStr := strings.TrimSpace(utcTimeRaw)
	if timeStr == "" {
		timeStr = strings.TrimSpace(timeRaw)
	}
	hour, min, sec := 0, 0, 0
	if timeStr != "" {
		if t, err := time.Parse(timeLayout, timeStr); err == nil {
			hour, min, sec = t.Hour(), t.Minute(), t.Second()
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, sec, 0, time.UTC)
}

var timeControlBaseSeconds = regexp.MustCompile(`^\d+`)

// categorizeTimeControl buckets a raw PGN TimeControl header value.
func categorizeTimeControl(raw string) domain.TimeControlCategory {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return domain.TimeControlUnknown
	}
	if strings.Contains(raw, "/") {
		// "1/86400"-style correspondence notation, unless it's a
		// fractional base+increment like "180+2/5" — the spec treats any
		// '/' as correspondence.
		return domain.TimeControlCorrespondence
	}
	prefix := strings.SplitN(raw, "+", 2)[0]
	m := timeControlBaseSeconds.FindString(prefix)
	if m == "" {
		return domain.TimeControlUnknown
	}
	base, err := strconv.Atoi(m)
	if err != nil {
		return domain.TimeControlUnknown
	}
	switch {
	case base < 30:
		return domain.TimeControlUltraBullet
	case base < 180:
		return domain.TimeControlBullet
	case base < 600:
		return domain.TimeControlBlitz
	case base < 1800:
		return domain.TimeControlRapid
	default:
		return domain.TimeControlClassical
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// fingerprint computes the SHA-256 hex digest used for deduplication:
// Date ++ White ++ Black ++ Result ++ first 200 bytes of the
// whitespace-collapsed move text. Missing headers contribute "".
func fingerprint(date, white, black, result, moves string) string {
	collapsed := strings.TrimSpace(whitespaceRun.ReplaceAllString(moves, " "))
	if len(collapsed) > 200 {
		collapsed = collapsed[:200]
	}
	h := sha256.New()
	h.Write([]byte(date))
	h.Write([]byte(white))
	h.Write([]byte(black))
	h.Write([]byte(result))
	h.Write([]byte(collapsed))
	return hex.EncodeToString(h.Sum(nil))
}
