// Package pgn implements a streaming, line-oriented reader for Portable
// Game Notation text: a lazy sequence of header maps plus a move-text
// blob, one per game, without buffering the full corpus into memory.
package pgn

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

var headerLine = regexp.MustCompile(`^\[([A-Za-z]+)\s+"([^"]*)"\]$`)

// RawGame is one unparsed game as assembled by the tokenizer: a header
// map plus the concatenated move text, space-joined.
type RawGame struct {
	Headers map[string]string
	Moves   string
}

type state int

const (
	stateHeaders state = iota
	stateMoves
)

// ParseStream reads PGN text from r and invokes emit once per well-formed
// game it assembles. It never returns early on a malformed game — callers
// that need per-game validation do it in emit and simply skip the result.
func ParseStream(r io.Reader, emit func(RawGame)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	st := stateHeaders
	headers := map[string]string{}
	var moves strings.Builder

	flush := func() {
		if len(headers) == 0 && moves.Len() == 0 {
			return
		}
		emit(RawGame{Headers: headers, Moves: strings.TrimSpace(moves.String())})
		headers = map[string]string{}
		moves.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch st {
		case stateHeaders:
			if line == "" {
				continue
			}
			if m := headerLine.FindStringSubmatch(line); m != nil {
				headers[m[1]] = m[2]
				continue
			}
			if strings.HasPrefix(line, "[") {
				// A bracket line that does not match the header pattern is
				// a malformed header: it is dropped and the game keeps
				// assembling its headers.
				continue
			}
			// A non-bracket, non-blank line while still in HEADERS moves
			// straight into the move section (the blank separator is
			// optional in practice).
			st = stateMoves
			appendMove(&moves, line)
		case stateMoves:
			if line == "" {
				flush()
				st = stateHeaders
				continue
			}
			if strings.HasPrefix(line, "[") {
				// A new header line while still assembling moves starts a
				// new game; this tolerates providers that omit the
				// inter-game blank line.
				flush()
				st = stateHeaders
				if m := headerLine.FindStringSubmatch(line); m != nil {
					headers[m[1]] = m[2]
				} else {
					st = stateMoves
					appendMove(&moves, line)
				}
				continue
			}
			appendMove(&moves, line)
		}
	}
	flush()
	return scanner.Err()
}

func appendMove(b *strings.Builder, line string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(line)
}

// ParseOne parses a single game from a byte slice that already represents
// exactly one PGN game, with no inter-game boundary to detect. Used by
// providers (Chess.com) that hand us pre-delimited PGN strings.
func ParseOne(data []byte) RawGame {
	var out RawGame
	ParseStream(strings.NewReader(string(data)), func(g RawGame) {
		if out.Headers == nil {
			out = g
		}
	})
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	return out
}

// CountGames counts occurrences of the "[Event " tag at line start
// without materializing any game. Used only to compute a progress total
// for file uploads; never called on streaming sources.
func CountGames(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		if strings.HasPrefix(strings.TrimSpace(scanner.Text()), "[Event ") {
			count++
		}
	}
	return count, scanner.Err()
}
