package normalize

import (
	"testing"

	"github.com/chessanalytics/ingest-core/internal/domain"
	"github.com/chessanalytics/ingest-core/internal/pgn"
)

func TestCategorizeTimeControl(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.TimeControlCategory
	}{
		{"15", domain.TimeControlUltraBullet},
		{"60", domain.TimeControlBullet},
		{"180", domain.TimeControlBlitz},
		{"180+2", domain.TimeControlBlitz},
		{"600", domain.TimeControlRapid},
		{"1800", domain.TimeControlClassical},
		{"1/86400", domain.TimeControlCorrespondence},
		{"-", domain.TimeControlUnknown},
		{"", domain.TimeControlUnknown},
	}
	for _, c := range cases {
		got := categorizeTimeControl(c.raw)
		if got != c.want {
			t.Fatalf("categorizeTimeControl(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestNormalizeResultMapping(t *testing.T) {
	raw := pgn.RawGame{
		Headers: map[string]string{
			"White":  "me",
			"Black":  "you",
			"Result": "0-1",
			"Date":   "2024.06.15",
		},
		Moves: "1. e4 e5 0-1",
	}
	p := Normalize(raw, "me")
	if p == nil {
		t.Fatalf("expected non-nil ParsedGame")
	}
	if p.Color != domain.ColorWhite {
		t.Fatalf("expected color WHITE, got %q", p.Color)
	}
	if p.Result != domain.ResultLoss {
		t.Fatalf("expected result LOSS, got %q", p.Result)
	}
}

func TestNormalizeCaseInsensitiveUsername(t *testing.T) {
	raw := pgn.RawGame{
		Headers: map[string]string{
			"White":  "Alice",
			"Black":  "Bob",
			"Result": "1-0",
			"Date":   "2024.06.15",
		},
		Moves: "1. e4 e5 1-0",
	}
	p := Normalize(raw, "alice")
	if p == nil {
		t.Fatalf("expected non-nil ParsedGame")
	}
	if p.Color != domain.ColorWhite {
		t.Fatalf("expected color WHITE, got %q", p.Color)
	}
	if p.Opponent != "Bob" {
		t.Fatalf("expected opponent Bob, got %q", p.Opponent)
	}
}

func TestNormalizeNoMatchingUsername(t *testing.T) {
	raw := pgn.RawGame{
		Headers: map[string]string{"White": "Alice", "Black": "Bob", "Result": "1-0"},
	}
	if p := Normalize(raw, "carol"); p != nil {
		t.Fatalf("expected nil for non-matching username, got %+v", p)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	raw := pgn.RawGame{
		Headers: map[string]string{"White": "a", "Black": "b", "Result": "1-0", "Date": "2024.01.01"},
		Moves:   "1. e4 e5 2. Nf3 1-0",
	}
	p1 := Normalize(raw, "a")
	p2 := Normalize(raw, "a")
	if p1.PGNHash != p2.PGNHash {
		t.Fatalf("expected identical fingerprints, got %q vs %q", p1.PGNHash, p2.PGNHash)
	}
	if len(p1.PGNHash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(p1.PGNHash))
	}
}
