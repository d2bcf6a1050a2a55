package source

import (
	"testing"
	"time"
)

func TestFilterArchivesNoLastSync(t *testing.T) {
	archives := []string{
		"https://api.chess.com/pub/player/bob/games/2023/01",
		"https://api.chess.com/pub/player/bob/games/2023/02",
	}
	got := filterArchives(archives, nil)
	if len(got) != 2 {
		t.Fatalf("expected all archives kept, got %d", len(got))
	}
}

func TestFilterArchivesDropsStrictlyBeforeCutoff(t *testing.T) {
	archives := []string{
		"https://api.chess.com/pub/player/bob/games/2022/12",
		"https://api.chess.com/pub/player/bob/games/2023/01",
		"https://api.chess.com/pub/player/bob/games/2023/02",
	}
	lastSync := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	got := filterArchives(archives, &lastSync)
	if len(got) != 2 {
		t.Fatalf("expected 2 archives kept, got %d: %v", len(got), got)
	}
	if got[0] != archives[1] || got[1] != archives[2] {
		t.Fatalf("expected 2023/01 and 2023/02 kept, got %v", got)
	}
}

func TestFilterArchivesKeepsUnrecognizedURL(t *testing.T) {
	archives := []string{"https://api.chess.com/pub/player/bob/games/weird"}
	lastSync := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	got := filterArchives(archives, &lastSync)
	if len(got) != 1 {
		t.Fatalf("expected the unrecognized archive kept conservatively, got %v", got)
	}
}
