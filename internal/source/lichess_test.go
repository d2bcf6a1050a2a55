package source

import (
	"strings"
	"testing"
	"time"

	"github.com/chessanalytics/ingest-core/internal/fetch"
)

func TestLichessRequestURLWithoutLastSync(t *testing.T) {
	s := &LichessSource{Session: &fetch.Session{}, Username: "Bob"}
	u := s.requestURL()
	if !strings.Contains(u, "/user/bob?") {
		t.Fatalf("expected lowercase username in path, got %s", u)
	}
	if strings.Contains(u, "since=") {
		t.Fatalf("expected no since param without LastSyncAt, got %s", u)
	}
	for _, want := range []string{"moves=true", "tags=true", "clocks=false", "evals=false", "opening=true"} {
		if !strings.Contains(u, want) {
			t.Fatalf("expected query to contain %s, got %s", want, u)
		}
	}
}

func TestLichessRequestURLWithLastSync(t *testing.T) {
	last := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s := &LichessSource{Session: &fetch.Session{}, Username: "bob", LastSyncAt: &last}
	u := s.requestURL()
	want := "since=" + "1718452800000"
	if !strings.Contains(u, want) {
		t.Fatalf("expected %s in %s", want, u)
	}
}
