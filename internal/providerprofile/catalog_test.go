package providerprofile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLoadsEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cc := c.ChessCom()
	if cc.InterRequestDelay != 500*time.Millisecond {
		t.Fatalf("chess.com inter-request delay = %v, want 500ms", cc.InterRequestDelay)
	}
	if cc.MaxRetries != 3 {
		t.Fatalf("chess.com max retries = %d, want 3", cc.MaxRetries)
	}

	li := c.Lichess()
	if li.InterRequestDelay != 0 {
		t.Fatalf("lichess inter-request delay = %v, want 0", li.InterRequestDelay)
	}
	if li.RequestTimeout != 10*time.Minute {
		t.Fatalf("lichess request timeout = %v, want 10m", li.RequestTimeout)
	}
}

func TestNewAppliesOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "chess_com:\n  max_retries: 5\n  inter_request_delay_ms: 750\n"
	if err := os.WriteFile(filepath.Join(dir, "001-local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cc := c.ChessCom()
	if cc.MaxRetries != 5 {
		t.Fatalf("max retries = %d, want 5", cc.MaxRetries)
	}
	if cc.InterRequestDelay != 750*time.Millisecond {
		t.Fatalf("inter-request delay = %v, want 750ms", cc.InterRequestDelay)
	}
	// Untouched fields keep their embedded default.
	if cc.MaxBackoff != 60000*time.Millisecond {
		t.Fatalf("max backoff = %v, want unchanged 60000ms", cc.MaxBackoff)
	}

	li := c.Lichess()
	if li.InterRequestDelay != 0 {
		t.Fatalf("lichess should be untouched by a chess_com-only override file, got %v", li.InterRequestDelay)
	}
}

func TestNewMissingOverrideDirErrors(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatalf("expected error for missing override dir")
	}
}
