// Package providerprofile loads the Rate-Limited HTTP Fetcher's
// per-provider scheduling policy from an embedded YAML default with an
// optional on-disk override directory, so operators can retune backoff
// behavior without a rebuild. Adapted from the teacher's
// internal/msgcat/catalog.go embed-then-override loader, generalized
// from a flattened string-template catalog to strongly-typed
// fetch.Profile values.
package providerprofile

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/chessanalytics/ingest-core/internal/fetch"
)

//go:embed profiles.yaml
var defaultFile embed.FS

type profileOverride struct {
	InterRequestDelayMs *int `yaml:"inter_request_delay_ms"`
	InitialBackoffMs    *int `yaml:"initial_backoff_ms"`
	MaxBackoffMs        *int `yaml:"max_backoff_ms"`
	MaxRetries          *int `yaml:"max_retries"`
	RequestTimeoutSec   *int `yaml:"request_timeout_sec"`
}

type overridesFile struct {
	ChessCom *profileOverride `yaml:"chess_com"`
	Lichess  *profileOverride `yaml:"lichess"`
}

// Catalog holds the resolved provider profiles for this process.
type Catalog struct {
	mu       sync.RWMutex
	chessCom fetch.Profile
	lichess  fetch.Profile
}

// New loads the embedded defaults and then applies YAML overrides found
// in overrideDir, if non-empty, in deterministic filename order. Later
// files in the same directory win; a duplicate key inside a single file
// is a YAML parse error so operators notice a misconfiguration.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{
		chessCom: fetch.ChessComProfile,
		lichess:  fetch.LichessProfile,
	}

	raw, err := fs.ReadFile(defaultFile, "profiles.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded provider profiles: %w", err)
	}
	var defaults overridesFile
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("parse embedded provider profiles: %w", err)
	}
	c.apply(&defaults)

	if strings.TrimSpace(overrideDir) == "" {
		return c, nil
	}
	if err := c.applyDir(overrideDir); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read provider profile override dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var ov overridesFile
		if err := yaml.Unmarshal(b, &ov); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		c.apply(&ov)
	}
	return nil
}

func (c *Catalog) apply(ov *overridesFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	applyOverride(&c.chessCom, ov.ChessCom)
	applyOverride(&c.lichess, ov.Lichess)
}

func applyOverride(p *fetch.Profile, ov *profileOverride) {
	if ov == nil {
		return
	}
	if ov.InterRequestDelayMs != nil {
		p.InterRequestDelay = time.Duration(*ov.InterRequestDelayMs) * time.Millisecond
	}
	if ov.InitialBackoffMs != nil {
		p.InitialBackoff = time.Duration(*ov.InitialBackoffMs) * time.Millisecond
	}
	if ov.MaxBackoffMs != nil {
		p.MaxBackoff = time.Duration(*ov.MaxBackoffMs) * time.Millisecond
	}
	if ov.MaxRetries != nil {
		p.MaxRetries = *ov.MaxRetries
	}
	if ov.RequestTimeoutSec != nil {
		p.RequestTimeout = time.Duration(*ov.RequestTimeoutSec) * time.Second
	}
}

// ChessCom returns the current Chess.com profile.
func (c *Catalog) ChessCom() fetch.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chessCom
}

// Lichess returns the current Lichess profile.
func (c *Catalog) Lichess() fetch.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lichess
}
