package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// AppConfig is the process-wide runtime configuration, loaded once at
// startup from the environment.
type AppConfig struct {
	DatabaseURL string
	RedisURL    string // optional; empty means local in-process pacing only

	ListenAddr string
	UploadDir  string

	IngestWorkerConcurrency int

	ProviderProfileOverrideDir string

	LogLevel  string
	LogFormat string
}

// Load reads AppConfig from the environment, applying the teacher's
// defaults-then-override-from-env idiom.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:              ":8080",
		UploadDir:               "uploads",
		IngestWorkerConcurrency: 8,
		LogLevel:                "info",
		LogFormat:               "console",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("UPLOAD_DIR")); v != "" {
		cfg.UploadDir = v
	}
	if v := strings.TrimSpace(os.Getenv("INGEST_WORKER_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IngestWorkerConcurrency = n
		}
	}
	cfg.ProviderProfileOverrideDir = strings.TrimSpace(os.Getenv("PROVIDER_PROFILE_DIR"))

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}
