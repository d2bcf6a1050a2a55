package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chessanalytics/ingest-core/internal/config"
	"github.com/chessanalytics/ingest-core/internal/fetch"
	"github.com/chessanalytics/ingest-core/internal/httpapi"
	"github.com/chessanalytics/ingest-core/internal/ingest"
	"github.com/chessanalytics/ingest-core/internal/migrate"
	"github.com/chessanalytics/ingest-core/internal/obslog"
	"github.com/chessanalytics/ingest-core/internal/providerprofile"
	"github.com/chessanalytics/ingest-core/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("create upload dir failed", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open postgres failed", zap.Error(err))
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.Fatal("ping postgres failed", zap.Error(err))
	}
	cancel()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrate.Apply(migrateCtx, db); err != nil {
		cancel()
		logger.Fatal("apply migrations failed", zap.Error(err))
	}
	cancel()

	games := store.NewGameStore(db)
	jobs := store.NewJobStore(db)
	accounts := store.NewAccountStore(db)

	catalog, err := providerprofile.New(cfg.ProviderProfileOverrideDir)
	if err != nil {
		logger.Fatal("load provider profiles failed", zap.Error(err))
	}

	var fetchOpts []fetch.Option
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("parse redis url failed", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		fetchOpts = append(fetchOpts, fetch.WithPacer(fetch.NewRedisPacer(rdb)))
	}
	client := fetch.NewClient(fetchOpts...)

	coordinator := ingest.New(games, jobs, accounts, client, catalog, logger, cfg.IngestWorkerConcurrency)

	mux := httpapi.New(accounts, games, jobs, coordinator, cfg.UploadDir, logger)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
}
