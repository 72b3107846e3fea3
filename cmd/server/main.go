// Command server runs the CodeClinic API: it orchestrates website
// vulnerability scans against an OWASP ZAP instance, turns findings
// into AI-generated security quizzes, and persists quiz progress.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codeclinic/codeclinic/pkg/ai"
	"github.com/codeclinic/codeclinic/pkg/config"
	"github.com/codeclinic/codeclinic/pkg/database"
	"github.com/codeclinic/codeclinic/pkg/jobstore"
	"github.com/codeclinic/codeclinic/pkg/logging"
	"github.com/codeclinic/codeclinic/pkg/metrics"
	"github.com/codeclinic/codeclinic/pkg/orchestrator"
	"github.com/codeclinic/codeclinic/pkg/quiz"
	"github.com/codeclinic/codeclinic/pkg/server"
	"github.com/codeclinic/codeclinic/pkg/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	scanner := zap.New(zap.Config{
		BaseURL:     cfg.Scanner.BaseURL,
		APIKey:      cfg.Scanner.APIKey,
		MaxChildren: cfg.Scanner.MaxChildren,
	}, log)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var db *database.DB
	if cfg.Database.DSN != "" {
		db, err = database.Open(ctx, cfg.Database.DSN, log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("no database configured, quiz persistence disabled")
	}

	var quizClient ai.Client = ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.Model, "")
	if rpm := cfg.AI.RequestsPerMinute; rpm > 0 {
		quizClient = ai.Throttle(quizClient, rate.Limit(rpm/60), 1)
	}
	generator := quiz.NewGenerator(quizClient, log)

	orch := orchestrator.New(orchestrator.Config{
		Workers:           cfg.Scan.Workers,
		MaxPages:          cfg.Scan.MaxPages,
		SpiderTimeout:     cfg.Scan.SpiderTimeout,
		ActiveScanTimeout: cfg.Scan.ActiveScanTimeout,
	}, scanner, store, m, log)
	defer orch.Close()

	if !scanner.Available(ctx) {
		log.Warn().Str("base_url", cfg.Scanner.BaseURL).
			Msg("scanner unreachable at startup, scans will fail until it comes up")
	}

	go cleanupLoop(ctx, store, time.Hour, 24*time.Hour, log)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, orch, store, generator, db, m, log)

	return srv.Serve(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (jobstore.Store, error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("using in-memory job store")
		return jobstore.NewMemory(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis job store")
	return jobstore.NewRedis(rdb, log), nil
}

// cleanupLoop expires finished jobs so the store does not grow without
// bound on long-running deployments.
func cleanupLoop(ctx context.Context, store jobstore.Store, interval, maxAge time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Cleanup(ctx, maxAge)
			if err != nil {
				log.Error().Err(err).Msg("job cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int("removed", n).Msg("expired finished jobs")
			}
		}
	}
}
