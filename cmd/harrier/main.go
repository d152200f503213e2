// Harrier - Merchant anomaly scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultConfig()
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnv(cfg)

	if err := cfg.Scoring.Validate(); err != nil {
		slog.Error("invalid scoring configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize supplemental rule engine
	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize model scorer from the stored artifact. A missing
	// artifact is not fatal: the pipeline runs rules-only until one
	// is provisioned.
	anomaly := loadAnomalyScorer(ctx, repo, cfg)

	m := metrics.New()

	pipe, err := pipeline.New(cfg.Scoring, anomaly, engine, m)
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring pipeline initialized",
		"model_loaded", pipe.HasModel(),
		"engine_version", pipeline.EngineVersion,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, pipe)

		tenantIDs := []string{}
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, pipe, m, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// applyEnv layers environment overrides on top of the tier defaults.
func applyEnv(cfg *domain.Config) {
	if v := os.Getenv("HARRIER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HARRIER_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("HARRIER_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HARRIER_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HARRIER_MODEL_ENDPOINT"); v != "" {
		cfg.Model.Endpoint = v
	}
	if v := os.Getenv("HARRIER_HIGH_VALUE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.HighValueThreshold = f
		}
	}
}

// GlobalTenantID is used for rules and artifacts that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads supplemental rules into the engine.
// All rules are configured via POST /rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

// loadAnomalyScorer builds the model scorer from the stored artifact.
// Returns nil (rules-only mode) when no artifact exists or the model
// endpoint is unreachable at configuration time.
func loadAnomalyScorer(ctx context.Context, repo domain.Repository, cfg *domain.Config) *model.AnomalyScorer {
	artifact, err := repo.GetArtifact(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("no scorer artifact found - running rules-only", "error", err)
		return nil
	}

	var rec model.Reconstructor
	if cfg.Model.Endpoint != "" {
		httpRec, err := model.NewHTTPReconstructor(cfg.Model.Endpoint, cfg.Model.Timeout)
		if err != nil {
			slog.Warn("invalid model endpoint - running rules-only", "error", err)
			return nil
		}
		rec = httpRec
	} else {
		slog.Warn("no model endpoint configured - using stub reconstructor")
		rec = &model.StubReconstructor{}
	}

	scorer, err := model.NewAnomalyScorer(artifact, rec, cfg.Model.MaxConcurrent)
	if err != nil {
		slog.Warn("failed to build anomaly scorer - running rules-only", "error", err)
		return nil
	}

	slog.Info("anomaly scorer loaded",
		"artifact_version", artifact.Version,
		"threshold", artifact.Threshold,
	)
	return scorer
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║     Merchant Anomaly Scoring Engine       ║")
	fmt.Println("  ║      Every merchant, every pattern.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                    - Score a transaction batch")
	fmt.Println("    POST /predict                  - Score a single feature vector")
	fmt.Println("    GET  /merchants/{id}/features  - Get merchant feature row")
	fmt.Println("    GET  /verdicts/{id}            - Get batch verdict by ID")
	fmt.Println("    GET  /transactions/{id}        - Get transaction by ID")
	fmt.Println("    GET  /rules                    - List supplemental rules")
	fmt.Println("    POST /rules                    - Create a supplemental rule")
	fmt.Println("    POST /rules/reload             - Hot-reload rules from database")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println("    GET  /metrics                  - Prometheus metrics")
	fmt.Println()
}
