// cmd/assistant-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"insurance-assistant/internal/alerts"
	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/database"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/common/observability"
	"insurance-assistant/internal/dataset"
	"insurance-assistant/internal/dialogue"
	"insurance-assistant/internal/nlu"
	"insurance-assistant/internal/schema"
	"insurance-assistant/internal/search"
	"insurance-assistant/internal/server"
	"insurance-assistant/internal/session"
	"insurance-assistant/internal/websearch"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting assistant server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level, format and output.
	zapLog = logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	var obs *observability.Observability
	if cfg.Tracing.Enabled {
		obs = observability.NewWithTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
	} else {
		obs = observability.New(cfg.App.Name)
	}
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Load dataset from the configured source ---
	var loader dataset.Loader
	switch cfg.Dataset.Source {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			// Test the connection with context
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
		loader = dataset.NewPostgresLoader(pg.DB, cfg.Dataset.Tables, log)

	case "elasticsearch":
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		loader = dataset.NewElasticsearchLoader(esClient, cfg.Dataset.Elasticsearch, log)

	default:
		loader = dataset.NewFileLoader(cfg.Dataset.Files, log)
	}

	index, err := loader.Load(ctx)
	if err != nil {
		zapLog.Fatal("dataset load failed", zap.Error(err))
	}
	plans, coverage, providers := index.Counts()
	zapLog.Info("Dataset loaded",
		zap.String("source", cfg.Dataset.Source),
		zap.Int("plans", plans),
		zap.Int("coverage", coverage),
		zap.Int("providers", providers),
	)

	// --- Init ops alerting ---
	notifier, err := alerts.NewNotifier(ctx, cfg.Alerts, log)
	if err != nil {
		zapLog.Fatal("alerts notifier failed", zap.Error(err))
	}

	// --- Load intent schema ---
	registry, err := schema.NewRegistry(cfg.Schema.Path, log)
	if err != nil {
		zapLog.Fatal("schema load failed", zap.Error(err))
	}
	zapLog.Info("Intent schema loaded",
		zap.String("path", cfg.Schema.Path),
		zap.String("version", registry.Version()),
	)

	if cfg.Schema.Watch {
		watcher := schema.NewReloadWatcher(registry, log, func(reloadErr error) {
			notifier.SchemaReloadFailed(cfg.Schema.Path, reloadErr)
		})
		if err := watcher.Start(); err != nil {
			zapLog.Fatal("schema watcher failed", zap.Error(err))
		}
		defer watcher.Stop()
	}

	// --- Init NLU oracle client ---
	// The breaker hook runs under the breaker's lock; dispatch must not block.
	classifier, err := nlu.NewClient(cfg.APIs.NLU, log, func() {
		go notifier.ClassifierCircuitOpen()
	})
	if err != nil {
		zapLog.Fatal("nlu client failed", zap.Error(err))
	}

	// --- Init web search client, with Redis-backed cache when enabled ---
	var redisClient *database.RedisClient
	if cfg.APIs.WebSearch.CacheEnabled {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			// Test the connection with context
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}
	web := websearch.NewClient(cfg.APIs.WebSearch, redisClient, log)

	// --- Wire sessions, search and the dialogue machine ---
	store := session.NewStore(cfg.Session, log)
	store.StartReaper(ctx)

	engine := search.NewEngine(index, cfg.Search, log)
	manager := dialogue.NewManager(store, registry, classifier, engine, web, log)
	manager.Observe(obs)

	// --- API server ---
	handler := server.NewHandler(manager, engine, store, registry, log)
	router := server.NewRouter(handler, cfg.Server, log)

	apiAddr, err := server.Start(ctx, cfg.Server.Addr(), cfg.Server, router, log)
	if err != nil {
		zapLog.Fatal("api server failed", zap.Error(err))
	}
	zapLog.Info("API server listening", zap.String("addr", apiAddr))

	// --- Health & Metrics server ---
	ready := func() error {
		if plans+coverage+providers == 0 {
			return fmt.Errorf("dataset is empty")
		}
		return nil
	}
	opsAddr, err := server.Start(ctx, cfg.Server.OpsAddr(), cfg.Server, server.NewOpsHandler(ready), log)
	if err != nil {
		zapLog.Fatal("ops server failed", zap.Error(err))
	}
	zapLog.Info("Health/Metrics server listening", zap.String("addr", opsAddr))

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	cancel()

	grace := time.Duration(cfg.Server.ShutdownTimeout) * time.Millisecond
	if grace <= 0 {
		grace = 5 * time.Second
	}
	time.Sleep(grace)

	zapLog.Info("Assistant server stopped gracefully")
}
