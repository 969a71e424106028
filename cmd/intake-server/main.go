// cmd/intake-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/camunda"
	"intake-service/internal/common/config"
	"intake-service/internal/common/database"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/observability"
	api "intake-service/internal/http"
	"intake-service/internal/http/handlers"
	httpmw "intake-service/internal/http/middleware"
	"intake-service/internal/intake/answers"
	"intake-service/internal/intake/questions"
	"intake-service/internal/intake/review"
	"intake-service/internal/intake/tickets"
	"intake-service/internal/search"
	"intake-service/internal/storage"
	"intake-service/internal/storage/memory"
	pgstore "intake-service/internal/storage/postgres"

	rc "intake-service/internal/workers/ticket/reconcile-status"
	rt "intake-service/internal/workers/ticket/review-ticket"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console", "stderr")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Database.Driver),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []handlers.Check

	// --- Storage ---
	store, err := openStore(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	checks = append(checks, handlers.Check{Name: cfg.Database.Driver, Ping: store.Ping})

	// --- Redis (optional) ---
	var (
		questionCache questions.Cache
		limiter       httpmw.Limiter = httpmw.NewRateLimiter()
	)
	if cfg.Database.Redis.Enabled() {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		questionCache = questions.NewRedisCache(redis.GetClient(), config.GetDuration(cfg.Intake.QuestionCacheTTL), log)
		limiter = httpmw.NewRedisLimiter(redis.GetClient())
		checks = append(checks, handlers.Check{Name: "redis", Ping: redis.Ping})
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis not configured, using in-process rate limiter and no question cache")
	}

	// --- Elasticsearch (optional) ---
	var index search.Indexer = search.NoopIndexer{}
	if cfg.Database.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := es.Ping(ctx); err != nil {
			// Index writes fail open; searches report the outage.
			zapLog.Warn("elasticsearch unreachable at startup", zap.Error(err))
		}
		if created, err := es.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, search.Mapping); err != nil {
			zapLog.Warn("ticket index bootstrap failed", zap.Error(err))
		} else if created {
			zapLog.Info("Ticket index created", zap.String("index", cfg.Database.Elasticsearch.Index))
		}
		index = search.NewElasticIndexer(es.Client, cfg.Database.Elasticsearch.Index)
		checks = append(checks, handlers.Check{Name: "elasticsearch", Ping: es.Ping})
		zapLog.Info("Elasticsearch ticket index enabled", zap.String("index", cfg.Database.Elasticsearch.Index))
	}

	// --- Core services ---
	questionSvc := questions.NewService(store, questionCache, log, obs)
	answerSvc := answers.NewService(store, log, obs)
	ticketSvc := tickets.NewService(store, index, log, obs)
	reviewSvc := review.NewService(store, ticketSvc, log, obs)

	if cfg.App.ReconcileOnStartup {
		n, err := reviewSvc.ReconcileAll(ctx)
		if err != nil {
			zapLog.Fatal("startup reconcile failed", zap.Error(err))
		}
		zapLog.Info("Startup reconcile complete", zap.Int("repaired", n))
	}

	// --- Workers (optional) ---
	var workers []*camunda.CamundaWorker
	if config.AnyWorkerEnabled(cfg) {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks = append(checks, handlers.Check{Name: "zeebe", Ping: zeebe.HealthCheck})
		zapLog.Info("Zeebe client connected successfully")

		if c := rt.LoadConfig(cfg); c.Enabled {
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), rt.TaskType, c.MaxJobsActive, c.Timeout,
				rt.NewHandler(c, reviewSvc, log), log))
		}
		if c := rc.LoadConfig(cfg); c.Enabled {
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), rc.TaskType, c.MaxJobsActive, c.Timeout,
				rc.NewHandler(c, reviewSvc, log), log))
		}
	}

	// --- HTTP API ---
	router := api.NewRouter(api.RouterDependencies{
		Questions: handlers.NewQuestionHandler(questionSvc, log),
		Answers:   handlers.NewAnswerHandler(answerSvc, ticketSvc, log),
		Tickets:   handlers.NewTicketHandler(ticketSvc, reviewSvc, log),
		Health:    handlers.NewHealthHandler(checks, log),
		Verifier:  auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminRole),
		Limiter:   limiter,
		Limits: api.RateLimits{
			Answers: cfg.Intake.AnswerRateLimit,
			Tickets: cfg.Intake.TicketRateLimit,
			Window:  config.GetDuration(cfg.Intake.RateWindow),
		},
		RequestTimeout: config.GetDuration(cfg.HTTP.RequestTimeout),
		Logger:         log,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("Intake service stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.Migrate {
		if err := database.Migrate(ctx, pg.GetDB()); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("Schema migration applied")
	}
	return pgstore.New(pg.GetDB()), nil
}
