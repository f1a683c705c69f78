// cmd/worker-manager/main.go
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

	"loan-ledger/internal/api"
	commonaws "loan-ledger/internal/common/aws"
	"loan-ledger/internal/common/camunda"
	"loan-ledger/internal/common/config"
	"loan-ledger/internal/common/database"
	"loan-ledger/internal/common/events"
	commonhttp "loan-ledger/internal/common/http"
	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/observability"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/ledger/store"
	"loan-ledger/internal/quotes"

	// Creditor Workers (1)
	rat "loan-ledger/internal/workers/creditors/regenerate-access-token"

	// Interest Workers (1)
	ai "loan-ledger/internal/workers/interest/accrue-interest"

	// Loan Workers (7)
	cls "loan-ledger/internal/workers/loans/change-loan-status"
	cl "loan-ledger/internal/workers/loans/create-loan"
	dl "loan-ledger/internal/workers/loans/delete-loan"
	elt "loan-ledger/internal/workers/loans/edit-loan-terms"
	rd "loan-ledger/internal/workers/loans/record-disbursement"
	rma "loan-ledger/internal/workers/loans/record-manual-accrual"
	rp "loan-ledger/internal/workers/loans/record-payment"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan ledger worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]api.Check{}

	// --- Ledger store ---
	var ledgerStore store.Store
	switch cfg.Database.Driver {
	case config.DriverMemory:
		ledgerStore = store.NewMemoryStore()
		zapLog.Warn("Using in-memory ledger store; data is lost on restart")

	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		if err := database.RunMigrations(cfg.Database.Postgres.GetURL(), cfg.Database.MigrationsPath); err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
		zapLog.Info("Migrations applied", zap.String("source", cfg.Database.MigrationsPath))

		ledgerStore = store.NewPostgresStore(pg.DB, cfg.Ledger.BatchSize)
		checks["postgres"] = pg.Ping
	}

	// --- Redis (quote cache) ---
	var redisClient *database.RedisClient
	if cfg.Quotes.CacheBackend == "redis" {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = redisClient.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Event sinks ---
	publisher := buildPublisher(ctx, cfg, zapLog)

	// --- Services ---
	ledgerService := ledger.NewService(ledgerStore, log,
		ledger.WithLocation(cfg.Ledger.Location()),
		ledger.WithPublisher(publisher),
	)

	cacheTTL := config.GetDuration(cfg.Quotes.CacheTTL)
	var quoteCache quotes.Cache = quotes.NewMemoryCache(cacheTTL, time.Now)
	if redisClient != nil {
		quoteCache = quotes.NewRedisCache(redisClient.Client, "quotes:", cacheTTL)
	}
	fetcher := quotes.NewFetcher(
		commonhttp.NewClient(config.GetDuration(cfg.Quotes.Timeout)),
		cfg.Quotes.BaseURL,
		cfg.Quotes.APIKey,
	)
	quoteService := quotes.NewService(fetcher, quoteCache, log)

	// --- Zeebe client with retry ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	checks["zeebe"] = zeebe.HealthCheck
	zapLog.Info("Zeebe client connected successfully")

	// --- START: Register workers ---
	registrar := camunda.NewRegistrar(zeebe.GetClient(), obs, log)

	// --- 1. Loan Workers (7) ---
	registrar.Register(cl.TaskType, config.GetWorkerConfig(cfg, cl.TaskType),
		cl.NewHandler(&cl.Config{Timeout: config.WorkerTimeout(cfg, cl.TaskType)}, ledgerService, log))

	registrar.Register(rd.TaskType, config.GetWorkerConfig(cfg, rd.TaskType),
		rd.NewHandler(&rd.Config{Timeout: config.WorkerTimeout(cfg, rd.TaskType)}, ledgerService, log))

	registrar.Register(elt.TaskType, config.GetWorkerConfig(cfg, elt.TaskType),
		elt.NewHandler(&elt.Config{Timeout: config.WorkerTimeout(cfg, elt.TaskType)}, ledgerService, log))

	registrar.Register(cls.TaskType, config.GetWorkerConfig(cfg, cls.TaskType),
		cls.NewHandler(&cls.Config{Timeout: config.WorkerTimeout(cfg, cls.TaskType)}, ledgerService, log))

	registrar.Register(dl.TaskType, config.GetWorkerConfig(cfg, dl.TaskType),
		dl.NewHandler(&dl.Config{Timeout: config.WorkerTimeout(cfg, dl.TaskType)}, ledgerService, log))

	registrar.Register(rp.TaskType, config.GetWorkerConfig(cfg, rp.TaskType),
		rp.NewHandler(&rp.Config{Timeout: config.WorkerTimeout(cfg, rp.TaskType)}, ledgerService, log))

	registrar.Register(rma.TaskType, config.GetWorkerConfig(cfg, rma.TaskType),
		rma.NewHandler(&rma.Config{Timeout: config.WorkerTimeout(cfg, rma.TaskType)}, ledgerService, log))

	// --- 2. Interest Workers (1) ---
	registrar.Register(ai.TaskType, config.GetWorkerConfig(cfg, ai.TaskType),
		ai.NewHandler(&ai.Config{Timeout: config.WorkerTimeout(cfg, ai.TaskType)}, ledgerService, log))

	// --- 3. Creditor Workers (1) ---
	registrar.Register(rat.TaskType, config.GetWorkerConfig(cfg, rat.TaskType),
		rat.NewHandler(&rat.Config{Timeout: config.WorkerTimeout(cfg, rat.TaskType)}, ledgerService, log))

	// --- END: Register workers ---
	defer registrar.Close()
	zapLog.Info("Workers registered", zap.Int("count", registrar.Count()))

	// --- HTTP API, health & metrics ---
	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewServer(api.Deps{
			Ledger:     ledgerService,
			Quotes:     quoteService,
			CronSecret: cfg.Cron.Secret,
			Checks:     checks,
		}, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

// buildPublisher wires every configured event sink. Unconfigured sinks are
// skipped; with none configured events are dropped.
func buildPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) events.Publisher {
	var sinks events.Multi

	if cfg.Database.Elasticsearch.Enabled && cfg.Events.ESIndex != "" {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			log.Warn("Elasticsearch event sink disabled", zap.Error(err))
		} else if err := es.Ping(ctx); err != nil {
			log.Warn("Elasticsearch unreachable, event sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, events.NewElasticsearchPublisher(es.Client, cfg.Events.ESIndex))
			log.Info("Elasticsearch event sink enabled", zap.String("index", cfg.Events.ESIndex))
		}
	}

	wantSNS := cfg.Events.SNSTopicARN != ""
	wantSES := cfg.Events.ReportEmailFrom != "" && cfg.Events.ReportEmailTo != ""
	if wantSNS || wantSES {
		awsCfg, err := commonaws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			log.Warn("AWS event sinks disabled", zap.Error(err))
		} else {
			if wantSNS {
				sinks = append(sinks, events.NewSNSPublisher(commonaws.NewSNSClient(awsCfg), cfg.Events.SNSTopicARN))
				log.Info("SNS event sink enabled", zap.String("topic", cfg.Events.SNSTopicARN))
			}
			if wantSES {
				sinks = append(sinks, events.NewSweepReportMailer(commonaws.NewSESClient(awsCfg), cfg.Events.ReportEmailFrom, cfg.Events.ReportEmailTo))
				log.Info("Sweep report email enabled", zap.String("to", cfg.Events.ReportEmailTo))
			}
		}
	}

	if len(sinks) == 0 {
		return events.Nop{}
	}
	return sinks
}
