package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/config"
	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/handler"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/cache"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/memstore"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/messaging"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/postgres"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/realtime"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/scheduler"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/supabase"
	"github.com/boddenberg/isp-billing-bfa/internal/port"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(observability.LogOptions{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		MaxAge: cfg.LogMaxAge,
	})
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("messenger", cfg.Messenger),
		zap.String("timezone", cfg.Timezone),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, "isp-billing-bfa", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Change feed + store ---
	hub := realtime.NewHub(logger)
	store, closeStore := openStore(ctx, cfg, hub, httpClient, resilienceCfg, logger)
	defer closeStore()

	// --- Messenger ---
	messenger := openMessenger(ctx, cfg, httpClient, resilienceCfg, logger)

	// --- Cache ---
	settingsCache := cache.New[*domain.Settings](cfg.CacheTTL)
	defer settingsCache.Close()
	reportCache := cache.New[any](cfg.CacheTTL)
	defer reportCache.Close()

	// --- Services ---
	clock := service.SystemClock(cfg.Location())

	settingsSvc := service.NewSettingsService(store, settingsCache, metrics, logger)
	defer settingsSvc.Watch(hub)()

	notifySvc := service.NewNotificationService(store, store, settingsSvc, messenger,
		resilience.NewBulkhead(cfg.MaxConcurrency), metrics, logger, clock)
	scanSvc := service.NewScanService(store, store, settingsSvc, notifySvc, metrics, logger, clock, cfg.MaxConcurrency)

	reportSvc := service.NewReportService(store, store, settingsSvc, reportCache, metrics, logger, clock)
	defer reportSvc.Watch(hub)()

	svc := handler.Services{
		Clients:       service.NewClientService(store, store, metrics, cfg.DefaultCountryCode, logger),
		Billing:       service.NewBillingService(store, store, metrics, logger, clock),
		Notifications: notifySvc,
		Scans:         scanSvc,
		Settings:      settingsSvc,
		Expenses:      service.NewExpenseService(store, logger),
		Reports:       reportSvc,
		Store:         store,
		StoreBackend:  cfg.StoreBackend,
	}

	// --- Scheduler ---
	sched := scheduler.New(cfg.Location(), logger)
	jobs := []scheduler.Job{
		{Name: "rollover", Spec: cfg.ScanSchedule, Timeout: 10 * time.Minute, Run: discardReport(scanSvc.RunRollover)},
		{Name: "reminders", Spec: cfg.ReminderSchedule, Timeout: 30 * time.Minute, Run: discardReport(scanSvc.RunReminders)},
	}
	for _, job := range jobs {
		if err := sched.Add(ctx, job); err != nil {
			logger.Fatal("failed to schedule job", zap.String("job", job.Name), zap.Error(err))
		}
	}
	sched.Start()

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// openStore connects the configured backend and starts its change feed.
// The returned func releases the backend.
func openStore(ctx context.Context, cfg *config.Config, hub *realtime.Hub, httpClient *http.Client, rcfg resilience.Config, logger *zap.Logger) (port.Store, func()) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		if err := postgres.ApplyMigrations(ctx, pool, postgres.Migrations(cfg.MigrationsDir), logger); err != nil {
			pool.Close()
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		go postgres.NewListener(pool, hub, logger).Run(ctx)
		logger.Info("using Postgres as data backend")
		return postgres.NewStore(pool, logger), pool.Close

	case config.BackendMemory:
		logger.Warn("using in-memory data backend, data is lost on restart")
		return memstore.New(hub), func() {}

	default:
		client := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			rcfg,
			logger,
		)
		go supabase.NewPoller(client, hub, cfg.ChangePollInterval, logger).Run(ctx)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		return client, func() {}
	}
}

func openMessenger(ctx context.Context, cfg *config.Config, httpClient *http.Client, rcfg resilience.Config, logger *zap.Logger) port.Messenger {
	cb := resilience.NewCircuitBreaker("messaging")
	switch cfg.Messenger {
	case config.MessengerTwilio:
		logger.Info("sending reminders through Twilio")
		return messaging.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.TwilioWhatsAppNumber, cb, rcfg, logger)

	case config.MessengerGateway:
		logger.Info("sending reminders through HTTP gateway", zap.String("url", cfg.SMSGatewayURL))
		return messaging.NewGateway(httpClient, cfg.SMSGatewayURL, cb, rcfg, logger)

	case config.MessengerSQS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Fatal("failed to load AWS config", zap.Error(err))
		}
		logger.Info("queueing reminders on SQS", zap.String("queue_url", cfg.ReminderQueueURL))
		return messaging.NewSQSOutbox(sqs.NewFromConfig(awsCfg), cfg.ReminderQueueURL, cb, rcfg, logger)

	default:
		logger.Warn("no messaging transport configured, reminders are only logged")
		return messaging.NewLog(logger)
	}
}

func discardReport(run func(context.Context) (*domain.ScanReport, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := run(ctx)
		return err
	}
}
