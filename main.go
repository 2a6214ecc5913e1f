package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"attendance-guard/bot"
	"attendance-guard/config"
	"attendance-guard/internal/audit"
	"attendance-guard/internal/clients"
	"attendance-guard/internal/events"
	"attendance-guard/internal/handlers"
	"attendance-guard/internal/liveness"
	"attendance-guard/internal/locker"
	"attendance-guard/internal/lockdown"
	"attendance-guard/internal/logging"
	"attendance-guard/internal/metrics"
	"attendance-guard/internal/network"
	"attendance-guard/internal/repository"
	"attendance-guard/internal/scheduler"
	"attendance-guard/internal/services"
	"attendance-guard/internal/tamper"
	"attendance-guard/internal/workzone"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		logger.Fatal("Failed to load policy", zap.Error(err))
	}
	logger.Info("Config loaded successfully",
		zap.String("environment", cfg.Environment),
		zap.Bool("block_on_tamper", policy.BlockOnTamper),
		zap.Bool("require_liveness", policy.RequireLiveness),
	)

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	app, err := initApplication(ctx, cfg, policy, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.close()

	app.sweeper.Start()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      app.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	app.sweeper.Stop()

	logger.Info("Server stopped gracefully")
}

type application struct {
	router  http.Handler
	sweeper *scheduler.Scheduler
	closers []func() error
	logger  *zap.Logger
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
}

// initApplication initializes all application dependencies
func initApplication(ctx context.Context, cfg *config.Config, policy *config.Policy, logger *zap.Logger) (*application, error) {
	app := &application{logger: logger}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// Initialize the PocketBase REST store
	store := repository.NewPocketBase(cfg.PocketBaseURL, cfg.PocketBaseToken, cfg.PocketBaseTimeout, logger.Named("pocketbase"))
	checks := map[string]handlers.Checker{"pocketbase": store.Health}

	// Redis is optional: without it locks and caches stay process-local
	var rdb *redis.Client
	var attemptLocker locker.Locker = locker.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		attemptLocker = locker.NewRedisLocker(rdb, "attendance-guard", 30*time.Second)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		app.closers = append(app.closers, rdb.Close)
	}

	// Alert sinks
	var sinks events.Fanout
	var dispatchOpts []events.DispatcherOption
	if cfg.TelegramBotToken != "" {
		tg, err := bot.New(cfg.TelegramBotToken, cfg.AuthorizedChatID, store, logger.Named("bot"))
		if err != nil {
			logger.Warn("Failed to init Telegram Bot", zap.Error(err))
		} else {
			tg.StartPolling(ctx)
			sinks = append(sinks, tg)
			dispatchOpts = append(dispatchOpts, events.WithNotifier(tg))
			logger.Info("Telegram Bot Initialized")
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), 5*time.Second, logger.Named("events"))
		sinks = append(sinks, publisher)
		app.closers = append(app.closers, publisher.Close)
	}

	// Deliveries leave the request path; closers run in reverse so the
	// queue drains before the publisher closes
	alerts := events.NewDispatcher(sinks, logger.Named("alerts"), dispatchOpts...)
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return alerts.Shutdown(ctx)
	})

	// Tamper detection
	detectorOpts := []tamper.Option{tamper.WithDeviceBindings(store)}
	if cfg.ReputationURL != "" {
		repOpts := []clients.ReputationOption{clients.WithLookupRecorder(collector), clients.WithAPIKey(cfg.ReputationAPIKey)}
		if rdb != nil {
			repOpts = append(repOpts, clients.WithSharedCache(rdb))
		}
		reputation := clients.NewReputationClient(cfg.ReputationURL, cfg.ReputationTTL, logger.Named("reputation"), repOpts...)
		detectorOpts = append(detectorOpts, tamper.WithReputation(reputation, policy.ReputationTimeout))
	}
	detector := tamper.NewDetector(policy.TamperPolicy(), logger.Named("tamper"), detectorOpts...)

	// Liveness is only wired when a face model is configured
	var verifier *liveness.Verifier
	if cfg.FaceModelURL != "" {
		face := clients.NewFaceModelClient(cfg.FaceModelURL, cfg.FaceModelAPIKey)
		verifier = liveness.NewVerifier(face, store, detector, logger.Named("liveness"), liveness.WithTimeout(policy.LivenessTimeout))
		checks["face_model"] = face.HealthCheck
	}

	auditLoc, err := time.LoadLocation(cfg.AuditTZ)
	if err != nil {
		logger.Warn("Unknown audit timezone, using UTC", zap.String("timezone", cfg.AuditTZ))
		auditLoc = time.UTC
	}
	auditor := audit.NewService(audit.NewClassifier(store, auditLoc), store, alerts, logger.Named("audit"))
	gate := lockdown.NewGate(store, store, logger.Named("lockdown"))

	// Initialize services
	attendanceService := services.NewAttendanceService(
		services.Stores{
			Employees:  store,
			Branches:   store,
			Windows:    store,
			Tiers:      store,
			Attendance: store,
			Tamper:     store,
			Devices:    store,
		},
		services.Components{
			Networks: network.NewVerifier(store),
			Gate:     gate,
			Detector: detector,
			Liveness: verifier,
			Zones:    workzone.NewTracker(store),
			Audit:    auditor,
			Locker:   attemptLocker,
		},
		services.Policy{
			BlockOnTamper:   policy.BlockOnTamper,
			RequireLiveness: policy.RequireLiveness,
			LockTimeout:     policy.LockTimeout,
		},
		alerts,
		alerts,
		collector,
		logger.Named("attendance"),
	)
	securityService := services.NewSecurityService(store, store, auditor, logger.Named("security"))

	sweeper, err := scheduler.New(cfg.SweepSpec, gate, logger.Named("scheduler"))
	if err != nil {
		return nil, err
	}
	app.sweeper = sweeper

	// Initialize handlers
	app.router = handlers.NewRouter(cfg.Environment, logger,
		handlers.NewAttendanceHandler(attendanceService, logger),
		handlers.NewSecurityHandler(securityService, logger),
		handlers.NewHealthHandler(checks, logger),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)
	return app, nil
}
