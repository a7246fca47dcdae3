package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rentara/internal/app"
	"rentara/internal/domain/payment"
	"rentara/internal/domain/ussd"
	"rentara/internal/infra/cache"
	"rentara/internal/infra/config"
	idb "rentara/internal/infra/database"
	"rentara/internal/infra/httpapi"
	"rentara/internal/infra/logger"
	"rentara/internal/infra/mpesa"
	"rentara/internal/infra/scheduler"
	"rentara/internal/infra/sms"
	"rentara/internal/infra/telegram"

	"github.com/go-redis/redis/v8"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	userRepo := idb.NewPostgresUserRepository(db)
	unitRepo := idb.NewPostgresUnitRepository(db)
	paymentRepo := idb.NewPostgresPaymentRepository(db)
	ticketRepo := idb.NewPostgresMaintenanceRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)
	sessionRepo := idb.NewPostgresSessionRepository(db)

	// Locks and token cache: Redis when configured so several instances share them.
	var (
		locker      ussd.Locker
		tokens      mpesa.TokenCache
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not connect to redis: %v", err)
		}
		defer redisClient.Close()
		locker = cache.NewRedisLocker(redisClient, "rentara:lock:", logger.Component("lock"))
		tokens = cache.NewRedisTokenCache(redisClient, "rentara:token:")
		mainLogger.Info("Using redis for session locks and token cache.")
	} else {
		memTokens, err := cache.NewMemoryTokenCache()
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create token cache: %v", err)
		}
		defer memTokens.Close()
		locker = cache.NewMemoryLocker()
		tokens = memTokens
		mainLogger.Warn("REDIS_URL not set; session locks are process-local.")
	}

	var gateway payment.Gateway
	if cfg.Mpesa.Enabled() {
		gateway = mpesa.NewClient(cfg.Mpesa, tokens, logger.Component("mpesa"))
		mainLogger.Infof("M-Pesa gateway initialized (%s).", cfg.Mpesa.Environment)
	} else {
		mainLogger.Warn("M-Pesa credentials missing; payment initiation will fail.")
	}

	smsDispatcher := sms.NewDispatcherFromConfig(cfg.Twilio, cfg.AfricasTalking, logger.Component("sms"))
	notificationService := app.NewNotificationServiceImpl(userRepo, notificationRepo, smsDispatcher, logger.Component("notification_service"))

	// Telegram is optional: it carries ops alerts and admin commands.
	var (
		bot     *telebot.Bot
		alerter app.Alerter = app.NewLogAlerter(logger.Component("alerts"))
	)
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
		}
		alerter = telegram.NewAdminAlerter(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, logger.Component("alerts"))
	}

	paymentService := app.NewPaymentService(paymentRepo, unitRepo, gateway, notificationService, alerter,
		app.ReconcileOptions{Grace: cfg.ReconcileGrace, AbandonAfter: cfg.ReconcileAbandonAfter},
		logger.Component("payment_service"))
	maintenanceService := app.NewMaintenanceService(ticketRepo, userRepo, notificationService, logger.Component("maintenance_service"))

	menuText, err := app.NewMenuText(cfg.USSDLanguage)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load USSD menu text: %v", err)
	}
	ussdService := app.NewUSSDService(sessionRepo, locker, userRepo, unitRepo, paymentService, maintenanceService,
		menuText, cfg.USSDLockTTL, logger.Component("ussd_service"))

	// Initialize ReconcileScheduler
	reconcileScheduler := scheduler.NewReconcileScheduler(paymentService, logger.Component("scheduler"), cfg.CronSpecReconcile)
	if err := reconcileScheduler.Start(); err != nil {
		mainLogger.Fatalf("FATAL: Could not start scheduler: %v", err)
	}

	if bot != nil {
		adminService := app.NewAdminService(paymentService, cfg.AdminTelegramID)
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, logger.Component("telegram"))
		telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, logger.Component("telegram"))
		mainLogger.Info("Admin command handlers registered.")
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	handlers := httpapi.NewHandlers(ussdService, paymentService, db, logger.Component("http"))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handlers),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		mainLogger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		mainLogger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	reconcileScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	mainLogger.Info("Application shut down gracefully.")
}
