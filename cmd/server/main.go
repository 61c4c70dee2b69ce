package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/ursol-insurance/internal/config"
	"github.com/iliyamo/ursol-insurance/internal/database"
	"github.com/iliyamo/ursol-insurance/internal/handler"
	"github.com/iliyamo/ursol-insurance/internal/ledger"
	"github.com/iliyamo/ursol-insurance/internal/logger"
	"github.com/iliyamo/ursol-insurance/internal/middleware"
	"github.com/iliyamo/ursol-insurance/internal/repository"
	"github.com/iliyamo/ursol-insurance/internal/router"
	"github.com/iliyamo/ursol-insurance/internal/service"
	"github.com/iliyamo/ursol-insurance/internal/worldcoin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			log.Warn("sentry disabled", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Info("redis not available; using in-process locks, cache and rate limiting disabled")
	}

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if cfg.SeedDemoData {
		if err := repository.Seed(ctx, store, time.Now().UTC()); err != nil {
			return err
		}
	}

	sim := ledger.NewSimulated()
	var ledgerSvc ledger.Service = sim
	if cfg.LedgerEventsEnabled {
		ledgerSvc = ledger.NewPublisher(sim, ledger.NewAMQPSink(cfg.RabbitURL), log)
		audit := ledger.NewRotatingLog(cfg.LedgerLogPath)
		defer audit.Close()
		go ledger.StartTransferConsumer(ctx, cfg.RabbitURL, ledger.NewAuditWriter(audit), log)
	}
	if cfg.LedgerPollSpec != "" {
		poller, err := ledger.NewPoller(cfg.LedgerPollSpec, sim, log)
		if err != nil {
			return fmt.Errorf("ledger poller: %w", err)
		}
		poller.Start()
		defer poller.Stop()
	}

	portal := worldcoin.NewClient(cfg.WorldcoinBaseURL, cfg.AppID, cfg.DevPortalAPIKey, cfg.VerifyTimeout, log)
	locks := service.NewLocker(rdb, service.LockLease(cfg.VerifyTimeout))
	accounts := service.NewAccounts(store, locks, log)
	payments := service.NewPayments(store, locks, portal, ledgerSvc, cfg.TreasuryAddress, log)
	verification := service.NewVerification(store, portal, cfg.MockVerification, log)
	dashboard := service.NewDashboard(store)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.RegisterOps(e, handler.Health(health))
	router.RegisterAPI(e, router.Handlers{
		User:      handler.NewUserHandler(accounts, cfg.JWTSecret, cfg.AccessTTLMin),
		Portfolio: handler.NewPortfolioHandler(accounts),
		Payment:   handler.NewPaymentHandler(payments),
		Verify:    handler.NewVerifyHandler(verification),
		Dashboard: handler.NewDashboardHandler(dashboard),
	}, cfg, rdb, log)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "storage", cfg.StorageDriver,
			"verification_configured", cfg.VerificationConfigured(), "mock_verification", cfg.MockVerification)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore returns the configured store, the pinger used by /healthz (nil
// for the memory store) and a close function.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, handler.Pinger, func(), error) {
	if cfg.StorageDriver != "mysql" {
		return repository.NewMemoryStore(), nil, func() {}, nil
	}
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return repository.NewMySQLStore(db), db, func() { _ = db.Close() }, nil
}
