package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mehrbod2002/roivault/internal/api"
	"github.com/mehrbod2002/roivault/internal/config"
	"github.com/mehrbod2002/roivault/internal/lock"
	"github.com/mehrbod2002/roivault/internal/logging"
	"github.com/mehrbod2002/roivault/internal/middleware"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/mehrbod2002/roivault/internal/scheduler"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := repository.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := repository.EnsureIndexes(ctx, client.Database(cfg.MongoDB)); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}
	repos := repository.NewMongoRepositories(client, cfg.MongoDB)

	if err := config.EnsureAdminUser(ctx, repos.Admins, cfg.AdminUser, cfg.AdminPass, logger); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		locker = lock.NewRedisLocker(rdb, "roivault:")
		logger.Info("using redis locks", zap.String("addr", cfg.RedisAddr))
	}

	ledger := service.NewLedgerService(repos, service.LedgerConfig{
		Currency:   cfg.Currency,
		Scale:      cfg.MoneyScale,
		MaxRetries: cfg.LedgerMaxRetries,
		MaxBackoff: 500 * time.Millisecond,
	}, logger)
	referrals := service.NewReferralService(repos, service.ReferralConfig{
		Levels:    cfg.ReferralLevels,
		BonusDays: cfg.ReferralBonusDays,
	}, logger)
	userService := service.NewUserService(repos, ledger, cfg.Currency, cfg.LevelThresholds, logger)
	investmentService := service.NewInvestmentService(repos, ledger, referrals, cfg.ReturnPrincipal, logger)
	accrualService := service.NewAccrualService(repos, ledger, referrals, locker, service.AccrualConfig{
		Epoch:           cfg.AccrualEpoch,
		WeeksPerMonth:   cfg.WeeksPerMonth,
		Scale:           cfg.MoneyScale,
		Workers:         cfg.AccrualWorkers,
		ReferralPolicy:  cfg.ReferralPolicy,
		ReturnPrincipal: cfg.ReturnPrincipal,
	}, logger)

	sched, err := scheduler.New(accrualService, referrals, scheduler.Config{
		AccrualSpec:  cfg.AccrualCron,
		ExpirySpec:   cfg.ExpiryCron,
		CatchUpWeeks: cfg.AccrualCatchUpWeeks,
		RunTimeout:   time.Hour,
	}, logger)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	api.SetupRoutes(r, api.Dependencies{
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
		Limiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		Users:       userService,
		Admins:      service.NewAdminService(repos.Admins),
		Ledger:      ledger,
		Plans:       service.NewPlanService(repos),
		Investments: investmentService,
		Accrual:     accrualService,
		Referrals:   referrals,
		Withdrawals: service.NewWithdrawalService(repos, ledger, cfg.MinWithdrawal, logger),
		Transfers:   service.NewTransferService(repos, ledger, logger),
		Support:     service.NewSupportService(repos.SupportTickets),
		Settings:    service.NewSettingService(repos.Settings),
		Logs:        service.NewLogService(repos.Logs, logger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("swagger", cfg.BaseURL+"/swagger/index.html"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	return nil
}
