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

	"github.com/UnknownOlympus/taskpulse/internal/analytics"
	"github.com/UnknownOlympus/taskpulse/internal/api"
	"github.com/UnknownOlympus/taskpulse/internal/bot"
	"github.com/UnknownOlympus/taskpulse/internal/config"
	"github.com/UnknownOlympus/taskpulse/internal/logging"
	"github.com/UnknownOlympus/taskpulse/internal/metrics"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"github.com/UnknownOlympus/taskpulse/internal/repository/memory"
	"github.com/UnknownOlympus/taskpulse/internal/repository/mongostore"
	"github.com/UnknownOlympus/taskpulse/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const redisTimeout = 5 * time.Second

// store is everything the service needs from a storage driver.
type store interface {
	analytics.TaskStore
	analytics.UserStore
	repository.LinkManager
	server.Pinger
	EnsureDefaultAdmin(ctx context.Context, admin models.User) (bool, error)
}

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger := logging.New(cfg.Env, os.Stdout)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Application failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	tasks, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	created, err := tasks.EnsureDefaultAdmin(ctx, models.User{
		ID:        cfg.Admin.ID,
		Username:  cfg.Admin.Username,
		Email:     cfg.Admin.Email,
		Role:      models.RoleAdmin,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to seed default admin: %w", err)
	}
	if created {
		logger.InfoContext(ctx, "Default admin created", "username", cfg.Admin.Username)
	}

	aggregator := analytics.New(logger, tasks, tasks, appMetrics,
		analytics.WithActivityLimit(cfg.Analytics.ActivityLimit),
		analytics.WithTeamConcurrency(cfg.Analytics.TeamConcurrency),
	)

	var (
		redisClient *redis.Client
		cachePinger server.Pinger
	)
	if cfg.RedisAddr != "" {
		redisClient, err = bot.ConnectRedis(ctx, cfg.RedisAddr, redisTimeout)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cachePinger = server.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	group, gctx := errgroup.WithContext(ctx)

	apiServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewServer(logger, aggregator, appMetrics, api.Options{
			AllowedOrigin:  cfg.HTTP.AllowedOrigin,
			RequestTimeout: cfg.HTTP.RequestTimeout,
		}).Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	group.Go(func() error {
		return server.Serve(gctx, logger.With("server", "api"), apiServer)
	})

	health := server.NewHealthChecker(logger, tasks, cachePinger)
	group.Go(func() error {
		return server.StartMonitoringServer(gctx, logger, reg, health, cfg.Monitoring.Port)
	})

	if cfg.Telegram.Token != "" {
		if len(cfg.Telegram.AdminIDs) == 0 {
			logger.WarnContext(ctx, "No Telegram admin IDs configured, admin users cannot use the bot")
		}
		cache := bot.NewLinkCache(logger, redisClient, cfg.Telegram.CacheTTL, appMetrics)
		tgBot, botErr := bot.NewBot(
			logger, tasks, aggregator, cache, cfg.Telegram.AdminIDs, appMetrics,
			cfg.Telegram.Token, cfg.Telegram.PollerTimeout,
		)
		if botErr != nil {
			return botErr
		}

		// Start the bot in a goroutine, it stops with the other servers.
		go tgBot.Start()
		group.Go(func() error {
			<-gctx.Done()
			tgBot.Stop()
			return nil
		})
	} else {
		logger.InfoContext(ctx, "Telegram token is empty, bot is disabled")
	}

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.", "storage", cfg.Storage.Driver)

	err = group.Wait()
	logger.InfoContext(context.Background(), "Application stopped gracefully.")
	return err
}

// openStore connects the configured storage driver and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		dtb, err := repository.NewDatabase(
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		if err = repository.Migrate(ctx, dtb); err != nil {
			dtb.Close()
			return nil, nil, err
		}
		return repository.NewRepository(dtb), dtb.Close, nil

	case config.DriverMongo:
		mongoStore, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		closeStore := func() {
			if closeErr := mongoStore.Close(context.Background()); closeErr != nil {
				logger.Error("Failed to disconnect from MongoDB", "error", closeErr)
			}
		}
		if err = mongoStore.EnsureIndexes(ctx); err != nil {
			closeStore()
			return nil, nil, err
		}
		return mongoStore, closeStore, nil

	case config.DriverMemory:
		memStore := memory.NewStore()
		if cfg.Storage.SeedFile != "" {
			if err := loadSeed(memStore, cfg.Storage.SeedFile); err != nil {
				return nil, nil, err
			}
			logger.InfoContext(ctx, "Memory store seeded", "file", cfg.Storage.SeedFile)
		}
		return memStore, func() {}, nil
	}

	return nil, nil, errors.New("unknown storage driver: " + cfg.Storage.Driver)
}

func loadSeed(memStore *memory.Store, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	return memStore.Load(file)
}
