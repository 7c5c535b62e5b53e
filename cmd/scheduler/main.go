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

	"github.com/Freeeeeet/slot_scheduler/internal/app"
	"github.com/Freeeeeet/slot_scheduler/internal/cache"
	"github.com/Freeeeeet/slot_scheduler/internal/config"
	"github.com/Freeeeeet/slot_scheduler/internal/controller"
	"github.com/Freeeeeet/slot_scheduler/internal/controller/httpapi"
	"github.com/Freeeeeet/slot_scheduler/internal/events"
	"github.com/Freeeeeet/slot_scheduler/internal/repository"
	"github.com/Freeeeeet/slot_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/slot_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting slot scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("telegram", cfg.TelegramToken != ""),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Bool("kafka", cfg.KafkaBrokers != ""),
	)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Scheduler stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Scheduler stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	var availabilityCache service.AvailabilityCache
	if cfg.RedisAddr != "" {
		c := cache.NewAvailabilityCache(ctx, cache.Config{
			RedisAddr:       cfg.RedisAddr,
			RedisPassword:   cfg.RedisPassword,
			RedisDB:         cfg.RedisDB,
			AvailabilityTTL: cfg.AvailabilityCacheTTL,
		}, logger)
		defer c.Close()
		availabilityCache = c
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("Failed to close kafka writer", zap.Error(err))
			}
		}()
		publisher = kp
	}

	scheduleService := service.NewScheduleService(repo, availabilityCache, time.Now, logger)
	notifier := events.NewNotifier(publisher, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(scheduleService, notifier, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}

		botController := controller.NewBotController(b, scheduleService, notifier, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			// меню команд необязательно, бот работает и без него
			logger.Warn("Failed to register bot commands menu", zap.Error(err))
		}

		g.Go(func() error {
			return botController.Start(gctx)
		})
	}

	return g.Wait()
}

// openRepository выбирает хранилище по STORAGE; pool открывается один раз на процесс
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.SlotRepository, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewSlotStore(), func() {}, nil
	}

	pool, err := app.OpenPool(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, nil, err
	}

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info("Connected to database")
	return repository.NewSlotRepository(pool), pool.Close, nil
}
