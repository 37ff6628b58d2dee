package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/staybooking/api"
	"github.com/Domenick1991/staybooking/config"
	"github.com/Domenick1991/staybooking/internal/bootstrap"
	"github.com/Domenick1991/staybooking/internal/cache"
	"github.com/Domenick1991/staybooking/internal/guard"
	"github.com/Domenick1991/staybooking/internal/kafka"
	"github.com/Domenick1991/staybooking/internal/logging"
	"github.com/Domenick1991/staybooking/internal/repository"
	"github.com/Domenick1991/staybooking/internal/service/booking"
	"github.com/Domenick1991/staybooking/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log.Level))
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	bookingRepo, closeDB, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := bookingRepo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	engine := validation.NewEngine(bookingRepo, validation.WithAgeBounds(cfg.Booking.MinAge, cfg.Booking.MaxAge))
	serviceOpts := []booking.BookingServiceOption{booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic)}

	var (
		guardStore guard.Store
		guardOpts  []guard.Option
	)
	if cfg.Redis.Enabled() {
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		redisCache := cache.NewRedisCache(client, time.Duration(cfg.Booking.ListCacheTTLSeconds)*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		guardStore = redisCache
		serviceOpts = append(serviceOpts, booking.WithCache(redisCache))
		if cfg.Guard.RecordStats {
			guardOpts = append(guardOpts, guard.WithStats(redisCache))
		}
	} else {
		slog.Warn("redis not configured, guard counters are local to this process")
		memory := cache.NewMemoryStore()
		memory.StartJanitor(ctx)
		guardStore = memory
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := producer.CheckConnection(checkCtx); err != nil {
			slog.Warn("kafka unreachable at startup, booking events will be retried per submission", "error", err)
		}
		cancel()
		serviceOpts = append(serviceOpts, booking.WithProducer(producer, cfg.Kafka.BookingTopic))
	}

	bookingService := booking.NewBookingService(bookingRepo, engine, serviceOpts...)

	var evaluator api.Evaluator
	if !cfg.Guard.Disabled {
		g, err := guard.New(guardStore, bootstrap.GuardPolicy(cfg.Guard), guardOpts...)
		if err != nil {
			return fmt.Errorf("build guard: %w", err)
		}
		evaluator = g
	}

	routerCfg := api.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		HSTS:           cfg.HTTP.HSTS,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}
	if docs := bootstrap.DocsHandler(cfg.HTTP.SwaggerDir); docs != nil {
		routerCfg.Docs = docs
	}
	router, err := api.NewRouter(routerCfg, bookingService, evaluator)
	if err != nil {
		return err
	}

	return bootstrap.Run(ctx, cfg, router)
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.BookingRepository, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLiteDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repository.NewSQLiteBookingRepository(db), func() { db.Close() }, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return repository.NewBookingRepository(pool), pool.Close, nil
	}
}
