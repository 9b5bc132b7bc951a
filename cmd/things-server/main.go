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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eion/things/internal/config"
	"github.com/eion/things/internal/database"
	"github.com/eion/things/internal/health"
	"github.com/eion/things/internal/metrics"
	"github.com/eion/things/internal/things"
	"github.com/eion/things/internal/web"
)

// AppState holds all application services
type AppState struct {
	ThingService things.ThingManager
	Health       *health.Manager
	Registry     *prometheus.Registry
	Metrics      *metrics.Collector
	RateLimiter  *web.RateLimiter
	Logger       *zap.Logger

	db    *bun.DB
	redis *redis.Client
}

func main() {
	config.Load()

	logger := initLogger()
	logger.Info("Configuration loaded", zap.String("storage", config.Storage().Driver))

	as, err := newAppState(context.Background(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize application state", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = as.Health.StartupHealthCheck(ctx)
	cancel()
	if err != nil {
		logger.Fatal("Startup health check failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := web.NewRouter(web.Dependencies{
		Service:     as.ThingService,
		Logger:      logger,
		Health:      as.Health,
		Metrics:     as.Metrics,
		Gatherer:    as.Registry,
		MetricsPath: config.Metrics().Path,
		RateLimiter: as.RateLimiter,
	})

	addr := config.Http().Addr()
	server := &http.Server{
		Addr:              addr,
		Handler:           web.NewHandler(router, config.Http().MaxRequestSize),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := setupSignalHandler(as, server, logger)

	logger.Info("Starting things server", zap.String("address", addr))

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	logger.Info("Server shutdown complete")
}

// newAppState opens the configured storage and builds the services on top of it
func newAppState(ctx context.Context, logger *zap.Logger) (*AppState, error) {
	as := &AppState{
		Health: health.NewManager(logger),
		Logger: logger,
	}

	store, err := as.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if redisConfig := config.Redis(); redisConfig.Enabled {
		as.redis = redis.NewClient(&redis.Options{
			Addr:     redisConfig.Addr(),
			Password: redisConfig.Password,
			DB:       redisConfig.Database,
		})
		as.Health.AddChecker(health.NewRedisChecker(as.redis))
		store = things.NewCachedStore(store, as.redis, redisConfig.TTL(), logger)

		logger.Info("Redis cache enabled",
			zap.String("address", redisConfig.Addr()),
			zap.Duration("ttl", redisConfig.TTL()))
	}

	as.ThingService = things.NewService(store, config.Search().Limit)

	if config.Metrics().Enabled {
		as.Registry = prometheus.NewRegistry()
		as.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		as.Metrics = metrics.NewCollector(as.Registry)
	}

	if rl := config.RateLimit(); rl.Enabled {
		as.RateLimiter = web.NewRateLimiter(rl.RequestsPerSecond, rl.Burst)
	}

	return as, nil
}

func (as *AppState) openStore(ctx context.Context) (things.ThingStore, error) {
	driver := config.Storage().Driver
	switch driver {
	case "memory":
		as.Logger.Warn("Using in-memory storage; data is lost on restart")
		return things.NewInMemoryStore(), nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}

	pgConfig := config.Postgres()
	as.Logger.Info("Database configuration",
		zap.String("host", pgConfig.Host),
		zap.Int("port", pgConfig.Port),
		zap.String("database", pgConfig.Database),
		zap.String("user", pgConfig.User))

	if pgConfig.RunMigrations {
		if err := database.RunMigrations(pgConfig.DSN()); err != nil {
			return nil, err
		}
		as.Logger.Info("Database migrations applied")
	}

	db, err := database.Open(ctx, pgConfig.DSN(), pgConfig.MaxOpenConnections)
	if err != nil {
		return nil, err
	}
	as.db = db
	as.Health.AddChecker(health.NewDatabaseChecker(db))

	return things.NewPostgresStore(db), nil
}

// Close releases connections held by the application
func (as *AppState) Close() {
	if as.RateLimiter != nil {
		as.RateLimiter.Stop()
	}
	if as.redis != nil {
		if err := as.redis.Close(); err != nil {
			as.Logger.Error("Error closing redis client", zap.Error(err))
		}
	}
	if as.db != nil {
		if err := as.db.Close(); err != nil {
			as.Logger.Error("Error closing database", zap.Error(err))
		}
	}
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	var config zap.Config
	if logConfig.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	switch logConfig.Level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func setupSignalHandler(as *AppState, server *http.Server, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		as.Close()
		_ = logger.Sync()

		close(done)
	}()

	return done
}
