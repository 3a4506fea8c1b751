package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/repositories/entitysource"
	"github.com/Ramsey-B/fern/internal/repositories/founderfeature"
	"github.com/Ramsey-B/fern/internal/repositories/job"
	"github.com/Ramsey-B/fern/internal/repositories/organization"
	"github.com/Ramsey-B/fern/internal/repositories/person"
	"github.com/Ramsey-B/fern/internal/repositories/rawrecord"
	"github.com/Ramsey-B/fern/internal/repositories/reviewflag"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/entity"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	pipelineroutes "github.com/Ramsey-B/fern/pkg/routes/pipeline"
	similarityroutes "github.com/Ramsey-B/fern/pkg/routes/similarity"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const version = "1.0.0"

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to read configuration: %v", err))
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer func() { _ = zapLogger.Sync() }()

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		b, _ := json.Marshal(msg)
		zapLogger.Info(string(b))
	})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider := sdktrace.NewTracerProvider()
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tracerProvider)
	tracing.SetTracer(tracerProvider.Tracer(cfg.AppName))

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)
	db, sqlxDB, err := database.Connect(ctx, dsn, cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	driver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	if err := migrationService.Migrate(cfg.DatabaseName, driver); err != nil {
		return err
	}

	// Similarity cache is optional; the service degrades to uncached
	// queries when Redis is unreachable.
	var cache *redis.Client
	cache, err = redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, similarity caching disabled")
		cache = nil
	} else {
		defer func() { _ = cache.Close() }()
	}

	rawRecordRepo := rawrecord.NewRepository(db, logger)
	orgRepo := organization.NewRepository(db, logger)
	personRepo := person.NewRepository(db, logger)
	jobRepo := job.NewRepository(db, logger)
	featureRepo := founderfeature.NewRepository(db, logger)
	flagRepo := reviewflag.NewRepository(db, logger)
	sourceRepo := entitysource.NewRepository(db, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
	}, logger)
	defer func() { _ = producer.Close() }()
	emitter := events.NewEmitter(producer, logger)

	resolver := pipeline.New(pipeline.Config{
		WorkerCount:      cfg.ResolveWorkerCount,
		MatchThreshold:   cfg.MatchThreshold,
		SourcePriorities: sourcePriorities(cfg.SourcePriorityOrder),
		FounderKeywords:  cfg.FounderKeywords,
		UpsertRetries:    cfg.UpsertRetries,
	}, pipeline.Stores{
		RawRecords:      rawRecordRepo,
		Organizations:   orgRepo,
		People:          personRepo,
		Jobs:            jobRepo,
		FounderFeatures: featureRepo,
		ReviewFlags:     flagRepo,
		EntitySources:   sourceRepo,
	}, emitter, logger)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(cfg, logger, func(ctx context.Context, msg *kafka.IncomingMessage) error {
			_, err := rawRecordRepo.Create(ctx, msg.RawRecord)
			return err
		})
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = consumer.Stop() }()
	}

	engine := similarity.NewEngine(nil)
	var simCache similarity.Cache
	if cache != nil {
		simCache = cache
	}
	simService := similarity.NewService(orgRepo, featureRepo, engine, simCache, cfg.SimilarityCacheTTL, logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(echomiddleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var healthCache health.Pinger
	if cache != nil {
		healthCache = cache
	}
	checker := health.NewChecker(db, healthCache, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	entity.NewHandler(orgRepo, personRepo, jobRepo, featureRepo, flagRepo, rawRecordRepo, sourceRepo, emitter, logger).Register(api)
	similarityroutes.NewHandler(simService, cfg.SimilarityDefaultK, cfg.SimilarityMaxK, logger).Register(api)
	pipelineroutes.NewHandler(resolver, logger).Register(api.Group("/pipeline"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		checker.SetReady(true)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// sourcePriorities maps the configured order onto trust levels; sources
// listed later outrank earlier ones.
func sourcePriorities(order []string) []models.SourcePriority {
	priorities := make([]models.SourcePriority, len(order))
	for i, source := range order {
		priorities[i] = models.SourcePriority{Source: source, Priority: i + 1}
	}
	return priorities
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.PrettyLogs {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
