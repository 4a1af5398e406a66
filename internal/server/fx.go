// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/api"
	"github.com/JakeFAU/realtime-news-collector/internal/catalog"
	"github.com/JakeFAU/realtime-news-collector/internal/clock/system"
	"github.com/JakeFAU/realtime-news-collector/internal/collector"
	"github.com/JakeFAU/realtime-news-collector/internal/config"
	"github.com/JakeFAU/realtime-news-collector/internal/enrich"
	collyfetcher "github.com/JakeFAU/realtime-news-collector/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-news-collector/internal/hash/sha256"
	"github.com/JakeFAU/realtime-news-collector/internal/id/uuid"
	"github.com/JakeFAU/realtime-news-collector/internal/logging"
	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
	"github.com/JakeFAU/realtime-news-collector/internal/policy/ratelimit"
	"github.com/JakeFAU/realtime-news-collector/internal/policy/simple"
	memorypublisher "github.com/JakeFAU/realtime-news-collector/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/realtime-news-collector/internal/publisher/pubsub"
	"github.com/JakeFAU/realtime-news-collector/internal/scheduler"
	"github.com/JakeFAU/realtime-news-collector/internal/source/naver"
	gcsstorage "github.com/JakeFAU/realtime-news-collector/internal/storage/gcs"
	localstorage "github.com/JakeFAU/realtime-news-collector/internal/storage/local"
	memoryStorage "github.com/JakeFAU/realtime-news-collector/internal/storage/memory"
	mongostore "github.com/JakeFAU/realtime-news-collector/internal/storage/mongo"
	pgstore "github.com/JakeFAU/realtime-news-collector/internal/storage/postgres"
)

// Role selects which routes and background work a binary runs.
type Role string

// Supported roles.
const (
	RoleCollector Role = "collector"
	RoleNewsAPI   Role = "newsapi"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	role         Role
	logger       *zap.Logger
	apiServer    *api.Server
	collector    *collector.Collector
	scheduler    *scheduler.Scheduler
	store        news.RecordStore
	pubsubClient *gcppublisher.Publisher
	storage      *storage.Client
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, role Role, logger *zap.Logger) (*App, error) {
	switch role {
	case RoleCollector, RoleNewsAPI:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	// Only non-sensitive fields are logged.
	type sanitizedConfig struct {
		Role             Role   `json:"role"`
		ServerPort       int    `json:"server_port"`
		StoreBackend     string `json:"store_backend"`
		StorageBackend   string `json:"storage_backend"`
		SourceConfigured bool   `json:"source_configured"`
	}
	logger.Info("Creating application", zap.Any("config", sanitizedConfig{
		Role:             role,
		ServerPort:       cfg.Server.Port,
		StoreBackend:     cfg.Store.Backend,
		StorageBackend:   cfg.Storage.Backend,
		SourceConfigured: cfg.Source.Configured(),
	}))
	return &App{cfg: cfg, role: role, logger: logger}, nil
}

// Handler exposes the HTTP handler (useful for tests).
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started", zap.String("role", string(a.role)))
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(_ context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.collector != nil {
		// Background runs started over HTTP finish before their stores close.
		a.collector.Wait()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("record store close failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies for role.
func Build(ctx context.Context, cfg *config.Config, role Role) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, string(role))
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, role, logger)
}

func build(ctx context.Context, cfg *config.Config, role Role, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, role, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	metrics.Init()

	app.logger.Info("building application dependencies")
	app.store, err = setupStore(ctx, app)
	if err != nil {
		return nil, err
	}

	deps := api.Deps{Store: app.store}
	opts := api.Options{
		Service:          string(role),
		RequestTimeout:   cfg.Server.RequestTimeout,
		BatchQueries:     cfg.Collector.BatchQueries,
		SourceConfigured: cfg.Source.Configured(),
	}

	switch role {
	case RoleCollector:
		if err := setupCollector(ctx, app); err != nil {
			app.closeInfrastructure()
			return nil, err
		}
		deps.Collector = app.collector
	case RoleNewsAPI:
		svc, err := catalog.New(catalog.Config{
			StorePageSize:   cfg.News.StorePageSize,
			StatsSampleSize: cfg.News.StatsSampleSize,
		}, app.store, logger.Named("catalog"))
		if err != nil {
			app.closeInfrastructure()
			return nil, fmt.Errorf("catalog init failed: %w", err)
		}
		deps.Catalog = svc
	}

	app.apiServer = api.NewServer(opts, deps, logger.Named("api"))
	return app, nil
}

func setupCollector(ctx context.Context, app *App) error {
	cfg := app.cfg
	sink, err := setupBlobSink(ctx, app)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return err
	}
	clock := system.New()

	engine := enrich.New(enrich.Config{
		Enabled:       cfg.Enrich.Enabled,
		Concurrency:   cfg.Enrich.Concurrency,
		MaxImageBytes: cfg.Enrich.MaxImageBytes,
		CacheControl:  cfg.Enrich.CacheControl,
		UserAgent:     cfg.Enrich.UserAgent,
		Environment:   cfg.Enrich.Environment,
	}, enrich.Deps{
		Pages: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Enrich.UserAgent,
			Timeout:   cfg.Enrich.PageTimeout,
		}),
		// The cap is one byte over the limit so oversized bodies are detectable.
		Images: collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.Enrich.UserAgent,
			Timeout:     cfg.Enrich.ImageTimeout,
			MaxBodySize: int(cfg.Enrich.MaxImageBytes) + 1,
		}),
		Sink:    sink,
		Hasher:  sha256.New(cfg.Enrich.HashLength),
		Clock:   clock,
		Limiter: setupLimiter(app),
	}, app.logger.Named("enrich"))

	app.collector = collector.New(collector.Config{
		DefaultQuery:  cfg.Collector.DefaultQuery,
		PageSize:      cfg.Collector.PageSize,
		Sort:          cfg.Collector.Sort,
		IncludeImages: cfg.Collector.IncludeImages,
		BatchDelay:    cfg.Collector.BatchDelay,
		Topic:         cfg.PubSub.TopicName,
	}, collector.Deps{
		Source:    setupSource(app),
		Store:     app.store,
		Enricher:  engine,
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     clock,
	}, app.logger.Named("collector"))

	if err := app.collector.Seed(ctx); err != nil {
		app.logger.Warn("seeding collected total failed", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		app.scheduler, err = scheduler.New(scheduler.Config{
			Interval:      cfg.Scheduler.Interval,
			Queries:       cfg.Scheduler.Queries,
			PageSize:      cfg.Collector.PageSize,
			IncludeImages: cfg.Collector.IncludeImages,
			RunOnStart:    cfg.Scheduler.RunOnStart,
		}, app.collector, app.logger.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("scheduler init failed: %w", err)
		}
	}
	return nil
}

func setupStore(ctx context.Context, app *App) (news.RecordStore, error) {
	cfg := app.cfg.Store
	switch cfg.Backend {
	case config.StoreBackendPostgres:
		app.logger.Info("using postgres record store")
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		if cfg.Postgres.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("postgres schema init failed: %w", err)
			}
		}
		app.logger.Debug("postgres record store", zap.String("table", cfg.Postgres.Table))
		return store, nil
	case config.StoreBackendMongo:
		app.logger.Info("using mongo record store")
		store, err := mongostore.New(ctx, mongostore.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("mongo store init failed: %w", err)
		}
		app.logger.Debug("mongo record store",
			zap.String("database", cfg.Mongo.Database),
			zap.String("collection", cfg.Mongo.Collection),
		)
		return store, nil
	default:
		app.logger.Warn("using in-memory record store; records do not survive restarts")
		return memoryStorage.NewRecordStore(), nil
	}
}

func setupBlobSink(ctx context.Context, app *App) (news.BlobSink, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case config.BlobBackendGCS:
		app.logger.Info("using GCS storage backend")
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		sink, err := gcsstorage.New(app.storage, gcsstorage.Config{
			Bucket:       cfg.GCSBucket,
			PublicOrigin: cfg.PublicOrigin,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS storage backend", zap.String("bucket", cfg.GCSBucket))
		return sink, nil
	case config.BlobBackendLocal:
		app.logger.Info("using local storage backend")
		sink, err := localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir, PublicOrigin: cfg.PublicOrigin})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local storage backend", zap.String("path", cfg.LocalDir))
		return sink, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (news.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = gcppublisher.New(client)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubClient, nil
}

func setupLimiter(app *App) news.Limiter {
	if app.cfg.RateLimit.DefaultRPS <= 0 {
		app.logger.Info("rate limiter disabled, using simple policy")
		return simple.New()
	}
	app.logger.Info("rate limiter enabled",
		zap.Float64("default_rps", app.cfg.RateLimit.DefaultRPS),
		zap.Int("default_burst", app.cfg.RateLimit.DefaultBurst),
	)
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:   app.cfg.RateLimit.DefaultRPS,
		DefaultBurst: app.cfg.RateLimit.DefaultBurst,
	})
}

func setupSource(app *App) news.Source {
	client, err := naver.New(naver.Config{
		BaseURL:      app.cfg.Source.BaseURL,
		ClientID:     app.cfg.Source.ClientID,
		ClientSecret: app.cfg.Source.ClientSecret,
		Timeout:      app.cfg.Source.Timeout,
	}, nil, app.logger.Named("naver"))
	if err != nil {
		app.logger.Warn("news source not configured; collection runs will fail", zap.Error(err))
		return unconfiguredSource{err: err}
	}
	return client
}

// unconfiguredSource fails every search so the service can still start and report health.
type unconfiguredSource struct {
	err error
}

func (s unconfiguredSource) Search(context.Context, news.SearchRequest) (news.SearchResult, error) {
	return news.SearchResult{}, fmt.Errorf("%w: %w", news.ErrSourceUnavailable, s.err)
}
