package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	adapterhttp "github.com/prostudio/server/internal/adapter/http"
	"github.com/prostudio/server/internal/infra/events"
	"github.com/prostudio/server/internal/infra/httpclient"
	"github.com/prostudio/server/internal/infra/persistence"
	"github.com/prostudio/server/internal/infra/storage"
	"github.com/prostudio/server/internal/module/generation"
	"github.com/prostudio/server/internal/module/generation/provider"
	"github.com/prostudio/server/internal/module/generation/viewcache"
	sharedcache "github.com/prostudio/server/internal/shared/cache"
	"github.com/prostudio/server/internal/shared/config"
	"github.com/prostudio/server/internal/shared/database"
	"github.com/prostudio/server/internal/shared/logger"
	"github.com/prostudio/server/internal/shared/middleware"
	"github.com/prostudio/server/internal/utils/metrics"
)

// listCacheTTL bounds how long a generation list view may be served
// without touching the database.
const listCacheTTL = 5 * time.Minute

// App wires the application together.
type App struct {
	config    *config.Config
	db        *gorm.DB
	redis     redis.UniversalClient
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger

	eventBus *events.Bus
	metrics  *metrics.Metrics
	storage  *storage.Client

	generationService *generation.Service
	projectHandler    *adapterhttp.ProjectHandler
	generationHandler *adapterhttp.GenerationHandler
	uploadHandler     *adapterhttp.UploadHandler
}

// New creates the application.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	// Zap logger for the modules that use zap.
	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := persistence.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	app.db = db

	// Redis is optional; without it the list cache falls back to memory.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn("Redis connection failed, using in-memory cache", logger.Err(err))
		} else {
			app.redis = redisClient
		}
	}

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}
	app.registerEventHandlers()
	app.router = app.setupRouter()

	return app, nil
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases the application's resources.
func (a *App) Stop() {
	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}
}

func (a *App) initModules() error {
	cfg := a.config

	a.metrics = metrics.New("")
	a.eventBus = events.NewBus(a.zapLogger)

	storageClient, err := storage.New(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	a.storage = storageClient

	var cacheStore viewcache.Store
	if a.redis != nil {
		cacheStore = viewcache.NewRedisStore(a.redis)
	} else {
		cacheStore = viewcache.NewMemoryStore()
	}
	listCache := viewcache.New(cacheStore, listCacheTTL, a.zapLogger)

	recordRepo := persistence.NewGenerationRecordRepository(a.db)
	projectRepo := persistence.NewProjectRepository(a.db)

	httpClient := httpclient.New(&cfg.Providers)
	registry := provider.NewRegistry(
		&cfg.Providers,
		provider.NewPredictionsClient(&cfg.Providers.Predictions, httpClient),
		provider.NewVideoJobsClient(&cfg.Providers.VideoJobs, httpClient),
	)

	orchestrator := generation.NewOrchestrator(
		registry,
		generation.NewPoller(registry, a.zapLogger),
		generation.NewPersister(httpClient, storageClient, a.zapLogger),
		generation.NewCommitter(recordRepo, listCache, a.eventBus, a.zapLogger),
		a.eventBus,
		a.zapLogger,
	)

	a.generationService = generation.NewService(
		orchestrator, recordRepo, projectRepo, listCache, storageClient, a.metrics, a.zapLogger,
	)

	a.projectHandler = adapterhttp.NewProjectHandler(projectRepo, a.zapLogger)
	a.generationHandler = adapterhttp.NewGenerationHandler(a.generationService, a.zapLogger)
	a.uploadHandler = adapterhttp.NewUploadHandler(projectRepo, storageClient, a.zapLogger)

	return nil
}

func (a *App) registerEventHandlers() {
	a.eventBus.Register(events.NewHandlerFunc(
		[]string{events.TypeGenerationRunFailed},
		func(ctx context.Context, e events.Event) error {
			failed := e.(*events.GenerationRunFailed)
			a.zapLogger.Warn("Generation run failed",
				zap.String("project_id", failed.ProjectID.String()),
				zap.String("kind", failed.Kind.String()),
				zap.String("failure_kind", failed.FailureKind.String()),
				zap.String("message", failed.Message),
			)
			return nil
		},
	))
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Identity is established upstream; the gateway injects the user id.
	api := r.Group("/api/v1")
	api.Use(middleware.Identity())
	{
		a.projectHandler.RegisterRoutes(api)
		a.generationHandler.RegisterRoutes(api)
		a.uploadHandler.RegisterRoutes(api)
	}

	return r
}
