package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/enrichment"
	"github.com/mmdatafocus/clearview_backend/middlewares"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/session"
	"github.com/mmdatafocus/clearview_backend/utils"
)

const serviceName = "ClearView Backend"

// App holds what the handlers need. Everything stateful is injected so
// handlers can be exercised without Redis, MySQL or Gemini.
type App struct {
	Logger   *logrus.Logger
	Sessions session.Store
	Recipes  models.RecipeStore
	Recorder models.PreviewRecorder
	Archiver *utils.GCSArchiver
	Enricher *enrichment.Service
	Now      func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// newApp wires the stores from the environment. Redis and MySQL backed
// pieces are created here but only become usable once main has connected.
func newApp(ctx context.Context, logger *logrus.Logger) *App {
	app := &App{
		Logger:   logger,
		Sessions: session.NewMemoryStore(),
		Recipes:  models.NewFileRecipeStore(config.RecipesDir()),
		Recorder: models.NoopPreviewRecorder{},
		Now:      time.Now,
	}

	var cache enrichment.Cache = enrichment.NewMemoryCache()
	var locker enrichment.Locker
	if rdb := config.InitRedis(); rdb != nil {
		app.Sessions = session.NewRedisStore(rdb, config.SessionTTL())
		cache = enrichment.NewRedisCache(rdb)
		locker = enrichment.NewRedisLocker(config.GetRedisLock, config.GeminiTimeout()+5*time.Second, config.GeminiTimeout(), logger)
	}
	if config.MetadataPersistenceEnabled() {
		app.Recorder = models.GormPreviewRecorder{}
	}
	if config.ExportArchiveEnabled() {
		app.Archiver = utils.NewGCSArchiver(config.ExportArchiveBucket())
	}

	var gen enrichment.Generator
	if config.EnrichmentEnabled() {
		g, err := enrichment.NewGeminiGenerator(ctx, config.GeminiAPIKey(), config.GeminiModel())
		if err != nil {
			config.LogError(logger, "server.go", "newApp", "Gemini disabled", nil, err)
		} else {
			gen = g
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "enrichment"}).Warn("GEMINI_API_KEY not set; enrichment falls back to local extraction")
	}
	app.Enricher = enrichment.NewService(gen, cache, logger)
	app.Enricher.Locker = locker
	app.Enricher.Timeout = config.GeminiTimeout()
	app.Enricher.CacheTTL = config.EnrichmentCacheTTL()
	return app
}

// dependenciesReady is true once every configured backing service answers.
func dependenciesReady() bool {
	if config.RedisConfigured() && !config.RedisReady() {
		return false
	}
	if config.DatabaseConfigured() && !config.DatabaseReady() {
		return false
	}
	return true
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// Production requires an explicit allowlist; anything else allows all.
	if config.IsProduction() {
		cfg.AllowOrigins = config.CorsAllowedOrigins()
		if len(cfg.AllowOrigins) == 0 {
			// Deny all; cors.New rejects an empty allowlist.
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	return cfg
}

func newRouter(app *App, ready func() bool, rateLimiter *middlewares.RateLimiter) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadSizeBytes
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ReadinessMiddleware(ready))
	r.Use(cors.New(corsConfig()))
	r.Use(middlewares.ErrorLogger(app.Logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   serviceName,
		})
	})

	viz := r.Group("/api/auritas/viz")
	viz.POST("/preview", app.vizPreviewHandler())
	viz.POST("/preview-file", app.vizPreviewFileHandler())
	viz.POST("/render", app.vizRenderHandler())
	viz.GET("/export", app.vizExportHandler())
	viz.GET("/recipes", app.vizRecipesHandler())
	viz.GET("/recipes/:name", app.vizRecipeHandler())

	api := r.Group("/api")
	api.POST("/ingest", app.ingestHandler())
	api.POST("/normalize", app.normalizeHandler())
	api.POST("/eos", app.eosHandler())
	api.GET("/summary", app.summaryHandler())
	api.GET("/records", app.recordsHandler())
	api.GET("/export", app.inventoryExportHandler())

	gemini := r.Group("/api/gemini")
	if rateLimiter != nil {
		gemini.Use(rateLimiter.RateLimitMiddleware)
	}
	gemini.POST("/extract-software", app.extractSoftwareHandler())
	gemini.POST("/extract-batch", app.extractBatchHandler())
	gemini.POST("/predict-eos", app.predictEOSHandler())
	gemini.GET("/health", app.geminiHealthHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":  "Endpoint not found",
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})
}

func main() {
	port := config.Port()
	logger := config.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; drain gracefully.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	app := newApp(sigCtx, logger)

	var rateLimiter *middlewares.RateLimiter
	if config.RateLimitEnabled() {
		if rdb := config.GetRedisDB(); rdb != nil {
			limit, window := config.RateLimit()
			rateLimiter = middlewares.NewRateLimiter(rdb, limit, window)
		} else {
			logger.WithFields(logrus.Fields{"field": "rateLimit"}).Warn("RATE_LIMIT_ENABLED needs REDIS_ADDRESS; rate limiting disabled")
		}
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(app, dependenciesReady, rateLimiter),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open; until then the readiness
	// gate answers 503.
	config.ConnectRedisWithRetry(sigCtx)
	config.ConnectDatabaseWithRetry(sigCtx)

	if db := config.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		// AutoMigrate can lock tables; allow running it as a separate job instead.
		if !config.SkipMigrations() {
			if err := models.MigrateTable(); err != nil {
				config.LogError(logger, "server.go", "main", "AutoMigrate", nil, err)
			}
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
