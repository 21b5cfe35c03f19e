package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/handlers"
	"github.com/mmdatafocus/pipeline_backend/middlewares"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
	"github.com/mmdatafocus/pipeline_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	settings := config.LoadSettings()
	config.SetLogLevel(settings.LogLevel)
	logger := config.GetLogger()
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		if settings.Secret == config.DefaultSecret {
			logger.WithFields(logrus.Fields{"field": "config"}).Warn("API_SECRET is not set; tokens are signed with the development secret")
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are up; until then everything but /healthz is 503.
	var current atomic.Value
	current.Store(http.Handler(bootRouter()))
	swap := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current.Load().(http.Handler).ServeHTTP(w, r)
	})
	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           swap,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	store, closeStore, err := openStore(sigCtx, settings, logger)
	if err != nil {
		if sigCtx.Err() == nil {
			logger.WithFields(logrus.Fields{"field": "store"}).Fatal(err.Error())
		}
		shutdown(srv, logger)
		return
	}
	defer closeStore()

	var cache *config.Cache
	if settings.RedisAddress != "" {
		cache, err = config.ConnectRedisWithRetry(sigCtx, settings.RedisAddress, logger)
		if err != nil {
			shutdown(srv, logger)
			return
		}
		defer cache.Close()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Info("REDIS_ADDRESS not set; user cache, conversion lock and rate limiting are off")
	}

	issuer := utils.NewJwtIssuer(settings.Secret, settings.TokenLifespan)
	credentials := models.NewCredentials(store.Users(), issuer, cache, logger)
	pipeline := workflow.NewPipeline(store,
		workflow.WithCache(cache),
		workflow.WithLogger(logger),
		workflow.WithPhoneRegion(settings.PhoneRegion),
	)
	current.Store(http.Handler(handlers.NewRouter(handlers.Dependencies{
		Settings:    settings,
		Logger:      logger,
		Credentials: credentials,
		Pipeline:    pipeline,
		Cache:       cache,
	})))

	logger.WithFields(logrus.Fields{
		"port":  settings.Port,
		"store": settings.StoreDriver,
	}).Info("pipeline server started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}
	shutdown(srv, logger)
}

func bootRouter() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.ReadinessGate(func() bool { return false }))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

// openStore connects the configured backend and migrates it.
func openStore(ctx context.Context, settings config.Settings, logger *logrus.Logger) (models.Store, func(), error) {
	if settings.StoreDriver == config.StoreDriverMemory {
		logger.WithFields(logrus.Fields{"field": "store"}).Warn("STORE_DRIVER=memory; records are lost on restart")
		return models.NewMemoryStore(), func() {}, nil
	}

	db, err := config.OpenDatabase(ctx, settings, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	// AutoMigrate can block tables on a large MySQL; allow running it as a separate job.
	if !settings.SkipMigrations {
		if err := models.MigrateTable(db); err != nil {
			closeDB()
			return nil, nil, err
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	return models.NewGormStore(db), closeDB, nil
}

func shutdown(srv *http.Server, logger *logrus.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
