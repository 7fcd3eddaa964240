package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hashdrop-io/hashdrop/internal/common"
	"github.com/hashdrop-io/hashdrop/internal/descriptions"
	"github.com/hashdrop-io/hashdrop/internal/metrics"
	"github.com/hashdrop-io/hashdrop/internal/middleware"
	"github.com/hashdrop-io/hashdrop/internal/session"
	"github.com/hashdrop-io/hashdrop/internal/storage"
	"github.com/hashdrop-io/hashdrop/internal/upload"
	"github.com/hashdrop-io/hashdrop/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.LoadFromEnv()

	// Setup logging
	setupLogging(cfg.Logging)

	log.Info().Msg("starting hashdrop upload server")

	// Optional description database
	var db *common.Database
	if cfg.Database.Enabled {
		var err error
		db, err = common.NewDatabase(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Initialize metrics
	stats := metrics.NewCollector(prometheus.DefaultRegisterer)

	// Initialize storage
	storageFactory := storage.NewFactory(&cfg.Storage)
	blobStore, err := storageFactory.CreateStore(stats)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Initialize session tracking and its eviction janitor
	sessions := session.NewStore(cfg.Sessions.TTL)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	sessions.StartJanitor(janitorCtx, cfg.Sessions.SweepInterval)
	stats.TrackSessions(sessions.Count)

	// Initialize services
	uploadService := upload.NewService(sessions, blobStore, stats)
	descriptionService := descriptions.NewService(db)
	uploadHandler := upload.NewHandler(uploadService, sessions, descriptionService, cfg.Server.MaxUploadBytes)

	// Setup HTTP server
	router := setupRouter(uploadHandler, stats, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Give outstanding uploads 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("server shutdown complete")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func setupRouter(uploadHandler *upload.Handler, stats *metrics.Collector, cfg *config.Config) *gin.Engine {
	// Set Gin mode based on log level
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "hashdrop",
			"time":    time.Now().UTC(),
		})
	})

	// Metrics
	router.GET("/metrics", gin.WrapH(stats.Handler()))

	// Upload, progress, filepath and description routes
	uploadHandler.Register(router)

	// Static frontend, served for anything the API does not claim
	if cfg.Server.StaticDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))
	}

	return router
}
