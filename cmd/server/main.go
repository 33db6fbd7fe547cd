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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/bracket-optimizer/internal/api"
	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/config"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
	"github.com/jstittsworth/bracket-optimizer/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(models.All()...); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Redis is optional: without it results are simply not cached.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, cache calls will trip the breaker")
		}
		defer redisClient.Close()
	}

	cacheService := services.NewCacheService(redisClient, cfg.CacheBreakerThreshold, logger.WithComponent("cache"))
	webSocketHub := services.NewWebSocketHub()
	go webSocketHub.Run()
	defer webSocketHub.Stop()

	forecastStore := services.NewForecastStore(db)
	selectionService := services.NewSelectionService(db, forecastStore, cacheService, webSocketHub, cfg)

	scheduler := services.NewRefreshScheduler(selectionService, cfg.RefreshSchedule, cfg.Gender,
		2*cfg.SearchTimeout, logger.WithComponent("refresh_scheduler"))
	if err := scheduler.Start(); err != nil {
		log.Errorf("Failed to start refresh scheduler: %v", err)
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.Dependencies{
		DB:         db,
		Cache:      cacheService,
		Hub:        webSocketHub,
		Forecasts:  forecastStore,
		Selections: selectionService,
		Config:     cfg,
	})

	for _, route := range router.Routes() {
		log.Debugf("%s %s", route.Method, route.Path)
	}

	// Selection requests may run for the whole search budget.
	writeTimeout := cfg.SearchTimeout + 15*time.Second
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
