package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chthabserver/auth"
	"chthabserver/catalog"
	"chthabserver/chthab"
	"chthabserver/chthab/broadcast"
	chthabdb "chthabserver/chthab/database"
	"chthabserver/chthab/session"
	"chthabserver/database"
	"chthabserver/screens"
	"chthabserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	config, err := utils.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}
	logger, err := utils.InitLogger(config)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	utils.WarnDefaultSecret(config, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locations, err := catalog.Load(config.CatalogFile)
	if err != nil {
		logger.Fatal("Failed to load location catalog", zap.Error(err))
	}

	sessionTTL := time.Duration(config.SessionTTLHours) * time.Hour
	var history chthabdb.RoundHistory = chthabdb.NopRoundHistory{}
	var sessions chthabdb.SessionStore = chthabdb.NewMemorySessionStore(sessionTTL)

	// bring up whichever of PostgreSQL and Redis is configured, in parallel
	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		if !config.DatabaseEnabled() {
			logger.Info("PostgreSQL not configured, round history disabled")
			return
		}
		db, err := database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize PostgreSQL", zap.Error(err))
		}
		recorder := chthabdb.NewGormRoundHistory(db, logger)
		go recorder.Run(ctx)
		history = recorder
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		if !config.RedisEnabled() {
			logger.Info("Redis not configured, keeping sessions in memory")
			return
		}
		rdb, err := database.InitRedis(ctx, config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		sessions = chthabdb.NewRedisSessionStore(rdb, sessionTTL, logger)
	}()
	<-done
	<-done

	hub := broadcast.NewHub(logger)
	registry := session.NewRegistry(hub, locations, session.Options{
		MaxPlayers:            config.MaxPlayers,
		MinPlayers:            config.MinPlayers,
		GracePeriod:           time.Duration(config.GracePeriodSeconds) * time.Second,
		ResetReadyOnEveryVote: config.ResetReadyOnEveryVote,
		OnRoundStarted:        history.Record,
	}, logger)
	reaper := session.NewReaper(registry, hub, hub, session.ReaperOptions{
		ConnIdle:   time.Duration(config.ConnIdleMinutes) * time.Minute,
		WarnBefore: time.Duration(config.ConnIdleWarnMinutes) * time.Minute,
		RoomIdle:   time.Duration(config.RoomIdleMinutes) * time.Minute,
	}, logger)

	retention := time.Duration(config.HistoryRetentionDays) * 24 * time.Hour
	cronJobs, err := utils.CronCleaner(config.ReaperSchedule, reaper, history, retention, logger)
	if err != nil {
		logger.Fatal("Failed to schedule cron jobs", zap.Error(err))
	}
	defer cronJobs.Stop()

	server := &chthab.Server{
		Registry: registry,
		Hub:      hub,
		Reaper:   reaper,
		Tokens:   auth.NewTokenIssuer(config.SessionSecret, sessionTTL),
		Sessions: sessions,
		Upgrader: chthab.NewUpgrader(config.AllowedOrigins),
		Logger:   logger,
	}
	if config.EventsPerSecond > 0 {
		server.NewLimiter = func() *rate.Limiter {
			return rate.NewLimiter(rate.Limit(config.EventsPerSecond), config.EventBurst)
		}
	}

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	// CORS policy
	corsConfig := cors.Config{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(config.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.Static("/images", config.ImageDir)
	router.GET("/categories", func(c *gin.Context) {
		screens.Categories(c, locations)
	})
	router.GET("/rooms/:code", func(c *gin.Context) {
		screens.RoomInfo(c, registry)
	})
	router.GET("/rooms/:code/qr", func(c *gin.Context) {
		screens.RoomQRCode(c, config.PublicURL, logger)
	})
	router.GET("/history/:code", func(c *gin.Context) {
		screens.RoundHistory(c, history, logger)
	})
	router.GET("/healthz", func(c *gin.Context) {
		screens.Healthz(c, registry.RoomCount)
	})
	router.GET("/ws", func(c *gin.Context) {
		server.HandleConnections(c.Request.Context(), c.Writer, c.Request)
	})

	httpServer := &http.Server{Addr: ":" + config.Port, Handler: router}
	go func() {
		logger.Info("Listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
