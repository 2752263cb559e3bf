// Package main runs the live poll companion HTTP server with SSE, WebSocket
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ytpoll/backend/config"
	"github.com/ytpoll/backend/internal/chat"
	"github.com/ytpoll/backend/internal/leaderboard"
	"github.com/ytpoll/backend/internal/middleware"
	"github.com/ytpoll/backend/internal/pollstate"
	"github.com/ytpoll/backend/internal/realtime"
	"github.com/ytpoll/backend/internal/sessions"
	"github.com/ytpoll/backend/internal/youtube"
	"github.com/ytpoll/backend/pkg/database"
	"github.com/ytpoll/backend/pkg/redis"
	"github.com/ytpoll/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var ytClient *youtube.Client
	if cfg.YouTube.APIKey != "" {
		ytClient, err = youtube.NewClient(ctx, cfg.YouTube.APIKey, cfg.YouTube.PageSize, logger)
		if err != nil {
			logger.Fatal("youtube", zap.Error(err))
		}
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, chat ingestion endpoints disabled")
	}

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	sessionRepo := sessions.NewRepository(pool)
	stateRepo := pollstate.NewRepository(pool)
	voteRepo := chat.NewRepository(pool)
	leaderboardRepo := leaderboard.NewRepository(pool)

	registry := chat.NewRegistry(logger)

	// Handlers. The YouTube client doubles as chat source and live chat id
	// resolver; both stay nil without an API key.
	var source chat.ChatSource
	var resolver chat.LiveChatResolver
	if ytClient != nil {
		source = ytClient
		resolver = ytClient
	}
	chatHandler := chat.NewHandler(
		registry,
		sessionRepo,
		stateRepo,
		voteRepo,
		source,
		resolver,
		hub,
		time.Duration(cfg.Polling.IntervalSec)*time.Second,
		logger,
	)
	stateHandler := pollstate.NewHandler(stateRepo, hub, logger)
	leaderboardHandler := leaderboard.NewHandler(leaderboardRepo, logger)
	youtubeHandler := youtube.NewHandler(ytClient, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Chat ingestion lifecycle + SSE stream
	router.POST("/chat/start", chatHandler.Start)
	router.POST("/chat/stop", chatHandler.Stop)
	router.GET("/chat/stream", chatHandler.Stream)

	// Session poll rounds and shared poll state
	router.POST("/sessions/:id/poll", chatHandler.StartPoll)
	router.PATCH("/sessions/:id/correct-option", chatHandler.SetCorrectOption)
	router.GET("/sessions/:id/state", stateHandler.Get)
	router.PUT("/sessions/:id/state", stateHandler.Update)

	// Leaderboard
	router.GET("/leaderboard/top", leaderboardHandler.Top)
	router.GET("/leaderboard/videos", leaderboardHandler.Videos)

	// YouTube metadata
	router.GET("/youtube/live-chat-id", youtubeHandler.ResolveLiveChatID)

	// WebSocket state feed
	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	registry.StopAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
