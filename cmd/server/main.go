package main

// @title           Global Chat Relay API
// @version         1.0
// @description     Real-time WebSocket chat relay with per-sender deduplication
// @host            localhost:8080
// @BasePath        /
// @schemes         http https

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"global-chat/internal/api/routes"
	"global-chat/internal/config"
	"global-chat/internal/database"
	"global-chat/internal/services"
	"global-chat/internal/websocket"
	"global-chat/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize logger
	logg := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logg)
	slog.Info("Starting chat relay", "port", cfg.Server.Port, "path", cfg.Chat.Path)

	// Optional Redis presence mirror
	var redisService *services.RedisService
	var presence websocket.PresenceTracker
	if cfg.Redis.Enabled() {
		redisClient, err := database.NewRedisConnection(cfg.Redis, logg)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		redisService = services.NewRedisService(redisClient, logg)
		presence = redisService
	} else {
		slog.Info("Redis not configured, presence mirror and handshake rate limiting disabled")
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(websocket.HubOptions{
		DedupCapacity: cfg.Chat.DedupCapacity,
		Client: websocket.ClientOptions{
			WriteWait:      cfg.Chat.WriteTimeout,
			PongWait:       cfg.Chat.IdleTimeout,
			MaxMessageSize: cfg.Chat.MaxMessageSize,
			SendBuffer:     cfg.Chat.SendBuffer,
		},
	}, presence, logg)

	// Initialize router with all dependencies
	router := routes.NewRouter(cfg, hub, redisService, logg)
	router.SetupRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by http.Server.
	hub.Stop(ctx)

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
