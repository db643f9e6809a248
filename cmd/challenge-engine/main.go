package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/challenge-engine/internal/api"
	"github.com/terra-clan/challenge-engine/internal/bot"
	"github.com/terra-clan/challenge-engine/internal/config"
	"github.com/terra-clan/challenge-engine/internal/counter"
	"github.com/terra-clan/challenge-engine/internal/entry"
	"github.com/terra-clan/challenge-engine/internal/notify"
	"github.com/terra-clan/challenge-engine/internal/presets"
	"github.com/terra-clan/challenge-engine/internal/progress"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting challenge-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Participant count cache (optional; the app runs without Redis)
	var counterCache *counter.Cache
	if cfg.Redis.Address != "" {
		counterCache, err = counter.New(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Counter.TTL,
			repo.CountParticipants,
		)
		if err != nil {
			slog.Warn("redis unavailable, participant counts served from the database", "error", err)
			counterCache = nil
		} else {
			slog.Info("participant count cache connected", "ttl", cfg.Counter.TTL)
		}
	}

	// Load challenge presets
	presetLoader := presets.NewLoader()
	if err := presetLoader.LoadFromDir(cfg.Presets.Dir); err != nil {
		slog.Warn("failed to load presets from dir", "dir", cfg.Presets.Dir, "error", err)
	}

	// Telegram bot and notifications
	tgBot, err := bot.New(cfg.Telegram.BotToken, repo, cfg.Telegram.WebAppURL)
	if err != nil {
		slog.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewService(tgBot.Telebot(), repo, cfg.Telegram.ChannelID, cfg.Telegram.BotName)

	// Domain services
	var invalidator entry.Invalidator
	if counterCache != nil {
		invalidator = counterCache
	}
	entrySvc := entry.NewService(repo, notifier, invalidator)
	progressSvc := progress.NewService(repo)

	// Start bot polling
	go tgBot.Start()

	// Setup HTTP server
	server := api.NewServer(
		cfg.Server,
		repo,
		entrySvc,
		progressSvc,
		presetLoader,
		counterCache,
		notifier,
		cfg.Telegram.BotToken,
	)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Stop bot polling
	tgBot.Stop()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if counterCache != nil {
		if err := counterCache.Close(); err != nil {
			slog.Error("counter cache close error", "error", err)
		}
	}

	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("challenge-engine stopped")
}
