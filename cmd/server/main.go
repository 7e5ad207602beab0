package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"pulsex/auth"
	"pulsex/hub"
	"pulsex/infrastructure/storage"
	"pulsex/moderation"
	"pulsex/observability"
	"pulsex/ratelimit"
	"pulsex/repositories"
	"pulsex/runtime/workers"
	"pulsex/services"
	"pulsex/session"
	"pulsex/transport"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// It never calls os.Exit directly so deferred cleanup (database close, redis
// close) always executes on the way out.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := buildLogger(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Credential store (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Shared store (Redis): rate-limit counters and room broadcast
	redisClient, err := storage.NewRedisClient(ctx, config.RedisURL)
	if err != nil {
		return exitRuntime, fmt.Errorf("redis connection failed: %w", err)
	}
	defer func() {
		logger.Info("Closing Redis client...")
		_ = redisClient.Close()
	}()

	// 4. Core components
	codec := auth.NewTokenCodec([]byte(config.JWTSecret), config.TokenValidity)
	limiter := ratelimit.NewLimiter(logger, storage.NewRedisCounter(redisClient), ratelimit.DefaultQuotas())
	registry := hub.NewRegistry()
	bus := hub.NewBus(logger, storage.NewRedisBroker(redisClient), registry)

	blacklistRepository := repositories.NewBlacklistRepository(db)
	words, err := blacklistRepository.Words()
	if err != nil {
		return exitRuntime, fmt.Errorf("loading moderation blacklist: %w", err)
	}
	moderator, err := moderation.NewModerator(words, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("building moderator: %w", err)
	}
	logger.Info("Moderation blacklist loaded", "words", len(words))

	userRepository := repositories.NewUserRepository(db)
	authService := services.NewAuthService(userRepository, codec)
	if config.SeedDemoUsers {
		if err := seedDemoUsers(authService); err != nil {
			return exitRuntime, fmt.Errorf("seeding demo users: %w", err)
		}
		logger.Info("Demo users seeded")
	}

	dispatcher := session.NewDispatcher(logger, codec, limiter, registry, bus, moderator)

	// 5. Supervision: broadcast subscription and telemetry
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(bus, observability.NewTelemetry(logger, registry, config.TelemetryInterval))
	go sup.Run(ctx)

	// The broadcast subscription must be live before the first connection
	// is accepted, or early room messages would be lost.
	subCtx, cancelSub := context.WithTimeout(ctx, config.SubscriptionDeadline)
	defer cancelSub()
	if err := bus.WaitReady(subCtx); err != nil {
		return exitRuntime, fmt.Errorf("broadcast subscription not ready: %w", err)
	}

	// 6. HTTP server
	handler := transport.NewHandler(
		logger, authService, limiter, dispatcher,
		config.SendBufferSize, config.TokenValidity, config.AllowedOrigin,
	)
	server := transport.NewServer(logger, fmt.Sprintf("%s:%d", config.Host, config.Port), handler.Router())

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// seedDemoUsers provisions the two local-development accounts.
func seedDemoUsers(authService *services.AuthService) error {
	demo := map[string]string{
		"ali":  "Ali",
		"test": "Test",
	}
	for username, displayName := range demo {
		if err := authService.EnsureUser(username, displayName, "demo-password-123"); err != nil {
			return err
		}
	}
	return nil
}
