package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/scenesync/internal/config"
	"github.com/iudanet/scenesync/internal/crypto"
	"github.com/iudanet/scenesync/internal/relay"
	"github.com/iudanet/scenesync/internal/relay/auth"
	"github.com/iudanet/scenesync/internal/relay/handlers"
	"github.com/iudanet/scenesync/internal/storage"
	"github.com/iudanet/scenesync/internal/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadRelay(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger, err := config.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Relay stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Relay, logger *slog.Logger) error {
	// Хранилище состояния сцен
	var store storage.SceneStorage
	if cfg.DBPath != "" {
		s, err := sqlite.New(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open scene database: %w", err)
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()
		store = s
		logger.Info("Scene state persisted", "path", cfg.DBPath)
	} else {
		logger.Warn("Scene state kept in memory only")
	}

	// Брокер между экземплярами relay
	var broker relay.Broker
	if cfg.RedisAddr != "" {
		b, err := relay.NewRedisBroker(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return err
		}
		broker = b
		logger.Info("Using Redis broker", "addr", cfg.RedisAddr)
	} else {
		broker = relay.NewLocalBroker()
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error("failed to close broker", "error", err)
		}
	}()

	tokens, err := newTokens(cfg, logger)
	if err != nil {
		return err
	}

	hub := relay.NewHub(relay.Config{
		Broker:     broker,
		Storage:    store,
		Logger:     logger,
		SendBuffer: cfg.SendBuffer,
	})
	defer func() {
		if err := hub.Close(); err != nil {
			logger.Error("failed to close hub", "error", err)
		}
	}()

	router, stopRouter := handlers.NewRouter(handlers.RouterConfig{
		Hub:                  hub,
		Tokens:               tokens,
		Logger:               logger,
		Version:              Version,
		TokenRate:            cfg.TokenRate,
		TokenWindow:          cfg.TokenWindow,
		DisableTokenEndpoint: cfg.DisableTokenEndpoint,
	})
	defer stopRouter()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "addr", cfg.Addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// WebSocket соединения закрываются через hub.Close
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// newTokens выводит ключ подписи из секрета
func newTokens(cfg *config.Relay, logger *slog.Logger) (*auth.Tokens, error) {
	salt, err := cfg.Salt()
	if err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		generated, err := crypto.GenerateSaltBase64()
		if err != nil {
			return nil, err
		}
		logger.Warn("No token salt configured, tokens will not survive a restart",
			"hint", "set SCENESYNC_TOKEN_SALT="+generated)
		cfg.TokenSalt = generated
		if salt, err = cfg.Salt(); err != nil {
			return nil, err
		}
	}

	key, err := crypto.DeriveSigningKey(cfg.TokenSecret, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return auth.New(key, cfg.TokenTTL), nil
}

func printVersion() {
	fmt.Printf("SceneSync Relay\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
