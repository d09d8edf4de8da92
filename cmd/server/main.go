package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dm-lab/auth"
	"dm-lab/hub"
	"dm-lab/internal"
	"dm-lab/moderation"
	"dm-lab/repositories"
	"dm-lab/search"
	"dm-lab/server"
	"dm-lab/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

//go:embed censored/*
var censoredFolder embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close, index
// close) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB) & search index (bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.NewIndex(config.BlugeFilepath)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()
	userRepository := repositories.NewUserRepository(db)

	// 3. Moderation
	var moderator *moderation.Moderator
	if config.ModerationEnabled {
		words, err := moderation.LoadWords(censoredFolder, "censored")
		if err != nil {
			return fmt.Errorf("censored words: %w", err)
		}
		replacement, err := internal.CharacterRune(config.CensoredChar)
		if err != nil {
			return err
		}
		moderator, err = moderation.NewModerator(words, replacement)
		if err != nil {
			return fmt.Errorf("moderator: %w", err)
		}
		log.Info("Moderation enabled", "words", len(words))
	}

	// 4. Hub wiring
	registry := hub.NewRegistry()
	transport := server.NewChannelTransport(log, config.ConnectionBufferSize)
	resolver := auth.NewResolver(userRepository, log)
	messagingHub := hub.NewHub(log, registry, userRepository, messageRepository,
		resolver, transport, moderator, index, config.PageSize)

	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)
	router := server.NewRouter(log, authService, server.NewWSHandler(log, messagingHub, transport))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
