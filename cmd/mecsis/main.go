package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/mecsis-mcp/internal/auth"
	"github.com/dshills/mecsis-mcp/internal/config"
	"github.com/dshills/mecsis-mcp/internal/logging"
	"github.com/dshills/mecsis-mcp/internal/mcp"
	"github.com/dshills/mecsis-mcp/internal/orders"
	"github.com/dshills/mecsis-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("Mecsis MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP protocol
	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.EnsureDBDir(); err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath, storage.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	authn := auth.New(store, auth.WithLogger(logger))

	// --add-user name:password seeds an operator account and exits
	if len(os.Args) > 2 && os.Args[1] == "--add-user" {
		return addUser(authn, os.Args[2])
	}

	svc := orders.NewService(store, orders.Config{
		OpTimeout: cfg.OpTimeout,
		CacheSize: cfg.CacheSize,
	}, logger)
	server := mcp.NewServer(svc, authn, logger)

	logger.Info("mecsis MCP server starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"db_path", cfg.DBPath)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

func addUser(authn *auth.Authenticator, credentials string) error {
	username, password, ok := strings.Cut(credentials, ":")
	if !ok {
		return fmt.Errorf("--add-user expects name:password")
	}
	user, err := authn.CreateUser(context.Background(), username, "", password)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "created user %s (id %d)\n", user.Username, user.ID)
	return nil
}
