// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/primer/internal/cache"
	"github.com/starford/primer/internal/fetch"
	"github.com/starford/primer/internal/index"
	"github.com/starford/primer/internal/manifest"
	"github.com/starford/primer/internal/mcpserver"
	"github.com/starford/primer/internal/meta"
	"github.com/starford/primer/internal/origin"
	"github.com/starford/primer/internal/sse"
	"github.com/starford/primer/internal/storage"
)

// Run starts the daemon with the given options: an HTTP origin server in
// serve mode, a stdio MCP server in mcp mode. Both keep the search index
// synced with the mirror through the file watcher.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeServe}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP mode speaks JSON-RPC on
	// stdout, so its logs go to stderr.
	logOut := io.Writer(os.Stdout)
	if app.mode == ModeMCP {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("mirror_dir", cfg.Mirror.Dir),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure mirror directory exists.
	if err := os.MkdirAll(cfg.Mirror.Dir, 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Mirror.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	switch app.mode {
	case ModeMCP:
		return runMCP(ctx, cfg, store, db, logger)
	default:
		return runServe(ctx, cfg, store, db, logger)
	}
}

// runServe runs the HTTP origin server plus the mirror watcher. The
// served content root defaults to the mirror itself; serve.root points it
// at another tree without moving the index off the mirror.
func runServe(ctx context.Context, cfg *Config, store storage.Provider, db *index.DB, logger *slog.Logger) error {
	originRoot := cfg.Serve.Root
	originStore := store
	if originRoot != "" && originRoot != cfg.Mirror.Dir {
		var err error
		originStore, err = storage.NewFS(originRoot)
		if err != nil {
			return fmt.Errorf("init serve root: %w", err)
		}
	} else {
		originRoot = cfg.Mirror.Dir
	}

	// SSE broker for mirror change events.
	broker := sse.NewBroker(2 * time.Second)

	srv := origin.NewServer(originStore, logger)
	router := origin.NewRouter(srv, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: router,
	}

	logger.Info("Server starting...",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("origin_root", originRoot))

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(runCtx, db, store, cfg.Mirror.Dir, logger, func(kind, path string) {
			broker.PublishFileEvent(kind, path)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-runCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		stop()

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// runMCP runs the stdio MCP server plus the mirror watcher, so installs
// triggered by tools show up in the search index without a restart.
func runMCP(ctx context.Context, cfg *Config, store storage.Provider, db *index.DB, logger *slog.Logger) error {
	if cfg.Remote.BaseURL == "" {
		logger.Warn("no remote configured; registry tools will report errors")
	}

	metas := meta.NewStore(filepath.Join(cfg.Mirror.Dir, meta.FileName))
	client := fetch.New(cfg.Remote.Timeout(), cfg.Remote.Token)
	registry := manifest.NewService(store, client, metas, cfg.Remote.BaseURL, logger)
	primers := cache.New(store, registry, client, metas, cfg.Mirror.Concurrency, logger)

	srv := mcpserver.New(store, primers, registry, db)

	logger.Info("MCP server starting on stdio")

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	// Keep the index in step with tool-driven installs.
	g.Go(func() error {
		err := index.Watch(runCtx, db, store, cfg.Mirror.Dir, logger, nil)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Serve MCP until the client hangs up or a signal arrives.
	g.Go(func() error {
		defer stop()
		if err := srv.Serve(runCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-runCtx.Done():
		}
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("MCP server stopped")
	return nil
}
