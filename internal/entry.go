// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/liflux/liflux/internal/api"
	"github.com/liflux/liflux/internal/mcpserver"
	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/search"
	"github.com/liflux/liflux/internal/sse"
	"github.com/liflux/liflux/internal/store"
	"github.com/liflux/liflux/internal/store/document"
	"github.com/liflux/liflux/internal/store/kv"
	"github.com/liflux/liflux/internal/watch"
)

// buildStore constructs the configured store backend. The returned cleanup
// closes backend resources and is never nil.
func buildStore(ctx context.Context, cfg *Config, m *media.Store, logger *slog.Logger) (store.Store, func(), error) {
	engine := search.New(cfg.Search.MaxResults)

	switch cfg.Store.Backend {
	case BackendKV:
		s, err := kv.Open(cfg.Store.SQLite.Path, m, engine, cfg.Store.Policy(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open kv store: %w", err)
		}
		if err := s.Reconcile(ctx); err != nil {
			logger.Warn("kv reconcile failed", slog.String("error", err.Error()))
		}
		return s, func() { _ = s.Close() }, nil

	case BackendDocument:
		return document.New(cfg.Store.Root, m, engine, cfg.Store.Policy(), logger), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("store_root", cfg.Store.Root),
		slog.String("delete_policy", string(cfg.Store.Policy())),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data root exists.
	if err := os.MkdirAll(cfg.Store.Root, 0o755); err != nil {
		return fmt.Errorf("create data root: %w", err)
	}

	m := media.New(cfg.Store.Root)

	st, closeStore, err := buildStore(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Build API router.
	apiRouter := api.NewRouter(st, m, broker, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Stored media files (unauthenticated, filenames are unguessable).
	mh := api.NewMediaHandler(m)
	r.Get("/media/{filename}", mh.ServeFile)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// The document backend's files can change underneath us (sync tools,
	// editors); surface those as SSE events. The kv backend has no
	// external writers.
	if cfg.Store.Backend == BackendDocument {
		notesDir := filepath.Join(cfg.Store.Root, document.NotesDirName)
		g.Go(func() error {
			if err := watch.Watch(gCtx, notesDir, logger, broker.PublishNoteEvent); err != nil {
				logger.Warn("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

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

// RunMCP starts the MCP stdio server against the configured store.
// Logs go to stderr so stdout stays clean for the protocol stream.
func RunMCP(ctx context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Store.Root, 0o755); err != nil {
		return fmt.Errorf("create data root: %w", err)
	}

	m := media.New(cfg.Store.Root)
	st, closeStore, err := buildStore(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.Info("Starting MCP server on stdio", slog.String("store_backend", cfg.Store.Backend))
	return mcpserver.New(st, m).ServeStdio()
}
