// LED Arcade - serial minigame and session-budget server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcadeops/ledarcade/internal/api"
	"github.com/arcadeops/ledarcade/internal/config"
	"github.com/arcadeops/ledarcade/internal/game"
	"github.com/arcadeops/ledarcade/internal/hub"
	"github.com/arcadeops/ledarcade/internal/link"
	"github.com/arcadeops/ledarcade/internal/middleware"
	"github.com/arcadeops/ledarcade/internal/protocol"
	"github.com/arcadeops/ledarcade/internal/session"
	"github.com/arcadeops/ledarcade/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "http_port", cfg.HTTPPort, "baud", cfg.BaudRate)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewController(ctx, repo, logger)
	sessions.StartCleanupWorker(ctx, cfg.SessionMaxAge, cfg.SweepInterval)

	eventHub := hub.NewHub(ctx, logger)
	defer eventHub.Close()

	dispatcher := game.NewDispatcher(sessions, repo, eventHub, logger)
	defer dispatcher.Close()

	transport := link.NewTransport(logger)
	transport.Subscribe(dispatcher.HandleLine)
	transport.OnStateChange(func(connected bool) {
		eventHub.Notify(game.Notification{Type: game.NotifConnection, Connected: connected})
	})

	// First connection attempt; the reconnect worker keeps trying while the
	// board is absent.
	connectBoard(transport, cfg)
	go reconnectWorker(ctx, transport, cfg)

	// 1-second UI refresh, marshaled through the dispatcher's sequencing
	// point like every other event source.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dispatcher.Tick(now)
			}
		}
	}()

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chiMiddleware.Heartbeat("/health"))

	api.NewHandler(transport, dispatcher, sessions, repo).RegisterRoutes(r)
	r.Get("/ws/events", eventHub.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	transport.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// connectBoard opens the pinned port when one is configured, otherwise
// auto-connects to the first port that opens. A missing board is not fatal.
func connectBoard(transport *link.Transport, cfg *config.Config) {
	var err error
	if cfg.SerialPort != "" {
		err = transport.Connect(cfg.SerialPort, cfg.BaudRate)
	} else {
		_, err = transport.AutoConnect(cfg.BaudRate)
	}
	if err != nil {
		slog.Warn("No board connected yet", "error", err)
		return
	}
	if err := transport.Send(protocol.CmdInit); err != nil {
		slog.Warn("INIT after connect failed", "error", err)
	}
}

// reconnectWorker retries the connection while the board is absent. The
// transport itself never retries; the retry policy lives here.
func reconnectWorker(ctx context.Context, transport *link.Transport, cfg *config.Config) {
	ticker := time.NewTicker(cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if transport.Connected() {
				continue
			}
			connectBoard(transport, cfg)
		}
	}
}
