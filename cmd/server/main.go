package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"symposium/internal/config"
	"symposium/internal/contextbuilder"
	"symposium/internal/eventbus"
	"symposium/internal/httpapi"
	"symposium/internal/llmprovider"
	"symposium/internal/llmprovider/local"
	"symposium/internal/llmprovider/remote"
	"symposium/internal/modelbudget"
	"symposium/internal/orchestrator"
	"symposium/internal/store"
	"symposium/internal/summary"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"ws_port", cfg.WSPort,
		"data_dir", cfg.DataDir,
	)

	st, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("failed to open persistence store: %v", err)
	}

	if recovered, err := st.RecoverFromCrash(); err != nil {
		logger.Error("crash recovery failed", "error", err)
	} else if len(recovered) > 0 {
		logger.Warn("recovered discussions from an unclean shutdown", "count", len(recovered), "ids", recovered)
	}

	catalog, err := modelbudget.Load()
	if err != nil {
		log.Fatalf("failed to load model budget catalog: %v", err)
	}
	// 0 sizes the context builder's prompt/token caches at their default;
	// performance.maxCacheSize in the tunables document is advisory for
	// operators tuning memory, not wired to a live resize here.
	builder := contextbuilder.New(catalog, 0)

	registry := llmprovider.NewRegistry()
	registry.Register(local.New(cfg.LocalProviderHost, cfg.LocalProviderPorts))
	registry.Register(remote.New(cfg.AnthropicAPIKey, cfg.OpenAIAPIKey))

	bus := eventbus.New()
	summaries := summary.New(builder, bus)

	tunables, err := config.NewTunablesStore(cfg.DataDir + "/tunables.yaml")
	if err != nil {
		log.Fatalf("failed to load tunables: %v", err)
	}

	orch := orchestrator.New(st, bus, registry, builder, summaries, tunables, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go st.RunAutoSave(ctx, orch.ActiveDiscussions)

	// Both cacheCleanupInterval and memoryCleanupInterval (spec §6) drive the
	// context builder's cache purge, its only in-process cache surface (§4.4
	// "cache is purged periodically").
	go contextbuilder.RunCacheCleanup(ctx, func() time.Duration { return tunables.Get().Performance.CacheCleanupInterval }, builder)
	go contextbuilder.RunCacheCleanup(ctx, func() time.Duration { return tunables.Get().Performance.MemoryCleanupInterval }, builder)

	server := httpapi.NewServer(orch, st, tunables, logger)
	app := server.NewApp(cfg.CORSOrigins)

	wsServer := &http.Server{
		Addr:    ":" + cfg.WSPort,
		Handler: httpapi.NewWebSocketMux(bus, logger),
	}

	go func() {
		logger.Info("websocket event channel listening", "port", cfg.WSPort)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("websocket server stopped unexpectedly", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = wsServer.Shutdown(shutdownCtx)
		_ = app.ShutdownWithContext(shutdownCtx)
	}()

	logger.Info("rest api listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
