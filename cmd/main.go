package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"Viral-Card/server/internal/assets"
	"Viral-Card/server/internal/config"
	"Viral-Card/server/internal/engine"
	"Viral-Card/server/internal/generators"
	"Viral-Card/server/internal/logger"
	"Viral-Card/server/internal/storage"
	"Viral-Card/server/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	gen, err := generators.New(cfg.AI, logr.Named("generator"))
	if err != nil {
		logr.Fatal("Failed to create generator", zap.Error(err))
	}
	if !gen.Configured() {
		logr.Warn("No API credential provided. Generation flows will report no_credential.",
			zap.String("provider", cfg.AI.Provider))
	}

	var handlerOpts []web.HandlerOption

	if cfg.Cache.Enabled {
		redisStore, err := storage.NewRedisStore(cfg.Cache.Redis)
		if err != nil {
			logr.Warn("Redis unavailable, speech cache disabled", zap.Error(err))
		} else {
			defer redisStore.Close()
			cached := generators.NewCachedSpeech(gen, redisStore, cfg.Cache.SpeechTTL, logr.Named("speech_cache"))
			gen = cached
			handlerOpts = append(handlerOpts, web.WithCacheStats(cached))
			logr.Info("Redis connected, speech cache enabled", zap.String("host", cfg.Cache.Redis.Host), zap.Int("port", cfg.Cache.Redis.Port))
		}
	}

	var recorder engine.Recorder
	if cfg.Database.Enabled {
		mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
		if err != nil {
			logr.Warn("MySQL unavailable, export ledger disabled", zap.Error(err))
		} else {
			defer mysqlStore.Close()
			ledger := storage.NewExportLedger(mysqlStore)
			recorder = ledger
			handlerOpts = append(handlerOpts, web.WithExportHistory(ledger))
			logr.Info("MySQL connected, export ledger enabled")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := web.NewEventHub(logr)
	go hub.Run(ctx)

	jobs := engine.NewJobQueue(cfg.AI.Workers, 100, logr.Named("jobs"))
	jobs.Start(ctx)

	assetBase := strings.TrimRight(cfg.AssetBaseURL(), "/")
	sessions := web.NewSessions(func(id string) *engine.CardEngine {
		opts := []engine.Option{
			engine.WithLogger(logr.Named("engine")),
			engine.WithNotifier(hub),
			engine.WithDispatcher(jobs),
			engine.WithFlowTimeout(cfg.AI.FlowTimeout),
		}
		if recorder != nil {
			opts = append(opts, engine.WithRecorder(recorder))
		}
		store := assets.NewStore(assetBase + "/api/v1/sessions/" + id + "/assets")
		return engine.NewCardEngine(id, gen, store, opts...)
	}, logr.Named("sessions"))

	handlers := web.NewHandlers(sessions, hub, logr.Named("web"), handlerOpts...)
	r := web.NewRouter(handlers, logr)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logr.Info("Server starting", zap.String("addr", server.Addr), zap.String("provider", cfg.AI.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("Server shutdown error", zap.Error(err))
	}
	jobs.Stop()
	n := sessions.CloseAll()
	cancel()

	logr.Info("Server stopped", zap.Int("sessions_closed", n))
}
