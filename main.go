package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zproposal/internal/api"
	"zproposal/internal/auth"
	"zproposal/internal/config"
	"zproposal/internal/credentials"
	"zproposal/internal/documents"
	"zproposal/internal/ingest"
	"zproposal/internal/llm"
	"zproposal/internal/logging"
	"zproposal/internal/store"
	"zproposal/internal/watcher"
	"zproposal/internal/workspace"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	output, logCloser := logging.NewOutput(logging.OutputConfig{
		DebugEnabled: cfg.Logging.DebugEnabled,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
	}, os.Stdout)
	defer logCloser.Close()
	logger := logging.NewLogger("main", logging.ParseLevel(cfg.Logging.Level), output)
	logger.Info("Starting ZProposal v%s...", version)

	// Initialize storage with migrations
	var storage store.Storage
	sqlite, err := store.NewSQLiteStorage(cfg.Storage.Path, cfg.QuotaBytes())
	if err != nil {
		logger.Error("Failed to open %s, falling back to in-memory storage: %v", cfg.Storage.Path, err)
		storage = store.NewMemoryStorage(cfg.QuotaBytes())
	} else {
		defer sqlite.Close()
		storage = sqlite
		logger.Info("Database initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load documents
	docs := documents.NewRepository(storage, logger.Named("documents"))
	if err := docs.Load(ctx); err != nil {
		logger.Error("Failed to load documents: %v", err)
		os.Exit(1)
	}

	client := llm.NewAnthropicClient(cfg.Generation.BaseURL, cfg.Generation.Model, cfg.Generation.APIVersion, logger.Named("llm"))
	reader := ingest.NewReader(ingest.NewGuardrails(cfg.MaxUploadBytes()), &http.Client{Timeout: 30 * time.Second}, logger.Named("ingest"))
	ws := workspace.New(docs, credentials.NewStore(storage), client, reader, logger.Named("workspace"))

	users, err := auth.StaticUsers()
	if err != nil {
		logger.Error("Failed to prepare users: %v", err)
		os.Exit(1)
	}
	session := auth.NewSession(storage, users, logger.Named("auth"))

	// Initialize API server
	apiServer := api.NewServer(ws, session, reader, logger.Named("api"))
	defer apiServer.Close()
	if meter, ok := storage.(store.Meter); ok {
		apiServer.SetStorageMeter(meter, cfg.QuotaBytes())
	}
	eventLog := logger.Named("events")
	ws.SetNotifier(workspace.NotifierFunc(func(e workspace.Event) {
		eventLog.Debug("%s", e.Type)
		apiServer.Notify(e)
	}))
	logger.Info("API server initialized")

	// Initialize inbox watcher
	if cfg.Inbox.Enabled {
		w, err := watcher.NewWatcher(cfg.Inbox.Path, &watcherUploaderAdapter{workspace: ws}, reader, logger.Named("watcher"))
		if err != nil {
			logger.Warn("Inbox watcher disabled: %v", err)
		} else if err := w.Start(ctx); err != nil {
			logger.Warn("Inbox watcher disabled: %v", err)
		} else {
			logger.Info("Watching inbox: %s", cfg.Inbox.Path)
		}
	}

	// Create HTTP server. Generation requests can take minutes, so there is
	// no write timeout.
	addr := cfg.Addr()
	server := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown incomplete: %v", err)
	}
	logger.Info("ZProposal stopped")
}
