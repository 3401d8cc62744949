package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"gwi.com/ai-stylist/internal/api"
	"gwi.com/ai-stylist/internal/config"
	"gwi.com/ai-stylist/internal/core"
	"gwi.com/ai-stylist/internal/registry"
	"gwi.com/ai-stylist/internal/store"
)

// CLI is the command tree of the stylist server binary.
type CLI struct {
	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the HTTP API (default)"`
	Models ModelsCmd `cmd:"" help:"Inspect or change the global AI model"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("ai-stylist"),
		kong.Description("AI Stylist backend: model selection, chat replies and session history"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	// The models commands only touch the registry and the selection store.
	if strings.HasPrefix(kctx.Command(), "models") {
		config.LoadConfig(config.StorageFields...)
	} else {
		config.LoadConfig()
	}
	logger := newLogger(config.AppConfig.LogLevel)
	slog.SetDefault(logger)

	if err := kctx.Run(logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      l,
		TimeFormat: time.DateTime,
		AddSource:  l == slog.LevelDebug,
	}))
}

// openKV returns the configured selection store and a function that closes it.
func openKV(db *store.SQLiteStore, logger *slog.Logger) (core.KVStore, func(), error) {
	if config.AppConfig.KVBackend == "sqlite" {
		return db.SettingsKV(), func() {}, nil
	}
	kv, err := store.OpenBadgerKV(store.BadgerConfig{
		Path:       config.AppConfig.BadgerPath,
		SyncWrites: true,
		Logger:     logger.With("component", "badger"),
	})
	if err != nil {
		return nil, nil, err
	}
	return kv, func() {
		if err := kv.Close(); err != nil {
			logger.Warn("error closing badger store", "error", err)
		}
	}, nil
}

// deps are the long-lived pieces every command needs.
type deps struct {
	db     *store.SQLiteStore
	models *core.ModelManager
	close  func()
}

func setup(logger *slog.Logger) (*deps, error) {
	reg, err := registry.Load(config.AppConfig.ModelRegistryFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load model registry: %w", err)
	}

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	kv, closeKV, err := openKV(dbStore, logger)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}

	return &deps{
		db:     dbStore,
		models: core.NewModelManager(reg, kv, logger),
		close: func() {
			closeKV()
			dbStore.Close()
		},
	}, nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(logger *slog.Logger) error {
	d, err := setup(logger)
	if err != nil {
		return err
	}
	defer d.close()

	llmService, err := core.NewLLMService(context.Background(), core.LLMServiceConfig{
		GeminiAPIKey:        config.AppConfig.GeminiAPIKey,
		PollinationsAPIKey:  config.AppConfig.PollinationsAPIKey,
		PollinationsBaseURL: config.AppConfig.PollinationsBaseURL,
	}, logger)
	if err != nil {
		return err
	}
	defer llmService.Close()

	chatService := core.NewChatService(d.db, d.models, llmService, config.AppConfig.SummaryTimeout, logger)
	router := api.NewRouter(api.NewAPIHandler(chatService, logger))

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server, press Ctrl+C to quit", "addr", serverAddr, "model", d.models.GetSelection(context.Background()).ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited gracefully")
	return nil
}
