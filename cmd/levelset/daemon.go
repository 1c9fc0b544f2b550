package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/git6keen/Levelset-sub001/internal/audit"
	"github.com/git6keen/Levelset-sub001/internal/controlplane"
	"github.com/git6keen/Levelset-sub001/internal/observability"
	"github.com/git6keen/Levelset-sub001/internal/printer"
	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/store"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the levelset daemon",
	Long:  `Starts the levelset daemon which serves the tool, chat and health API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting levelset daemon", "version", controlplane.Version, "db", cfg.Database.Path)

	// Initialize store
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}

	// Initialize components
	metrics := observability.NewMetrics()
	pdr := audit.NewPDRWriter(cfg.Audit.Capacity)

	var toolOpts []tools.Option
	if cfg.Printer.Dir != "" {
		sink := printer.NewFileSink(afero.NewOsFs(), cfg.Printer.Dir)
		toolOpts = append(toolOpts, tools.WithPrinter(sink))
		logger.Info("printer spool configured", "path", sink.Path())
	}

	defs, handlers := tools.Builtin(s, toolOpts...)
	registry, err := tools.NewRegistry(defs)
	if err != nil {
		s.Close()
		return err
	}
	executor, err := tools.NewExecutor(registry, handlers, logger.With("component", "tools"))
	if err != nil {
		s.Close()
		return err
	}
	executor.SetRecorder(pdr)
	executor.SetObserver(metrics)
	logger.Info("tool registry initialized", "tools", registry.Count())

	rl := relay.New(relay.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		Model:       cfg.Upstream.Model,
		APIKey:      cfg.Upstream.APIKey,
		Temperature: cfg.Upstream.Temperature,
		Heartbeat:   cfg.Upstream.Heartbeat(),
	}, relay.PromptBuilder{Persona: cfg.Assistant.Persona, Catalog: registry.Catalog()}, nil, logger.With("component", "relay"))
	rl.SetObserver(metrics)

	// Create service and server
	service := controlplane.NewService(s, executor, rl, pdr)
	server := controlplane.NewServer(service, metrics, logger, cfg.Server.Listen)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}

	logger.Info("closing database connection")
	if err := s.Close(); err != nil {
		logger.Warn("database close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
