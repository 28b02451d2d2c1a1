package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the payroll HTTP API",
		Long: `Starts the HTTP API on top of a SQLite database.

On SIGINT/SIGTERM the server stops accepting connections, waits for
in-flight requests up to server.shutdown_timeout, stops the report
auditor and closes the database.`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().String("db", "", `SQLite path (overrides database.path, ":memory:" for ephemeral)`)
	cmd.Flags().StringSlice("schedule", nil, "Extra statutory schedule files")
	cmd.Flags().String("log-level", "", "Log level (overrides log.level)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.Path = db
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	registry, err := buildRegistry(cmd, cfg)
	if err != nil {
		return err
	}
	for _, s := range registry.Schedules() {
		logger.Info("statutory schedule registered",
			zap.String("version", s.Version),
			zap.Int("effective_from", s.EffectiveFrom))
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	employer := payroll.Employer{TaxID: cfg.Employer.TaxID, Name: cfg.Employer.Name}
	metrics := api.NewMetrics()
	handler := api.NewHandler(store, registry, employer, logger, metrics)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	auditor := api.NewReportAuditor(store, logger, metrics)
	auditor.Enabled = cfg.Audit.Enabled
	auditor.CheckInterval = cfg.Audit.Interval.Duration
	auditor.Start()
	defer auditor.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("database", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
