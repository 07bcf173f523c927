package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/server"
	"github.com/MeKo-Tech/petalscan/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server for extraction, templates and stored invoices.

Endpoints:
  GET  /health            health check
  GET  /metrics           Prometheus metrics
  GET  /templates         list templates
  POST /templates         import a calibration CSV (name, file)
  GET  /templates/{id}    one template
  POST /invoices/extract  extract an uploaded document (file, template)
  GET  /ws/extract        extraction with streamed progress
  POST /invoices          save reviewed pages (file, template, pages)
  GET  /invoices          list stored pages (limit)
  GET  /invoices/{id}     one stored page

Examples:
  petalscan serve
  petalscan serve --host 0.0.0.0 --port 3000 --strategy auto`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origin")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Duration("timeout", 2*time.Minute, "per-request extraction timeout")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	addPipelineFlags(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := pipelineConfig(cmd)
	if err != nil {
		return err
	}
	overrideString(cmd, "host", &cfg.Server.Host)
	overrideInt(cmd, "port", &cfg.Server.Port)
	overrideString(cmd, "cors-origin", &cfg.Server.CORSOrigin)
	overrideInt(cmd, "max-upload-size", &cfg.Server.MaxUploadMB)
	if cmd.Flags().Changed("timeout") {
		cfg.Server.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetDuration("shutdown-timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	files, err := openFileStore(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("store close error")
		}
	}()

	srv := server.New(server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		Timeout:     cfg.Server.Timeout,
		Version:     version.Version,
	}, server.Deps{
		Extractor: p,
		Templates: reg,
		Invoices:  st,
		Files:     files,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// Covers extraction plus the upload; websocket writes set their own deadlines.
		WriteTimeout: cfg.Server.Timeout + 30*time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("engine", cfg.Pipeline.Engine).
			Str("strategy", cfg.Pipeline.Strategy).
			Msg("starting petalscan server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	}

	logger.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("graceful shutdown completed")
	return nil
}
