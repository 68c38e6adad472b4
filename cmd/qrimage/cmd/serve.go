package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/config"
	"github.com/MeKo-Tech/qrimage/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for QR image generation",
	Long: `Start an HTTP server that generates and validates QR images.

The server provides the following endpoints:
  POST /generate     - Generate a QR image (JSON body, image response)
  POST /validate     - Validate an uploaded image (multipart form)
  GET  /ws/generate  - WebSocket generation with stage progress
  GET  /health       - Health check endpoint
  GET  /metrics      - Prometheus metrics

Examples:
  qrimage serve
  qrimage serve --port 8080
  qrimage serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("jpeg-quality", 92, "JPEG quality for image responses (1-100)")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 30, "maximum requests per minute per client")
	serveCmd.Flags().Int("generations-per-day", 1000, "maximum generations per day per client")
	addSourceFlags(serveCmd)
	addLayoutFlags(serveCmd)
}

// applyServerFlags copies changed server flags into cfg.
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Server.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	if cmd.Flags().Changed("rate-limit-enabled") {
		cfg.Server.RateLimit.Enabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		cfg.Server.RateLimit.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("generations-per-day") {
		cfg.Server.RateLimit.GenerationsPerDay, _ = cmd.Flags().GetInt("generations-per-day")
	}
}

// buildServerConfig resolves the configuration and flags of cmd into a
// server configuration.
func buildServerConfig(cmd *cobra.Command) (*config.Config, server.Config, error) {
	cfg := GetConfig()
	applySourceFlags(cmd, cfg)
	applyLayoutFlags(cmd, cfg)
	applyServerFlags(cmd, cfg)
	if cmd.Flags().Changed("jpeg-quality") {
		cfg.Output.JPEGQuality, _ = cmd.Flags().GetInt("jpeg-quality")
	}
	if err := cfg.Validate(); err != nil {
		return nil, server.Config{}, err
	}

	gcfg, err := cfg.ToGeneratorConfig()
	if err != nil {
		return nil, server.Config{}, err
	}
	sc := server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		JPEGQuality: cfg.Output.JPEGQuality,
		Generator:   gcfg,
		Provider:    cfg.ToProviderConfig(),
	}
	if cfg.Server.RateLimit.Enabled {
		sc.RequestsPerMinute = cfg.Server.RateLimit.RequestsPerMinute
		sc.GenerationsPerDay = cfg.Server.RateLimit.GenerationsPerDay
	}
	return cfg, sc, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, serverConfig, err := buildServerConfig(cmd)
	if err != nil {
		return err
	}

	qrServer, err := server.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	qrServer.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting QR image server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
