package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rerankd/internal/config"
	"github.com/fyrsmithlabs/rerankd/internal/httpapi"
	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
	"github.com/fyrsmithlabs/rerankd/internal/scoring"
	"github.com/fyrsmithlabs/rerankd/internal/telemetry"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve single-record reranking over HTTP",
	Long: `Serve starts the rerankd HTTP API. The server is bound to one metric
for its lifetime; POST /api/v1/rerank reranks one record per request.

Configuration comes from the config file, overridden by environment
variables (SERVER_HTTP_PORT, RERANK_METRIC, ...).

Examples:
  # Serve with the default config file
  rerankd serve

  # Serve with an explicit config and a port override
  SERVER_HTTP_PORT=8080 rerankd serve --config /etc/rerankd/config.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "config file path (default ~/.config/rerankd/config.yaml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(serveConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	return serve(ctx, cfg)
}

// serve runs the HTTP server until ctx is cancelled, then shuts it
// down within the configured timeout.
func serve(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	log, err := newServerLogger(cfg, tel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rr, err := rerank.New(rerank.Config{
		Metric:         rerank.Metric(cfg.Rerank.Metric),
		IsometricAlpha: cfg.Rerank.IsometricAlpha,
		AttachScores:   cfg.Rerank.AttachScores,
	}, scoring.NewProvider(), rerankEvents{log: log})
	if err != nil {
		return err
	}

	srv, err := httpapi.NewServer(rr, log, &httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, tel)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "http server shutdown failed", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Observability.EnableTelemetry
	tc.Endpoint = cfg.Observability.Endpoint
	tc.Protocol = cfg.Observability.Protocol
	tc.ServiceName = cfg.Observability.ServiceName
	tc.ServiceVersion = version
	tc.Insecure = cfg.Observability.Insecure
	tc.Sampling.Rate = cfg.Observability.SamplingRate
	return tc
}

func newServerLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output.OTEL = tel.LoggerProvider() != nil

	log, err := logging.NewLogger(lc, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log.With(zap.String("version", version)), nil
}

// rerankEvents forwards the reranker's informational events to the
// server log.
type rerankEvents struct {
	log *logging.Logger
}

func (e rerankEvents) NothingToRerank(hypotheses int) {
	e.log.Debug(context.Background(), "not enough hypotheses to rerank",
		zap.Int("hypotheses", hypotheses))
}
