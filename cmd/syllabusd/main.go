// Syllabusd is the syllabus task and session extraction daemon.
//
// It loads configuration, builds the extraction pipeline with the configured
// classification oracle, and serves the HTTP API until interrupted.
//
// Configuration is read from ~/.config/syllabusd/config.yaml and
// SYLLABUSD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults (keyword fallback only)
//	syllabusd
//
//	# Use an oracle
//	SYLLABUSD_ORACLE_PROVIDER=openai SYLLABUSD_ORACLE_API_KEY=... syllabusd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"github.com/fyrsmithlabs/syllabusd/internal/extraction"
	httpserver "github.com/fyrsmithlabs/syllabusd/internal/http"
	"github.com/fyrsmithlabs/syllabusd/internal/logging"
	"github.com/fyrsmithlabs/syllabusd/internal/publish"
	"github.com/fyrsmithlabs/syllabusd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.config/syllabusd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  syllabusd           Start the syllabusd daemon\n")
			fmt.Fprintf(os.Stderr, "  syllabusd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("syllabusd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts syllabusd and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Builds the oracle completer (optional) and the pipeline
//  4. Connects the NATS publisher (optional)
//  5. Starts the HTTP server and shuts it down on cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", h.Reason))
	}

	logger.Info(ctx, "starting syllabusd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("oracle_provider", cfg.Oracle.Provider),
		zap.Bool("telemetry", tel.IsEnabled()),
		zap.Bool("publish", cfg.Publish.Enabled()))

	oracle, err := extraction.NewOracle(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}
	if oracle == nil {
		logger.Info(ctx, "no classification oracle configured, keyword fallback only")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipeline := extraction.NewPipeline(extraction.PipelineConfigFrom(cfg.Extraction), oracle,
		extraction.WithLogger(logger.Named("extraction")),
		extraction.WithTracer(tel.Tracer(extraction.InstrumentationName)),
		extraction.WithMetrics(extraction.NewMetrics(reg)),
	)

	opts := []httpserver.Option{httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(logger))}
	if cfg.Publish.Enabled() {
		pub, err := publish.Connect(cfg.Publish, logger.Named("publish"))
		if err != nil {
			return err
		}
		defer func() {
			_ = pub.Close()
		}()
		logger.Info(ctx, "connected to NATS", zap.String("url", cfg.Publish.NATSURL))
		opts = append(opts, httpserver.WithPublisher(pub))
	}

	srv, err := httpserver.NewServer(pipeline, logger.Named("http"), &httpserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		MaxBodyKB: cfg.Server.MaxBodyKB,
		Version:   version,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLogger builds the process logger from the observability section.
func newLogger(o config.ObservabilityConfig) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(o.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	lc.Level = level
	lc.Format = o.LogFormat
	lc.Fields["service"] = o.ServiceName
	lc.Fields["version"] = version
	return logging.NewLogger(lc, nil)
}
