package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/workload-runner/internal/config"
	"github.com/workload-runner/internal/loadgen"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/metrics"
	"github.com/workload-runner/internal/transport"
	"go.uber.org/zap"
)

var (
	flagDuration    time.Duration
	flagWorkers     int
	flagTimeout     time.Duration
	flagSeed        uint64
	flagMetricsAddr string
	flagConfig      string
	flagLogLevel    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "loadgen",
	Short:         "Spray random create and read requests at the services for a fixed duration",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().DurationVar(&flagDuration, "duration", 5*time.Second, "How long to generate load")
	rootCmd.Flags().IntVar(&flagWorkers, "workers", 100, "Number of concurrent workers")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", time.Second, "Per-request timeout")
	rootCmd.Flags().Uint64Var(&flagSeed, "seed", 0, "Random seed (0 = random)")
	rootCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to config.json (default: base directory)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func run(ctx context.Context) error {
	log, err := logger.New(flagLogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if flagMetricsAddr != "" {
		srv := metricsServer(flagMetricsAddr, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("metrics server forced to shutdown", zap.Error(err))
			}
		}()
	}

	client := transport.NewClient(flagTimeout).WithObserver(m)
	gen, err := loadgen.New(loadgen.Config{
		Duration:  flagDuration,
		Workers:   flagWorkers,
		Endpoints: cfg.Endpoints(),
		Seed:      flagSeed,
	}, client, log, loadgen.WithRecorder(m))
	if err != nil {
		return err
	}

	fmt.Printf("Starting load test for %v with %d workers...\n", flagDuration, flagWorkers)
	report, err := gen.Run(ctx)
	report.Print(os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig falls back to the default service ports when no config file
// exists at the default location.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	path := flagConfig
	if path == "" {
		base, err := config.BaseDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve base directory: %w", err)
		}
		path = filepath.Join(base, config.FileName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			log.Info("no config file found, using default endpoints", zap.String("path", path))
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func metricsServer(addr string, m *metrics.Metrics, log *zap.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
