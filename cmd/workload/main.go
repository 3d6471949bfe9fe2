package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/workload-runner/internal/config"
	"github.com/workload-runner/internal/events"
	"github.com/workload-runner/internal/lifecycle"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/transport"
	"github.com/workload-runner/internal/workload"
	"go.uber.org/zap"
)

var (
	flagLogLevel string
	flagTimeout  time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workload <file>",
	Short: "Replay a workload file against the user, product and order services",
	Long: `Replays a workload file line by line against the services named in config.json.

The file path is resolved against the base directory (the directory holding the
executable, or $WORKLOAD_HOME). config.json is read from the same directory.`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "Per-request timeout")
}

func run(ctx context.Context, arg string) error {
	log, err := logger.New(flagLogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	base, err := config.BaseDir()
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	cfg, err := config.Load(filepath.Join(base, config.FileName))
	if err != nil {
		return err
	}
	path, err := config.ResolveWorkload(base, arg)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return &config.MissingFileError{Path: path, Err: err}
	}
	defer f.Close()

	// The interpreter logs through the logger carried by ctx.
	ctx = logger.WithContext(ctx, log)

	endpoints := cfg.Endpoints()
	client := transport.NewClient(flagTimeout)

	lc, closeLifecycle, err := lifecycle.FromConfig(cfg.Lifecycle, endpoints, client, log)
	if err != nil {
		return fmt.Errorf("failed to set up lifecycle: %w", err)
	}
	defer func() {
		if err := closeLifecycle(); err != nil {
			log.Error("failed to close lifecycle resources", zap.Error(err))
		}
	}()

	opts := []workload.Option{workload.WithOutput(os.Stdout)}
	if cfg.Events.RedisURL != "" {
		redisClient, err := events.Connect(ctx, cfg.Events.RedisURL)
		if err != nil {
			log.Warn("run events disabled", zap.String("redis_url", cfg.Events.RedisURL), zap.Error(err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("error closing Redis connection", zap.Error(err))
				}
			}()
			opts = append(opts, workload.WithPublisher(events.NewRedisPublisher(redisClient), cfg.Events.Channel))
		}
	}

	log.Info("starting workload", zap.String("file", path))
	summary, err := workload.New(endpoints, client, lc, log, opts...).Run(ctx, f)
	if err != nil {
		return err
	}
	if summary.Terminated() {
		log.Info("workload terminated after shutdown", zap.String("run_id", summary.RunID))
	}
	return nil
}
