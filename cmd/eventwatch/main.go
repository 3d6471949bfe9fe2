package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/workload-runner/internal/config"
	"github.com/workload-runner/internal/events"
	"github.com/workload-runner/internal/logger"
	"go.uber.org/zap"
)

var (
	flagRedisURL string
	flagChannel  string
	flagRunID    string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventwatch",
	Short: "Print run events published by the workload runner",
	Long: `Subscribes to the run-event channel and prints one JSON event per line.

Without --redis-url the Events section of config.json in the base directory is used.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagRedisURL, "redis-url", "", "Redis URL, e.g. redis://localhost:6379/0")
	rootCmd.Flags().StringVar(&flagChannel, "channel", "", "Channel to follow (default "+config.DefaultChannel+")")
	rootCmd.Flags().StringVar(&flagRunID, "run-id", "", "Only print events of this run")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func run(ctx context.Context) error {
	log, err := logger.New(flagLogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	redisURL, channel, err := resolveTarget()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := events.Connect(ctx, redisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("error closing Redis connection", zap.Error(err))
		}
	}()

	enc := json.NewEncoder(os.Stdout)
	return events.NewWatcher(client, log).Subscribe(ctx, channel, nil, func(ev events.Event) {
		if flagRunID != "" && ev.RunID != flagRunID {
			return
		}
		if err := enc.Encode(ev); err != nil {
			log.Error("failed to print event", zap.Error(err))
		}
	})
}

// resolveTarget prefers flags and falls back to config.json.
func resolveTarget() (string, string, error) {
	redisURL, channel := flagRedisURL, flagChannel
	if redisURL == "" || channel == "" {
		base, err := config.BaseDir()
		if err != nil {
			return "", "", err
		}
		if cfg, err := config.Load(filepath.Join(base, config.FileName)); err == nil {
			if redisURL == "" {
				redisURL = cfg.Events.RedisURL
			}
			if channel == "" {
				channel = cfg.Events.Channel
			}
		}
	}
	if redisURL == "" {
		return "", "", fmt.Errorf("no Redis URL: pass --redis-url or set Events.redis_url in %s", config.FileName)
	}
	if channel == "" {
		channel = config.DefaultChannel
	}
	return redisURL, channel, nil
}
