package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/workload-runner/internal/config"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/model"
	"github.com/workload-runner/internal/stub"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	flagService  string
	flagPort     int
	flagConfig   string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stubserver",
	Short: "Run in-memory stand-ins for the user, product and order services",
	Long: `Runs in-memory stand-ins for the services a workload talks to.

With --service all (the default) one server is started per endpoint in config.json,
all sharing one store. With a single service, --port overrides the configured port.
Every server stops on POST /shutdown; the process exits once all have stopped.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagService, "service", "all", "Service to run: user, product, order, iscs or all")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "Port override when running a single service")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to config.json (default: base directory)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

type role struct {
	name     string
	service  model.Service
	endpoint model.Endpoint
}

func run(ctx context.Context) error {
	log, err := logger.New(flagLogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	roles, err := selectRoles(cfg, flagService, flagPort)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	store := stub.NewStore()

	servers := make([]*stub.Server, 0, len(roles))
	listeners := make([]net.Listener, 0, len(roles))
	for _, r := range roles {
		addr := net.JoinHostPort(r.endpoint.IP, strconv.Itoa(r.endpoint.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("listen %s for %s: %w", addr, r.name, err)
		}
		listeners = append(listeners, ln)
		servers = append(servers, stub.NewServer(r.name, addr, store, r.service, log))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var eg errgroup.Group
	for i, srv := range servers {
		ln := listeners[i]
		eg.Go(func() error { return srv.Serve(ln) })
	}

	allDone := make(chan struct{})
	go func() {
		for _, srv := range servers {
			<-srv.Done()
		}
		close(allDone)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down stub services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("stub service forced to shutdown", zap.String("service", srv.Name()), zap.Error(err))
			}
		}
	case <-allDone:
	}

	err = eg.Wait()
	log.Info("stub services exiting")
	return err
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		base, err := config.BaseDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(base, config.FileName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func selectRoles(cfg *config.Config, service string, port int) ([]role, error) {
	all := []role{
		{name: model.User.ConfigName(), service: model.User, endpoint: *cfg.UserService},
		{name: model.Product.ConfigName(), service: model.Product, endpoint: *cfg.ProductService},
		{name: model.Order.ConfigName(), service: model.Order, endpoint: *cfg.OrderService},
	}
	if cfg.InterServiceCommunication != nil {
		all = append(all, role{name: model.InterServiceName, endpoint: *cfg.InterServiceCommunication})
	}

	if service == "all" {
		if port != 0 {
			return nil, errors.New("--port needs a single --service")
		}
		return all, nil
	}

	var want string
	switch service {
	case "user":
		want = model.User.ConfigName()
	case "product":
		want = model.Product.ConfigName()
	case "order":
		want = model.Order.ConfigName()
	case "iscs":
		want = model.InterServiceName
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}

	for _, r := range all {
		if r.name != want {
			continue
		}
		if port != 0 {
			r.endpoint.Port = port
		}
		return []role{r}, nil
	}
	if port == 0 {
		return nil, fmt.Errorf("%s is not configured; pass --port", want)
	}
	return []role{{name: want, endpoint: model.Endpoint{IP: "127.0.0.1", Port: port}}}, nil
}
