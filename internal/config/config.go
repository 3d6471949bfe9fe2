package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/workload-runner/internal/model"
)

const (
	FileName       = "config.json"
	HomeEnv        = "WORKLOAD_HOME"
	DefaultChannel = "workload.events"

	defaultScriptTimeout = 30 * time.Second
)

type Lifecycle struct {
	Script         string `mapstructure:"script"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RestartNotify  string `mapstructure:"restart_notify"`
	DatabaseURL    string `mapstructure:"database_url"`
	ResetDir       string `mapstructure:"reset_dir"`
}

func (l Lifecycle) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return defaultScriptTimeout
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

type Events struct {
	RedisURL string `mapstructure:"redis_url"`
	Channel  string `mapstructure:"channel"`
}

type Config struct {
	UserService               *model.Endpoint `mapstructure:"userservice"`
	ProductService            *model.Endpoint `mapstructure:"productservice"`
	OrderService              *model.Endpoint `mapstructure:"orderservice"`
	InterServiceCommunication *model.Endpoint `mapstructure:"interservicecommunication"`
	Lifecycle                 Lifecycle       `mapstructure:"lifecycle"`
	Events                    Events          `mapstructure:"events"`
}

// Error is a fatal configuration problem found at startup.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads and validates config.json. Relative lifecycle paths are
// resolved against the directory holding the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	cfg.Lifecycle.Script = resolve(dir, cfg.Lifecycle.Script)
	cfg.Lifecycle.ResetDir = resolve(dir, cfg.Lifecycle.ResetDir)
	if cfg.Events.Channel == "" {
		cfg.Events.Channel = DefaultChannel
	}
	return &cfg, nil
}

// Default mirrors the ports the services listen on out of the box.
func Default() *Config {
	return &Config{
		UserService:    &model.Endpoint{IP: "127.0.0.1", Port: 14001},
		ProductService: &model.Endpoint{IP: "127.0.0.1", Port: 15000},
		OrderService:   &model.Endpoint{IP: "127.0.0.1", Port: 14000},
		Events:         Events{Channel: DefaultChannel},
	}
}

func (c *Config) validate() error {
	// Shutdown addresses all four endpoints, so each one is required.
	required := []struct {
		name string
		ep   *model.Endpoint
	}{
		{model.User.ConfigName(), c.UserService},
		{model.Product.ConfigName(), c.ProductService},
		{model.Order.ConfigName(), c.OrderService},
		{model.InterServiceName, c.InterServiceCommunication},
	}
	for _, r := range required {
		if r.ep == nil {
			return fmt.Errorf("missing %s", r.name)
		}
		if err := checkEndpoint(r.name, r.ep); err != nil {
			return err
		}
	}
	return nil
}

func checkEndpoint(name string, ep *model.Endpoint) error {
	if ep.IP == "" {
		return fmt.Errorf("%s: ip is required", name)
	}
	if ep.Port <= 0 || ep.Port > 65535 {
		return fmt.Errorf("%s: invalid port %d", name, ep.Port)
	}
	return nil
}

func (c *Config) Endpoints() model.Endpoints {
	eps := model.Endpoints{
		Services: map[model.Service]model.Endpoint{
			model.User:    *c.UserService,
			model.Product: *c.ProductService,
			model.Order:   *c.OrderService,
		},
	}
	if c.InterServiceCommunication != nil {
		iscs := *c.InterServiceCommunication
		eps.InterService = &iscs
	}
	return eps
}

// BaseDir is where config.json and relative workload paths live: the
// executable's directory unless WORKLOAD_HOME points elsewhere.
func BaseDir() (string, error) {
	v := viper.New()
	if err := v.BindEnv("home", HomeEnv); err != nil {
		return "", err
	}
	if home := v.GetString("home"); home != "" {
		return filepath.Abs(home)
	}

	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// MissingFileError reports a workload file that cannot be found.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("workload file %s: %v", e.Path, e.Err)
}

func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// ResolveWorkload joins a relative workload argument onto base and checks
// that it names a regular file.
func ResolveWorkload(base, arg string) (string, error) {
	path := resolve(base, arg)
	info, err := os.Stat(path)
	if err != nil {
		return "", &MissingFileError{Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &MissingFileError{Path: path, Err: fmt.Errorf("is a directory: %w", fs.ErrInvalid)}
	}
	return path, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
