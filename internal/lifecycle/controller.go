package lifecycle

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/workload-runner/internal/config"
	"github.com/workload-runner/internal/model"
	"github.com/workload-runner/internal/transport"
	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context, action Action) error
}

type Stopper interface {
	StopAll(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context) error
}

type Resetter interface {
	Reset(ctx context.Context) error
}

// Controller carries out lifecycle actions. It never decides when they run;
// any of its parts may be nil, in which case that step is skipped.
type Controller struct {
	Script   Runner
	Stopper  Stopper
	Notifier Notifier
	Resetter Resetter

	log *zap.Logger
}

func NewController(log *zap.Logger) *Controller {
	return &Controller{log: log}
}

// FromConfig wires the adapters named in the Lifecycle section. The returned
// close func releases the database handle, if one was opened.
func FromConfig(cfg config.Lifecycle, endpoints model.Endpoints, client *transport.Client, log *zap.Logger) (*Controller, func() error, error) {
	c := NewController(log)
	c.Stopper = NewHTTPShutdown(client, endpoints, log)

	if cfg.Script != "" {
		c.Script = NewScript(cfg.Script, cfg.Timeout(), log)
	}
	if cfg.RestartNotify != "" {
		c.Notifier = NewRestartNotifier(cfg.RestartNotify)
	}

	closeFn := func() error { return nil }
	if cfg.DatabaseURL != "" {
		reset, err := OpenSQLReset(cfg.DatabaseURL, cfg.ResetDir)
		if err != nil {
			return nil, nil, err
		}
		c.Resetter = reset
		closeFn = reset.Close
	}
	return c, closeFn, nil
}

// Shutdown stops every known service, then runs the script's shutdown mode.
func (c *Controller) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if c.Stopper != nil {
		if err := c.Stopper.StopAll(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Script != nil {
		if err := c.Script.Run(ctx, ActionShutdown); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return c.finish(ActionShutdown, result)
}

// Restart brings the services back up without touching their data.
func (c *Controller) Restart(ctx context.Context) error {
	var result *multierror.Error
	if c.Script != nil {
		if err := c.Script.Run(ctx, ActionRestart); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Notifier != nil {
		if err := c.Notifier.Notify(ctx); err != nil {
			c.log.Warn("order service not running, restart message not delivered", zap.Error(err))
			result = multierror.Append(result, err)
		}
	}
	return c.finish(ActionRestart, result)
}

// ResetDatabases prefers a direct SQL reset and falls back to the script.
func (c *Controller) ResetDatabases(ctx context.Context) error {
	var err error
	switch {
	case c.Resetter != nil:
		err = c.Resetter.Reset(ctx)
	case c.Script != nil:
		err = c.Script.Run(ctx, ActionReset)
	default:
		c.log.Info("no database reset configured")
		return nil
	}

	var result *multierror.Error
	if err != nil {
		result = multierror.Append(result, err)
	}
	return c.finish(ActionReset, result)
}

func (c *Controller) finish(action Action, result *multierror.Error) error {
	if err := result.ErrorOrNil(); err != nil {
		return &ActionError{Action: action, Err: err}
	}
	c.log.Info("lifecycle action completed", zap.String("action", string(action)))
	return nil
}
