package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/workload-runner/internal/model"
	"github.com/workload-runner/internal/request"
	"github.com/workload-runner/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// successCodes are the application-level replies a healthy service gives to
// synthetic traffic. Anything else, or no reply, is a failure.
var successCodes = map[int]bool{200: true, 400: true, 401: true, 404: true, 409: true}

func IsSuccess(statusCode int) bool {
	return successCodes[statusCode]
}

type Sender interface {
	Send(ctx context.Context, req request.Request) (*transport.Response, error)
}

// Recorder receives per-attempt outcomes, typically Prometheus metrics.
type Recorder interface {
	RecordAttempt(service string, success bool)
	RecordSkipped(service string)
	WorkerStarted()
	WorkerStopped()
}

type Config struct {
	Duration  time.Duration
	Workers   int
	Endpoints model.Endpoints
	// Seed fixes the per-worker random streams. Zero picks one at random.
	Seed uint64
}

func (c Config) validate() error {
	if c.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	for _, svc := range model.Services() {
		if _, ok := c.Endpoints.Lookup(svc); !ok {
			return &request.MissingEndpointError{Service: svc}
		}
	}
	return nil
}

type counters struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	skipped   atomic.Int64
}

type Generator struct {
	cfg      Config
	sender   Sender
	recorder Recorder
	log      *zap.Logger

	// Last id issued per service. Ids start at 1.
	issued map[model.Service]*atomic.Int64
	stats  map[model.Service]*counters
}

type Option func(*Generator)

func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

func New(cfg Config, sender Sender, log *zap.Logger, opts ...Option) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid load generator config: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}

	g := &Generator{
		cfg:      cfg,
		sender:   sender,
		recorder: nopRecorder{},
		log:      log,
		issued:   make(map[model.Service]*atomic.Int64),
		stats:    make(map[model.Service]*counters),
	}
	for _, svc := range model.Services() {
		g.issued[svc] = new(atomic.Int64)
		g.stats[svc] = new(counters)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Run drives the workers until the configured duration elapses or ctx is
// cancelled. Requests already in flight at the deadline are allowed to finish.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	g.log.Info("starting load test",
		zap.Duration("duration", g.cfg.Duration),
		zap.Int("workers", g.cfg.Workers),
		zap.Uint64("seed", g.cfg.Seed),
	)

	start := time.Now()
	deadline := start.Add(g.cfg.Duration)

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < g.cfg.Workers; i++ {
		rng := rand.New(rand.NewPCG(g.cfg.Seed, uint64(i)))
		eg.Go(func() error {
			g.recorder.WorkerStarted()
			defer g.recorder.WorkerStopped()

			for time.Now().Before(deadline) {
				if err := ctx.Err(); err != nil {
					return err
				}
				g.iterate(ctx, rng)
			}
			return nil
		})
	}

	err := eg.Wait()
	report := g.report(time.Since(start))
	g.log.Info("load test finished",
		zap.Int64("attempts", report.Attempts()),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, err
}

func (g *Generator) iterate(ctx context.Context, rng *rand.Rand) {
	services := model.Services()
	svc := services[rng.IntN(len(services))]
	ep, _ := g.cfg.Endpoints.Lookup(svc)

	var req request.Request
	if rng.IntN(2) == 0 {
		cmd, ok := g.create(svc, rng)
		if !ok {
			g.stats[svc].skipped.Add(1)
			g.recorder.RecordSkipped(svc.ConfigName())
			return
		}
		req = request.Create(ep, cmd)
	} else {
		req = request.Read(ep, svc, g.pick(svc, rng))
	}

	resp, err := g.sender.Send(ctx, req)
	ok := err == nil && IsSuccess(resp.StatusCode)

	st := g.stats[svc]
	st.attempts.Add(1)
	if ok {
		st.successes.Add(1)
	} else {
		st.failures.Add(1)
	}
	g.recorder.RecordAttempt(svc.ConfigName(), ok)
}

// create builds the next synthetic create. Orders wait until at least one
// user and one product id has been issued.
func (g *Generator) create(svc model.Service, rng *rand.Rand) (model.Command, bool) {
	switch svc {
	case model.User:
		id := int(g.issued[model.User].Add(1))
		return model.UserCreate{
			ID:       id,
			Username: fmt.Sprintf("user%d", id),
			Email:    fmt.Sprintf("user%d@test.com", id),
			Password: "password",
		}, true
	case model.Product:
		id := int(g.issued[model.Product].Add(1))
		return model.ProductCreate{
			ID:          id,
			Name:        fmt.Sprintf("product%d", id),
			Description: "desc",
			Price:       10.0,
			Quantity:    50,
		}, true
	case model.Order:
		if g.issued[model.User].Load() == 0 || g.issued[model.Product].Load() == 0 {
			return nil, false
		}
		return model.OrderPlace{
			ID:        int(g.issued[model.Order].Add(1)),
			ProductID: g.pick(model.Product, rng),
			UserID:    g.pick(model.User, rng),
			Quantity:  1,
		}, true
	}
	return nil, false
}

// pick returns a random id in [1, last issued], or 1 when none was issued.
func (g *Generator) pick(svc model.Service, rng *rand.Rand) int {
	n := g.issued[svc].Load()
	if n < 1 {
		return 1
	}
	return 1 + int(rng.Int64N(n))
}

func (g *Generator) report(elapsed time.Duration) Report {
	r := Report{Elapsed: elapsed}
	for _, svc := range model.Services() {
		st := g.stats[svc]
		r.Services = append(r.Services, ServiceResult{
			Name:      svc.ConfigName(),
			Attempts:  st.attempts.Load(),
			Successes: st.successes.Load(),
			Failures:  st.failures.Load(),
			Skipped:   st.skipped.Load(),
		})
	}
	return r
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(string, bool) {}
func (nopRecorder) RecordSkipped(string)       {}
func (nopRecorder) WorkerStarted()             {}
func (nopRecorder) WorkerStopped()             {}
