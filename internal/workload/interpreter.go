package workload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/workload-runner/internal/command"
	"github.com/workload-runner/internal/events"
	"github.com/workload-runner/internal/lifecycle"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/model"
	"github.com/workload-runner/internal/request"
	"github.com/workload-runner/internal/transport"
	"go.uber.org/zap"
)

const maxLineSize = 1 << 20

// Lifecycle is the capability the interpreter needs to drive the services'
// running state. Failures are logged by the interpreter and never change
// its state.
type Lifecycle interface {
	Restart(ctx context.Context) error
	Shutdown(ctx context.Context) error
	ResetDatabases(ctx context.Context) error
}

type Sender interface {
	Send(ctx context.Context, req request.Request) (*transport.Response, error)
}

type Interpreter struct {
	endpoints model.Endpoints
	sender    Sender
	lifecycle Lifecycle
	log       *zap.Logger

	out       io.Writer
	publisher events.Publisher
	channel   string
}

type Option func(*Interpreter)

// WithOutput sets where command results are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) { in.out = w }
}

func WithPublisher(p events.Publisher, channel string) Option {
	return func(in *Interpreter) {
		in.publisher = p
		in.channel = channel
	}
}

func New(endpoints model.Endpoints, sender Sender, lc Lifecycle, log *zap.Logger, opts ...Option) *Interpreter {
	in := &Interpreter{
		endpoints: endpoints,
		sender:    sender,
		lifecycle: lc,
		log:       log,
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run consumes the workload source line by line. Each command completes
// before the next line is read. The only error returned is a failure to read
// the source; everything else is reported and counted in the Summary. A
// logger carried by ctx takes precedence over the one given to New.
func (in *Interpreter) Run(ctx context.Context, src io.Reader) (Summary, error) {
	log := in.log
	if l, ok := logger.Lookup(ctx); ok {
		log = l
	}

	r := &run{
		Interpreter: in,
		summary:     Summary{RunID: uuid.New().String()},
	}
	r.log = log.With(zap.String("run_id", r.summary.RunID))
	r.publish(ctx, events.Event{Type: events.RunStarted})

	lines := newLineReader(src, maxLineSize)
	lineNo := 0
	var readErr error
	for r.state.State != Terminated {
		raw, tooLong, err := lines.next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		lineNo++
		r.summary.Lines++

		var line command.Line
		if tooLong {
			err = command.LineTooLong(raw, maxLineSize)
		} else {
			line, err = command.Parse(raw)
		}
		if err == nil && !line.Substantive() {
			r.summary.Skipped++
			continue
		}
		r.step(ctx, lineNo, raw, line, err)
	}

	r.summary.FinalState = r.state.State
	r.summary.StartedWithRestart = r.state.StartedWithRestart

	if readErr != nil {
		return r.summary, fmt.Errorf("read workload: %w", readErr)
	}

	if r.state.State != Terminated {
		r.publish(ctx, events.Event{Type: events.RunFinished, State: r.state.State.String()})
	}
	r.log.Info("workload finished",
		zap.Int("lines", r.summary.Lines),
		zap.Int("dispatched", r.summary.Dispatched),
		zap.Int("parse_failures", r.summary.ParseFailures),
		zap.Int("dispatch_failures", r.summary.DispatchFailures),
		zap.Int("lifecycle_failures", r.summary.LifecycleFailures),
		zap.String("state", r.state.State.String()),
	)
	return r.summary, nil
}

// run holds the state of a single Run call.
type run struct {
	*Interpreter
	log     *zap.Logger
	state   RunState
	summary Summary
}

func (r *run) step(ctx context.Context, lineNo int, raw string, line command.Line, perr error) {
	switch r.state.State {
	case AwaitingFirst:
		r.state.FirstCommandSeen = true
		if perr == nil && line.IsRestart() {
			r.state.StartedWithRestart = true
			r.log.Info("restart detected, preserving data")
			r.invoke(ctx, lifecycle.ActionRestart, r.lifecycle.Restart)
			r.transition(Normal)
			return
		}
		r.invoke(ctx, lifecycle.ActionReset, r.lifecycle.ResetDatabases)
		r.transition(Normal)
		r.handle(ctx, lineNo, raw, line, perr)

	case Normal:
		r.handle(ctx, lineNo, raw, line, perr)

	case AwaitingRestartConfirmation:
		r.state.AwaitingRestartConfirmation = false
		if perr == nil && line.IsRestart() {
			r.state.StartedWithRestart = true
			r.log.Info("restart after shutdown, preserving data")
			r.invoke(ctx, lifecycle.ActionRestart, r.lifecycle.Restart)
			r.transition(Normal)
			return
		}
		r.log.Warn("shutdown not followed by restart, abandoning run",
			zap.Int("line_no", lineNo), zap.String("line", raw))
		r.transition(Terminated)
		r.publish(ctx, events.Event{Type: events.RunTerminated, LineNo: lineNo, Line: raw})
	}
}

func (r *run) handle(ctx context.Context, lineNo int, raw string, line command.Line, perr error) {
	if perr != nil {
		r.summary.ParseFailures++
		r.log.Warn("skipping malformed line", zap.Int("line_no", lineNo), zap.String("line", raw), zap.Error(perr))
		fmt.Fprintf(r.out, "\nSkipping line %d: %v\n", lineNo, perr)
		return
	}

	switch {
	case line.IsShutdown():
		fmt.Fprintln(r.out, "\nShutdown detected. Stopping all services...")
		r.invoke(ctx, lifecycle.ActionShutdown, r.lifecycle.Shutdown)
		r.state.AwaitingRestartConfirmation = true
		r.transition(AwaitingRestartConfirmation)
	case line.IsRestart():
		r.invoke(ctx, lifecycle.ActionReset, r.lifecycle.ResetDatabases)
		r.invoke(ctx, lifecycle.ActionRestart, r.lifecycle.Restart)
	default:
		r.dispatch(ctx, lineNo, raw, line.Command)
	}
}

func (r *run) dispatch(ctx context.Context, lineNo int, raw string, cmd model.Command) {
	log := r.log.With(zap.Int("line_no", lineNo), zap.String("line", raw))

	req, err := request.Build(cmd, r.endpoints)
	if err != nil {
		r.summary.DispatchFailures++
		log.Error("failed to build request", zap.Error(err))
		fmt.Fprintf(r.out, "\nRequest failed: %v\n", err)
		return
	}

	r.summary.Dispatched++
	fmt.Fprintf(r.out, "\nSending %s request to %s\n", req.Method, req.URL)
	if req.Body != nil {
		if data, err := json.Marshal(req.Body); err == nil {
			fmt.Fprintf(r.out, "Payload: %s\n", data)
		}
	}

	resp, err := r.sender.Send(ctx, req)
	if err != nil {
		r.summary.DispatchFailures++
		log.Warn("request failed", zap.String("url", req.URL), zap.Error(err))
		fmt.Fprintf(r.out, "Request failed: %v\n", err)
		r.publish(ctx, events.Event{Type: events.CommandDispatched, LineNo: lineNo, Line: raw, Error: err.Error()})
		return
	}

	fmt.Fprintf(r.out, "Response Code: %d\n", resp.StatusCode)
	fmt.Fprintf(r.out, "Response: %s\n", formatBody(resp.Body))
	log.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", resp.RequestID),
		zap.Duration("latency", resp.Latency),
	)
	r.publish(ctx, events.Event{Type: events.CommandDispatched, LineNo: lineNo, Line: raw, Status: resp.StatusCode})
}

func (r *run) invoke(ctx context.Context, action lifecycle.Action, fn func(context.Context) error) {
	ev := events.Event{Type: events.LifecyclePrefix + string(action)}
	if err := fn(ctx); err != nil {
		r.summary.LifecycleFailures++
		r.log.Warn("lifecycle action failed", zap.String("action", string(action)), zap.Error(err))
		ev.Error = err.Error()
	}
	r.publish(ctx, ev)
}

func (r *run) transition(to State) {
	if r.state.State == to {
		return
	}
	r.log.Debug("state transition", zap.String("from", r.state.State.String()), zap.String("to", to.String()))
	r.state.State = to
}

func (r *run) publish(ctx context.Context, ev events.Event) {
	if r.publisher == nil {
		return
	}
	ev.RunID = r.summary.RunID
	ev.At = time.Now()
	if ev.State == "" {
		ev.State = r.state.State.String()
	}
	if err := r.publisher.Publish(ctx, r.channel, ev); err != nil {
		r.log.Warn("failed to publish run event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func formatBody(body []byte) string {
	if len(body) == 0 {
		return "No Content"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil {
		return buf.String()
	}
	return string(body)
}
