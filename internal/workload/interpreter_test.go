package workload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/workload-runner/internal/events"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/model"
	"github.com/workload-runner/internal/request"
	"github.com/workload-runner/internal/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// journal records lifecycle actions and dispatched requests in call order.
type journal struct {
	entries []string
}

func (j *journal) add(e string) { j.entries = append(j.entries, e) }

func (j *journal) String() string { return strings.Join(j.entries, ",") }

func (j *journal) count(prefix string) int {
	n := 0
	for _, e := range j.entries {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fakeLifecycle struct {
	j   *journal
	err error
}

func (f *fakeLifecycle) Restart(ctx context.Context) error  { f.j.add("restart"); return f.err }
func (f *fakeLifecycle) Shutdown(ctx context.Context) error { f.j.add("shutdown"); return f.err }
func (f *fakeLifecycle) ResetDatabases(ctx context.Context) error {
	f.j.add("reset")
	return f.err
}

type fakeSender struct {
	j      *journal
	status int
	body   string
	err    error
}

func (f *fakeSender) Send(ctx context.Context, req request.Request) (*transport.Response, error) {
	f.j.add("send " + req.Method + " " + strings.TrimPrefix(req.URL, "http://127.0.0.1"))
	if f.err != nil {
		return nil, &transport.Error{Method: req.Method, URL: req.URL, Err: f.err}
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &transport.Response{StatusCode: status, Body: []byte(f.body)}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, message.(events.Event))
	return nil
}

func (p *fakePublisher) types() []string {
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var testEndpoints = model.Endpoints{
	Services: map[model.Service]model.Endpoint{
		model.User:    {IP: "127.0.0.1", Port: 1},
		model.Product: {IP: "127.0.0.1", Port: 2},
		model.Order:   {IP: "127.0.0.1", Port: 3},
	},
}

type harness struct {
	j      *journal
	lc     *fakeLifecycle
	sender *fakeSender
	out    *bytes.Buffer
	in     *Interpreter
}

func newHarness(opts ...Option) *harness {
	j := &journal{}
	h := &harness{
		j:      j,
		lc:     &fakeLifecycle{j: j},
		sender: &fakeSender{j: j},
		out:    &bytes.Buffer{},
	}
	opts = append([]Option{WithOutput(h.out)}, opts...)
	h.in = New(testEndpoints, h.sender, h.lc, zap.NewNop(), opts...)
	return h
}

func (h *harness) run(t *testing.T, workload string) Summary {
	t.Helper()
	sum, err := h.in.Run(context.Background(), strings.NewReader(workload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sum
}

func TestFreshRunResetsBeforeFirstDispatch(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "# setup\n\nUSER create 1 alice a@x.com pw\nUSER get 1\n")

	expected := "reset,send POST :1/user,send GET :1/user/1"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
	if sum.Dispatched != 2 || sum.Skipped != 2 || sum.Lines != 4 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.StartedWithRestart {
		t.Error("expected a fresh run")
	}
	if sum.FinalState != Normal {
		t.Errorf("expected normal final state, got %v", sum.FinalState)
	}
}

func TestLeadingRestartPreservesData(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "  \n# continue\nRESTART\nPRODUCT info 3\n")

	expected := "restart,send GET :2/product/3"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
	if !sum.StartedWithRestart {
		t.Error("expected StartedWithRestart")
	}
	if h.j.count("reset") != 0 {
		t.Error("expected no reset")
	}
}

func TestResetHappensExactlyOnce(t *testing.T) {
	h := newHarness()
	h.run(t, "USER get 1\nUSER get 2\nPRODUCT info 1\nORDER place 1 1 1\n")

	if h.j.count("reset") != 1 {
		t.Errorf("expected one reset, got %s", h.j)
	}
	if h.j.entries[0] != "reset" {
		t.Errorf("expected reset first, got %s", h.j)
	}
}

func TestMidStreamRestartResetsThenRestarts(t *testing.T) {
	h := newHarness()
	h.run(t, "USER get 1\nrestart\nUSER get 2\n")

	expected := "reset,send GET :1/user/1,reset,restart,send GET :1/user/2"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
}

func TestShutdownFollowedByOtherLineTerminates(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "USER get 1\nshutdown\n\n# still waiting\nUSER get 2\nrestart\nUSER get 3\n")

	expected := "reset,send GET :1/user/1,shutdown"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
	if !sum.Terminated() {
		t.Errorf("expected terminated run, got %v", sum.FinalState)
	}
	if sum.Lines != 5 {
		t.Errorf("expected reading to stop at line 5, got %d", sum.Lines)
	}
	if sum.Dispatched != 1 {
		t.Errorf("expected 1 dispatch, got %d", sum.Dispatched)
	}
}

func TestShutdownFollowedByRestartResumes(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "USER get 1\nshutdown\nrestart\nUSER get 2\n")

	expected := "reset,send GET :1/user/1,shutdown,restart,send GET :1/user/2"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
	if h.j.count("restart") != 1 {
		t.Errorf("expected exactly one restart, got %s", h.j)
	}
	if !sum.StartedWithRestart || sum.FinalState != Normal {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestShutdownAsFirstLine(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "shutdown\nUSER get 1\n")

	if h.j.String() != "reset,shutdown" {
		t.Errorf("expected reset,shutdown, got %s", h.j)
	}
	if !sum.Terminated() {
		t.Error("expected terminated run")
	}
}

func TestShutdownAtEndOfInputIsSuccess(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "restart\nshutdown\n")

	if h.j.String() != "restart,shutdown" {
		t.Errorf("unexpected journal %s", h.j)
	}
	if sum.FinalState != AwaitingRestartConfirmation {
		t.Errorf("expected awaiting restart confirmation, got %v", sum.FinalState)
	}
}

func TestMalformedLineAfterShutdownTerminates(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "restart\nshutdown\nORDER place 1\nrestart\n")

	if !sum.Terminated() {
		t.Error("expected terminated run")
	}
	if h.j.count("restart") != 1 {
		t.Errorf("expected no restart after termination, got %s", h.j)
	}
}

func TestParseErrorIsLocal(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "ORDER place 1 2\nFOO bar\nORDER place 1 2 3\n")

	expected := "reset,send POST :3/order"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
	if sum.ParseFailures != 2 {
		t.Errorf("expected 2 parse failures, got %d", sum.ParseFailures)
	}
	if !strings.Contains(h.out.String(), "Skipping line 1") {
		t.Errorf("expected skipped line report, got %q", h.out.String())
	}
}

func TestTransportFailureDoesNotStopRun(t *testing.T) {
	h := newHarness()
	h.sender.err = errors.New("connection refused")
	sum := h.run(t, "USER get 1\nUSER get 2\n")

	if sum.Dispatched != 2 || sum.DispatchFailures != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if !strings.Contains(h.out.String(), "Request failed") {
		t.Errorf("expected failure output, got %q", h.out.String())
	}
}

func TestLifecycleFailureIsOnlyCounted(t *testing.T) {
	h := newHarness()
	h.lc.err = errors.New("script missing")
	sum := h.run(t, "USER get 1\nshutdown\nrestart\nUSER get 2\n")

	if sum.LifecycleFailures != 3 {
		t.Errorf("expected 3 lifecycle failures, got %d", sum.LifecycleFailures)
	}
	if sum.Dispatched != 2 {
		t.Errorf("expected run to continue, got %+v", sum)
	}
}

func TestEmptyWorkload(t *testing.T) {
	h := newHarness()
	sum := h.run(t, "")

	if len(h.j.entries) != 0 {
		t.Errorf("expected no actions, got %s", h.j)
	}
	if sum.FinalState != AwaitingFirst {
		t.Errorf("expected awaiting first, got %v", sum.FinalState)
	}
}

func TestPrintsResults(t *testing.T) {
	h := newHarness()
	h.sender.body = `{ "id": 7, "name": "widget" }`
	h.run(t, "PRODUCT create 7 widget thing 9.99 3\n")

	out := h.out.String()
	for _, want := range []string{
		"Sending POST request to http://127.0.0.1:2/product",
		`Payload: {"command":"create","id":7,"name":"widget","description":"thing","price":9.99,"quantity":3}`,
		"Response Code: 200",
		`Response: {"id":7,"name":"widget"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestPrintsNoContent(t *testing.T) {
	h := newHarness()
	h.sender.status = http.StatusNotFound
	h.run(t, "USER get 9\n")

	if !strings.Contains(h.out.String(), "Response: No Content") {
		t.Errorf("expected No Content, got %q", h.out.String())
	}
	if strings.Contains(h.out.String(), "Payload:") {
		t.Error("expected no payload for GET")
	}
}

func TestPublishesRunEvents(t *testing.T) {
	pub := &fakePublisher{}
	h := newHarness(WithPublisher(pub, "workload.events"))
	h.run(t, "USER get 1\nshutdown\nUSER get 2\n")

	expected := []string{
		events.RunStarted,
		"lifecycle.reset",
		events.CommandDispatched,
		"lifecycle.shutdown",
		events.RunTerminated,
	}
	if strings.Join(pub.types(), ",") != strings.Join(expected, ",") {
		t.Errorf("expected %v, got %v", expected, pub.types())
	}
	for _, ev := range pub.events {
		if ev.RunID == "" {
			t.Errorf("expected run id on %s", ev.Type)
		}
	}
}

func TestRunStateIsPerRun(t *testing.T) {
	h := newHarness()
	h.run(t, "restart\nshutdown\nUSER get 1\n")
	h.j.entries = nil

	sum := h.run(t, "USER get 1\n")
	if h.j.String() != "reset,send GET :1/user/1" {
		t.Errorf("expected a fresh state machine, got %s", h.j)
	}
	if sum.Terminated() {
		t.Error("expected second run to complete normally")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadErrorIsReturned(t *testing.T) {
	h := newHarness()
	_, err := h.in.Run(context.Background(), failingReader{})
	if err == nil || !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestOverlongLineIsSkipped(t *testing.T) {
	h := newHarness()
	long := "USER create 9 " + strings.Repeat("x", maxLineSize)
	sum := h.run(t, "USER get 1\n"+long+"\nUSER get 2\n")

	if sum.ParseFailures != 1 {
		t.Errorf("expected 1 parse failure, got %d", sum.ParseFailures)
	}
	if sum.Dispatched != 2 || sum.Lines != 3 {
		t.Errorf("expected the run to continue past the long line, got %+v", sum)
	}
	if !strings.Contains(h.out.String(), "Skipping line 2: line too long") {
		t.Errorf("expected long line report, got %q", h.out.String())
	}
}

func TestOverlongFirstLineStillResets(t *testing.T) {
	h := newHarness()
	sum := h.run(t, strings.Repeat("y", maxLineSize+1)+"\nUSER get 1\n")

	expected := "reset,send GET :1/user/1"
	if h.j.String() != expected {
		t.Errorf("expected %s, got %s", expected, h.j)
	}
	if sum.ParseFailures != 1 {
		t.Errorf("expected 1 parse failure, got %d", sum.ParseFailures)
	}
}

func TestLineReaderKeepsLinesAtTheLimit(t *testing.T) {
	exact := strings.Repeat("a", 100)
	lr := newLineReader(strings.NewReader(exact+"\r\n"+exact+"b\nlast"), 100)

	line, tooLong, err := lr.next()
	if err != nil || tooLong || line != exact {
		t.Fatalf("expected line at the limit to pass, got %d bytes tooLong=%v err=%v", len(line), tooLong, err)
	}
	line, tooLong, err = lr.next()
	if err != nil || !tooLong || len(line) != tooLongPrefix {
		t.Fatalf("expected truncated oversized line, got %d bytes tooLong=%v err=%v", len(line), tooLong, err)
	}
	line, tooLong, err = lr.next()
	if err != nil || tooLong || line != "last" {
		t.Fatalf("expected unterminated last line, got %q tooLong=%v err=%v", line, tooLong, err)
	}
	if _, _, err = lr.next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestRunUsesLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness()
	ctx := logger.WithContext(context.Background(), zap.New(core))

	sum, err := h.in.Run(ctx, strings.NewReader("USER get 1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.FilterMessage("workload finished").All()
	if len(entries) != 1 {
		t.Fatalf("expected the run to log through the context logger, got %d entries", len(entries))
	}
	if entries[0].ContextMap()["run_id"] != sum.RunID {
		t.Errorf("expected run_id %s, got %v", sum.RunID, entries[0].ContextMap())
	}
}
