package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/workload-runner/internal/request"
)

const requestIDHeader = "X-Request-ID"

type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
	Latency    time.Duration
}

// Error is a network-level failure: the request never produced a status.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Observer is notified after every round trip, successful or not.
type Observer interface {
	ObserveRequest(req request.Request, statusCode int, latency time.Duration, err error)
}

type Client struct {
	http     *http.Client
	observer Observer
}

func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// WithObserver returns a copy of the client reporting to o.
func (c *Client) WithObserver(o Observer) *Client {
	cp := *c
	cp.observer = o
	return &cp
}

// Send performs one request synchronously. Any HTTP status is a response;
// only failures to obtain one are returned as *Error.
func (c *Client) Send(ctx context.Context, req request.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	latency := time.Since(start)

	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.observer.ObserveRequest(req, status, latency, err)
	}
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	resp.Latency = latency
	return resp, nil
}

func (c *Client) do(ctx context.Context, req request.Request) (*Response, error) {
	var reqBody io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reqBody)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	httpReq.Header.Set(requestIDHeader, requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, RequestID: requestID}, nil
}

// Post sends an empty-bodied POST, used by lifecycle endpoints such as /shutdown.
func (c *Client) Post(ctx context.Context, url string) (*Response, error) {
	return c.Send(ctx, request.Request{Method: http.MethodPost, URL: url})
}
