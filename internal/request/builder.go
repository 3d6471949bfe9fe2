package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/workload-runner/internal/model"
)

// Request is a fully addressed service call. Body is nil for reads and is
// only encoded when the transport sends it.
type Request struct {
	Method  string
	URL     string
	Body    json.Marshaler
	Service model.Service
	Action  model.Action
}

// MissingEndpointError is returned when no endpoint is configured for the
// command's service.
type MissingEndpointError struct {
	Service model.Service
}

func (e *MissingEndpointError) Error() string {
	return fmt.Sprintf("no endpoint configured for %s", e.Service.ConfigName())
}

// Build maps a parsed command onto method, URL and payload. It does no I/O.
func Build(cmd model.Command, endpoints model.Endpoints) (Request, error) {
	ep, ok := endpoints.Lookup(cmd.Service())
	if !ok {
		return Request{}, &MissingEndpointError{Service: cmd.Service()}
	}

	req := Request{
		Method:  http.MethodPost,
		URL:     ep.BaseURL() + "/" + cmd.Service().Path(),
		Service: cmd.Service(),
		Action:  cmd.Action(),
	}

	if cmd.Action().IsRead() {
		req.Method = http.MethodGet
		req.URL += "/" + strconv.Itoa(cmd.TargetID())
		return req, nil
	}

	body, ok := cmd.(json.Marshaler)
	if !ok {
		return Request{}, fmt.Errorf("%s %s has no payload encoding", cmd.Service(), cmd.Action())
	}
	req.Body = body
	return req, nil
}

// Create and Read build the synthetic requests used by the load generator.
func Create(ep model.Endpoint, cmd model.Command) Request {
	body, _ := cmd.(json.Marshaler)
	return Request{
		Method:  http.MethodPost,
		URL:     ep.BaseURL() + "/" + cmd.Service().Path(),
		Body:    body,
		Service: cmd.Service(),
		Action:  cmd.Action(),
	}
}

func Read(ep model.Endpoint, svc model.Service, id int) Request {
	return Request{
		Method:  http.MethodGet,
		URL:     ep.BaseURL() + "/" + svc.Path() + "/" + strconv.Itoa(id),
		Service: svc,
		Action:  model.Get,
	}
}
