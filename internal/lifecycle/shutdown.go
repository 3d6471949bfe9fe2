package lifecycle

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/workload-runner/internal/model"
	"github.com/workload-runner/internal/transport"
	"go.uber.org/zap"
)

type target struct {
	name string
	ep   model.Endpoint
}

// HTTPShutdown asks every service, plus the inter-service router when one is
// configured, to stop via POST /shutdown. It keeps going past failures.
type HTTPShutdown struct {
	client  *transport.Client
	targets []target
	// missing names endpoints that should have been stopped but have no address.
	missing []string
	log     *zap.Logger
}

func NewHTTPShutdown(client *transport.Client, endpoints model.Endpoints, log *zap.Logger) *HTTPShutdown {
	h := &HTTPShutdown{client: client, log: log}
	for _, svc := range model.Services() {
		if ep, ok := endpoints.Lookup(svc); ok {
			h.targets = append(h.targets, target{name: svc.ConfigName(), ep: ep})
		} else {
			h.missing = append(h.missing, svc.ConfigName())
		}
	}
	if endpoints.InterService != nil {
		h.targets = append(h.targets, target{name: model.InterServiceName, ep: *endpoints.InterService})
	} else {
		h.missing = append(h.missing, model.InterServiceName)
	}
	return h
}

func (h *HTTPShutdown) StopAll(ctx context.Context) error {
	var result *multierror.Error
	for _, t := range h.targets {
		url := t.ep.BaseURL() + "/shutdown"
		h.log.Info("shutting down service", zap.String("service", t.name), zap.String("url", url))

		resp, err := h.client.Post(ctx, url)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", t.name, err))
			continue
		}
		if resp.StatusCode >= 400 {
			result = multierror.Append(result, fmt.Errorf("%s: status %d", t.name, resp.StatusCode))
		}
	}
	for _, name := range h.missing {
		result = multierror.Append(result, fmt.Errorf("%s: no endpoint configured", name))
	}
	return result.ErrorOrNil()
}
