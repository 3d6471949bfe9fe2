package model

import (
	"fmt"
	"net"
	"strconv"
)

// InterServiceName is the config key of the inter-service communication
// router. It is only ever addressed by the shutdown action.
const InterServiceName = "InterServiceCommunication"

type Endpoint struct {
	IP   string `json:"ip" mapstructure:"ip"`
	Port int    `json:"port" mapstructure:"port"`
}

func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(e.IP, strconv.Itoa(e.Port)))
}

// Endpoints maps each service to its host and port. It is read-only once loaded.
type Endpoints struct {
	Services     map[Service]Endpoint
	InterService *Endpoint
}

func (e Endpoints) Lookup(s Service) (Endpoint, bool) {
	ep, ok := e.Services[s]
	return ep, ok
}
