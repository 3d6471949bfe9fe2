package model

import "strings"

type Service int

const (
	User Service = iota + 1
	Product
	Order
)

var services = []Service{User, Product, Order}

// Services lists every dispatchable service in a stable order.
func Services() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// ParseService matches a workload token case-insensitively.
func ParseService(token string) (Service, bool) {
	switch strings.ToUpper(token) {
	case "USER":
		return User, true
	case "PRODUCT":
		return Product, true
	case "ORDER":
		return Order, true
	}
	return 0, false
}

func (s Service) String() string {
	switch s {
	case User:
		return "USER"
	case Product:
		return "PRODUCT"
	case Order:
		return "ORDER"
	}
	return "UNKNOWN"
}

// Path is the URL path segment the service is mounted on.
func (s Service) Path() string {
	return strings.ToLower(s.String())
}

// ConfigName is the key the service is registered under in config.json.
func (s Service) ConfigName() string {
	switch s {
	case User:
		return "UserService"
	case Product:
		return "ProductService"
	case Order:
		return "OrderService"
	}
	return ""
}

type Action int

const (
	Create Action = iota + 1
	Update
	Delete
	Get
	Info
	Place
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Get:
		return "get"
	case Info:
		return "info"
	case Place:
		return "place"
	}
	return "unknown"
}

// ParseAction resolves an action token for a given service. The same word
// may be valid for one service and not another ("get" vs "info").
func ParseAction(s Service, token string) (Action, bool) {
	token = strings.ToLower(token)
	switch s {
	case User:
		switch token {
		case "create":
			return Create, true
		case "update":
			return Update, true
		case "delete":
			return Delete, true
		case "get":
			return Get, true
		}
	case Product:
		switch token {
		case "create":
			return Create, true
		case "update":
			return Update, true
		case "delete":
			return Delete, true
		case "info":
			return Info, true
		}
	case Order:
		if token == "place" {
			return Place, true
		}
	}
	return 0, false
}

// IsRead reports whether the action is served by a GET with no payload.
func (a Action) IsRead() bool {
	return a == Get || a == Info
}
