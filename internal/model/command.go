package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Command is one parsed service command. Each (service, action) pair has its
// own concrete type; payload encoding happens in MarshalJSON, at the wire.
type Command interface {
	Service() Service
	Action() Action
	// TargetID is the id appended to the URL for read actions.
	TargetID() int
}

// Field is a key:value pair from an update line, in source order.
type Field struct {
	Key   string
	Value string
}

type UserCreate struct {
	ID       int
	Username string
	Email    string
	Password string
}

func (UserCreate) Service() Service { return User }
func (UserCreate) Action() Action   { return Create }
func (c UserCreate) TargetID() int  { return c.ID }

func (c UserCreate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command  string `json:"command"`
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{"create", c.ID, c.Username, c.Email, c.Password})
}

// UserUpdate values are always sent as strings.
type UserUpdate struct {
	ID     int
	Fields []Field
}

func (UserUpdate) Service() Service { return User }
func (UserUpdate) Action() Action   { return Update }
func (c UserUpdate) TargetID() int  { return c.ID }

func (c UserUpdate) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(c.Fields)+2)
	for _, f := range c.Fields {
		body[f.Key] = f.Value
	}
	body["command"] = "update"
	body["id"] = c.ID
	return json.Marshal(body)
}

// UserDelete may carry the stale username/email/password tokens some
// workloads still include; the receiver ignores them.
type UserDelete struct {
	ID       int
	Username string
	Email    string
	Password string
}

func (UserDelete) Service() Service { return User }
func (UserDelete) Action() Action   { return Delete }
func (c UserDelete) TargetID() int  { return c.ID }

func (c UserDelete) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command  string `json:"command"`
		ID       int    `json:"id"`
		Username string `json:"username,omitempty"`
		Email    string `json:"email,omitempty"`
		Password string `json:"password,omitempty"`
	}{"delete", c.ID, c.Username, c.Email, c.Password})
}

type UserGet struct {
	ID int
}

func (UserGet) Service() Service { return User }
func (UserGet) Action() Action   { return Get }
func (c UserGet) TargetID() int  { return c.ID }

type ProductCreate struct {
	ID          int
	Name        string
	Description string
	Price       float64
	Quantity    int
}

func (ProductCreate) Service() Service { return Product }
func (ProductCreate) Action() Action   { return Create }
func (c ProductCreate) TargetID() int  { return c.ID }

func (c ProductCreate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command     string      `json:"command"`
		ID          int         `json:"id"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Price       json.Number `json:"price"`
		Quantity    int         `json:"quantity"`
	}{"create", c.ID, c.Name, c.Description, floatNumber(c.Price), c.Quantity})
}

// ProductUpdate keeps price and quantity typed; any other key stays a string.
type ProductUpdate struct {
	ID       int
	Price    *float64
	Quantity *int
	Fields   []Field
}

func (ProductUpdate) Service() Service { return Product }
func (ProductUpdate) Action() Action   { return Update }
func (c ProductUpdate) TargetID() int  { return c.ID }

func (c ProductUpdate) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(c.Fields)+4)
	for _, f := range c.Fields {
		body[f.Key] = f.Value
	}
	if c.Price != nil {
		body["price"] = floatNumber(*c.Price)
	}
	if c.Quantity != nil {
		body["quantity"] = *c.Quantity
	}
	body["command"] = "update"
	body["id"] = c.ID
	return json.Marshal(body)
}

type ProductDelete struct {
	ID int
}

func (ProductDelete) Service() Service { return Product }
func (ProductDelete) Action() Action   { return Delete }
func (c ProductDelete) TargetID() int  { return c.ID }

func (c ProductDelete) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		ID      int    `json:"id"`
	}{"delete", c.ID})
}

type ProductInfo struct {
	ID int
}

func (ProductInfo) Service() Service { return Product }
func (ProductInfo) Action() Action   { return Info }
func (c ProductInfo) TargetID() int  { return c.ID }

// OrderPlace.ID is only set by the load generator; workload lines let the
// order service assign one.
type OrderPlace struct {
	ID        int
	ProductID int
	UserID    int
	Quantity  int
}

func (OrderPlace) Service() Service { return Order }
func (OrderPlace) Action() Action   { return Place }
func (c OrderPlace) TargetID() int  { return c.ID }

func (c OrderPlace) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Command   string `json:"command"`
		ID        int    `json:"id,omitempty"`
		ProductID int    `json:"product_id"`
		UserID    int    `json:"user_id"`
		Quantity  int    `json:"quantity"`
	}{"place order", c.ID, c.ProductID, c.UserID, c.Quantity})
}

// floatNumber keeps a decimal point on whole prices so receivers that
// distinguish float from int columns see a float.
func floatNumber(f float64) json.Number {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}
