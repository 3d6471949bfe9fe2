package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workload-runner/internal/command"
	"github.com/workload-runner/internal/model"
)

var testEndpoints = model.Endpoints{
	Services: map[model.Service]model.Endpoint{
		model.User:    {IP: "127.0.0.1", Port: 14001},
		model.Product: {IP: "127.0.0.1", Port: 15000},
		model.Order:   {IP: "127.0.0.1", Port: 14000},
	},
}

func buildLine(t *testing.T, raw string) Request {
	t.Helper()
	line, err := command.Parse(raw)
	require.NoError(t, err)
	req, err := Build(line.Command, testEndpoints)
	require.NoError(t, err)
	return req
}

func decode(t *testing.T, req Request) map[string]json.RawMessage {
	t.Helper()
	require.NotNil(t, req.Body)
	data, err := json.Marshal(req.Body)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBuildProductCreate(t *testing.T) {
	req := buildLine(t, "PRODUCT create 7 widget thing 9.99 3")

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://127.0.0.1:15000/product", req.URL)

	body := decode(t, req)
	assert.Len(t, body, 6)
	assert.JSONEq(t, `"create"`, string(body["command"]))
	assert.JSONEq(t, `7`, string(body["id"]))
	assert.JSONEq(t, `"widget"`, string(body["name"]))
	assert.JSONEq(t, `"thing"`, string(body["description"]))
	assert.Equal(t, `9.99`, string(body["price"]))
	assert.Equal(t, `3`, string(body["quantity"]))
}

func TestBuildUserGet(t *testing.T) {
	req := buildLine(t, "USER get 5")

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://127.0.0.1:14001/user/5", req.URL)
	assert.Nil(t, req.Body)
}

func TestBuildProductInfo(t *testing.T) {
	req := buildLine(t, "PRODUCT info 11")

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://127.0.0.1:15000/product/11", req.URL)
	assert.Nil(t, req.Body)
}

func TestBuildProductUpdateKeepsNumericTypes(t *testing.T) {
	req := buildLine(t, "PRODUCT update 4 price:12.5 quantity:2")

	body := decode(t, req)
	assert.Len(t, body, 4)
	assert.JSONEq(t, `"update"`, string(body["command"]))
	assert.Equal(t, `4`, string(body["id"]))
	assert.Equal(t, `12.5`, string(body["price"]))
	assert.Equal(t, `2`, string(body["quantity"]))
}

func TestBuildUserUpdateLeavesValuesAsStrings(t *testing.T) {
	req := buildLine(t, "USER update 4 password:123")

	body := decode(t, req)
	assert.Equal(t, `"123"`, string(body["password"]))
}

func TestBuildOrderPlace(t *testing.T) {
	req := buildLine(t, "ORDER place 3 1 2")

	assert.Equal(t, "http://127.0.0.1:14000/order", req.URL)
	body := decode(t, req)
	assert.JSONEq(t, `"place order"`, string(body["command"]))
	assert.Equal(t, `3`, string(body["product_id"]))
	assert.Equal(t, `1`, string(body["user_id"]))
	assert.Equal(t, `2`, string(body["quantity"]))
}

func TestBuildMissingEndpoint(t *testing.T) {
	_, err := Build(model.OrderPlace{ProductID: 1, UserID: 1, Quantity: 1}, model.Endpoints{})

	var missing *MissingEndpointError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, model.Order, missing.Service)
}

func TestBuildIsDeterministic(t *testing.T) {
	a := buildLine(t, "USER create 1 alice a@x.com pw")
	b := buildLine(t, "USER create 1 alice a@x.com pw")

	da, _ := json.Marshal(a.Body)
	db, _ := json.Marshal(b.Body)
	assert.Equal(t, string(da), string(db))
	assert.Equal(t, a.URL, b.URL)
}

func TestReadAndCreateHelpers(t *testing.T) {
	ep := testEndpoints.Services[model.Order]

	read := Read(ep, model.Order, 12)
	assert.Equal(t, http.MethodGet, read.Method)
	assert.Equal(t, "http://127.0.0.1:14000/order/12", read.URL)

	create := Create(ep, model.OrderPlace{ProductID: 1, UserID: 2, Quantity: 1})
	assert.Equal(t, http.MethodPost, create.Method)
	assert.NotNil(t, create.Body)
}

func BenchmarkBuild(b *testing.B) {
	line, err := command.Parse("PRODUCT create 7 widget thing 9.99 3")
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, err := Build(line.Command, testEndpoints)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := json.Marshal(req.Body); err != nil {
			b.Fatal(err)
		}
	}
}
