package checker

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"slices"
	"testing"

	"github.com/moamenhredeen/apicheck/internal/models"
	"github.com/moamenhredeen/apicheck/internal/parser"
	"github.com/pb33f/libopenapi/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankURL = "https://api.example.com/v1"

func newChecker(t *testing.T, file string, opts ...Option) *Checker {
	t.Helper()
	doc, err := parser.ParseFile(file)
	require.NoError(t, err)
	return New(doc, append([]Option{WithSeed(1)}, opts...)...)
}

func captureLogs(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func keys(data any) []string {
	obj, ok := data.(*orderedmap.Map[string, any])
	if !ok {
		return nil
	}
	return slices.Collect(obj.KeysFromOldest())
}

func errorMessage(t *testing.T, v models.Verdict) string {
	t.Helper()
	data, ok := v.Data.(map[string]any)
	require.True(t, ok, "expected error mapping, got %T", v.Data)
	msg, ok := data["error"].(string)
	require.True(t, ok)
	return msg
}

func TestCheckAccountBalance(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	for i := 0; i < 20; i++ {
		v := c.Check(models.Request{
			APIName:  "Bank_API",
			URL:      bankURL + "/accounts/123",
			Method:   "GET",
			Endpoint: "/accounts/{id}",
			Params:   map[string]any{"id": "123"},
		})

		require.Equal(t, 200, v.StatusCode)
		obj, ok := v.Data.(*orderedmap.Map[string, any])
		require.True(t, ok)
		assert.Equal(t, []string{"balance", "currency"}, slices.Collect(obj.KeysFromOldest()))

		balance, _ := obj.Get("balance")
		f, ok := balance.(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 100.0)

		currency, _ := obj.Get("currency")
		assert.Contains(t, []any{"USD", "EUR"}, currency)
	}
}

func TestCheckValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  models.Request
		want string
	}{
		{
			name: "missing path parameter",
			req:  models.Request{URL: bankURL + "/accounts/123", Method: "GET", Endpoint: "/accounts/{id}"},
			want: "Missing path parameter: id",
		},
		{
			name: "method not declared",
			req:  models.Request{URL: bankURL + "/accounts/123", Method: "POST", Endpoint: "/accounts/{id}", Params: map[string]any{"id": "123"}},
			want: "Method POST not found for endpoint /accounts/{id}",
		},
		{
			name: "unknown endpoint",
			req:  models.Request{URL: bankURL + "/loans", Method: "GET", Endpoint: "/loans"},
			want: "Endpoint /loans not found in OpenAPI spec",
		},
		{
			name: "missing required parameter",
			req:  models.Request{URL: bankURL + "/accounts", Method: "POST", Endpoint: "/accounts"},
			want: "Missing required parameter: customer_id",
		},
		{
			name: "unexpected parameters are sorted",
			req:  models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts", Params: map[string]any{"zeta": 1, "alpha": 2}},
			want: "Unexpected parameter(s): alpha, zeta",
		},
		{
			name: "invalid integer",
			req:  models.Request{URL: bankURL + "/accounts?limit=ten", Method: "GET", Endpoint: "/accounts"},
			want: "Invalid type for parameter 'limit'. Expected integer.",
		},
		{
			name: "invalid enum value",
			req:  models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts", Params: map[string]any{"status": "frozen"}},
			want: `Invalid value for parameter 'status'. Must be one of: ["active","closed"]`,
		},
		{
			name: "pattern mismatch",
			req:  models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts", Params: map[string]any{"iban": "de123"}},
			want: "Invalid format for parameter 'iban'. Must match pattern: [A-Z]{2}[0-9]+",
		},
		{
			name: "relative url",
			req:  models.Request{URL: "/v1/accounts", Method: "GET", Endpoint: "/accounts"},
			want: "Invalid URL: /v1/accounts",
		},
		{
			name: "outside base path",
			req:  models.Request{URL: "https://api.example.com/v2/accounts", Method: "GET", Endpoint: "/accounts"},
			want: "Invalid URL: https://api.example.com/v2/accounts",
		},
	}

	c := newChecker(t, "../../testdata/bank.json")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Check(tt.req)
			assert.Equal(t, 400, v.StatusCode)
			assert.Equal(t, tt.want, errorMessage(t, v))
		})
	}
}

func TestCheckQueryOverridesParams(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	v := c.Check(models.Request{
		URL:      bankURL + "/accounts?status=active&status=frozen",
		Method:   "get",
		Endpoint: "/accounts",
		Params:   map[string]any{"status": "frozen"},
	})
	assert.Equal(t, 200, v.StatusCode)
}

func TestCheckTypedParams(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	valid := []map[string]any{
		{"limit": 10},
		{"limit": "25"},
		{"limit": float64(3)},
		{"min_balance": "12.50"},
		{"min_balance": 7},
		{"verbose": "TRUE"},
		{"verbose": false},
		{"iban": "DE89370400440532013000"},
		{"status": "closed"},
	}
	for _, params := range valid {
		v := c.Check(models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts", Params: params})
		assert.Equal(t, 200, v.StatusCode, "%v", params)
	}

	invalid := []map[string]any{
		{"limit": 2.5},
		{"limit": "-1"},
		{"min_balance": "1.2.3"},
		{"verbose": "yes"},
		{"status": 1},
	}
	for _, params := range invalid {
		v := c.Check(models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts", Params: params})
		assert.Equal(t, 400, v.StatusCode, "%v", params)
	}
}

func TestCheckCollectAll(t *testing.T) {
	req := models.Request{
		URL:      bankURL + "/accounts/9/transactions",
		Method:   "GET",
		Endpoint: "/accounts/{id}/transactions",
		Params:   map[string]any{"id": "9", "extra": true},
	}

	v := newChecker(t, "../../testdata/bank.json").Check(req)
	assert.Equal(t, "Unexpected parameter(s): extra", errorMessage(t, v))

	v = newChecker(t, "../../testdata/bank.json", WithCollectAll(true)).Check(req)
	assert.Equal(t, 400, v.StatusCode)
	assert.Equal(t, "Unexpected parameter(s): extra; Missing required parameter: page", errorMessage(t, v))
}

func TestCheckPathItemParameters(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	v := c.Check(models.Request{
		URL:      bankURL + "/accounts/1",
		Method:   "GET",
		Endpoint: "/accounts/{id}",
		Params:   map[string]any{"id": "1", "X-Trace": "abc"},
	})
	assert.Equal(t, 200, v.StatusCode)
}

func TestCheckResponseSelection(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	t.Run("first 2xx key", func(t *testing.T) {
		v := c.Check(models.Request{URL: bankURL + "/accounts", Method: "POST", Endpoint: "/accounts", Params: map[string]any{"customer_id": "c1"}})
		assert.Equal(t, 201, v.StatusCode)
		obj, ok := v.Data.(*orderedmap.Map[string, any])
		require.True(t, ok)
		assert.Equal(t, 5, obj.Len())
	})

	t.Run("no content", func(t *testing.T) {
		v := c.Check(models.Request{URL: bankURL + "/accounts/1", Method: "DELETE", Endpoint: "/accounts/{id}", Params: map[string]any{"id": "1"}})
		assert.Equal(t, 204, v.StatusCode)
		assert.Nil(t, v.Data)
	})

	t.Run("referenced response", func(t *testing.T) {
		v := c.Check(models.Request{URL: bankURL + "/accounts/1/transactions?page=2", Method: "GET", Endpoint: "/accounts/{id}/transactions", Params: map[string]any{"id": "1"}})
		assert.Equal(t, 200, v.StatusCode)
		obj, ok := v.Data.(*orderedmap.Map[string, any])
		require.True(t, ok)
		items, _ := obj.Get("items")
		assert.NotEmpty(t, items)
	})

	t.Run("range key and vendor json", func(t *testing.T) {
		v := c.Check(models.Request{URL: bankURL + "/exchange_rates", Method: "GET", Endpoint: "/exchange_rates"})
		assert.Equal(t, 200, v.StatusCode)
		obj, ok := v.Data.(*orderedmap.Map[string, any])
		require.True(t, ok)
		assert.Equal(t, []string{"base", "as_of"}, slices.Collect(obj.KeysFromOldest()))
	})

	t.Run("response without content", func(t *testing.T) {
		v := c.Check(models.Request{URL: bankURL + "/health", Method: "GET", Endpoint: "/health"})
		assert.Equal(t, 200, v.StatusCode)
		data, err := json.Marshal(v.Data)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	})

	t.Run("non json content", func(t *testing.T) {
		v := c.Check(models.Request{URL: bankURL + "/reports", Method: "GET", Endpoint: "/reports"})
		assert.Equal(t, 200, v.StatusCode)
		data, err := json.Marshal(v.Data)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	})
}

func TestCheckArrayOfRefs(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	v := c.Check(models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts"})
	require.Equal(t, 200, v.StatusCode)
	items, ok := v.Data.([]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(items), 1)
	assert.LessOrEqual(t, len(items), 3)
}

func TestCheckSelfReferencingSchemaTerminates(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")

	v := c.Check(models.Request{URL: bankURL + "/branches", Method: "GET", Endpoint: "/branches"})
	assert.Equal(t, 200, v.StatusCode)
	_, err := json.Marshal(v.Data)
	assert.NoError(t, err)
}

func TestCheckMissingSchemaIsInternalError(t *testing.T) {
	logger, logs := captureLogs(slog.LevelDebug)
	c := newChecker(t, "../../testdata/bank.json", WithLogger(logger))

	v := c.Check(models.Request{URL: bankURL + "/legacy", Method: "GET", Endpoint: "/legacy"})
	assert.Equal(t, 500, v.StatusCode)
	assert.Equal(t, InternalErrorMessage, errorMessage(t, v))
	assert.Contains(t, logs.String(), "components/schemas/Missing")
}

func TestCheckWithoutBasePath(t *testing.T) {
	logger, logs := captureLogs(slog.LevelWarn)
	c := newChecker(t, "../../testdata/nobase.json", WithLogger(logger))

	v := c.Check(models.Request{
		URL:      "https://weather.example.org/anything/forecast/paris?days=3",
		Method:   "GET",
		Endpoint: "/forecast/{city}",
		Params:   map[string]any{"city": "paris"},
	})
	assert.Equal(t, 200, v.StatusCode)
	assert.Contains(t, logs.String(), "base URL check skipped")
}

func TestCheckSwaggerParameters(t *testing.T) {
	c := newChecker(t, "../../testdata/petstore-swagger.yaml")
	url := "https://petstore.swagger.io/api/pets"

	v := c.Check(models.Request{URL: url, Method: "GET", Endpoint: "/pets", Params: map[string]any{"limit": "5", "species": "cat"}})
	assert.Equal(t, 200, v.StatusCode)
	data, err := json.Marshal(v.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data), "response schemas are not read for Swagger 2")

	v = c.Check(models.Request{URL: url, Method: "GET", Endpoint: "/pets", Params: map[string]any{"species": "bird"}})
	assert.Equal(t, 400, v.StatusCode)
	assert.Equal(t, `Invalid value for parameter 'species'. Must be one of: ["cat","dog"]`, errorMessage(t, v))
}

func TestCheckIsRepeatable(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")
	req := models.Request{URL: bankURL + "/accounts/1/transactions?page=1", Method: "GET", Endpoint: "/accounts/{id}/transactions", Params: map[string]any{"id": "1"}}

	first := c.Check(req)
	for i := 0; i < 10; i++ {
		v := c.Check(req)
		assert.Equal(t, first.StatusCode, v.StatusCode)
		assert.Equal(t, keys(first.Data), keys(v.Data))
	}
}

func TestCheckRecoversPanics(t *testing.T) {
	c := newChecker(t, "../../testdata/bank.json")
	c.patterns = nil // writing to a nil map panics

	v := c.Check(models.Request{URL: bankURL + "/accounts", Method: "GET", Endpoint: "/accounts", Params: map[string]any{"iban": "DE1"}})
	assert.Equal(t, 500, v.StatusCode)
	assert.Equal(t, InternalErrorMessage, errorMessage(t, v))
}
