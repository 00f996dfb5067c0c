package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dshills/mecsis-mcp/internal/auth"
	"github.com/dshills/mecsis-mcp/internal/orders"
	"github.com/dshills/mecsis-mcp/internal/storage"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

type testEnv struct {
	server  *Server
	store   *storage.SQLiteStorage
	logs    *bytes.Buffer
	client  *types.Client
	vehicle *types.Vehicle
	mech    *types.Collaborator
	oil     *types.Service
}

func setupServer(t *testing.T) *testEnv {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	env := &testEnv{
		store:   store,
		logs:    &bytes.Buffer{},
		client:  &types.Client{FullName: "Maria Souza"},
		mech:    &types.Collaborator{FullName: "Joao", IsActive: true},
		oil:     &types.Service{Name: "Oil change", DefaultPrice: decimal.RequireFromString("50"), IsActive: true},
	}
	require.NoError(t, store.CreateClient(ctx, env.client))
	env.vehicle = &types.Vehicle{ClientID: env.client.ID, LicensePlate: "abc1d23"}
	require.NoError(t, store.CreateVehicle(ctx, env.vehicle))
	require.NoError(t, store.CreateCollaborator(ctx, env.mech))
	require.NoError(t, store.CreateService(ctx, env.oil))

	logger := slog.New(slog.NewJSONHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := orders.NewService(store, orders.Config{}, logger)
	authn := auth.New(store, auth.WithCost(bcrypt.MinCost))
	env.server = NewServer(svc, authn, logger)
	return env
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func (env *testEnv) submitArgs() map[string]interface{} {
	return map[string]interface{}{
		"header": map[string]interface{}{
			"client_id":  env.client.ID,
			"vehicle_id": env.vehicle.ID,
			"labor_cost": "100",
			"discount":   20,
		},
		"items": []interface{}{
			map[string]interface{}{"service_id": env.oil.ID, "quantity": 2, "unit_price": "50"},
		},
		"collaborator_ids": []interface{}{env.mech.ID},
	}
}

func TestNewServer(t *testing.T) {
	env := setupServer(t)
	assert.NotNil(t, env.server.mcp, "MCP server should be initialized")
	assert.NotNil(t, env.server.orders, "Order service should be initialized")
	assert.NotNil(t, env.server.auth, "Authenticator should be initialized")
}

func TestSubmitOrder_CreateAndUpdate(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	result, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", env.submitArgs()))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["created"])
	order := out["order"].(map[string]interface{})
	assert.Equal(t, "100", order["parts_cost"])
	assert.Equal(t, "180", order["total_amount"])
	assert.Equal(t, "open", order["status"])
	assert.Regexp(t, `^OS-\d{4}-00001$`, order["order_number"])

	id := order["id"]
	args := env.submitArgs()
	args["order_id"] = id
	args["items"] = []interface{}{}
	result, err = env.server.handleSubmitOrder(ctx, callRequest("submit_order", args))
	require.NoError(t, err)

	out = resultJSON(t, result)
	assert.Equal(t, false, out["created"])
	order = out["order"].(map[string]interface{})
	assert.Equal(t, "0", order["parts_cost"])
	assert.Equal(t, "80", order["total_amount"])
	assert.Empty(t, order["items"])
}

func TestSubmitOrder_Errors(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	t.Run("unknown argument", func(t *testing.T) {
		args := env.submitArgs()
		args["priority"] = "high"
		_, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", args))
		requireMCPCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("unknown header field", func(t *testing.T) {
		args := env.submitArgs()
		args["header"].(map[string]interface{})["mileage"] = 120000
		_, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", args))
		requireMCPCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("missing client", func(t *testing.T) {
		args := env.submitArgs()
		delete(args["header"].(map[string]interface{}), "client_id")
		_, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", args))
		requireMCPCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("missing order", func(t *testing.T) {
		args := env.submitArgs()
		args["order_id"] = 999
		_, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", args))
		requireMCPCode(t, err, ErrorCodeNotFound)
	})

	t.Run("stale version", func(t *testing.T) {
		result, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", env.submitArgs()))
		require.NoError(t, err)
		id := resultJSON(t, result)["order"].(map[string]interface{})["id"]

		args := env.submitArgs()
		args["order_id"] = id
		args["header"].(map[string]interface{})["expected_version"] = 7
		_, err = env.server.handleSubmitOrder(ctx, callRequest("submit_order", args))
		requireMCPCode(t, err, ErrorCodeConflict)
	})

	// Nothing was written by the failed creates
	summaries, err := env.store.ListOrderSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestGetOrder(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	_, err := env.server.handleGetOrder(ctx, callRequest("get_order", map[string]interface{}{}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = env.server.handleGetOrder(ctx, callRequest("get_order", map[string]interface{}{"order_id": 42}))
	requireMCPCode(t, err, ErrorCodeNotFound)

	_, err = env.server.handleSubmitOrder(ctx, callRequest("submit_order", env.submitArgs()))
	require.NoError(t, err)

	result, err := env.server.handleGetOrder(ctx, callRequest("get_order", map[string]interface{}{"order_id": 1}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, "Maria Souza", out["client_name"])
	assert.Equal(t, "ABC1D23", out["license_plate"])
	assert.Len(t, out["items"], 1)
	assert.Len(t, out["collaborators"], 1)
}

func TestListOrders(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	_, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", env.submitArgs()))
	require.NoError(t, err)

	result, err := env.server.handleListOrders(ctx, callRequest("list_orders", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resultJSON(t, result)["count"])

	result, err = env.server.handleListOrders(ctx, callRequest("list_orders", map[string]interface{}{"keyword": "souza"}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resultJSON(t, result)["count"])

	result, err = env.server.handleListOrders(ctx, callRequest("list_orders", map[string]interface{}{"keyword": "nobody"}))
	require.NoError(t, err)
	assert.Equal(t, float64(0), resultJSON(t, result)["count"])
}

func TestSetStatusDeleteDashboard(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	_, err := env.server.handleSubmitOrder(ctx, callRequest("submit_order", env.submitArgs()))
	require.NoError(t, err)

	result, err := env.server.handleDashboard(ctx, callRequest("dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resultJSON(t, result)["open_orders"])

	_, err = env.server.handleSetOrderStatus(ctx, callRequest("set_order_status", map[string]interface{}{"order_id": 1, "status": "shipped"}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	result, err = env.server.handleSetOrderStatus(ctx, callRequest("set_order_status", map[string]interface{}{"order_id": 1, "status": "completed"}))
	require.NoError(t, err)
	assert.Equal(t, "completed", resultJSON(t, result)["status"])

	result, err = env.server.handleDashboard(ctx, callRequest("dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(0), resultJSON(t, result)["open_orders"])

	result, err = env.server.handleDeleteOrder(ctx, callRequest("delete_order", map[string]interface{}{"order_id": 1}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["deleted"])

	_, err = env.server.handleDeleteOrder(ctx, callRequest("delete_order", map[string]interface{}{"order_id": 1}))
	requireMCPCode(t, err, ErrorCodeNotFound)
}

func TestListLookups(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	tests := []struct {
		args map[string]interface{}
		want int
	}{
		{map[string]interface{}{"kind": "collaborators"}, 1},
		{map[string]interface{}{"kind": "services"}, 1},
		{map[string]interface{}{"kind": "vehicles", "client_id": env.client.ID}, 1},
	}
	for _, tt := range tests {
		result, err := env.server.handleListLookups(ctx, callRequest("list_lookups", tt.args))
		require.NoError(t, err)
		assert.Len(t, resultJSON(t, result)["records"], tt.want, tt.args["kind"])
	}

	result, err := env.server.handleListLookups(ctx, callRequest("list_lookups", map[string]interface{}{"kind": "vehicles", "plate": "ABC1d23"}))
	require.NoError(t, err)
	vehicle := resultJSON(t, result)["records"].(map[string]interface{})
	assert.Equal(t, "ABC1D23", vehicle["license_plate"])

	_, err = env.server.handleListLookups(ctx, callRequest("list_lookups", map[string]interface{}{"kind": "vehicles"}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = env.server.handleListLookups(ctx, callRequest("list_lookups", map[string]interface{}{"kind": "brands"}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = env.server.handleListLookups(ctx, callRequest("list_lookups", map[string]interface{}{"kind": "vehicles", "plate": "ZZZ0000"}))
	requireMCPCode(t, err, ErrorCodeNotFound)
}

func TestAuthenticate(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	_, err := env.server.auth.CreateUser(ctx, "admin", "Admin", "s3cret")
	require.NoError(t, err)

	result, err := env.server.handleAuthenticate(ctx, callRequest("authenticate", map[string]interface{}{"username": "admin", "password": "s3cret"}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, true, out["authenticated"])
	user := out["user"].(map[string]interface{})
	assert.Equal(t, "admin", user["username"])
	assert.NotContains(t, user, "password_hash")

	_, err = env.server.handleAuthenticate(ctx, callRequest("authenticate", map[string]interface{}{"username": "admin", "password": "nope"}))
	requireMCPCode(t, err, ErrorCodeInvalidCredentials)
}

func TestInstrumentLogsRequestID(t *testing.T) {
	env := setupServer(t)
	handler := env.server.instrument("dashboard", env.server.handleDashboard)

	_, err := handler(context.Background(), callRequest("dashboard", nil))
	require.NoError(t, err)

	assert.Contains(t, env.logs.String(), `"request_id":"`)
	assert.Contains(t, env.logs.String(), `"tool":"dashboard"`)
}

func TestToMCPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{types.ErrValidation, ErrorCodeInvalidParams},
		{types.ErrNotFound, ErrorCodeNotFound},
		{types.ErrConflict, ErrorCodeConflict},
		{types.ErrTimeout, ErrorCodeTimeout},
		{types.ErrInvalidCredentials, ErrorCodeInvalidCredentials},
		{types.ErrStorage, ErrorCodeInternalError},
		{errors.New("boom"), ErrorCodeInternalError},
	}
	for _, tt := range tests {
		requireMCPCode(t, toMCPError("op", tt.err), tt.code)
	}
}
