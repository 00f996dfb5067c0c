package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/mecsis-mcp/internal/orders"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound           = -32001 // Order or referenced record does not exist
	ErrorCodeConflict           = -32002 // Stale version or order number in use
	ErrorCodeTimeout            = -32003 // Operation exceeded its deadline
	ErrorCodeInvalidCredentials = -32004 // Username or password rejected
)

const (
	lookupCollaborators = "collaborators"
	lookupServices      = "services"
	lookupVehicles      = "vehicles"
)

type submitOrderArgs struct {
	OrderID         *int64            `json:"order_id"`
	Header          types.OrderHeader `json:"header"`
	Items           []types.OrderItem `json:"items"`
	CollaboratorIDs []int64           `json:"collaborator_ids"`
}

type orderIDArgs struct {
	OrderID int64 `json:"order_id"`
}

type listOrdersArgs struct {
	Keyword string `json:"keyword"`
}

type setStatusArgs struct {
	OrderID int64             `json:"order_id"`
	Status  types.OrderStatus `json:"status"`
}

type listLookupsArgs struct {
	Kind     string `json:"kind"`
	ClientID int64  `json:"client_id"`
	Plate    string `json:"plate"`
}

type authenticateArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type toolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// instrument tags every call with a request id and logs its outcome
func (s *Server) instrument(name string, next toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := s.logger.With("tool", name, "request_id", uuid.NewString())
		start := time.Now()

		result, err := next(ctx, request)

		if err != nil {
			logger.Warn("tool call failed", "duration", time.Since(start), "error", err)
		} else {
			logger.Info("tool call", "duration", time.Since(start))
		}
		return result, err
	}
}

// handleSubmitOrder handles the submit_order tool invocation
func (s *Server) handleSubmitOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args submitOrderArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	id, err := s.orders.Submit(ctx, orders.SubmitRequest{
		Header:          args.Header,
		Items:           args.Items,
		CollaboratorIDs: args.CollaboratorIDs,
		ExistingID:      args.OrderID,
	})
	if err != nil {
		return nil, toMCPError("failed to save order", err)
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, toMCPError("order saved but could not be read back", err)
	}

	response := map[string]interface{}{
		"created": args.OrderID == nil,
		"order":   order,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetOrder handles the get_order tool invocation
func (s *Server) handleGetOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args orderIDArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}
	if err := requireOrderID(args.OrderID); err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, args.OrderID)
	if err != nil {
		return nil, toMCPError("failed to get order", err)
	}
	return mcp.NewToolResultText(formatJSON(order)), nil
}

// handleListOrders handles the list_orders tool invocation
func (s *Server) handleListOrders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listOrdersArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	var summaries []*types.OrderSummary
	var err error
	if strings.TrimSpace(args.Keyword) == "" {
		summaries, err = s.orders.List(ctx)
	} else {
		summaries, err = s.orders.Search(ctx, args.Keyword)
	}
	if err != nil {
		return nil, toMCPError("failed to list orders", err)
	}

	response := map[string]interface{}{
		"count":  len(summaries),
		"orders": summaries,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSetOrderStatus handles the set_order_status tool invocation
func (s *Server) handleSetOrderStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args setStatusArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}
	if err := requireOrderID(args.OrderID); err != nil {
		return nil, err
	}

	if err := s.orders.SetStatus(ctx, args.OrderID, args.Status); err != nil {
		return nil, toMCPError("failed to set status", err)
	}

	response := map[string]interface{}{
		"order_id": args.OrderID,
		"status":   args.Status,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteOrder handles the delete_order tool invocation
func (s *Server) handleDeleteOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args orderIDArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}
	if err := requireOrderID(args.OrderID); err != nil {
		return nil, err
	}

	if err := s.orders.Delete(ctx, args.OrderID); err != nil {
		return nil, toMCPError("failed to delete order", err)
	}

	response := map[string]interface{}{
		"deleted":  true,
		"order_id": args.OrderID,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDashboard handles the dashboard tool invocation
func (s *Server) handleDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := decodeArgs(request, &struct{}{}); err != nil {
		return nil, err
	}

	stats, err := s.orders.Dashboard(ctx)
	if err != nil {
		return nil, toMCPError("failed to load dashboard", err)
	}
	return mcp.NewToolResultText(formatJSON(stats)), nil
}

// handleListLookups handles the list_lookups tool invocation
func (s *Server) handleListLookups(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listLookupsArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	var records interface{}
	var err error
	switch args.Kind {
	case lookupCollaborators:
		records, err = s.orders.Collaborators(ctx)
	case lookupServices:
		records, err = s.orders.Services(ctx)
	case lookupVehicles:
		switch {
		case args.Plate != "":
			records, err = s.orders.VehicleByPlate(ctx, args.Plate)
		case args.ClientID > 0:
			records, err = s.orders.VehiclesByClient(ctx, args.ClientID)
		default:
			return nil, newMCPError(ErrorCodeInvalidParams, "client_id or plate is required for vehicles", map[string]interface{}{
				"param":  "client_id",
				"reason": "missing",
			})
		}
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
			"param":   "kind",
			"value":   args.Kind,
			"allowed": []string{lookupCollaborators, lookupServices, lookupVehicles},
		})
	}
	if err != nil {
		return nil, toMCPError("failed to list "+args.Kind, err)
	}

	response := map[string]interface{}{
		"kind":    args.Kind,
		"records": records,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAuthenticate handles the authenticate tool invocation
func (s *Server) handleAuthenticate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args authenticateArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}
	if s.auth == nil {
		return nil, newMCPError(ErrorCodeInternalError, "authentication is not configured", nil)
	}

	user, err := s.auth.Authenticate(ctx, args.Username, args.Password)
	if err != nil {
		return nil, toMCPError("authentication failed", err)
	}

	response := map[string]interface{}{
		"authenticated": true,
		"user":          user,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// decodeArgs decodes the tool arguments into dst. Unknown fields are
// rejected.
func decodeArgs(request mcp.CallToolRequest, dst interface{}) error {
	raw, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	if bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return newMCPError(ErrorCodeInvalidParams, "invalid arguments", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return nil
}

func requireOrderID(id int64) error {
	if id <= 0 {
		return newMCPError(ErrorCodeInvalidParams, "order_id parameter is required", map[string]interface{}{
			"param":  "order_id",
			"reason": "missing or not positive",
		})
	}
	return nil
}

// toMCPError maps an error kind to its MCP error code
func toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrValidation):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, types.ErrConflict):
		code = ErrorCodeConflict
	case errors.Is(err, types.ErrTimeout):
		code = ErrorCodeTimeout
	case errors.Is(err, types.ErrInvalidCredentials):
		code = ErrorCodeInvalidCredentials
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	if data, ok := e.Data.(map[string]interface{}); ok {
		if detail, ok := data["error"].(string); ok {
			return fmt.Sprintf("MCP error %d: %s: %s", e.Code, e.Message, detail)
		}
	}
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(out)
}
