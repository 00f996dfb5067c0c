package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/mecsis-mcp/internal/auth"
	"github.com/dshills/mecsis-mcp/internal/orders"
)

const (
	// ServerName is the MCP server name
	ServerName = "mecsis-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies. The caller
// owns the storage behind the services and closes it after Serve returns.
type Server struct {
	mcp    *server.MCPServer
	orders *orders.Service
	auth   *auth.Authenticator
	logger *slog.Logger
}

// NewServer creates a new MCP server instance. authn may be nil, in which
// case the authenticate tool reports that it is not configured.
func NewServer(svc *orders.Service, authn *auth.Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		orders: svc,
		auth:   authn,
		logger: logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(submitOrderTool(), s.instrument("submit_order", s.handleSubmitOrder))
	s.mcp.AddTool(getOrderTool(), s.instrument("get_order", s.handleGetOrder))
	s.mcp.AddTool(listOrdersTool(), s.instrument("list_orders", s.handleListOrders))
	s.mcp.AddTool(setOrderStatusTool(), s.instrument("set_order_status", s.handleSetOrderStatus))
	s.mcp.AddTool(deleteOrderTool(), s.instrument("delete_order", s.handleDeleteOrder))
	s.mcp.AddTool(dashboardTool(), s.instrument("dashboard", s.handleDashboard))
	s.mcp.AddTool(listLookupsTool(), s.instrument("list_lookups", s.handleListLookups))
	s.mcp.AddTool(authenticateTool(), s.instrument("authenticate", s.handleAuthenticate))
}
