// Package mcp implements the Model Context Protocol (MCP) server for the
// shop's work orders.
//
// The server exposes these tools over stdio:
//   - submit_order: create or update an order with its items and collaborators
//   - get_order: fetch the full order
//   - list_orders: list orders, optionally filtered by keyword
//   - set_order_status: move an order to another status
//   - delete_order: delete an order and its children
//   - dashboard: headline counts
//   - list_lookups: collaborators, services and vehicles an order can reference
//   - authenticate: verify operator credentials
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Tool: submit_order
//
//	Request:
//	{
//	  "name": "submit_order",
//	  "arguments": {
//	    "header": {"client_id": 1, "vehicle_id": 3, "labor_cost": "100", "discount": "20"},
//	    "items": [{"service_id": 2, "quantity": 2, "unit_price": "50"}],
//	    "collaborator_ids": [4]
//	  }
//	}
//
//	Response:
//	{
//	  "created": true,
//	  "order": {
//	    "id": 1,
//	    "order_number": "OS-2026-00001",
//	    "parts_cost": "100",
//	    "total_amount": "180",
//	    ...
//	  }
//	}
//
// Pass "order_id" to update. The items and collaborator_ids of an update
// replace the stored sets, so an update without items empties the order.
// Pass header.expected_version to reject the update when someone else saved
// the order first.
//
// Arguments are decoded strictly: unknown fields are rejected with
// ErrorCodeInvalidParams.
//
// # Error Handling
//
// Errors are returned as MCPError with these codes:
//
//	-32602  Invalid params (validation failures, unknown fields)
//	-32603  Internal error (storage failures)
//	-32001  Not found
//	-32002  Conflict (stale expected_version, order number in use)
//	-32003  Timeout
//	-32004  Invalid credentials
package mcp
