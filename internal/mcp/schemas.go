package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

func statusNames() []string {
	names := make([]string, len(types.AllStatuses))
	for i, st := range types.AllStatuses {
		names[i] = string(st)
	}
	return names
}

func paymentNames() []string {
	names := make([]string, len(types.AllPaymentMethods))
	for i, m := range types.AllPaymentMethods {
		names[i] = string(m)
	}
	return names
}

func orderIDProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"minimum":     1,
	}
}

// money values are accepted as JSON numbers or decimal strings
func moneyProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        []string{"number", "string"},
		"description": description,
	}
}

// submitOrderTool returns the tool definition for submit_order
func submitOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "submit_order",
		Description: "Create a work order, or update one when order_id is given. Items and collaborator_ids replace the stored sets.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": orderIDProperty("Existing order to update. Omit to create a new order."),
				"header": map[string]interface{}{
					"type":        "object",
					"description": "Order header",
					"properties": map[string]interface{}{
						"order_number": map[string]interface{}{
							"type":        "string",
							"description": "Omit to keep (or generate) the number, empty string to generate a fresh one",
						},
						"client_id":      orderIDProperty("Client the order is for"),
						"vehicle_id":     orderIDProperty("Vehicle being serviced; must belong to the client"),
						"responsible_id": orderIDProperty("Collaborator responsible for the order"),
						"status": map[string]interface{}{
							"type":    "string",
							"enum":    statusNames(),
							"default": string(types.StatusOpen),
						},
						"summary": map[string]interface{}{
							"type":      "string",
							"maxLength": 255,
						},
						"description": map[string]interface{}{
							"type": "string",
						},
						"payment_method": map[string]interface{}{
							"type":    "string",
							"enum":    paymentNames(),
							"default": string(types.PaymentCash),
						},
						"labor_cost": moneyProperty("Labor charge, >= 0"),
						"discount":   moneyProperty("Order discount, >= 0"),
						"expected_delivery": map[string]interface{}{
							"type":        "string",
							"description": "Delivery date as YYYY-MM-DD",
						},
						"expected_version": map[string]interface{}{
							"type":        "integer",
							"description": "Version the update is based on; a stale version is rejected. 0 skips the check.",
							"minimum":     0,
						},
					},
					"required": []string{"client_id", "vehicle_id"},
				},
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Complete list of billable items",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"service_id":  orderIDProperty("Catalog service"),
							"description": map[string]interface{}{"type": "string"},
							"quantity": map[string]interface{}{
								"type":        "integer",
								"description": "Values below 1 are stored as 1",
								"minimum":     0,
							},
							"unit_price": moneyProperty("Price per unit, >= 0"),
							"discount":   moneyProperty("Line discount, >= 0"),
							"notes":      map[string]interface{}{"type": "string"},
						},
						"required": []string{"service_id"},
					},
				},
				"collaborator_ids": map[string]interface{}{
					"type":        "array",
					"description": "Complete set of active collaborators assigned to the order",
					"items":       map[string]interface{}{"type": "integer"},
				},
			},
			Required: []string{"header"},
		},
	}
}

// getOrderTool returns the tool definition for get_order
func getOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_order",
		Description: "Fetch a work order with its items, collaborators and totals",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": orderIDProperty("Order id"),
			},
			Required: []string{"order_id"},
		},
	}
}

// listOrdersTool returns the tool definition for list_orders
func listOrdersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_orders",
		Description: "List work orders, most recently updated first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"keyword": map[string]interface{}{
					"type":        "string",
					"description": "Filter by order number, client name or license plate",
				},
			},
		},
	}
}

// setOrderStatusTool returns the tool definition for set_order_status
func setOrderStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_order_status",
		Description: "Move a work order to another status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": orderIDProperty("Order id"),
				"status": map[string]interface{}{
					"type": "string",
					"enum": statusNames(),
				},
			},
			Required: []string{"order_id", "status"},
		},
	}
}

// deleteOrderTool returns the tool definition for delete_order
func deleteOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_order",
		Description: "Delete a work order together with its items and collaborator links",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": orderIDProperty("Order id"),
			},
			Required: []string{"order_id"},
		},
	}
}

// dashboardTool returns the tool definition for dashboard
func dashboardTool() mcp.Tool {
	return mcp.Tool{
		Name:        "dashboard",
		Description: "Counts of clients, active collaborators, vehicles and open orders",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// listLookupsTool returns the tool definition for list_lookups
func listLookupsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_lookups",
		Description: "List records an order can reference: active collaborators, active services, or vehicles of a client or by plate",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type": "string",
					"enum": []string{lookupCollaborators, lookupServices, lookupVehicles},
				},
				"client_id": orderIDProperty("Client whose vehicles to list (kind=vehicles)"),
				"plate": map[string]interface{}{
					"type":        "string",
					"description": "License plate to look up (kind=vehicles)",
				},
			},
			Required: []string{"kind"},
		},
	}
}

// authenticateTool returns the tool definition for authenticate
func authenticateTool() mcp.Tool {
	return mcp.Tool{
		Name:        "authenticate",
		Description: "Verify operator credentials",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": map[string]interface{}{"type": "string"},
				"password": map[string]interface{}{"type": "string"},
			},
			Required: []string{"username", "password"},
		},
	}
}
