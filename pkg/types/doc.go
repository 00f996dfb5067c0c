// Package types provides shared type definitions for the Mecsis work-order
// service.
//
// # Order Aggregate
//
// An Order is the aggregate root of a work order. It owns its items and
// its collaborator links; clients, vehicles, collaborators and catalog
// services are referenced by id only.
//
//	order := &types.Order{
//	    OrderNumber: "OS-2026-00042",
//	    Status:      types.StatusOpen,
//	    Items: []types.OrderItem{
//	        {ServiceID: 3, Quantity: 2, UnitPrice: money.MustParse("50")},
//	    },
//	}
//
// Writes go through OrderHeader, the typed header submitted with a save.
// Child collections are replaced, not patched: the items and collaborator
// ids submitted with a save become the complete new set.
//
// # Derived Totals
//
// PartsCost and TotalAmount are always derived by the storage layer:
//
//	parts_cost   = sum(item.total_price)
//	total_amount = labor_cost + parts_cost - discount
//
// Totals are not clamped, so a discount larger than the cost yields a
// negative total.
//
// # Errors
//
// Error kinds are sentinels checked with errors.Is:
//
//	if errors.Is(err, types.ErrValidation) {
//	    // show the message, nothing was written
//	}
package types
