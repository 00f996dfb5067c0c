package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dshills/mecsis-mcp/internal/money"
	"github.com/dshills/mecsis-mcp/internal/numbering"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

// Order operations

// CreateOrder inserts the header, its items and collaborator links, and
// the derived totals in one transaction. A header without an order number
// gets the next generated number.
func (s *SQLiteStorage) CreateOrder(ctx context.Context, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) (int64, error) {
	var orderID int64
	err := s.inTx(ctx, "create order", func(q querier) error {
		id, err := s.createOrderWithQuerier(ctx, q, header, items, collaboratorIDs)
		orderID = id
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("order created", "order_id", orderID, "items", len(items), "collaborators", len(collaboratorIDs))
	return orderID, nil
}

// UpdateOrder rewrites the header and replaces items and collaborator links
// wholesale in one transaction
func (s *SQLiteStorage) UpdateOrder(ctx context.Context, orderID int64, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) error {
	err := s.inTx(ctx, "update order", func(q querier) error {
		return s.updateOrderWithQuerier(ctx, q, orderID, header, items, collaboratorIDs)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("order updated", "order_id", orderID, "items", len(items), "collaborators", len(collaboratorIDs))
	return nil
}

// GetFullOrder returns the header, items and collaborators of an order
func (s *SQLiteStorage) GetFullOrder(ctx context.Context, orderID int64) (*types.Order, error) {
	order, err := s.getFullOrderWithQuerier(ctx, s.querier(), orderID)
	return order, wrapErr(ctx, "get order", err)
}

// ListOrderSummaries returns every order, most recently updated first
func (s *SQLiteStorage) ListOrderSummaries(ctx context.Context) ([]*types.OrderSummary, error) {
	summaries, err := s.listOrderSummariesWithQuerier(ctx, s.querier(), "")
	return summaries, wrapErr(ctx, "list orders", err)
}

// SearchOrderSummaries filters summaries by order number, client name or
// plate, ignoring case
func (s *SQLiteStorage) SearchOrderSummaries(ctx context.Context, keyword string) ([]*types.OrderSummary, error) {
	summaries, err := s.listOrderSummariesWithQuerier(ctx, s.querier(), keyword)
	return summaries, wrapErr(ctx, "search orders", err)
}

// SetOrderStatus changes the status and bumps the version
func (s *SQLiteStorage) SetOrderStatus(ctx context.Context, orderID int64, status types.OrderStatus) error {
	return wrapErr(ctx, "set order status", s.setOrderStatusWithQuerier(ctx, s.querier(), orderID, status))
}

// DeleteOrder removes an order. Items and collaborator links cascade.
func (s *SQLiteStorage) DeleteOrder(ctx context.Context, orderID int64) error {
	return wrapErr(ctx, "delete order", s.deleteOrderWithQuerier(ctx, s.querier(), orderID))
}

// MaxOrderID returns the highest order id, or 0 when there are none
func (s *SQLiteStorage) MaxOrderID(ctx context.Context) (int64, error) {
	id, err := s.maxOrderIDWithQuerier(ctx, s.querier())
	return id, wrapErr(ctx, "max order id", err)
}

// OrderStats returns the dashboard counts
func (s *SQLiteStorage) OrderStats(ctx context.Context) (*types.DashboardCounts, error) {
	stats, err := s.orderStatsWithQuerier(ctx, s.querier())
	return stats, wrapErr(ctx, "order stats", err)
}

// createOrderWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createOrderWithQuerier(ctx context.Context, q querier, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) (int64, error) {
	if header == nil {
		return 0, fmt.Errorf("%w: order header is required", types.ErrValidation)
	}
	now := s.timestamp()

	orderID, err := s.insertHeaderWithQuerier(ctx, q, header, now)
	if err != nil {
		return 0, err
	}
	if err := s.replaceChildrenWithQuerier(ctx, q, orderID, header, items, collaboratorIDs, now); err != nil {
		return 0, err
	}
	return orderID, nil
}

// insertHeaderWithQuerier inserts the header row. Generated numbers that
// collide with an existing one are retried with the next sequence.
func (s *SQLiteStorage) insertHeaderWithQuerier(ctx context.Context, q querier, header *types.OrderHeader, now time.Time) (int64, error) {
	query := `
		INSERT INTO orders (
			order_number, client_id, vehicle_id, responsible_id, status, summary, description,
			payment_method, labor_cost, discount, parts_cost, total_amount, expected_delivery,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	generated := header.OrderNumber == nil || *header.OrderNumber == ""
	src := querierSequence{s: s, q: q}

	for attempt := 0; attempt < numbering.MaxAttempts; attempt++ {
		number := ""
		if generated {
			var err error
			number, err = s.numbers.NextAfter(ctx, src, s.numbers.Year(), attempt)
			if err != nil {
				return 0, err
			}
		} else {
			number = *header.OrderNumber
		}

		result, err := q.ExecContext(ctx, query,
			number, header.ClientID, header.VehicleID, nullableID(header.ResponsibleID),
			string(header.Status), header.Summary, header.Description, string(header.PaymentMethod),
			header.LaborCost, header.Discount, money.Zero, money.Zero, nullableString(header.ExpectedDelivery),
			now, now,
		)
		if isUniqueViolation(err, "orders.order_number") {
			if !generated {
				return 0, fmt.Errorf("%w: order number %s already in use", types.ErrConflict, number)
			}
			s.logger.Warn("order number collision, retrying", "order_number", number, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to insert order: %w", err)
		}
		return result.LastInsertId()
	}
	return 0, fmt.Errorf("%w: could not allocate an order number after %d attempts", types.ErrConflict, numbering.MaxAttempts)
}

// updateOrderWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateOrderWithQuerier(ctx context.Context, q querier, orderID int64, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) error {
	if header == nil {
		return fmt.Errorf("%w: order header is required", types.ErrValidation)
	}

	var currentVersion int64
	var currentNumber string
	err := q.QueryRowContext(ctx, `SELECT version, order_number FROM orders WHERE id = ?`, orderID).
		Scan(&currentVersion, &currentNumber)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read order: %w", err)
	}
	if header.ExpectedVersion > 0 && header.ExpectedVersion != currentVersion {
		return fmt.Errorf("%w: order %d is at version %d, update was based on version %d",
			types.ErrConflict, orderID, currentVersion, header.ExpectedVersion)
	}

	generated := false
	switch {
	case header.OrderNumber == nil:
	case *header.OrderNumber == "":
		generated = true
	case *header.OrderNumber != currentNumber:
		return fmt.Errorf("%w: order number %s cannot be changed", types.ErrValidation, currentNumber)
	}

	now := s.timestamp()
	query := `
		UPDATE orders
		SET order_number = ?, client_id = ?, vehicle_id = ?, responsible_id = ?, status = ?,
		    summary = ?, description = ?, payment_method = ?, labor_cost = ?, discount = ?,
		    expected_delivery = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	src := querierSequence{s: s, q: q}
	updated := false
	for attempt := 0; attempt < numbering.MaxAttempts && !updated; attempt++ {
		number := currentNumber
		if generated {
			number, err = s.numbers.NextAfter(ctx, src, s.numbers.Year(), attempt)
			if err != nil {
				return err
			}
		}

		result, err := q.ExecContext(ctx, query,
			number, header.ClientID, header.VehicleID, nullableID(header.ResponsibleID), string(header.Status),
			header.Summary, header.Description, string(header.PaymentMethod), header.LaborCost, header.Discount,
			nullableString(header.ExpectedDelivery), now,
			orderID, currentVersion,
		)
		if isUniqueViolation(err, "orders.order_number") {
			if !generated {
				return fmt.Errorf("%w: order number %s already in use", types.ErrConflict, number)
			}
			s.logger.Warn("order number collision, retrying", "order_number", number, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: order %d changed during update", types.ErrConflict, orderID)
		}
		updated = true
	}
	if !updated {
		return fmt.Errorf("%w: could not allocate an order number after %d attempts", types.ErrConflict, numbering.MaxAttempts)
	}

	return s.replaceChildrenWithQuerier(ctx, q, orderID, header, items, collaboratorIDs, now)
}

// replaceChildrenWithQuerier runs steps 2-4 of a save: replace items,
// replace collaborator links, write derived totals
func (s *SQLiteStorage) replaceChildrenWithQuerier(ctx context.Context, q querier, orderID int64, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64, now time.Time) error {
	totals, err := s.replaceItemsWithQuerier(ctx, q, orderID, items)
	if err != nil {
		return err
	}
	if err := s.replaceCollaboratorsWithQuerier(ctx, q, orderID, collaboratorIDs); err != nil {
		return err
	}
	return s.writeTotalsWithQuerier(ctx, q, orderID, header.LaborCost, money.Sum(totals...), header.Discount, now)
}

// replaceItemsWithQuerier deletes every item of the order and inserts the
// given ones. Returns the total_price of each inserted item.
func (s *SQLiteStorage) replaceItemsWithQuerier(ctx context.Context, q querier, orderID int64, items []types.OrderItem) ([]decimal.Decimal, error) {
	if _, err := q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return nil, fmt.Errorf("failed to delete order items: %w", err)
	}

	query := `
		INSERT INTO order_items (order_id, service_id, description, quantity, unit_price, discount, total_price, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	totals := make([]decimal.Decimal, 0, len(items))
	for i, item := range items {
		qty := money.NormalizeQuantity(item.Quantity)
		price := money.NonNegative(item.UnitPrice)
		discount := money.NonNegative(item.Discount)
		total := money.LineTotal(qty, price, discount)

		_, err := q.ExecContext(ctx, query,
			orderID, item.ServiceID, item.Description, qty, price, discount, total, item.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item %d: %w", i, err)
		}
		totals = append(totals, total)
	}
	return totals, nil
}

// replaceCollaboratorsWithQuerier deletes every link of the order and
// inserts the deduplicated ids. Every id must reference an active
// collaborator.
func (s *SQLiteStorage) replaceCollaboratorsWithQuerier(ctx context.Context, q querier, orderID int64, collaboratorIDs []int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM order_collaborators WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("failed to delete order collaborators: %w", err)
	}

	ids := dedupeIDs(collaboratorIDs)
	if len(ids) == 0 {
		return nil
	}
	if err := s.checkActiveCollaboratorsWithQuerier(ctx, q, ids); err != nil {
		return err
	}

	for _, id := range ids {
		_, err := q.ExecContext(ctx,
			`INSERT INTO order_collaborators (order_id, collaborator_id) VALUES (?, ?)`, orderID, id)
		if err != nil {
			return fmt.Errorf("failed to link collaborator %d: %w", id, err)
		}
	}
	return nil
}

// checkActiveCollaboratorsWithQuerier fails with ErrValidation naming the
// first id that is missing or inactive
func (s *SQLiteStorage) checkActiveCollaboratorsWithQuerier(ctx context.Context, q querier, ids []int64) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id FROM collaborators WHERE is_active = 1 AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to check collaborators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	active := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		active[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if !active[id] {
			return fmt.Errorf("%w: collaborator %d does not exist or is inactive", types.ErrValidation, id)
		}
	}
	return nil
}

// writeTotalsWithQuerier stores parts_cost and total_amount and refreshes
// updated_at
func (s *SQLiteStorage) writeTotalsWithQuerier(ctx context.Context, q querier, orderID int64, laborCost, partsCost, discount decimal.Decimal, now time.Time) error {
	total := money.OrderTotal(laborCost, partsCost, discount)
	_, err := q.ExecContext(ctx,
		`UPDATE orders SET parts_cost = ?, total_amount = ?, updated_at = ? WHERE id = ?`,
		partsCost, total, now, orderID)
	if err != nil {
		return fmt.Errorf("failed to write order totals: %w", err)
	}
	return nil
}

const orderHeaderSelect = `
	SELECT o.id, o.order_number, o.client_id, o.vehicle_id, o.responsible_id, o.status,
	       o.summary, o.description, o.payment_method, o.labor_cost, o.discount,
	       o.parts_cost, o.total_amount, o.expected_delivery, o.version,
	       o.created_at, o.updated_at,
	       c.full_name, v.license_plate,
	       COALESCE(b.name, ''), COALESCE(m.name, '')
	FROM orders o
	JOIN clients c ON c.id = o.client_id
	JOIN vehicles v ON v.id = o.vehicle_id
	LEFT JOIN brands b ON b.id = v.brand_id
	LEFT JOIN vehicle_models m ON m.id = v.model_id
`

// getFullOrderWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getFullOrderWithQuerier(ctx context.Context, q querier, orderID int64) (*types.Order, error) {
	var order types.Order
	var responsibleID sql.NullInt64
	var expected sql.NullString
	var status, payment string
	err := q.QueryRowContext(ctx, orderHeaderSelect+` WHERE o.id = ?`, orderID).Scan(
		&order.ID, &order.OrderNumber, &order.ClientID, &order.VehicleID, &responsibleID, &status,
		&order.Summary, &order.Description, &payment, &order.LaborCost, &order.Discount,
		&order.PartsCost, &order.TotalAmount, &expected, &order.Version,
		&order.CreatedAt, &order.UpdatedAt,
		&order.ClientName, &order.LicensePlate, &order.BrandName, &order.ModelName,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	order.Status = types.OrderStatus(status)
	order.PaymentMethod = types.PaymentMethod(payment)
	if responsibleID.Valid {
		order.ResponsibleID = &responsibleID.Int64
	}
	if expected.Valid {
		order.ExpectedDelivery = &expected.String
	}

	if order.Items, err = s.listItemsWithQuerier(ctx, q, orderID); err != nil {
		return nil, err
	}
	if order.Collaborators, err = s.listOrderCollaboratorsWithQuerier(ctx, q, orderID); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *SQLiteStorage) listItemsWithQuerier(ctx context.Context, q querier, orderID int64) ([]types.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.service_id, COALESCE(sv.name, ''), oi.description,
		       oi.quantity, oi.unit_price, oi.discount, oi.total_price, oi.notes
		FROM order_items oi
		LEFT JOIN services sv ON sv.id = oi.service_id
		WHERE oi.order_id = ?
		ORDER BY oi.id
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]types.OrderItem, 0)
	for rows.Next() {
		var item types.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ServiceID, &item.ServiceName, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.Discount, &item.TotalPrice, &item.Notes,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) listOrderCollaboratorsWithQuerier(ctx context.Context, q querier, orderID int64) ([]types.OrderCollaborator, error) {
	query := `
		SELECT oc.collaborator_id, cb.full_name
		FROM order_collaborators oc
		JOIN collaborators cb ON cb.id = oc.collaborator_id
		WHERE oc.order_id = ?
		ORDER BY oc.rowid
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order collaborators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	collaborators := make([]types.OrderCollaborator, 0)
	for rows.Next() {
		var c types.OrderCollaborator
		if err := rows.Scan(&c.CollaboratorID, &c.FullName); err != nil {
			return nil, err
		}
		collaborators = append(collaborators, c)
	}
	return collaborators, rows.Err()
}

// listOrderSummariesWithQuerier lists every order, most recently updated
// first. A non-empty keyword filters on order number, client name and
// license plate, case-insensitively.
func (s *SQLiteStorage) listOrderSummariesWithQuerier(ctx context.Context, q querier, keyword string) ([]*types.OrderSummary, error) {
	query := `
		SELECT o.id, o.order_number, o.status, o.summary, o.total_amount, o.expected_delivery,
		       o.created_at, o.updated_at,
		       c.full_name, v.license_plate,
		       COALESCE(b.name, ''), COALESCE(m.name, '')
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		JOIN vehicles v ON v.id = o.vehicle_id
		LEFT JOIN brands b ON b.id = v.brand_id
		LEFT JOIN vehicle_models m ON m.id = v.model_id
	`
	var args []interface{}
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
		query += ` WHERE LOWER(o.order_number) LIKE ? ESCAPE '\'
		              OR LOWER(c.full_name) LIKE ? ESCAPE '\'
		              OR LOWER(v.license_plate) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY o.updated_at DESC, o.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]*types.OrderSummary, 0)
	for rows.Next() {
		var summary types.OrderSummary
		var status string
		var expected sql.NullString
		err := rows.Scan(
			&summary.ID, &summary.OrderNumber, &status, &summary.Summary, &summary.TotalAmount, &expected,
			&summary.CreatedAt, &summary.UpdatedAt,
			&summary.ClientName, &summary.LicensePlate, &summary.BrandName, &summary.ModelName,
		)
		if err != nil {
			return nil, err
		}
		summary.Status = types.OrderStatus(status)
		if expected.Valid {
			summary.ExpectedDelivery = &expected.String
		}
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

// setOrderStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) setOrderStatusWithQuerier(ctx context.Context, q querier, orderID int64, status types.OrderStatus) error {
	result, err := q.ExecContext(ctx,
		`UPDATE orders SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		string(status), s.timestamp(), orderID)
	if err != nil {
		return fmt.Errorf("failed to set order status: %w", err)
	}
	return requireAffected(result, "order", orderID)
}

// deleteOrderWithQuerier removes the order. Items and collaborator links
// cascade.
func (s *SQLiteStorage) deleteOrderWithQuerier(ctx context.Context, q querier, orderID int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return requireAffected(result, "order", orderID)
}

func (s *SQLiteStorage) maxOrderIDWithQuerier(ctx context.Context, q querier) (int64, error) {
	var maxID int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM orders`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to read max order id: %w", err)
	}
	return maxID, nil
}

func (s *SQLiteStorage) orderStatsWithQuerier(ctx context.Context, q querier) (*types.DashboardCounts, error) {
	var stats types.DashboardCounts
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types.OpenStatuses)), ",")
	args := make([]interface{}, len(types.OpenStatuses))
	for i, st := range types.OpenStatuses {
		args[i] = string(st)
	}

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.Clients, `SELECT COUNT(*) FROM clients`, nil},
		{&stats.Collaborators, `SELECT COUNT(*) FROM collaborators WHERE is_active = 1`, nil},
		{&stats.Vehicles, `SELECT COUNT(*) FROM vehicles`, nil},
		{&stats.OpenOrders, `SELECT COUNT(*) FROM orders WHERE status IN (` + placeholders + `)`, args},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}
	return &stats, nil
}

// Helpers

func requireAffected(result sql.Result, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullableID(id *int64) interface{} {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

func nullableString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
