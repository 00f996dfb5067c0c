// Package storage provides SQLite-based persistence for work orders and
// the lookup records they reference.
//
// # Database Schema
//
// Tables:
//   - orders: order headers with the derived parts_cost and total_amount
//   - order_items: billable lines, owned by exactly one order
//   - order_collaborators: staff assigned to an order
//   - clients, vehicles, brands, vehicle_models: who and what is serviced
//   - collaborators, services: staff and the service catalog
//   - users: operator accounts
//
// Money columns are TEXT holding decimal strings. They are read and written
// as decimal.Decimal, never as floats.
//
// # Saving an Order
//
// CreateOrder and UpdateOrder run in one transaction:
//
//  1. write the header (allocating an order number on create)
//  2. replace every item of the order with the submitted items
//  3. replace every collaborator link with the submitted ids
//  4. write parts_cost and total_amount computed from the new items
//
// Any failure rolls the whole save back.
//
//	db, err := storage.NewSQLiteStorage("~/.mecsis/mecsis.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	id, err := db.CreateOrder(ctx, &header, items, []int64{collaboratorID})
//
// # Transactions
//
// BeginTx exposes the same operations on a caller-controlled transaction:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.CreateClient(ctx, &client)
//	orderID, _ := tx.CreateOrder(ctx, &header, items, nil)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// The database uses a single connection, so a transaction must only be used
// through its own methods while it is open.
//
// # Build Tags
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
