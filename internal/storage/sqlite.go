package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/mecsis-mcp/internal/numbering"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = types.ErrNotFound
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db      *sql.DB
	logger  *slog.Logger
	now     func() time.Time
	numbers *numbering.Generator
}

// Option configures a SQLiteStorage
type Option func(*SQLiteStorage)

// WithLogger sets the logger used for transaction diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for created_at and updated_at
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNumberGenerator sets the order number generator
func WithNumberGenerator(g *numbering.Generator) Option {
	return func(s *SQLiteStorage) {
		if g != nil {
			s.numbers = g
		}
	}
}

// dsnWithPragmas appends the driver's foreign key parameter to the path so
// every connection the pool opens enforces foreign keys
func dsnWithPragmas(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + foreignKeysParam
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsnWithPragmas(dbPath))
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection serializes writers, so an order save is never
	// interleaved with another one
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if foreignKeys != 1 {
		_ = db.Close()
		return nil, errors.New("foreign keys are not enabled on the connection")
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{
		db:      db,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		numbers: numbering.New(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr(ctx, "begin transaction", err)
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// timestamp returns the current time in UTC
func (s *SQLiteStorage) timestamp() time.Time {
	return s.now().UTC()
}

// inTx runs fn in its own transaction. Any error rolls the whole
// transaction back.
func (s *SQLiteStorage) inTx(ctx context.Context, op string, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(ctx, op, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "op", op, "error", rbErr)
		}
		s.logger.Debug("transaction rolled back", "op", op, "error", err)
		return wrapErr(ctx, op, err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(ctx, op, err)
	}
	return nil
}

// wrapErr classifies err into one of the error kinds. Errors that already
// carry a kind pass through with the operation name prepended.
func wrapErr(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{types.ErrValidation, types.ErrNotFound, types.ErrConflict, types.ErrTimeout, types.ErrStorage} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", types.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", types.ErrStorage, op, err)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given table.column. Both drivers report the engine message verbatim.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// querierSequence adapts a querier to numbering.SequenceSource
type querierSequence struct {
	s *SQLiteStorage
	q querier
}

func (qs querierSequence) MaxOrderID(ctx context.Context) (int64, error) {
	return qs.s.maxOrderIDWithQuerier(ctx, qs.q)
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return wrapErr(context.Background(), "commit", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// BeginTx is not supported inside a transaction
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}

// Every transaction method runs against the open transaction. Delegating to
// the storage's *sql.DB would block: the pool holds a single connection.

func (t *sqliteTx) CreateOrder(ctx context.Context, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) (int64, error) {
	id, err := t.storage.createOrderWithQuerier(ctx, t.querier(), header, items, collaboratorIDs)
	return id, wrapErr(ctx, "create order", err)
}

func (t *sqliteTx) UpdateOrder(ctx context.Context, orderID int64, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) error {
	return wrapErr(ctx, "update order", t.storage.updateOrderWithQuerier(ctx, t.querier(), orderID, header, items, collaboratorIDs))
}

func (t *sqliteTx) GetFullOrder(ctx context.Context, orderID int64) (*types.Order, error) {
	order, err := t.storage.getFullOrderWithQuerier(ctx, t.querier(), orderID)
	return order, wrapErr(ctx, "get order", err)
}

func (t *sqliteTx) ListOrderSummaries(ctx context.Context) ([]*types.OrderSummary, error) {
	summaries, err := t.storage.listOrderSummariesWithQuerier(ctx, t.querier(), "")
	return summaries, wrapErr(ctx, "list orders", err)
}

func (t *sqliteTx) SearchOrderSummaries(ctx context.Context, keyword string) ([]*types.OrderSummary, error) {
	summaries, err := t.storage.listOrderSummariesWithQuerier(ctx, t.querier(), keyword)
	return summaries, wrapErr(ctx, "search orders", err)
}

func (t *sqliteTx) SetOrderStatus(ctx context.Context, orderID int64, status types.OrderStatus) error {
	return wrapErr(ctx, "set order status", t.storage.setOrderStatusWithQuerier(ctx, t.querier(), orderID, status))
}

func (t *sqliteTx) DeleteOrder(ctx context.Context, orderID int64) error {
	return wrapErr(ctx, "delete order", t.storage.deleteOrderWithQuerier(ctx, t.querier(), orderID))
}

func (t *sqliteTx) MaxOrderID(ctx context.Context) (int64, error) {
	id, err := t.storage.maxOrderIDWithQuerier(ctx, t.querier())
	return id, wrapErr(ctx, "max order id", err)
}

func (t *sqliteTx) OrderStats(ctx context.Context) (*types.DashboardCounts, error) {
	stats, err := t.storage.orderStatsWithQuerier(ctx, t.querier())
	return stats, wrapErr(ctx, "order stats", err)
}

func (t *sqliteTx) CreateClient(ctx context.Context, client *types.Client) error {
	return wrapErr(ctx, "create client", t.storage.createClientWithQuerier(ctx, t.querier(), client))
}

func (t *sqliteTx) GetClient(ctx context.Context, clientID int64) (*types.Client, error) {
	client, err := t.storage.getClientWithQuerier(ctx, t.querier(), clientID)
	return client, wrapErr(ctx, "get client", err)
}

func (t *sqliteTx) CreateBrand(ctx context.Context, brand *types.Brand) error {
	return wrapErr(ctx, "create brand", t.storage.createBrandWithQuerier(ctx, t.querier(), brand))
}

func (t *sqliteTx) CreateVehicleModel(ctx context.Context, model *types.VehicleModel) error {
	return wrapErr(ctx, "create vehicle model", t.storage.createVehicleModelWithQuerier(ctx, t.querier(), model))
}

func (t *sqliteTx) CreateVehicle(ctx context.Context, vehicle *types.Vehicle) error {
	return wrapErr(ctx, "create vehicle", t.storage.createVehicleWithQuerier(ctx, t.querier(), vehicle))
}

func (t *sqliteTx) GetVehicle(ctx context.Context, vehicleID int64) (*types.Vehicle, error) {
	vehicle, err := t.storage.getVehicleWithQuerier(ctx, t.querier(), "v.id = ?", vehicleID)
	return vehicle, wrapErr(ctx, "get vehicle", err)
}

func (t *sqliteTx) ListVehiclesByClient(ctx context.Context, clientID int64) ([]*types.Vehicle, error) {
	vehicles, err := t.storage.listVehiclesByClientWithQuerier(ctx, t.querier(), clientID)
	return vehicles, wrapErr(ctx, "list vehicles", err)
}

func (t *sqliteTx) FindVehicleByPlate(ctx context.Context, plate string) (*types.Vehicle, error) {
	vehicle, err := t.storage.getVehicleWithQuerier(ctx, t.querier(), "v.license_plate = ?", normalizePlate(plate))
	return vehicle, wrapErr(ctx, "find vehicle", err)
}

func (t *sqliteTx) CreateCollaborator(ctx context.Context, collaborator *types.Collaborator) error {
	return wrapErr(ctx, "create collaborator", t.storage.createCollaboratorWithQuerier(ctx, t.querier(), collaborator))
}

func (t *sqliteTx) SetCollaboratorActive(ctx context.Context, collaboratorID int64, active bool) error {
	return wrapErr(ctx, "set collaborator active", t.storage.setCollaboratorActiveWithQuerier(ctx, t.querier(), collaboratorID, active))
}

func (t *sqliteTx) ListActiveCollaborators(ctx context.Context) ([]*types.Collaborator, error) {
	collaborators, err := t.storage.listActiveCollaboratorsWithQuerier(ctx, t.querier())
	return collaborators, wrapErr(ctx, "list collaborators", err)
}

func (t *sqliteTx) CreateService(ctx context.Context, service *types.Service) error {
	return wrapErr(ctx, "create service", t.storage.createServiceWithQuerier(ctx, t.querier(), service))
}

func (t *sqliteTx) ListActiveServices(ctx context.Context) ([]*types.Service, error) {
	services, err := t.storage.listActiveServicesWithQuerier(ctx, t.querier())
	return services, wrapErr(ctx, "list services", err)
}
