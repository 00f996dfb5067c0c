package storage

import (
	"context"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

// Storage defines the interface for persisting work orders and the lookup
// records they reference
type Storage interface {
	OrderStore
	LookupStore
	UserStore

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// OrderStore persists the order aggregate.
//
// CreateOrder and UpdateOrder replace the items and collaborator links of
// the order wholesale: the submitted sets become the complete new sets.
// Both run as a single transaction and derive parts_cost and total_amount
// from the freshly written items.
type OrderStore interface {
	CreateOrder(ctx context.Context, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) (int64, error)
	UpdateOrder(ctx context.Context, orderID int64, header *types.OrderHeader, items []types.OrderItem, collaboratorIDs []int64) error
	GetFullOrder(ctx context.Context, orderID int64) (*types.Order, error)
	ListOrderSummaries(ctx context.Context) ([]*types.OrderSummary, error)
	SearchOrderSummaries(ctx context.Context, keyword string) ([]*types.OrderSummary, error)
	SetOrderStatus(ctx context.Context, orderID int64, status types.OrderStatus) error
	DeleteOrder(ctx context.Context, orderID int64) error
	MaxOrderID(ctx context.Context) (int64, error)
	OrderStats(ctx context.Context) (*types.DashboardCounts, error)
}

// LookupStore covers the single-table records orders reference
type LookupStore interface {
	// Clients
	CreateClient(ctx context.Context, client *types.Client) error
	GetClient(ctx context.Context, clientID int64) (*types.Client, error)

	// Brands and models
	CreateBrand(ctx context.Context, brand *types.Brand) error
	CreateVehicleModel(ctx context.Context, model *types.VehicleModel) error

	// Vehicles
	CreateVehicle(ctx context.Context, vehicle *types.Vehicle) error
	GetVehicle(ctx context.Context, vehicleID int64) (*types.Vehicle, error)
	ListVehiclesByClient(ctx context.Context, clientID int64) ([]*types.Vehicle, error)
	FindVehicleByPlate(ctx context.Context, plate string) (*types.Vehicle, error)

	// Collaborators
	CreateCollaborator(ctx context.Context, collaborator *types.Collaborator) error
	SetCollaboratorActive(ctx context.Context, collaboratorID int64, active bool) error
	ListActiveCollaborators(ctx context.Context) ([]*types.Collaborator, error)

	// Service catalog
	CreateService(ctx context.Context, service *types.Service) error
	ListActiveServices(ctx context.Context) ([]*types.Service, error)
}

// UserStore persists operator accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID int64) (*types.User, error)
	GetActiveUserByUsername(ctx context.Context, username string) (*types.User, error)
	UpdateUser(ctx context.Context, user *types.User) error
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	OrderStore
	LookupStore
}
