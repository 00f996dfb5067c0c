package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/mecsis-mcp/internal/storage"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

// DefaultOpTimeout bounds every service call when no timeout is configured
const DefaultOpTimeout = 5 * time.Second

// Store is the persistence the service needs: the order repository plus
// the lookups used to check references
type Store interface {
	storage.OrderStore

	GetClient(ctx context.Context, clientID int64) (*types.Client, error)
	GetVehicle(ctx context.Context, vehicleID int64) (*types.Vehicle, error)
	ListVehiclesByClient(ctx context.Context, clientID int64) ([]*types.Vehicle, error)
	FindVehicleByPlate(ctx context.Context, plate string) (*types.Vehicle, error)
	ListActiveCollaborators(ctx context.Context) ([]*types.Collaborator, error)
	ListActiveServices(ctx context.Context) ([]*types.Service, error)
}

// Config holds service tuning
type Config struct {
	OpTimeout time.Duration
	CacheSize int
}

// SubmitRequest is one save of the aggregate. A nil ExistingID creates a
// new order; otherwise the order with that id is updated. Items and
// CollaboratorIDs are the complete new sets.
type SubmitRequest struct {
	Header          types.OrderHeader
	Items           []types.OrderItem
	CollaboratorIDs []int64
	ExistingID      *int64
}

// Service coordinates validation, persistence and caching of work orders
type Service struct {
	store    Store
	logger   *slog.Logger
	timeout  time.Duration
	cache    *orderCache
	validate *validator.Validate
}

// NewService creates a new order service
func NewService(store Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &Service{
		store:    store,
		logger:   logger.With("component", "orders"),
		timeout:  timeout,
		cache:    newOrderCache(cfg.CacheSize),
		validate: newValidator(),
	}
}

// Submit validates and saves an order, returning its id. Validation
// failures return ErrValidation without touching the store.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	applyDefaults(&req.Header)
	if req.Items == nil {
		req.Items = []types.OrderItem{}
	}
	if err := s.validateSubmit(&req); err != nil {
		s.logger.Debug("order rejected", "error", err)
		return 0, err
	}
	if req.ExistingID != nil && *req.ExistingID <= 0 {
		return 0, fmt.Errorf("%w: order id %d is invalid", types.ErrValidation, *req.ExistingID)
	}
	if err := s.checkReferences(ctx, &req.Header); err != nil {
		return 0, s.classify(ctx, "submit order", err)
	}

	if req.ExistingID == nil {
		id, err := s.store.CreateOrder(ctx, &req.Header, req.Items, req.CollaboratorIDs)
		if err != nil {
			return 0, s.classify(ctx, "create order", err)
		}
		s.logger.Info("order created", "order_id", id, "items", len(req.Items))
		return id, nil
	}

	id := *req.ExistingID
	err := s.store.UpdateOrder(ctx, id, &req.Header, req.Items, req.CollaboratorIDs)
	s.cache.invalidate(id)
	if err != nil {
		return 0, s.classify(ctx, "update order", err)
	}
	s.logger.Info("order updated", "order_id", id, "items", len(req.Items))
	return id, nil
}

// SetStatus moves an order to any known status
func (s *Service) SetStatus(ctx context.Context, orderID int64, status types.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", types.ErrValidation, status)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.store.SetOrderStatus(ctx, orderID, status)
	s.cache.invalidate(orderID)
	if err != nil {
		return s.classify(ctx, "set status", err)
	}
	s.logger.Info("order status changed", "order_id", orderID, "status", status)
	return nil
}

// Get returns the full aggregate of an order
func (s *Service) Get(ctx context.Context, orderID int64) (*types.Order, error) {
	if order, ok := s.cache.get(orderID); ok {
		return order, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ticket := s.cache.ticket()
	order, err := s.store.GetFullOrder(ctx, orderID)
	if err != nil {
		return nil, s.classify(ctx, "get order", err)
	}
	if !s.cache.putIfCurrent(order, ticket) {
		s.logger.Debug("skipped caching order written during read", "order_id", orderID)
	}
	return order, nil
}

// List returns every order, most recently updated first
func (s *Service) List(ctx context.Context) ([]*types.OrderSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	summaries, err := s.store.ListOrderSummaries(ctx)
	return summaries, s.classify(ctx, "list orders", err)
}

// Search filters orders by number, client name or plate
func (s *Service) Search(ctx context.Context, keyword string) ([]*types.OrderSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	summaries, err := s.store.SearchOrderSummaries(ctx, keyword)
	return summaries, s.classify(ctx, "search orders", err)
}

// Delete removes an order with its items and collaborator links
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.store.DeleteOrder(ctx, orderID)
	s.cache.invalidate(orderID)
	if err != nil {
		return s.classify(ctx, "delete order", err)
	}
	s.logger.Info("order deleted", "order_id", orderID)
	return nil
}

// Dashboard returns the headline counts
func (s *Service) Dashboard(ctx context.Context) (*types.DashboardCounts, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stats, err := s.store.OrderStats(ctx)
	return stats, s.classify(ctx, "dashboard", err)
}

// Collaborators lists staff that can be assigned to orders
func (s *Service) Collaborators(ctx context.Context) ([]*types.Collaborator, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	collaborators, err := s.store.ListActiveCollaborators(ctx)
	return collaborators, s.classify(ctx, "list collaborators", err)
}

// Services lists the active service catalog
func (s *Service) Services(ctx context.Context) ([]*types.Service, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	services, err := s.store.ListActiveServices(ctx)
	return services, s.classify(ctx, "list services", err)
}

// VehiclesByClient lists the vehicles of a client
func (s *Service) VehiclesByClient(ctx context.Context, clientID int64) ([]*types.Vehicle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vehicles, err := s.store.ListVehiclesByClient(ctx, clientID)
	return vehicles, s.classify(ctx, "list vehicles", err)
}

// VehicleByPlate finds a vehicle by license plate
func (s *Service) VehicleByPlate(ctx context.Context, plate string) (*types.Vehicle, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vehicle, err := s.store.FindVehicleByPlate(ctx, plate)
	return vehicle, s.classify(ctx, "find vehicle", err)
}

// checkReferences verifies that the client and vehicle exist and belong
// together, and that the responsible collaborator is active
func (s *Service) checkReferences(ctx context.Context, h *types.OrderHeader) error {
	if _, err := s.store.GetClient(ctx, h.ClientID); err != nil {
		return asValidation(err, "client %d does not exist", h.ClientID)
	}

	vehicle, err := s.store.GetVehicle(ctx, h.VehicleID)
	if err != nil {
		return asValidation(err, "vehicle %d does not exist", h.VehicleID)
	}
	if vehicle.ClientID != h.ClientID {
		return fmt.Errorf("%w: vehicle %d does not belong to client %d", types.ErrValidation, h.VehicleID, h.ClientID)
	}

	if h.ResponsibleID == nil {
		return nil
	}
	active, err := s.store.ListActiveCollaborators(ctx)
	if err != nil {
		return err
	}
	for _, c := range active {
		if c.ID == *h.ResponsibleID {
			return nil
		}
	}
	return fmt.Errorf("%w: responsible %d is not an active collaborator", types.ErrValidation, *h.ResponsibleID)
}

// asValidation reports a missing reference as a validation failure and
// passes every other error through
func asValidation(err error, format string, args ...interface{}) error {
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("%w: "+format, append([]interface{}{types.ErrValidation}, args...)...)
	}
	return err
}

func applyDefaults(h *types.OrderHeader) {
	if h.Status == "" {
		h.Status = types.StatusOpen
	}
	if h.PaymentMethod == "" {
		h.PaymentMethod = types.PaymentCash
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// classify maps an expired deadline to ErrTimeout. Everything else is
// already typed by the store.
func (s *Service) classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("operation timed out", "op", op, "timeout", s.timeout)
		return fmt.Errorf("%w: %s: %w", types.ErrTimeout, op, err)
	}
	return err
}
