package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a work order
type OrderStatus string

const (
	StatusOpen         OrderStatus = "open"
	StatusInProgress   OrderStatus = "in_progress"
	StatusWaitingParts OrderStatus = "waiting_parts"
	StatusCompleted    OrderStatus = "completed"
	StatusCancelled    OrderStatus = "cancelled"
)

// AllStatuses lists every status in display order
var AllStatuses = []OrderStatus{
	StatusOpen, StatusInProgress, StatusWaitingParts, StatusCompleted, StatusCancelled,
}

// OpenStatuses are the statuses counted as open work
var OpenStatuses = []OrderStatus{StatusOpen, StatusInProgress, StatusWaitingParts}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentMethod is the expected settlement method of an order
type PaymentMethod string

const (
	PaymentPIX      PaymentMethod = "PIX"
	PaymentCash     PaymentMethod = "cash"
	PaymentCredit   PaymentMethod = "credit"
	PaymentDebit    PaymentMethod = "debit"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentInvoice  PaymentMethod = "invoice"
)

// AllPaymentMethods lists every payment method
var AllPaymentMethods = []PaymentMethod{
	PaymentPIX, PaymentCash, PaymentCredit, PaymentDebit, PaymentTransfer, PaymentInvoice,
}

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	for _, known := range AllPaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// DateLayout is the storage format of expected delivery dates
const DateLayout = "2006-01-02"

// OrderHeader is the header record submitted with a save.
//
// OrderNumber follows three states: nil keeps the stored number (or
// generates one on create), a pointer to "" forces a fresh number, and any
// other value is written as given. PartsCost and TotalAmount are accepted
// for symmetry but always recomputed.
type OrderHeader struct {
	OrderNumber      *string         `json:"order_number,omitempty"`
	ClientID         int64           `json:"client_id" validate:"required,gt=0"`
	VehicleID        int64           `json:"vehicle_id" validate:"required,gt=0"`
	ResponsibleID    *int64          `json:"responsible_id,omitempty" validate:"omitempty,gt=0"`
	Status           OrderStatus     `json:"status,omitempty" validate:"omitempty,order_status"`
	Summary          string          `json:"summary,omitempty" validate:"max=255"`
	Description      string          `json:"description,omitempty"`
	PaymentMethod    PaymentMethod   `json:"payment_method,omitempty" validate:"omitempty,payment_method"`
	LaborCost        decimal.Decimal `json:"labor_cost" validate:"gte=0"`
	PartsCost        decimal.Decimal `json:"parts_cost"`
	Discount         decimal.Decimal `json:"discount" validate:"gte=0"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ExpectedDelivery *string         `json:"expected_delivery,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// ExpectedVersion enables optimistic locking on update when > 0
	ExpectedVersion int64 `json:"expected_version,omitempty" validate:"gte=0"`
}

// OrderItem is a billable line of an order
type OrderItem struct {
	ID          int64           `json:"id,omitempty"`
	OrderID     int64           `json:"order_id,omitempty"`
	ServiceID   int64           `json:"service_id" validate:"required,gt=0"`
	ServiceName string          `json:"service_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Discount    decimal.Decimal `json:"discount" validate:"gte=0"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Notes       string          `json:"notes,omitempty"`
}

// OrderCollaborator links a collaborator to an order
type OrderCollaborator struct {
	CollaboratorID int64  `json:"collaborator_id"`
	FullName       string `json:"full_name"`
}

// Order is the full aggregate: header, join display fields, items and
// collaborators
type Order struct {
	ID               int64           `json:"id"`
	OrderNumber      string          `json:"order_number"`
	ClientID         int64           `json:"client_id"`
	VehicleID        int64           `json:"vehicle_id"`
	ResponsibleID    *int64          `json:"responsible_id,omitempty"`
	Status           OrderStatus     `json:"status"`
	Summary          string          `json:"summary"`
	Description      string          `json:"description"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	LaborCost        decimal.Decimal `json:"labor_cost"`
	Discount         decimal.Decimal `json:"discount"`
	PartsCost        decimal.Decimal `json:"parts_cost"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ExpectedDelivery *string         `json:"expected_delivery,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	ClientName   string `json:"client_name"`
	LicensePlate string `json:"license_plate"`
	BrandName    string `json:"brand_name"`
	ModelName    string `json:"model_name"`

	Items         []OrderItem         `json:"items"`
	Collaborators []OrderCollaborator `json:"collaborators"`
}

// CollaboratorIDs returns the ids of the linked collaborators
func (o *Order) CollaboratorIDs() []int64 {
	ids := make([]int64, 0, len(o.Collaborators))
	for _, c := range o.Collaborators {
		ids = append(ids, c.CollaboratorID)
	}
	return ids
}

// OrderSummary is the list-view projection of an order
type OrderSummary struct {
	ID               int64           `json:"id"`
	OrderNumber      string          `json:"order_number"`
	Status           OrderStatus     `json:"status"`
	Summary          string          `json:"summary"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ExpectedDelivery *string         `json:"expected_delivery,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	ClientName       string          `json:"client_name"`
	LicensePlate     string          `json:"license_plate"`
	BrandName        string          `json:"brand_name"`
	ModelName        string          `json:"model_name"`
}

// DashboardCounts holds the shop-wide counters
type DashboardCounts struct {
	Clients       int `json:"clients"`
	Collaborators int `json:"collaborators"`
	Vehicles      int `json:"vehicles"`
	OpenOrders    int `json:"open_orders"`
}
