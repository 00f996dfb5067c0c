package types

import "github.com/shopspring/decimal"

// Client is a shop customer
type Client struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Document string `json:"document"`
	Phone    string `json:"phone,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Brand is a vehicle manufacturer
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// VehicleModel is a model of a brand
type VehicleModel struct {
	ID      int64  `json:"id"`
	BrandID int64  `json:"brand_id"`
	Name    string `json:"name"`
}

// Vehicle belongs to a client
type Vehicle struct {
	ID           int64  `json:"id"`
	ClientID     int64  `json:"client_id"`
	BrandID      *int64 `json:"brand_id,omitempty"`
	ModelID      *int64 `json:"model_id,omitempty"`
	LicensePlate string `json:"license_plate"`
	Year         int    `json:"year,omitempty"`
	Color        string `json:"color,omitempty"`
	BrandName    string `json:"brand_name,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
}

// Collaborator is a staff member that can be assigned to orders
type Collaborator struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Service is a catalog entry billed as an order item
type Service struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	IsActive     bool            `json:"is_active"`
}

// User is an operator account
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	IsActive     bool   `json:"is_active"`
}
