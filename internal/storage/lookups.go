package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

// Lookup operations. These tables are referenced by orders; the order core
// only needs to create and read them.

// CreateClient inserts a client and sets its id
func (s *SQLiteStorage) CreateClient(ctx context.Context, client *types.Client) error {
	return wrapErr(ctx, "create client", s.createClientWithQuerier(ctx, s.querier(), client))
}

// GetClient returns a client by id
func (s *SQLiteStorage) GetClient(ctx context.Context, clientID int64) (*types.Client, error) {
	client, err := s.getClientWithQuerier(ctx, s.querier(), clientID)
	return client, wrapErr(ctx, "get client", err)
}

// CreateBrand inserts a vehicle brand
func (s *SQLiteStorage) CreateBrand(ctx context.Context, brand *types.Brand) error {
	return wrapErr(ctx, "create brand", s.createBrandWithQuerier(ctx, s.querier(), brand))
}

// CreateVehicleModel inserts a model of an existing brand
func (s *SQLiteStorage) CreateVehicleModel(ctx context.Context, model *types.VehicleModel) error {
	return wrapErr(ctx, "create vehicle model", s.createVehicleModelWithQuerier(ctx, s.querier(), model))
}

// CreateVehicle inserts a vehicle. The plate is stored upper case.
func (s *SQLiteStorage) CreateVehicle(ctx context.Context, vehicle *types.Vehicle) error {
	return wrapErr(ctx, "create vehicle", s.createVehicleWithQuerier(ctx, s.querier(), vehicle))
}

// GetVehicle returns a vehicle with its brand and model names
func (s *SQLiteStorage) GetVehicle(ctx context.Context, vehicleID int64) (*types.Vehicle, error) {
	vehicle, err := s.getVehicleWithQuerier(ctx, s.querier(), "v.id = ?", vehicleID)
	return vehicle, wrapErr(ctx, "get vehicle", err)
}

// ListVehiclesByClient returns the vehicles of a client ordered by plate
func (s *SQLiteStorage) ListVehiclesByClient(ctx context.Context, clientID int64) ([]*types.Vehicle, error) {
	vehicles, err := s.listVehiclesByClientWithQuerier(ctx, s.querier(), clientID)
	return vehicles, wrapErr(ctx, "list vehicles", err)
}

// FindVehicleByPlate looks a vehicle up by license plate, ignoring case
func (s *SQLiteStorage) FindVehicleByPlate(ctx context.Context, plate string) (*types.Vehicle, error) {
	vehicle, err := s.getVehicleWithQuerier(ctx, s.querier(), "v.license_plate = ?", normalizePlate(plate))
	return vehicle, wrapErr(ctx, "find vehicle", err)
}

// CreateCollaborator inserts a collaborator
func (s *SQLiteStorage) CreateCollaborator(ctx context.Context, collaborator *types.Collaborator) error {
	return wrapErr(ctx, "create collaborator", s.createCollaboratorWithQuerier(ctx, s.querier(), collaborator))
}

// SetCollaboratorActive activates or deactivates a collaborator
func (s *SQLiteStorage) SetCollaboratorActive(ctx context.Context, collaboratorID int64, active bool) error {
	return wrapErr(ctx, "set collaborator active", s.setCollaboratorActiveWithQuerier(ctx, s.querier(), collaboratorID, active))
}

// ListActiveCollaborators returns active collaborators ordered by name
func (s *SQLiteStorage) ListActiveCollaborators(ctx context.Context) ([]*types.Collaborator, error) {
	collaborators, err := s.listActiveCollaboratorsWithQuerier(ctx, s.querier())
	return collaborators, wrapErr(ctx, "list collaborators", err)
}

// CreateService inserts a catalog service
func (s *SQLiteStorage) CreateService(ctx context.Context, service *types.Service) error {
	return wrapErr(ctx, "create service", s.createServiceWithQuerier(ctx, s.querier(), service))
}

// ListActiveServices returns the active catalog ordered by name
func (s *SQLiteStorage) ListActiveServices(ctx context.Context) ([]*types.Service, error) {
	services, err := s.listActiveServicesWithQuerier(ctx, s.querier())
	return services, wrapErr(ctx, "list services", err)
}

// Clients

func (s *SQLiteStorage) createClientWithQuerier(ctx context.Context, q querier, client *types.Client) error {
	query := `
		INSERT INTO clients (full_name, document, phone, mobile, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := s.timestamp()
	return insertReturningID(ctx, q, &client.ID, "client", query,
		client.FullName, client.Document, client.Phone, client.Mobile, client.Email, now, now)
}

func (s *SQLiteStorage) getClientWithQuerier(ctx context.Context, q querier, clientID int64) (*types.Client, error) {
	var client types.Client
	err := q.QueryRowContext(ctx,
		`SELECT id, full_name, document, phone, mobile, email FROM clients WHERE id = ?`, clientID,
	).Scan(&client.ID, &client.FullName, &client.Document, &client.Phone, &client.Mobile, &client.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client %d: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Brands and models

func (s *SQLiteStorage) createBrandWithQuerier(ctx context.Context, q querier, brand *types.Brand) error {
	return insertReturningID(ctx, q, &brand.ID, "brand",
		`INSERT INTO brands (name) VALUES (?)`, strings.TrimSpace(brand.Name))
}

func (s *SQLiteStorage) createVehicleModelWithQuerier(ctx context.Context, q querier, model *types.VehicleModel) error {
	return insertReturningID(ctx, q, &model.ID, "vehicle model",
		`INSERT INTO vehicle_models (brand_id, name) VALUES (?, ?)`, model.BrandID, strings.TrimSpace(model.Name))
}

// Vehicles

func (s *SQLiteStorage) createVehicleWithQuerier(ctx context.Context, q querier, vehicle *types.Vehicle) error {
	vehicle.LicensePlate = normalizePlate(vehicle.LicensePlate)
	query := `
		INSERT INTO vehicles (client_id, brand_id, model_id, license_plate, year, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return insertReturningID(ctx, q, &vehicle.ID, "vehicle", query,
		vehicle.ClientID, nullableID(vehicle.BrandID), nullableID(vehicle.ModelID),
		vehicle.LicensePlate, vehicle.Year, vehicle.Color, s.timestamp())
}

const vehicleSelect = `
	SELECT v.id, v.client_id, v.brand_id, v.model_id, v.license_plate, v.year, v.color,
	       COALESCE(b.name, ''), COALESCE(m.name, '')
	FROM vehicles v
	LEFT JOIN brands b ON b.id = v.brand_id
	LEFT JOIN vehicle_models m ON m.id = v.model_id
`

func (s *SQLiteStorage) getVehicleWithQuerier(ctx context.Context, q querier, where string, arg interface{}) (*types.Vehicle, error) {
	rows, err := q.QueryContext(ctx, vehicleSelect+` WHERE `+where, arg)
	if err != nil {
		return nil, err
	}
	vehicles, err := scanVehicles(rows)
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("vehicle %v: %w", arg, ErrNotFound)
	}
	return vehicles[0], nil
}

func (s *SQLiteStorage) listVehiclesByClientWithQuerier(ctx context.Context, q querier, clientID int64) ([]*types.Vehicle, error) {
	rows, err := q.QueryContext(ctx, vehicleSelect+` WHERE v.client_id = ? ORDER BY v.license_plate`, clientID)
	if err != nil {
		return nil, err
	}
	return scanVehicles(rows)
}

func scanVehicles(rows *sql.Rows) ([]*types.Vehicle, error) {
	defer func() { _ = rows.Close() }()

	vehicles := make([]*types.Vehicle, 0)
	for rows.Next() {
		var v types.Vehicle
		var brandID, modelID sql.NullInt64
		err := rows.Scan(&v.ID, &v.ClientID, &brandID, &modelID, &v.LicensePlate, &v.Year, &v.Color,
			&v.BrandName, &v.ModelName)
		if err != nil {
			return nil, err
		}
		if brandID.Valid {
			v.BrandID = &brandID.Int64
		}
		if modelID.Valid {
			v.ModelID = &modelID.Int64
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}

// Collaborators

func (s *SQLiteStorage) createCollaboratorWithQuerier(ctx context.Context, q querier, c *types.Collaborator) error {
	query := `
		INSERT INTO collaborators (full_name, document, email, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return insertReturningID(ctx, q, &c.ID, "collaborator", query,
		c.FullName, c.Document, c.Email, c.Role, c.IsActive, s.timestamp())
}

func (s *SQLiteStorage) setCollaboratorActiveWithQuerier(ctx context.Context, q querier, collaboratorID int64, active bool) error {
	result, err := q.ExecContext(ctx, `UPDATE collaborators SET is_active = ? WHERE id = ?`, active, collaboratorID)
	if err != nil {
		return err
	}
	return requireAffected(result, "collaborator", collaboratorID)
}

func (s *SQLiteStorage) listActiveCollaboratorsWithQuerier(ctx context.Context, q querier) ([]*types.Collaborator, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, full_name, document, email, role, is_active
		FROM collaborators
		WHERE is_active = 1
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	collaborators := make([]*types.Collaborator, 0)
	for rows.Next() {
		var c types.Collaborator
		if err := rows.Scan(&c.ID, &c.FullName, &c.Document, &c.Email, &c.Role, &c.IsActive); err != nil {
			return nil, err
		}
		collaborators = append(collaborators, &c)
	}
	return collaborators, rows.Err()
}

// Service catalog

func (s *SQLiteStorage) createServiceWithQuerier(ctx context.Context, q querier, svc *types.Service) error {
	query := `
		INSERT INTO services (name, description, default_price, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	return insertReturningID(ctx, q, &svc.ID, "service", query,
		svc.Name, svc.Description, svc.DefaultPrice, svc.IsActive, s.timestamp())
}

func (s *SQLiteStorage) listActiveServicesWithQuerier(ctx context.Context, q querier) ([]*types.Service, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, default_price, is_active
		FROM services
		WHERE is_active = 1
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	services := make([]*types.Service, 0)
	for rows.Next() {
		var svc types.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.DefaultPrice, &svc.IsActive); err != nil {
			return nil, err
		}
		services = append(services, &svc)
	}
	return services, rows.Err()
}

// Helpers

// insertReturningID executes an INSERT and stores the new row id in dest
func insertReturningID(ctx context.Context, q querier, dest *int64, entity, query string, args ...interface{}) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", entity, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	*dest = id
	return nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
