package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

func TestFindVehicleByPlate(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	f := seed(t, storage)
	ctx := context.Background()

	assert.Equal(t, "ABC1D23", f.vehicle.LicensePlate)

	vehicle, err := storage.FindVehicleByPlate(ctx, "abc1d23")
	require.NoError(t, err)
	assert.Equal(t, f.vehicle.ID, vehicle.ID)
	assert.Equal(t, "Fiat", vehicle.BrandName)
	assert.Equal(t, 2012, vehicle.Year)

	_, err = storage.FindVehicleByPlate(ctx, "ZZZ9Z99")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// Plates are unique regardless of case
	dup := &types.Vehicle{ClientID: f.client.ID, LicensePlate: "Abc1D23"}
	assert.Error(t, storage.CreateVehicle(ctx, dup))
}

func TestListVehiclesByClient(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	f := seed(t, storage)
	ctx := context.Background()

	require.NoError(t, storage.CreateVehicle(ctx, &types.Vehicle{ClientID: f.client.ID, LicensePlate: "AAA0A00"}))

	vehicles, err := storage.ListVehiclesByClient(ctx, f.client.ID)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "AAA0A00", vehicles[0].LicensePlate)
	assert.Nil(t, vehicles[0].BrandID)

	vehicles, err = storage.ListVehiclesByClient(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, vehicles)
}

func TestActiveCollaborators(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	f := seed(t, storage)
	ctx := context.Background()

	collaborators, err := storage.ListActiveCollaborators(ctx)
	require.NoError(t, err)
	require.Len(t, collaborators, 2)
	// Sorted by name
	assert.Equal(t, f.second.ID, collaborators[0].ID)

	require.NoError(t, storage.SetCollaboratorActive(ctx, f.second.ID, false))
	collaborators, err = storage.ListActiveCollaborators(ctx)
	require.NoError(t, err)
	require.Len(t, collaborators, 1)
	assert.Equal(t, f.active.ID, collaborators[0].ID)

	err = storage.SetCollaboratorActive(ctx, 999, true)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeactivatedCollaboratorCannotBeAssigned(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	f := seed(t, storage)
	ctx := context.Background()

	require.NoError(t, storage.SetCollaboratorActive(ctx, f.active.ID, false))
	_, err := storage.CreateOrder(ctx, f.header("0", "0"), nil, []int64{f.active.ID})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestListActiveServices(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	f := seed(t, storage)
	ctx := context.Background()

	require.NoError(t, storage.CreateService(ctx, &types.Service{Name: "Retired", IsActive: false}))

	services, err := storage.ListActiveServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "Alignment", services[0].Name)
	assert.True(t, f.secondSvc.DefaultPrice.Equal(services[0].DefaultPrice))
}

func TestUsers(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	user := &types.User{Username: "admin", DisplayName: "Admin", PasswordHash: "hash-1", IsActive: true}
	require.NoError(t, storage.CreateUser(ctx, user))
	assert.Greater(t, user.ID, int64(0))

	err := storage.CreateUser(ctx, &types.User{Username: "admin", PasswordHash: "x", IsActive: true})
	assert.ErrorIs(t, err, types.ErrConflict)

	fetched, err := storage.GetActiveUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", fetched.PasswordHash)

	require.NoError(t, storage.UpdateUserPassword(ctx, user.ID, "hash-2"))
	fetched, err = storage.GetActiveUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", fetched.PasswordHash)

	require.NoError(t, storage.CreateUser(ctx, &types.User{Username: "gone", PasswordHash: "x", IsActive: false}))
	_, err = storage.GetActiveUserByUsername(ctx, "gone")
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, storage.UpdateUserPassword(ctx, 999, "x"), types.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	user := &types.User{Username: "admin", DisplayName: "Admin", PasswordHash: "hash-1", IsActive: true}
	require.NoError(t, storage.CreateUser(ctx, user))
	require.NoError(t, storage.CreateUser(ctx, &types.User{Username: "bob", PasswordHash: "x", IsActive: true}))

	// Empty hash keeps the stored one
	require.NoError(t, storage.UpdateUser(ctx, &types.User{ID: user.ID, Username: "chief", DisplayName: "Chief"}))
	fetched, err := storage.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "chief", fetched.Username)
	assert.Equal(t, "Chief", fetched.DisplayName)
	assert.Equal(t, "hash-1", fetched.PasswordHash)

	require.NoError(t, storage.UpdateUser(ctx, &types.User{ID: user.ID, Username: "chief", DisplayName: "Chief", PasswordHash: "hash-2"}))
	fetched, err = storage.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", fetched.PasswordHash)

	err = storage.UpdateUser(ctx, &types.User{ID: user.ID, Username: "bob"})
	assert.ErrorIs(t, err, types.ErrConflict)

	assert.ErrorIs(t, storage.UpdateUser(ctx, &types.User{ID: 999, Username: "ghost"}), types.ErrNotFound)
	_, err = storage.GetUser(ctx, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMigrations_RollbackAndReapply(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))

	var count int
	require.NoError(t, storage.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='orders'`).Scan(&count))
	assert.Equal(t, 0, count)

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	require.NoError(t, storage.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='orders'`).Scan(&count))
	assert.Equal(t, 1, count)

	var version string
	require.NoError(t, storage.db.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)
}
