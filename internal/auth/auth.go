// Package auth verifies operator credentials against bcrypt hashes stored
// in the users table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dshills/mecsis-mcp/internal/storage"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

// DefaultCost is the bcrypt cost for new hashes
const DefaultCost = 12

// Authenticator checks and updates user passwords
type Authenticator struct {
	users  storage.UserStore
	cost   int
	logger *slog.Logger
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithCost overrides the bcrypt cost. Values outside bcrypt's range fall
// back to DefaultCost.
func WithCost(cost int) Option {
	return func(a *Authenticator) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			a.cost = cost
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger.With("component", "auth")
		}
	}
}

// New creates an Authenticator over the given user store
func New(users storage.UserStore, opts ...Option) *Authenticator {
	a := &Authenticator{
		users:  users,
		cost:   DefaultCost,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate returns the active user matching username and password.
// Unknown users, inactive users and wrong passwords all return
// ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*types.User, error) {
	user, err := a.users.GetActiveUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, types.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Debug("password mismatch", "username", user.Username)
		return nil, types.ErrInvalidCredentials
	}
	return user, nil
}

// UpdatePassword stores a fresh hash of newPassword for the user
func (a *Authenticator) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	hash, err := a.hash(newPassword)
	if err != nil {
		return err
	}
	return a.users.UpdateUserPassword(ctx, userID, hash)
}

// UpdateProfile renames a user and sets the display name, which defaults to
// the username when empty. A non-empty newPassword is rehashed and stored.
// A taken username is ErrConflict.
func (a *Authenticator) UpdateProfile(ctx context.Context, userID int64, username, displayName, newPassword string) (*types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", types.ErrValidation)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	user := &types.User{ID: userID, Username: username, DisplayName: displayName}
	if newPassword != "" {
		hash, err := a.hash(newPassword)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := a.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info("user profile updated", "user_id", userID, "username", username, "password_changed", newPassword != "")
	return a.users.GetUser(ctx, userID)
}

// CreateUser creates an active user. An empty display name defaults to the
// username.
func (a *Authenticator) CreateUser(ctx context.Context, username, displayName, password string) (*types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", types.ErrValidation)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	hash, err := a.hash(password)
	if err != nil {
		return nil, err
	}
	user := &types.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info("user created", "user_id", user.ID, "username", username)
	return user, nil
}

func (a *Authenticator) hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", types.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes
		return "", fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	return string(hash), nil
}
