package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

const userColumns = `id, username, display_name, password_hash, is_active`

// CreateUser inserts a user. A taken username is ErrConflict.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *types.User) error {
	query := `
		INSERT INTO users (username, display_name, password_hash, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	err := insertReturningID(ctx, s.querier(), &user.ID, "user", query,
		user.Username, user.DisplayName, user.PasswordHash, user.IsActive, s.timestamp())
	if isUniqueViolation(err, "users.username") {
		return fmt.Errorf("%w: username %s is taken", types.ErrConflict, user.Username)
	}
	return wrapErr(ctx, "create user", err)
}

// GetUser returns a user by id, active or not
func (s *SQLiteStorage) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return user, wrapErr(ctx, "get user", err)
}

// GetActiveUserByUsername returns the active user with the given username
func (s *SQLiteStorage) GetActiveUserByUsername(ctx context.Context, username string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? AND is_active = 1`, username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return user, wrapErr(ctx, "get user", err)
}

// UpdateUser rewrites username and display name. The password hash is only
// replaced when user.PasswordHash is not empty. A taken username is
// ErrConflict.
func (s *SQLiteStorage) UpdateUser(ctx context.Context, user *types.User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, display_name = ?, password_hash = COALESCE(NULLIF(?, ''), password_hash)
		WHERE id = ?
	`, user.Username, user.DisplayName, user.PasswordHash, user.ID)
	if isUniqueViolation(err, "users.username") {
		return fmt.Errorf("%w: username %s is taken", types.ErrConflict, user.Username)
	}
	if err != nil {
		return wrapErr(ctx, "update user", err)
	}
	return requireAffected(result, "user", user.ID)
}

// UpdateUserPassword replaces the stored password hash
func (s *SQLiteStorage) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return wrapErr(ctx, "update password", err)
	}
	return requireAffected(result, "user", userID)
}

func scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	if err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.IsActive); err != nil {
		return nil, err
	}
	return &user, nil
}
