package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"expenses/internal/core"
)

const userColumns = `id, name, email, password_hash, google_id, is_oauth, picture, locale,
	reset_token_hash, reset_expires, reset_attempts, last_login, created_at, updated_at`

// CreateUser inserts u, stamping its timestamps. A taken email or Google id
// yields ErrDuplicate.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	now := r.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, nullString(u.PasswordHash), nullString(u.GoogleID), u.IsOAuth,
		u.Picture, u.Locale, nullString(u.ResetTokenHash), nullTime(u.ResetExpires),
		u.ResetAttempts, nullTime(u.LastLogin), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser writes every mutable field of u.
func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *core.User) error {
	u.UpdatedAt = r.now().UTC()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET
		name = ?, email = ?, password_hash = ?, google_id = ?, is_oauth = ?, picture = ?, locale = ?,
		reset_token_hash = ?, reset_expires = ?, reset_attempts = ?, last_login = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Email, nullString(u.PasswordHash), nullString(u.GoogleID), u.IsOAuth, u.Picture, u.Locale,
		nullString(u.ResetTokenHash), nullTime(u.ResetExpires), u.ResetAttempts, nullTime(u.LastLogin),
		formatTime(u.UpdatedAt), u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %s: %w", u.ID, ErrDuplicate)
		}
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return expectOne(res, "user "+u.ID)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (*core.User, error) {
	return r.userWhere(ctx, "id = ?", id)
}

// UserByEmail looks a user up by normalized email.
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.userWhere(ctx, "email = ?", core.NormalizeEmail(email))
}

func (r *SQLiteRepository) UserByGoogleID(ctx context.Context, googleID string) (*core.User, error) {
	return r.userWhere(ctx, "google_id = ?", googleID)
}

// UserByResetToken finds the user holding the given reset token hash.
// Expiry is checked by the caller.
func (r *SQLiteRepository) UserByResetToken(ctx context.Context, tokenHash string) (*core.User, error) {
	return r.userWhere(ctx, "reset_token_hash = ?", tokenHash)
}

func (r *SQLiteRepository) userWhere(ctx context.Context, where string, arg any) (*core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*core.User, error) {
	var (
		u                             core.User
		password, googleID, resetHash sql.NullString
		resetExpires, lastLogin       sql.NullString
		createdAt, updatedAt          string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &password, &googleID, &u.IsOAuth, &u.Picture, &u.Locale,
		&resetHash, &resetExpires, &u.ResetAttempts, &lastLogin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.PasswordHash = password.String
	u.GoogleID = googleID.String
	u.ResetTokenHash = resetHash.String

	var err error
	if u.ResetExpires, err = parseNullTime(resetExpires); err != nil {
		return nil, err
	}
	if u.LastLogin, err = parseNullTime(lastLogin); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
