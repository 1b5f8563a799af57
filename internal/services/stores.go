// Package services implements the application operations on top of storage,
// receipts and mail dispatch.
package services

import (
	"context"
	"errors"

	"expenses/internal/core"
	"expenses/internal/filter"
	"expenses/internal/storage"
)

// UserStore is the user persistence the auth flows need.
type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	UpdateUser(ctx context.Context, u *core.User) error
	UserByID(ctx context.Context, id string) (*core.User, error)
	UserByEmail(ctx context.Context, email string) (*core.User, error)
	UserByGoogleID(ctx context.Context, googleID string) (*core.User, error)
	UserByResetToken(ctx context.Context, tokenHash string) (*core.User, error)
}

// ExpenseStore is the expense persistence.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e *core.Expense) error
	UpdateExpense(ctx context.Context, e *core.Expense) error
	DeleteExpense(ctx context.Context, userID, id string) error
	GetExpense(ctx context.Context, userID, id string) (*core.Expense, error)
	ListExpenses(ctx context.Context, userID string, f filter.Filter) ([]core.Expense, int, error)
	AllExpenses(ctx context.Context, userID string, f filter.Filter) ([]core.Expense, error)
	ReceiptContentType(ctx context.Context, userID, filename string) (string, error)
}

// TaskStore is the task persistence.
type TaskStore interface {
	CreateTask(ctx context.Context, t *core.Task) error
	UpdateTask(ctx context.Context, t *core.Task) error
	DeleteTask(ctx context.Context, userID, id string) error
	GetTask(ctx context.Context, userID, id string) (*core.Task, error)
	ListTasks(ctx context.Context, userID string, f storage.TaskFilter) ([]core.Task, error)
}

// notFoundOr maps a storage miss to a NotFound error with msg and anything
// else to an internal error.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return core.NewError(core.KindNotFound, msg, err)
	}
	return core.Internal("Server error", err)
}

var (
	_ UserStore    = (*storage.SQLiteRepository)(nil)
	_ ExpenseStore = (*storage.SQLiteRepository)(nil)
	_ TaskStore    = (*storage.SQLiteRepository)(nil)
)
