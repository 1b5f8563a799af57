package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"expenses/internal/core"
	"expenses/internal/filter"
)

const expenseColumns = `e.id, e.user_id, e.description, e.amount_cents, e.date, e.category, e.payment_method,
	e.notes, e.receipt_filename, e.receipt_path, e.receipt_content_type,
	e.recurring_frequency, e.recurring_end_date, e.created_at, e.updated_at`

// expenseOrder keeps pages disjoint when several expenses share a date.
const expenseOrder = `ORDER BY e.date DESC, e.created_at DESC, e.id DESC`

// CreateExpense inserts e and its tags.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	now := r.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	return r.inTx(ctx, func(tx *sql.Tx) error {
		rf, rp, rct := receiptColumns(e.Receipt)
		freq, end := recurringColumns(e.Recurring)
		_, err := tx.ExecContext(ctx, `INSERT INTO expenses (
			id, user_id, description, amount_cents, date, category, payment_method, notes,
			receipt_filename, receipt_path, receipt_content_type, recurring_frequency, recurring_end_date,
			created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.UserID, e.Description, e.Amount.Cents, e.Date.String(), string(e.Category),
			string(e.PaymentMethod), e.Notes, rf, rp, rct, freq, end,
			formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		return writeTags(ctx, tx, e.ID, e.Tags)
	})
}

// UpdateExpense replaces every mutable field of e. The owner is part of
// the key and never changes.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e *core.Expense) error {
	e.UpdatedAt = r.now().UTC()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		rf, rp, rct := receiptColumns(e.Receipt)
		freq, end := recurringColumns(e.Recurring)
		res, err := tx.ExecContext(ctx, `UPDATE expenses SET
			description = ?, amount_cents = ?, date = ?, category = ?, payment_method = ?, notes = ?,
			receipt_filename = ?, receipt_path = ?, receipt_content_type = ?,
			recurring_frequency = ?, recurring_end_date = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			e.Description, e.Amount.Cents, e.Date.String(), string(e.Category), string(e.PaymentMethod),
			e.Notes, rf, rp, rct, freq, end, formatTime(e.UpdatedAt), e.ID, e.UserID)
		if err != nil {
			return fmt.Errorf("update expense %s: %w", e.ID, err)
		}
		if err := expectOne(res, "expense "+e.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_tags WHERE expense_id = ?`, e.ID); err != nil {
			return fmt.Errorf("clear tags of %s: %w", e.ID, err)
		}
		return writeTags(ctx, tx, e.ID, e.Tags)
	})
}

// DeleteExpense removes the expense id owned by userID. Its tags go with it.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return expectOne(res, "expense "+id)
}

// GetExpense returns the expense id if userID owns it.
func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (*core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e WHERE e.id = ? AND e.user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get expense %s: %w", id, err)
	}
	list, err := r.collectExpenses(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// ListExpenses returns the requested page of userID's expenses matching f
// and the total number of matches.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, f filter.Filter) ([]core.Expense, int, error) {
	where, args := f.Where(userID)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses e WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit(), f.Offset())
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e WHERE `+where+` `+expenseOrder+` LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	list, err := r.collectExpenses(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// AllExpenses returns every expense of userID matching f, ignoring
// pagination.
func (r *SQLiteRepository) AllExpenses(ctx context.Context, userID string, f filter.Filter) ([]core.Expense, error) {
	where, args := f.Where(userID)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e WHERE `+where+` `+expenseOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("list all expenses: %w", err)
	}
	return r.collectExpenses(ctx, rows)
}

// ReceiptContentType returns the content type stored with the receipt
// filename on one of userID's expenses. ErrNotFound means no such receipt
// belongs to userID.
func (r *SQLiteRepository) ReceiptContentType(ctx context.Context, userID, filename string) (string, error) {
	var ct sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT receipt_content_type FROM expenses WHERE user_id = ? AND receipt_filename = ? LIMIT 1`,
		userID, filename).Scan(&ct)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get receipt content type: %w", err)
	}
	return ct.String, nil
}

func (r *SQLiteRepository) collectExpenses(ctx context.Context, rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	list := []core.Expense{}
	index := map[string]int{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		index[e.ID] = len(list)
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	rows.Close()

	if len(list) == 0 {
		return list, nil
	}
	ids := make([]any, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	tagRows, err := r.db.QueryContext(ctx,
		`SELECT expense_id, tag FROM expense_tags WHERE expense_id IN (`+placeholders(len(ids))+`)
		ORDER BY expense_id, position`, ids...)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if i, ok := index[id]; ok {
			list[i].Tags = append(list[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return list, nil
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		e                       core.Expense
		date, category, payment string
		rf, rp, rct, freq, end  sql.NullString
		createdAt, updatedAt    string
	)
	err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.Amount.Cents, &date, &category, &payment,
		&e.Notes, &rf, &rp, &rct, &freq, &end, &createdAt, &updatedAt)
	if err != nil {
		return e, err
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return e, err
	}
	e.Category = core.Category(category)
	e.PaymentMethod = core.PaymentMethod(payment)
	e.Tags = []string{}
	if rf.Valid && rf.String != "" {
		e.Receipt = &core.Receipt{Filename: rf.String, Path: rp.String, ContentType: rct.String}
	}
	if freq.Valid && freq.String != "" {
		e.Recurring = &core.Recurring{Frequency: core.Frequency(freq.String)}
		if end.Valid && end.String != "" {
			d, err := core.ParseDate(end.String)
			if err != nil {
				return e, err
			}
			e.Recurring.EndDate = &d
		}
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return e, err
	}
	return e, nil
}

func writeTags(ctx context.Context, tx *sql.Tx, expenseID string, tags []string) error {
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_tags (expense_id, position, tag) VALUES (?, ?, ?)`, expenseID, i, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

func receiptColumns(rc *core.Receipt) (sql.NullString, sql.NullString, sql.NullString) {
	if rc == nil || rc.Filename == "" {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}
	}
	return nullString(rc.Filename), nullString(rc.Path), nullString(rc.ContentType)
}

func recurringColumns(rec *core.Recurring) (sql.NullString, sql.NullString) {
	if rec == nil || rec.Frequency == "" {
		return sql.NullString{}, sql.NullString{}
	}
	end := sql.NullString{}
	if rec.EndDate != nil && !rec.EndDate.IsZero() {
		end = nullString(rec.EndDate.String())
	}
	return nullString(string(rec.Frequency)), end
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
