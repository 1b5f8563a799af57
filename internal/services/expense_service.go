package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"expenses/internal/analytics"
	"expenses/internal/core"
	"expenses/internal/filter"
	"expenses/internal/log"
	"expenses/internal/mail"
	"expenses/internal/receipts"
	"expenses/internal/storage"
)

// ExpenseInput carries the client-supplied fields of an expense. A nil Date
// means today on create and unchanged on update.
type ExpenseInput struct {
	Description   string
	Amount        core.Money
	Date          *core.Date
	Category      core.Category
	PaymentMethod core.PaymentMethod
	Tags          []string
	Notes         string
	Recurring     *core.Recurring
}

// ExpensePage is one page of the query engine's result.
type ExpensePage struct {
	Expenses []core.Expense `json:"expenses"`
	filter.Pagination
}

// ReceiptFile is an open receipt ready to stream.
type ReceiptFile struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExpenseService orchestrates expense operations across storage, receipt
// files and the mail queue.
type ExpenseService struct {
	store    ExpenseStore
	users    UserStore
	receipts *receipts.Store
	mailer   mail.Dispatcher
	appURL   string
	logger   *log.Logger
	events   *log.StructuredLogger
}

func NewExpenseService(store ExpenseStore, users UserStore, receiptStore *receipts.Store, mailer mail.Dispatcher, appURL string) *ExpenseService {
	logger := log.WithComponent(log.ComponentExpense)
	return &ExpenseService{
		store:    store,
		users:    users,
		receipts: receiptStore,
		mailer:   mailer,
		appURL:   appURL,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
	}
}

// List runs the query engine for userID.
func (s *ExpenseService) List(ctx context.Context, userID string, f filter.Filter) (*ExpensePage, error) {
	list, total, err := s.store.ListExpenses(ctx, userID, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "Expense query failed", log.FieldUserID, userID, log.FieldError, err)
		return nil, core.NewError(core.KindQueryFailed, "Failed to fetch expenses", err)
	}
	return &ExpensePage{Expenses: list, Pagination: f.Paginate(total)}, nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (*core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "Expense not found")
	}
	return e, nil
}

// Create validates in and the optional receipt, stores the receipt file,
// persists the expense and queues a notification. A queueing failure is
// logged and does not affect the result.
func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput, upload *receipts.Upload) (*core.Expense, error) {
	e := &core.Expense{ID: uuid.NewString(), UserID: userID, Date: core.Today()}
	in.apply(e)
	if err := e.Validate(); err != nil {
		return nil, core.Validation(err)
	}

	if upload != nil {
		rc, err := s.receipts.Save(*upload)
		if err != nil {
			return nil, err
		}
		e.Receipt = rc
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		if e.Receipt != nil {
			s.removeReceipt(ctx, e.Receipt.Filename)
		}
		return nil, core.Internal("Failed to create expense", err)
	}

	s.events.LogExpenseCreated(ctx, userID, e.ID, e.Description, e.Amount.Cents, string(e.Category))
	s.notifyCreated(ctx, e)
	return e, nil
}

// Update replaces every field of the expense. The receipt only changes
// when a new file is supplied and the previous file is kept on disk.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, in ExpenseInput, upload *receipts.Upload) (*core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "Expense not found")
	}
	in.apply(e)
	if err := e.Validate(); err != nil {
		return nil, core.Validation(err)
	}

	var saved *core.Receipt
	if upload != nil {
		if saved, err = s.receipts.Save(*upload); err != nil {
			return nil, err
		}
		e.Receipt = saved
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		if saved != nil {
			s.removeReceipt(ctx, saved.Filename)
		}
		return nil, notFoundOr(err, "Expense not found")
	}
	s.logger.InfoContext(ctx, "Expense updated",
		log.FieldExpenseID, e.ID, log.FieldUserID, userID, log.FieldOperation, log.OpUpdate)
	return e, nil
}

// Delete removes the expense and then, best effort, its receipt file.
func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return notFoundOr(err, "Expense not found")
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return notFoundOr(err, "Expense not found")
	}
	if e.Receipt != nil {
		s.removeReceipt(ctx, e.Receipt.Filename)
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldExpenseID, id, log.FieldUserID, userID, log.FieldOperation, log.OpDelete)
	return nil
}

// Analytics summarizes userID's expenses within the date bounds of f.
func (s *ExpenseService) Analytics(ctx context.Context, userID string, f filter.Filter) (analytics.Summary, error) {
	list, err := s.store.AllExpenses(ctx, userID, f.Range())
	if err != nil {
		return analytics.Summary{}, core.NewError(core.KindQueryFailed, "Failed to fetch analytics", err)
	}
	return analytics.Summarize(list), nil
}

// OpenReceipt opens a receipt file that belongs to one of userID's
// expenses.
func (s *ExpenseService) OpenReceipt(ctx context.Context, userID, filename string) (*ReceiptFile, error) {
	name := receipts.Sanitize(filename)
	notFound := core.NewError(core.KindReceiptNotFound, "Receipt not found", nil)
	if name == "" {
		return nil, notFound
	}
	stored, err := s.store.ReceiptContentType(ctx, userID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, core.Internal("Failed to read receipt", err)
	}
	f, contentType, err := s.receipts.Open(name)
	if err != nil {
		return nil, err
	}
	if stored != "" {
		contentType = stored
	}
	return &ReceiptFile{File: f, Filename: name, ContentType: contentType}, nil
}

func (s *ExpenseService) removeReceipt(ctx context.Context, filename string) {
	if err := s.receipts.Remove(filename); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove receipt file",
			log.FieldFilename, filename, log.FieldError, err)
	}
}

func (s *ExpenseService) notifyCreated(ctx context.Context, e *core.Expense) {
	u, err := s.users.UserByID(ctx, e.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "Skipping expense notification", log.FieldUserID, e.UserID, log.FieldError, err)
		return
	}
	msg := mail.NewMessage(mail.TemplateExpenseAdded, u.Email, map[string]string{
		"name":          u.Name,
		"description":   e.Description,
		"amount":        fmt.Sprintf("%.2f", e.Amount.Value()),
		"category":      string(e.Category),
		"paymentMethod": string(e.PaymentMethod),
		"date":          e.Date.String(),
		"appURL":        s.appURL,
	})
	if err := s.mailer.Dispatch(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to queue expense notification",
			log.FieldExpenseID, e.ID, log.FieldError, err)
	}
}

func (in ExpenseInput) apply(e *core.Expense) {
	e.Description = strings.TrimSpace(in.Description)
	e.Amount = in.Amount
	if in.Date != nil {
		e.Date = *in.Date
	}
	e.Category = in.Category
	e.PaymentMethod = in.PaymentMethod
	e.Tags = core.NormalizeTags(in.Tags...)
	e.Notes = strings.TrimSpace(in.Notes)
	e.Recurring = in.Recurring
}
