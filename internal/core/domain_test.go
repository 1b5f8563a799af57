package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"
)

func validExpense() Expense {
	return Expense{
		Date:          NewDate(2024, 1, 15),
		Description:   "Lunch",
		Amount:        Money{Cents: 50000},
		Category:      CategoryFood,
		PaymentMethod: PaymentCash,
	}
}

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{Time: time.Time{}}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	if err != nil || d.String() != "2024-01-15" {
		t.Fatalf("unexpected %v (err=%v)", d, err)
	}
	d, err = ParseDate("2024-01-15T23:30:00Z")
	if err != nil || d.String() != "2024-01-15" {
		t.Fatalf("unexpected %v (err=%v)", d, err)
	}
	if _, err := ParseDate("15/01/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateJSON(t *testing.T) {
	b, _ := json.Marshal(NewDate(2024, 3, 9))
	if string(b) != `"2024-03-09"` {
		t.Fatalf("unexpected json %s", b)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-09"`), &d); err != nil || d.MonthKey() != "2024-03" {
		t.Fatalf("unexpected %v (err=%v)", d, err)
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := validExpense()
	zero.Amount = Money{}
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount must be accepted, got %v", err)
	}

	cases := map[string]func(e *Expense){
		"zero date":       func(e *Expense) { e.Date = Date{} },
		"empty desc":      func(e *Expense) { e.Description = "  " },
		"long desc":       func(e *Expense) { e.Description = strings.Repeat("a", MaxDescriptionLength+1) },
		"negative amount": func(e *Expense) { e.Amount = Money{Cents: -1} },
		"bad category":    func(e *Expense) { e.Category = "Groceries" },
		"bad payment":     func(e *Expense) { e.PaymentMethod = "Cheque" },
		"long notes":      func(e *Expense) { e.Notes = strings.Repeat("n", MaxNotesLength+1) },
		"bad frequency":   func(e *Expense) { e.Recurring = &Recurring{Frequency: "hourly"} },
		"end before date": func(e *Expense) {
			end := NewDate(2023, 12, 31)
			e.Recurring = &Recurring{Frequency: Monthly, EndDate: &end}
		},
	}
	for name, mutate := range cases {
		e := validExpense()
		mutate(&e)
		if err := e.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags(" lunch, work ,,lunch", "team")
	want := []string{"lunch", "work", "team"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := NormalizeTags(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	task := Task{Title: "write", Status: StatusTodo, Priority: PriorityMedium}

	task.SetStatus(StatusCompleted, now)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("completedAt should be set on completion")
	}
	task.SetStatus(StatusCompleted, now.Add(time.Hour))
	if !task.CompletedAt.Equal(now) {
		t.Fatalf("completedAt must not move when already completed")
	}
	task.SetStatus(StatusInProgress, now)
	if task.CompletedAt != nil {
		t.Fatalf("completedAt should be cleared when leaving completed")
	}
}

func TestTaskValidateNew(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	task := Task{Title: "t", Status: StatusTodo, Priority: PriorityLow, DueDate: &past}
	if err := task.ValidateNew(now); !errors.Is(err, ErrDueDateInThePast) {
		t.Fatalf("expected ErrDueDateInThePast, got %v", err)
	}
	// Stored tasks may carry an expired due date.
	if err := task.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestUserValidate(t *testing.T) {
	u := User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x"}
	if err := u.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	u.PasswordHash = ""
	if err := u.Validate(); !errors.Is(err, ErrMissingPassword) {
		t.Fatalf("expected ErrMissingPassword, got %v", err)
	}
	u.IsOAuth = true
	if err := u.Validate(); err != nil {
		t.Fatalf("oauth users need no password, got %v", err)
	}
	u.Email = "not-an-email"
	if err := u.Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestResetPending(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	if !(User{ResetTokenHash: "h", ResetExpires: &future}).ResetPending(now) {
		t.Fatalf("expected pending reset")
	}
	if (User{ResetTokenHash: "h", ResetExpires: &past}).ResetPending(now) {
		t.Fatalf("expired token is not pending")
	}
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation(ErrEmptyDescription), http.StatusBadRequest},
		{NewError(KindInvalidToken, "bad token", nil), http.StatusUnauthorized},
		{NewError(KindForbidden, "please reset your password", nil), http.StatusForbidden},
		{NotFound("Expense not found"), http.StatusNotFound},
		{NewError(KindReceiptNotFound, "Receipt not found", nil), http.StatusNotFound},
		{NewError(KindRateLimited, "slow down", nil), http.StatusTooManyRequests},
		{NewError(KindQueryFailed, "query failed", errors.New("db")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.want {
			t.Fatalf("%v: got %d, want %d", tc.err, got, tc.want)
		}
	}
	wrapped := errors.Join(errors.New("ctx"), NotFound("gone"))
	if KindOf(wrapped) != KindNotFound || Message(wrapped) != "gone" {
		t.Fatalf("wrapped domain errors must be found")
	}
}
