package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	CategoryFood          Category = "Food & Dining"
	CategoryShopping      Category = "Shopping"
	CategoryTransport     Category = "Transportation"
	CategoryBills         Category = "Bills & Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health & Fitness"
	CategoryTravel        Category = "Travel"
	CategoryEducation     Category = "Education"
	CategoryPersonalCare  Category = "Personal Care"
	CategoryOthers        Category = "Others"
)

const (
	PaymentCash       PaymentMethod = "Cash"
	PaymentCredit     PaymentMethod = "Credit Card"
	PaymentDebit      PaymentMethod = "Debit Card"
	PaymentUPI        PaymentMethod = "UPI"
	PaymentNetBanking PaymentMethod = "Net Banking"
	PaymentOther      PaymentMethod = "Other"
)

const (
	MaxDescriptionLength = 200
	MaxNotesLength       = 1000
)

type (
	Frequency     string
	Category      string
	PaymentMethod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Receipt is the metadata of a file attached to an expense. Filename is
	// authoritative, Path is informational.
	Receipt struct {
		Filename    string `json:"filename"`
		Path        string `json:"path"`
		ContentType string `json:"contentType"`
	}

	// Recurring describes how an expense repeats. Nothing schedules it.
	Recurring struct {
		Frequency Frequency `json:"frequency"`
		EndDate   *Date     `json:"endDate,omitempty"`
	}

	Expense struct {
		ID            string        `json:"id"`
		UserID        string        `json:"userId"`
		Description   string        `json:"description"`
		Amount        Money         `json:"amount"`
		Date          Date          `json:"date"`
		Category      Category      `json:"category"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
		Tags          []string      `json:"tags"`
		Notes         string        `json:"notes,omitempty"`
		Receipt       *Receipt      `json:"receipt,omitempty"`
		Recurring     *Recurring    `json:"recurringDetails,omitempty"`
		CreatedAt     time.Time     `json:"createdAt"`
		UpdatedAt     time.Time     `json:"updatedAt"`
	}
)

var (
	ErrInvalidAmount        = errors.New("amount must be a non-negative number")
	ErrEmptyDescription     = errors.New("description is required")
	ErrDescriptionTooLong   = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrNotesTooLong         = fmt.Errorf("notes too long (max %d characters)", MaxNotesLength)
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidPayment       = errors.New("invalid payment method")
	ErrInvalidFrequency     = errors.New("invalid recurring frequency")
	ErrInvalidDate          = errors.New("invalid date")
	ErrRecurringEndBeforeDt = errors.New("recurring end date must not be before the expense date")
)

// Categories lists the closed set of expense categories in display order.
func Categories() []Category {
	return []Category{
		CategoryFood, CategoryShopping, CategoryTransport, CategoryBills,
		CategoryEntertainment, CategoryHealth, CategoryTravel,
		CategoryEducation, CategoryPersonalCare, CategoryOthers,
	}
}

// PaymentMethods lists the closed set of payment methods in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentCash, PaymentCredit, PaymentDebit,
		PaymentUPI, PaymentNetBanking, PaymentOther,
	}
}

func (c Category) Valid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods() {
		if p == v {
			return true
		}
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD date. RFC 3339 timestamps are accepted and
// truncated to their calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MonthKey returns the YYYY-MM bucket the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Recurring) Validate(from Date) error {
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.EndDate != nil && !r.EndDate.IsZero() && r.EndDate.Before(from.Time) {
		return ErrRecurringEndBeforeDt
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	desc := strings.TrimSpace(e.Description)
	if len(desc) == 0 {
		return ErrEmptyDescription
	}
	if len([]rune(desc)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if len([]rune(e.Notes)) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if !e.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}
	if e.Recurring != nil {
		if err := e.Recurring.Validate(e.Date); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeTags splits a comma separated tag list, trims every entry and
// drops empty and duplicate tags while keeping the first-seen order.
func NormalizeTags(raw ...string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(raw))
	for _, chunk := range raw {
		for _, tag := range strings.Split(chunk, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
