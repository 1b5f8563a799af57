// Package filter turns expense list query parameters into a typed Filter
// and translates it into a SQL predicate over the expenses table.
//
// Parsing never fails: malformed numbers and dates are treated as absent,
// and pagination falls back to its defaults. Translation is pure so it can
// be tested without a database.
package filter

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expenses/internal/core"
)

const (
	DefaultPage         = 1
	DefaultItemsPerPage = 20
	MaxItemsPerPage     = 100

	// All is the sentinel that disables the category and payment filters.
	All = "all"
)

// searchDateLayouts are the layouts a search term is tried against to add
// the exact-day alternative.
var searchDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

type Filter struct {
	StartDate     *core.Date
	EndDate       *core.Date
	Category      core.Category
	PaymentMethod core.PaymentMethod
	MinAmount     *core.Money
	MaxAmount     *core.Money
	Tags          []string
	Search        string
	Page          int
	ItemsPerPage  int
}

// Parse builds a Filter from query parameters.
func Parse(q url.Values) Filter {
	f := Filter{
		Page:         DefaultPage,
		ItemsPerPage: DefaultItemsPerPage,
	}

	f.StartDate = parseDate(q.Get("startDate"))
	f.EndDate = parseDate(q.Get("endDate"))

	if v := strings.TrimSpace(q.Get("category")); v != "" && !strings.EqualFold(v, All) {
		f.Category = core.Category(v)
	}
	if v := strings.TrimSpace(q.Get("paymentMethod")); v != "" && !strings.EqualFold(v, All) {
		f.PaymentMethod = core.PaymentMethod(v)
	}

	f.MinAmount = parseAmount(q.Get("minAmount"))
	f.MaxAmount = parseAmount(q.Get("maxAmount"))

	if tags := core.NormalizeTags(q.Get("tags")); len(tags) > 0 {
		f.Tags = tags
	}
	f.Search = strings.TrimSpace(q.Get("search"))

	if p, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && p > 0 {
		f.Page = p
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("itemsPerPage"))); err == nil && n > 0 {
		f.ItemsPerPage = min(n, MaxItemsPerPage)
	}
	return f
}

// Range returns a filter that only keeps the date bounds of f.
func (f Filter) Range() Filter {
	return Filter{StartDate: f.StartDate, EndDate: f.EndDate}
}

// Limit is the page size.
func (f Filter) Limit() int {
	if f.ItemsPerPage < 1 {
		return DefaultItemsPerPage
	}
	return f.ItemsPerPage
}

// Offset is the number of rows skipped before the current page.
func (f Filter) Offset() int {
	page := f.Page
	if page < 1 {
		page = DefaultPage
	}
	if page-1 > math.MaxInt/f.Limit() {
		return math.MaxInt
	}
	return (page - 1) * f.Limit()
}

// Where translates the filter into a predicate over the expenses table
// aliased as "e". The owner predicate is always first, so no combination of
// filters can widen the result past userID's own rows.
func (f Filter) Where(userID string) (string, []any) {
	clauses := []string{"e.user_id = ?"}
	args := []any{userID}

	if f.StartDate != nil {
		clauses = append(clauses, "e.date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		clauses = append(clauses, "e.date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.Category != "" {
		clauses = append(clauses, "e.category = ?")
		args = append(args, string(f.Category))
	}
	if f.PaymentMethod != "" {
		clauses = append(clauses, "e.payment_method = ?")
		args = append(args, string(f.PaymentMethod))
	}
	if f.MinAmount != nil {
		clauses = append(clauses, "e.amount_cents >= ?")
		args = append(args, f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		clauses = append(clauses, "e.amount_cents <= ?")
		args = append(args, f.MaxAmount.Cents)
	}
	if len(f.Tags) > 0 {
		clause, tagArgs := tagsExists(f.Tags)
		clauses = append(clauses, clause)
		args = append(args, tagArgs...)
	}
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		alts := []string{
			`fold(e.description) LIKE ? ESCAPE '\'`,
			`fold(e.category) LIKE ? ESCAPE '\'`,
			`fold(e.payment_method) LIKE ? ESCAPE '\'`,
		}
		args = append(args, pattern, pattern, pattern)
		tagClause, tagArgs := tagsExists([]string{f.Search})
		alts = append(alts, tagClause)
		args = append(args, tagArgs...)
		if day, ok := SearchDate(f.Search); ok {
			alts = append(alts, "e.date = ?")
			args = append(args, day.String())
		}
		clauses = append(clauses, "("+strings.Join(alts, " OR ")+")")
	}

	return strings.Join(clauses, " AND "), args
}

// SearchDate reports whether term is a calendar date in one of the
// accepted layouts.
func SearchDate(term string) (core.Date, bool) {
	term = strings.TrimSpace(term)
	for _, layout := range searchDateLayouts {
		if t, err := time.Parse(layout, term); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), true
		}
	}
	return core.Date{}, false
}

func tagsExists(terms []string) (string, []any) {
	alts := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms))
	for _, term := range terms {
		alts = append(alts, `fold(t.tag) LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(term))
	}
	clause := "EXISTS (SELECT 1 FROM expense_tags t WHERE t.expense_id = e.id AND (" +
		strings.Join(alts, " OR ") + "))"
	return clause, args
}

// containsPattern builds a LIKE pattern matching term anywhere. Columns
// are compared through fold, which the storage driver registers as a
// Unicode lower-casing function, so term is folded the same way. LIKE
// metacharacters in term match literally.
func containsPattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func parseDate(s string) *core.Date {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseAmount(s string) *core.Money {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &core.Money{Cents: int64(math.Round(v * 100))}
}
