// Package analytics aggregates a user's expenses into the dashboard summary.
package analytics

import (
	"sort"

	"expenses/internal/core"
)

// TopN is the number of largest expenses reported in a Summary.
const TopN = 3

// Extreme is a single expense picked out by amount.
type Extreme struct {
	Amount   core.Money    `json:"amount"`
	Category core.Category `json:"category"`
	Date     core.Date     `json:"date"`
}

// Summary is the aggregate view of a set of expenses. Lowest is nil when
// there are no expenses.
type Summary struct {
	TotalAmount     core.Money            `json:"totalAmount"`
	AverageAmount   core.Money            `json:"averageAmount"`
	AveragePerMonth core.Money            `json:"averagePerMonth"`
	Count           int                   `json:"count"`
	Highest         Extreme               `json:"highestExpense"`
	Lowest          *Extreme              `json:"lowestExpense"`
	ByCategory      map[string]core.Money `json:"categoryDistribution"`
	ByPaymentMethod map[string]core.Money `json:"paymentMethodDistribution"`
	ByMonth         map[string]core.Money `json:"monthlyTrend"`
	Top             []core.Expense        `json:"topExpenses"`
}

// Summarize computes the Summary of expenses. It does not filter by owner
// or date; callers pass the already scoped set.
func Summarize(expenses []core.Expense) Summary {
	s := Summary{
		ByCategory:      map[string]core.Money{},
		ByPaymentMethod: map[string]core.Money{},
		ByMonth:         map[string]core.Money{},
		Top:             []core.Expense{},
		Count:           len(expenses),
	}
	if len(expenses) == 0 {
		return s
	}

	var total int64
	for i, e := range expenses {
		cents := e.Amount.Cents
		total += cents
		add(s.ByCategory, string(e.Category), cents)
		add(s.ByPaymentMethod, string(e.PaymentMethod), cents)
		add(s.ByMonth, e.Date.MonthKey(), cents)

		if i == 0 || cents > s.Highest.Amount.Cents {
			s.Highest = extremeOf(e)
		}
		if s.Lowest == nil || cents < s.Lowest.Amount.Cents {
			low := extremeOf(e)
			s.Lowest = &low
		}
	}

	s.TotalAmount = core.Money{Cents: total}
	s.AverageAmount = core.Money{Cents: divRound(total, int64(len(expenses)))}
	s.AveragePerMonth = core.Money{Cents: divRound(total, int64(len(s.ByMonth)))}
	s.Top = top(expenses, TopN)
	return s
}

func add(m map[string]core.Money, key string, cents int64) {
	m[key] = core.Money{Cents: m[key].Cents + cents}
}

func extremeOf(e core.Expense) Extreme {
	return Extreme{Amount: e.Amount, Category: e.Category, Date: e.Date}
}

// top returns the n largest expenses. Ties go to the later date, then to
// the smaller id, so the result does not depend on input order.
func top(expenses []core.Expense, n int) []core.Expense {
	sorted := make([]core.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		return a.ID < b.ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// divRound divides non-negative cents rounding half up.
func divRound(total, n int64) int64 {
	if n == 0 {
		return 0
	}
	return (total + n/2) / n
}
