package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"expenses/internal/core"
	"expenses/internal/filter"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo  *SQLiteRepository
	ctx   context.Context
	clock time.Time
	alice *core.User
	bob   *core.User
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(filepath.Join(s.T().TempDir(), "data", "test.db"))
	require.NoError(s.T(), err)
	s.repo = repo
	s.ctx = context.Background()
	s.clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// Each call advances the clock so created_at is strictly increasing.
	s.repo.now = func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}

	s.alice = s.newUser("alice@example.com")
	s.bob = s.newUser("bob@example.com")
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) newUser(email string) *core.User {
	u := &core.User{ID: uuid.NewString(), Name: "User", Email: email, PasswordHash: "hash"}
	require.NoError(s.T(), s.repo.CreateUser(s.ctx, u))
	return u
}

func (s *RepositoryTestSuite) addExpense(owner *core.User, desc string, cents int64, date core.Date, mod ...func(*core.Expense)) *core.Expense {
	e := &core.Expense{
		ID:            uuid.NewString(),
		UserID:        owner.ID,
		Description:   desc,
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Category:      core.CategoryFood,
		PaymentMethod: core.PaymentCash,
		Tags:          []string{},
	}
	for _, m := range mod {
		m(e)
	}
	require.NoError(s.T(), s.repo.CreateExpense(s.ctx, e))
	return e
}

func (s *RepositoryTestSuite) TestMigrateIsRepeatable() {
	path := filepath.Join(s.T().TempDir(), "schema.db")
	first, err := Migrate(path)
	s.Require().NoError(err)
	s.Equal(uint(1), first)

	again, err := Migrate(path)
	s.Require().NoError(err)
	s.Equal(first, again)
}

func (s *RepositoryTestSuite) TestUserLookups() {
	got, err := s.repo.UserByEmail(s.ctx, "ALICE@example.com ")
	s.Require().NoError(err)
	s.Equal(s.alice.ID, got.ID)
	s.Equal("hash", got.PasswordHash)
	s.False(got.CreatedAt.IsZero())

	_, err = s.repo.UserByID(s.ctx, "missing")
	s.True(IsNotFound(err))
}

func (s *RepositoryTestSuite) TestDuplicateEmail() {
	dup := &core.User{ID: uuid.NewString(), Name: "Other", Email: "alice@example.com", PasswordHash: "x"}
	err := s.repo.CreateUser(s.ctx, dup)
	s.ErrorIs(err, ErrDuplicate)
}

func (s *RepositoryTestSuite) TestOAuthUserWithoutPassword() {
	u := &core.User{ID: uuid.NewString(), Name: "G", Email: "g@example.com", GoogleID: "g-1", IsOAuth: true}
	s.Require().NoError(s.repo.CreateUser(s.ctx, u))

	got, err := s.repo.UserByGoogleID(s.ctx, "g-1")
	s.Require().NoError(err)
	s.Empty(got.PasswordHash)
	s.True(got.IsOAuth)

	noPass := &core.User{ID: uuid.NewString(), Name: "N", Email: "n@example.com"}
	s.Error(s.repo.CreateUser(s.ctx, noPass))
}

func (s *RepositoryTestSuite) TestUpdateUserResetFields() {
	exp := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	s.alice.ResetTokenHash = "abc"
	s.alice.ResetExpires = &exp
	s.alice.ResetAttempts = 2
	s.Require().NoError(s.repo.UpdateUser(s.ctx, s.alice))

	got, err := s.repo.UserByResetToken(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(s.alice.ID, got.ID)
	s.Require().NotNil(got.ResetExpires)
	s.True(exp.Equal(*got.ResetExpires))
	s.Equal(2, got.ResetAttempts)
}

func (s *RepositoryTestSuite) TestExpenseRoundTrip() {
	end := core.NewDate(2024, 12, 31)
	e := s.addExpense(s.alice, "Gym", 4999, core.NewDate(2024, 1, 10), func(e *core.Expense) {
		e.Category = core.CategoryHealth
		e.PaymentMethod = core.PaymentCredit
		e.Tags = []string{"fitness", "monthly"}
		e.Notes = "annual plan"
		e.Receipt = &core.Receipt{Filename: "r.pdf", Path: "/tmp/r.pdf", ContentType: "application/pdf"}
		e.Recurring = &core.Recurring{Frequency: core.Monthly, EndDate: &end}
	})

	got, err := s.repo.GetExpense(s.ctx, s.alice.ID, e.ID)
	s.Require().NoError(err)
	s.Equal(e.Description, got.Description)
	s.Equal(e.Amount, got.Amount)
	s.Equal("2024-01-10", got.Date.String())
	s.Equal([]string{"fitness", "monthly"}, got.Tags)
	s.Equal(e.Receipt, got.Receipt)
	s.Require().NotNil(got.Recurring)
	s.Equal(core.Monthly, got.Recurring.Frequency)
	s.Equal("2024-12-31", got.Recurring.EndDate.String())
}

func (s *RepositoryTestSuite) TestExpenseScopedToOwner() {
	e := s.addExpense(s.alice, "Private", 100, core.NewDate(2024, 1, 1))

	_, err := s.repo.GetExpense(s.ctx, s.bob.ID, e.ID)
	s.True(IsNotFound(err))

	e2 := *e
	e2.UserID = s.bob.ID
	s.True(IsNotFound(s.repo.UpdateExpense(s.ctx, &e2)))
	s.True(IsNotFound(s.repo.DeleteExpense(s.ctx, s.bob.ID, e.ID)))

	list, total, err := s.repo.ListExpenses(s.ctx, s.bob.ID, filter.Parse(url.Values{"search": {"Private"}}))
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(list)
}

func (s *RepositoryTestSuite) TestUpdateReplacesTags() {
	e := s.addExpense(s.alice, "Taxi", 1500, core.NewDate(2024, 2, 1), func(e *core.Expense) {
		e.Tags = []string{"work", "late"}
	})
	e.Tags = []string{"personal"}
	e.Amount = core.Money{Cents: 1700}
	s.Require().NoError(s.repo.UpdateExpense(s.ctx, e))

	got, err := s.repo.GetExpense(s.ctx, s.alice.ID, e.ID)
	s.Require().NoError(err)
	s.Equal([]string{"personal"}, got.Tags)
	s.Equal(int64(1700), got.Amount.Cents)
}

func (s *RepositoryTestSuite) TestDeleteExpense() {
	e := s.addExpense(s.alice, "Snack", 300, core.NewDate(2024, 2, 1), func(e *core.Expense) {
		e.Tags = []string{"x"}
	})
	s.Require().NoError(s.repo.DeleteExpense(s.ctx, s.alice.ID, e.ID))
	_, err := s.repo.GetExpense(s.ctx, s.alice.ID, e.ID)
	s.True(IsNotFound(err))
}

func (s *RepositoryTestSuite) TestListFiltersAndPagination() {
	for i := 1; i <= 25; i++ {
		s.addExpense(s.alice, fmt.Sprintf("Item %02d", i), int64(i*100), core.NewDate(2024, 3, i))
	}
	s.addExpense(s.bob, "Bob item", 100, core.NewDate(2024, 3, 1))

	page1, total, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{}))
	s.Require().NoError(err)
	s.Equal(25, total)
	s.Len(page1, 20)
	s.Equal("Item 25", page1[0].Description)

	page2, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"page": {"2"}}))
	s.Require().NoError(err)
	s.Len(page2, 5)
	s.Equal("Item 05", page2[0].Description)

	beyond, total, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"page": {"9"}}))
	s.Require().NoError(err)
	s.Equal(25, total)
	s.Empty(beyond)

	ranged, total, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{
		"startDate": {"2024-03-10"},
		"endDate":   {"2024-03-12"},
		"minAmount": {"10.5"},
	}))
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal([]string{"Item 12", "Item 11"}, descriptions(ranged))
}

func (s *RepositoryTestSuite) TestSameDateOrderIsStable() {
	day := core.NewDate(2024, 4, 1)
	first := s.addExpense(s.alice, "first", 100, day)
	second := s.addExpense(s.alice, "second", 100, day)

	list, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{}))
	s.Require().NoError(err)
	s.Equal([]string{second.ID, first.ID}, []string{list[0].ID, list[1].ID})
}

func (s *RepositoryTestSuite) TestTagAndSearchFilters() {
	day := core.NewDate(2024, 5, 15)
	s.addExpense(s.alice, "Lunch with team", 1200, day, func(e *core.Expense) {
		e.Tags = []string{"Work", "food"}
	})
	s.addExpense(s.alice, "Groceries", 5600, core.NewDate(2024, 5, 16), func(e *core.Expense) {
		e.Category = core.CategoryShopping
		e.PaymentMethod = core.PaymentUPI
		e.Tags = []string{"home"}
	})
	s.addExpense(s.alice, "100% juice", 300, core.NewDate(2024, 5, 17))

	byTag, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"tags": {"wor,nothing"}}))
	s.Require().NoError(err)
	s.Equal([]string{"Lunch with team"}, descriptions(byTag))

	byPayment, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"search": {"upi"}}))
	s.Require().NoError(err)
	s.Equal([]string{"Groceries"}, descriptions(byPayment))

	byTagSearch, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"search": {"HOME"}}))
	s.Require().NoError(err)
	s.Equal([]string{"Groceries"}, descriptions(byTagSearch))

	byDate, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"search": {"2024-05-15"}}))
	s.Require().NoError(err)
	s.Equal([]string{"Lunch with team"}, descriptions(byDate))

	literal, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"search": {"0%"}}))
	s.Require().NoError(err)
	s.Equal([]string{"100% juice"}, descriptions(literal))

	byCategory, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{
		"category":      {"Shopping"},
		"paymentMethod": {"all"},
	}))
	s.Require().NoError(err)
	s.Equal([]string{"Groceries"}, descriptions(byCategory))
}

func (s *RepositoryTestSuite) TestSearchAndTagsFoldUnicode() {
	s.addExpense(s.alice, "Café Éclair", 450, core.NewDate(2024, 6, 1), func(e *core.Expense) {
		e.Tags = []string{"Über"}
	})
	s.addExpense(s.alice, "Bus ticket", 250, core.NewDate(2024, 6, 2))

	for _, term := range []string{"éclair", "ÉCLAIR", "Éclair"} {
		got, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"search": {term}}))
		s.Require().NoError(err)
		s.Equal([]string{"Café Éclair"}, descriptions(got), "search %q", term)
	}
	for _, term := range []string{"über", "ÜBER", "Über"} {
		got, _, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"tags": {term}}))
		s.Require().NoError(err)
		s.Equal([]string{"Café Éclair"}, descriptions(got), "tags %q", term)
	}
}

func (s *RepositoryTestSuite) TestHugePageIsEmpty() {
	s.addExpense(s.alice, "Coffee", 300, core.NewDate(2024, 6, 1))

	got, total, err := s.repo.ListExpenses(s.ctx, s.alice.ID, filter.Parse(url.Values{"page": {"922337203685477580"}}))
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Empty(got)
}

func (s *RepositoryTestSuite) TestAllExpensesAndReceiptOwnership() {
	s.addExpense(s.alice, "a", 100, core.NewDate(2024, 1, 1), func(e *core.Expense) {
		e.Receipt = &core.Receipt{Filename: "mine.png", Path: "p", ContentType: "image/png"}
	})
	s.addExpense(s.alice, "b", 200, core.NewDate(2024, 2, 1))

	all, err := s.repo.AllExpenses(s.ctx, s.alice.ID, filter.Filter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	start := core.NewDate(2024, 1, 15)
	bounded, err := s.repo.AllExpenses(s.ctx, s.alice.ID, filter.Filter{StartDate: &start})
	s.Require().NoError(err)
	s.Equal([]string{"b"}, descriptions(bounded))

	ct, err := s.repo.ReceiptContentType(s.ctx, s.alice.ID, "mine.png")
	s.Require().NoError(err)
	s.Equal("image/png", ct)
	_, err = s.repo.ReceiptContentType(s.ctx, s.bob.ID, "mine.png")
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestTasks() {
	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := &core.Task{ID: uuid.NewString(), UserID: s.alice.ID, Title: "File taxes", Status: core.StatusTodo,
		Priority: core.PriorityHigh, DueDate: &due, Tags: []string{"money"}}
	t2 := &core.Task{ID: uuid.NewString(), UserID: s.alice.ID, Title: "Cancel gym", Status: core.StatusTodo,
		Priority: core.PriorityLow}
	s.Require().NoError(s.repo.CreateTask(s.ctx, t1))
	s.Require().NoError(s.repo.CreateTask(s.ctx, t2))

	list, err := s.repo.ListTasks(s.ctx, s.alice.ID, TaskFilter{})
	s.Require().NoError(err)
	s.Equal([]string{t2.ID, t1.ID}, []string{list[0].ID, list[1].ID})
	s.Equal([]string{}, list[0].Tags)

	high, err := s.repo.ListTasks(s.ctx, s.alice.ID, TaskFilter{Priority: core.PriorityHigh})
	s.Require().NoError(err)
	s.Len(high, 1)
	s.Require().NotNil(high[0].DueDate)
	s.True(due.Equal(*high[0].DueDate))

	t1.SetStatus(core.StatusCompleted, s.clock)
	s.Require().NoError(s.repo.UpdateTask(s.ctx, t1))
	got, err := s.repo.GetTask(s.ctx, s.alice.ID, t1.ID)
	s.Require().NoError(err)
	s.Equal(core.StatusCompleted, got.Status)
	s.NotNil(got.CompletedAt)

	none, err := s.repo.ListTasks(s.ctx, s.bob.ID, TaskFilter{})
	s.Require().NoError(err)
	s.Empty(none)
	s.True(IsNotFound(s.repo.DeleteTask(s.ctx, s.bob.ID, t1.ID)))
	s.Require().NoError(s.repo.DeleteTask(s.ctx, s.alice.ID, t1.ID))
	_, err = s.repo.GetTask(s.ctx, s.alice.ID, t1.ID)
	s.True(IsNotFound(err))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(30000)", DSN("/tmp/x.db"))
	assert.Equal(t, "file:/tmp/x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(30000)", DSN("/tmp/x.db?mode=rwc"))
}

func descriptions(list []core.Expense) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Description
	}
	return out
}
