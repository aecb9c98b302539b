package expense_test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	expenseDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/expense"
	"github.com/frahmantamala/fleet-expense/internal/core/events"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

// Mock repository for testing
type mockExpenseRepository struct {
	rows        map[string]*expenseDatamodel.Expense
	order       []string
	listCalls   []expense.ServerFilter
	createCalls int
	createError error
	listError   error
}

func newMockExpenseRepository() *mockExpenseRepository {
	return &mockExpenseRepository{rows: map[string]*expenseDatamodel.Expense{}}
}

func (m *mockExpenseRepository) seed(e expense.Expense) {
	m.rows[e.ID] = expense.ToDataModel(&e)
	m.order = append([]string{e.ID}, m.order...)
}

func (m *mockExpenseRepository) Create(ctx context.Context, row *expenseDatamodel.Expense) error {
	m.createCalls++
	if m.createError != nil {
		return m.createError
	}
	m.rows[row.ID] = row
	m.order = append([]string{row.ID}, m.order...)
	return nil
}

func (m *mockExpenseRepository) GetByID(ctx context.Context, id string) (*expenseDatamodel.Expense, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, expense.ErrExpenseNotFound
	}
	clone := *row
	return &clone, nil
}

func (m *mockExpenseRepository) Update(ctx context.Context, row *expenseDatamodel.Expense) error {
	if _, ok := m.rows[row.ID]; !ok {
		return expense.ErrExpenseNotFound
	}
	m.rows[row.ID] = row
	return nil
}

func (m *mockExpenseRepository) List(ctx context.Context, f expense.ServerFilter) ([]*expenseDatamodel.Expense, error) {
	m.listCalls = append(m.listCalls, f)
	if m.listError != nil {
		return nil, m.listError
	}
	var out []*expenseDatamodel.Expense
	for _, id := range m.order {
		row := m.rows[id]
		if f.DriverID != "" && row.DriverID != f.DriverID {
			continue
		}
		if f.Type != "" && row.Type != string(f.Type) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type mockDirectory struct {
	drivers []driver.Driver
	err     error
}

func (m *mockDirectory) Directory(ctx context.Context, ids []string) (reference.Table[driver.Driver], error) {
	if m.err != nil {
		return nil, m.err
	}
	return reference.NewTable(m.drivers), nil
}

type mockOdometer struct {
	readings map[string]int64
	err      error
}

func (m *mockOdometer) RecordOdometer(ctx context.Context, vehicleID string, reading int64) error {
	if m.err != nil {
		return m.err
	}
	m.readings[vehicleID] = reading
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType()
	}
	return out
}

func fieldMap(err error) map[string]string {
	appErr, ok := appErrors.IsAppError(err)
	Expect(ok).To(BeTrue())
	details, ok := appErr.Details.(appErrors.ValidationErrors)
	Expect(ok).To(BeTrue())
	return details.FieldMap()
}

func validCreate() expense.CreateExpenseDTO {
	return expense.CreateExpenseDTO{
		DriverID:    "d1",
		Merchant:    strPtr("Shell"),
		AmountFinal: decimal.RequireFromString("42.10"),
		Date:        "2024-03-02",
	}
}

var _ = Describe("ExpenseService", func() {
	var (
		repo      *mockExpenseRepository
		directory *mockDirectory
		odometer  *mockOdometer
		publisher *capturePublisher
		store     *expense.ListStore
		service   *expense.Service
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockExpenseRepository()
		directory = &mockDirectory{drivers: []driver.Driver{
			{ID: "d1", Name: "Alice Martin"},
			{ID: "d2", Name: "Bob Stone"},
		}}
		odometer = &mockOdometer{readings: map[string]int64{}}
		publisher = &capturePublisher{}
		store = expense.NewListStore()

		service = expense.NewService(repo, directory, store, publisher, expense.ServiceConfig{
			DefaultPageSize: 2,
			MaxPageSize:     5,
		}, logger.Discard())
		service.SetOdometerRecorder(odometer)
	})

	Describe("CreateExpense", func() {
		It("should reject a zero amount before touching the repository", func() {
			// Given a payload with amountFinal 0
			dto := validCreate()
			dto.AmountFinal = decimal.Zero

			// When creating it
			_, err := service.CreateExpense(ctx, dto, expense.SourceAPI)

			// Then validation fails on amountInvalid and nothing is persisted
			Expect(err).To(HaveOccurred())
			Expect(fieldMap(err)).To(HaveKeyWithValue("amountFinal", "amountInvalid"))
			Expect(repo.createCalls).To(BeZero())
			Expect(publisher.types()).To(BeEmpty())
		})

		It("should report every failing field at once", func() {
			_, err := service.CreateExpense(ctx, expense.CreateExpenseDTO{
				Merchant: strPtr("   "),
				Category: strPtr("FOOD"),
			}, expense.SourceAPI)

			Expect(fieldMap(err)).To(Equal(map[string]string{
				"driverId":    "driverRequired",
				"merchant":    "merchantRequired",
				"amountFinal": "amountInvalid",
				"date":        "dateRequired",
				"category":    "categoryInvalid",
			}))
		})

		It("should fill currency and type defaults", func() {
			e, err := service.CreateExpense(ctx, validCreate(), expense.SourceAPI)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Currency).To(Equal("EUR"))
			Expect(e.Type).To(Equal(expense.TypeMisc))
			Expect(e.ID).NotTo(BeEmpty())
			Expect(repo.rows).To(HaveKey(e.ID))
		})

		It("should drop blank optional fields", func() {
			dto := validCreate()
			dto.Category = strPtr("")
			dto.Notes = strPtr("  ")

			e, err := service.CreateExpense(ctx, dto, expense.SourceAPI)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Category).To(BeNil())
			Expect(e.Notes).To(BeNil())
		})

		It("should reject notes longer than the column allows", func() {
			dto := validCreate()
			dto.Notes = strPtr(strings.Repeat("é", expense.MaxNotesLength+1))

			_, err := service.CreateExpense(ctx, dto, expense.SourceAPI)
			Expect(fieldMap(err)).To(Equal(map[string]string{"notes": "notesTooLong"}))
			Expect(repo.createCalls).To(BeZero())

			dto.Notes = strPtr(strings.Repeat("é", expense.MaxNotesLength))
			_, err = service.CreateExpense(ctx, dto, expense.SourceAPI)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should prepend to a loaded list and record the odometer", func() {
			repo.seed(newExpense("old", "Old", expense.TypeMisc, "2024-01-01", "5"))
			_, err := service.ListExpenses(ctx, expense.ListQuery{})
			Expect(err).NotTo(HaveOccurred())

			dto := validCreate()
			dto.VehicleID = strPtr("v1")
			km := int64(50100)
			dto.Kilometers = &km

			e, err := service.CreateExpense(ctx, dto, expense.SourceWizard)
			Expect(err).NotTo(HaveOccurred())

			Expect(store.List()[0].ID).To(Equal(e.ID))
			Expect(store.Len()).To(Equal(2))
			Expect(odometer.readings).To(HaveKeyWithValue("v1", int64(50100)))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeOdometerRecorded, events.EventTypeExpenseCreated}))
		})

		It("should run odometer subscribers before returning", func() {
			// Given a bus with a subscriber on recorded readings
			bus := events.NewEventBus(logger.Discard())
			var mu sync.Mutex
			var seen []int64
			bus.Subscribe(events.EventTypeOdometerRecorded, func(ctx context.Context, event events.Event) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, event.(*events.OdometerRecordedEvent).Reading)
				return nil
			})
			service = expense.NewService(repo, directory, store, bus, expense.ServiceConfig{}, logger.Discard())
			service.SetOdometerRecorder(odometer)

			dto := validCreate()
			dto.VehicleID = strPtr("v1")
			km := int64(50200)
			dto.Kilometers = &km

			// When the expense is created
			_, err := service.CreateExpense(ctx, dto, expense.SourceWizard)
			Expect(err).NotTo(HaveOccurred())

			// Then the subscriber already ran
			mu.Lock()
			Expect(seen).To(Equal([]int64{50200}))
			mu.Unlock()
			bus.Wait()
		})

		It("should still succeed when the odometer update fails", func() {
			odometer.err = errors.New("db down")
			dto := validCreate()
			dto.VehicleID = strPtr("v1")
			km := int64(10)
			dto.Kilometers = &km

			_, err := service.CreateExpense(ctx, dto, expense.SourceAPI)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should wrap repository failures as internal errors", func() {
			repo.createError = errors.New("connection reset")
			_, err := service.CreateExpense(ctx, validCreate(), expense.SourceAPI)

			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(appErrors.ErrorTypeInternal))
		})
	})

	Describe("UpdateExpense", func() {
		BeforeEach(func() {
			repo.seed(newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"))
			repo.seed(newExpense("e2", "Parking", expense.TypeMisc, "2024-01-20", "15"))
			_, err := service.ListExpenses(ctx, expense.ListQuery{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should patch the listed copy in place", func() {
			amount := decimal.RequireFromString("55")
			e, err := service.UpdateExpense(ctx, "e1", expense.UpdateExpenseDTO{AmountFinal: &amount})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.AmountFinal.Equal(amount)).To(BeTrue())

			listed, ok := store.Get("e1")
			Expect(ok).To(BeTrue())
			Expect(listed.AmountFinal.Equal(amount)).To(BeTrue())
			Expect(ids(store.List())).To(Equal([]string{"e2", "e1"}))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeExpenseUpdated}))
		})

		It("should reject an invalid patch", func() {
			zero := decimal.Zero
			_, err := service.UpdateExpense(ctx, "e1", expense.UpdateExpenseDTO{AmountFinal: &zero})
			Expect(fieldMap(err)).To(HaveKeyWithValue("amountFinal", "amountInvalid"))
		})

		It("should return ErrExpenseNotFound for unknown ids", func() {
			_, err := service.UpdateExpense(ctx, "missing", expense.UpdateExpenseDTO{Notes: strPtr("x")})
			Expect(errors.Is(err, expense.ErrExpenseNotFound)).To(BeTrue())
		})

		It("should skip persistence for an empty patch", func() {
			_, err := service.UpdateExpense(ctx, "e1", expense.UpdateExpenseDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher.types()).To(BeEmpty())
		})
	})

	Describe("ListExpenses", func() {
		BeforeEach(func() {
			for i, amount := range []string{"10", "20", "30", "40", "50"} {
				e := newExpense(string(rune('a'+i)), "M"+amount, expense.TypeMisc, "2024-01-1"+amount[:1], amount)
				e.DriverID = reference.ByID[driver.Driver]("d1")
				repo.seed(e)
			}
		})

		It("should load once and serve later pages from memory", func() {
			q := expense.ListQuery{Sort: expense.SortCriteria{SortBy: expense.SortByAmount, SortOrder: expense.SortAsc}}
			first, err := service.ListExpenses(ctx, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.TotalPages).To(Equal(3))
			Expect(ids(first.Expenses)).To(Equal([]string{"a", "b"}))

			q.Page = 3
			q.View = first.View
			last, err := service.ListExpenses(ctx, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(last.Expenses)).To(Equal([]string{"e"}))
			Expect(last.StartIndex).To(Equal(4))
			Expect(last.EndIndex).To(Equal(5))
			Expect(last.HasPrev).To(BeTrue())
			Expect(last.HasNext).To(BeFalse())
			Expect(first.HasNext).To(BeTrue())
			Expect(repo.listCalls).To(HaveLen(1))
		})

		It("should refetch from the repository on refresh", func() {
			_, err := service.ListExpenses(ctx, expense.ListQuery{PerPage: 5})
			Expect(err).NotTo(HaveOccurred())
			repo.seed(newExpense("f", "Fresh", expense.TypeFuel, "2024-02-01", "9"))

			cached, err := service.ListExpenses(ctx, expense.ListQuery{PerPage: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(cached.Total).To(Equal(5))

			fresh, err := service.ListExpenses(ctx, expense.ListQuery{PerPage: 5, Refresh: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.Total).To(Equal(6))
			Expect(repo.listCalls).To(HaveLen(2))
		})

		It("should cover every element exactly once across pages", func() {
			q := expense.ListQuery{PerPage: 2}
			first, err := service.ListExpenses(ctx, q)
			Expect(err).NotTo(HaveOccurred())

			var seen []string
			for page := 1; page <= first.TotalPages; page++ {
				q.Page = page
				res, err := service.ListExpenses(ctx, q)
				Expect(err).NotTo(HaveOccurred())
				seen = append(seen, ids(res.Expenses)...)
			}
			sort.Strings(seen)
			Expect(seen).To(Equal([]string{"a", "b", "c", "d", "e"}))
		})

		It("should reset to page 1 when the criteria change", func() {
			first, err := service.ListExpenses(ctx, expense.ListQuery{})
			Expect(err).NotTo(HaveOccurred())

			res, err := service.ListExpenses(ctx, expense.ListQuery{
				Page:   2,
				View:   first.View,
				Filter: expense.FilterCriteria{SearchQuery: "m"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Page).To(Equal(1))
			Expect(res.PageReset).To(BeTrue())
			Expect(res.View).NotTo(Equal(first.View))
		})

		It("should clamp the page size", func() {
			res, err := service.ListExpenses(ctx, expense.ListQuery{PerPage: 50})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.PerPage).To(Equal(5))
		})

		It("should return an empty window past the last page", func() {
			res, err := service.ListExpenses(ctx, expense.ListQuery{Page: 9})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Expenses).To(BeEmpty())
			Expect(res.Page).To(Equal(9))
		})

		It("should inline resolved drivers", func() {
			res, err := service.ListExpenses(ctx, expense.ListQuery{})
			Expect(err).NotTo(HaveOccurred())
			d, ok := res.Expenses[0].DriverID.Entity()
			Expect(ok).To(BeTrue())
			Expect(d.Name).To(Equal("Alice Martin"))
		})

		It("should keep listing when the directory is unavailable", func() {
			directory.err = errors.New("timeout")
			res, err := service.ListExpenses(ctx, expense.ListQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(Equal(5))
			Expect(res.Expenses[0].DriverID.IsInline()).To(BeFalse())
		})

		It("should narrow in SQL without a store", func() {
			sqlService := expense.NewService(repo, directory, nil, nil, expense.ServiceConfig{}, logger.Discard())
			_, err := sqlService.ListExpenses(ctx, expense.ListQuery{
				DriverID: "d1",
				Filter:   expense.FilterCriteria{TypeFilter: expense.TypeMisc},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.listCalls).To(HaveLen(1))
			Expect(repo.listCalls[0].DriverID).To(Equal("d1"))
			Expect(repo.listCalls[0].Type).To(Equal(expense.TypeMisc))
		})

		It("should surface load failures", func() {
			repo.listError = errors.New("boom")
			_, err := service.ListExpenses(ctx, expense.ListQuery{})
			Expect(err).To(HaveOccurred())
			Expect(store.Loaded()).To(BeFalse())
		})
	})

	Describe("Export", func() {
		BeforeEach(func() {
			repo.seed(newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"))
		})

		It("should render xlsx and pdf documents", func() {
			xlsx, err := service.Export(ctx, expense.ListQuery{}, expense.FormatXLSX)
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.HasPrefix(xlsx, []byte("PK"))).To(BeTrue())

			pdf, err := service.Export(ctx, expense.ListQuery{}, expense.FormatPDF)
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.HasPrefix(pdf, []byte("%PDF"))).To(BeTrue())
		})

		It("should reject unknown formats", func() {
			_, err := service.Export(ctx, expense.ListQuery{}, expense.ExportFormat("csv"))
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(appErrors.ErrCodeInvalidRequest))
		})
	})
})
