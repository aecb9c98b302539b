package expense_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-expense/internal/category"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/expense"
)

func strPtr(s string) *string { return &s }

func newExpense(id, merchant string, typ expense.Type, date, amount string) expense.Expense {
	e := expense.Expense{
		ID:          id,
		Type:        typ,
		Date:        date,
		AmountFinal: decimal.RequireFromString(amount),
		Currency:    "EUR",
	}
	if merchant != "" {
		e.Merchant = strPtr(merchant)
	}
	return e
}

func ids(items []expense.Expense) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.ID
	}
	return out
}

var _ = Describe("Filter engine", func() {
	var (
		items   []expense.Expense
		drivers reference.Table[driver.Driver]
	)

	BeforeEach(func() {
		// Given the two reference expenses
		items = []expense.Expense{
			newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"),
			newExpense("e2", "Parking Co", expense.TypeMisc, "2024-01-20", "15"),
		}
		drivers = reference.NewTable([]driver.Driver{
			{ID: "d1", Name: "Alice Martin"},
			{ID: "d2", Name: "Bob Stone"},
		})
		items[0].DriverID = reference.ByID[driver.Driver]("d1")
		items[1].DriverID = reference.ByID[driver.Driver]("d2")
	})

	It("should match the search query case-insensitively on merchant", func() {
		// When filtering by "shell"
		out := expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: "shell"}, drivers)

		// Then only the Shell expense survives
		Expect(ids(out)).To(Equal([]string{"e1"}))
	})

	It("should keep the whole end day of a date range", func() {
		out := expense.FilterExpenses(items, expense.FilterCriteria{
			DateFrom: "2024-01-10",
			DateTo:   "2024-01-31",
		}, drivers)

		Expect(ids(out)).To(Equal([]string{"e2"}))
	})

	It("should treat both bounds as inclusive", func() {
		items[1].Date = "2024-01-20T23:59:59Z"
		out := expense.FilterExpenses(items, expense.FilterCriteria{
			DateFrom: "2024-01-05T15:00:00Z",
			DateTo:   "2024-01-20",
		}, drivers)

		Expect(ids(out)).To(Equal([]string{"e1", "e2"}))
	})

	It("should search the resolved driver name, type and category", func() {
		Expect(ids(expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: "stone"}, drivers))).
			To(Equal([]string{"e2"}))
		Expect(ids(expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: "fuel"}, drivers))).
			To(Equal([]string{"e1"}))

		toll := category.Toll
		items[1].Category = &toll
		Expect(ids(expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: " TOLL "}, drivers))).
			To(Equal([]string{"e2"}))
	})

	It("should search inline drivers without a table", func() {
		items[0].DriverID = reference.Inline(driver.Driver{ID: "d9", Name: "Zoe Inline"})
		out := expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: "zoe"}, nil)
		Expect(ids(out)).To(Equal([]string{"e1"}))
	})

	It("should filter on exact type", func() {
		out := expense.FilterExpenses(items, expense.FilterCriteria{TypeFilter: expense.TypeMisc}, drivers)
		Expect(ids(out)).To(Equal([]string{"e2"}))
	})

	It("should return the input unchanged without criteria", func() {
		out := expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: "   "}, drivers)
		Expect(out).To(Equal(items))
	})

	It("should return an empty slice for empty input", func() {
		out := expense.FilterExpenses(nil, expense.FilterCriteria{SearchQuery: "x"}, drivers)
		Expect(out).NotTo(BeNil())
		Expect(out).To(BeEmpty())
	})

	It("should exclude malformed dates only when a bound is active", func() {
		items[0].Date = "not-a-date"

		Expect(ids(expense.FilterExpenses(items, expense.FilterCriteria{DateFrom: "2000-01-01"}, drivers))).
			To(Equal([]string{"e2"}))
		Expect(ids(expense.FilterExpenses(items, expense.FilterCriteria{SearchQuery: "shell"}, drivers))).
			To(Equal([]string{"e1"}))
	})

	It("should ignore a bound that does not parse", func() {
		out := expense.FilterExpenses(items, expense.FilterCriteria{DateFrom: "garbage"}, drivers)
		Expect(ids(out)).To(Equal([]string{"e1", "e2"}))
	})

	Describe("properties", func() {
		var criteria []expense.FilterCriteria

		BeforeEach(func() {
			items = append(items,
				newExpense("e3", "Shell Express", expense.TypeMisc, "2024-02-01", "7.5"),
				newExpense("e4", "", expense.TypeFuel, "2024-01-15", "60"),
				newExpense("e5", "City Parking", expense.TypeMisc, "bad", "3"),
			)
			criteria = []expense.FilterCriteria{
				{SearchQuery: "shell"},
				{TypeFilter: expense.TypeFuel},
				{DateFrom: "2024-01-10"},
				{DateTo: "2024-01-31"},
				{SearchQuery: "park", DateFrom: "2024-01-01", DateTo: "2024-12-31"},
			}
		})

		It("should be idempotent", func() {
			for _, c := range criteria {
				once := expense.FilterExpenses(items, c, drivers)
				twice := expense.FilterExpenses(once, c, drivers)
				Expect(ids(twice)).To(Equal(ids(once)), "criteria %+v", c)
			}
		})

		It("should compose as a conjunction", func() {
			merge := func(a, b expense.FilterCriteria) expense.FilterCriteria {
				m := a
				if b.SearchQuery != "" {
					m.SearchQuery = b.SearchQuery
				}
				if b.TypeFilter != "" {
					m.TypeFilter = b.TypeFilter
				}
				if b.DateFrom != "" {
					m.DateFrom = b.DateFrom
				}
				if b.DateTo != "" {
					m.DateTo = b.DateTo
				}
				return m
			}

			for i, c1 := range criteria[:4] {
				for _, c2 := range criteria[i+1 : 4] {
					left := expense.FilterExpenses(items, c1, drivers)
					right := map[string]bool{}
					for _, e := range expense.FilterExpenses(items, c2, drivers) {
						right[e.ID] = true
					}
					var intersection []string
					for _, e := range left {
						if right[e.ID] {
							intersection = append(intersection, e.ID)
						}
					}

					both := ids(expense.FilterExpenses(items, merge(c1, c2), drivers))
					if intersection == nil {
						Expect(both).To(BeEmpty())
					} else {
						Expect(both).To(Equal(intersection), "%+v AND %+v", c1, c2)
					}
				}
			}
		})

		It("should preserve input order", func() {
			out := expense.FilterExpenses(items, expense.FilterCriteria{TypeFilter: expense.TypeMisc}, drivers)
			Expect(ids(out)).To(Equal([]string{"e2", "e3", "e5"}))
		})
	})
})

var _ = Describe("Sort engine", func() {
	var (
		items   []expense.Expense
		drivers reference.Table[driver.Driver]
	)

	BeforeEach(func() {
		items = []expense.Expense{
			newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"),
			newExpense("e2", "parking Co", expense.TypeMisc, "2024-01-20", "15"),
		}
		drivers = reference.NewTable([]driver.Driver{
			{ID: "d1", Name: "zed"},
			{ID: "d2", Name: "Amy"},
		})
		items[0].DriverID = reference.ByID[driver.Driver]("d1")
		items[1].DriverID = reference.ByID[driver.Driver]("d2")
	})

	It("should order by amount in both directions", func() {
		asc := expense.SortExpenses(items, expense.SortByAmount, expense.SortAsc, drivers)
		Expect(ids(asc)).To(Equal([]string{"e2", "e1"}))

		desc := expense.SortExpenses(items, expense.SortByAmount, expense.SortDesc, drivers)
		Expect(ids(desc)).To(Equal([]string{"e1", "e2"}))
	})

	It("should not mutate its input", func() {
		_ = expense.SortExpenses(items, expense.SortByAmount, expense.SortAsc, drivers)
		Expect(ids(items)).To(Equal([]string{"e1", "e2"}))
	})

	It("should compare merchants and driver names case-insensitively", func() {
		Expect(ids(expense.SortExpenses(items, expense.SortByMerchant, expense.SortAsc, drivers))).
			To(Equal([]string{"e2", "e1"}))
		Expect(ids(expense.SortExpenses(items, expense.SortByDriver, expense.SortAsc, drivers))).
			To(Equal([]string{"e2", "e1"}))
	})

	It("should put unresolved drivers and missing merchants first ascending", func() {
		items = append(items, newExpense("e3", "", expense.TypeMisc, "2024-01-01", "1"))
		items[2].DriverID = reference.ByID[driver.Driver]("ghost")

		Expect(ids(expense.SortExpenses(items, expense.SortByDriver, expense.SortAsc, drivers))[0]).To(Equal("e3"))
		Expect(ids(expense.SortExpenses(items, expense.SortByMerchant, expense.SortAsc, drivers))[0]).To(Equal("e3"))
	})

	It("should order by date", func() {
		items = append(items, newExpense("e3", "X", expense.TypeMisc, "2024-01-10T08:00:00Z", "1"))
		Expect(ids(expense.SortExpenses(items, expense.SortByDate, expense.SortDesc, drivers))).
			To(Equal([]string{"e2", "e3", "e1"}))
	})

	It("should keep ties in input order for both directions", func() {
		items = []expense.Expense{
			newExpense("a", "A", expense.TypeMisc, "2024-01-01", "10"),
			newExpense("b", "B", expense.TypeMisc, "2024-01-01", "10"),
			newExpense("c", "C", expense.TypeMisc, "2024-01-01", "5"),
		}
		Expect(ids(expense.SortExpenses(items, expense.SortByAmount, expense.SortAsc, nil))).
			To(Equal([]string{"c", "a", "b"}))
		Expect(ids(expense.SortExpenses(items, expense.SortByAmount, expense.SortDesc, nil))).
			To(Equal([]string{"a", "b", "c"}))
	})

	It("should negate the comparator for descending order", func() {
		keys := []expense.SortBy{expense.SortByDate, expense.SortByAmount, expense.SortByMerchant, expense.SortByDriver}
		for _, key := range keys {
			asc := expense.Comparator(key, expense.SortAsc, drivers)
			desc := expense.Comparator(key, expense.SortDesc, drivers)
			for _, a := range items {
				for _, b := range items {
					Expect(desc(a, b)).To(Equal(-asc(a, b)), "key %s", key)
					Expect(asc(a, b)).To(Equal(-asc(b, a)), "key %s", key)
				}
			}
		}
	})
})

var _ = Describe("Server-side narrowing", func() {
	It("should only ever widen what the filter engine keeps", func() {
		items := []expense.Expense{
			newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"),
			newExpense("e2", "Parking", expense.TypeMisc, "2024-01-20T23:30:00+02:00", "15"),
			newExpense("e3", "Tolls", expense.TypeMisc, "2024-02-01", "9"),
		}
		q := expense.ListQuery{Filter: expense.FilterCriteria{
			TypeFilter: expense.TypeMisc,
			DateFrom:   "2024-01-10",
			DateTo:     "2024-01-20",
		}}

		narrowed := expense.NarrowServerSide(items, expense.ServerFilterFrom(q))
		Expect(ids(narrowed)).To(ContainElement("e2"))
		Expect(ids(narrowed)).NotTo(ContainElement("e1"))

		final := expense.FilterExpenses(narrowed, q.Filter, nil)
		Expect(ids(final)).To(Equal(ids(expense.FilterExpenses(items, q.Filter, nil))))
	})

	It("should narrow by driver", func() {
		items := []expense.Expense{
			newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"),
			newExpense("e2", "Parking", expense.TypeMisc, "2024-01-20", "15"),
		}
		items[0].DriverID = reference.ByID[driver.Driver]("d1")
		items[1].DriverID = reference.ByID[driver.Driver]("d2")

		out := expense.NarrowServerSide(items, expense.ServerFilter{DriverID: "d2"})
		Expect(ids(out)).To(Equal([]string{"e2"}))
	})
})
