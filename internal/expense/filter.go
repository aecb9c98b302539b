package expense

import (
	"strings"
	"time"

	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
)

type FilterCriteria struct {
	SearchQuery string `json:"search,omitempty"`
	TypeFilter  Type   `json:"type,omitempty"`
	DateFrom    string `json:"from,omitempty"`
	DateTo      string `json:"to,omitempty"`
}

// IsEmpty reports whether no predicate is active.
func (c FilterCriteria) IsEmpty() bool {
	return strings.TrimSpace(c.SearchQuery) == "" &&
		c.TypeFilter == "" &&
		c.DateFrom == "" &&
		c.DateTo == ""
}

type compiledFilter struct {
	query   string
	typ     Type
	from    *time.Time
	to      *time.Time
	drivers reference.Table[driver.Driver]
}

// Bounds that do not parse are ignored rather than matching nothing.
func compile(c FilterCriteria, drivers reference.Table[driver.Driver]) compiledFilter {
	f := compiledFilter{
		query:   strings.ToLower(strings.TrimSpace(c.SearchQuery)),
		typ:     c.TypeFilter,
		drivers: drivers,
	}
	if t, err := ParseDate(c.DateFrom); err == nil {
		from := StartOfDay(t)
		f.from = &from
	}
	if t, err := ParseDate(c.DateTo); err == nil {
		to := EndOfDay(t)
		f.to = &to
	}
	return f
}

func (f compiledFilter) match(e Expense) bool {
	if f.query != "" && !f.matchSearch(e) {
		return false
	}
	if f.typ != "" && e.Type != f.typ {
		return false
	}
	if f.from == nil && f.to == nil {
		return true
	}

	// an unparseable date never satisfies an active bound
	date, ok := e.ParsedDate()
	if !ok {
		return false
	}
	if f.from != nil && StartOfDay(date).Before(*f.from) {
		return false
	}
	if f.to != nil && date.After(*f.to) {
		return false
	}
	return true
}

func (f compiledFilter) matchSearch(e Expense) bool {
	fields := []string{
		e.MerchantName(),
		driverName(e, f.drivers),
		string(e.Type),
		e.CategoryName(),
	}
	for _, field := range fields {
		if field != "" && strings.Contains(strings.ToLower(field), f.query) {
			return true
		}
	}
	return false
}

func driverName(e Expense, drivers reference.Table[driver.Driver]) string {
	d := reference.Resolve(e.DriverID, drivers)
	if d == nil {
		return ""
	}
	return d.Name
}

// FilterExpenses keeps the expenses matching every active predicate, in
// input order. It never fails; with no active criteria it returns the
// input unchanged.
func FilterExpenses(expenses []Expense, criteria FilterCriteria, drivers reference.Table[driver.Driver]) []Expense {
	if len(expenses) == 0 {
		return []Expense{}
	}
	if criteria.IsEmpty() {
		return expenses
	}

	f := compile(criteria, drivers)
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}
