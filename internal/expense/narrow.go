package expense

import (
	"time"
)

// ServerFilter is the narrowing the store applies before the client-side
// engines run. It must only ever return a superset of what FilterExpenses
// keeps for the same criteria.
type ServerFilter struct {
	DriverID string
	Type     Type
	// DateFrom and DateTo are YYYY-MM-DD, already widened by a day.
	DateFrom string
	DateTo   string
	Limit    int
}

const sqlDate = "2006-01-02"

// ServerFilterFrom derives the store narrowing for q. Unparseable bounds are
// dropped, matching FilterExpenses.
func ServerFilterFrom(q ListQuery) ServerFilter {
	f := ServerFilter{DriverID: q.DriverID}
	if q.Filter.TypeFilter.IsValid() {
		f.Type = q.Filter.TypeFilter
	}
	if t, err := ParseDate(q.Filter.DateFrom); err == nil {
		f.DateFrom = StartOfDay(t).AddDate(0, 0, -1).Format(sqlDate)
	}
	if t, err := ParseDate(q.Filter.DateTo); err == nil {
		f.DateTo = StartOfDay(t).AddDate(0, 0, 1).Format(sqlDate)
	}
	return f
}

// NarrowServerSide applies f to an in-memory list the same way the
// repository does in SQL.
func NarrowServerSide(items []Expense, f ServerFilter) []Expense {
	if f.DriverID == "" && f.Type == "" && f.DateFrom == "" && f.DateTo == "" {
		return items
	}

	var from, to time.Time
	if f.DateFrom != "" {
		from, _ = time.Parse(sqlDate, f.DateFrom)
	}
	if f.DateTo != "" {
		to, _ = time.Parse(sqlDate, f.DateTo)
	}

	out := make([]Expense, 0, len(items))
	for _, e := range items {
		if f.DriverID != "" && e.DriverID.ID() != f.DriverID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.DateFrom != "" || f.DateTo != "" {
			d, ok := e.ParsedDate()
			if !ok {
				continue
			}
			day := StartOfDay(d)
			if f.DateFrom != "" && day.Before(from) {
				continue
			}
			if f.DateTo != "" && day.After(to) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
