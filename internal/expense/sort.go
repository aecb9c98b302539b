package expense

import (
	"sort"
	"strings"

	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
)

type SortBy string

const (
	SortByDate     SortBy = "date"
	SortByAmount   SortBy = "amount"
	SortByMerchant SortBy = "merchant"
	SortByDriver   SortBy = "driver"
)

func (s SortBy) IsValid() bool {
	switch s {
	case SortByDate, SortByAmount, SortByMerchant, SortByDriver:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) IsValid() bool {
	return o == SortAsc || o == SortDesc
}

type SortCriteria struct {
	SortBy    SortBy    `json:"sort"`
	SortOrder SortOrder `json:"order"`
}

// DefaultSort lists the newest expenses first.
var DefaultSort = SortCriteria{SortBy: SortByDate, SortOrder: SortDesc}

// Comparator returns -1, 0 or 1 for a and b under key and order. The desc
// comparator is the negation of the asc one.
func Comparator(key SortBy, order SortOrder, drivers reference.Table[driver.Driver]) func(a, b Expense) int {
	base := keyComparator(key, drivers)
	if order == SortDesc {
		return func(a, b Expense) int { return -base(a, b) }
	}
	return base
}

func keyComparator(key SortBy, drivers reference.Table[driver.Driver]) func(a, b Expense) int {
	switch key {
	case SortByAmount:
		return func(a, b Expense) int {
			return a.AmountFinal.Cmp(b.AmountFinal)
		}
	case SortByMerchant:
		return func(a, b Expense) int {
			return compareStrings(strings.ToLower(a.MerchantName()), strings.ToLower(b.MerchantName()))
		}
	case SortByDriver:
		return func(a, b Expense) int {
			return compareStrings(
				strings.ToLower(driverName(a, drivers)),
				strings.ToLower(driverName(b, drivers)),
			)
		}
	default:
		return func(a, b Expense) int {
			// unparseable dates sort as the zero time
			ta, _ := a.ParsedDate()
			tb, _ := b.ParsedDate()
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortExpenses returns a sorted copy. Ties keep their input order.
func SortExpenses(expenses []Expense, key SortBy, order SortOrder, drivers reference.Table[driver.Driver]) []Expense {
	out := make([]Expense, len(expenses))
	copy(out, expenses)

	cmp := Comparator(key, order, drivers)
	sort.SliceStable(out, func(i, j int) bool {
		return cmp(out[i], out[j]) < 0
	})
	return out
}
