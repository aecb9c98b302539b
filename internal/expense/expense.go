package expense

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/fleet-expense/internal/category"
	expenseDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/expense"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

type Type string

const (
	TypeFuel Type = "FUEL"
	TypeMisc Type = "MISC"
)

func (t Type) IsValid() bool {
	return t == TypeFuel || t == TypeMisc
}

func TypeNames() []string {
	return []string{string(TypeFuel), string(TypeMisc)}
}

const DefaultCurrency = "EUR"

type Expense struct {
	ID            string                               `json:"_id"`
	DriverID      reference.Reference[driver.Driver]   `json:"driverId"`
	VehicleID     reference.Reference[vehicle.Vehicle] `json:"vehicleId"`
	Type          Type                                 `json:"type"`
	Category      *category.Category                   `json:"category,omitempty"`
	Merchant      *string                              `json:"merchant,omitempty"`
	AmountFinal   decimal.Decimal                      `json:"amountFinal"`
	Currency      string                               `json:"currency"`
	Date          string                               `json:"date"`
	Kilometers    *int64                               `json:"kilometers,omitempty"`
	Notes         *string                              `json:"notes,omitempty"`
	ReceiptURL    *string                              `json:"receiptUrl,omitempty"`
	OCRAmount     *decimal.Decimal                     `json:"ocrAmount,omitempty"`
	OCRMerchant   *string                              `json:"ocrMerchant,omitempty"`
	OCRDate       *string                              `json:"ocrDate,omitempty"`
	OCRConfidence *float64                             `json:"ocrConfidence,omitempty"`
	CreatedAt     time.Time                            `json:"createdAt"`
	UpdatedAt     time.Time                            `json:"updatedAt"`
}

func (e Expense) RefID() string {
	return e.ID
}

// MerchantName is "" when the merchant is unset.
func (e Expense) MerchantName() string {
	if e.Merchant == nil {
		return ""
	}
	return *e.Merchant
}

func (e Expense) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return string(*e.Category)
}

// ParsedDate parses Date; ok is false for malformed values.
func (e Expense) ParsedDate() (time.Time, bool) {
	t, err := ParseDate(e.Date)
	return t, err == nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var ErrInvalidDate = errors.New("invalid calendar date")

// ParseDate accepts a calendar date or a timestamp. Results are in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay is 23:59:59.999 on t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Millisecond)
}

func ToDataModel(e *Expense) *expenseDatamodel.Expense {
	row := &expenseDatamodel.Expense{
		ID:            e.ID,
		DriverID:      e.DriverID.ID(),
		VehicleID:     e.VehicleID.IDPtr(),
		Type:          string(e.Type),
		Merchant:      e.Merchant,
		AmountFinal:   e.AmountFinal,
		Currency:      e.Currency,
		ExpenseDate:   e.Date,
		Kilometers:    e.Kilometers,
		Notes:         e.Notes,
		ReceiptURL:    e.ReceiptURL,
		OCRMerchant:   e.OCRMerchant,
		OCRDate:       e.OCRDate,
		OCRConfidence: e.OCRConfidence,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.Category != nil {
		c := string(*e.Category)
		row.Category = &c
	}
	if e.OCRAmount != nil {
		row.OCRAmount = decimal.NewNullDecimal(*e.OCRAmount)
	}
	return row
}

func FromDataModel(e *expenseDatamodel.Expense) *Expense {
	out := &Expense{
		ID:            e.ID,
		DriverID:      reference.ByID[driver.Driver](e.DriverID),
		VehicleID:     reference.FromPtr[vehicle.Vehicle](e.VehicleID),
		Type:          Type(e.Type),
		Merchant:      e.Merchant,
		AmountFinal:   e.AmountFinal,
		Currency:      e.Currency,
		Date:          e.ExpenseDate,
		Kilometers:    e.Kilometers,
		Notes:         e.Notes,
		ReceiptURL:    e.ReceiptURL,
		OCRMerchant:   e.OCRMerchant,
		OCRDate:       e.OCRDate,
		OCRConfidence: e.OCRConfidence,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.Category != nil {
		c := category.Category(*e.Category)
		out.Category = &c
	}
	if e.OCRAmount.Valid {
		amount := e.OCRAmount.Decimal
		out.OCRAmount = &amount
	}
	return out
}

func FromDataModelSlice(expenses []*expenseDatamodel.Expense) []Expense {
	result := make([]Expense, len(expenses))
	for i, e := range expenses {
		result[i] = *FromDataModel(e)
	}
	return result
}
