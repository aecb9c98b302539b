package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/category"
	"github.com/frahmantamala/fleet-expense/internal/core/common/validation"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

// Form field keys, shared by the form JSON and the error map.
const (
	FieldDriver     = "driver"
	FieldMerchant   = "merchant"
	FieldDate       = "date"
	FieldAmount     = "amount"
	FieldCurrency   = "currency"
	FieldType       = "type"
	FieldCategory   = "category"
	FieldKilometers = "kilometers"
	FieldNotes      = "notes"
)

// PrefillPolicy decides which form fields an OCR result may write.
type PrefillPolicy string

const (
	// PrefillOverwrite lets OCR replace any field it has a value for,
	// including ones the user already typed.
	PrefillOverwrite PrefillPolicy = "overwrite"
	// PrefillUntouched only fills fields the user never edited.
	PrefillUntouched PrefillPolicy = "untouched"
)

func (p PrefillPolicy) IsValid() bool {
	return p == PrefillOverwrite || p == PrefillUntouched
}

// Form holds the detail step's inputs as typed.
type Form struct {
	Merchant   string `json:"merchant"`
	Date       string `json:"date"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Type       string `json:"type"`
	Category   string `json:"category"`
	Kilometers string `json:"kilometers"`
	Notes      string `json:"notes"`

	dirty          map[string]bool
	odometerSeeded bool
}

func NewForm(defaultCurrency string, defaultType expense.Type) *Form {
	return &Form{
		Currency: defaultCurrency,
		Type:     string(defaultType),
		dirty:    map[string]bool{},
	}
}

// FormPatch carries user edits; nil fields are left alone.
type FormPatch struct {
	Merchant   *string `json:"merchant,omitempty"`
	Date       *string `json:"date,omitempty"`
	Amount     *string `json:"amount,omitempty"`
	Currency   *string `json:"currency,omitempty"`
	Type       *string `json:"type,omitempty"`
	Category   *string `json:"category,omitempty"`
	Kilometers *string `json:"kilometers,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// Apply writes the patch and marks every touched field dirty.
func (f *Form) Apply(p FormPatch) {
	set := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		*dst = *v
		f.dirty[field] = true
	}
	set(FieldMerchant, &f.Merchant, p.Merchant)
	set(FieldDate, &f.Date, p.Date)
	set(FieldAmount, &f.Amount, p.Amount)
	set(FieldCurrency, &f.Currency, p.Currency)
	set(FieldType, &f.Type, p.Type)
	set(FieldCategory, &f.Category, p.Category)
	set(FieldKilometers, &f.Kilometers, p.Kilometers)
	set(FieldNotes, &f.Notes, p.Notes)
}

func (f *Form) Dirty(field string) bool {
	return f.dirty[field]
}

// DirtyFields lists edited fields in name order.
func (f *Form) DirtyFields() []string {
	out := make([]string, 0, len(f.dirty))
	for field := range f.dirty {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// Prefill copies OCR values into the form and returns the fields written.
func (f *Form) Prefill(ocr *receipt.OCRResult, policy PrefillPolicy) []string {
	if ocr == nil {
		return nil
	}

	var filled []string
	write := func(field string, dst *string, v *string) {
		if v == nil || *v == "" {
			return
		}
		if policy == PrefillUntouched && f.dirty[field] {
			return
		}
		*dst = *v
		filled = append(filled, field)
	}

	write(FieldMerchant, &f.Merchant, ocr.Merchant)
	if ocr.Amount != nil {
		amount := ocr.Amount.String()
		write(FieldAmount, &f.Amount, &amount)
	}
	write(FieldDate, &f.Date, ocr.Date)
	write(FieldCurrency, &f.Currency, ocr.Currency)
	return filled
}

// SeedOdometer defaults the kilometers field to the vehicle's reading, once,
// and never over a user edit.
func (f *Form) SeedOdometer(v *vehicle.Vehicle) bool {
	if v == nil || f.odometerSeeded || f.dirty[FieldKilometers] {
		return false
	}
	f.Kilometers = strconv.FormatInt(v.CurrentOdometer, 10)
	f.odometerSeeded = true
	return true
}

// ClearDriverDerived undoes the odometer default when the driver changes.
func (f *Form) ClearDriverDerived() {
	if f.odometerSeeded && !f.dirty[FieldKilometers] {
		f.Kilometers = ""
	}
	f.odometerSeeded = false
}

func (f *Form) amount() *decimal.Decimal {
	raw := strings.TrimSpace(f.Amount)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

func (f *Form) kilometers() (*int64, error) {
	raw := strings.TrimSpace(f.Kilometers)
	if raw == "" {
		return nil, nil
	}
	km, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &km, nil
}

// Validate checks every field at once. v is the selected driver's vehicle,
// or nil when none is known.
func (f *Form) Validate(driverID string, v *vehicle.Vehicle) *appErrors.AppError {
	b := validation.NewValidator()
	b.Field(FieldDriver, driverID).Required(appErrors.ErrCodeDriverRequired)
	b.Field(FieldMerchant, f.Merchant).Required(appErrors.ErrCodeMerchantRequired)
	b.Field(FieldAmount, f.amount()).Positive(appErrors.ErrCodeAmountInvalid)
	b.Field(FieldDate, f.Date).Required(appErrors.ErrCodeDateRequired).
		Date(expense.ParseDate, appErrors.ErrCodeDateInvalid)
	b.Field(FieldCurrency, strings.TrimSpace(f.Currency)).ExactLength(3, appErrors.ErrCodeCurrencyInvalid)
	b.Field(FieldType, strings.ToUpper(strings.TrimSpace(f.Type))).OneOf(expense.TypeNames(), appErrors.ErrCodeTypeInvalid)
	b.Field(FieldCategory, strings.ToUpper(strings.TrimSpace(f.Category))).OneOf(category.Names(), appErrors.ErrCodeCategoryInvalid)
	b.Field(FieldKilometers, f.Kilometers).Custom(func(interface{}) *appErrors.AppError {
		return checkOdometer(f, v)
	})
	return b.Validate()
}

func checkOdometer(f *Form, v *vehicle.Vehicle) *appErrors.AppError {
	km, err := f.kilometers()
	if err != nil || (km != nil && *km < 0) {
		return appErrors.NewValidationFieldError(FieldKilometers,
			"kilometers must be a whole number of at least 0", appErrors.ErrCodeKilometersInvalid)
	}
	if km == nil || v == nil {
		return nil
	}
	if *km < v.CurrentOdometer {
		return appErrors.NewValidationFieldError(FieldKilometers,
			fmt.Sprintf("Odometer reading %d km is below the vehicle's current reading of %d km", *km, v.CurrentOdometer),
			appErrors.ErrCodeOdometerRegression)
	}
	return nil
}

// Payload assembles the create request, leaving out empty optional fields.
// The form must have passed Validate.
func (f *Form) Payload(driverID string, v *vehicle.Vehicle, ref *ReceiptRef) expense.CreateExpenseDTO {
	merchant := strings.TrimSpace(f.Merchant)
	dto := expense.CreateExpenseDTO{
		DriverID: driverID,
		Type:     expense.Type(strings.ToUpper(strings.TrimSpace(f.Type))),
		Merchant: &merchant,
		Currency: strings.ToUpper(strings.TrimSpace(f.Currency)),
		Date:     strings.TrimSpace(f.Date),
	}
	if amount := f.amount(); amount != nil {
		dto.AmountFinal = *amount
	}
	if v != nil {
		id := v.ID
		dto.VehicleID = &id
	}
	if c := strings.ToUpper(strings.TrimSpace(f.Category)); c != "" {
		dto.Category = &c
	}
	if km, err := f.kilometers(); err == nil && km != nil {
		dto.Kilometers = km
	}
	if n := strings.TrimSpace(f.Notes); n != "" {
		dto.Notes = &n
	}
	if ref != nil {
		url := ref.URL
		dto.ReceiptURL = &url
		if ocr := ref.OCR; ocr != nil && !ocr.Failed() {
			dto.OCRAmount = ocr.Amount
			dto.OCRMerchant = ocr.Merchant
			dto.OCRDate = ocr.Date
			dto.OCRConfidence = ocr.Confidence
		}
	}
	return dto
}
