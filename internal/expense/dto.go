package expense

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	errors "github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/category"
	"github.com/frahmantamala/fleet-expense/internal/core/common/validation"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

// CreateExpenseDTO is the payload accepted by the persistence layer. Empty
// optional fields are omitted by producers rather than sent blank.
type CreateExpenseDTO struct {
	DriverID      string           `json:"driverId"`
	VehicleID     *string          `json:"vehicleId,omitempty"`
	Type          Type             `json:"type,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Merchant      *string          `json:"merchant,omitempty"`
	AmountFinal   decimal.Decimal  `json:"amountFinal"`
	Currency      string           `json:"currency,omitempty"`
	Date          string           `json:"date"`
	Kilometers    *int64           `json:"kilometers,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	ReceiptURL    *string          `json:"receiptUrl,omitempty"`
	OCRAmount     *decimal.Decimal `json:"ocrAmount,omitempty"`
	OCRMerchant   *string          `json:"ocrMerchant,omitempty"`
	OCRDate       *string          `json:"ocrDate,omitempty"`
	OCRConfidence *float64         `json:"ocrConfidence,omitempty"`
}

// Normalize trims text, blanks optional fields and fills defaults.
func (dto *CreateExpenseDTO) Normalize(defaultCurrency string, defaultType Type) {
	dto.DriverID = strings.TrimSpace(dto.DriverID)
	dto.VehicleID = blankToNil(dto.VehicleID)
	dto.Category = blankToNil(dto.Category)
	dto.Notes = blankToNil(dto.Notes)
	dto.ReceiptURL = blankToNil(dto.ReceiptURL)
	if dto.Merchant != nil {
		m := strings.TrimSpace(*dto.Merchant)
		dto.Merchant = &m
	}
	dto.Date = strings.TrimSpace(dto.Date)
	dto.Currency = strings.ToUpper(strings.TrimSpace(dto.Currency))
	if dto.Currency == "" {
		dto.Currency = defaultCurrency
	}
	if dto.Type == "" {
		dto.Type = defaultType
	}
}

const MaxNotesLength = 1000

func (dto CreateExpenseDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("driverId", dto.DriverID).Required(errors.ErrCodeDriverRequired)
	v.Field("merchant", dto.Merchant).Required(errors.ErrCodeMerchantRequired)
	v.Field("amountFinal", dto.AmountFinal).Positive(errors.ErrCodeAmountInvalid)
	v.Field("date", dto.Date).Required(errors.ErrCodeDateRequired).
		Date(ParseDate, errors.ErrCodeDateInvalid)
	v.Field("category", dto.Category).OneOf(category.Names(), errors.ErrCodeCategoryInvalid)
	v.Field("type", string(dto.Type)).OneOf(TypeNames(), errors.ErrCodeTypeInvalid)
	v.Field("currency", dto.Currency).ExactLength(3, errors.ErrCodeCurrencyInvalid)
	v.Field("kilometers", dto.Kilometers).MinInt(0, errors.ErrCodeKilometersInvalid)
	v.Field("notes", dto.Notes).MaxLength(MaxNotesLength, errors.ErrCodeNotesTooLong)
	return v.Validate()
}

// UpdateExpenseDTO is a patch: nil fields are left untouched, and an empty
// string clears an optional text field.
type UpdateExpenseDTO struct {
	VehicleID   *string          `json:"vehicleId,omitempty"`
	Type        *Type            `json:"type,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Merchant    *string          `json:"merchant,omitempty"`
	AmountFinal *decimal.Decimal `json:"amountFinal,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Kilometers  *int64           `json:"kilometers,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
	ReceiptURL  *string          `json:"receiptUrl,omitempty"`
}

func (dto UpdateExpenseDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if dto.Merchant != nil {
		v.Field("merchant", *dto.Merchant).Required(errors.ErrCodeMerchantRequired)
	}
	if dto.AmountFinal != nil {
		v.Field("amountFinal", *dto.AmountFinal).Positive(errors.ErrCodeAmountInvalid)
	}
	if dto.Date != nil {
		v.Field("date", *dto.Date).Required(errors.ErrCodeDateRequired).
			Date(ParseDate, errors.ErrCodeDateInvalid)
	}
	if dto.Type != nil {
		v.Field("type", string(*dto.Type)).Required(errors.ErrCodeTypeInvalid).
			OneOf(TypeNames(), errors.ErrCodeTypeInvalid)
	}
	if dto.Currency != nil {
		v.Field("currency", strings.TrimSpace(*dto.Currency)).Required(errors.ErrCodeCurrencyInvalid).
			ExactLength(3, errors.ErrCodeCurrencyInvalid)
	}
	v.Field("category", dto.Category).OneOf(category.Names(), errors.ErrCodeCategoryInvalid)
	v.Field("kilometers", dto.Kilometers).MinInt(0, errors.ErrCodeKilometersInvalid)
	v.Field("notes", dto.Notes).MaxLength(MaxNotesLength, errors.ErrCodeNotesTooLong)
	return v.Validate()
}

// Apply patches e and returns the names of the fields it changed.
func (dto UpdateExpenseDTO) Apply(e *Expense) []string {
	var changed []string
	if dto.VehicleID != nil {
		e.VehicleID = reference.FromPtr[vehicle.Vehicle](blankToNil(dto.VehicleID))
		changed = append(changed, "vehicleId")
	}
	if dto.Type != nil {
		e.Type = *dto.Type
		changed = append(changed, "type")
	}
	if dto.Category != nil {
		if c := blankToNil(dto.Category); c != nil {
			cat := category.Category(*c)
			e.Category = &cat
		} else {
			e.Category = nil
		}
		changed = append(changed, "category")
	}
	if dto.Merchant != nil {
		m := strings.TrimSpace(*dto.Merchant)
		e.Merchant = &m
		changed = append(changed, "merchant")
	}
	if dto.AmountFinal != nil {
		e.AmountFinal = *dto.AmountFinal
		changed = append(changed, "amountFinal")
	}
	if dto.Currency != nil {
		e.Currency = strings.ToUpper(strings.TrimSpace(*dto.Currency))
		changed = append(changed, "currency")
	}
	if dto.Date != nil {
		e.Date = strings.TrimSpace(*dto.Date)
		changed = append(changed, "date")
	}
	if dto.Kilometers != nil {
		km := *dto.Kilometers
		e.Kilometers = &km
		changed = append(changed, "kilometers")
	}
	if dto.Notes != nil {
		e.Notes = blankToNil(dto.Notes)
		changed = append(changed, "notes")
	}
	if dto.ReceiptURL != nil {
		e.ReceiptURL = blankToNil(dto.ReceiptURL)
		changed = append(changed, "receiptUrl")
	}
	return changed
}

// ListQuery combines the client-side criteria with server-side narrowing.
type ListQuery struct {
	Filter   FilterCriteria
	Sort     SortCriteria
	DriverID string
	Page     int
	PerPage  int
	View     string
	// Refresh drops the in-memory list before serving, as on a page reload.
	Refresh bool
}

// ViewToken identifies the criteria a page belongs to; it ignores Page.
func (q ListQuery) ViewToken() string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d",
		strings.ToLower(strings.TrimSpace(q.Filter.SearchQuery)),
		q.Filter.TypeFilter,
		q.Filter.DateFrom,
		q.Filter.DateTo,
		q.DriverID,
		q.Sort.SortBy,
		q.Sort.SortOrder,
		q.PerPage,
	)
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

type ListResult struct {
	Expenses   []Expense `json:"expenses"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	HasNext    bool      `json:"has_next"`
	HasPrev    bool      `json:"has_prev"`
	View       string    `json:"view"`
	PageReset  bool      `json:"page_reset"`
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
