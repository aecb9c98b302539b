package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeForbidden  ErrorType = "FORBIDDEN"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"

	ErrCodeExpenseNotFound ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeDriverNotFound  ErrorCode = "DRIVER_NOT_FOUND"
	ErrCodeVehicleNotFound ErrorCode = "VEHICLE_NOT_FOUND"
	ErrCodeReceiptNotFound ErrorCode = "RECEIPT_NOT_FOUND"
	ErrCodeDraftNotFound   ErrorCode = "DRAFT_NOT_FOUND"

	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeReceiptTooLarge   ErrorCode = "RECEIPT_TOO_LARGE"
	ErrCodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"

	ErrCodeSubmissionFailed ErrorCode = "SUBMISSION_FAILED"
	ErrCodeOCRUnavailable   ErrorCode = "OCR_UNAVAILABLE"
	ErrCodeStorageFailed    ErrorCode = "STORAGE_FAILED"
)

// Field-level codes; the console keys its inline messages on these.
const (
	ErrCodeDriverRequired     ErrorCode = "driverRequired"
	ErrCodeMerchantRequired   ErrorCode = "merchantRequired"
	ErrCodeAmountInvalid      ErrorCode = "amountInvalid"
	ErrCodeDateRequired       ErrorCode = "dateRequired"
	ErrCodeDateInvalid        ErrorCode = "dateInvalid"
	ErrCodeCategoryInvalid    ErrorCode = "categoryInvalid"
	ErrCodeTypeInvalid        ErrorCode = "typeInvalid"
	ErrCodeCurrencyInvalid    ErrorCode = "currencyInvalid"
	ErrCodeKilometersInvalid  ErrorCode = "kilometersInvalid"
	ErrCodeNotesTooLong       ErrorCode = "notesTooLong"
	ErrCodeOdometerRegression ErrorCode = "odometerRegression"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
		messages := make([]string, len(validationErrors.Errors))
		for i, err := range validationErrors.Errors {
			messages[i] = err.Message
		}
		return strings.Join(messages, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches AppErrors by code so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// FieldMap keys every failing field to its first code.
func (v ValidationErrors) FieldMap() map[string]string {
	out := make(map[string]string, len(v.Errors))
	for _, e := range v.Errors {
		if _, seen := out[e.Field]; seen {
			continue
		}
		out[e.Field] = e.Code
	}
	return out
}

// Message returns the message recorded for field, or "".
func (v ValidationErrors) Message(field string) string {
	for _, e := range v.Errors {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusUnprocessableEntity,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewExternalError wraps a failure reported by a collaborator (OCR, storage).
func NewExternalError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

var (
	ErrExpenseNotFound   = NewNotFoundError("Expense not found", ErrCodeExpenseNotFound)
	ErrDriverNotFound    = NewNotFoundError("Driver not found", ErrCodeDriverNotFound)
	ErrVehicleNotFound   = NewNotFoundError("Vehicle not found", ErrCodeVehicleNotFound)
	ErrReceiptNotFound   = NewNotFoundError("Receipt not found", ErrCodeReceiptNotFound)
	ErrDraftNotFound     = NewNotFoundError("Expense draft not found", ErrCodeDraftNotFound)
	ErrIllegalTransition = NewConflictError("Operation not allowed in the current step", ErrCodeIllegalTransition)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
