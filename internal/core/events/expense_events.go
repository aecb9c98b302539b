package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeExpenseCreated  = "expense.created"
	EventTypeExpenseUpdated  = "expense.updated"
	EventTypeReceiptUploaded = "receipt.uploaded"

	EventTypeOdometerRecorded = "vehicle.odometer_recorded"
)

type ExpenseCreatedEvent struct {
	BaseEvent
	ExpenseID string `json:"expense_id"`
	DriverID  string `json:"driver_id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Source    string `json:"source"`
}

// NewExpenseCreatedEvent records where the expense came from ("api" or "wizard").
func NewExpenseCreatedEvent(expenseID, driverID, expenseType, amount, currency, source string) *ExpenseCreatedEvent {
	return &ExpenseCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID,
				"driver_id":  driverID,
				"type":       expenseType,
				"amount":     amount,
				"currency":   currency,
				"source":     source,
			},
		},
		ExpenseID: expenseID,
		DriverID:  driverID,
		Type:      expenseType,
		Amount:    amount,
		Currency:  currency,
		Source:    source,
	}
}

type ExpenseUpdatedEvent struct {
	BaseEvent
	ExpenseID string   `json:"expense_id"`
	Fields    []string `json:"fields"`
}

func NewExpenseUpdatedEvent(expenseID string, fields []string) *ExpenseUpdatedEvent {
	return &ExpenseUpdatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseUpdated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID,
				"fields":     fields,
			},
		},
		ExpenseID: expenseID,
		Fields:    fields,
	}
}

type ReceiptUploadedEvent struct {
	BaseEvent
	Digest       string `json:"digest"`
	SizeBytes    int64  `json:"size_bytes"`
	Deduplicated bool   `json:"deduplicated"`
	OCRStatus    string `json:"ocr_status"`
}

func NewReceiptUploadedEvent(digest string, size int64, deduplicated bool, ocrStatus string) *ReceiptUploadedEvent {
	return &ReceiptUploadedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeReceiptUploaded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"digest":       digest,
				"size_bytes":   size,
				"deduplicated": deduplicated,
				"ocr_status":   ocrStatus,
			},
		},
		Digest:       digest,
		SizeBytes:    size,
		Deduplicated: deduplicated,
		OCRStatus:    ocrStatus,
	}
}

// OdometerRecordedEvent fires after an expense advanced a vehicle's odometer.
type OdometerRecordedEvent struct {
	BaseEvent
	VehicleID string `json:"vehicle_id"`
	Reading   int64  `json:"reading"`
}

func NewOdometerRecordedEvent(vehicleID string, reading int64) *OdometerRecordedEvent {
	return &OdometerRecordedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeOdometerRecorded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"vehicle_id": vehicleID,
				"reading":    reading,
			},
		},
		VehicleID: vehicleID,
		Reading:   reading,
	}
}
