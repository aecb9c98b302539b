package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID            string              `gorm:"primaryKey;column:id"`
	DriverID      string              `gorm:"column:driver_id;not null;index"`
	VehicleID     *string             `gorm:"column:vehicle_id"`
	Type          string              `gorm:"column:type;not null"`
	Category      *string             `gorm:"column:category"`
	Merchant      *string             `gorm:"column:merchant"`
	AmountFinal   decimal.Decimal     `gorm:"column:amount_final;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;size:3;not null"`
	ExpenseDate   string              `gorm:"column:expense_date;not null"`
	Kilometers    *int64              `gorm:"column:kilometers"`
	Notes         *string             `gorm:"column:notes"`
	ReceiptURL    *string             `gorm:"column:receipt_url"`
	OCRAmount     decimal.NullDecimal `gorm:"column:ocr_amount;type:numeric(12,2)"`
	OCRMerchant   *string             `gorm:"column:ocr_merchant"`
	OCRDate       *string             `gorm:"column:ocr_date"`
	OCRConfidence *float64            `gorm:"column:ocr_confidence"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Expense) TableName() string {
	return "expenses"
}
