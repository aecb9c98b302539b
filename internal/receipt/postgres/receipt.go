package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	receiptDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/receipt"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
)

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) receipt.MetadataRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) GetByDigest(ctx context.Context, digest string) (*receiptDatamodel.Receipt, error) {
	var row receiptDatamodel.Receipt
	err := r.db.WithContext(ctx).Where("digest = ?", digest).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, receipt.ErrReceiptNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Create ignores a concurrent insert of the same digest; the content is
// identical by construction.
func (r *ReceiptRepository) Create(ctx context.Context, row *receiptDatamodel.Receipt) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest"}}, DoNothing: true}).
		Create(row).Error
}

func (r *ReceiptRepository) UpdateOCR(ctx context.Context, digest string, row *receiptDatamodel.Receipt) error {
	return r.db.WithContext(ctx).Model(&receiptDatamodel.Receipt{}).
		Where("digest = ?", digest).
		Update("ocr_result", row.OCRResult).Error
}
