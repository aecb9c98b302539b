package receipt

import (
	"encoding/json"
	"time"
)

// Receipt is the metadata row for a stored receipt blob, keyed by content digest.
type Receipt struct {
	Digest      string          `gorm:"primaryKey;column:digest"`
	FileName    string          `gorm:"column:file_name;not null"`
	ContentType string          `gorm:"column:content_type;not null"`
	SizeBytes   int64           `gorm:"column:size_bytes;not null"`
	BlobID      string          `gorm:"column:blob_id;not null"`
	OCRResult   json.RawMessage `gorm:"column:ocr_result;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Receipt) TableName() string {
	return "receipts"
}
