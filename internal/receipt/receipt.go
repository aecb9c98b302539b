package receipt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ocrtypes "github.com/frahmantamala/fleet-expense/internal/core/datamodel/ocrgateway"
	receiptDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/receipt"
)

// OCRResult is the extraction attached to an uploaded receipt. Every field
// except Status may be absent.
type OCRResult struct {
	Status        ocrtypes.ExtractStatus `json:"status"`
	Merchant      *string                `json:"merchant,omitempty"`
	Amount        *decimal.Decimal       `json:"amount,omitempty"`
	Date          *string                `json:"date,omitempty"`
	Currency      *string                `json:"currency,omitempty"`
	Confidence    *float64               `json:"confidence,omitempty"`
	LowConfidence bool                   `json:"lowConfidence"`
	Message       string                 `json:"message,omitempty"`
}

// Failed reports whether extraction produced nothing usable.
func (r *OCRResult) Failed() bool {
	return r == nil || r.Status == ocrtypes.ExtractStatusFailed
}

// FailedOCR is recorded when the extraction service is unreachable.
func FailedOCR(message string) *OCRResult {
	return &OCRResult{Status: ocrtypes.ExtractStatusFailed, LowConfidence: true, Message: message}
}

// FromExtract converts a gateway response. A missing confidence, or one
// below threshold, marks the result for manual verification.
func FromExtract(resp *ocrtypes.ExtractResponse, threshold float64) *OCRResult {
	if resp == nil {
		return FailedOCR("no extraction result")
	}

	out := &OCRResult{
		Status:     resp.Status,
		Merchant:   trimmed(resp.Data.Merchant),
		Date:       trimmed(resp.Data.Date),
		Confidence: resp.Data.Confidence,
		Message:    resp.Message,
	}
	if c := trimmed(resp.Data.Currency); c != nil {
		upper := strings.ToUpper(*c)
		out.Currency = &upper
	}
	if a := trimmed(resp.Data.Amount); a != nil {
		if amount, err := decimal.NewFromString(*a); err == nil {
			out.Amount = &amount
		}
	}
	out.LowConfidence = out.Confidence == nil || *out.Confidence < threshold
	return out
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

type Receipt struct {
	Digest      string     `json:"digest"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType"`
	SizeBytes   int64      `json:"sizeBytes"`
	BlobID      string     `json:"-"`
	OCR         *OCRResult `json:"ocrResult,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// UploadResult is returned by an upload. ReceiptURL is the stable path
// stored on the expense; DownloadURL is a short-lived signed link.
type UploadResult struct {
	Digest       string     `json:"digest"`
	ReceiptURL   string     `json:"receiptUrl"`
	DownloadURL  string     `json:"downloadUrl"`
	OCRResult    *OCRResult `json:"ocrResult"`
	Deduplicated bool       `json:"deduplicated"`
}

func ToDataModel(r *Receipt) (*receiptDatamodel.Receipt, error) {
	row := &receiptDatamodel.Receipt{
		Digest:      r.Digest,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		SizeBytes:   r.SizeBytes,
		BlobID:      r.BlobID,
		CreatedAt:   r.CreatedAt,
	}
	if r.OCR != nil {
		raw, err := json.Marshal(r.OCR)
		if err != nil {
			return nil, err
		}
		row.OCRResult = raw
	}
	return row, nil
}

// FromDataModel tolerates a corrupt OCR column by dropping it, so the next
// upload of the same file re-extracts.
func FromDataModel(row *receiptDatamodel.Receipt) *Receipt {
	r := &Receipt{
		Digest:      row.Digest,
		FileName:    row.FileName,
		ContentType: row.ContentType,
		SizeBytes:   row.SizeBytes,
		BlobID:      row.BlobID,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.OCRResult) > 0 {
		var ocr OCRResult
		if err := json.Unmarshal(row.OCRResult, &ocr); err == nil {
			r.OCR = &ocr
		}
	}
	return r
}
