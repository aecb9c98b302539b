package ocrgateway

import (
	"errors"
)

type ExtractStatus string

const (
	ExtractStatusSuccess ExtractStatus = "SUCCESS"
	ExtractStatusPartial ExtractStatus = "PARTIAL"
	ExtractStatusFailed  ExtractStatus = "FAILED"
)

type ExtractRequest struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (r *ExtractRequest) Validate() error {
	if r.FileName == "" {
		return errors.New("file_name is required")
	}
	if len(r.Data) == 0 {
		return errors.New("file is empty")
	}
	return nil
}

// ExtractData carries the recognised fields; any of them may be absent.
type ExtractData struct {
	Merchant   *string  `json:"merchant,omitempty"`
	Amount     *string  `json:"amount,omitempty"`
	Date       *string  `json:"date,omitempty"`
	Currency   *string  `json:"currency,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type ExtractResponse struct {
	Status  ExtractStatus `json:"status"`
	Data    ExtractData   `json:"data"`
	Message string        `json:"message,omitempty"`
}
