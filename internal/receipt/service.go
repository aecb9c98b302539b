package receipt

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	ocrtypes "github.com/frahmantamala/fleet-expense/internal/core/datamodel/ocrgateway"
	receiptDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/receipt"
	"github.com/frahmantamala/fleet-expense/internal/core/events"
	"github.com/frahmantamala/fleet-expense/internal/observability/metrics"
)

var ErrReceiptNotFound = appErrors.ErrReceiptNotFound

type MetadataRepository interface {
	GetByDigest(ctx context.Context, digest string) (*receiptDatamodel.Receipt, error)
	Create(ctx context.Context, row *receiptDatamodel.Receipt) error
	UpdateOCR(ctx context.Context, digest string, row *receiptDatamodel.Receipt) error
}

// BlobStore holds the receipt bytes.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

type Extractor interface {
	Extract(ctx context.Context, req *ocrtypes.ExtractRequest) (*ocrtypes.ExtractResponse, error)
}

type ServiceConfig struct {
	MaxUploadBytes      int64
	ConfidenceThreshold float64
}

type Service struct {
	meta      MetadataRepository
	blobs     BlobStore
	ocr       Extractor
	signer    *Signer
	publisher events.Publisher
	cfg       ServiceConfig
	logger    *slog.Logger
}

func NewService(meta MetadataRepository, blobs BlobStore, ocr Extractor, signer *Signer, publisher events.Publisher, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Service{
		meta:      meta,
		blobs:     blobs,
		ocr:       ocr,
		signer:    signer,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

type UploadInput struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Digest is the content address of a receipt.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload stores the file once per content digest and runs OCR. OCR failures
// never fail the upload; they come back as a FAILED result.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if len(in.Data) == 0 {
		metrics.IncReceiptUpload(metrics.ReceiptFailed)
		return nil, appErrors.NewValidationFieldError("file", "file is empty", appErrors.ErrCodeInvalidRequest)
	}
	if int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		metrics.IncReceiptUpload(metrics.ReceiptFailed)
		tooLarge := appErrors.NewValidationError(
			fmt.Sprintf("receipt exceeds %d bytes", s.cfg.MaxUploadBytes), appErrors.ErrCodeReceiptTooLarge)
		tooLarge.StatusCode = http.StatusRequestEntityTooLarge
		return nil, tooLarge
	}
	if in.ContentType == "" {
		in.ContentType = http.DetectContentType(in.Data)
	}

	digest := Digest(in.Data)
	existing, err := s.meta.GetByDigest(ctx, digest)
	switch {
	case err == nil:
		return s.reuse(ctx, FromDataModel(existing), in)
	case !errors.Is(err, ErrReceiptNotFound):
		metrics.IncReceiptUpload(metrics.ReceiptFailed)
		s.logger.Error("failed to look up receipt", "digest", digest, "error", err)
		return nil, appErrors.NewInternalError("failed to store receipt", err)
	}

	blobID, err := s.blobs.Put(ctx, in.FileName, in.ContentType, in.Data)
	if err != nil {
		metrics.IncReceiptUpload(metrics.ReceiptFailed)
		s.logger.Error("failed to write receipt blob", "digest", digest, "error", err)
		return nil, appErrors.NewExternalError("failed to store receipt", appErrors.ErrCodeStorageFailed, err)
	}

	r := &Receipt{
		Digest:      digest,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		SizeBytes:   int64(len(in.Data)),
		BlobID:      blobID,
		OCR:         s.extract(ctx, in),
		CreatedAt:   time.Now().UTC(),
	}
	row, err := ToDataModel(r)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to store receipt", err)
	}
	if err := s.meta.Create(ctx, row); err != nil {
		metrics.IncReceiptUpload(metrics.ReceiptFailed)
		s.logger.Error("failed to save receipt metadata", "digest", digest, "error", err)
		return nil, appErrors.NewInternalError("failed to store receipt", err)
	}

	metrics.IncReceiptUpload(metrics.ReceiptStored)
	s.logger.Info("receipt stored",
		"digest", digest,
		"size_bytes", r.SizeBytes,
		"ocr_status", r.OCR.Status)
	return s.result(ctx, r, false)
}

// reuse answers a re-upload from stored metadata, retrying OCR only when the
// previous attempt failed.
func (s *Service) reuse(ctx context.Context, r *Receipt, in UploadInput) (*UploadResult, error) {
	if r.OCR.Failed() {
		r.OCR = s.extract(ctx, in)
		if !r.OCR.Failed() {
			row, err := ToDataModel(r)
			if err == nil {
				err = s.meta.UpdateOCR(ctx, r.Digest, row)
			}
			if err != nil {
				s.logger.Warn("failed to persist retried ocr result", "digest", r.Digest, "error", err)
			}
		}
	}

	metrics.IncReceiptUpload(metrics.ReceiptDeduplicated)
	s.logger.Info("receipt already stored", "digest", r.Digest)
	return s.result(ctx, r, true)
}

func (s *Service) result(ctx context.Context, r *Receipt, dedup bool) (*UploadResult, error) {
	link, err := s.signer.URL(r.Digest)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to sign receipt link", err)
	}

	if s.publisher != nil {
		event := events.NewReceiptUploadedEvent(r.Digest, r.SizeBytes, dedup, string(r.OCR.Status))
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
		}
	}

	return &UploadResult{
		Digest:       r.Digest,
		ReceiptURL:   s.signer.Path(r.Digest),
		DownloadURL:  link,
		OCRResult:    r.OCR,
		Deduplicated: dedup,
	}, nil
}

func (s *Service) extract(ctx context.Context, in UploadInput) *OCRResult {
	if s.ocr == nil {
		return FailedOCR("ocr is not configured")
	}
	resp, err := s.ocr.Extract(ctx, &ocrtypes.ExtractRequest{
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Data:        in.Data,
	})
	if err != nil {
		s.logger.Warn("receipt ocr failed", "file_name", in.FileName, "error", err)
		return FailedOCR("Receipt could not be read automatically")
	}
	return FromExtract(resp, s.cfg.ConfidenceThreshold)
}

func (s *Service) GetReceipt(ctx context.Context, digest string) (*Receipt, error) {
	row, err := s.meta.GetByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrReceiptNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, appErrors.NewInternalError("failed to get receipt", err)
	}
	return FromDataModel(row), nil
}

// Link issues a fresh signed download URL.
func (s *Service) Link(ctx context.Context, digest string) (string, error) {
	if _, err := s.GetReceipt(ctx, digest); err != nil {
		return "", err
	}
	link, err := s.signer.URL(digest)
	if err != nil {
		return "", appErrors.NewInternalError("failed to sign receipt link", err)
	}
	return link, nil
}

// Open checks the download token and returns the receipt with its bytes.
func (s *Service) Open(ctx context.Context, digest, token string) (*Receipt, []byte, error) {
	if err := s.signer.Verify(token, digest); err != nil {
		return nil, nil, appErrors.NewForbiddenError("receipt link is invalid or expired", appErrors.ErrCodeInvalidSignature).WithCause(err)
	}

	r, err := s.GetReceipt(ctx, digest)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Get(ctx, r.BlobID)
	if err != nil {
		s.logger.Error("failed to read receipt blob", "digest", digest, "blob_id", r.BlobID, "error", err)
		return nil, nil, appErrors.NewExternalError("failed to read receipt", appErrors.ErrCodeStorageFailed, err)
	}
	return r, data, nil
}
