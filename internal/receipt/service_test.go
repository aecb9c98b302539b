package receipt_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	ocrtypes "github.com/frahmantamala/fleet-expense/internal/core/datamodel/ocrgateway"
	receiptDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/receipt"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

type mockMetadataRepository struct {
	mu   sync.Mutex
	rows map[string]*receiptDatamodel.Receipt
}

func (m *mockMetadataRepository) GetByDigest(ctx context.Context, digest string) (*receiptDatamodel.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[digest]
	if !ok {
		return nil, receipt.ErrReceiptNotFound
	}
	clone := *row
	return &clone, nil
}

func (m *mockMetadataRepository) Create(ctx context.Context, row *receiptDatamodel.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.Digest] = row
	return nil
}

func (m *mockMetadataRepository) UpdateOCR(ctx context.Context, digest string, row *receiptDatamodel.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[digest].OCRResult = row.OCRResult
	return nil
}

type mockBlobStore struct {
	blobs map[string][]byte
	puts  int
	err   error
}

func (m *mockBlobStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.puts++
	id := name + "-blob"
	m.blobs[id] = data
	return id, nil
}

func (m *mockBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, ok := m.blobs[id]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return data, nil
}

type mockExtractor struct {
	resp  *ocrtypes.ExtractResponse
	err   error
	calls int
}

func (m *mockExtractor) Extract(ctx context.Context, req *ocrtypes.ExtractRequest) (*ocrtypes.ExtractResponse, error) {
	m.calls++
	return m.resp, m.err
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

var _ = Describe("ReceiptService", func() {
	var (
		meta    *mockMetadataRepository
		blobs   *mockBlobStore
		ocr     *mockExtractor
		signer  *receipt.Signer
		service *receipt.Service
		ctx     context.Context
		input   receipt.UploadInput
	)

	BeforeEach(func() {
		ctx = context.Background()
		meta = &mockMetadataRepository{rows: map[string]*receiptDatamodel.Receipt{}}
		blobs = &mockBlobStore{blobs: map[string][]byte{}}
		ocr = &mockExtractor{resp: &ocrtypes.ExtractResponse{
			Status: ocrtypes.ExtractStatusSuccess,
			Data: ocrtypes.ExtractData{
				Merchant:   strPtr(" Shell "),
				Amount:     strPtr("41.20"),
				Date:       strPtr("2024-03-02"),
				Currency:   strPtr("eur"),
				Confidence: floatPtr(0.91),
			},
		}}
		signer = receipt.NewSigner(testSecret, time.Hour, "/api/v1/receipts")
		service = receipt.NewService(meta, blobs, ocr, signer, nil, receipt.ServiceConfig{
			MaxUploadBytes:      1024,
			ConfidenceThreshold: 0.5,
		}, logger.Discard())
		input = receipt.UploadInput{FileName: "r.jpg", ContentType: "image/jpeg", Data: []byte("receipt-image")}
	})

	It("should store a new receipt and return the extraction", func() {
		res, err := service.Upload(ctx, input)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Deduplicated).To(BeFalse())
		Expect(res.Digest).To(Equal(receipt.Digest(input.Data)))
		Expect(res.ReceiptURL).To(Equal("/api/v1/receipts/" + res.Digest))
		Expect(res.DownloadURL).To(ContainSubstring("token="))
		Expect(*res.OCRResult.Merchant).To(Equal("Shell"))
		Expect(res.OCRResult.Amount.String()).To(Equal("41.2"))
		Expect(*res.OCRResult.Currency).To(Equal("EUR"))
		Expect(res.OCRResult.LowConfidence).To(BeFalse())
		Expect(blobs.puts).To(Equal(1))
	})

	It("should reuse the stored blob and extraction for identical content", func() {
		_, err := service.Upload(ctx, input)
		Expect(err).NotTo(HaveOccurred())

		again, err := service.Upload(ctx, receipt.UploadInput{FileName: "copy.jpg", Data: input.Data})
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Deduplicated).To(BeTrue())
		Expect(*again.OCRResult.Merchant).To(Equal("Shell"))
		Expect(blobs.puts).To(Equal(1))
		Expect(ocr.calls).To(Equal(1))
	})

	It("should keep the upload when OCR fails and retry it on re-upload", func() {
		ocr.err = errors.New("connection refused")
		res, err := service.Upload(ctx, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OCRResult.Status).To(Equal(ocrtypes.ExtractStatusFailed))
		Expect(res.OCRResult.Merchant).To(BeNil())

		ocr.err = nil
		again, err := service.Upload(ctx, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.OCRResult.Status).To(Equal(ocrtypes.ExtractStatusSuccess))
		Expect(ocr.calls).To(Equal(2))

		stored, err := service.GetReceipt(ctx, res.Digest)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.OCR.Status).To(Equal(ocrtypes.ExtractStatusSuccess))
	})

	It("should flag low-confidence and unscored extractions", func() {
		ocr.resp.Data.Confidence = floatPtr(0.3)
		res, err := service.Upload(ctx, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OCRResult.LowConfidence).To(BeTrue())

		ocr.resp.Data.Confidence = nil
		res, err = service.Upload(ctx, receipt.UploadInput{FileName: "b.jpg", Data: []byte("other")})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OCRResult.LowConfidence).To(BeTrue())
	})

	It("should drop an unparseable OCR amount", func() {
		ocr.resp.Data.Amount = strPtr("about ten")
		res, err := service.Upload(ctx, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OCRResult.Amount).To(BeNil())
	})

	It("should reject oversized and empty files", func() {
		_, err := service.Upload(ctx, receipt.UploadInput{FileName: "big.jpg", Data: make([]byte, 2048)})
		appErr, ok := appErrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(appErrors.ErrCodeReceiptTooLarge))
		Expect(appErr.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))

		_, err = service.Upload(ctx, receipt.UploadInput{FileName: "empty.jpg"})
		Expect(err).To(HaveOccurred())
		Expect(blobs.puts).To(BeZero())
	})

	It("should surface blob store failures", func() {
		blobs.err = errors.New("gridfs down")
		_, err := service.Upload(ctx, input)
		appErr, ok := appErrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(appErrors.ErrorTypeExternal))
	})

	Describe("Open", func() {
		var digest string

		BeforeEach(func() {
			res, err := service.Upload(ctx, input)
			Expect(err).NotTo(HaveOccurred())
			digest = res.Digest
		})

		It("should return the bytes for a valid link", func() {
			link, err := service.Link(ctx, digest)
			Expect(err).NotTo(HaveOccurred())

			rec, data, err := service.Open(ctx, digest, tokenOf(link))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ContentType).To(Equal("image/jpeg"))
			Expect(data).To(Equal(input.Data))
		})

		It("should refuse a bad token", func() {
			_, _, err := service.Open(ctx, digest, "bogus")
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("should report unknown digests", func() {
			_, err := service.Link(ctx, "nope")
			Expect(errors.Is(err, receipt.ErrReceiptNotFound)).To(BeTrue())
		})
	})
})
