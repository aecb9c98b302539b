package receipt_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ocrtypes "github.com/frahmantamala/fleet-expense/internal/core/datamodel/ocrgateway"
	receiptDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/receipt"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

func multipartBody(field, name string, data []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, name)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(form.Close()).To(Succeed())
	return &body, form.FormDataContentType()
}

var _ = Describe("ReceiptHandler", func() {
	var router chi.Router

	BeforeEach(func() {
		service := receipt.NewService(
			&mockMetadataRepository{rows: map[string]*receiptDatamodel.Receipt{}},
			&mockBlobStore{blobs: map[string][]byte{}},
			&mockExtractor{resp: &ocrtypes.ExtractResponse{Status: ocrtypes.ExtractStatusPartial}},
			receipt.NewSigner(testSecret, time.Hour, "/receipts"),
			nil,
			receipt.ServiceConfig{MaxUploadBytes: 64},
			logger.Discard(),
		)
		handler := receipt.NewHandler(transport.NewBaseHandler(logger.Discard()), service, 64)

		router = chi.NewRouter()
		router.Post("/receipts", handler.UploadReceipt)
		router.Get("/receipts/{digest}", handler.DownloadReceipt)
		router.Get("/receipts/{digest}/link", handler.GetReceiptLink)
	})

	upload := func(data []byte) *httptest.ResponseRecorder {
		body, contentType := multipartBody("file", "r.png", data)
		req := httptest.NewRequest(http.MethodPost, "/receipts", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("should upload, then answer 200 for the same content", func() {
		w := upload([]byte("png-bytes"))
		Expect(w.Code).To(Equal(http.StatusCreated))

		var res receipt.UploadResult
		Expect(json.NewDecoder(w.Body).Decode(&res)).To(Succeed())
		Expect(res.OCRResult.Status).To(Equal(ocrtypes.ExtractStatusPartial))

		Expect(upload([]byte("png-bytes")).Code).To(Equal(http.StatusOK))
	})

	It("should serve the file through the signed link", func() {
		var res receipt.UploadResult
		Expect(json.NewDecoder(upload([]byte("png-bytes")).Body).Decode(&res)).To(Succeed())

		req := httptest.NewRequest(http.MethodGet, res.DownloadURL, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("png-bytes"))

		req = httptest.NewRequest(http.MethodGet, res.ReceiptURL, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("should issue a fresh link", func() {
		var res receipt.UploadResult
		Expect(json.NewDecoder(upload([]byte("png-bytes")).Body).Decode(&res)).To(Succeed())

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, res.ReceiptURL+"/link", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("token="))
	})

	It("should require the file field", func() {
		body, contentType := multipartBody("other", "r.png", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/receipts", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should reject files over the limit", func() {
		Expect(upload(bytes.Repeat([]byte("x"), 100)).Code).To(Equal(http.StatusRequestEntityTooLarge))
	})
})
