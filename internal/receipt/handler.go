package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/fleet-expense/internal/transport"
)

type ServiceAPI interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	Link(ctx context.Context, digest string) (string, error)
	Open(ctx context.Context, digest, token string) (*Receipt, []byte, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	MaxBytes int64
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, maxBytes int64) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		MaxBytes:    maxBytes,
	}
}

type LinkResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// UploadReceipt accepts a multipart form with a single "file" part.
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	// one extra MiB for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("receipt exceeds %d bytes", h.MaxBytes))
			return
		}
		h.WriteError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	result, err := h.Service.Upload(r.Context(), UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, result)
}

func (h *Handler) GetReceiptLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.Service.Link(r.Context(), chi.URLParam(r, "digest"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, LinkResponse{DownloadURL: link})
}

// DownloadReceipt serves the file behind a signed link.
func (h *Handler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	rec, data, err := h.Service.Open(r.Context(), chi.URLParam(r, "digest"), r.URL.Query().Get("token"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.FileName))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("DownloadReceipt: failed to write body", "error", err)
	}
}
