package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

type ServiceAPI interface {
	NewDraft(ctx context.Context) *Snapshot
	GetDraft(ctx context.Context, id string) (*Snapshot, error)
	Search(ctx context.Context, id, query string) (*Snapshot, error)
	SelectDriver(ctx context.Context, id, driverID string) (*Snapshot, error)
	Back(ctx context.Context, id string) (*Snapshot, error)
	UpdateForm(ctx context.Context, id string, patch FormPatch) (*Snapshot, error)
	AttachReceipt(ctx context.Context, id string, in receipt.UploadInput) (*Snapshot, error)
	Submit(ctx context.Context, id string) (*Snapshot, error)
	Cancel(ctx context.Context, id string) error
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

type SearchRequest struct {
	Query string `json:"query"`
}

type SelectDriverRequest struct {
	DriverID string `json:"driver_id"`
}

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusCreated, h.Service.NewDraft(r.Context()))
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.GetDraft(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, snap, err)
}

// SearchDrivers schedules a debounced query; poll GetDraft for results.
func (h *Handler) SearchDrivers(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.Service.Search(r.Context(), chi.URLParam(r, "id"), req.Query)
	h.respond(w, r, http.StatusAccepted, snap, err)
}

func (h *Handler) SelectDriver(w http.ResponseWriter, r *http.Request) {
	var req SelectDriverRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DriverID == "" {
		h.WriteError(w, http.StatusBadRequest, "driver_id is required")
		return
	}
	snap, err := h.Service.SelectDriver(r.Context(), chi.URLParam(r, "id"), req.DriverID)
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Back(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	var patch FormPatch
	if err := h.DecodeJSON(r, &patch); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.Service.UpdateForm(r.Context(), chi.URLParam(r, "id"), patch)
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *Handler) AttachReceipt(w http.ResponseWriter, r *http.Request) {
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

	snap, err := h.Service.AttachReceipt(r.Context(), chi.URLParam(r, "id"), receipt.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Submit(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusCreated, snap, err)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DraftContext tags the request context and logger with the draft id.
func (h *Handler) DraftContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := internal.ContextWithDraftID(r.Context(), id)
		ctx = logger.With(ctx, "draft_id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, snap *Snapshot, err error) {
	if err != nil {
		logger.From(r.Context()).Debug("draft step rejected",
			"draft_id", internal.DraftIDFromContext(r.Context()),
			"error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, status, snap)
}
