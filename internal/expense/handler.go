package expense

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/fleet-expense/internal/transport"
)

type ServiceAPI interface {
	ListExpenses(ctx context.Context, q ListQuery) (*ListResult, error)
	GetExpense(ctx context.Context, id string) (*Expense, error)
	CreateExpense(ctx context.Context, dto CreateExpenseDTO, source string) (*Expense, error)
	UpdateExpense(ctx context.Context, id string, patch UpdateExpenseDTO) (*Expense, error)
	Export(ctx context.Context, q ListQuery, format ExportFormat) ([]byte, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// parseListQuery reads listing criteria from the query string. Unknown sort
// keys fall back to the default sort in the service.
func (h *Handler) parseListQuery(r *http.Request) ListQuery {
	v := r.URL.Query()
	return ListQuery{
		Filter: FilterCriteria{
			SearchQuery: v.Get("search"),
			TypeFilter:  Type(strings.ToUpper(v.Get("type"))),
			DateFrom:    v.Get("from"),
			DateTo:      v.Get("to"),
		},
		Sort: SortCriteria{
			SortBy:    SortBy(strings.ToLower(v.Get("sort"))),
			SortOrder: SortOrder(strings.ToLower(v.Get("order"))),
		},
		DriverID: v.Get("driver_id"),
		Page:     h.QueryInt(r, "page", 1),
		PerPage:  h.QueryInt(r, "per_page", 0),
		View:     v.Get("view"),
		Refresh:  v.Get("refresh") == "true",
	}
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListExpenses(r.Context(), h.parseListQuery(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.GetExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var dto CreateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Info("CreateExpense: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.Service.CreateExpense(r.Context(), dto, SourceAPI)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateExpense: expense created successfully",
		"expense_id", e.ID,
		"driver_id", e.DriverID.ID(),
		"amount", e.AmountFinal.String())
	h.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	var patch UpdateExpenseDTO
	if err := h.DecodeJSON(r, &patch); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.Service.UpdateExpense(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

// ExportExpenses streams the filtered listing as an attachment.
func (h *Handler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	format := ExportFormat(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = FormatXLSX
	}

	data, err := h.Service.Export(r.Context(), h.parseListQuery(r), format)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	name := fmt.Sprintf("expenses-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("ExportExpenses: failed to write body", "error", err)
	}
}
