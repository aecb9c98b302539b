package vehicle

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/fleet-expense/internal/transport"
)

type ServiceAPI interface {
	GetVehicle(ctx context.Context, id string) (*Vehicle, error)
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

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.Service.GetVehicle(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, v)
}
