package driver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
)

type ServiceAPI interface {
	SearchDrivers(ctx context.Context, query string) ([]Driver, error)
	GetDriver(ctx context.Context, id string) (*Driver, error)
}

// VehicleLookup resolves the vehicle assigned to a driver; nil means none.
type VehicleLookup interface {
	AssignedVehicle(ctx context.Context, d Driver) (*vehicle.Vehicle, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Lookup  VehicleLookup
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, lookup VehicleLookup) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Lookup:      lookup,
	}
}

type DriversResponse struct {
	Drivers []Driver `json:"drivers"`
}

type AssignedVehicleResponse struct {
	DriverID string           `json:"driver_id"`
	Vehicle  *vehicle.Vehicle `json:"vehicle"`
}

func (h *Handler) SearchDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Service.SearchDrivers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if drivers == nil {
		drivers = []Driver{}
	}
	h.WriteJSON(w, http.StatusOK, DriversResponse{Drivers: drivers})
}

func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.GetDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) GetAssignedVehicle(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.GetDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	v, err := h.Lookup.AssignedVehicle(r.Context(), *d)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AssignedVehicleResponse{DriverID: d.ID, Vehicle: v})
}
