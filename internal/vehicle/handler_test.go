package vehicle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	vehicleDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/vehicle"
	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

type mockVehicleRepository struct {
	vehicles map[string]*vehicleDatamodel.Vehicle
	updates  []int64
}

func (m *mockVehicleRepository) GetByID(ctx context.Context, id string) (*vehicleDatamodel.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return nil, vehicle.ErrVehicleNotFound
	}
	return v, nil
}

func (m *mockVehicleRepository) Create(ctx context.Context, v *vehicleDatamodel.Vehicle) error {
	m.vehicles[v.ID] = v
	return nil
}

func (m *mockVehicleRepository) UpdateOdometer(ctx context.Context, id string, reading int64) error {
	m.updates = append(m.updates, reading)
	m.vehicles[id].CurrentOdometer = reading
	return nil
}

var _ = Describe("Vehicle", func() {
	var (
		repo    *mockVehicleRepository
		service *vehicle.Service
		router  chi.Router
	)

	BeforeEach(func() {
		repo = &mockVehicleRepository{vehicles: map[string]*vehicleDatamodel.Vehicle{
			"v1": {ID: "v1", Make: "Ford", Model: "Transit", LicensePlate: "AB-123-CD", CurrentOdometer: 50000},
		}}
		service = vehicle.NewService(repo, logger.Discard())
		handler := vehicle.NewHandler(transport.NewBaseHandler(logger.Discard()), service)

		router = chi.NewRouter()
		router.Get("/vehicles/{id}", handler.GetVehicle)
	})

	Describe("GET /vehicles/{id}", func() {
		It("returns the vehicle", func() {
			req := httptest.NewRequest(http.MethodGet, "/vehicles/v1", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var got vehicle.Vehicle
			Expect(json.NewDecoder(w.Body).Decode(&got)).To(Succeed())
			Expect(got.ID).To(Equal("v1"))
			Expect(got.DisplayName()).To(Equal("Ford Transit (AB-123-CD)"))
		})

		It("returns 404 for an unknown vehicle", func() {
			req := httptest.NewRequest(http.MethodGet, "/vehicles/unknown", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(w.Body.String()).To(ContainSubstring("VEHICLE_NOT_FOUND"))
		})
	})

	Describe("RecordOdometer", func() {
		It("ignores readings that do not advance the odometer", func() {
			Expect(service.RecordOdometer(context.Background(), "v1", 50000)).To(Succeed())
			Expect(repo.updates).To(BeEmpty())
		})

		It("stores a higher reading", func() {
			Expect(service.RecordOdometer(context.Background(), "v1", 50100)).To(Succeed())
			Expect(repo.updates).To(Equal([]int64{50100}))
		})
	})
})
