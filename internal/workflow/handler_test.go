package workflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/lookup"
	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
	"github.com/frahmantamala/fleet-expense/internal/workflow"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

var _ = Describe("Workflow Handler", func() {
	var (
		router  chi.Router
		creator *mockCreator
	)

	BeforeEach(func() {
		directory := &mockDirectory{drivers: []driver.Driver{
			{ID: "d1", Name: "Alice Martin", AssignedVehicleID: reference.ByID[vehicle.Vehicle]("v1")},
		}}
		vehicles := &mockVehicleGetter{vehicles: map[string]vehicle.Vehicle{
			"v1": {ID: "v1", CurrentOdometer: 50000},
		}}
		creator = &mockCreator{}
		service := workflow.NewService(directory, lookup.NewVehicleLookup(vehicles, logger.Discard()),
			&mockUploader{result: ocrUpload(0.9)}, creator,
			workflow.Config{SearchDebounce: 5 * time.Millisecond}, logger.Discard())
		handler := workflow.NewHandler(transport.NewBaseHandler(logger.Discard()), service, 1<<20)

		router = chi.NewRouter()
		router.Route("/expense-drafts", func(r chi.Router) {
			r.Post("/", handler.CreateDraft)
			r.Get("/{id}", handler.GetDraft)
			r.Patch("/{id}", handler.UpdateForm)
			r.Delete("/{id}", handler.Cancel)
			r.Put("/{id}/search", handler.SearchDrivers)
			r.Post("/{id}/driver", handler.SelectDriver)
			r.Post("/{id}/back", handler.Back)
			r.Post("/{id}/receipt", handler.AttachReceipt)
			r.Post("/{id}/submit", handler.Submit)
		})
	})

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		req = req.WithContext(context.Background())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) workflow.Snapshot {
		var snap workflow.Snapshot
		Expect(json.NewDecoder(w.Body).Decode(&snap)).To(Succeed())
		return snap
	}

	It("should walk a draft from creation to submission", func() {
		w := serve(http.MethodPost, "/expense-drafts/", "")
		Expect(w.Code).To(Equal(http.StatusCreated))
		id := decode(w).ID
		base := "/expense-drafts/" + id

		w = serve(http.MethodPut, base+"/search", `{"query":"alice"}`)
		Expect(w.Code).To(Equal(http.StatusAccepted))

		w = serve(http.MethodPost, base+"/driver", `{"driver_id":"d1"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		snap := decode(w)
		Expect(snap.State).To(Equal(workflow.StateDetailEntry))
		Expect(snap.Form.Kilometers).To(Equal("50000"))

		w = serve(http.MethodPatch, base, `{"merchant":"Shell","amount":"45","date":"2024-03-01","kilometers":"49999"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = serve(http.MethodPost, base+"/submit", "")
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(w.Body.String()).To(ContainSubstring("odometerRegression"))

		serve(http.MethodPatch, base, `{"kilometers":"50001"}`)
		w = serve(http.MethodPost, base+"/submit", "")
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(decode(w).State).To(Equal(workflow.StateClosed))
		Expect(creator.payloads).To(HaveLen(1))
	})

	It("should answer 409 for a step in the wrong state", func() {
		id := decode(serve(http.MethodPost, "/expense-drafts/", "")).ID

		w := serve(http.MethodPost, "/expense-drafts/"+id+"/submit", "")
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("ILLEGAL_TRANSITION"))
	})

	It("should cancel and then 404", func() {
		id := decode(serve(http.MethodPost, "/expense-drafts/", "")).ID

		Expect(serve(http.MethodDelete, "/expense-drafts/"+id, "").Code).To(Equal(http.StatusNoContent))
		Expect(serve(http.MethodGet, "/expense-drafts/"+id, "").Code).To(Equal(http.StatusNotFound))
	})

	It("should reject unknown form fields", func() {
		id := decode(serve(http.MethodPost, "/expense-drafts/", "")).ID
		serve(http.MethodPost, "/expense-drafts/"+id+"/driver", `{"driver_id":"d1"}`)

		w := serve(http.MethodPatch, "/expense-drafts/"+id, `{"status":"approved"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
