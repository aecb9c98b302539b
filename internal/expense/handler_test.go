package expense_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

var _ = Describe("ExpenseHandler", func() {
	var (
		repo    *mockExpenseRepository
		handler *expense.Handler
		router  chi.Router
	)

	BeforeEach(func() {
		repo = newMockExpenseRepository()
		repo.seed(newExpense("e1", "Shell", expense.TypeFuel, "2024-01-05", "40"))
		repo.seed(newExpense("e2", "Parking Co", expense.TypeMisc, "2024-01-20", "15"))

		service := expense.NewService(repo, &mockDirectory{}, expense.NewListStore(), nil,
			expense.ServiceConfig{}, logger.Discard())
		handler = expense.NewHandler(transport.NewBaseHandler(logger.Discard()), service)

		router = chi.NewRouter()
		router.Get("/expenses", handler.ListExpenses)
		router.Post("/expenses", handler.CreateExpense)
		router.Get("/expenses/export", handler.ExportExpenses)
		router.Get("/expenses/{id}", handler.GetExpense)
		router.Patch("/expenses/{id}", handler.UpdateExpense)
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

	It("should list with filter and sort from the query string", func() {
		w := serve(http.MethodGet, "/expenses?search=shell&sort=amount&order=asc", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var res expense.ListResult
		Expect(json.NewDecoder(w.Body).Decode(&res)).To(Succeed())
		Expect(res.Total).To(Equal(1))
		Expect(res.Expenses[0].ID).To(Equal("e1"))
		Expect(res.View).NotTo(BeEmpty())
	})

	It("should narrow the listing by driver_id", func() {
		e3 := newExpense("e3", "Aral", expense.TypeFuel, "2024-01-22", "60")
		e3.DriverID = reference.ByID[driver.Driver]("d2")
		repo.seed(e3)

		w := serve(http.MethodGet, "/expenses?driver_id=d2", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var res expense.ListResult
		Expect(json.NewDecoder(w.Body).Decode(&res)).To(Succeed())
		Expect(ids(res.Expenses)).To(Equal([]string{"e3"}))
		Expect(res.HasNext).To(BeFalse())
		Expect(res.HasPrev).To(BeFalse())
	})

	It("should return 404 for an unknown expense", func() {
		w := serve(http.MethodGet, "/expenses/nope", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Body.String()).To(ContainSubstring("EXPENSE_NOT_FOUND"))
	})

	It("should create an expense", func() {
		w := serve(http.MethodPost, "/expenses",
			`{"driverId":"d1","merchant":"Shell","amountFinal":"12.30","date":"2024-02-01","type":"FUEL"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var created expense.Expense
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.Type).To(Equal(expense.TypeFuel))
		Expect(created.Currency).To(Equal("EUR"))
	})

	It("should answer 422 with field codes for an invalid create", func() {
		w := serve(http.MethodPost, "/expenses", `{"driverId":"d1","merchant":"Shell","amountFinal":0,"date":"2024-02-01"}`)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(w.Body.String()).To(ContainSubstring("amountInvalid"))
	})

	It("should reject unknown fields", func() {
		w := serve(http.MethodPost, "/expenses", `{"driverId":"d1","status":"paid"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should patch an expense", func() {
		w := serve(http.MethodPatch, "/expenses/e2", `{"category":"PARKING"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var updated expense.Expense
		Expect(json.NewDecoder(w.Body).Decode(&updated)).To(Succeed())
		Expect(updated.CategoryName()).To(Equal("PARKING"))
	})

	It("should export as an attachment", func() {
		w := serve(http.MethodGet, "/expenses/export?format=pdf&type=fuel", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(Equal("application/pdf"))
		Expect(w.Header().Get("Content-Disposition")).To(ContainSubstring(".pdf"))
	})
})
