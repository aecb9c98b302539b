package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/category"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	"github.com/frahmantamala/fleet-expense/internal/observability/metrics"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/transport/middleware"
	"github.com/frahmantamala/fleet-expense/internal/transport/swagger"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
	"github.com/frahmantamala/fleet-expense/internal/workflow"
)

// Handlers groups the domain handlers mounted under /api/v1. Nil handlers
// are skipped.
type Handlers struct {
	Health   *HealthHandler
	Category *category.Handler
	Expense  *expense.Handler
	Driver   *driver.Handler
	Vehicle  *vehicle.Handler
	Receipt  *receipt.Handler
	Workflow *workflow.Handler
}

func RegisterAllRoutes(router *chi.Mux, handlers Handlers, cfg *internal.Config, logger *slog.Logger) error {
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if cfg.Observability.Metrics.Enabled {
		router.Use(middleware.Metrics)
	}
	if cfg.Observability.OpenAPI.ValidateRequests {
		doc, err := middleware.LoadOpenAPI(cfg.Observability.OpenAPI.SpecPath)
		if err != nil {
			return err
		}
		validator, err := middleware.OpenAPIValidator(doc, logger)
		if err != nil {
			return err
		}
		router.Use(validator)
	}

	specPath := cfg.Observability.OpenAPI.SpecPath
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	if cfg.Observability.Metrics.Enabled {
		router.Handle(cfg.Observability.Metrics.Path, metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if handlers.Health != nil {
			r.Get("/health", handlers.Health.healthCheckHandler)
			r.Get("/ping", handlers.Health.pingHandler)
		}

		if handlers.Category != nil {
			r.Get("/categories", handlers.Category.GetCategories)
		}

		if h := handlers.Expense; h != nil {
			r.Route("/expenses", func(er chi.Router) {
				er.Get("/", h.ListExpenses)
				er.Post("/", h.CreateExpense)
				er.Get("/export", h.ExportExpenses)
				er.Get("/{id}", h.GetExpense)
				er.Patch("/{id}", h.UpdateExpense)
			})
		}

		if h := handlers.Driver; h != nil {
			r.Route("/drivers", func(dr chi.Router) {
				dr.Get("/", h.SearchDrivers)
				dr.Get("/{id}", h.GetDriver)
				dr.Get("/{id}/vehicle", h.GetAssignedVehicle)
			})
		}

		if h := handlers.Vehicle; h != nil {
			r.Get("/vehicles/{id}", h.GetVehicle)
		}

		if h := handlers.Receipt; h != nil {
			r.Route("/receipts", func(rr chi.Router) {
				rr.Post("/", h.UploadReceipt)
				rr.Get("/{digest}", h.DownloadReceipt)
				rr.Get("/{digest}/link", h.GetReceiptLink)
			})
		}

		if h := handlers.Workflow; h != nil {
			r.Route("/expense-drafts", func(wr chi.Router) {
				wr.Post("/", h.CreateDraft)
				wr.Route("/{id}", func(dr chi.Router) {
					dr.Use(h.DraftContext)
					dr.Get("/", h.GetDraft)
					dr.Patch("/", h.UpdateForm)
					dr.Delete("/", h.Cancel)
					dr.Put("/search", h.SearchDrivers)
					dr.Post("/driver", h.SelectDriver)
					dr.Post("/back", h.Back)
					dr.Post("/receipt", h.AttachReceipt)
					dr.Post("/submit", h.Submit)
				})
			})
		}
	})

	return nil
}
