package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

// RecoveryMiddleware turns a handler panic into a 500 with the usual error body.
func RecoveryMiddleware(fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					lg := fallback
					if traceID := logger.TraceID(r.Context()); traceID != "" {
						lg = logger.From(r.Context())
					}
					lg.Error("panic recovered",
						"error", rec,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					status, body := appErrors.NewInternalError("Internal server error", nil).ToHTTPResponse()
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(status)
					_ = json.NewEncoder(w).Encode(body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
