package metrics

import (
	"database/sql"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *slog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "expenses_stored",
			Help: "Expense rows in the database",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM expenses")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "receipts_stored",
			Help: "Receipt metadata rows in the database",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM receipts")
		},
	))
}

func queryCount(db *sql.DB, logger *slog.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", "query", query, "error", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
