package metrics

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "fleet_expense_"

	resultSuccess = "success"
	resultError   = "error"
	resultInvalid = "invalid"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	expenseListTotal   *prometheus.CounterVec
	expenseListLatency *prometheus.HistogramVec
	expenseCreateTotal *prometheus.CounterVec
	expenseUpdateTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	ocrExtractTotal   *prometheus.CounterVec
	ocrExtractLatency *prometheus.HistogramVec

	receiptUploads *prometheus.CounterVec

	wizardTransitions *prometheus.CounterVec
)

// Init registers collectors once. db may be nil.
func Init(db *sql.DB, logger *slog.Logger) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		expenseListTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "list_total",
				Help: "Total expense list operations by result",
			},
			[]string{"result"},
		)
		expenseListLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "list_latency_seconds",
				Help:    "Expense list latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		expenseCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "create_total",
				Help: "Total expense creations by source and result",
			},
			[]string{"source", "result"},
		)
		expenseUpdateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "update_total",
				Help: "Total expense updates by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total expense exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Expense export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		ocrExtractTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ocr_extract_total",
				Help: "Total OCR extractions by result",
			},
			[]string{"result"},
		)
		ocrExtractLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ocr_extract_latency_seconds",
				Help:    "OCR extraction latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"result"},
		)

		receiptUploads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "receipt_uploads_total",
				Help: "Total receipt uploads by outcome",
			},
			[]string{"outcome"},
		)

		wizardTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "wizard_transitions_total",
				Help: "Expense creation wizard transitions by source and target state",
			},
			[]string{"from", "to"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			expenseListTotal,
			expenseListLatency,
			expenseCreateTotal,
			expenseUpdateTotal,
			exportTotal,
			exportLatency,
			ocrExtractTotal,
			ocrExtractLatency,
			receiptUploads,
			wizardTransitions,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// ObserveList records list latency and result.
func ObserveList(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if expenseListTotal != nil {
		expenseListTotal.WithLabelValues(result).Inc()
	}
	if expenseListLatency != nil {
		expenseListLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncCreate counts an expense creation attempt.
func IncCreate(source, result string) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if expenseCreateTotal != nil {
		expenseCreateTotal.WithLabelValues(source, result).Inc()
	}
}

func IncUpdate(result string) {
	if result == "" {
		result = resultSuccess
	}
	if expenseUpdateTotal != nil {
		expenseUpdateTotal.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveOCR records extraction latency and result.
func ObserveOCR(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ocrExtractTotal != nil {
		ocrExtractTotal.WithLabelValues(result).Inc()
	}
	if ocrExtractLatency != nil {
		ocrExtractLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func IncReceiptUpload(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if receiptUploads != nil {
		receiptUploads.WithLabelValues(outcome).Inc()
	}
}

func IncWizardTransition(from, to string) {
	if wizardTransitions != nil {
		wizardTransitions.WithLabelValues(from, to).Inc()
	}
}

// RegisterDraftGauge exposes the number of open wizard drafts.
func RegisterDraftGauge(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "open_drafts",
			Help: "Expense creation drafts currently held in memory",
		},
		func() float64 { return float64(count()) },
	))
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultInvalid = resultInvalid

	ReceiptStored       = "stored"
	ReceiptDeduplicated = "deduplicated"
	ReceiptFailed       = "failed"
)
