package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	metricPrefix = "academy_"

	resultSuccess  = "success"
	resultError    = "error"
	resultConflict = "conflict"

	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheError = "error"
)

var (
	registerOnce sync.Once

	invoiceGenerateTotal   *prometheus.CounterVec
	invoiceGenerateLatency *prometheus.HistogramVec
	invoicePaymentTotal    *prometheus.CounterVec
	invoicePaymentLatency  *prometheus.HistogramVec
	invoicePaymentRetries  prometheus.Counter
	invoiceExportTotal     *prometheus.CounterVec
	invoiceExportLatency   *prometheus.HistogramVec
	feeCalculationTotal    *prometheus.CounterVec

	batchCacheRequests *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger logrus.FieldLogger) {
	registerOnce.Do(func() {
		invoiceGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_generate_total",
				Help: "Total invoice generate operations by result",
			},
			[]string{"result"},
		)
		invoiceGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_generate_latency_seconds",
				Help:    "Invoice generate latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		invoicePaymentTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_payment_total",
				Help: "Total payment record operations by result",
			},
			[]string{"result"},
		)
		invoicePaymentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_payment_latency_seconds",
				Help:    "Payment record latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		invoicePaymentRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_payment_retries_total",
				Help: "Payment attempts retried after a lost compare-and-swap",
			},
		)
		invoiceExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_export_total",
				Help: "Total invoice export operations by format and result",
			},
			[]string{"format", "result"},
		)
		invoiceExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_export_latency_seconds",
				Help:    "Invoice export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		feeCalculationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_calculation_total",
				Help: "Total fee calculations by payment model",
			},
			[]string{"model"},
		)

		batchCacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_cache_requests_total",
				Help: "Batch fee cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		)

		prometheus.MustRegister(
			invoiceGenerateTotal,
			invoiceGenerateLatency,
			invoicePaymentTotal,
			invoicePaymentLatency,
			invoicePaymentRetries,
			invoiceExportTotal,
			invoiceExportLatency,
			feeCalculationTotal,
			batchCacheRequests,
			httpRequests,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveInvoiceGenerate records generate latency and result.
func ObserveInvoiceGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if invoiceGenerateTotal != nil {
		invoiceGenerateTotal.WithLabelValues(result).Inc()
	}
	if invoiceGenerateLatency != nil {
		invoiceGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveInvoicePayment records payment latency and result.
func ObserveInvoicePayment(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if invoicePaymentTotal != nil {
		invoicePaymentTotal.WithLabelValues(result).Inc()
	}
	if invoicePaymentLatency != nil {
		invoicePaymentLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPaymentRetry increments the payment retry counter.
func IncPaymentRetry() {
	if invoicePaymentRetries != nil {
		invoicePaymentRetries.Inc()
	}
}

// ObserveInvoiceExport records export latency and result.
func ObserveInvoiceExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if invoiceExportTotal != nil {
		invoiceExportTotal.WithLabelValues(format, result).Inc()
	}
	if invoiceExportLatency != nil {
		invoiceExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncFeeCalculation counts a fee calculation for a payment model.
func IncFeeCalculation(model string) {
	if model == "" {
		model = "unknown"
	}
	if feeCalculationTotal != nil {
		feeCalculationTotal.WithLabelValues(model).Inc()
	}
}

// IncBatchCache counts a batch cache lookup outcome.
func IncBatchCache(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if batchCacheRequests != nil {
		batchCacheRequests.WithLabelValues(outcome).Inc()
	}
}

// IncHTTPRequest counts a served HTTP request.
func IncHTTPRequest(method, code string) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, code).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultConflict = resultConflict

	CacheHit   = cacheHit
	CacheMiss  = cacheMiss
	CacheError = cacheError
)
