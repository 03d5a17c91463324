package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	invoicesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Total number of invoices created",
		},
	)

	paymentsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_recorded_total",
			Help: "Total number of payments recorded",
		},
	)

	pdfRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_pdf_renders_total",
			Help: "Total number of invoice PDF renders",
		},
		[]string{"status"}, // status: success, failed
	)
)

// Metrics records per-request latency labelled by route template, so a
// thousand invoice IDs do not become a thousand label values.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// CountInvoiceCreated increments the invoice creation counter
func CountInvoiceCreated() {
	invoicesCreatedTotal.Inc()
}

// CountPaymentRecorded increments the payment counter
func CountPaymentRecorded() {
	paymentsRecordedTotal.Inc()
}

// CountPDFRender increments the PDF render counter
func CountPDFRender(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	pdfRendersTotal.WithLabelValues(status).Inc()
}
