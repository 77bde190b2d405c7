// Package metrics captures billing engine health signals.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics tracks computation runs per invoice type.
type BillingMetrics struct {
	runs        *prometheus.CounterVec
	runErrors   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lineItems   *prometheus.CounterVec
	skipped     *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return billingMetrics
}

func newBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	m := &BillingMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicebill_billing_runs_total",
			Help: "Billing computation runs by invoice type.",
		}, []string{"invoice_type"}),
		runErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicebill_billing_run_errors_total",
			Help: "Failed billing computation runs by invoice type and error class.",
		}, []string{"invoice_type", "error_type"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "servicebill_billing_run_duration_seconds",
			Help:    "Billing computation run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"invoice_type"}),
		lineItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicebill_invoice_line_items_total",
			Help: "Invoice line items produced by invoice type.",
		}, []string{"invoice_type"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicebill_lenient_skips_total",
			Help: "Records skipped under lenient validation.",
		}, []string{"invoice_type", "reason"}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.runErrors, m.runDuration, m.lineItems, m.skipped} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}

func (m *BillingMetrics) IncRun(invoiceType string) {
	m.runs.WithLabelValues(invoiceType).Inc()
}

func (m *BillingMetrics) IncRunError(invoiceType, errorType string) {
	m.runErrors.WithLabelValues(invoiceType, errorType).Inc()
}

func (m *BillingMetrics) ObserveRunDuration(invoiceType string, d time.Duration) {
	m.runDuration.WithLabelValues(invoiceType).Observe(d.Seconds())
}

func (m *BillingMetrics) AddLineItems(invoiceType string, n int) {
	m.lineItems.WithLabelValues(invoiceType).Add(float64(n))
}

func (m *BillingMetrics) IncLenientSkip(invoiceType, reason string) {
	m.skipped.WithLabelValues(invoiceType, reason).Inc()
}
