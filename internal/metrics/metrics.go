package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PurchaseMetrics covers the purchase workflow end to end.
type PurchaseMetrics struct {
	PurchasesInitiatedTotal   prometheus.Counter
	ConfirmChecksTotal        prometheus.CounterVec
	AccountsProvisionedTotal  prometheus.Counter
	ProvisioningFailuresTotal prometheus.Counter
	ConfirmDuration           prometheus.Histogram
}

func NewPurchaseMetrics() *PurchaseMetrics {
	return &PurchaseMetrics{
		PurchasesInitiatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "purchases_initiated_total",
			Help: "Number of payment pages created",
		}),

		// result: not_found, gateway_error, not_paid, provisioned,
		// already_provisioned, provisioning_failed
		ConfirmChecksTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirm_checks_total",
				Help: "Confirmation checks by outcome",
			},
			[]string{"result"},
		),

		AccountsProvisionedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounts_provisioned_total",
			Help: "Number of VPN accounts created on the panel",
		}),

		ProvisioningFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provisioning_failures_total",
			Help: "Paid transactions the panel failed to provision",
		}),

		ConfirmDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "confirm_duration_seconds",
			Help:    "Wall time of a confirmation check including external calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *PurchaseMetrics) RecordConfirm(result string, durationSeconds float64) {
	m.ConfirmChecksTotal.WithLabelValues(result).Inc()
	m.ConfirmDuration.Observe(durationSeconds)
}
