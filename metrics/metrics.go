package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	STKPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_stk_push_total",
			Help: "STK push initiations by outcome",
		},
		[]string{"outcome"},
	)

	Callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "Gateway callbacks received by result",
		},
		[]string{"result"},
	)

	ReconciliationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_reconciliation_errors_total",
			Help: "Callbacks that could not be reconciled, by error kind",
		},
		[]string{"kind"},
	)

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpesa_gateway_request_duration_seconds",
			Help:    "Duration of requests to the M-Pesa gateway",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	SweptPayments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_swept_payments_total",
			Help: "Stale payments settled by the timeout sweeper, by resulting status",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(STKPushes)
		prometheus.MustRegister(Callbacks)
		prometheus.MustRegister(ReconciliationErrors)
		prometheus.MustRegister(GatewayDuration)
		prometheus.MustRegister(SweptPayments)
	})
}
