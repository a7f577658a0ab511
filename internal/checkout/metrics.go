package checkout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
)

// Metrics holds the checkout collectors. A nil *Metrics records nothing.
type Metrics struct {
	outcomes      *prometheus.CounterVec
	orderRequests *prometheus.HistogramVec
	paymentOpens  *prometheus.CounterVec
}

// NewMetrics creates and registers the checkout collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_outcomes_total",
				Help: "Checkout attempts by terminal state",
			},
			[]string{"state"},
		),
		orderRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_order_api_duration_seconds",
				Help:    "Order API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		paymentOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_payment_sessions_total",
				Help: "Payment sessions opened, by gateway and result",
			},
			[]string{"gateway", "result"},
		),
	}
	reg.MustRegister(m.outcomes, m.orderRequests, m.paymentOpens)
	return m
}

func (m *Metrics) outcome(s domain.State) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) orderCall(start time.Time, err error) {
	if m == nil {
		return
	}
	m.orderRequests.WithLabelValues(result(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) paymentOpen(gateway string, err error) {
	if m == nil {
		return
	}
	m.paymentOpens.WithLabelValues(gateway, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
