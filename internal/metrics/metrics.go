package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of the platform. Nil *Metrics is valid and records nothing
type Metrics struct {
	deposits      prometheus.Counter
	withdrawals   prometheus.Counter
	withdrawalTax prometheus.Counter
	transitions   *prometheus.CounterVec
	bets          prometheus.Counter
	betRejections *prometheus.CounterVec
	published     *prometheus.CounterVec
	publishErrors prometheus.Counter
	httpDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betplatform_wallet_deposits_total",
			Help: "Deposits applied",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betplatform_wallet_withdrawals_total",
			Help: "Withdrawals applied",
		}),
		withdrawalTax: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betplatform_wallet_withdrawal_tax_total",
			Help: "Sum of withdrawal tax charged",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betplatform_event_transitions_total",
			Help: "Event status transitions by target status",
		}, []string{"status"}),
		bets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betplatform_bets_placed_total",
			Help: "Bets placed",
		}),
		betRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betplatform_bets_rejected_total",
			Help: "Bets rejected by reason",
		}, []string{"reason"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betplatform_outbox_published_total",
			Help: "Outbox messages published by topic",
		}, []string{"topic"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betplatform_outbox_publish_errors_total",
			Help: "Failed outbox publish attempts",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betplatform_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	reg.MustRegister(
		m.deposits, m.withdrawals, m.withdrawalTax, m.transitions,
		m.bets, m.betRejections, m.published, m.publishErrors, m.httpDuration,
	)

	return m
}

func (m *Metrics) Deposit() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

func (m *Metrics) Withdrawal(tax float64) {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
	m.withdrawalTax.Add(tax)
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) BetPlaced() {
	if m == nil {
		return
	}
	m.bets.Inc()
}

func (m *Metrics) BetRejected(reason string) {
	if m == nil {
		return
	}
	m.betRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Published(topic string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) ObserveHTTP(method string, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
