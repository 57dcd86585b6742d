package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics of money flows. Nil *Metrics is valid and records nothing.
type Metrics struct {
	betsPlaced     *prometheus.CounterVec
	stakedTotal    prometheus.Counter
	resolutions    *prometheus.CounterVec
	commissionPaid prometheus.Counter
	payoutTotal    prometheus.Counter
	deposits       *prometheus.CounterVec
	drift          *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wagers_bets_placed_total",
			Help: "Bets placed by chosen side",
		}, []string{"choice"}),
		stakedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wagers_staked_amount_total",
			Help: "Sum of stakes moved from balances to pools",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wagers_resolutions_total",
			Help: "Resolved wagers by result",
		}, []string{"result"}),
		commissionPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wagers_commission_amount_total",
			Help: "Sum of commissions credited to resolvers",
		}),
		payoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wagers_payout_amount_total",
			Help: "Sum of winnings and refunds credited to bettors",
		}),
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wagers_external_credits_total",
			Help: "External credit notifications by outcome",
		}, []string{"outcome"}),
		drift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wagers_audit_drift",
			Help: "Records found inconsistent by the last audit run",
		}, []string{"kind"}),
		gatherer: reg,
	}

	reg.MustRegister(m.betsPlaced, m.stakedTotal, m.resolutions, m.commissionPaid, m.payoutTotal, m.deposits, m.drift)

	return m
}

func (m *Metrics) BetPlaced(choice string, stake decimal.Decimal) {
	if m == nil {
		return
	}
	m.betsPlaced.WithLabelValues(choice).Inc()
	m.stakedTotal.Add(stake.InexactFloat64())
}

func (m *Metrics) WagerResolved(result string, commission decimal.Decimal, paidOut decimal.Decimal) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(result).Inc()
	m.commissionPaid.Add(commission.InexactFloat64())
	m.payoutTotal.Add(paidOut.InexactFloat64())
}

// outcome is one of "applied", "duplicate", "failed"
func (m *Metrics) ExternalCredit(outcome string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuditDrift(kind string, count int) {
	if m == nil {
		return
	}
	m.drift.WithLabelValues(kind).Set(float64(count))
}

// Handler exposes registered metrics in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
