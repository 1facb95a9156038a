package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient_funds"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// LedgerMetrics counts budget ledger operations and the money they move.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	amount     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Budget ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_amount_total",
		Help: "Sum of amounts moved by successful ledger operations.",
	}, []string{"op"})
	reg.MustRegister(operations, amount)
	return &LedgerMetrics{
		operations: operations,
		amount:     amount,
	}
}

// Observe records one ledger operation. Amount is only added on success.
func (m *LedgerMetrics) Observe(op, outcome string, amount decimal.Decimal) {
	if m == nil || m.operations == nil {
		return
	}
	op = normalizeLabel(op)
	m.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	if outcome == OutcomeSuccess {
		m.amount.WithLabelValues(op).Add(amount.InexactFloat64())
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
