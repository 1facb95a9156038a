package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

func TestLedgerMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.Observe("debit", OutcomeSuccess, decimal.RequireFromString("1200.00"))
	m.Observe("debit", OutcomeSuccess, decimal.RequireFromString("300.50"))
	m.Observe("debit", OutcomeInsufficient, decimal.RequireFromString("9999.00"))
	m.Observe("credit", OutcomeSuccess, decimal.RequireFromString("500.00"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ledger_operations_total", map[string]string{"op": "debit", "outcome": OutcomeSuccess}); err != nil {
		t.Fatalf("fetch debit success: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 successful debits, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_operations_total", map[string]string{"op": "debit", "outcome": OutcomeInsufficient}); err != nil {
		t.Fatalf("fetch debit insufficient: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 rejected debit, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_amount_total", map[string]string{"op": "debit"}); err != nil {
		t.Fatalf("fetch debit amount: %v", err)
	} else if got != 1500.5 {
		t.Fatalf("expected debit amount 1500.5, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_amount_total", map[string]string{"op": "credit"}); err != nil {
		t.Fatalf("fetch credit amount: %v", err)
	} else if got != 500 {
		t.Fatalf("expected credit amount 500, got %f", got)
	}
}

func TestHTTPMetricsExportsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("POST", "/api/v1/expenses", 201, 250*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", map[string]string{"route": "/api/v1/expenses"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "http_requests_total", map[string]string{"status": "201"}); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one request, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var ledger *LedgerMetrics
	ledger.Observe("debit", OutcomeSuccess, decimal.NewFromInt(1))
	NewLedgerMetrics(nil).Observe("debit", OutcomeSuccess, decimal.NewFromInt(1))

	var httpMetrics *HTTPMetrics
	httpMetrics.ObserveRequest("GET", "/", 200, time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
