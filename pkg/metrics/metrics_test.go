package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSettlementMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.ObserveAttempt("settle", "settled", 250*time.Millisecond)
	m.ObserveAttempt("settle", "claim_conflict", time.Millisecond)
	m.ObserveParticipant("issued", "")
	m.ObserveParticipant("failed", "transient")
	m.ObserveParticipant("failed", "transient")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "settlement_attempts_total", map[string]string{"operation": "settle", "disposition": "settled"}); err != nil {
		t.Fatalf("fetch attempts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected settled=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "settlement_participants_total", map[string]string{"outcome": "failed", "failure_kind": "transient"}); err != nil {
		t.Fatalf("fetch participants: %v", err)
	} else if got != 2 {
		t.Fatalf("expected transient failures=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "settlement_participants_total", map[string]string{"outcome": "issued", "failure_kind": "none"}); err != nil {
		t.Fatalf("fetch issued: %v", err)
	} else if got != 1 {
		t.Fatalf("expected issued=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "settlement_attempt_duration_seconds", map[string]string{"operation": "settle"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0.25 {
		t.Fatalf("expected duration sum > 0.25, got %f", got)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("group_buy_deal_completed")
	m.IncFailed("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_published_total", map[string]string{"event_type": "group_buy_deal_completed"}); err != nil || got != 1 {
		t.Fatalf("expected published=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_failures_total", map[string]string{"event_type": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected failed=1, got %f err=%v", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewSettlementMetrics(nil)
	m.ObserveAttempt("settle", "settled", time.Second)
	m.ObserveParticipant("issued", "")

	var nilMetrics *SettlementMetrics
	nilMetrics.ObserveAttempt("settle", "settled", time.Second)
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
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
