package recognition

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/4ier/logodeth/internal/llm"
)

func findCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if len(m.Collectors()) != 5 {
		t.Errorf("Collectors() = %d, want 5", len(m.Collectors()))
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.incRecognition("cached")
	m.incCacheLookup(LookupHit)
	m.addSpend("gpt-4o", 0.02)
	m.ObserveAttempt(llm.ProviderOpenAI, "gpt-4o", time.Second, nil)
}

func TestMetrics_ObserveAttempt(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	m.ObserveAttempt(llm.ProviderOpenAI, "gpt-4o", 2*time.Second, nil)
	m.ObserveAttempt(llm.ProviderOpenAI, "gpt-4o", time.Second, errors.New("boom"))
	m.ObserveAttempt(llm.ProviderAnthropic, "claude", time.Second, nil)

	if got := findCounter(t, reg, MetricProviderRequests, map[string]string{"provider": "openai", "status": "error"}); got != 1 {
		t.Errorf("openai errors = %v, want 1", got)
	}
	if got := findCounter(t, reg, MetricProviderRequests, map[string]string{"provider": "anthropic", "status": "success"}); got != 1 {
		t.Errorf("anthropic successes = %v, want 1", got)
	}
}

func TestMetrics_RecordedByService(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	if err := f.svc.metrics.Register(reg); err != nil {
		t.Fatal(err)
	}

	data := logoPNG(t, 0)
	for i := 0; i < 2; i++ {
		if _, err := f.svc.Recognize(t.Context(), Upload{Data: data}); err != nil {
			t.Fatal(err)
		}
	}

	if got := findCounter(t, reg, MetricCacheLookups, map[string]string{"result": LookupMiss}); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := findCounter(t, reg, MetricCacheLookups, map[string]string{"result": LookupHit}); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := findCounter(t, reg, MetricRecognitions, map[string]string{"outcome": "recognized"}); got != 1 {
		t.Errorf("recognized = %v, want 1", got)
	}
	if got := findCounter(t, reg, MetricEstimatedSpend, map[string]string{"model": "gpt-4o"}); got != 0.02 {
		t.Errorf("spend = %v, want 0.02", got)
	}
}
