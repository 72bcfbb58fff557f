package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベルに一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRoleResolution_CountsPerOutcome は結果別にカウントされることを検証する。
func TestRecordRoleResolution_CountsPerOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRoleResolution("admin")
	c.RecordRoleResolution("repaired")
	c.RecordRoleResolution("repaired")

	m := findMetric(t, reg, "liuyao_console_role_resolutions_total", map[string]string{"outcome": "repaired"})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("repaired = %v, want 2", got)
	}
	m = findMetric(t, reg, "liuyao_console_role_resolutions_total", map[string]string{"outcome": "admin"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("admin = %v, want 1", got)
	}
}

// TestRecordStoreOperation_Labels は画面・操作・結果のラベルを検証する。
func TestRecordStoreOperation_Labels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStoreOperation("modules", "delete", "error")

	m := findMetric(t, reg, "liuyao_console_store_operations_total", map[string]string{
		"screen": "modules", "op": "delete", "outcome": "error",
	})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

// TestSetActiveGuards はゲージが最後の値になることを検証する。
func TestSetActiveGuards(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveGuards(3)
	c.SetActiveGuards(2)

	m := findMetric(t, reg, "liuyao_console_active_guards", nil)
	if got := m.GetGauge().GetValue(); got != 2 {
		t.Errorf("active guards = %v, want 2", got)
	}
}

// TestRecordSignInAndSchemaFallback はその他のカウンタを検証する。
func TestRecordSignInAndSchemaFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignIn("failure")
	c.RecordSchemaFallback("master-services")

	if got := findMetric(t, reg, "liuyao_console_sign_in_total", map[string]string{"outcome": "failure"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("sign in failures = %v, want 1", got)
	}
	if got := findMetric(t, reg, "liuyao_console_schema_fallback_total", map[string]string{"screen": "master-services"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("schema fallbacks = %v, want 1", got)
	}
}
