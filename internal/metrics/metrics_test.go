package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQuery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordQuery("rule_applied", false, time.Millisecond)
	m.RecordQuery("rule_applied", true, time.Millisecond)
	m.RecordQuery("no_match_found", false, time.Millisecond)

	if got := testutil.ToFloat64(m.queries.WithLabelValues("rule_applied")); got != 2 {
		t.Errorf("rule_applied = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues("no_match_found")); got != 1 {
		t.Errorf("no_match_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ambiguous); got != 1 {
		t.Errorf("ambiguous = %v, want 1", got)
	}
}

func TestRecordReload(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordReload(ReloadOK, 2, time.Second)
	m.RecordReload(ReloadStale, 0, time.Second)
	m.SetTables("acme", "alice", 4)

	if got := testutil.ToFloat64(m.reloads.WithLabelValues(ReloadOK)); got != 1 {
		t.Errorf("ok reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.parseErrors); got != 2 {
		t.Errorf("parse errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.tables.WithLabelValues("acme", "alice")); got != 4 {
		t.Errorf("tables = %v, want 4", got)
	}

	m.DeleteScope("acme", "alice")
	if n := testutil.CollectAndCount(m.tables); n != 0 {
		t.Errorf("tables series = %d after DeleteScope(), want 0", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordQuery("rule_applied", true, time.Millisecond)
	m.RecordReload(ReloadFailed, 1, time.Second)
	m.SetTables("acme", "alice", 1)
	m.DeleteScope("acme", "alice")
}
