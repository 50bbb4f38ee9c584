package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func gaugeValue(t *testing.T, m *Metrics, name string, label string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, met := range mf.GetMetric() {
			if label == "" {
				return met.GetGauge().GetValue()
			}
			for _, lp := range met.GetLabel() {
				if lp.GetValue() == label {
					if met.GetGauge() != nil {
						return met.GetGauge().GetValue()
					}
					return met.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestNew_RecordsAndGathers(t *testing.T) {
	m := New()
	m.Facts.WithLabelValues("stories").Set(12)
	m.Facts.WithLabelValues("hiring").Set(3)
	m.Runs.WithLabelValues("succeeded").Inc()
	m.Keywords.Set(40)
	m.ObserveStage("match", 1500*time.Millisecond)

	if got := gaugeValue(t, m, "hntrends_tagging_facts", "stories"); got != 12 {
		t.Fatalf("stories facts = %v", got)
	}
	if got := gaugeValue(t, m, "hntrends_tagging_runs_total", "succeeded"); got != 1 {
		t.Fatalf("runs succeeded = %v", got)
	}
	if got := gaugeValue(t, m, "hntrends_tagging_keywords", ""); got != 40 {
		t.Fatalf("keywords = %v", got)
	}
}

func TestObserveStage_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStage("sync", time.Second)
	if err := m.Push(context.Background(), PushConfig{URL: "http://unused"}); err != nil {
		t.Fatalf("nil push should be a no-op: %v", err)
	}
}

func TestPush_SendsToGateway(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Keywords.Set(7)
	err := m.Push(context.Background(), PushConfig{URL: srv.URL, Job: "hntrends-refresh", Instance: "box-1"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/metrics/job/hntrends-refresh") || !strings.Contains(gotPath, "instance/box-1") {
		t.Fatalf("push path = %q", gotPath)
	}
	if gotBody == "" {
		t.Fatalf("push body should not be empty")
	}
}

func TestPush_EmptyURLIsNoop(t *testing.T) {
	if err := New().Push(context.Background(), PushConfig{}); err != nil {
		t.Fatalf("empty url should be a no-op: %v", err)
	}
}

func TestPushConfigFromEnv(t *testing.T) {
	t.Setenv("METRICS_PUSHGATEWAY_URL", "http://pgw:9091")
	t.Setenv("METRICS_JOB", "")
	pc := PushConfigFromEnv("hntrends-refresh")
	if pc.URL != "http://pgw:9091" || pc.Job != "hntrends-refresh" {
		t.Fatalf("push config = %+v", pc)
	}
}
