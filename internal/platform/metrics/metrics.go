// Package metrics holds the pipeline's prometheus collectors
// Batch binaries push the registry to a Pushgateway once per run
package metrics

import (
	"context"
	"time"

	"hntrends/internal/platform/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "hntrends"

// Metrics is a private registry plus the collectors the pipeline records into
type Metrics struct {
	reg *prometheus.Registry

	Runs         *prometheus.CounterVec
	StageSeconds *prometheus.HistogramVec
	Facts        *prometheus.GaugeVec
	CorpusRows   *prometheus.GaugeVec
	Keywords     prometheus.Gauge
	LastSuccess  prometheus.Gauge
	RollupRows   *prometheus.GaugeVec
}

// New builds and registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tagging_runs_total",
			Help:      "Tagging runs by final status",
		}, []string{"status"}),
		StageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tagging_stage_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
		Facts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tagging_facts",
			Help:      "Facts produced by the last run per corpus",
		}, []string{"corpus"}),
		CorpusRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tagging_corpus_rows",
			Help:      "Rows mirrored per corpus in the last run",
		}, []string{"corpus"}),
		Keywords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tagging_keywords",
			Help:      "Active keywords in the last run",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tagging_last_success_timestamp_seconds",
			Help:      "Unix time of the last committed sync",
		}),
		RollupRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rollup_rows",
			Help:      "Rows exported to the columnar store per corpus",
		}, []string{"corpus"}),
	}
	m.reg.MustRegister(m.Runs, m.StageSeconds, m.Facts, m.CorpusRows, m.Keywords, m.LastSuccess, m.RollupRows)
	return m
}

// Registry exposes the underlying registry (gatherer)
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveStage records the duration of one stage
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// PushConfig says where and under which job to push
type PushConfig struct {
	URL      string
	Job      string
	Instance string
}

// PushConfigFromEnv reads METRICS_PUSHGATEWAY_URL and METRICS_JOB
// An empty URL disables pushing
func PushConfigFromEnv(defaultJob string) PushConfig {
	c := config.New().Prefix("METRICS_")
	return PushConfig{
		URL:      c.MayString("PUSHGATEWAY_URL", ""),
		Job:      c.MayString("JOB", defaultJob),
		Instance: c.MayString("INSTANCE", ""),
	}
}

// Push sends the registry to the Pushgateway, replacing the job's previous group
// A zero URL is a no-op
func (m *Metrics) Push(ctx context.Context, pc PushConfig) error {
	if m == nil || pc.URL == "" {
		return nil
	}
	p := push.New(pc.URL, pc.Job).Gatherer(m.reg)
	if pc.Instance != "" {
		p = p.Grouping("instance", pc.Instance)
	}
	return p.PushContext(ctx)
}
