// Package modkit provides module wiring and core deps
package modkit

import (
	"hntrends/internal/modkit/repokit"
	"hntrends/internal/platform/config"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/metrics"
	"hntrends/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Metrics *metrics.Metrics
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }

// FromStore copies the store handles into a Deps value
func FromStore(st *store.Store, cfg config.Conf, m *metrics.Metrics) Deps {
	d := Deps{Cfg: cfg, Metrics: m}
	if st == nil {
		return d
	}
	d.Log = st.Log
	d.PG = st.PG
	d.CH = st.CH
	return d
}
