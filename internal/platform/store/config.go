package store

import (
	"time"

	"hntrends/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Guard/boot knobs:
	ConnectRetries int           // default 20 (about 30s with capped backoff)
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string
}

// ConfigFromEnv reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_* into a Config
// PG is always enabled and its URL is required; CH is enabled only when withCH is set
func ConfigFromEnv(appName string, withCH bool) Config {
	pg := config.New().Prefix("SERVICE_PGSQL_")
	cfg := Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 8)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
	if withCH {
		ch := config.New().Prefix("SERVICE_CLICKHOUSE_")
		cfg.CH = CHConfig{
			Enabled: true,
			URL:     ch.MustString("DBURL"),
			Role:    appName,
		}
	}
	return cfg
}
