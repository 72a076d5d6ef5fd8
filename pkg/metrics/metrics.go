package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PgErrCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "consulta",
		Subsystem: "pg",
		Name:      "pg_err_count",
	}, []string{"method"})
	PgDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "consulta",
		Subsystem: "pg",
		Name:      "pg_duration",
	}, []string{"method"})
	RelayErrCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "consulta",
		Subsystem: "relay",
		Name:      "relay_err_count",
	}, []string{"type"})
)
