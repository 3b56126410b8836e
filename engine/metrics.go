package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scancore",
		Name:      "db_load_total",
		Help:      "Database load attempts, by outcome.",
	}, []string{"success"})
	signatureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scancore",
		Name:      "db_signatures",
		Help:      "Signatures in the most recently compiled engine.",
	})
)
