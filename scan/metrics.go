package scan

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quay/scancore"
)

var tracer = otel.Tracer("github.com/quay/scancore/scan")

var (
	scanCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scancore",
		Subsystem: "scan",
		Name:      "total",
		Help:      "Top-level scans, by outcome code.",
	}, []string{"code"})
	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scancore",
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Duration of top-level scans.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	})
)

var (
	idKey   = attribute.Key("scan.id")
	sizeKey = attribute.Key("scan.size")
	codeKey = attribute.Key("scan.code")
)

func codeLabel(c scancore.Code) string { return strconv.Itoa(int(c)) }
