package unpack

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter         metric.Meter
	objectCounter metric.Int64Counter
)

func init() {
	const pkgname = `github.com/quay/scancore/unpack`
	meter = otel.Meter(pkgname)

	var err error
	objectCounter, err = meter.Int64Counter("unpack.object.count",
		metric.WithDescription("total number of sub-objects extracted, by container family"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		panic(err)
	}
}

var familyAttrs [ELF + 1]metric.MeasurementOption

func init() {
	for f := range familyAttrs {
		familyAttrs[f] = metric.WithAttributes(attribute.String("family", Family(f).String()))
	}
}

func familyAttr(f Family) metric.MeasurementOption {
	if int(f) < len(familyAttrs) {
		return familyAttrs[f]
	}
	return metric.WithAttributes(attribute.String("family", f.String()))
}
