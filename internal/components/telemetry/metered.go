package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeteredAPI forwards everything to an inner API and additionally records
// ReportCount values as an otel gauge keyed by the report id.
type MeteredAPI struct {
	inner API
	gauge metric.Int64Gauge
}

func NewMeteredAPI(inner API) (MeteredAPI, error) {
	gauge, err := otel.Meter("nrscrawler").Int64Gauge(
		"nrscrawler.count",
		metric.WithDescription("point-in-time counts reported by crawler components"),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	return MeteredAPI{inner: inner, gauge: gauge}, nil
}

func (m MeteredAPI) ReportBroken(id string, params ...any) {
	m.inner.ReportBroken(id, params...)
}

func (m MeteredAPI) ReportWarning(id string, params ...any) {
	m.inner.ReportWarning(id, params...)
}

func (m MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	m.inner.ReportCount(id, count)
	m.gauge.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
}
