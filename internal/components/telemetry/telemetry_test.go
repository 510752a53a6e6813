package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := NewRecorder()
	scoped := NewScopedAPI("nrs", recorder)

	scoped.ReportWarning("individuals.paginate", "stalled", 3)
	scoped.ReportBroken("detail.resolve-firm")
	scoped.ReportCount("walker.records", 12)
	scoped.ReportDebug("requesting rows", 0, 100)

	warnings := recorder.Reports(LevelWarning, "individuals.paginate")
	require.Len(t, warnings, 1)
	require.Equal(t, "nrs: individuals.paginate", warnings[0].ID)
	require.Equal(t, []any{"stalled", 3}, warnings[0].Params)

	require.Len(t, recorder.Reports(LevelBroken, "detail.resolve-firm"), 1)
	require.Len(t, recorder.Reports(LevelBroken, "individuals.paginate"), 0)

	count, ok := recorder.LastCount("walker.records")
	require.True(t, ok)
	require.Equal(t, int64(12), count)

	_, ok = recorder.LastCount("missing")
	require.False(t, ok)
}

func TestConfigEnabled(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.True(t, Config{Otlp: OtlpConfig{
		Traces: OtlpConnConfig{HttpEndpoint: "http://localhost:4318/v1/traces"},
	}}.Enabled())
	require.True(t, Config{Otlp: OtlpConfig{
		Metrics: OtlpConnConfig{GrpcEndpoint: "http://localhost:4317"},
	}}.Enabled())
}
