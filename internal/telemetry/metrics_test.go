package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestDeliberationCountersRecordThroughManualReader(t *testing.T) {
	reader, shutdown := SetupMetrics()
	defer shutdown(context.Background())

	counters, err := NewDeliberationCounters()
	require.NoError(t, err)

	counters.Deliberations.Add(context.Background(), 1)
	counters.Rounds.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["deliberation.completed"])
	assert.True(t, names["deliberation.rounds"])
}
