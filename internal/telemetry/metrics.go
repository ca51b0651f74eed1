package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// SetupMetrics installs a global MeterProvider backed by a manual
// reader: instruments record at full rate, and Collect pulls a
// point-in-time snapshot on demand; nothing is pushed. Returns the
// reader and a shutdown func.
func SetupMetrics() (*sdkmetric.ManualReader, func(context.Context) error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return reader, provider.Shutdown
}

// Meter returns the package meter used for deliberation instruments.
func Meter() metric.Meter {
	return otel.Meter("github.com/blueman82/go-counsel")
}

// DeliberationCounters bundles the engine's instruments so they are
// created once, not per deliberation.
type DeliberationCounters struct {
	Deliberations metric.Int64Counter
	Rounds        metric.Int64Counter
	Votes         metric.Int64Counter
}

// NewDeliberationCounters creates the engine's counters on the global
// meter. Instrument creation only fails on invalid names, so errors
// are returned for the caller to treat as fatal wiring mistakes.
func NewDeliberationCounters() (DeliberationCounters, error) {
	m := Meter()
	deliberations, err := m.Int64Counter("deliberation.completed",
		metric.WithDescription("deliberations run to completion"))
	if err != nil {
		return DeliberationCounters{}, err
	}
	rounds, err := m.Int64Counter("deliberation.rounds",
		metric.WithDescription("rounds executed across all deliberations"))
	if err != nil {
		return DeliberationCounters{}, err
	}
	votes, err := m.Int64Counter("deliberation.votes",
		metric.WithDescription("votes successfully parsed across all deliberations"))
	if err != nil {
		return DeliberationCounters{}, err
	}
	return DeliberationCounters{Deliberations: deliberations, Rounds: rounds, Votes: votes}, nil
}
