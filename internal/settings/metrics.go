package settings

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	updateCounter metric.Int64Counter
	errorCounter  metric.Int64Counter
)

// InitMetrics registers the settings instruments. Call it once at startup,
// after observability.InitMetrics.
func InitMetrics() error {
	meter := otel.Meter("settings")

	var err error

	updateCounter, err = meter.Int64Counter("settings.updates.total",
		metric.WithDescription("Total number of settings changes"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return fmt.Errorf("creating update counter: %w", err)
	}

	errorCounter, err = meter.Int64Counter("settings.errors.total",
		metric.WithDescription("Total number of settings errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	return nil
}
