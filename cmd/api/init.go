package main

import (
	"context"

	"disk-spinner/internal/game"
	"disk-spinner/internal/observability"
	"disk-spinner/internal/settings"
)

// initTelemetry starts the OTLP exporters when enabled and creates the
// domain metric instruments. Instruments are created either way; without
// exporters they record into the no-op providers.
func initTelemetry(ctx context.Context, enabled bool) (func(context.Context) error, error) {
	shutdown, err := observability.InitTelemetry(ctx, enabled)
	if err != nil {
		return nil, err
	}

	if err := game.InitMetrics(); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	if err := settings.InitMetrics(); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return shutdown, nil
}
