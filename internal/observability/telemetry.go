package observability

import (
	"context"
	"errors"
)

// InitTelemetry starts OTLP tracing, metrics and log export. When enabled is
// false nothing is exported and the global no-op providers stay in place;
// the returned shutdown is then a no-op too.
func InitTelemetry(ctx context.Context, enabled bool) (func(context.Context) error, error) {
	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	if !enabled {
		return shutdown, nil
	}

	for _, start := range []func(context.Context) (func(context.Context) error, error){
		InitTracing,
		InitMetrics,
		InitLogging,
	} {
		fn, err := start(ctx)
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		shutdowns = append(shutdowns, fn)
	}

	return shutdown, nil
}
