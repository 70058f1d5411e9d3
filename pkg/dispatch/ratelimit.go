package dispatch

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitDispatcher struct {
	inner   Dispatcher
	limiter *rate.Limiter
}

// WithRateLimit waits on limiter before every dispatch. A nil limiter returns inner unchanged.
func WithRateLimit(inner Dispatcher, limiter *rate.Limiter) Dispatcher {
	if limiter == nil {
		return inner
	}

	return &rateLimitDispatcher{inner: inner, limiter: limiter}
}

func (d *rateLimitDispatcher) DispatchAction(ctx context.Context, service, kind string, config map[string]any) (Result, error) {
	err := d.limiter.Wait(ctx)
	if err != nil {
		return nil, wrap(service, kind, err)
	}

	return d.inner.DispatchAction(ctx, service, kind, config)
}

func (d *rateLimitDispatcher) DispatchTrigger(ctx context.Context, kind string, config map[string]any) (Result, error) {
	err := d.limiter.Wait(ctx)
	if err != nil {
		return nil, wrap("", kind, err)
	}

	return d.inner.DispatchTrigger(ctx, kind, config)
}
