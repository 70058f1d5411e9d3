package dispatch

import (
	"context"
	"time"
)

type timeoutDispatcher struct {
	inner   Dispatcher
	timeout time.Duration
}

// WithTimeout bounds every dispatch. A non-positive timeout returns inner unchanged.
func WithTimeout(inner Dispatcher, timeout time.Duration) Dispatcher {
	if timeout <= 0 {
		return inner
	}

	return &timeoutDispatcher{inner: inner, timeout: timeout}
}

func (d *timeoutDispatcher) DispatchAction(ctx context.Context, service, kind string, config map[string]any) (Result, error) {
	return withDeadline(ctx, d.timeout, service, kind, func(ctx context.Context) (Result, error) {
		return d.inner.DispatchAction(ctx, service, kind, config)
	})
}

func (d *timeoutDispatcher) DispatchTrigger(ctx context.Context, kind string, config map[string]any) (Result, error) {
	return withDeadline(ctx, d.timeout, "", kind, func(ctx context.Context) (Result, error) {
		return d.inner.DispatchTrigger(ctx, kind, config)
	})
}

// withDeadline returns as soon as the deadline passes even when the inner
// call ignores its context.
func withDeadline(ctx context.Context, timeout time.Duration, service, kind string, call func(context.Context) (Result, error)) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		result, err := call(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, wrap(service, kind, out.err)
		}

		return out.result, nil
	case <-ctx.Done():
		return nil, wrap(service, kind, ctx.Err())
	}
}
