package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens a service's circuit.
	MaxFailures uint32
	// Timeout is how long a circuit stays open before probing again.
	Timeout time.Duration
	// Interval clears failure counts while closed. Zero never clears.
	Interval time.Duration
}

// breakerDispatcher keeps one circuit per service so a failing collaborator
// fails fast without affecting the others.
type breakerDispatcher struct {
	inner  Dispatcher
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[Result]
}

func WithCircuitBreaker(inner Dispatcher, cfg BreakerConfig, logger *slog.Logger) Dispatcher {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultBreakerMaxFailures
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultBreakerTimeout
	}

	if cfg.Interval == 0 {
		cfg.Interval = defaultBreakerInterval
	}

	return &breakerDispatcher{
		inner:    inner,
		cfg:      cfg,
		logger:   logger.With("module", "dispatch_breaker"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[Result]),
	}
}

func (d *breakerDispatcher) breaker(name string) *gobreaker.CircuitBreaker[Result] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[name]; ok {
		return cb
	}

	maxFailures := d.cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    d.cfg.Interval,
		Timeout:     d.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	d.breakers[name] = cb

	return cb
}

func (d *breakerDispatcher) DispatchAction(ctx context.Context, service, kind string, config map[string]any) (Result, error) {
	result, err := d.breaker("service:"+service).Execute(func() (Result, error) {
		return d.inner.DispatchAction(ctx, service, kind, config)
	})
	if err != nil {
		return nil, wrap(service, kind, err)
	}

	return result, nil
}

func (d *breakerDispatcher) DispatchTrigger(ctx context.Context, kind string, config map[string]any) (Result, error) {
	result, err := d.breaker("trigger:"+kind).Execute(func() (Result, error) {
		return d.inner.DispatchTrigger(ctx, kind, config)
	})
	if err != nil {
		return nil, wrap("", kind, err)
	}

	return result, nil
}
