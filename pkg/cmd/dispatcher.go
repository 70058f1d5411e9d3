package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/eventbus"
	"golang.org/x/time/rate"
)

// BusService is the service name whose actions are published to the event bus.
const BusService = "bus"

type DispatcherConfig struct {
	// DefaultService handles actions logged in process.
	DefaultService string
	// Services maps service names to webhook URLs, as "name=url" entries.
	Services []string
	Timeout  time.Duration
	// RateLimit caps dispatches per second. Zero disables it.
	RateLimit float64
	// Breaker falls back to the dispatch package defaults for zero fields.
	Breaker dispatch.BreakerConfig
}

// NewDispatcher builds the router and wraps it with rate limiting, circuit
// breaking and timeouts, outermost first.
func NewDispatcher(cfg DispatcherConfig, publisher eventbus.EventPublisher, logger *slog.Logger) (dispatch.Dispatcher, *dispatch.Router, error) {
	router := dispatch.NewRouter(logger)
	router.Register(cfg.DefaultService, dispatch.NewLogHandler(logger))

	if publisher != nil {
		router.Register(BusService, dispatch.NewPublishHandler(BusService, publisher))
	}

	for _, entry := range cfg.Services {
		name, url, ok := strings.Cut(entry, "=")
		if !ok || name == "" || url == "" {
			return nil, nil, fmt.Errorf("invalid service %q, expected name=url", entry)
		}

		router.Register(name, dispatch.NewHTTPHandler(url, cfg.Timeout, logger))
	}

	var dispatcher dispatch.Dispatcher = router

	if cfg.Timeout > 0 {
		dispatcher = dispatch.WithTimeout(dispatcher, cfg.Timeout)
	}

	dispatcher = dispatch.WithCircuitBreaker(dispatcher, cfg.Breaker, logger)

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}

		dispatcher = dispatch.WithRateLimit(dispatcher, rate.NewLimiter(rate.Limit(cfg.RateLimit), burst))
	}

	return dispatcher, router, nil
}
