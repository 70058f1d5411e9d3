package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/dukex/flowcore/pkg/models"
)

// Router dispatches actions to the handler registered for their service.
type Router struct {
	logger *slog.Logger

	mu              sync.RWMutex
	handlers        map[string]Handler
	triggerHandlers map[string]TriggerHandler
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger:          logger.With("module", "dispatch_router"),
		handlers:        make(map[string]Handler),
		triggerHandlers: make(map[string]TriggerHandler),
	}
}

func (r *Router) Register(service string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[service] = handler
}

func (r *Router) RegisterTrigger(kind string, handler TriggerHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.triggerHandlers[kind] = handler
}

// Services returns the registered service names, sorted.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]string, 0, len(r.handlers))
	for service := range r.handlers {
		services = append(services, service)
	}

	sort.Strings(services)

	return services
}

func (r *Router) DispatchAction(ctx context.Context, service, kind string, config map[string]any) (Result, error) {
	r.mu.RLock()
	handler, ok := r.handlers[service]
	r.mu.RUnlock()

	if !ok {
		return nil, models.NewDispatchError(service, kind, models.NewNotFoundError("service", service))
	}

	r.logger.DebugContext(ctx, "Dispatching action", "service", service, "kind", kind)

	result, err := handler.Handle(ctx, kind, config)
	if err != nil {
		return nil, wrap(service, kind, err)
	}

	return result, nil
}

// DispatchTrigger acknowledges trigger kinds that have no registered handler.
func (r *Router) DispatchTrigger(ctx context.Context, kind string, config map[string]any) (Result, error) {
	r.mu.RLock()
	handler, ok := r.triggerHandlers[kind]
	r.mu.RUnlock()

	if !ok {
		r.logger.DebugContext(ctx, "No trigger handler registered, acknowledging", "kind", kind)

		return Result{"acknowledged": true, "kind": kind}, nil
	}

	result, err := handler.HandleTrigger(ctx, config)
	if err != nil {
		return nil, wrap("", kind, err)
	}

	return result, nil
}

func wrap(service, kind string, err error) error {
	var dispatchErr *models.DispatchError
	if errors.As(err, &dispatchErr) {
		return err
	}

	return models.NewDispatchError(service, kind, err)
}
