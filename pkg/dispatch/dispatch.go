// Package dispatch is the single seam through which triggers and actions
// reach external collaborators.
package dispatch

import (
	"context"
)

// TestKind is the synthetic kind used by connectivity probes.
const TestKind = "test"

// DryRunKey marks a probe that must not cause side effects.
const DryRunKey = "dryRun"

// Result is whatever a collaborator answered.
type Result map[string]any

// Dispatcher routes actions by service and triggers by kind.
type Dispatcher interface {
	DispatchAction(ctx context.Context, service, kind string, config map[string]any) (Result, error)
	DispatchTrigger(ctx context.Context, kind string, config map[string]any) (Result, error)
}

// Handler realizes the effect of an action for one service.
type Handler interface {
	Handle(ctx context.Context, kind string, config map[string]any) (Result, error)
}

type HandlerFunc func(ctx context.Context, kind string, config map[string]any) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, kind string, config map[string]any) (Result, error) {
	return f(ctx, kind, config)
}

// TriggerHandler realizes the effect of a fired workflow trigger.
type TriggerHandler interface {
	HandleTrigger(ctx context.Context, config map[string]any) (Result, error)
}

type TriggerHandlerFunc func(ctx context.Context, config map[string]any) (Result, error)

func (f TriggerHandlerFunc) HandleTrigger(ctx context.Context, config map[string]any) (Result, error) {
	return f(ctx, config)
}

// IsProbe reports whether a dispatch is a connectivity test.
func IsProbe(kind string) bool {
	return kind == TestKind
}

// IsDryRun reports whether a probe asked for no side effects.
func IsDryRun(kind string, config map[string]any) bool {
	if !IsProbe(kind) {
		return false
	}

	dryRun, _ := config[DryRunKey].(bool)

	return dryRun
}
