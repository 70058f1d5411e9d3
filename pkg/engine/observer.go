package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/flowcore/pkg/eventbus"
	"github.com/dukex/flowcore/pkg/events"
	"github.com/dukex/flowcore/pkg/models"
)

// observer turns queue, trigger and workflow lifecycle changes into bus events.
type observer struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func (o *observer) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, key, event)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}

func (o *observer) ActionQueued(ctx context.Context, action *models.Action) {
	o.publish(ctx, action.ID, events.NewActionQueued(action.ID, string(action.Kind), action.Payload))
}

func (o *observer) ActionFinished(ctx context.Context, action *models.Action, duration time.Duration) {
	if action.Status == models.ActionStatusFailed {
		o.publish(ctx, action.ID, events.NewActionFailed(action.ID, string(action.Kind), action.Error))

		return
	}

	o.publish(ctx, action.ID, events.NewActionCompleted(action.ID, string(action.Kind), duration))
}

func (o *observer) TriggerFired(ctx context.Context, trigger *models.Trigger, action *models.Action) {
	o.publish(ctx, trigger.ID, events.NewTriggerFired(trigger.ID, string(trigger.Kind), action.ID))
}

func (o *observer) WorkflowExecuted(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.ExecutionContext,
	skipped bool,
	duration time.Duration,
) {
	o.publish(ctx, workflow.ID, events.NewWorkflowExecuted(workflow.ID, execution.ID, skipped, duration))
}

func (o *observer) WorkflowFailed(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext, err error) {
	o.publish(ctx, workflow.ID, events.NewWorkflowFailed(workflow.ID, execution.ID, err.Error()))
}
