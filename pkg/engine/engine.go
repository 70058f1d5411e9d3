// Package engine owns the action queue, the trigger registry and the workflow
// runtime, and exposes the operations callers use to drive them.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/eventbus"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/dukex/flowcore/pkg/queue"
	"github.com/dukex/flowcore/pkg/triggers"
	"github.com/dukex/flowcore/pkg/workflow"
	"go.opentelemetry.io/otel/trace"
)

// DefaultService receives queued actions whose payload names no service.
const DefaultService = "agent"

// ServiceKey is the payload key naming the service a queued action goes to.
const ServiceKey = "service"

type Config struct {
	// DispatchTimeout bounds each queued action. Zero disables it.
	DispatchTimeout time.Duration
	Integration     workflow.IntegrationMode
	// RecordWorkflowActions appends every action a workflow dispatched to the
	// action queue as well.
	RecordWorkflowActions bool
	Tracer                trace.Tracer
}

type Engine struct {
	logger     *slog.Logger
	dispatcher dispatch.Dispatcher

	ledger   *queue.Ledger
	queue    *queue.Queue
	registry *triggers.Registry
	triggers *triggers.Manager
	builder  *workflow.Builder
	executor *workflow.Executor
}

// New wires an engine around dispatcher. publisher may be nil, in which case
// lifecycle events are only logged.
func New(dispatcher dispatch.Dispatcher, publisher eventbus.EventPublisher, logger *slog.Logger, cfg Config) *Engine {
	e := &Engine{
		logger:     logger.With("module", "engine"),
		dispatcher: dispatcher,
		ledger:     queue.NewLedger(),
		registry:   triggers.NewRegistry(),
	}

	obs := &observer{publisher: publisher, logger: e.logger}

	e.queue = queue.New(e.ledger, queue.RunnerFunc(e.runAction), logger, queue.Options{
		Timeout:  cfg.DispatchTimeout,
		Observer: obs,
	})

	e.triggers = triggers.NewManager(e.registry, e.queue, logger, triggers.Options{Observer: obs})

	e.builder = workflow.NewBuilder(dispatcher, logger, workflow.BuilderOptions{Integration: cfg.Integration})

	execOpts := workflow.ExecutorOptions{
		Tracer:   cfg.Tracer,
		Observer: obs,
	}
	if cfg.RecordWorkflowActions {
		execOpts.Recorder = e.queue
	}

	e.executor = workflow.NewExecutor(dispatcher, logger, execOpts)

	return e
}

// runAction dispatches a queued action to the service named in its payload.
// A recorded workflow action is sent with the config it was dispatched with;
// any other payload is sent whole.
func (e *Engine) runAction(ctx context.Context, action *models.Action) error {
	service, _ := action.Payload[ServiceKey].(string)
	if service == "" {
		service = DefaultService
	}

	config := action.Payload
	if recorded, ok := action.Payload[workflow.RecordConfigKey].(map[string]any); ok {
		config = recorded
	}

	_, err := e.dispatcher.DispatchAction(ctx, service, string(action.Kind), config)

	return err
}

func (e *Engine) AddTrigger(ctx context.Context, kind models.TriggerKind, config map[string]any) (*models.Trigger, error) {
	return e.triggers.AddTrigger(ctx, kind, config)
}

func (e *Engine) RemoveTrigger(ctx context.Context, id string) bool {
	return e.triggers.RemoveTrigger(ctx, id)
}

func (e *Engine) EnableTrigger(ctx context.Context, id string) error {
	return e.triggers.EnableTrigger(ctx, id)
}

func (e *Engine) DisableTrigger(ctx context.Context, id string) error {
	return e.triggers.DisableTrigger(ctx, id)
}

func (e *Engine) GetTrigger(id string) (*models.Trigger, error) {
	return e.triggers.GetTrigger(id)
}

// ListTriggers returns all triggers, or only those of kind when it is set.
func (e *Engine) ListTriggers(kind models.TriggerKind) []*models.Trigger {
	return e.triggers.ListTriggers(kind)
}

func (e *Engine) FireTrigger(ctx context.Context, id string) (*models.Action, error) {
	return e.triggers.FireTrigger(ctx, id)
}

func (e *Engine) FireEvent(ctx context.Context, eventType string, data map[string]any) ([]*models.Action, error) {
	return e.triggers.FireEvent(ctx, eventType, data)
}

func (e *Engine) EvaluateConditions(ctx context.Context, data map[string]any) ([]*models.Action, error) {
	return e.triggers.EvaluateConditions(ctx, data)
}

// EventHandler fires event triggers from ExternalEventReceived bus events.
func (e *Engine) EventHandler() eventbus.EventHandler {
	return e.triggers.EventHandler()
}

func (e *Engine) QueueAction(ctx context.Context, kind models.ActionKind, payload map[string]any) (*models.Action, error) {
	return e.queue.Enqueue(ctx, kind, payload)
}

func (e *Engine) GetActionStatus(id string) (models.ActionStatus, error) {
	return e.queue.Status(id)
}

func (e *Engine) GetAction(id string) (*models.Action, error) {
	return e.ledger.Get(id)
}

// ListActions returns every action ever queued, oldest first.
func (e *Engine) ListActions() []*models.Action {
	return e.ledger.List()
}

func (e *Engine) CreateFromTemplate(template *models.Template, customization models.Customization) *models.Workflow {
	return e.builder.CreateFromTemplate(template, customization)
}

func (e *Engine) Validate(ctx context.Context, wf *models.Workflow) models.ValidationResult {
	return e.builder.Validate(ctx, wf)
}

func (e *Engine) Execute(ctx context.Context, wf *models.Workflow, input models.ExecutionContext) error {
	return e.executor.Execute(ctx, wf, input)
}

// Run executes wf and returns its execution context.
func (e *Engine) Run(ctx context.Context, wf *models.Workflow, input models.ExecutionContext) (*models.ExecutionContext, error) {
	return e.executor.Run(ctx, wf, input)
}

// Builder exposes the workflow builder, e.g. to instantiate loaded documents.
func (e *Engine) Builder() *workflow.Builder {
	return e.builder
}

// Wait blocks until every queued action reached a terminal status.
func (e *Engine) Wait(ctx context.Context) error {
	return e.queue.Wait(ctx)
}

// Close cancels every trigger timer, then stops accepting actions and waits
// for the queue to drain.
func (e *Engine) Close(ctx context.Context) error {
	e.triggers.Cleanup()

	err := e.queue.Close(ctx)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Engine closed")

	return nil
}
