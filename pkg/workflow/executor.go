package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowcore/pkg/conditions"
	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/dukex/flowcore/pkg/otelhelper"
	"github.com/dukex/flowcore/pkg/template"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Payload keys of a recorded action. The dispatched config sits unchanged
// under RecordConfigKey.
const (
	RecordServiceKey   = "service"
	RecordConfigKey    = "config"
	RecordWorkflowKey  = "workflowId"
	RecordExecutionKey = "executionId"
)

// Recorder receives every unit the executor dispatched successfully, for
// ordered background processing.
type Recorder interface {
	Enqueue(ctx context.Context, kind models.ActionKind, payload map[string]any) (*models.Action, error)
}

// ExecutionObserver is told how every execution ended.
type ExecutionObserver interface {
	WorkflowExecuted(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext, skipped bool, duration time.Duration)
	WorkflowFailed(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext, err error)
}

// ErrorHook runs once for an execution that ends with an unrecovered error,
// before the error is returned.
type ErrorHook func(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext, err error)

type ExecutorOptions struct {
	Tracer   trace.Tracer
	Recorder Recorder
	Observer ExecutionObserver
	OnError  ErrorHook
}

type Executor struct {
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	tracer     trace.Tracer
	recorder   Recorder
	observer   ExecutionObserver
	onError    ErrorHook
}

func NewExecutor(dispatcher dispatch.Dispatcher, logger *slog.Logger, opts ExecutorOptions) *Executor {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/dukex/flowcore/pkg/workflow")
	}

	return &Executor{
		dispatcher: dispatcher,
		logger:     logger.With("module", "workflow_executor"),
		tracer:     tracer,
		recorder:   opts.Recorder,
		observer:   opts.Observer,
		onError:    opts.OnError,
	}
}

// Execute runs the workflow once: triggers, then conditions, then actions,
// each strictly in declared order.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, input models.ExecutionContext) error {
	_, err := e.Run(ctx, workflow, input)

	return err
}

// Run is Execute returning the execution context with its variables and logs.
// A structurally invalid workflow fails with a ValidationError before anything
// is dispatched.
func (e *Executor) Run(ctx context.Context, workflow *models.Workflow, input models.ExecutionContext) (*models.ExecutionContext, error) {
	if problems := ValidateStructure(workflow); len(problems) > 0 {
		return nil, models.NewValidationError("execute workflow", strings.Join(problems, "; "))
	}

	execution := newExecution(workflow, input)
	started := time.Now()

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	logger.InfoContext(ctx, "Starting workflow execution")
	execution.Log("info", "execution started")

	err := e.fireTriggers(ctx, workflow, execution)
	if err != nil {
		return execution, e.fail(ctx, logger, span, workflow, execution, err)
	}

	pass, err := e.checkConditions(ctx, workflow, execution)
	if err != nil {
		return execution, e.fail(ctx, logger, span, workflow, execution, err)
	}

	if !pass {
		logger.InfoContext(ctx, "Workflow conditions not met, skipping actions")
		execution.Log("info", "conditions not met")
		span.SetAttributes(attribute.Bool("flowcore.workflow.skipped", true))

		if e.observer != nil {
			e.observer.WorkflowExecuted(ctx, workflow, execution, true, time.Since(started))
		}

		return execution, nil
	}

	err = e.runActions(ctx, workflow, execution)
	if err != nil {
		return execution, e.fail(ctx, logger, span, workflow, execution, err)
	}

	logger.InfoContext(ctx, "Workflow execution completed", "duration", time.Since(started))
	execution.Log("info", "execution completed")

	if e.observer != nil {
		e.observer.WorkflowExecuted(ctx, workflow, execution, false, time.Since(started))
	}

	return execution, nil
}

func newExecution(workflow *models.Workflow, input models.ExecutionContext) *models.ExecutionContext {
	execution := &models.ExecutionContext{
		ID:         input.ID,
		WorkflowID: input.WorkflowID,
		TriggerID:  input.TriggerID,
		Input:      input.Input,
		UserID:     input.UserID,
		Timestamp:  input.Timestamp,
		Variables:  make(map[string]any),
		Logs:       []models.LogEntry{},
	}

	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	if execution.WorkflowID == "" {
		execution.WorkflowID = workflow.ID
	}

	if execution.Timestamp.IsZero() {
		execution.Timestamp = time.Now().UTC()
	}

	return execution
}

func (e *Executor) fireTriggers(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext) error {
	results := make([]any, 0, len(workflow.Triggers))

	for i, trigger := range workflow.Triggers {
		spanCtx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.trigger",
			attribute.String(otelhelper.TriggerKindKey, trigger.Kind),
			attribute.Int(otelhelper.ActionIndexKey, i),
		)

		result, err := e.dispatcher.DispatchTrigger(spanCtx, trigger.Kind, trigger.Config)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()

			return err
		}

		span.End()

		results = append(results, map[string]any(result))
		execution.Log("info", "trigger "+trigger.Kind+" dispatched")
	}

	execution.Variables["triggers"] = results

	return nil
}

func (e *Executor) checkConditions(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext) (bool, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.conditions",
		attribute.Int("flowcore.conditions.count", len(workflow.Conditions)),
	)
	defer span.End()

	pass, err := conditions.EvaluateAll(workflow.Conditions, execution.Data())
	if err != nil {
		otelhelper.SetError(span, err)

		return false, err
	}

	span.SetAttributes(attribute.Bool("flowcore.conditions.pass", pass))

	return pass, nil
}

// runActions stops at the first action that fails without a fallback, so
// later actions are never attempted.
func (e *Executor) runActions(ctx context.Context, workflow *models.Workflow, execution *models.ExecutionContext) error {
	results := make([]any, 0, len(workflow.Actions))
	execution.Variables["actions"] = results

	for i, action := range workflow.Actions {
		result, err := e.dispatchAction(ctx, execution, i, action, false)
		if err != nil {
			if action.Fallback == nil {
				return err
			}

			e.logger.WarnContext(ctx, "Action failed, dispatching fallback",
				"execution_id", execution.ID,
				"index", i,
				"service", action.Service,
				"error", err,
			)
			execution.Log("warn", "action "+action.Kind+" failed, using fallback: "+err.Error())

			result, err = e.dispatchAction(ctx, execution, i, *action.Fallback, true)
			if err != nil {
				return err
			}
		}

		results = append(results, map[string]any(result))
		execution.Variables["actions"] = results
	}

	return nil
}

func (e *Executor) dispatchAction(
	ctx context.Context,
	execution *models.ExecutionContext,
	index int,
	action models.WorkflowAction,
	fallback bool,
) (dispatch.Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.action",
		attribute.String(otelhelper.ActionKindKey, action.Kind),
		attribute.String(otelhelper.ServiceKey, action.Service),
		attribute.Int(otelhelper.ActionIndexKey, index),
		attribute.Bool(otelhelper.FallbackKey, fallback),
	)
	defer span.End()

	config, err := template.RenderConfig(action.Config, execution.Data())
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	action.Config = config

	result, err := e.dispatcher.DispatchAction(ctx, action.Service, action.Kind, action.Config)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	execution.Log("info", "action "+action.Kind+" dispatched to "+action.Service)
	e.record(ctx, execution, action)

	return result, nil
}

// record hands a dispatched action to the recorder. Kinds the queue does not
// know are not recorded.
func (e *Executor) record(ctx context.Context, execution *models.ExecutionContext, action models.WorkflowAction) {
	if e.recorder == nil {
		return
	}

	kind := models.ActionKind(action.Kind)
	if !kind.IsValid() {
		return
	}

	_, err := e.recorder.Enqueue(ctx, kind, map[string]any{
		RecordServiceKey:   action.Service,
		RecordConfigKey:    copyMap(action.Config),
		RecordWorkflowKey:  execution.WorkflowID,
		RecordExecutionKey: execution.ID,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to record dispatched action", "execution_id", execution.ID, "error", err)
	}
}

// fail is the error hook: it logs, captures the error in the execution
// context, notifies and hands the error back for the caller to return.
func (e *Executor) fail(
	ctx context.Context,
	logger *slog.Logger,
	span trace.Span,
	workflow *models.Workflow,
	execution *models.ExecutionContext,
	err error,
) error {
	otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, execution.ID))
	logger.ErrorContext(ctx, "Workflow execution failed", "error", err)

	execution.Log("error", err.Error())
	execution.Variables["error"] = err.Error()

	if e.onError != nil {
		e.onError(ctx, workflow, execution, err)
	}

	if e.observer != nil {
		e.observer.WorkflowFailed(ctx, workflow, execution, err)
	}

	return err
}
