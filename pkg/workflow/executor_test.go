package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recorded struct {
	kind    models.ActionKind
	payload map[string]any
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (r *fakeRecorder) Enqueue(_ context.Context, kind models.ActionKind, payload map[string]any) (*models.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, recorded{kind: kind, payload: payload})

	return &models.Action{Kind: kind, Payload: payload}, nil
}

type fakeObserver struct {
	executed []bool
	failed   []error
}

func (o *fakeObserver) WorkflowExecuted(_ context.Context, _ *models.Workflow, _ *models.ExecutionContext, skipped bool, _ time.Duration) {
	o.executed = append(o.executed, skipped)
}

func (o *fakeObserver) WorkflowFailed(_ context.Context, _ *models.Workflow, _ *models.ExecutionContext, err error) {
	o.failed = append(o.failed, err)
}

func TestExecutor_RunsInDeclaredOrder(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	observer := &fakeObserver{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{Observer: observer})

	workflow := validWorkflow()
	workflow.Triggers = append(workflow.Triggers, models.WorkflowTrigger{Kind: "schedule", Config: map[string]any{}})

	execution, err := executor.Run(context.Background(), workflow, models.ExecutionContext{
		UserID:    "user-1",
		Variables: map[string]any{"stale": true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"event", "schedule"}, dispatcher.triggers)
	assert.Equal(t, []string{"mailer", "crm", "mailer"}, dispatcher.services())

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, "wf-1", execution.WorkflowID)
	assert.Equal(t, "user-1", execution.UserID)
	assert.NotContains(t, execution.Variables, "stale", "variables start empty")
	assert.Len(t, execution.Variables["actions"], 3)
	assert.NotEmpty(t, execution.Logs)
	assert.Equal(t, []bool{false}, observer.executed)
}

func TestExecutor_InvalidWorkflow(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{})

	workflow := validWorkflow()
	workflow.Actions = nil

	err := executor.Execute(context.Background(), workflow, models.ExecutionContext{})

	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Contains(t, err.Error(), "At least one action is required")
	assert.Empty(t, dispatcher.triggers)
	assert.Empty(t, dispatcher.calls)
}

func TestExecutor_ConditionsGateActions(t *testing.T) {
	tests := []struct {
		name       string
		conditions []models.Condition
		input      map[string]any
		runs       bool
	}{
		{name: "no conditions", runs: true},
		{
			name:       "all hold",
			conditions: []models.Condition{{Field: "input.score", Operator: models.OperatorGreaterThan, Value: 50}},
			input:      map[string]any{"score": 80},
			runs:       true,
		},
		{
			name: "one fails",
			conditions: []models.Condition{
				{Field: "input.score", Operator: models.OperatorGreaterThan, Value: 50},
				{Field: "input.region", Operator: models.OperatorEquals, Value: "eu"},
			},
			input: map[string]any{"score": 80, "region": "us"},
		},
		{
			name:       "unresolved path",
			conditions: []models.Condition{{Field: "input.missing.deep", Operator: models.OperatorEquals, Value: 5}},
			input:      map[string]any{},
		},
		{
			name:       "user id",
			conditions: []models.Condition{{Expression: `userId == "user-1" && input.score >= 10`}},
			input:      map[string]any{"score": 10},
			runs:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{}
			observer := &fakeObserver{}
			executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{Observer: observer})

			workflow := validWorkflow()
			workflow.Conditions = tt.conditions

			err := executor.Execute(context.Background(), workflow, models.ExecutionContext{UserID: "user-1", Input: tt.input})
			require.NoError(t, err, "a false condition is not an error")

			assert.Len(t, dispatcher.triggers, 1, "triggers always fire")

			if tt.runs {
				assert.Len(t, dispatcher.calls, 3)
				assert.Equal(t, []bool{false}, observer.executed)
			} else {
				assert.Empty(t, dispatcher.calls)
				assert.Equal(t, []bool{true}, observer.executed)
			}
		})
	}
}

func TestExecutor_UnknownOperatorFails(t *testing.T) {
	var hooked error

	dispatcher := &fakeDispatcher{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{
		OnError: func(_ context.Context, _ *models.Workflow, _ *models.ExecutionContext, err error) { hooked = err },
	})

	workflow := validWorkflow()
	workflow.Conditions = []models.Condition{{Field: "userId", Operator: "matches", Value: "x"}}

	err := executor.Execute(context.Background(), workflow, models.ExecutionContext{})

	assert.True(t, models.IsConfiguration(err))
	assert.Equal(t, err, hooked)
	assert.Empty(t, dispatcher.calls)
}

func TestExecutor_FallbackRecovers(t *testing.T) {
	dispatcher := &fakeDispatcher{failing: map[string]bool{"mailer": true}}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{})

	workflow := validWorkflow()
	workflow.Actions = []models.WorkflowAction{
		{
			Kind:     "email",
			Service:  "mailer",
			Config:   map[string]any{},
			Fallback: &models.WorkflowAction{Kind: "notification", Service: "chat", Config: map[string]any{}},
		},
		{Kind: "task", Service: "crm", Config: map[string]any{}},
	}

	execution, err := executor.Run(context.Background(), workflow, models.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, []string{"mailer", "chat", "crm"}, dispatcher.services())
	assert.Len(t, execution.Variables["actions"], 2)
}

func TestExecutor_FailureWithoutFallbackAborts(t *testing.T) {
	var hooked *models.ExecutionContext

	dispatcher := &fakeDispatcher{failing: map[string]bool{"crm": true}}
	observer := &fakeObserver{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{
		Observer: observer,
		OnError: func(_ context.Context, _ *models.Workflow, execution *models.ExecutionContext, _ error) {
			hooked = execution
		},
	})

	workflow := validWorkflow()
	workflow.Actions = append(workflow.Actions, models.WorkflowAction{Kind: "analysis", Service: "warehouse", Config: map[string]any{}})

	execution, err := executor.Run(context.Background(), workflow, models.ExecutionContext{})

	require.Error(t, err)
	assert.True(t, models.IsDispatch(err))
	assert.Equal(t, []string{"mailer", "crm"}, dispatcher.services(), "later actions are skipped")
	assert.Len(t, execution.Variables["actions"], 1)
	assert.NotEmpty(t, execution.Variables["error"])

	require.NotNil(t, hooked)
	assert.Equal(t, execution.ID, hooked.ID)
	assert.Len(t, observer.failed, 1)
	assert.Empty(t, observer.executed)
}

func TestExecutor_FailingFallbackPropagates(t *testing.T) {
	dispatcher := &fakeDispatcher{failing: map[string]bool{"mailer": true, "chat": true}}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{})

	workflow := validWorkflow()
	workflow.Actions[0].Fallback = &models.WorkflowAction{Kind: "notification", Service: "chat", Config: map[string]any{}}

	err := executor.Execute(context.Background(), workflow, models.ExecutionContext{})

	assert.True(t, models.IsDispatch(err))
	assert.Equal(t, []string{"mailer", "chat"}, dispatcher.services())
}

func TestExecutor_TriggerFailureAborts(t *testing.T) {
	dispatcher := &fakeDispatcher{failKind: map[string]bool{"event": true}}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{})

	err := executor.Execute(context.Background(), validWorkflow(), models.ExecutionContext{})

	assert.True(t, models.IsDispatch(err))
	assert.Empty(t, dispatcher.calls)
}

func TestExecutor_RecordsDispatchedActions(t *testing.T) {
	recorder := &fakeRecorder{}
	dispatcher := &fakeDispatcher{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{Recorder: recorder})

	workflow := validWorkflow()
	workflow.Actions = append(workflow.Actions, models.WorkflowAction{Kind: "sms", Service: "twilio", Config: map[string]any{}})

	execution, err := executor.Run(context.Background(), workflow, models.ExecutionContext{})
	require.NoError(t, err)

	require.Len(t, recorder.entries, 3, "kinds unknown to the queue are not recorded")
	assert.Equal(t, models.ActionKindEmail, recorder.entries[0].kind)
	assert.Equal(t, "mailer", recorder.entries[0].payload["service"])
	assert.Equal(t, execution.ID, recorder.entries[0].payload["executionId"])
	assert.Equal(t, "wf-1", recorder.entries[0].payload["workflowId"])
}

func TestExecutor_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	dispatcher := &fakeDispatcher{failing: map[string]bool{"crm": true}}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{Tracer: provider.Tracer("test")})

	_ = executor.Execute(context.Background(), validWorkflow(), models.ExecutionContext{})

	names := make([]string, 0)
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}

	assert.Equal(t, []string{"workflow.trigger", "workflow.conditions", "workflow.action", "workflow.action", "workflow.execute"}, names)
}

func TestExecutor_RendersActionConfig(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{})

	workflow := validWorkflow()
	workflow.Actions = []models.WorkflowAction{
		{Kind: "email", Service: "mailer", Config: map[string]any{
			"to":      "{{ .input.email }}",
			"subject": "Hi {{ .input.name }}",
		}},
		{Kind: "task", Service: "crm", Config: map[string]any{"owner": "{{ .userId }}"}},
	}

	_, err := executor.Run(context.Background(), workflow, models.ExecutionContext{
		UserID: "user-7",
		Input:  map[string]any{"email": "lead@example.com", "name": "Ana"},
	})
	require.NoError(t, err)

	require.Len(t, dispatcher.calls, 2)
	assert.Equal(t, map[string]any{"to": "lead@example.com", "subject": "Hi Ana"}, dispatcher.calls[0].config)
	assert.Equal(t, map[string]any{"owner": "user-7"}, dispatcher.calls[1].config)
	assert.Equal(t, "{{ .input.email }}", workflow.Actions[0].Config["to"], "workflow definition is untouched")
}

func TestExecutor_BrokenTemplateUsesFallback(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	executor := NewExecutor(dispatcher, testLogger(), ExecutorOptions{})

	workflow := validWorkflow()
	workflow.Actions = []models.WorkflowAction{
		{
			Kind:     "email",
			Service:  "mailer",
			Config:   map[string]any{"to": "{{ .input.email "},
			Fallback: &models.WorkflowAction{Kind: "notification", Service: "chat", Config: map[string]any{}},
		},
	}

	err := executor.Execute(context.Background(), workflow, models.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"chat"}, dispatcher.services())
}
