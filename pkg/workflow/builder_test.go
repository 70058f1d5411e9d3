package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type call struct {
	service string
	kind    string
	config  map[string]any
}

// fakeDispatcher records calls and fails the services listed in failing.
type fakeDispatcher struct {
	calls    []call
	triggers []string
	failing  map[string]bool
	failKind map[string]bool
}

func (f *fakeDispatcher) DispatchAction(_ context.Context, service, kind string, config map[string]any) (dispatch.Result, error) {
	f.calls = append(f.calls, call{service: service, kind: kind, config: config})

	if f.failing[service] {
		return nil, models.NewDispatchError(service, kind, errors.New("unreachable"))
	}

	return dispatch.Result{"service": service}, nil
}

func (f *fakeDispatcher) DispatchTrigger(_ context.Context, kind string, _ map[string]any) (dispatch.Result, error) {
	f.triggers = append(f.triggers, kind)

	if f.failKind[kind] {
		return nil, models.NewDispatchError("", kind, errors.New("trigger rejected"))
	}

	return dispatch.Result{"kind": kind}, nil
}

func (f *fakeDispatcher) services() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.service)
	}

	return out
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:   "wf-1",
		Name: "Lead follow-up",
		Triggers: []models.WorkflowTrigger{
			{Kind: "event", Config: map[string]any{"eventType": "lead.created"}},
		},
		Actions: []models.WorkflowAction{
			{Kind: "email", Service: "mailer", Config: map[string]any{"to": "sales"}},
			{Kind: "task", Service: "crm", Config: map[string]any{"title": "call"}},
			{Kind: "notification", Service: "mailer", Config: map[string]any{}},
		},
	}
}

func TestCreateFromTemplate(t *testing.T) {
	template := &models.Template{
		ID:          "tpl",
		Name:        "Template",
		Description: "from template",
		Triggers: []models.WorkflowTrigger{
			{Kind: "schedule", Config: map[string]any{"frequency": "daily", "nested": map[string]any{"a": 1, "b": 2}}},
		},
		Actions: []models.WorkflowAction{
			{
				Kind:     "email",
				Service:  "mailer",
				Config:   map[string]any{"x": 0, "y": 2},
				Fallback: &models.WorkflowAction{Kind: "notification", Service: "chat", Config: map[string]any{"channel": "ops"}},
			},
		},
		DeploymentType: models.DeploymentTypeURL,
	}

	builder := NewBuilder(nil, testLogger(), BuilderOptions{})

	workflow := builder.CreateFromTemplate(template, models.Customization{
		Name:          "Custom",
		TriggerConfig: map[string]any{"nested": map[string]any{"b": 3}},
		ActionConfig:  map[string]any{"x": 1},
	})

	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, "Custom", workflow.Name)
	assert.Equal(t, "from template", workflow.Description)
	assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
	assert.Equal(t, models.DeploymentTypeURL, workflow.DeploymentType)

	assert.Equal(t, map[string]any{"x": 1, "y": 2}, workflow.Actions[0].Config)
	assert.Equal(t, map[string]any{"frequency": "daily", "nested": map[string]any{"a": 1, "b": 3}}, workflow.Triggers[0].Config)

	require.NotNil(t, workflow.Actions[0].Fallback)
	assert.Equal(t, "chat", workflow.Actions[0].Fallback.Service)

	workflow.Actions[0].Fallback.Config["channel"] = "changed"

	assert.Equal(t, map[string]any{"x": 0, "y": 2}, template.Actions[0].Config, "template is never mutated")
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, template.Triggers[0].Config["nested"])
	assert.Equal(t, "ops", template.Actions[0].Fallback.Config["channel"])
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     map[string]any
		override map[string]any
		want     map[string]any
	}{
		{name: "override wins", base: map[string]any{"x": 0, "y": 2}, override: map[string]any{"x": 1}, want: map[string]any{"x": 1, "y": 2}},
		{name: "zero override is kept", base: map[string]any{"enabled": true}, override: map[string]any{"enabled": false}, want: map[string]any{"enabled": false}},
		{name: "nil override", base: map[string]any{"a": 1}, override: nil, want: map[string]any{"a": 1}},
		{name: "nil base", base: nil, override: map[string]any{"a": 1}, want: map[string]any{"a": 1}},
		{name: "both nil", want: nil},
		{name: "map replaces scalar", base: map[string]any{"a": 1}, override: map[string]any{"a": map[string]any{"b": 1}}, want: map[string]any{"a": map[string]any{"b": 1}}},
		{name: "scalar replaces map", base: map[string]any{"a": map[string]any{"b": 1}}, override: map[string]any{"a": "flat"}, want: map[string]any{"a": "flat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, merge(tt.base, tt.override))
		})
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *models.Workflow)
		want   []string
	}{
		{name: "valid", mutate: func(*models.Workflow) {}, want: []string{}},
		{name: "no actions", mutate: func(w *models.Workflow) { w.Actions = nil }, want: []string{"At least one action is required"}},
		{name: "no name", mutate: func(w *models.Workflow) { w.Name = " " }, want: []string{"Workflow name is required"}},
		{name: "no triggers", mutate: func(w *models.Workflow) { w.Triggers = nil }, want: []string{"At least one trigger is required"}},
		{
			name: "incomplete trigger",
			mutate: func(w *models.Workflow) {
				w.Triggers = append(w.Triggers, models.WorkflowTrigger{})
			},
			want: []string{"Trigger at index 1 is missing type", "Trigger at index 1 is missing configuration"},
		},
		{
			name: "incomplete action",
			mutate: func(w *models.Workflow) {
				w.Actions[2] = models.WorkflowAction{}
			},
			want: []string{
				"Action at index 2 is missing type",
				"Action at index 2 is missing service",
				"Action at index 2 is missing configuration",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := validWorkflow()
			tt.mutate(workflow)

			assert.Equal(t, tt.want, ValidateStructure(workflow))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("no actions", func(t *testing.T) {
		builder := NewBuilder(&fakeDispatcher{}, testLogger(), BuilderOptions{})

		workflow := validWorkflow()
		workflow.Actions = nil

		result := builder.Validate(context.Background(), workflow)

		assert.Equal(t, models.ValidationResult{IsValid: false, Errors: []string{"At least one action is required"}}, result)
	})

	t.Run("probes each service once in dry run", func(t *testing.T) {
		dispatcher := &fakeDispatcher{failing: map[string]bool{"crm": true}}
		builder := NewBuilder(dispatcher, testLogger(), BuilderOptions{})

		workflow := validWorkflow()
		result := builder.Validate(context.Background(), workflow)

		assert.False(t, result.IsValid)
		assert.Equal(t, []string{"Failed to connect to service: crm"}, result.Errors)
		assert.Equal(t, []string{"mailer", "crm"}, dispatcher.services())

		for _, c := range dispatcher.calls {
			assert.Equal(t, dispatch.TestKind, c.kind)
			assert.Equal(t, true, c.config[dispatch.DryRunKey])
		}

		assert.Equal(t, validWorkflow(), workflow, "validation does not mutate the workflow")
	})

	t.Run("live probe has no dry run flag", func(t *testing.T) {
		dispatcher := &fakeDispatcher{}
		builder := NewBuilder(dispatcher, testLogger(), BuilderOptions{Integration: IntegrationLive})

		result := builder.Validate(context.Background(), validWorkflow())

		assert.True(t, result.IsValid)
		require.NotEmpty(t, dispatcher.calls)
		assert.NotContains(t, dispatcher.calls[0].config, dispatch.DryRunKey)
	})

	t.Run("skip", func(t *testing.T) {
		dispatcher := &fakeDispatcher{failing: map[string]bool{"crm": true}}
		builder := NewBuilder(dispatcher, testLogger(), BuilderOptions{Integration: IntegrationSkip})

		result := builder.Validate(context.Background(), validWorkflow())

		assert.True(t, result.IsValid)
		assert.Empty(t, result.Errors)
		assert.Empty(t, dispatcher.calls)
	})

	t.Run("structural and integration errors are concatenated", func(t *testing.T) {
		dispatcher := &fakeDispatcher{failing: map[string]bool{"mailer": true}}
		builder := NewBuilder(dispatcher, testLogger(), BuilderOptions{})

		workflow := validWorkflow()
		workflow.Name = ""

		result := builder.Validate(context.Background(), workflow)

		assert.Equal(t, []string{"Workflow name is required", "Failed to connect to service: mailer"}, result.Errors)
	})
}

func TestParseIntegrationMode(t *testing.T) {
	tests := []struct {
		in      string
		want    IntegrationMode
		wantErr bool
	}{
		{in: "", want: IntegrationDryRun},
		{in: "DryRun", want: IntegrationDryRun},
		{in: "live", want: IntegrationLive},
		{in: "skip", want: IntegrationSkip},
		{in: "mock", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIntegrationMode(tt.in)
			if tt.wantErr {
				assert.True(t, models.IsConfiguration(err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
