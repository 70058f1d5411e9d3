// Package workflow instantiates, validates and executes declarative workflows.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/google/uuid"
)

// IntegrationMode selects how ValidateIntegrations probes services.
type IntegrationMode string

const (
	// IntegrationDryRun sends the test dispatch flagged so handlers skip side effects.
	IntegrationDryRun IntegrationMode = "dryrun"
	// IntegrationLive sends a plain test dispatch.
	IntegrationLive IntegrationMode = "live"
	// IntegrationSkip disables the integration check.
	IntegrationSkip IntegrationMode = "skip"
)

func ParseIntegrationMode(s string) (IntegrationMode, error) {
	switch mode := IntegrationMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return IntegrationDryRun, nil
	case IntegrationDryRun, IntegrationLive, IntegrationSkip:
		return mode, nil
	default:
		return "", models.NewConfigurationError("parse integration mode", "unsupported integration check %q", s)
	}
}

type BuilderOptions struct {
	Integration IntegrationMode
}

type Builder struct {
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	mode       IntegrationMode
}

func NewBuilder(dispatcher dispatch.Dispatcher, logger *slog.Logger, opts BuilderOptions) *Builder {
	mode := opts.Integration
	if mode == "" {
		mode = IntegrationDryRun
	}

	return &Builder{
		dispatcher: dispatcher,
		logger:     logger.With("module", "workflow_builder"),
		mode:       mode,
	}
}

// CreateFromTemplate instantiates a draft workflow. Customization configs are
// deep-merged over every trigger and action config; the template is not modified.
func (b *Builder) CreateFromTemplate(template *models.Template, customization models.Customization) *models.Workflow {
	workflow := &models.Workflow{
		ID:             uuid.New().String(),
		Name:           template.Name,
		Description:    template.Description,
		Triggers:       make([]models.WorkflowTrigger, 0, len(template.Triggers)),
		Conditions:     append([]models.Condition(nil), template.Conditions...),
		Actions:        make([]models.WorkflowAction, 0, len(template.Actions)),
		DeploymentType: template.DeploymentType,
		Status:         models.WorkflowStatusDraft,
	}

	if customization.Name != "" {
		workflow.Name = customization.Name
	}

	if customization.Description != "" {
		workflow.Description = customization.Description
	}

	for _, trigger := range template.Triggers {
		workflow.Triggers = append(workflow.Triggers, models.WorkflowTrigger{
			Kind:   trigger.Kind,
			Config: merge(trigger.Config, customization.TriggerConfig),
		})
	}

	for _, action := range template.Actions {
		instance := copyAction(action)
		instance.Config = merge(action.Config, customization.ActionConfig)
		workflow.Actions = append(workflow.Actions, instance)
	}

	b.logger.Info("Workflow created from template", "template_id", template.ID, "workflow_id", workflow.ID)

	return workflow
}

// ValidateStructure returns one message per structural problem, in a stable order.
func ValidateStructure(workflow *models.Workflow) []string {
	errs := []string{}

	if strings.TrimSpace(workflow.Name) == "" {
		errs = append(errs, "Workflow name is required")
	}

	if len(workflow.Triggers) == 0 {
		errs = append(errs, "At least one trigger is required")
	}

	for i, trigger := range workflow.Triggers {
		if trigger.Kind == "" {
			errs = append(errs, fmt.Sprintf("Trigger at index %d is missing type", i))
		}

		if trigger.Config == nil {
			errs = append(errs, fmt.Sprintf("Trigger at index %d is missing configuration", i))
		}
	}

	if len(workflow.Actions) == 0 {
		errs = append(errs, "At least one action is required")
	}

	for i, action := range workflow.Actions {
		if action.Kind == "" {
			errs = append(errs, fmt.Sprintf("Action at index %d is missing type", i))
		}

		if action.Service == "" {
			errs = append(errs, fmt.Sprintf("Action at index %d is missing service", i))
		}

		if action.Config == nil {
			errs = append(errs, fmt.Sprintf("Action at index %d is missing configuration", i))
		}
	}

	return errs
}

// ValidateIntegrations probes each distinct action service once with a test
// dispatch and reports the services that did not answer.
func (b *Builder) ValidateIntegrations(ctx context.Context, workflow *models.Workflow) []string {
	errs := []string{}

	if b.mode == IntegrationSkip || b.dispatcher == nil {
		return errs
	}

	seen := make(map[string]bool)

	for _, action := range workflow.Actions {
		service := action.Service
		if service == "" || seen[service] {
			continue
		}

		seen[service] = true

		config := map[string]any{}
		if b.mode == IntegrationDryRun {
			config[dispatch.DryRunKey] = true
		}

		_, err := b.dispatcher.DispatchAction(ctx, service, dispatch.TestKind, config)
		if err != nil {
			b.logger.WarnContext(ctx, "Integration check failed", "service", service, "error", err)
			errs = append(errs, "Failed to connect to service: "+service)
		}
	}

	return errs
}

// Validate never fails: every problem ends up in the result's Errors.
func (b *Builder) Validate(ctx context.Context, workflow *models.Workflow) models.ValidationResult {
	errs := ValidateStructure(workflow)
	errs = append(errs, b.ValidateIntegrations(ctx, workflow)...)

	return models.ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

func copyAction(action models.WorkflowAction) models.WorkflowAction {
	out := models.WorkflowAction{
		Kind:    action.Kind,
		Service: action.Service,
		Config:  copyMap(action.Config),
	}

	if action.Fallback != nil {
		fallback := copyAction(*action.Fallback)
		out.Fallback = &fallback
	}

	return out
}
