// Package models defines the core domain models for workflow automation.
package models

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// DeploymentType describes how a workflow is exposed to its users.
type DeploymentType string

const (
	DeploymentTypePWA      DeploymentType = "pwa"
	DeploymentTypeURL      DeploymentType = "url"
	DeploymentTypeEmbedded DeploymentType = "embedded"
)

// WorkflowTrigger is the declarative trigger entry of a workflow.
type WorkflowTrigger struct {
	Kind   string         `json:"kind"   yaml:"kind"`
	Config map[string]any `json:"config" yaml:"config"`
}

// WorkflowAction is a declarative action entry, optionally carrying a fallback
// dispatched in its place when the primary dispatch fails.
type WorkflowAction struct {
	Kind     string          `json:"kind"               yaml:"kind"`
	Service  string          `json:"service"            yaml:"service"`
	Config   map[string]any  `json:"config"             yaml:"config"`
	Fallback *WorkflowAction `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Workflow chains triggers, conditions and actions executed as one unit.
type Workflow struct {
	ID             string            `json:"id"                    yaml:"id"`
	Name           string            `json:"name"                  yaml:"name"`
	Description    string            `json:"description"           yaml:"description"`
	Triggers       []WorkflowTrigger `json:"triggers"              yaml:"triggers"`
	Conditions     []Condition       `json:"conditions,omitempty"  yaml:"conditions,omitempty"`
	Actions        []WorkflowAction  `json:"actions"               yaml:"actions"`
	DeploymentType DeploymentType    `json:"deploymentType"        yaml:"deploymentType"`
	Status         WorkflowStatus    `json:"status"                yaml:"status"`
}

// Template is the blueprint a workflow is instantiated from.
type Template struct {
	ID             string            `json:"id"                   yaml:"id"`
	Name           string            `json:"name"                 yaml:"name"`
	Description    string            `json:"description"          yaml:"description"`
	Triggers       []WorkflowTrigger `json:"triggers"             yaml:"triggers"`
	Conditions     []Condition       `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions        []WorkflowAction  `json:"actions"              yaml:"actions"`
	DeploymentType DeploymentType    `json:"deploymentType"       yaml:"deploymentType"`
}

// Customization is merged over a template by the workflow builder.
type Customization struct {
	Name          string         `json:"name,omitempty"          yaml:"name,omitempty"`
	Description   string         `json:"description,omitempty"   yaml:"description,omitempty"`
	TriggerConfig map[string]any `json:"triggerConfig,omitempty" yaml:"triggerConfig,omitempty"`
	ActionConfig  map[string]any `json:"actionConfig,omitempty"  yaml:"actionConfig,omitempty"`
}

// ValidationResult is always returned, never thrown, by validation routines.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}
