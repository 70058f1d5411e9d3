// Package web exposes the engine operations over HTTP.
package web

import "github.com/dukex/flowcore/pkg/models"

type AddTriggerRequest struct {
	Kind   models.TriggerKind `json:"kind"   validate:"required,oneof=schedule event condition"`
	Config map[string]any     `json:"config" validate:"required"`
}

type QueueActionRequest struct {
	Kind    models.ActionKind `json:"kind"    validate:"required,oneof=email notification task analysis"`
	Payload map[string]any    `json:"payload"`
}

type FireEventRequest struct {
	EventType string         `json:"eventType" validate:"required"`
	Data      map[string]any `json:"data"`
}

type EvaluateConditionsRequest struct {
	Context map[string]any `json:"context" validate:"required"`
}

type CreateFromTemplateRequest struct {
	Template      *models.Template     `json:"template"      validate:"required"`
	Customization models.Customization `json:"customization"`
}

type WorkflowRequest struct {
	Workflow *models.Workflow `json:"workflow" validate:"required"`
}

type ExecuteRequest struct {
	Workflow *models.Workflow       `json:"workflow" validate:"required"`
	Context  models.ExecutionContext `json:"context"`
}

type ActionStatusResponse struct {
	ID     string              `json:"id"`
	Status models.ActionStatus `json:"status"`
}

type FiredResponse struct {
	Actions []*models.Action `json:"actions"`
}
