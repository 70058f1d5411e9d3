package web

import (
	"context"
	"log/slog"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Engine is the set of engine operations served over HTTP.
type Engine interface {
	AddTrigger(ctx context.Context, kind models.TriggerKind, config map[string]any) (*models.Trigger, error)
	RemoveTrigger(ctx context.Context, id string) bool
	EnableTrigger(ctx context.Context, id string) error
	DisableTrigger(ctx context.Context, id string) error
	GetTrigger(id string) (*models.Trigger, error)
	ListTriggers(kind models.TriggerKind) []*models.Trigger
	FireTrigger(ctx context.Context, id string) (*models.Action, error)
	FireEvent(ctx context.Context, eventType string, data map[string]any) ([]*models.Action, error)
	EvaluateConditions(ctx context.Context, data map[string]any) ([]*models.Action, error)
	QueueAction(ctx context.Context, kind models.ActionKind, payload map[string]any) (*models.Action, error)
	GetActionStatus(id string) (models.ActionStatus, error)
	GetAction(id string) (*models.Action, error)
	ListActions() []*models.Action
	CreateFromTemplate(template *models.Template, customization models.Customization) *models.Workflow
	Validate(ctx context.Context, workflow *models.Workflow) models.ValidationResult
	Run(ctx context.Context, workflow *models.Workflow, input models.ExecutionContext) (*models.ExecutionContext, error)
}

type APIHandlers struct {
	engine    Engine
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(engine Engine, validator *validator.Validate, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		validator: validator,
		logger:    logger.With("module", "api"),
	}
}

// bind decodes and validates the JSON body into req.
func (h *APIHandlers) bind(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return models.NewValidationError("decode request", "invalid request body: "+err.Error())
	}

	return h.validator.Struct(req)
}

func (h *APIHandlers) AddTrigger(c fiber.Ctx) error {
	var req AddTriggerRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	trigger, err := h.engine.AddTrigger(c.Context(), req.Kind, req.Config)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(trigger)
}

func (h *APIHandlers) ListTriggers(c fiber.Ctx) error {
	return c.JSON(h.engine.ListTriggers(models.TriggerKind(c.Query("kind"))))
}

func (h *APIHandlers) GetTrigger(c fiber.Ctx) error {
	trigger, err := h.engine.GetTrigger(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) RemoveTrigger(c fiber.Ctx) error {
	id := c.Params("id")

	if !h.engine.RemoveTrigger(c.Context(), id) {
		return notFound(c, "trigger "+id+" not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableTrigger(c fiber.Ctx) error {
	err := h.engine.EnableTrigger(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DisableTrigger(c fiber.Ctx) error {
	err := h.engine.DisableTrigger(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) FireTrigger(c fiber.Ctx) error {
	action, err := h.engine.FireTrigger(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(action)
}

func (h *APIHandlers) FireEvent(c fiber.Ctx) error {
	var req FireEventRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	actions, err := h.engine.FireEvent(c.Context(), req.EventType, req.Data)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(FiredResponse{Actions: nonNil(actions)})
}

func (h *APIHandlers) EvaluateConditions(c fiber.Ctx) error {
	var req EvaluateConditionsRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	actions, err := h.engine.EvaluateConditions(c.Context(), req.Context)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(FiredResponse{Actions: nonNil(actions)})
}

func (h *APIHandlers) QueueAction(c fiber.Ctx) error {
	var req QueueActionRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	action, err := h.engine.QueueAction(c.Context(), req.Kind, req.Payload)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(action)
}

func (h *APIHandlers) ListActions(c fiber.Ctx) error {
	return c.JSON(h.engine.ListActions())
}

func (h *APIHandlers) GetAction(c fiber.Ctx) error {
	action, err := h.engine.GetAction(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(action)
}

func (h *APIHandlers) GetActionStatus(c fiber.Ctx) error {
	id := c.Params("id")

	status, err := h.engine.GetActionStatus(id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(ActionStatusResponse{ID: id, Status: status})
}

func (h *APIHandlers) CreateFromTemplate(c fiber.Ctx) error {
	var req CreateFromTemplateRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.engine.CreateFromTemplate(req.Template, req.Customization))
}

// ValidateWorkflow always answers 200; problems are reported in the body.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var req WorkflowRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(h.engine.Validate(c.Context(), req.Workflow))
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest

	if err := h.bind(c, &req); err != nil {
		return handleEngineError(c, err)
	}

	execution, err := h.engine.Run(c.Context(), req.Workflow, req.Context)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Workflow execution failed", "workflow_id", req.Workflow.ID, "error", err)

		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func nonNil(actions []*models.Action) []*models.Action {
	if actions == nil {
		return []*models.Action{}
	}

	return actions
}
