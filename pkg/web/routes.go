package web

import "github.com/gofiber/fiber/v3"

func (h *APIHandlers) Register(router fiber.Router) {
	t := router.Group("/triggers")
	t.Get("/", h.ListTriggers)
	t.Post("/", h.AddTrigger)
	t.Get("/:id", h.GetTrigger)
	t.Delete("/:id", h.RemoveTrigger)
	t.Post("/:id/enable", h.EnableTrigger)
	t.Post("/:id/disable", h.DisableTrigger)
	t.Post("/:id/fire", h.FireTrigger)

	router.Post("/events", h.FireEvent)
	router.Post("/conditions/evaluate", h.EvaluateConditions)

	a := router.Group("/actions")
	a.Get("/", h.ListActions)
	a.Post("/", h.QueueAction)
	a.Get("/:id", h.GetAction)
	a.Get("/:id/status", h.GetActionStatus)

	w := router.Group("/workflows")
	w.Post("/from-template", h.CreateFromTemplate)
	w.Post("/validate", h.ValidateWorkflow)
	w.Post("/execute", h.ExecuteWorkflow)
}
