package triggers

import (
	"fmt"
	"strings"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var conditionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"field":      map[string]any{"type": "string"},
		"operator":   map[string]any{"type": "string"},
		"expression": map[string]any{"type": "string"},
	},
	"anyOf": []any{
		map[string]any{"required": []string{"field", "operator"}},
		map[string]any{"required": []string{"expression"}},
	},
}

// Schemas holds the JSON schema of every trigger kind's configuration.
var Schemas = map[models.TriggerKind]map[string]any{
	models.TriggerKindSchedule: {
		"type":        "object",
		"title":       "Schedule Trigger Configuration",
		"description": "Fires once at a time of day, or repeatedly every day, week or month",
		"properties": map[string]any{
			"frequency": map[string]any{
				"type":        "string",
				"description": "once, daily, weekly or monthly",
			},
			"time": map[string]any{
				"type":        "string",
				"description": "Time of day (HH:mm) for once schedules",
				"pattern":     `^([01]\d|2[0-3]):[0-5]\d$`,
			},
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone the time is expressed in",
			},
		},
		"required": []string{"frequency"},
	},
	models.TriggerKindEvent: {
		"type":        "object",
		"title":       "Event Trigger Configuration",
		"description": "Fires when a matching event is received",
		"properties": map[string]any{
			"eventType": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"conditions": map[string]any{
				"type":  "array",
				"items": conditionSchema,
			},
		},
		"required": []string{"eventType"},
	},
	models.TriggerKindCondition: {
		"type":        "object",
		"title":       "Condition Trigger Configuration",
		"description": "Fires when all conditions hold over an evaluated context",
		"properties": map[string]any{
			"conditions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    conditionSchema,
			},
		},
		"required": []string{"conditions"},
	},
}

var compiledSchemas = compileSchemas()

func compileSchemas() map[models.TriggerKind]*gojsonschema.Schema {
	out := make(map[models.TriggerKind]*gojsonschema.Schema, len(Schemas))

	for kind, schema := range Schemas {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			panic(fmt.Sprintf("invalid %s trigger schema: %v", kind, err))
		}

		out[kind] = compiled
	}

	return out
}

// ValidateConfig checks config against the schema of kind.
func ValidateConfig(kind models.TriggerKind, config map[string]any) error {
	schema, ok := compiledSchemas[kind]
	if !ok {
		return models.NewConfigurationError("validate trigger", "unsupported trigger kind %q", kind)
	}

	if config == nil {
		return models.NewValidationError("validate trigger", "config is required")
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return &models.ValidationError{Op: "validate trigger", Message: "config is not valid JSON", Err: err}
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return models.NewValidationError("validate trigger", strings.Join(messages, "; "))
}
