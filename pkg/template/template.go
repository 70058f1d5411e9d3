// Package template renders text/template expressions found in action configs.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/flowcore/pkg/models"
)

// NeedsTemplating reports whether s holds a template action.
func NeedsTemplating(s string) bool {
	return strings.Contains(s, "{{")
}

// RenderConfig returns a copy of config where every string value holding a
// template is rendered against data. Nested maps and lists are walked.
func RenderConfig(config map[string]any, data map[string]any) (map[string]any, error) {
	if config == nil {
		return nil, nil
	}

	out := make(map[string]any, len(config))

	for key, value := range config {
		rendered, err := renderValue(value, data)
		if err != nil {
			return nil, models.NewConfigurationError("render config", "key %q: %v", key, err)
		}

		out[key] = rendered
	}

	return out, nil
}

func renderValue(value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if !NeedsTemplating(v) {
			return v, nil
		}

		return Render(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, item := range v {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

// Render executes templateStr against data. Output that parses as a JSON
// object or array, a number or a boolean is returned as that value.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("config").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"json": func(v any) (string, error) {
				raw, err := json.Marshal(v)

				return string(raw), err
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}
