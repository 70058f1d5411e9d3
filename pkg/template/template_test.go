package template

import (
	"testing"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	data := map[string]any{
		"input": map[string]any{
			"name":  "Alice",
			"age":   30,
			"isNew": true,
			"tags":  []any{"a", "b"},
		},
	}

	tests := []struct {
		name     string
		template string
		want     any
	}{
		{name: "string", template: "{{ .input.name }}", want: "Alice"},
		{name: "number", template: "{{ .input.age }}", want: 30.0},
		{name: "boolean", template: "{{ .input.isNew }}", want: true},
		{name: "interpolation", template: "Hello {{ .input.name }}!", want: "Hello Alice!"},
		{name: "json", template: `{{ json .input.tags }}`, want: []any{"a", "b"}},
		{name: "object", template: `{"who": "{{ .input.name }}", "count": {{ len .input.tags }}}`, want: map[string]any{"who": "Alice", "count": 2.0}},
		{name: "missing key", template: "{{ .input.missing }}", want: "<no value>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("{{ .input.name ", nil)
	assert.Error(t, err)

	_, err = Render(`{"broken": {{ "x" }}}`, nil)
	assert.Error(t, err)
}

func TestRenderConfig(t *testing.T) {
	data := map[string]any{"input": map[string]any{"email": "a@b.c", "score": 90}}

	config := map[string]any{
		"to":      "{{ .input.email }}",
		"subject": "Welcome",
		"meta":    map[string]any{"score": "{{ .input.score }}"},
		"list":    []any{"{{ .input.email }}", 3},
		"retries": 2,
	}

	out, err := RenderConfig(config, data)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"to":      "a@b.c",
		"subject": "Welcome",
		"meta":    map[string]any{"score": 90.0},
		"list":    []any{"a@b.c", 3},
		"retries": 2,
	}, out)
	assert.Equal(t, "{{ .input.email }}", config["to"], "input is not modified")

	out, err = RenderConfig(nil, data)
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = RenderConfig(map[string]any{"bad": "{{ .input.email "}, data)
	assert.True(t, models.IsConfiguration(err))
}
