package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/engine"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/dukex/flowcore/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestApp(t *testing.T) (*fiber.App, *engine.Engine) {
	t.Helper()

	router := dispatch.NewRouter(testLogger())
	router.Register(engine.DefaultService, dispatch.NewLogHandler(testLogger()))
	router.Register("broken", dispatch.HandlerFunc(func(context.Context, string, map[string]any) (dispatch.Result, error) {
		return nil, errors.New("offline")
	}))

	eng := engine.New(router, nil, testLogger(), engine.Config{})
	t.Cleanup(func() { _ = eng.Close(context.Background()) })

	handlers := web.NewAPIHandlers(eng, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	app := fiber.New()
	handlers.Register(app)

	return app, eng
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, out
}

func TestAPIHandlers_AddTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "event trigger",
			body:           web.AddTriggerRequest{Kind: models.TriggerKindEvent, Config: map[string]any{"eventType": "signup"}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "unknown kind",
			body:           map[string]any{"kind": "webhook", "config": map[string]any{}},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "schema violation",
			body:           web.AddTriggerRequest{Kind: models.TriggerKindSchedule, Config: map[string]any{"time": "09:00"}},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "unsupported frequency",
			body:           web.AddTriggerRequest{Kind: models.TriggerKindSchedule, Config: map[string]any{"frequency": "hourly"}},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "configuration_error",
		},
		{
			name:           "malformed body",
			body:           "not an object",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/triggers", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				var problem map[string]any
				require.NoError(t, json.Unmarshal(body, &problem))
				assert.Equal(t, tt.expectedType, problem["type"])
			}
		})
	}
}

func TestAPIHandlers_TriggerLifecycle(t *testing.T) {
	app, eng := setupTestApp(t)

	trigger, err := eng.AddTrigger(context.Background(), models.TriggerKindEvent, map[string]any{"eventType": "signup"})
	require.NoError(t, err)

	status, body := do(t, app, http.MethodGet, "/triggers/"+trigger.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	var got models.Trigger
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, trigger.ID, got.ID)

	status, _ = do(t, app, http.MethodPost, "/triggers/"+trigger.ID+"/disable", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodPost, "/events", web.FireEventRequest{EventType: "signup"})
	assert.Equal(t, http.StatusAccepted, status)
	assert.JSONEq(t, `{"actions": []}`, string(body))

	status, _ = do(t, app, http.MethodPost, "/triggers/"+trigger.ID+"/enable", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodPost, "/events", web.FireEventRequest{EventType: "signup"})
	assert.Equal(t, http.StatusAccepted, status)

	var fired web.FiredResponse
	require.NoError(t, json.Unmarshal(body, &fired))
	assert.Len(t, fired.Actions, 1)

	status, _ = do(t, app, http.MethodGet, "/triggers?kind=event", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, app, http.MethodDelete, "/triggers/"+trigger.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodDelete, "/triggers/"+trigger.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodPost, "/triggers/"+trigger.ID+"/enable", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_Actions(t *testing.T) {
	app, eng := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/actions", web.QueueActionRequest{Kind: models.ActionKindTask})
	require.Equal(t, http.StatusAccepted, status)

	var action models.Action
	require.NoError(t, json.Unmarshal(body, &action))

	require.NoError(t, eng.Wait(context.Background()))

	status, body = do(t, app, http.MethodGet, "/actions/"+action.ID+"/status", nil)
	assert.Equal(t, http.StatusOK, status)

	var statusResp web.ActionStatusResponse
	require.NoError(t, json.Unmarshal(body, &statusResp))
	assert.Equal(t, models.ActionStatusCompleted, statusResp.Status)

	status, _ = do(t, app, http.MethodGet, "/actions/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodPost, "/actions", map[string]any{"kind": "fax"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodGet, "/actions", nil)
	assert.Equal(t, http.StatusOK, status)

	var actions []models.Action
	require.NoError(t, json.Unmarshal(body, &actions))
	assert.Len(t, actions, 1)
}

func TestAPIHandlers_Workflows(t *testing.T) {
	app, _ := setupTestApp(t)

	template := &models.Template{
		Name:     "Welcome",
		Triggers: []models.WorkflowTrigger{{Kind: "event", Config: map[string]any{"eventType": "signup"}}},
		Actions: []models.WorkflowAction{
			{Kind: "email", Service: engine.DefaultService, Config: map[string]any{"x": 0, "y": 2}},
		},
	}

	status, body := do(t, app, http.MethodPost, "/workflows/from-template", web.CreateFromTemplateRequest{
		Template:      template,
		Customization: models.Customization{ActionConfig: map[string]any{"x": 1}},
	})
	require.Equal(t, http.StatusCreated, status)

	var wf models.Workflow
	require.NoError(t, json.Unmarshal(body, &wf))
	assert.Equal(t, map[string]any{"x": float64(1), "y": float64(2)}, wf.Actions[0].Config)

	status, body = do(t, app, http.MethodPost, "/workflows/validate", web.WorkflowRequest{Workflow: &wf})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"isValid": true, "errors": []}`, string(body))

	status, body = do(t, app, http.MethodPost, "/workflows/execute", web.ExecuteRequest{Workflow: &wf})
	assert.Equal(t, http.StatusOK, status)

	var execution models.ExecutionContext
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, wf.ID, execution.WorkflowID)

	broken := wf
	broken.Actions = []models.WorkflowAction{{Kind: "email", Service: "broken", Config: map[string]any{}}}

	status, body = do(t, app, http.MethodPost, "/workflows/validate", web.WorkflowRequest{Workflow: &broken})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"isValid": false, "errors": ["Failed to connect to service: broken"]}`, string(body))

	status, _ = do(t, app, http.MethodPost, "/workflows/execute", web.ExecuteRequest{Workflow: &broken})
	assert.Equal(t, http.StatusBadGateway, status)

	broken.Actions = nil

	status, _ = do(t, app, http.MethodPost, "/workflows/execute", web.ExecuteRequest{Workflow: &broken})
	assert.Equal(t, http.StatusBadRequest, status)
}
