package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/flowcore/pkg/cmd"
	"github.com/dukex/flowcore/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *runtime {
	t.Helper()

	bus, err := cmd.NewEventBus("gochannel", nil, slog.Default())
	require.NoError(t, err)

	dispatcher, _, err := cmd.NewDispatcher(cmd.DispatcherConfig{DefaultService: engine.DefaultService}, bus, slog.Default())
	require.NoError(t, err)

	rt := &runtime{
		logger: slog.Default(),
		bus:    bus,
		engine: engine.New(dispatcher, bus, slog.Default(), engine.Config{}),
	}

	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	return rt
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := newApp(setupTestApp(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "flowcore", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := newApp(setupTestApp(t))

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)

		_ = resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPI_RoutesAreRegistered(t *testing.T) {
	app := newApp(setupTestApp(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/actions", nil))
	require.NoError(t, err)

	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
