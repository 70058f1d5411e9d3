// Package mocks holds testify mocks for the engine's collaborators.
package mocks

import (
	"context"

	"github.com/dukex/flowcore/pkg/dispatch"
	"github.com/dukex/flowcore/pkg/eventbus"
	"github.com/dukex/flowcore/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// MockDispatcher is a mock implementation of dispatch.Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) DispatchAction(ctx context.Context, service, kind string, config map[string]any) (dispatch.Result, error) {
	args := m.Called(ctx, service, kind, config)

	result, _ := args.Get(0).(dispatch.Result)

	return result, args.Error(1)
}

func (m *MockDispatcher) DispatchTrigger(ctx context.Context, kind string, config map[string]any) (dispatch.Result, error) {
	args := m.Called(ctx, kind, config)

	result, _ := args.Get(0).(dispatch.Result)

	return result, args.Error(1)
}
