// Package events defines event types and structures for engine lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "flowcore.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Action queue lifecycle.
	ActionQueuedEvent    EventType = "action.queued"
	ActionCompletedEvent EventType = "action.completed"
	ActionFailedEvent    EventType = "action.failed"

	// Trigger lifecycle.
	TriggerFiredEvent EventType = "trigger.fired"

	// Workflow execution lifecycle.
	WorkflowExecutedEvent EventType = "workflow.executed"
	WorkflowFailedEvent   EventType = "workflow.failed"

	// Outbound dispatches published for out-of-process consumers.
	ActionDispatchedEvent EventType = "action.dispatched"

	// Inbound events matched against event triggers.
	ExternalEventReceivedEvent EventType = "external.received"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type ActionQueued struct {
	BaseEvent

	ActionID string         `json:"action_id"`
	Kind     string         `json:"kind"`
	Payload  map[string]any `json:"payload,omitempty"`
}

func (ActionQueued) GetType() EventType { return ActionQueuedEvent }

func NewActionQueued(actionID, kind string, payload map[string]any) ActionQueued {
	return ActionQueued{BaseEvent: newBase(ActionQueuedEvent), ActionID: actionID, Kind: kind, Payload: payload}
}

type ActionCompleted struct {
	BaseEvent

	ActionID string        `json:"action_id"`
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
}

func (ActionCompleted) GetType() EventType { return ActionCompletedEvent }

func NewActionCompleted(actionID, kind string, duration time.Duration) ActionCompleted {
	return ActionCompleted{BaseEvent: newBase(ActionCompletedEvent), ActionID: actionID, Kind: kind, Duration: duration}
}

type ActionFailed struct {
	BaseEvent

	ActionID string `json:"action_id"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

func (ActionFailed) GetType() EventType { return ActionFailedEvent }

func NewActionFailed(actionID, kind, errMsg string) ActionFailed {
	return ActionFailed{BaseEvent: newBase(ActionFailedEvent), ActionID: actionID, Kind: kind, Error: errMsg}
}

type TriggerFired struct {
	BaseEvent

	TriggerID   string `json:"trigger_id"`
	TriggerKind string `json:"trigger_kind"`
	ActionID    string `json:"action_id"`
}

func (TriggerFired) GetType() EventType { return TriggerFiredEvent }

func NewTriggerFired(triggerID, triggerKind, actionID string) TriggerFired {
	return TriggerFired{BaseEvent: newBase(TriggerFiredEvent), TriggerID: triggerID, TriggerKind: triggerKind, ActionID: actionID}
}

type WorkflowExecuted struct {
	BaseEvent

	WorkflowID  string        `json:"workflow_id"`
	ExecutionID string        `json:"execution_id"`
	Skipped     bool          `json:"skipped"`
	Duration    time.Duration `json:"duration"`
}

func (WorkflowExecuted) GetType() EventType { return WorkflowExecutedEvent }

func NewWorkflowExecuted(workflowID, executionID string, skipped bool, duration time.Duration) WorkflowExecuted {
	return WorkflowExecuted{
		BaseEvent:   newBase(WorkflowExecutedEvent),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Skipped:     skipped,
		Duration:    duration,
	}
}

type WorkflowFailed struct {
	BaseEvent

	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
}

func (WorkflowFailed) GetType() EventType { return WorkflowFailedEvent }

func NewWorkflowFailed(workflowID, executionID, errMsg string) WorkflowFailed {
	return WorkflowFailed{BaseEvent: newBase(WorkflowFailedEvent), WorkflowID: workflowID, ExecutionID: executionID, Error: errMsg}
}

type ActionDispatched struct {
	BaseEvent

	Service string         `json:"service"`
	Kind    string         `json:"kind"`
	Config  map[string]any `json:"config,omitempty"`
}

func (ActionDispatched) GetType() EventType { return ActionDispatchedEvent }

func NewActionDispatched(service, kind string, config map[string]any) ActionDispatched {
	return ActionDispatched{BaseEvent: newBase(ActionDispatchedEvent), Service: service, Kind: kind, Config: config}
}

// ExternalEventReceived carries an event from outside the engine. Event
// triggers whose event type matches EventType fire on it.
type ExternalEventReceived struct {
	BaseEvent

	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
}

func (ExternalEventReceived) GetType() EventType { return ExternalEventReceivedEvent }

func NewExternalEventReceived(eventType, source string, data map[string]any) ExternalEventReceived {
	return ExternalEventReceived{
		BaseEvent: newBase(ExternalEventReceivedEvent),
		EventType: eventType,
		Source:    source,
		Data:      data,
	}
}
