package models

import "time"

// ActionKind identifies what an action does once dispatched.
type ActionKind string

const (
	ActionKindEmail        ActionKind = "email"
	ActionKindNotification ActionKind = "notification"
	ActionKindTask         ActionKind = "task"
	ActionKindAnalysis     ActionKind = "analysis"
)

func (k ActionKind) IsValid() bool {
	switch k {
	case ActionKindEmail, ActionKindNotification, ActionKindTask, ActionKindAnalysis:
		return true
	default:
		return false
	}
}

// ActionStatus represents the lifecycle state of a queued action.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s ActionStatus) IsTerminal() bool {
	return s == ActionStatusCompleted || s == ActionStatusFailed
}

// CanTransitionTo encodes pending -> running -> completed|failed.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	switch s {
	case ActionStatusPending:
		return next == ActionStatusRunning
	case ActionStatusRunning:
		return next == ActionStatusCompleted || next == ActionStatusFailed
	default:
		return false
	}
}

// Action is a unit of asynchronous work held by the ledger.
type Action struct {
	ID         string         `json:"id"`
	Kind       ActionKind     `json:"kind"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
	Status     ActionStatus   `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Clone returns a copy safe to hand out of a locked section.
func (a *Action) Clone() *Action {
	c := *a

	if a.Payload != nil {
		c.Payload = make(map[string]any, len(a.Payload))
		for k, v := range a.Payload {
			c.Payload[k] = v
		}
	}

	return &c
}
