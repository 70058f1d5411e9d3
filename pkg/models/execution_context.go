package models

import "time"

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// ExecutionContext carries the inputs of one workflow execution. Variables
// and Logs are local to that execution.
type ExecutionContext struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflowId"`
	TriggerID  string         `json:"triggerId,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Variables  map[string]any `json:"variables"`
	Logs       []LogEntry     `json:"logs"`
}

func (c *ExecutionContext) Log(level, message string) {
	c.Logs = append(c.Logs, LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: message,
	})
}

// Data returns the view that condition field paths are resolved against.
func (c *ExecutionContext) Data() map[string]any {
	return map[string]any{
		"workflowId": c.WorkflowID,
		"triggerId":  c.TriggerID,
		"input":      c.Input,
		"userId":     c.UserID,
		"timestamp":  c.Timestamp,
		"variables":  c.Variables,
	}
}
