// Package queue holds the action ledger and the FIFO action queue that drains it.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/dukex/flowcore/pkg/models"
)

// Ledger is the append-only record of every action created in this process.
// Statuses only move forward.
type Ledger struct {
	mu      sync.RWMutex
	actions map[string]*models.Action
	order   []string
}

func NewLedger() *Ledger {
	return &Ledger{actions: make(map[string]*models.Action)}
}

func (l *Ledger) Append(action *models.Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.actions[action.ID]; exists {
		return models.NewValidationError("append action", fmt.Sprintf("action %s already exists", action.ID))
	}

	l.actions[action.ID] = action.Clone()
	l.order = append(l.order, action.ID)

	return nil
}

func (l *Ledger) Get(id string) (*models.Action, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	action, ok := l.actions[id]
	if !ok {
		return nil, models.NewNotFoundError("action", id)
	}

	return action.Clone(), nil
}

// List returns every action in creation order.
func (l *Ledger) List() []*models.Action {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.Action, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.actions[id].Clone())
	}

	return out
}

// Transition moves an action to next. Transitions out of a terminal status,
// or skipping running, are refused.
func (l *Ledger) Transition(id string, next models.ActionStatus, cause error) (*models.Action, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	action, ok := l.actions[id]
	if !ok {
		return nil, models.NewNotFoundError("action", id)
	}

	if !action.Status.CanTransitionTo(next) {
		return nil, models.NewValidationError("transition action",
			fmt.Sprintf("action %s cannot move from %s to %s", id, action.Status, next))
	}

	now := time.Now().UTC()
	action.Status = next

	switch next {
	case models.ActionStatusRunning:
		action.StartedAt = &now
	case models.ActionStatusCompleted, models.ActionStatusFailed:
		action.FinishedAt = &now

		if cause != nil {
			action.Error = cause.Error()
		}
	}

	return action.Clone(), nil
}
