package triggers

import (
	"sort"
	"sync"
	"time"

	"github.com/dukex/flowcore/pkg/models"
)

// Registry stores trigger records. Returned triggers are copies.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]*models.Trigger
}

func NewRegistry() *Registry {
	return &Registry{triggers: make(map[string]*models.Trigger)}
}

func (r *Registry) Put(trigger *models.Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.triggers[trigger.ID] = trigger.Clone()
}

func (r *Registry) Get(id string) (*models.Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trigger, ok := r.triggers[id]
	if !ok {
		return nil, models.NewNotFoundError("trigger", id)
	}

	return trigger.Clone(), nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.triggers[id]
	delete(r.triggers, id)

	return ok
}

// List returns triggers ordered by creation time, optionally filtered by kind.
func (r *Registry) List(kind models.TriggerKind) []*models.Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Trigger, 0, len(r.triggers))

	for _, trigger := range r.triggers {
		if kind != "" && trigger.Kind != kind {
			continue
		}

		out = append(out, trigger.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}

		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	trigger, ok := r.triggers[id]
	if !ok {
		return models.NewNotFoundError("trigger", id)
	}

	trigger.Enabled = enabled

	return nil
}

// claim records a fire at now, but only for a trigger that still exists and
// is enabled.
func (r *Registry) claim(id string, now time.Time) (*models.Trigger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trigger, ok := r.triggers[id]
	if !ok || !trigger.Enabled {
		return nil, false
	}

	fired := now
	trigger.LastFired = &fired

	return trigger.Clone(), true
}
