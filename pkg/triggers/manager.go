// Package triggers registers schedule, event and condition triggers and
// turns their fires into queued actions.
package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowcore/pkg/conditions"
	"github.com/dukex/flowcore/pkg/eventbus"
	"github.com/dukex/flowcore/pkg/events"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Enqueuer receives the action produced by a fire.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.ActionKind, payload map[string]any) (*models.Action, error)
}

// FireObserver is told about every fire that produced an action.
type FireObserver interface {
	TriggerFired(ctx context.Context, trigger *models.Trigger, action *models.Action)
}

type timer interface {
	Stop() bool
}

type Options struct {
	Observer FireObserver
	// Now and AfterFunc replace the wall clock, mainly in tests.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) timer
}

// schedule tracks the armed timer of one schedule trigger: a cron entry for
// recurring frequencies or a one-shot timer for "once".
type schedule struct {
	entry   cron.EntryID
	oneShot timer
}

type Manager struct {
	registry *Registry
	enqueuer Enqueuer
	logger   *slog.Logger
	observer FireObserver
	now      func() time.Time
	after    func(d time.Duration, f func()) timer

	// fireMu is held shared by every fire and exclusively by operations that
	// must guarantee no fire happens after they return.
	fireMu sync.RWMutex

	mu        sync.Mutex
	cron      *cron.Cron
	schedules map[string]*schedule
}

func NewManager(registry *Registry, enqueuer Enqueuer, logger *slog.Logger, opts Options) *Manager {
	m := &Manager{
		registry:  registry,
		enqueuer:  enqueuer,
		logger:    logger.With("module", "trigger_manager"),
		observer:  opts.Observer,
		now:       opts.Now,
		after:     opts.AfterFunc,
		schedules: make(map[string]*schedule),
	}

	if m.now == nil {
		m.now = time.Now
	}

	if m.after == nil {
		m.after = func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		}
	}

	m.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	return m
}

// AddTrigger validates config against the kind's schema and stores an
// enabled trigger. Schedule triggers are armed immediately.
func (m *Manager) AddTrigger(ctx context.Context, kind models.TriggerKind, config map[string]any) (*models.Trigger, error) {
	err := ValidateConfig(kind, config)
	if err != nil {
		return nil, err
	}

	trigger := &models.Trigger{
		ID:        uuid.New().String(),
		Kind:      kind,
		Enabled:   true,
		CreatedAt: m.now().UTC(),
	}

	switch kind {
	case models.TriggerKindSchedule:
		trigger.Schedule = &models.ScheduleConfig{}
		err = decode(config, trigger.Schedule)
	case models.TriggerKindEvent:
		trigger.Event = &models.EventConfig{}
		err = decode(config, trigger.Event)
	case models.TriggerKindCondition:
		trigger.Condition = &models.ConditionConfig{}
		err = decode(config, trigger.Condition)
	}

	if err != nil {
		return nil, &models.ValidationError{Op: "add trigger", Message: "config does not match schema", Err: err}
	}

	err = m.check(trigger)
	if err != nil {
		return nil, err
	}

	m.registry.Put(trigger)

	if trigger.Kind == models.TriggerKindSchedule {
		err = m.arm(trigger)
		if err != nil {
			m.registry.Delete(trigger.ID)

			return nil, err
		}
	}

	m.logger.InfoContext(ctx, "Trigger added", "trigger_id", trigger.ID, "kind", kind)

	return trigger.Clone(), nil
}

func (m *Manager) check(trigger *models.Trigger) error {
	if trigger.Schedule != nil {
		cfg := trigger.Schedule

		switch cfg.Frequency {
		case models.FrequencyOnce:
			if cfg.Time == "" {
				return models.NewValidationError("add trigger", "time is required for once schedules")
			}
		case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		default:
			return models.NewConfigurationError("add trigger", "unsupported frequency %q", cfg.Frequency)
		}

		_, err := location(cfg.Timezone)
		if err != nil {
			return err
		}
	}

	for _, condition := range trigger.Conditions() {
		err := conditions.Validate(condition)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) arm(trigger *models.Trigger) error {
	cfg := trigger.Schedule
	id := trigger.ID

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.Frequency == models.FrequencyOnce {
		loc, err := location(cfg.Timezone)
		if err != nil {
			return err
		}

		at, err := nextOccurrence(m.now(), cfg.Time, loc)
		if err != nil {
			return err
		}

		var once sync.Once

		s := &schedule{}
		s.oneShot = m.after(at.Sub(m.now()), func() {
			once.Do(func() { m.fireOnce(id, s) })
		})
		m.schedules[id] = s

		m.logger.Info("Armed one-shot schedule", "trigger_id", id, "at", at)

		return nil
	}

	s := &schedule{}
	s.entry = m.cron.Schedule(cron.Every(cfg.Frequency.Interval()), cron.FuncJob(func() {
		m.fireScheduled(context.Background(), id, s, map[string]any{"frequency": string(cfg.Frequency)})
	}))
	m.schedules[id] = s
	m.cron.Start()

	m.logger.Info("Armed recurring schedule", "trigger_id", id, "interval", cfg.Frequency.Interval())

	return nil
}

// fireOnce runs at most once per arming and then drops the timer record.
func (m *Manager) fireOnce(id string, s *schedule) {
	m.fireScheduled(context.Background(), id, s, map[string]any{"frequency": string(models.FrequencyOnce)})

	m.mu.Lock()
	if m.schedules[id] == s {
		delete(m.schedules, id)
	}
	m.mu.Unlock()
}

// fireScheduled fires only while s is still the armed schedule of the
// trigger, so callbacks racing a removal or cleanup are dropped.
func (m *Manager) fireScheduled(ctx context.Context, id string, s *schedule, extra map[string]any) {
	m.fireMu.RLock()
	defer m.fireMu.RUnlock()

	m.mu.Lock()
	current := m.schedules[id]
	m.mu.Unlock()

	if current != s {
		m.logger.DebugContext(ctx, "Dropping fire of cancelled schedule", "trigger_id", id)

		return
	}

	m.fireLocked(ctx, id, extra)
}

// disarm must be called with m.mu held.
func (m *Manager) disarm(id string) {
	s, ok := m.schedules[id]
	if !ok {
		return
	}

	if s.oneShot != nil {
		s.oneShot.Stop()
	} else {
		m.cron.Remove(s.entry)
	}

	delete(m.schedules, id)
}

func (m *Manager) EnableTrigger(ctx context.Context, id string) error {
	err := m.registry.SetEnabled(id, true)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Trigger enabled", "trigger_id", id)

	return nil
}

// DisableTrigger returns once no fire of the trigger can still be in progress.
func (m *Manager) DisableTrigger(ctx context.Context, id string) error {
	m.fireMu.Lock()
	defer m.fireMu.Unlock()

	err := m.registry.SetEnabled(id, false)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Trigger disabled", "trigger_id", id)

	return nil
}

// RemoveTrigger deletes the trigger and cancels its timer. It reports
// whether the trigger existed.
func (m *Manager) RemoveTrigger(ctx context.Context, id string) bool {
	m.fireMu.Lock()
	defer m.fireMu.Unlock()

	m.mu.Lock()
	m.disarm(id)
	m.mu.Unlock()

	removed := m.registry.Delete(id)
	if removed {
		m.logger.InfoContext(ctx, "Trigger removed", "trigger_id", id)
	}

	return removed
}

func (m *Manager) GetTrigger(id string) (*models.Trigger, error) {
	return m.registry.Get(id)
}

func (m *Manager) ListTriggers(kind models.TriggerKind) []*models.Trigger {
	return m.registry.List(kind)
}

// Armed reports whether a schedule trigger still has a pending timer.
func (m *Manager) Armed(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.schedules[id]

	return ok
}

// Cleanup cancels every outstanding timer. Registered triggers are kept.
func (m *Manager) Cleanup() {
	m.fireMu.Lock()
	m.mu.Lock()

	for id := range m.schedules {
		m.disarm(id)
	}

	m.mu.Unlock()
	m.fireMu.Unlock()

	<-m.cron.Stop().Done()

	m.logger.Info("Trigger timers cleaned up")
}

// FireTrigger fires an enabled trigger on demand.
func (m *Manager) FireTrigger(ctx context.Context, id string) (*models.Action, error) {
	_, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}

	action, fired := m.fire(ctx, id, map[string]any{"manual": true})
	if !fired {
		return nil, models.NewValidationError("fire trigger", fmt.Sprintf("trigger %s is disabled", id))
	}

	return action, nil
}

// FireEvent fires every enabled event trigger listening for eventType whose
// conditions hold over data.
func (m *Manager) FireEvent(ctx context.Context, eventType string, data map[string]any) ([]*models.Action, error) {
	var actions []*models.Action

	for _, trigger := range m.registry.List(models.TriggerKindEvent) {
		if !trigger.Enabled || trigger.Event.EventType != eventType {
			continue
		}

		ok, err := conditions.EvaluateAll(trigger.Event.Conditions, data)
		if err != nil {
			m.logger.ErrorContext(ctx, "Event trigger conditions failed", "trigger_id", trigger.ID, "error", err)

			continue
		}

		if !ok {
			continue
		}

		action, fired := m.fire(ctx, trigger.ID, map[string]any{"eventType": eventType, "event": data})
		if fired {
			actions = append(actions, action)
		}
	}

	return actions, nil
}

// EvaluateConditions fires every enabled condition trigger whose conditions
// hold over data.
func (m *Manager) EvaluateConditions(ctx context.Context, data map[string]any) ([]*models.Action, error) {
	var actions []*models.Action

	for _, trigger := range m.registry.List(models.TriggerKindCondition) {
		if !trigger.Enabled {
			continue
		}

		ok, err := conditions.EvaluateAll(trigger.Condition.Conditions, data)
		if err != nil {
			m.logger.ErrorContext(ctx, "Condition trigger failed", "trigger_id", trigger.ID, "error", err)

			continue
		}

		if !ok {
			continue
		}

		action, fired := m.fire(ctx, trigger.ID, map[string]any{"context": data})
		if fired {
			actions = append(actions, action)
		}
	}

	return actions, nil
}

// EventHandler adapts FireEvent to the event bus.
func (m *Manager) EventHandler() eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		received, ok := event.(*events.ExternalEventReceived)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		_, err := m.FireEvent(ctx, received.EventType, received.Data)

		return err
	}
}

// fire enqueues the action of a trigger that exists and is enabled at fire time.
func (m *Manager) fire(ctx context.Context, id string, extra map[string]any) (*models.Action, bool) {
	m.fireMu.RLock()
	defer m.fireMu.RUnlock()

	return m.fireLocked(ctx, id, extra)
}

// fireLocked must be called with fireMu held shared.
func (m *Manager) fireLocked(ctx context.Context, id string, extra map[string]any) (*models.Action, bool) {
	now := m.now().UTC()

	trigger, ok := m.registry.claim(id, now)
	if !ok {
		m.logger.DebugContext(ctx, "Skipping fire of missing or disabled trigger", "trigger_id", id)

		return nil, false
	}

	payload := map[string]any{
		"triggerId": trigger.ID,
		"timestamp": now.Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}

	action, err := m.enqueuer.Enqueue(ctx, trigger.Kind.ActionKind(), payload)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to enqueue trigger action", "trigger_id", id, "error", err)

		return nil, false
	}

	m.logger.InfoContext(ctx, "Trigger fired", "trigger_id", id, "kind", trigger.Kind, "action_id", action.ID)

	if m.observer != nil {
		m.observer.TriggerFired(ctx, trigger, action)
	}

	return action, true
}

func decode(config map[string]any, out any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, models.NewConfigurationError("add trigger", "unknown timezone %q", name)
	}

	return loc, nil
}

// nextOccurrence returns the next instant at hh:mm in loc strictly after now,
// rolling to the next day when today's time has passed.
func nextOccurrence(now time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, models.NewValidationError("add trigger", fmt.Sprintf("invalid time %q, expected HH:mm", hhmm))
	}

	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)

	if !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}

	return at, nil
}
