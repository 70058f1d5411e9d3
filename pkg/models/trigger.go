package models

import "time"

// TriggerKind identifies the family of a trigger.
type TriggerKind string

const (
	TriggerKindSchedule  TriggerKind = "schedule"
	TriggerKindEvent     TriggerKind = "event"
	TriggerKindCondition TriggerKind = "condition"
)

// ActionKind returns the kind of action enqueued when a trigger of this kind fires.
func (k TriggerKind) ActionKind() ActionKind {
	switch k {
	case TriggerKindSchedule:
		return ActionKindTask
	case TriggerKindEvent:
		return ActionKindNotification
	default:
		return ActionKindAnalysis
	}
}

// Frequency is how often a schedule trigger fires.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Interval returns the fire interval of a recurring frequency. It returns
// zero for FrequencyOnce and for unknown values.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

type ScheduleConfig struct {
	Frequency Frequency `json:"frequency"`
	Time      string    `json:"time,omitempty"` // HH:mm
	Timezone  string    `json:"timezone,omitempty"`
}

type EventConfig struct {
	EventType  string      `json:"eventType"`
	Conditions []Condition `json:"conditions,omitempty"`
}

type ConditionConfig struct {
	Conditions []Condition `json:"conditions"`
}

// Trigger is a standing rule that enqueues actions when it fires. Exactly one
// of Schedule, Event and Condition is set, matching Kind.
type Trigger struct {
	ID        string           `json:"id"`
	Kind      TriggerKind      `json:"kind"`
	Schedule  *ScheduleConfig  `json:"schedule,omitempty"`
	Event     *EventConfig     `json:"event,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
	Enabled   bool             `json:"enabled"`
	CreatedAt time.Time        `json:"created_at"`
	LastFired *time.Time       `json:"last_fired,omitempty"`
}

// Conditions returns the conditions guarding an event or condition trigger.
func (t *Trigger) Conditions() []Condition {
	switch {
	case t.Event != nil:
		return t.Event.Conditions
	case t.Condition != nil:
		return t.Condition.Conditions
	default:
		return nil
	}
}

func (t *Trigger) Clone() *Trigger {
	c := *t

	if t.Schedule != nil {
		s := *t.Schedule
		c.Schedule = &s
	}

	if t.Event != nil {
		e := *t.Event
		e.Conditions = append([]Condition(nil), t.Event.Conditions...)
		c.Event = &e
	}

	if t.Condition != nil {
		cc := *t.Condition
		cc.Conditions = append([]Condition(nil), t.Condition.Conditions...)
		c.Condition = &cc
	}

	if t.LastFired != nil {
		lf := *t.LastFired
		c.LastFired = &lf
	}

	return &c
}
