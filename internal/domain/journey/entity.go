package journey

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a journey instance.
//
// State machine:
//
//	[active] ---(terminal step)---> [completed|failed|abandoned]
//	[active] ---(idle past threshold)---> [stuck]
//	[stuck]  ---(fresh matching event)---> [active]
//
// Terminal states never re-open.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
	StatusStuck     Status = "stuck"
)

var ErrNotFound = errors.New("journey instance not found")

// Terminal reports whether the status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAbandoned
}

// Definition is the static configuration of a multi-step process.
// Definitions are seed data; the pipeline never mutates them.
type Definition struct {
	Name         string
	ResourceType string
	// Steps are the ordered progress steps, keyed by event topic.
	Steps []string
	// Terminal maps event topics to the final status they impose.
	Terminal map[string]Status
	Active   bool
}

// HasStep reports whether the topic is one of the ordered progress steps.
func (d Definition) HasStep(topic string) bool {
	for _, s := range d.Steps {
		if s == topic {
			return true
		}
	}
	return false
}

// Matches reports whether an event topic is relevant to this definition,
// either as a progress step or a terminal trigger.
func (d Definition) Matches(topic string) bool {
	if d.HasStep(topic) {
		return true
	}
	_, ok := d.Terminal[topic]
	return ok
}

// Instance tracks one resource moving through a definition.
type Instance struct {
	ID              int64      `json:"id,string"`
	DefinitionName  string     `json:"definition_name"`
	ResourceType    string     `json:"resource_type"`
	ResourceID      string     `json:"resource_id"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	LastEventAt     time.Time  `json:"last_event_at"`
	CompletedSteps  []string   `json:"completed_steps"`
	ProgressPercent float64    `json:"progress_percent"`
	TotalDurationMS int64      `json:"total_duration_ms"`
	RiskScore       int        `json:"risk_score"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewInstance creates an active instance for a (definition, resource) pair.
func NewInstance(def Definition, resourceID string, at time.Time) *Instance {
	now := time.Now().UTC()
	return &Instance{
		DefinitionName: def.Name,
		ResourceType:   def.ResourceType,
		ResourceID:     resourceID,
		Status:         StatusActive,
		StartedAt:      at,
		LastEventAt:    at,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasCompleted reports whether the step was already recorded.
func (i *Instance) HasCompleted(step string) bool {
	for _, s := range i.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// RecordStep appends a progress step and recomputes progress against
// the definition. Idempotent per step name.
func (i *Instance) RecordStep(def Definition, step string, at time.Time) bool {
	if i.HasCompleted(step) {
		return false
	}
	i.CompletedSteps = append(i.CompletedSteps, step)
	if len(def.Steps) > 0 {
		i.ProgressPercent = float64(len(i.CompletedSteps)) / float64(len(def.Steps)) * 100
	}
	i.LastEventAt = at
	i.UpdatedAt = time.Now().UTC()
	return true
}

// Finish moves the instance into a terminal status.
func (i *Instance) Finish(status Status, at time.Time) {
	if i.Status.Terminal() {
		return
	}
	i.Status = status
	i.EndedAt = &at
	i.TotalDurationMS = at.Sub(i.StartedAt).Milliseconds()
	if status == StatusFailed || status == StatusAbandoned {
		i.RiskScore += 50
	}
	i.UpdatedAt = time.Now().UTC()
}

// MarkStuck flags an idle active instance. Step history is untouched.
func (i *Instance) MarkStuck() {
	if i.Status != StatusActive {
		return
	}
	i.Status = StatusStuck
	i.RiskScore += 25
	i.UpdatedAt = time.Now().UTC()
}

// Revive returns a stuck instance to active on a fresh matching event.
func (i *Instance) Revive() {
	if i.Status != StatusStuck {
		return
	}
	i.Status = StatusActive
	i.UpdatedAt = time.Now().UTC()
}
