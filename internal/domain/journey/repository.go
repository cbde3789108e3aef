package journey

import (
	"context"
	"time"
)

// Step is one append-only audit entry of an instance, ordered by sequence.
type Step struct {
	ID         int64     `json:"id,string"`
	InstanceID int64     `json:"instance_id,string"`
	Sequence   int       `json:"sequence"`
	Name       string    `json:"name"`
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Repository persists journey instances and their step history.
type Repository interface {
	// FindOrCreate atomically upserts the instance for its
	// (definition, resource) pair and returns the persisted row.
	// The boolean is true when a new instance was created. Concurrent
	// events for the same resource must not create two instances.
	FindOrCreate(ctx context.Context, inst *Instance) (*Instance, bool, error)

	Save(ctx context.Context, inst *Instance) error
	FindByID(ctx context.Context, id int64) (*Instance, error)

	AppendStep(ctx context.Context, step *Step) error
	ListSteps(ctx context.Context, instanceID int64) ([]*Step, error)

	// ListStuckCandidates returns active instances whose last event is
	// older than the cutoff.
	ListStuckCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*Instance, error)

	ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*Instance, error)
}
