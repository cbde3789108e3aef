package event

import (
	"context"
	"time"
)

// The webhook handler acknowledges a delivery before dispatch finishes,
// so an event stranded outside the retry states would otherwise be lost:
// the provider never re-delivers. These windows make stranded rows
// claimable again. Received covers an inline dispatch that died before
// marking the event processing; processing covers a worker that claimed
// the event and crashed.
const (
	ReceivedGracePeriod  = time.Minute
	ProcessingStaleAfter = 10 * time.Minute
)

// Repository persists inbound events. The Insert contract is the
// correctness-critical idempotency point: it must be an atomic
// reject-on-duplicate insert keyed by the provider event ID.
type Repository interface {
	// Insert stores a new event. Returns ErrDuplicate when an event with
	// the same DwollaEventID already exists.
	Insert(ctx context.Context, evt *Event) error

	FindByDwollaID(ctx context.Context, dwollaEventID string) (*Event, error)
	FindByID(ctx context.Context, id int64) (*Event, error)

	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, duration time.Duration) error
	// MarkFailed records a failed attempt and schedules the next retry.
	MarkFailed(ctx context.Context, id int64, attempts int, lastError string, nextAttempt time.Time) error
	MarkQuarantined(ctx context.Context, id int64, attempts int, lastError string) error

	// ClaimRetryBatch atomically selects and locks events eligible for
	// dispatch, moving them to processing so concurrent loops skip them.
	// Eligible means below the attempt ceiling and one of: queued or
	// failed with the next attempt due, received but never dispatched
	// after ReceivedGracePeriod, or processing with no progress after
	// ProcessingStaleAfter.
	ClaimRetryBatch(ctx context.Context, limit, maxAttempts int) ([]*Event, error)

	CountByState(ctx context.Context) (map[State]int64, error)
	List(ctx context.Context, state State, limit int) ([]*Event, error)
}
