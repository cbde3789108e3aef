package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
)

// EventModel is the database DTO with Gorm tags.
type EventModel struct {
	ID                   int64  `gorm:"primaryKey"`
	DwollaEventID        string `gorm:"type:varchar(255);uniqueIndex"`
	Topic                string `gorm:"type:varchar(255);index"`
	ResourceType         string `gorm:"type:varchar(50)"`
	ResourceID           string `gorm:"type:varchar(255);index"`
	Payload              []byte `gorm:"type:jsonb"`
	State                string `gorm:"type:varchar(20);index"`
	Attempts             int
	LastError            string `gorm:"type:text"`
	ProcessingDurationMS int64
	CorrelationID        string `gorm:"type:varchar(64)"`
	ReceivedAt           time.Time
	NextAttemptAt        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (EventModel) TableName() string {
	return "webhook_events"
}

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert is the idempotency point: a conflicting provider event ID means
// the row already exists and the delivery is a duplicate. The insert and
// the duplicate check are one atomic statement.
func (r *EventRepository) Insert(ctx context.Context, evt *event.Event) error {
	model := toEventModel(evt)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dwolla_event_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return event.ErrDuplicate
	}
	evt.ID = model.ID
	return nil
}

func (r *EventRepository) FindByDwollaID(ctx context.Context, dwollaEventID string) (*event.Event, error) {
	var model EventModel
	if err := r.db.WithContext(ctx).Where("dwolla_event_id = ?", dwollaEventID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	return toEventDomain(model), nil
}

func (r *EventRepository) FindByID(ctx context.Context, id int64) (*event.Event, error) {
	var model EventModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	return toEventDomain(model), nil
}

func (r *EventRepository) MarkProcessing(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&EventModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":      string(event.StateProcessing),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *EventRepository) MarkCompleted(ctx context.Context, id int64, duration time.Duration) error {
	return r.db.WithContext(ctx).Model(&EventModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":                  string(event.StateCompleted),
			"processing_duration_ms": duration.Milliseconds(),
			"last_error":             "",
			"next_attempt_at":        nil,
			"updated_at":             time.Now().UTC(),
		}).Error
}

func (r *EventRepository) MarkFailed(ctx context.Context, id int64, attempts int, lastError string, nextAttempt time.Time) error {
	return r.db.WithContext(ctx).Model(&EventModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":           string(event.StateFailed),
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": nextAttempt,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *EventRepository) MarkQuarantined(ctx context.Context, id int64, attempts int, lastError string) error {
	return r.db.WithContext(ctx).Model(&EventModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":           string(event.StateQuarantined),
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": nil,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// ClaimRetryBatch moves due retryable events to processing in one
// statement. SKIP LOCKED keeps concurrent loops from claiming the same
// rows. Besides due queued/failed rows it recovers events stranded in
// received (inline dispatch died before claiming them) and stale
// processing rows (a worker crashed mid-claim) once their grace window
// passes.
func (r *EventRepository) ClaimRetryBatch(ctx context.Context, limit, maxAttempts int) ([]*event.Event, error) {
	var models []EventModel
	err := r.db.WithContext(ctx).Raw(`
		UPDATE webhook_events
		SET state = ?, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE attempts < ?
			  AND (
			        (state IN (?, ?) AND (next_attempt_at IS NULL OR next_attempt_at <= NOW()))
			     OR (state = ? AND received_at <= NOW() - make_interval(secs => ?))
			     OR (state = ? AND updated_at <= NOW() - make_interval(secs => ?))
			  )
			ORDER BY received_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		string(event.StateProcessing),
		maxAttempts,
		string(event.StateQueued), string(event.StateFailed),
		string(event.StateReceived), event.ReceivedGracePeriod.Seconds(),
		string(event.StateProcessing), event.ProcessingStaleAfter.Seconds(),
		limit,
	).Scan(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]*event.Event, 0, len(models))
	for _, model := range models {
		items = append(items, toEventDomain(model))
	}
	return items, nil
}

func (r *EventRepository) CountByState(ctx context.Context) (map[event.State]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&EventModel{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[event.State]int64, len(rows))
	for _, row := range rows {
		counts[event.State(row.State)] = row.Count
	}
	return counts, nil
}

func (r *EventRepository) List(ctx context.Context, state event.State, limit int) ([]*event.Event, error) {
	query := r.db.WithContext(ctx).Order("received_at desc")
	if state != "" {
		query = query.Where("state = ?", string(state))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []EventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*event.Event, 0, len(models))
	for _, model := range models {
		items = append(items, toEventDomain(model))
	}
	return items, nil
}

// Mappers

func toEventDomain(m EventModel) *event.Event {
	return &event.Event{
		ID:                   m.ID,
		DwollaEventID:        m.DwollaEventID,
		Topic:                m.Topic,
		ResourceType:         m.ResourceType,
		ResourceID:           m.ResourceID,
		Payload:              m.Payload,
		State:                event.State(m.State),
		Attempts:             m.Attempts,
		LastError:            m.LastError,
		ProcessingDurationMS: m.ProcessingDurationMS,
		CorrelationID:        m.CorrelationID,
		ReceivedAt:           m.ReceivedAt,
		NextAttemptAt:        m.NextAttemptAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func toEventModel(e *event.Event) EventModel {
	return EventModel{
		ID:                   e.ID,
		DwollaEventID:        e.DwollaEventID,
		Topic:                e.Topic,
		ResourceType:         e.ResourceType,
		ResourceID:           e.ResourceID,
		Payload:              e.Payload,
		State:                string(e.State),
		Attempts:             e.Attempts,
		LastError:            e.LastError,
		ProcessingDurationMS: e.ProcessingDurationMS,
		CorrelationID:        e.CorrelationID,
		ReceivedAt:           e.ReceivedAt,
		NextAttemptAt:        e.NextAttemptAt,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}
