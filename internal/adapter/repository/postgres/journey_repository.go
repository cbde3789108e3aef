package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
)

// JourneyInstanceModel is the database DTO with Gorm tags. The composite
// unique index enforces one instance per (definition, resource) pair.
type JourneyInstanceModel struct {
	ID              int64  `gorm:"primaryKey"`
	DefinitionName  string `gorm:"type:varchar(255);uniqueIndex:idx_journey_identity"`
	ResourceType    string `gorm:"type:varchar(50);uniqueIndex:idx_journey_identity"`
	ResourceID      string `gorm:"type:varchar(255);uniqueIndex:idx_journey_identity"`
	Status          string `gorm:"type:varchar(20);index"`
	StartedAt       time.Time
	EndedAt         *time.Time
	LastEventAt     time.Time `gorm:"index"`
	CompletedSteps  []byte    `gorm:"type:jsonb"`
	ProgressPercent float64
	TotalDurationMS int64
	RiskScore       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (JourneyInstanceModel) TableName() string {
	return "journey_instances"
}

// JourneyStepModel is the append-only step audit row.
type JourneyStepModel struct {
	ID         int64  `gorm:"primaryKey"`
	InstanceID int64  `gorm:"index"`
	Sequence   int    `gorm:"type:int"`
	Name       string `gorm:"type:varchar(255)"`
	EventID    string `gorm:"type:varchar(255)"`
	OccurredAt time.Time
}

func (JourneyStepModel) TableName() string {
	return "journey_steps"
}

type JourneyRepository struct {
	db *gorm.DB
}

func NewJourneyRepository(db *gorm.DB) *JourneyRepository {
	return &JourneyRepository{db: db}
}

// FindOrCreate inserts the candidate with conflict-do-nothing on the
// identity index, then reads back whichever row won. Concurrent events
// for the same resource converge on a single instance.
func (r *JourneyRepository) FindOrCreate(ctx context.Context, inst *journey.Instance) (*journey.Instance, bool, error) {
	model, err := toJourneyModel(inst)
	if err != nil {
		return nil, false, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "definition_name"}, {Name: "resource_type"}, {Name: "resource_id"},
			},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0

	var persisted JourneyInstanceModel
	err = r.db.WithContext(ctx).
		Where("definition_name = ? AND resource_type = ? AND resource_id = ?",
			inst.DefinitionName, inst.ResourceType, inst.ResourceID).
		First(&persisted).Error
	if err != nil {
		return nil, false, err
	}

	out, err := toJourneyDomain(persisted)
	return out, created, err
}

func (r *JourneyRepository) Save(ctx context.Context, inst *journey.Instance) error {
	model, err := toJourneyModel(inst)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *JourneyRepository) FindByID(ctx context.Context, id int64) (*journey.Instance, error) {
	var model JourneyInstanceModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, journey.ErrNotFound
		}
		return nil, err
	}
	return toJourneyDomain(model)
}

func (r *JourneyRepository) AppendStep(ctx context.Context, step *journey.Step) error {
	model := JourneyStepModel{
		ID:         step.ID,
		InstanceID: step.InstanceID,
		Sequence:   step.Sequence,
		Name:       step.Name,
		EventID:    step.EventID,
		OccurredAt: step.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *JourneyRepository) ListSteps(ctx context.Context, instanceID int64) ([]*journey.Step, error) {
	var models []JourneyStepModel
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("sequence asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]*journey.Step, 0, len(models))
	for _, model := range models {
		items = append(items, &journey.Step{
			ID:         model.ID,
			InstanceID: model.InstanceID,
			Sequence:   model.Sequence,
			Name:       model.Name,
			EventID:    model.EventID,
			OccurredAt: model.OccurredAt,
		})
	}
	return items, nil
}

func (r *JourneyRepository) ListStuckCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*journey.Instance, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND last_event_at < ?", string(journey.StatusActive), cutoff).
		Order("last_event_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []JourneyInstanceModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return toJourneyDomainList(models)
}

func (r *JourneyRepository) ListByStatus(ctx context.Context, statuses []journey.Status, limit int) ([]*journey.Instance, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	query := r.db.WithContext(ctx).Where("status IN ?", values).Order("updated_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []JourneyInstanceModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return toJourneyDomainList(models)
}

// Mappers

func toJourneyDomainList(models []JourneyInstanceModel) ([]*journey.Instance, error) {
	items := make([]*journey.Instance, 0, len(models))
	for _, model := range models {
		item, err := toJourneyDomain(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func toJourneyDomain(m JourneyInstanceModel) (*journey.Instance, error) {
	var steps []string
	if len(m.CompletedSteps) > 0 {
		if err := json.Unmarshal(m.CompletedSteps, &steps); err != nil {
			return nil, err
		}
	}
	return &journey.Instance{
		ID:              m.ID,
		DefinitionName:  m.DefinitionName,
		ResourceType:    m.ResourceType,
		ResourceID:      m.ResourceID,
		Status:          journey.Status(m.Status),
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		LastEventAt:     m.LastEventAt,
		CompletedSteps:  steps,
		ProgressPercent: m.ProgressPercent,
		TotalDurationMS: m.TotalDurationMS,
		RiskScore:       m.RiskScore,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func toJourneyModel(i *journey.Instance) (JourneyInstanceModel, error) {
	steps, err := json.Marshal(i.CompletedSteps)
	if err != nil {
		return JourneyInstanceModel{}, err
	}
	return JourneyInstanceModel{
		ID:              i.ID,
		DefinitionName:  i.DefinitionName,
		ResourceType:    i.ResourceType,
		ResourceID:      i.ResourceID,
		Status:          string(i.Status),
		StartedAt:       i.StartedAt,
		EndedAt:         i.EndedAt,
		LastEventAt:     i.LastEventAt,
		CompletedSteps:  steps,
		ProgressPercent: i.ProgressPercent,
		TotalDurationMS: i.TotalDurationMS,
		RiskScore:       i.RiskScore,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}, nil
}
