package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
)

// ReconciliationRunModel is the database DTO with Gorm tags.
type ReconciliationRunModel struct {
	ID                    string `gorm:"primaryKey;type:varchar(26)"`
	ResourceType          string `gorm:"type:varchar(50)"`
	WindowStart           time.Time
	WindowEnd             time.Time
	Status                string `gorm:"type:varchar(20);index"`
	StartedAt             time.Time
	EndedAt               *time.Time
	TotalChecks           int
	DiscrepanciesFound    int
	DiscrepanciesResolved int
	LastError             string    `gorm:"type:text"`
	CreatedAt             time.Time `gorm:"index"`
	UpdatedAt             time.Time
}

func (ReconciliationRunModel) TableName() string {
	return "reconciliation_runs"
}

// DiscrepancyModel holds detected mismatches. A partial unique index in
// the migration enforces at most one open row per (resource, check).
type DiscrepancyModel struct {
	ID             int64  `gorm:"primaryKey"`
	RunID          string `gorm:"type:varchar(26);index"`
	ResourceType   string `gorm:"type:varchar(50)"`
	ResourceID     string `gorm:"type:varchar(255);index"`
	CheckName      string `gorm:"type:varchar(50)"`
	Severity       string `gorm:"type:varchar(10)"`
	Details        string `gorm:"type:text"`
	Resolved       bool   `gorm:"index"`
	ResolutionType string `gorm:"type:varchar(50)"`
	ResolutionNote string `gorm:"type:text"`
	DetectedAt     time.Time
	ResolvedAt     *time.Time
}

func (DiscrepancyModel) TableName() string {
	return "reconciliation_discrepancies"
}

type ReconciliationRepository struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func (r *ReconciliationRepository) CreateRun(ctx context.Context, run *reconciliation.Run) error {
	model := toRunModel(run)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ReconciliationRepository) SaveRun(ctx context.Context, run *reconciliation.Run) error {
	model := toRunModel(run)
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *ReconciliationRepository) FindRun(ctx context.Context, id string) (*reconciliation.Run, error) {
	var model ReconciliationRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reconciliation.ErrRunNotFound
		}
		return nil, err
	}
	return toRunDomain(model), nil
}

func (r *ReconciliationRepository) ListRunsSince(ctx context.Context, since time.Time, limit int) ([]*reconciliation.Run, error) {
	query := r.db.WithContext(ctx).
		Where("started_at >= ?", since).
		Order("started_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []ReconciliationRunModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*reconciliation.Run, 0, len(models))
	for _, model := range models {
		items = append(items, toRunDomain(model))
	}
	return items, nil
}

func (r *ReconciliationRepository) FindOpenDiscrepancy(ctx context.Context, resourceType, resourceID, checkName string) (*reconciliation.Discrepancy, error) {
	var model DiscrepancyModel
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND check_name = ? AND resolved = false",
			resourceType, resourceID, checkName).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDiscrepancyDomain(model), nil
}

func (r *ReconciliationRepository) SaveDiscrepancy(ctx context.Context, d *reconciliation.Discrepancy) error {
	model := toDiscrepancyModel(d)
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *ReconciliationRepository) FindDiscrepancy(ctx context.Context, id int64) (*reconciliation.Discrepancy, error) {
	var model DiscrepancyModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reconciliation.ErrDiscrepancyNotFound
		}
		return nil, err
	}
	return toDiscrepancyDomain(model), nil
}

func (r *ReconciliationRepository) ListByRun(ctx context.Context, runID string) ([]*reconciliation.Discrepancy, error) {
	var models []DiscrepancyModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("detected_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]*reconciliation.Discrepancy, 0, len(models))
	for _, model := range models {
		items = append(items, toDiscrepancyDomain(model))
	}
	return items, nil
}

// Mappers

func toRunDomain(m ReconciliationRunModel) *reconciliation.Run {
	return &reconciliation.Run{
		ID:                    m.ID,
		ResourceType:          m.ResourceType,
		WindowStart:           m.WindowStart,
		WindowEnd:             m.WindowEnd,
		Status:                reconciliation.RunStatus(m.Status),
		StartedAt:             m.StartedAt,
		EndedAt:               m.EndedAt,
		TotalChecks:           m.TotalChecks,
		DiscrepanciesFound:    m.DiscrepanciesFound,
		DiscrepanciesResolved: m.DiscrepanciesResolved,
		LastError:             m.LastError,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func toRunModel(run *reconciliation.Run) ReconciliationRunModel {
	return ReconciliationRunModel{
		ID:                    run.ID,
		ResourceType:          run.ResourceType,
		WindowStart:           run.WindowStart,
		WindowEnd:             run.WindowEnd,
		Status:                string(run.Status),
		StartedAt:             run.StartedAt,
		EndedAt:               run.EndedAt,
		TotalChecks:           run.TotalChecks,
		DiscrepanciesFound:    run.DiscrepanciesFound,
		DiscrepanciesResolved: run.DiscrepanciesResolved,
		LastError:             run.LastError,
		CreatedAt:             run.CreatedAt,
		UpdatedAt:             run.UpdatedAt,
	}
}

func toDiscrepancyDomain(m DiscrepancyModel) *reconciliation.Discrepancy {
	return &reconciliation.Discrepancy{
		ID:             m.ID,
		RunID:          m.RunID,
		ResourceType:   m.ResourceType,
		ResourceID:     m.ResourceID,
		CheckName:      m.CheckName,
		Severity:       reconciliation.Severity(m.Severity),
		Details:        m.Details,
		Resolved:       m.Resolved,
		ResolutionType: m.ResolutionType,
		ResolutionNote: m.ResolutionNote,
		DetectedAt:     m.DetectedAt,
		ResolvedAt:     m.ResolvedAt,
	}
}

func toDiscrepancyModel(d *reconciliation.Discrepancy) DiscrepancyModel {
	return DiscrepancyModel{
		ID:             d.ID,
		RunID:          d.RunID,
		ResourceType:   d.ResourceType,
		ResourceID:     d.ResourceID,
		CheckName:      d.CheckName,
		Severity:       string(d.Severity),
		Details:        d.Details,
		Resolved:       d.Resolved,
		ResolutionType: d.ResolutionType,
		ResolutionNote: d.ResolutionNote,
		DetectedAt:     d.DetectedAt,
		ResolvedAt:     d.ResolvedAt,
	}
}
