package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
)

// TransferModel is the database DTO with Gorm tags.
type TransferModel struct {
	ID               int64  `gorm:"primaryKey"`
	DwollaTransferID string `gorm:"type:varchar(255);uniqueIndex"`
	DwollaCustomerID string `gorm:"type:varchar(255);index"`
	Amount           string `gorm:"type:varchar(32)"`
	Currency         string `gorm:"type:varchar(3)"`
	Status           string `gorm:"type:varchar(20);index"`
	ReturnCode       string `gorm:"type:varchar(10)"`
	FailureReason    string `gorm:"type:text"`
	ClearedAt        *time.Time
	ProcessedAt      *time.Time
	WebhookHistory   []byte    `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

func (TransferModel) TableName() string {
	return "transfers"
}

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) FindByDwollaID(ctx context.Context, dwollaTransferID string) (*transfer.Transfer, error) {
	var model TransferModel
	if err := r.db.WithContext(ctx).Where("dwolla_transfer_id = ?", dwollaTransferID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toTransferDomain(model)
}

func (r *TransferRepository) Save(ctx context.Context, t *transfer.Transfer) error {
	model, err := toTransferModel(t)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return err
	}
	t.ID = model.ID
	return nil
}

func (r *TransferRepository) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]*transfer.Transfer, error) {
	var models []TransferModel
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]*transfer.Transfer, 0, len(models))
	for _, model := range models {
		item, err := toTransferDomain(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Mappers

func toTransferDomain(m TransferModel) (*transfer.Transfer, error) {
	var history []transfer.EventEnvelope
	if len(m.WebhookHistory) > 0 {
		if err := json.Unmarshal(m.WebhookHistory, &history); err != nil {
			return nil, err
		}
	}
	return &transfer.Transfer{
		ID:               m.ID,
		DwollaTransferID: m.DwollaTransferID,
		DwollaCustomerID: m.DwollaCustomerID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Status:           transfer.Status(m.Status),
		ReturnCode:       m.ReturnCode,
		FailureReason:    m.FailureReason,
		ClearedAt:        m.ClearedAt,
		ProcessedAt:      m.ProcessedAt,
		WebhookHistory:   history,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toTransferModel(t *transfer.Transfer) (TransferModel, error) {
	history, err := json.Marshal(t.WebhookHistory)
	if err != nil {
		return TransferModel{}, err
	}
	return TransferModel{
		ID:               t.ID,
		DwollaTransferID: t.DwollaTransferID,
		DwollaCustomerID: t.DwollaCustomerID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		Status:           string(t.Status),
		ReturnCode:       t.ReturnCode,
		FailureReason:    t.FailureReason,
		ClearedAt:        t.ClearedAt,
		ProcessedAt:      t.ProcessedAt,
		WebhookHistory:   history,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}, nil
}
