package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/customer"
)

// CustomerModel is the database DTO with Gorm tags.
type CustomerModel struct {
	ID               int64  `gorm:"primaryKey"`
	DwollaCustomerID string `gorm:"type:varchar(255);uniqueIndex"`
	Status           string `gorm:"type:varchar(20);index"`
	WebhookHistory   []byte `gorm:"type:jsonb"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (CustomerModel) TableName() string {
	return "customers"
}

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) FindByDwollaID(ctx context.Context, dwollaCustomerID string) (*customer.Customer, error) {
	var model CustomerModel
	if err := r.db.WithContext(ctx).Where("dwolla_customer_id = ?", dwollaCustomerID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toCustomerDomain(model)
}

func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	model, err := toCustomerModel(c)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return err
	}
	c.ID = model.ID
	return nil
}

// Mappers

func toCustomerDomain(m CustomerModel) (*customer.Customer, error) {
	var history []customer.EventEnvelope
	if len(m.WebhookHistory) > 0 {
		if err := json.Unmarshal(m.WebhookHistory, &history); err != nil {
			return nil, err
		}
	}
	return &customer.Customer{
		ID:               m.ID,
		DwollaCustomerID: m.DwollaCustomerID,
		Status:           customer.VerificationStatus(m.Status),
		WebhookHistory:   history,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toCustomerModel(c *customer.Customer) (CustomerModel, error) {
	history, err := json.Marshal(c.WebhookHistory)
	if err != nil {
		return CustomerModel{}, err
	}
	return CustomerModel{
		ID:               c.ID,
		DwollaCustomerID: c.DwollaCustomerID,
		Status:           string(c.Status),
		WebhookHistory:   history,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}
