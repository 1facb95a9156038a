package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/enums"
)

// AmountRequest asks for additional funds to be credited to a team.
type AmountRequest struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TeamID          uuid.UUID           `gorm:"column:team_id;type:uuid;not null;index"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	RequestedAmount decimal.Decimal     `gorm:"column:requested_amount;type:numeric(10,2);not null"`
	Reason          string              `gorm:"column:reason;not null"`
	Status          enums.RequestStatus `gorm:"column:status;type:amount_request_status_enum;not null"`
	ProcessedAt     *time.Time          `gorm:"column:processed_at"`
	ProcessedBy     *uuid.UUID          `gorm:"column:processed_by;type:uuid"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (r *AmountRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = enums.RequestStatusPending
	}
	return nil
}
