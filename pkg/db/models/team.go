package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Team is a budget-holding unit. RemainingAmount always equals
// InitialAmount - UsedAmount; only the ledger writes the three amounts.
type Team struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name            string          `gorm:"column:name;not null"`
	Location        string          `gorm:"column:location;not null;default:''"`
	Description     string          `gorm:"column:description;not null;default:''"`
	InitialAmount   decimal.Decimal `gorm:"column:initial_amount;type:numeric(10,2);not null"`
	UsedAmount      decimal.Decimal `gorm:"column:used_amount;type:numeric(10,2);not null"`
	RemainingAmount decimal.Decimal `gorm:"column:remaining_amount;type:numeric(10,2);not null"`
	CreatedBy       *uuid.UUID      `gorm:"column:created_by;type:uuid;index"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Team) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
