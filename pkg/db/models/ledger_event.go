package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/enums"
)

// LedgerEvent records an immutable balance movement on a team together with
// the balances observed right after it was applied.
type LedgerEvent struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TeamID          uuid.UUID             `gorm:"column:team_id;type:uuid;not null;index"`
	ActorUserID     *uuid.UUID            `gorm:"column:actor_user_id;type:uuid"`
	Type            enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(10,2);not null"`
	ExpenseID       *uuid.UUID            `gorm:"column:expense_id;type:uuid"`
	AmountRequestID *uuid.UUID            `gorm:"column:amount_request_id;type:uuid"`
	InitialAfter    decimal.Decimal       `gorm:"column:initial_after;type:numeric(10,2);not null"`
	UsedAfter       decimal.Decimal       `gorm:"column:used_after;type:numeric(10,2);not null"`
	RemainingAfter  decimal.Decimal       `gorm:"column:remaining_after;type:numeric(10,2);not null"`
	Note            string                `gorm:"column:note;not null;default:''"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
