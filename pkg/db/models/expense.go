package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is an immutable spend record against a team budget.
type Expense struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TeamID                uuid.UUID       `gorm:"column:team_id;type:uuid;not null;index"`
	UserID                uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Description           string          `gorm:"column:description;not null"`
	Amount                decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Category              string          `gorm:"column:category;not null"`
	AttachmentPath        *string         `gorm:"column:attachment_path"`
	AttachmentName        *string         `gorm:"column:attachment_name"`
	AttachmentContentType *string         `gorm:"column:attachment_content_type"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *Expense) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// HasAttachment reports whether a stored file is linked to the expense.
func (e Expense) HasAttachment() bool {
	return e.AttachmentPath != nil && *e.AttachmentPath != ""
}
