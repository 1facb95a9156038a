package expenses

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldworkbook/backend/internal/attachments"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/types"
)

const (
	maxDescriptionLength = 1000
	maxCategoryLength    = 100
)

var maxAmount = decimal.RequireFromString("99999999.99")

// CreateInput carries the multipart fields of POST /expenses.
type CreateInput struct {
	TeamID      *uuid.UUID
	Description string
	Amount      decimal.Decimal
	Category    string
	Attachment  *attachments.Upload
}

// ListParams filters GET /expenses.
type ListParams struct {
	TeamID   *uuid.UUID
	UserID   *uuid.UUID
	Category string
	pagination.Params
}

// ExpenseDTO is the API shape of an expense.
type ExpenseDTO struct {
	ID             uuid.UUID `json:"id"`
	TeamID         uuid.UUID `json:"team_id"`
	TeamName       string    `json:"team_name,omitempty"`
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username,omitempty"`
	FullName       string    `json:"full_name,omitempty"`
	Description    string    `json:"description"`
	Amount         string    `json:"amount"`
	Category       string    `json:"category"`
	HasAttachment  bool      `json:"has_attachment"`
	AttachmentName *string   `json:"attachment_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateResult is the created expense plus the team balances after the debit.
type CreateResult struct {
	Expense  ExpenseDTO  `json:"expense"`
	Balances BalancesDTO `json:"balances"`
}

type BalancesDTO struct {
	InitialAmount   string `json:"initial_amount"`
	UsedAmount      string `json:"used_amount"`
	RemainingAmount string `json:"remaining_amount"`
}

// Attachment is an open receipt stream. The caller closes Body.
type Attachment struct {
	Body        io.ReadCloser
	Name        string
	ContentType string
}

func FromRow(row Row) ExpenseDTO {
	return ExpenseDTO{
		ID:             row.ID,
		TeamID:         row.TeamID,
		TeamName:       row.TeamName,
		UserID:         row.UserID,
		Username:       row.Username,
		FullName:       row.FullName,
		Description:    row.Description,
		Amount:         types.FormatMoney(row.Amount),
		Category:       row.Category,
		HasAttachment:  row.HasAttachment(),
		AttachmentName: row.AttachmentName,
		CreatedAt:      row.CreatedAt,
	}
}
