package amountrequests

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/types"
)

const maxReasonLength = 1000

// SubmitInput is the body of POST /amount-requests.
type SubmitInput struct {
	TeamID          *uuid.UUID      `json:"team_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount" validate:"money"`
	Reason          string          `json:"reason" validate:"required,max=1000"`
}

// ListParams filters GET /amount-requests.
type ListParams struct {
	TeamID *uuid.UUID
	Status *enums.RequestStatus
	pagination.Params
}

// AmountRequestDTO is the API shape of an amount request.
type AmountRequestDTO struct {
	ID              uuid.UUID           `json:"id"`
	TeamID          uuid.UUID           `json:"team_id"`
	TeamName        string              `json:"team_name,omitempty"`
	UserID          uuid.UUID           `json:"user_id"`
	Username        string              `json:"username,omitempty"`
	FullName        string              `json:"full_name,omitempty"`
	RequestedAmount string              `json:"requested_amount"`
	Reason          string              `json:"reason"`
	Status          enums.RequestStatus `json:"status"`
	ProcessedAt     *time.Time          `json:"processed_at,omitempty"`
	ProcessedBy     *uuid.UUID          `json:"processed_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func FromRow(row Row) AmountRequestDTO {
	status := row.Status
	if status == "" {
		status = enums.RequestStatusPending
	}
	return AmountRequestDTO{
		ID:              row.ID,
		TeamID:          row.TeamID,
		TeamName:        row.TeamName,
		UserID:          row.UserID,
		Username:        row.Username,
		FullName:        row.FullName,
		RequestedAmount: types.FormatMoney(row.RequestedAmount),
		Reason:          row.Reason,
		Status:          status,
		ProcessedAt:     row.ProcessedAt,
		ProcessedBy:     row.ProcessedBy,
		CreatedAt:       row.CreatedAt,
	}
}
