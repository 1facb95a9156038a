package teams

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/types"
)

// CreateInput is the body of POST /teams.
type CreateInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Location      string          `json:"location" validate:"max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	InitialAmount decimal.Decimal `json:"initial_amount" validate:"money_nonneg"`
}

// UpdateInput is the body of PUT /teams/{teamId}. Absent fields are left alone.
type UpdateInput struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Location      *string          `json:"location" validate:"omitempty,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=2000"`
	InitialAmount *decimal.Decimal `json:"initial_amount" validate:"omitempty,money_nonneg"`
}

type ListParams struct {
	Search string
	pagination.Params
}

// TeamDTO is the API shape of a team.
type TeamDTO struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Location        string     `json:"location"`
	Description     string     `json:"description"`
	InitialAmount   string     `json:"initial_amount"`
	UsedAmount      string     `json:"used_amount"`
	RemainingAmount string     `json:"remaining_amount"`
	CreatedBy       *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func FromModel(team models.Team) TeamDTO {
	return TeamDTO{
		ID:              team.ID,
		Name:            team.Name,
		Location:        team.Location,
		Description:     team.Description,
		InitialAmount:   types.FormatMoney(team.InitialAmount),
		UsedAmount:      types.FormatMoney(team.UsedAmount),
		RemainingAmount: types.FormatMoney(team.RemainingAmount),
		CreatedBy:       team.CreatedBy,
		CreatedAt:       team.CreatedAt,
		UpdatedAt:       team.UpdatedAt,
	}
}
