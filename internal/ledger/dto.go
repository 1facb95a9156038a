package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/types"
)

type DebitInput struct {
	TeamID    uuid.UUID
	Amount    decimal.Decimal
	ActorID   uuid.UUID
	ExpenseID *uuid.UUID
}

type CreditInput struct {
	TeamID          uuid.UUID
	Amount          decimal.Decimal
	ActorID         uuid.UUID
	AmountRequestID *uuid.UUID
}

type AdjustInput struct {
	TeamID        uuid.UUID
	InitialAmount decimal.Decimal
	ActorID       uuid.UUID
}

// Balances is a team's budget right after a ledger operation.
type Balances struct {
	TeamID          uuid.UUID
	InitialAmount   decimal.Decimal
	UsedAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
}

func balancesOf(team *models.Team) *Balances {
	return &Balances{
		TeamID:          team.ID,
		InitialAmount:   team.InitialAmount,
		UsedAmount:      team.UsedAmount,
		RemainingAmount: team.RemainingAmount,
	}
}

// Stats is the dashboard fold over teams and pending requests.
type Stats struct {
	TeamCount           int64
	TotalInitial        decimal.Decimal
	TotalUsed           decimal.Decimal
	TotalRemaining      decimal.Decimal
	PendingRequestCount int64
}

// TeamDrift is a team whose stored balances disagree with its expenses or
// with the balance identity.
type TeamDrift struct {
	TeamID          uuid.UUID       `gorm:"column:team_id"`
	Name            string          `gorm:"column:name"`
	InitialAmount   decimal.Decimal `gorm:"column:initial_amount"`
	UsedAmount      decimal.Decimal `gorm:"column:used_amount"`
	RemainingAmount decimal.Decimal `gorm:"column:remaining_amount"`
	ExpenseTotal    decimal.Decimal `gorm:"column:expense_total"`
}

type StatsDTO struct {
	TeamCount           int64  `json:"team_count"`
	TotalInitial        string `json:"total_initial"`
	TotalUsed           string `json:"total_used"`
	TotalRemaining      string `json:"total_remaining"`
	PendingRequestCount int64  `json:"pending_request_count"`
}

func (s Stats) DTO() StatsDTO {
	return StatsDTO{
		TeamCount:           s.TeamCount,
		TotalInitial:        types.FormatMoney(s.TotalInitial),
		TotalUsed:           types.FormatMoney(s.TotalUsed),
		TotalRemaining:      types.FormatMoney(s.TotalRemaining),
		PendingRequestCount: s.PendingRequestCount,
	}
}

type BalancesDTO struct {
	TeamID          uuid.UUID `json:"team_id"`
	InitialAmount   string    `json:"initial_amount"`
	UsedAmount      string    `json:"used_amount"`
	RemainingAmount string    `json:"remaining_amount"`
}

func (b Balances) DTO() BalancesDTO {
	return BalancesDTO{
		TeamID:          b.TeamID,
		InitialAmount:   types.FormatMoney(b.InitialAmount),
		UsedAmount:      types.FormatMoney(b.UsedAmount),
		RemainingAmount: types.FormatMoney(b.RemainingAmount),
	}
}

type TeamDriftDTO struct {
	TeamID            uuid.UUID `json:"team_id"`
	Name              string    `json:"name"`
	InitialAmount     string    `json:"initial_amount"`
	UsedAmount        string    `json:"used_amount"`
	RemainingAmount   string    `json:"remaining_amount"`
	ExpenseTotal      string    `json:"expense_total"`
	ExpectedRemaining string    `json:"expected_remaining"`
}

func (d TeamDrift) DTO() TeamDriftDTO {
	return TeamDriftDTO{
		TeamID:            d.TeamID,
		Name:              d.Name,
		InitialAmount:     types.FormatMoney(d.InitialAmount),
		UsedAmount:        types.FormatMoney(d.UsedAmount),
		RemainingAmount:   types.FormatMoney(d.RemainingAmount),
		ExpenseTotal:      types.FormatMoney(d.ExpenseTotal),
		ExpectedRemaining: types.FormatMoney(d.InitialAmount.Sub(d.ExpenseTotal)),
	}
}

type EventDTO struct {
	ID              uuid.UUID             `json:"id"`
	TeamID          uuid.UUID             `json:"team_id"`
	ActorUserID     *uuid.UUID            `json:"actor_user_id,omitempty"`
	Type            enums.LedgerEventType `json:"type"`
	Amount          string                `json:"amount"`
	ExpenseID       *uuid.UUID            `json:"expense_id,omitempty"`
	AmountRequestID *uuid.UUID            `json:"amount_request_id,omitempty"`
	InitialAfter    string                `json:"initial_after"`
	UsedAfter       string                `json:"used_after"`
	RemainingAfter  string                `json:"remaining_after"`
	Note            string                `json:"note,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func EventFromModel(e models.LedgerEvent) EventDTO {
	return EventDTO{
		ID:              e.ID,
		TeamID:          e.TeamID,
		ActorUserID:     e.ActorUserID,
		Type:            e.Type,
		Amount:          types.FormatMoney(e.Amount),
		ExpenseID:       e.ExpenseID,
		AmountRequestID: e.AmountRequestID,
		InitialAfter:    types.FormatMoney(e.InitialAfter),
		UsedAfter:       types.FormatMoney(e.UsedAfter),
		RemainingAfter:  types.FormatMoney(e.RemainingAfter),
		Note:            e.Note,
		CreatedAt:       e.CreatedAt,
	}
}
