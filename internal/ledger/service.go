// Package ledger owns the three balance columns of every team. Mutations run
// inside the caller's transaction and append a ledger event with the balances
// observed after the change.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/metrics"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/types"
)

const (
	opDebit       = "debit"
	opCredit      = "credit"
	opAdjust      = "adjust"
	opRecalculate = "recalculate"
)

// Service exposes the budget ledger.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*Balances, error)
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*Balances, error)
	Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Balances, error)
	Recalculate(ctx context.Context, tx *gorm.DB, teamID, actorID uuid.UUID) (*Balances, error)
	Aggregate(ctx context.Context, teamID *uuid.UUID) (Stats, error)
	Drift(ctx context.Context) ([]TeamDrift, error)
	Events(ctx context.Context, teamID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerEvent], error)
}

type service struct {
	repo    Repository
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService wires a ledger service. metrics may be nil.
func NewService(repo Repository, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{
		repo:    repo,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*Balances, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger debit requires a transaction")
	}
	if err := validateAmount("amount", input.Amount, true); err != nil {
		s.metrics.Observe(opDebit, metrics.OutcomeError, input.Amount)
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	rows, err := repo.ApplyDebit(ctx, input.TeamID, input.Amount, s.now())
	if err != nil {
		s.metrics.Observe(opDebit, metrics.OutcomeError, input.Amount)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit team budget")
	}

	team, err := repo.FindTeam(ctx, input.TeamID)
	if err != nil {
		s.metrics.Observe(opDebit, metrics.OutcomeError, input.Amount)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}
	if team == nil {
		s.metrics.Observe(opDebit, metrics.OutcomeNotFound, input.Amount)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	if rows == 0 {
		s.metrics.Observe(opDebit, metrics.OutcomeInsufficient, input.Amount)
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient funds").WithDetails(map[string]string{
			"remaining_amount": types.FormatMoney(team.RemainingAmount),
			"requested_amount": types.FormatMoney(input.Amount),
		})
	}

	if err := s.record(ctx, repo, team, enums.LedgerEventTypeDebit, input.Amount, input.ActorID, func(e *models.LedgerEvent) {
		e.ExpenseID = input.ExpenseID
	}); err != nil {
		s.metrics.Observe(opDebit, metrics.OutcomeError, input.Amount)
		return nil, err
	}

	s.metrics.Observe(opDebit, metrics.OutcomeSuccess, input.Amount)
	return balancesOf(team), nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*Balances, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger credit requires a transaction")
	}
	if err := validateAmount("amount", input.Amount, false); err != nil {
		s.metrics.Observe(opCredit, metrics.OutcomeError, input.Amount)
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	rows, err := repo.ApplyCredit(ctx, input.TeamID, input.Amount, s.now())
	if err != nil {
		s.metrics.Observe(opCredit, metrics.OutcomeError, input.Amount)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit team budget")
	}
	if rows == 0 {
		s.metrics.Observe(opCredit, metrics.OutcomeNotFound, input.Amount)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}

	team, err := repo.FindTeam(ctx, input.TeamID)
	if err != nil || team == nil {
		s.metrics.Observe(opCredit, metrics.OutcomeError, input.Amount)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errOrMissing(err), "load team")
	}

	if err := s.record(ctx, repo, team, enums.LedgerEventTypeCredit, input.Amount, input.ActorID, func(e *models.LedgerEvent) {
		e.AmountRequestID = input.AmountRequestID
	}); err != nil {
		s.metrics.Observe(opCredit, metrics.OutcomeError, input.Amount)
		return nil, err
	}

	s.metrics.Observe(opCredit, metrics.OutcomeSuccess, input.Amount)
	return balancesOf(team), nil
}

func (s *service) Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Balances, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger adjust requires a transaction")
	}
	if err := validateAmount("initial_amount", input.InitialAmount, true); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	before, err := repo.FindTeam(ctx, input.TeamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}
	if before == nil {
		s.metrics.Observe(opAdjust, metrics.OutcomeNotFound, input.InitialAmount)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	if before.InitialAmount.Equal(input.InitialAmount) {
		return balancesOf(before), nil
	}

	rows, err := repo.ApplyInitial(ctx, input.TeamID, input.InitialAmount, s.now())
	if err != nil {
		s.metrics.Observe(opAdjust, metrics.OutcomeError, input.InitialAmount)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust team budget")
	}
	if rows == 0 {
		s.metrics.Observe(opAdjust, metrics.OutcomeInsufficient, input.InitialAmount)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "initial amount is below the amount already used").WithDetails(map[string]string{
			"used_amount":    types.FormatMoney(before.UsedAmount),
			"initial_amount": types.FormatMoney(input.InitialAmount),
		})
	}

	team, err := repo.FindTeam(ctx, input.TeamID)
	if err != nil || team == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errOrMissing(err), "load team")
	}

	delta := input.InitialAmount.Sub(before.InitialAmount).Abs()
	note := fmt.Sprintf("initial amount %s -> %s", types.FormatMoney(before.InitialAmount), types.FormatMoney(input.InitialAmount))
	if err := s.record(ctx, repo, team, enums.LedgerEventTypeAdjustment, delta, input.ActorID, func(e *models.LedgerEvent) {
		e.Note = note
	}); err != nil {
		return nil, err
	}

	s.metrics.Observe(opAdjust, metrics.OutcomeSuccess, delta)
	return balancesOf(team), nil
}

func (s *service) Recalculate(ctx context.Context, tx *gorm.DB, teamID, actorID uuid.UUID) (*Balances, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger recalculate requires a transaction")
	}

	repo := s.repo.WithTx(tx)
	team, err := repo.FindTeam(ctx, teamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}
	if team == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}

	used, err := repo.SumExpenses(ctx, teamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum expenses")
	}
	remaining := team.InitialAmount.Sub(used)
	if remaining.IsNegative() {
		s.metrics.Observe(opRecalculate, metrics.OutcomeInsufficient, used)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "expenses exceed the initial amount").WithDetails(map[string]string{
			"initial_amount": types.FormatMoney(team.InitialAmount),
			"expense_total":  types.FormatMoney(used),
		})
	}

	delta := remaining.Sub(team.RemainingAmount).Abs()
	if delta.IsZero() && used.Equal(team.UsedAmount) {
		s.metrics.Observe(opRecalculate, metrics.OutcomeSuccess, decimal.Zero)
		return balancesOf(team), nil
	}

	note := fmt.Sprintf("recalculated used %s -> %s", types.FormatMoney(team.UsedAmount), types.FormatMoney(used))
	if err := repo.SetBalances(ctx, teamID, used, remaining, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store balances")
	}
	team.UsedAmount = used
	team.RemainingAmount = remaining

	if err := s.record(ctx, repo, team, enums.LedgerEventTypeAdjustment, delta, actorID, func(e *models.LedgerEvent) {
		e.Note = note
	}); err != nil {
		return nil, err
	}

	s.metrics.Observe(opRecalculate, metrics.OutcomeSuccess, delta)
	return balancesOf(team), nil
}

func (s *service) Aggregate(ctx context.Context, teamID *uuid.UUID) (Stats, error) {
	stats, err := s.repo.Totals(ctx, teamID)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate teams")
	}
	pending, err := s.repo.CountPending(ctx, teamID)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending requests")
	}
	stats.PendingRequestCount = pending
	return stats, nil
}

func (s *service) Drift(ctx context.Context) ([]TeamDrift, error) {
	rows, err := s.repo.Drift(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detect ledger drift")
	}
	if rows == nil {
		rows = []TeamDrift{}
	}
	return rows, nil
}

func (s *service) Events(ctx context.Context, teamID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerEvent], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.LedgerEvent]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	events, err := s.repo.ListEvents(ctx, teamID, params)
	if err != nil {
		return pagination.Page[models.LedgerEvent]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger events")
	}
	return pagination.Build(events, params, func(e models.LedgerEvent) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

func (s *service) record(ctx context.Context, repo Repository, team *models.Team, typ enums.LedgerEventType, amount decimal.Decimal, actorID uuid.UUID, decorate func(*models.LedgerEvent)) error {
	event := &models.LedgerEvent{
		TeamID:         team.ID,
		Type:           typ,
		Amount:         amount,
		InitialAfter:   team.InitialAmount,
		UsedAfter:      team.UsedAmount,
		RemainingAfter: team.RemainingAmount,
		CreatedAt:      s.now(),
	}
	if actorID != uuid.Nil {
		actor := actorID
		event.ActorUserID = &actor
	}
	if decorate != nil {
		decorate(event)
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
	}
	return nil
}

// validateAmount rejects negative values and more than two fractional digits.
func validateAmount(field string, amount decimal.Decimal, allowZero bool) error {
	switch {
	case amount.IsNegative():
		return validationError(field, "must not be negative")
	case amount.IsZero() && !allowZero:
		return validationError(field, "must be greater than zero")
	case !amount.Equal(amount.Truncate(2)):
		return validationError(field, "must have at most two decimal places")
	}
	return nil
}

func validationError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: msg})
}

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("team vanished inside transaction")
}
