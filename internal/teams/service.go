// Package teams administers budget-holding teams. Balance changes are
// delegated to the ledger so every movement leaves an event behind.
package teams

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/internal/ledger"
	"github.com/fieldworkbook/backend/pkg/db/models"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes team administration plus the ledger views tied to a team.
type Service interface {
	Create(ctx context.Context, principal access.Principal, input CreateInput) (*TeamDTO, error)
	List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[TeamDTO], error)
	Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*TeamDTO, error)
	Update(ctx context.Context, principal access.Principal, id uuid.UUID, input UpdateInput) (*TeamDTO, error)
	Delete(ctx context.Context, principal access.Principal, id uuid.UUID) error
	Events(ctx context.Context, principal access.Principal, id uuid.UUID, params pagination.Params) (pagination.Page[ledger.EventDTO], error)
	Stats(ctx context.Context, principal access.Principal) (ledger.StatsDTO, error)
	Drift(ctx context.Context, principal access.Principal) ([]ledger.TeamDriftDTO, error)
	Recalculate(ctx context.Context, principal access.Principal, id uuid.UUID) (*ledger.BalancesDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger ledger.Service
	logg   *logger.Logger
}

// NewService builds the team service.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("team repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{repo: repo, tx: tx, ledger: ledgerSvc, logg: logg}, nil
}

// Create opens the team with a zero budget and funds it through the ledger,
// so the opening amount shows up in the team's event trail.
func (s *service) Create(ctx context.Context, principal access.Principal, input CreateInput) (*TeamDTO, error) {
	if err := principal.RequireManager(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("name", "is required")
	}

	creator := principal.UserID
	team := &models.Team{
		Name:            name,
		Location:        strings.TrimSpace(input.Location),
		Description:     strings.TrimSpace(input.Description),
		InitialAmount:   decimal.Zero,
		UsedAmount:      decimal.Zero,
		RemainingAmount: decimal.Zero,
		CreatedBy:       &creator,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, team); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create team")
		}
		_, err := s.ledger.Adjust(ctx, tx, ledger.AdjustInput{
			TeamID:        team.ID,
			InitialAmount: input.InitialAmount,
			ActorID:       principal.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"team_id":        team.ID.String(),
			"initial_amount": input.InitialAmount.StringFixed(2),
		}), "team.created")
	}
	return s.Get(ctx, principal, team.ID)
}

func (s *service) List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[TeamDTO], error) {
	scope, err := principal.TeamScope(nil)
	if err != nil {
		return pagination.Page[TeamDTO]{}, err
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[TeamDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listFilter{TeamID: scope, Search: strings.TrimSpace(params.Search)}, params.Params)
	if err != nil {
		return pagination.Page[TeamDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list teams")
	}
	page := pagination.Build(rows, params.Params, func(t models.Team) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	out := pagination.Page[TeamDTO]{Items: make([]TeamDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, team := range page.Items {
		out.Items = append(out.Items, FromModel(team))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*TeamDTO, error) {
	team, err := s.load(ctx, s.repo, principal, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*team)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, principal access.Principal, id uuid.UUID, input UpdateInput) (*TeamDTO, error) {
	if err := principal.RequireManager(); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, validationError("name", "is required")
		}
		updates["name"] = name
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, principal, id); err != nil {
			return err
		}
		if err := repo.UpdateProfile(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update team")
		}
		if input.InitialAmount == nil {
			return nil
		}
		_, err := s.ledger.Adjust(ctx, tx, ledger.AdjustInput{
			TeamID:        id,
			InitialAmount: *input.InitialAmount,
			ActorID:       principal.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Delete refuses teams that still carry expenses. Requests, ledger events and
// staff bindings go with the team in one transaction.
func (s *service) Delete(ctx context.Context, principal access.Principal, id uuid.UUID) error {
	if err := principal.RequireManager(); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, principal, id); err != nil {
			return err
		}
		count, err := repo.CountExpenses(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count team expenses")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "team has expenses and cannot be deleted").
				WithDetails(map[string]any{"expense_count": count})
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete team")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "team_id", id.String()), "team.deleted")
	}
	return nil
}

func (s *service) Events(ctx context.Context, principal access.Principal, id uuid.UUID, params pagination.Params) (pagination.Page[ledger.EventDTO], error) {
	if _, err := s.load(ctx, s.repo, principal, id); err != nil {
		return pagination.Page[ledger.EventDTO]{}, err
	}
	page, err := s.ledger.Events(ctx, id, params)
	if err != nil {
		return pagination.Page[ledger.EventDTO]{}, err
	}
	out := pagination.Page[ledger.EventDTO]{Items: make([]ledger.EventDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, event := range page.Items {
		out.Items = append(out.Items, ledger.EventFromModel(event))
	}
	return out, nil
}

// Stats folds every team for managers and only the bound team for field staff.
func (s *service) Stats(ctx context.Context, principal access.Principal) (ledger.StatsDTO, error) {
	scope, err := principal.TeamScope(nil)
	if err != nil {
		return ledger.StatsDTO{}, err
	}
	stats, err := s.ledger.Aggregate(ctx, scope)
	if err != nil {
		return ledger.StatsDTO{}, err
	}
	return stats.DTO(), nil
}

func (s *service) Drift(ctx context.Context, principal access.Principal) ([]ledger.TeamDriftDTO, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}
	rows, err := s.ledger.Drift(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.TeamDriftDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.DTO())
	}
	return out, nil
}

func (s *service) Recalculate(ctx context.Context, principal access.Principal, id uuid.UUID) (*ledger.BalancesDTO, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}
	var balances *ledger.Balances
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		balances, err = s.ledger.Recalculate(ctx, tx, id, principal.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"team_id":          id.String(),
			"used_amount":      balances.UsedAmount.StringFixed(2),
			"remaining_amount": balances.RemainingAmount.StringFixed(2),
		}), "ledger.recalculated")
	}
	dto := balances.DTO()
	return &dto, nil
}

// load hides teams outside the caller's scope as missing.
func (s *service) load(ctx context.Context, repo Repository, principal access.Principal, id uuid.UUID) (*models.Team, error) {
	team, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}
	if team == nil || !principal.CanAccessTeam(team.ID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	return team, nil
}

func validationError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: msg})
}
