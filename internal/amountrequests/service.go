package amountrequests

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/internal/ledger"
	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the pending -> approved | rejected workflow.
type Service interface {
	Submit(ctx context.Context, principal access.Principal, input SubmitInput) (*AmountRequestDTO, error)
	Approve(ctx context.Context, principal access.Principal, id uuid.UUID) (*AmountRequestDTO, error)
	Reject(ctx context.Context, principal access.Principal, id uuid.UUID) (*AmountRequestDTO, error)
	List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[AmountRequestDTO], error)
	Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*AmountRequestDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger ledger.Service
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the amount request workflow.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("amount request repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		ledger: ledgerSvc,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Submit(ctx context.Context, principal access.Principal, input SubmitInput) (*AmountRequestDTO, error) {
	if principal.Role != enums.RoleFieldStaff {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only field staff submit amount requests")
	}
	teamID, err := principal.ResolveTeam(input.TeamID)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	switch {
	case reason == "":
		return nil, validationError("reason", "is required")
	case utf8.RuneCountInString(reason) > maxReasonLength:
		return nil, validationError("reason", "must be at most 1000 characters")
	case !input.RequestedAmount.IsPositive():
		return nil, validationError("requested_amount", "must be greater than zero")
	case !input.RequestedAmount.Equal(input.RequestedAmount.Truncate(2)):
		return nil, validationError("requested_amount", "must have at most two decimal places")
	}

	request := &models.AmountRequest{
		TeamID:          teamID,
		UserID:          principal.UserID,
		RequestedAmount: input.RequestedAmount,
		Reason:          reason,
		Status:          enums.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create amount request")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"amount_request_id": request.ID.String(),
			"team_id":           teamID.String(),
			"requested_amount":  request.RequestedAmount.StringFixed(2),
		}), "amount_request.submitted")
	}
	return s.Get(ctx, principal, request.ID)
}

// Approve flips the request to approved and credits the team in one
// transaction. A second approval loses the conditional update and credits nothing.
func (s *service) Approve(ctx context.Context, principal access.Principal, id uuid.UUID) (*AmountRequestDTO, error) {
	if err := principal.RequireManager(); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lockPending(ctx, repo, id)
		if err != nil {
			return err
		}

		rows, err := repo.Transition(ctx, request.ID, enums.RequestStatusApproved, principal.UserID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve amount request")
		}
		if rows == 0 {
			return alreadyProcessed()
		}

		requestID := request.ID
		_, err = s.ledger.Credit(ctx, tx, ledger.CreditInput{
			TeamID:          request.TeamID,
			Amount:          request.RequestedAmount,
			ActorID:         principal.UserID,
			AmountRequestID: &requestID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, id, enums.RequestStatusApproved)
	return s.Get(ctx, principal, id)
}

func (s *service) Reject(ctx context.Context, principal access.Principal, id uuid.UUID) (*AmountRequestDTO, error) {
	if err := principal.RequireManager(); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lockPending(ctx, repo, id)
		if err != nil {
			return err
		}
		rows, err := repo.Transition(ctx, request.ID, enums.RequestStatusRejected, principal.UserID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject amount request")
		}
		if rows == 0 {
			return alreadyProcessed()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, id, enums.RequestStatusRejected)
	return s.Get(ctx, principal, id)
}

func (s *service) List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[AmountRequestDTO], error) {
	scope, err := principal.TeamScope(params.TeamID)
	if err != nil {
		return pagination.Page[AmountRequestDTO]{}, err
	}
	if params.Status != nil && !params.Status.IsValid() {
		return pagination.Page[AmountRequestDTO]{}, validationError("status", "must be one of pending approved rejected")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[AmountRequestDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listFilter{TeamID: scope, Status: params.Status}, params.Params)
	if err != nil {
		return pagination.Page[AmountRequestDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list amount requests")
	}
	page := pagination.Build(rows, params.Params, func(r Row) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	out := pagination.Page[AmountRequestDTO]{Items: make([]AmountRequestDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, row := range page.Items {
		out.Items = append(out.Items, FromRow(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*AmountRequestDTO, error) {
	row, err := s.repo.FindRow(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load amount request")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "amount request not found")
	}
	if !principal.CanAccessTeam(row.TeamID) {
		// Hide the existence of other teams' requests from field staff.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "amount request not found")
	}
	dto := FromRow(*row)
	return &dto, nil
}

func (s *service) lockPending(ctx context.Context, repo Repository, id uuid.UUID) (*models.AmountRequest, error) {
	request, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load amount request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "amount request not found")
	}
	if request.Status.IsTerminal() {
		return nil, alreadyProcessed().WithDetails(map[string]string{"status": string(request.Status)})
	}
	return request, nil
}

func (s *service) logTransition(ctx context.Context, id uuid.UUID, status enums.RequestStatus) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"amount_request_id": id.String(),
		"status":            string(status),
	}), "amount_request.processed")
}

func alreadyProcessed() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "amount request already processed")
}

func validationError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: msg})
}
