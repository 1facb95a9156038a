// Package expenses records spend against team budgets. Every expense insert
// and its ledger debit commit or roll back together.
package expenses

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/internal/attachments"
	"github.com/fieldworkbook/backend/internal/ledger"
	"github.com/fieldworkbook/backend/pkg/db/models"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type attachmentStore interface {
	Save(ctx context.Context, teamID uuid.UUID, upload attachments.Upload) (*attachments.Stored, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Discard(ctx context.Context, key string)
}

// Service exposes expense recording and lookup.
type Service interface {
	Create(ctx context.Context, principal access.Principal, input CreateInput) (*CreateResult, error)
	List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[ExpenseDTO], error)
	Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*ExpenseDTO, error)
	OpenAttachment(ctx context.Context, principal access.Principal, id uuid.UUID) (*Attachment, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	ledger      ledger.Service
	attachments attachmentStore
	logg        *logger.Logger
}

// NewService builds the expense service.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service, store attachmentStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("expense repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if store == nil {
		return nil, fmt.Errorf("attachment store required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		ledger:      ledgerSvc,
		attachments: store,
		logg:        logg,
	}, nil
}

// Create stores the receipt first, then inserts the expense and debits the
// team in one transaction. A failed transaction discards the stored receipt.
func (s *service) Create(ctx context.Context, principal access.Principal, input CreateInput) (*CreateResult, error) {
	teamID, err := principal.ResolveTeam(input.TeamID)
	if err != nil {
		return nil, err
	}
	description, category, err := normalize(input)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		TeamID:      teamID,
		UserID:      principal.UserID,
		Description: description,
		Amount:      input.Amount,
		Category:    category,
	}

	var stored *attachments.Stored
	if input.Attachment != nil && input.Attachment.Body != nil {
		stored, err = s.attachments.Save(ctx, teamID, *input.Attachment)
		if err != nil {
			return nil, err
		}
		expense.AttachmentPath = &stored.Key
		expense.AttachmentName = &stored.Name
		expense.AttachmentContentType = &stored.ContentType
	}

	var balances *ledger.Balances
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.TeamExists(ctx, teamID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
		}
		if err := repo.Create(ctx, expense); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create expense")
		}
		expenseID := expense.ID
		balances, err = s.ledger.Debit(ctx, tx, ledger.DebitInput{
			TeamID:    teamID,
			Amount:    input.Amount,
			ActorID:   principal.UserID,
			ExpenseID: &expenseID,
		})
		return err
	})
	if err != nil {
		if stored != nil {
			s.attachments.Discard(ctx, stored.Key)
		}
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"expense_id":       expense.ID.String(),
			"team_id":          teamID.String(),
			"amount":           expense.Amount.StringFixed(2),
			"remaining_amount": balances.RemainingAmount.StringFixed(2),
		}), "expense.created")
	}

	dto, err := s.Get(ctx, principal, expense.ID)
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		Expense: *dto,
		Balances: BalancesDTO{
			InitialAmount:   types.FormatMoney(balances.InitialAmount),
			UsedAmount:      types.FormatMoney(balances.UsedAmount),
			RemainingAmount: types.FormatMoney(balances.RemainingAmount),
		},
	}, nil
}

func (s *service) List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[ExpenseDTO], error) {
	scope, err := principal.TeamScope(params.TeamID)
	if err != nil {
		return pagination.Page[ExpenseDTO]{}, err
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[ExpenseDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := listFilter{TeamID: scope, UserID: params.UserID, Category: strings.TrimSpace(params.Category)}
	rows, err := s.repo.List(ctx, filter, params.Params)
	if err != nil {
		return pagination.Page[ExpenseDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expenses")
	}
	page := pagination.Build(rows, params.Params, func(r Row) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	out := pagination.Page[ExpenseDTO]{Items: make([]ExpenseDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, row := range page.Items {
		out.Items = append(out.Items, FromRow(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*ExpenseDTO, error) {
	row, err := s.load(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	dto := FromRow(*row)
	return &dto, nil
}

func (s *service) OpenAttachment(ctx context.Context, principal access.Principal, id uuid.UUID) (*Attachment, error) {
	row, err := s.load(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !row.HasAttachment() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "expense has no attachment")
	}
	body, err := s.attachments.Open(ctx, *row.AttachmentPath)
	if err != nil {
		return nil, err
	}
	out := &Attachment{Body: body, Name: "attachment", ContentType: "application/octet-stream"}
	if row.AttachmentName != nil && *row.AttachmentName != "" {
		out.Name = *row.AttachmentName
	}
	if row.AttachmentContentType != nil && *row.AttachmentContentType != "" {
		out.ContentType = *row.AttachmentContentType
	}
	return out, nil
}

func (s *service) load(ctx context.Context, principal access.Principal, id uuid.UUID) (*Row, error) {
	row, err := s.repo.FindRow(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load expense")
	}
	if row == nil || !principal.CanAccessTeam(row.TeamID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "expense not found")
	}
	return row, nil
}

func normalize(input CreateInput) (string, string, error) {
	description := strings.TrimSpace(input.Description)
	category := strings.TrimSpace(input.Category)
	details := map[string]string{}
	switch {
	case description == "":
		details["description"] = "is required"
	case utf8.RuneCountInString(description) > maxDescriptionLength:
		details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLength)
	}
	switch {
	case category == "":
		details["category"] = "is required"
	case utf8.RuneCountInString(category) > maxCategoryLength:
		details["category"] = fmt.Sprintf("must be at most %d characters", maxCategoryLength)
	}
	if input.Amount.GreaterThan(maxAmount) {
		details["amount"] = "exceeds the largest storable amount"
	}
	if len(details) > 0 {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return description, category, nil
}
