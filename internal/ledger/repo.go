package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

// Repository manages team balances and the ledger event trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	ApplyDebit(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, now time.Time) (int64, error)
	ApplyCredit(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, now time.Time) (int64, error)
	ApplyInitial(ctx context.Context, teamID uuid.UUID, initial decimal.Decimal, now time.Time) (int64, error)
	SetBalances(ctx context.Context, teamID uuid.UUID, used, remaining decimal.Decimal, now time.Time) error
	SumExpenses(ctx context.Context, teamID uuid.UUID) (decimal.Decimal, error)
	CreateEvent(ctx context.Context, event *models.LedgerEvent) error
	ListEvents(ctx context.Context, teamID uuid.UUID, params pagination.Params) ([]models.LedgerEvent, error)
	Totals(ctx context.Context, teamID *uuid.UUID) (Stats, error)
	CountPending(ctx context.Context, teamID *uuid.UUID) (int64, error)
	Drift(ctx context.Context) ([]TeamDrift, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).Where("id = ?", teamID).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &team, nil
}

// debitGuard keeps check and write in one statement. Every balance expression
// is rounded to cents because sqlite stores numeric columns as REAL.
const debitGuard = "id = ? AND ROUND(remaining_amount - ?, 2) >= 0"

// ApplyDebit is the single guarded statement behind every spend.
func (r *repository) ApplyDebit(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where(debitGuard, teamID, amount).
		UpdateColumns(map[string]any{
			"used_amount":      gorm.Expr("ROUND(used_amount + ?, 2)", amount),
			"remaining_amount": gorm.Expr("ROUND(remaining_amount - ?, 2)", amount),
			"updated_at":       now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ApplyCredit(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ?", teamID).
		UpdateColumns(map[string]any{
			"initial_amount":   gorm.Expr("ROUND(initial_amount + ?, 2)", amount),
			"remaining_amount": gorm.Expr("ROUND(remaining_amount + ?, 2)", amount),
			"updated_at":       now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ApplyInitial(ctx context.Context, teamID uuid.UUID, initial decimal.Decimal, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ? AND ROUND(? - used_amount, 2) >= 0", teamID, initial).
		UpdateColumns(map[string]any{
			"initial_amount":   initial,
			"remaining_amount": gorm.Expr("ROUND(? - used_amount, 2)", initial),
			"updated_at":       now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) SetBalances(ctx context.Context, teamID uuid.UUID, used, remaining decimal.Decimal, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ?", teamID).
		UpdateColumns(map[string]any{
			"used_amount":      used,
			"remaining_amount": remaining,
			"updated_at":       now,
		}).Error
}

func (r *repository) SumExpenses(ctx context.Context, teamID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Expense{}).
		Select("ROUND(COALESCE(SUM(amount), 0), 2) AS total").
		Where("team_id = ?", teamID).
		Scan(&row).Error
	return row.Total, err
}

func (r *repository) CreateEvent(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, teamID uuid.UUID, params pagination.Params) ([]models.LedgerEvent, error) {
	query, err := pagination.Apply(r.db.WithContext(ctx).Model(&models.LedgerEvent{}).Where("team_id = ?", teamID), params, "")
	if err != nil {
		return nil, err
	}
	var events []models.LedgerEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) Totals(ctx context.Context, teamID *uuid.UUID) (Stats, error) {
	var row struct {
		TeamCount      int64
		TotalInitial   decimal.Decimal
		TotalUsed      decimal.Decimal
		TotalRemaining decimal.Decimal
	}
	query := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Select(`COUNT(*) AS team_count,
			ROUND(COALESCE(SUM(initial_amount), 0), 2) AS total_initial,
			ROUND(COALESCE(SUM(used_amount), 0), 2) AS total_used,
			ROUND(COALESCE(SUM(remaining_amount), 0), 2) AS total_remaining`)
	if teamID != nil {
		query = query.Where("id = ?", *teamID)
	}
	if err := query.Scan(&row).Error; err != nil {
		return Stats{}, err
	}
	return Stats{
		TeamCount:      row.TeamCount,
		TotalInitial:   row.TotalInitial,
		TotalUsed:      row.TotalUsed,
		TotalRemaining: row.TotalRemaining,
	}, nil
}

func (r *repository) CountPending(ctx context.Context, teamID *uuid.UUID) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.AmountRequest{}).
		Where("status = ?", enums.RequestStatusPending)
	if teamID != nil {
		query = query.Where("team_id = ?", *teamID)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *repository) Drift(ctx context.Context) ([]TeamDrift, error) {
	var rows []TeamDrift
	err := r.db.WithContext(ctx).Raw(`
		SELECT t.id AS team_id, t.name AS name,
			t.initial_amount AS initial_amount,
			t.used_amount AS used_amount,
			t.remaining_amount AS remaining_amount,
			COALESCE(e.total, 0) AS expense_total
		FROM teams t
		LEFT JOIN (
			SELECT team_id, ROUND(SUM(amount), 2) AS total FROM expenses GROUP BY team_id
		) e ON e.team_id = t.id
		WHERE ROUND(t.remaining_amount - (t.initial_amount - t.used_amount), 2) <> 0
			OR ROUND(t.used_amount - COALESCE(e.total, 0), 2) <> 0
			OR t.remaining_amount < 0
		ORDER BY t.name ASC`).Scan(&rows).Error
	return rows, err
}
