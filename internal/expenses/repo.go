package expenses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

// Repository persists expenses. Expenses are never updated in place.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, expense *models.Expense) error
	TeamExists(ctx context.Context, teamID uuid.UUID) (bool, error)
	FindRow(ctx context.Context, id uuid.UUID) (*Row, error)
	List(ctx context.Context, filter listFilter, params pagination.Params) ([]Row, error)
}

// Row is an expense joined with its team and author names.
type Row struct {
	models.Expense `gorm:"embedded"`
	TeamName       string `gorm:"column:team_name"`
	Username       string `gorm:"column:username"`
	FullName       string `gorm:"column:full_name"`
}

type listFilter struct {
	TeamID   *uuid.UUID
	UserID   *uuid.UUID
	Category string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an expense repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, expense *models.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

func (r *repository) TeamExists(ctx context.Context, teamID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", teamID).Count(&count).Error
	return count > 0, err
}

func (r *repository) rows(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("expenses").
		Select("expenses.*, teams.name AS team_name, users.username AS username, users.full_name AS full_name").
		Joins("LEFT JOIN teams ON teams.id = expenses.team_id").
		Joins("LEFT JOIN users ON users.id = expenses.user_id")
}

func (r *repository) FindRow(ctx context.Context, id uuid.UUID) (*Row, error) {
	var rows []Row
	if err := r.rows(ctx).Where("expenses.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) List(ctx context.Context, filter listFilter, params pagination.Params) ([]Row, error) {
	query := r.rows(ctx)
	if filter.TeamID != nil {
		query = query.Where("expenses.team_id = ?", *filter.TeamID)
	}
	if filter.UserID != nil {
		query = query.Where("expenses.user_id = ?", *filter.UserID)
	}
	if filter.Category != "" {
		query = query.Where("LOWER(expenses.category) = LOWER(?)", filter.Category)
	}
	query, err := pagination.Apply(query, params, "expenses")
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
